package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/farmlink/api/internal/database"
	"github.com/farmlink/api/internal/enum"
	"github.com/farmlink/api/internal/events"
	"github.com/farmlink/api/internal/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// CancelItemResult reports the state of the parent order after a single
// item was canceled.
type CancelItemResult struct {
	Order         database.Order
	Item          database.OrderItem
	NewTotalPrice decimal.Decimal
	OrderCanceled bool
}

// CancelOrder cancels a whole order on behalf of its buyer. Stock of every
// active item goes back to its listing. orderType selects the endpoint
// family; an order of the other type is reported as not found.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, userID int64, orderType string) (order database.Order, err error) {
	defer func() { metrics.RecordOrderOperation(metrics.OpCancelOrder, err == nil) }()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err = store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}
	if order.OrderType != orderType {
		return database.Order{}, ErrOrderNotFound
	}
	if !order.BuyerID.Valid || order.BuyerID.Int64 != userID {
		return database.Order{}, ErrUnauthorized
	}
	if orderType == enum.OrderTypePreorder {
		event, err := s.orderEventRow(ctx, store, order)
		if err != nil {
			return database.Order{}, err
		}
		if !s.now().Before(event.EndDate) {
			return database.Order{}, ErrPreorderEventEnded
		}
	}
	if order.Status != enum.OrderStatusPending {
		return database.Order{}, ErrOrderNotCancelable
	}

	items, err := store.ListOrderItemsByOrder(ctx, order.ID)
	if err != nil {
		return database.Order{}, fmt.Errorf("list order items: %w", err)
	}
	for _, it := range items {
		if it.Status != enum.OrderItemStatusActive {
			continue
		}
		if err := releaseStock(ctx, store, order.OrderType, it.ListingID, it.Quantity); err != nil {
			return database.Order{}, fmt.Errorf("item %d: %w", it.ID, err)
		}
	}

	if _, err := store.CancelOrderItemsByOrder(ctx, order.ID); err != nil {
		return database.Order{}, fmt.Errorf("cancel order items: %w", err)
	}
	if _, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:     order.ID,
		Status: enum.OrderStatusCanceled,
	}); err != nil {
		return database.Order{}, fmt.Errorf("update order status: %w", err)
	}
	order, err = store.RecomputeOrderTotal(ctx, order.ID)
	if err != nil {
		return database.Order{}, fmt.Errorf("recompute total: %w", err)
	}

	if _, err := store.CreateOrderHistory(ctx, database.CreateOrderHistoryParams{
		OrderID: order.ID,
		UserID:  pgInt8(userID),
		Action:  enum.HistoryOrderCanceled,
		Message: fmt.Sprintf("Order %s canceled by buyer", order.OrderNumber),
	}); err != nil {
		return database.Order{}, fmt.Errorf("create order history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}

	evt := orderEvent(events.TypeOrderCanceled, order, items)
	evt.OrderCanceled = true
	s.publish(ctx, evt)
	return order, nil
}

// CancelItem cancels one order item on behalf of the farmer who sold it,
// returns its stock, and recomputes the order total. The order is canceled
// too when no active item remains.
func (s *OrderService) CancelItem(ctx context.Context, itemID, userID int64, orderType string) (result *CancelItemResult, err error) {
	defer func() { metrics.RecordOrderOperation(metrics.OpCancelItem, err == nil) }()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// Lock order before item, matching CancelOrder.
	item, err := store.GetOrderItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("get order item: %w", err)
	}
	order, err := store.GetOrderForUpdate(ctx, item.OrderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order.OrderType != orderType {
		return nil, ErrItemNotFound
	}
	item, err = store.GetOrderItemForUpdate(ctx, itemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("lock order item: %w", err)
	}

	if err := s.authorizeItemCancel(ctx, store, order, item, userID); err != nil {
		return nil, err
	}
	if item.Status == enum.OrderItemStatusCanceled {
		return nil, ErrItemAlreadyCanceled
	}
	if order.Status != enum.OrderStatusPending {
		return nil, ErrOrderNotCancelable
	}

	item, err = store.CancelOrderItem(ctx, item.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemAlreadyCanceled
		}
		return nil, fmt.Errorf("cancel order item: %w", err)
	}
	if err := releaseStock(ctx, store, order.OrderType, item.ListingID, item.Quantity); err != nil {
		return nil, err
	}

	order, err = store.RecomputeOrderTotal(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("recompute total: %w", err)
	}
	active, err := store.CountActiveOrderItems(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("count active items: %w", err)
	}
	orderCanceled := active == 0
	if orderCanceled {
		order, err = store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
			ID:     order.ID,
			Status: enum.OrderStatusCanceled,
		})
		if err != nil {
			return nil, fmt.Errorf("update order status: %w", err)
		}
	}

	msg := fmt.Sprintf("Item %s (x%d) canceled by farmer", item.ProductName, item.Quantity)
	if orderCanceled {
		msg += "; no active items left, order canceled"
	}
	if _, err := store.CreateOrderHistory(ctx, database.CreateOrderHistoryParams{
		OrderID: order.ID,
		UserID:  pgInt8(userID),
		Action:  enum.HistoryItemCanceled,
		Message: msg,
	}); err != nil {
		return nil, fmt.Errorf("create order history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	evt := orderEvent(events.TypeItemCanceled, order, []database.OrderItem{item})
	evt.ItemID = item.ID
	evt.OrderCanceled = orderCanceled
	s.publish(ctx, evt)

	return &CancelItemResult{
		Order:         order,
		Item:          item,
		NewTotalPrice: numericToDecimal(order.TotalPrice),
		OrderCanceled: orderCanceled,
	}, nil
}

// authorizeItemCancel resolves the seller of an item through its listing:
// the farm owner for standard orders, the event's farmer for preorders.
func (s *OrderService) authorizeItemCancel(ctx context.Context, store OrderStore, order database.Order, item database.OrderItem, userID int64) error {
	if order.OrderType == enum.OrderTypePreorder {
		event, err := s.orderEventRow(ctx, store, order)
		if err != nil {
			return err
		}
		if event.FarmerID != userID {
			return ErrUnauthorized
		}
		if !s.now().Before(event.EndDate) {
			return ErrFarmerEventEnded
		}
		return nil
	}

	owner := item.FarmerID
	listing, err := store.GetFarmProductListing(ctx, item.ListingID)
	switch {
	case err == nil:
		owner = pgInt8(listing.OwnerID)
	case !errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("get listing: %w", err)
	}
	if !owner.Valid || owner.Int64 != userID {
		return ErrNotYourProduct
	}
	return nil
}

func (s *OrderService) orderEventRow(ctx context.Context, store OrderStore, order database.Order) (database.Event, error) {
	if !order.EventID.Valid {
		return database.Event{}, ErrEventNotFound
	}
	event, err := store.GetEvent(ctx, order.EventID.Int64)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Event{}, ErrEventNotFound
		}
		return database.Event{}, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}
