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

// CartLine is one line of a shopper's cart. ListingID names a farm product
// for standard checkout and an event product for preorders.
type CartLine struct {
	ListingID int64
	Quantity  int32
	UnitPrice decimal.Decimal
}

// Contact holds the delivery and contact details of an order.
type Contact struct {
	Name       string
	Phone      string
	Address    string
	City       string
	PostalCode string
	Notes      string
}

// CheckoutRequest is the validated input for a standard checkout.
type CheckoutRequest struct {
	Buyer         Buyer
	Contact       Contact
	PaymentMethod string
	Lines         []CartLine
}

// PreorderRequest is the validated input for a preorder checkout. The
// delivery address always comes from the event.
type PreorderRequest struct {
	Buyer   Buyer
	EventID int64
	Contact Contact
	Lines   []CartLine
}

// CheckoutResult is the created order with its items.
type CheckoutResult struct {
	Order database.Order
	Items []database.OrderItem
	Event *database.Event
}

// draftOrder is everything needed to write an order once stock is held.
type draftOrder struct {
	orderType     string
	buyer         Buyer
	eventID       int64
	contact       Contact
	paymentMethod string
	lines         []CartLine
}

// Checkout creates a STANDARD order, taking stock from farm listings.
// Retries up to maxOrderNumberRetries times on order_number collisions.
func (s *OrderService) Checkout(ctx context.Context, req CheckoutRequest) (result *CheckoutResult, err error) {
	defer func() { metrics.RecordOrderOperation(metrics.OpCheckout, err == nil) }()

	if err := validateCart(req.Buyer, req.Lines); err != nil {
		return nil, err
	}
	method := req.PaymentMethod
	if method == "" {
		method = enum.PaymentMethodCash
	}
	if !isValidPaymentMethod(method) {
		return nil, ErrInvalidPaymentMethod
	}

	result, err = s.checkoutWithRetry(ctx, draftOrder{
		orderType:     enum.OrderTypeStandard,
		buyer:         req.Buyer,
		contact:       req.Contact,
		paymentMethod: method,
		lines:         req.Lines,
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, orderEvent(events.TypeOrderCreated, result.Order, result.Items))
	return result, nil
}

// CheckoutPreorder creates a PREORDER order against an event, taking stock
// from event listings. Payment is cash at the event.
func (s *OrderService) CheckoutPreorder(ctx context.Context, req PreorderRequest) (result *CheckoutResult, err error) {
	defer func() { metrics.RecordOrderOperation(metrics.OpPreorderCheckout, err == nil) }()

	if err := validateCart(req.Buyer, req.Lines); err != nil {
		return nil, err
	}

	result, err = s.checkoutWithRetry(ctx, draftOrder{
		orderType:     enum.OrderTypePreorder,
		buyer:         req.Buyer,
		eventID:       req.EventID,
		contact:       req.Contact,
		paymentMethod: enum.PaymentMethodCash,
		lines:         req.Lines,
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, orderEvent(events.TypeOrderCreated, result.Order, result.Items))
	return result, nil
}

func validateCart(buyer Buyer, lines []CartLine) error {
	if len(lines) == 0 {
		return ErrEmptyCart
	}
	if buyer == nil {
		return ErrMissingBuyer
	}
	for i, l := range lines {
		if l.Quantity <= 0 {
			return fmt.Errorf("items[%d]: %w", i, ErrInvalidQuantity)
		}
	}
	return nil
}

func (s *OrderService) checkoutWithRetry(ctx context.Context, d draftOrder) (*CheckoutResult, error) {
	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		result, err := s.checkoutTx(ctx, d)
		if err == nil {
			return result, nil
		}
		if isOrderNumberConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

// checkoutTx holds stock and writes the order, its items and the creation
// audit entry in one transaction.
func (s *OrderService) checkoutTx(ctx context.Context, d draftOrder) (*CheckoutResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	now := s.now()

	contact := d.contact
	var event *database.Event
	if d.orderType == enum.OrderTypePreorder {
		ev, err := store.GetEvent(ctx, d.eventID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrEventNotFound
			}
			return nil, fmt.Errorf("get event: %w", err)
		}
		if !now.Before(ev.EndDate) {
			return nil, ErrEventClosed
		}
		contact.Address = ev.Address
		contact.City = ev.City
		contact.PostalCode = ev.PostalCode.String
		event = &ev
	}

	held, err := reserveStock(ctx, store, d.orderType, d.eventID, d.lines)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, h := range held {
		total = total.Add(h.lineTotal())
	}

	buyerID, anonymousEmail := d.buyer.columns()
	params := database.CreateOrderParams{
		OrderNumber:        newOrderNumber(now),
		OrderType:          d.orderType,
		BuyerID:            buyerID,
		AnonymousEmail:     anonymousEmail,
		TotalPrice:         decimalToNumeric(total),
		ContactName:        contact.Name,
		ContactPhone:       optionalText(contact.Phone),
		DeliveryAddress:    contact.Address,
		DeliveryCity:       contact.City,
		DeliveryPostalCode: optionalText(contact.PostalCode),
		Notes:              optionalText(contact.Notes),
		PaymentMethod:      d.paymentMethod,
	}
	if event != nil {
		params.EventID = pgInt8(event.ID)
	}

	order, err := store.CreateOrder(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	items := make([]database.OrderItem, 0, len(held))
	for _, h := range held {
		item, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:     order.ID,
			ListingID:   h.listingID,
			ProductID:   h.productID,
			FarmerID:    pgInt8(h.farmerID),
			Quantity:    h.quantity,
			UnitPrice:   decimalToNumeric(h.unitPrice),
			ProductName: h.productName,
			SellerName:  h.sellerName,
		})
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		items = append(items, item)
	}

	if _, err := store.CreateOrderHistory(ctx, database.CreateOrderHistoryParams{
		OrderID: order.ID,
		UserID:  actorID(d.buyer),
		Action:  enum.HistoryOrderCreated,
		Message: fmt.Sprintf("Order %s created with %d item(s)", order.OrderNumber, len(items)),
	}); err != nil {
		return nil, fmt.Errorf("create order history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &CheckoutResult{Order: order, Items: items, Event: event}, nil
}

func isValidPaymentMethod(s string) bool {
	switch s {
	case enum.PaymentMethodCash, enum.PaymentMethodCard, enum.PaymentMethodBank:
		return true
	}
	return false
}
