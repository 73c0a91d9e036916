package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/farmlink/api/internal/database"
	"github.com/farmlink/api/internal/events"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxOrderNumberRetries = 3

// Errors returned by the order service. Messages are safe to show to clients.
var (
	ErrEmptyCart            = errors.New("Cart is empty")
	ErrMissingBuyer         = errors.New("Buyer id or email is required")
	ErrInvalidQuantity      = errors.New("Quantity must be greater than 0")
	ErrInvalidPaymentMethod = errors.New("Invalid payment method")
	ErrListingNotFound      = errors.New("Product not found")
	ErrInsufficientStock    = errors.New("Insufficient stock for some products")
	ErrPriceChanged         = errors.New("Price changed for some products")
	ErrEventNotFound        = errors.New("Event not found")
	ErrEventMismatch        = errors.New("Product is not offered at this event")
	ErrEventClosed          = errors.New("Preorders are closed for this event")
	ErrOrderNotFound        = errors.New("Order not found")
	ErrItemNotFound         = errors.New("Item not found")
	ErrUnauthorized         = errors.New("Unauthorized")
	ErrNotYourProduct       = errors.New("Not your product")
	ErrOrderNotCancelable   = errors.New("Order cannot be canceled")
	ErrItemAlreadyCanceled  = errors.New("Item is already canceled")
	ErrPreorderEventEnded   = errors.New("Preorders cannot be canceled after the event has ended")
	ErrFarmerEventEnded     = errors.New("Farmer cannot cancel items after the event has ended")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed by checkout and cancellation.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetEvent(ctx context.Context, id int64) (database.Event, error)
	GetFarmProductListing(ctx context.Context, id int64) (database.FarmProductListing, error)
	GetFarmProductListingForUpdate(ctx context.Context, id int64) (database.FarmProductListing, error)
	GetEventProductListingForUpdate(ctx context.Context, id int64) (database.EventProductListing, error)
	DecrementFarmProductStock(ctx context.Context, arg database.AdjustStockParams) (int32, error)
	IncrementFarmProductStock(ctx context.Context, arg database.AdjustStockParams) (int32, error)
	DecrementEventProductStock(ctx context.Context, arg database.AdjustStockParams) (int32, error)
	IncrementEventProductStock(ctx context.Context, arg database.AdjustStockParams) (int32, error)

	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, id int64) (database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	RecomputeOrderTotal(ctx context.Context, id int64) (database.Order, error)

	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	GetOrderItem(ctx context.Context, id int64) (database.OrderItem, error)
	GetOrderItemForUpdate(ctx context.Context, id int64) (database.OrderItem, error)
	ListOrderItemsByOrder(ctx context.Context, orderID int64) ([]database.OrderItem, error)
	CancelOrderItem(ctx context.Context, id int64) (database.OrderItem, error)
	CancelOrderItemsByOrder(ctx context.Context, orderID int64) (int64, error)
	CountActiveOrderItems(ctx context.Context, orderID int64) (int64, error)

	CreateOrderHistory(ctx context.Context, arg database.CreateOrderHistoryParams) (database.OrderHistory, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// OrderService handles checkout and cancellation.
type OrderService struct {
	pool      TxBeginner
	newStore  NewOrderStore
	publisher events.Publisher
	now       func() time.Time
}

// NewOrderService creates a new OrderService. A nil publisher discards events.
func NewOrderService(pool TxBeginner, newStore NewOrderStore, publisher events.Publisher) *OrderService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &OrderService{pool: pool, newStore: newStore, publisher: publisher, now: time.Now}
}

// isOrderNumberConflict checks if the error is a unique constraint violation
// on the order number (pgconn error code 23505).
func isOrderNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_order_number_key"
	}
	return false
}

// newOrderNumber returns FL-YYYYMMDD-XXXXXXXX.
func newOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("FL-%s-%s", now.UTC().Format("20060102"), suffix)
}

// publish delivers an event after commit. Failures are logged, not returned.
func (s *OrderService) publish(ctx context.Context, e events.OrderEvent) {
	e.OccurredAt = s.now().UTC()
	if err := s.publisher.Publish(ctx, e); err != nil {
		zap.L().Warn("publish order event",
			zap.String("type", e.Type),
			zap.Int64("order_id", e.OrderID),
			zap.Error(err),
		)
	}
}

// orderEvent builds the event skeleton shared by every order change.
func orderEvent(eventType string, order database.Order, items []database.OrderItem) events.OrderEvent {
	e := events.OrderEvent{
		Type:        eventType,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		OrderType:   order.OrderType,
		FarmerIDs:   farmerIDs(items),
		TotalPrice:  numericToDecimal(order.TotalPrice).StringFixed(2),
	}
	if order.BuyerID.Valid {
		id := order.BuyerID.Int64
		e.BuyerID = &id
	}
	if order.AnonymousEmail.Valid {
		e.BuyerEmail = order.AnonymousEmail.String
	}
	return e
}

func farmerIDs(items []database.OrderItem) []int64 {
	seen := make(map[int64]bool)
	ids := []int64{}
	for _, it := range items {
		if it.FarmerID.Valid && !seen[it.FarmerID.Int64] {
			seen[it.FarmerID.Int64] = true
			ids = append(ids, it.FarmerID.Int64)
		}
	}
	return ids
}

// --- Helpers ---

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}

func optionalText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func pgInt8(v int64) pgtype.Int8 {
	return pgtype.Int8{Int64: v, Valid: true}
}
