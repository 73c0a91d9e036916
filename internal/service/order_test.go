package service

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/farmlink/api/internal/database"
	"github.com/farmlink/api/internal/enum"
	"github.com/farmlink/api/internal/events"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// --- Mock implementations ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr   error
	rollbackErr error
	committed   int
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	if m.commitErr == nil {
		m.committed++
	}
	return m.commitErr
}
func (m *mockTx) Rollback(ctx context.Context) error { return m.rollbackErr }
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockTxBeginner implements TxBeginner.
type mockTxBeginner struct {
	tx  pgx.Tx
	err error
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.tx, m.err
}

// mockOrderStore is an in-memory OrderStore. It does not roll back, so tests
// that hit an error only assert on the error. createOrderFn overrides
// CreateOrder when set.
type mockOrderStore struct {
	events        map[int64]database.Event
	farmListings  map[int64]*database.FarmProductListing
	eventListings map[int64]*database.EventProductListing
	orders        map[int64]*database.Order
	items         map[int64]*database.OrderItem
	history       []database.CreateOrderHistoryParams

	createOrderFn func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)

	nextOrderID int64
	nextItemID  int64
}

func newMockStore() *mockOrderStore {
	return &mockOrderStore{
		events:        map[int64]database.Event{},
		farmListings:  map[int64]*database.FarmProductListing{},
		eventListings: map[int64]*database.EventProductListing{},
		orders:        map[int64]*database.Order{},
		items:         map[int64]*database.OrderItem{},
		nextOrderID:   1,
		nextItemID:    1,
	}
}

func (m *mockOrderStore) GetEvent(ctx context.Context, id int64) (database.Event, error) {
	e, ok := m.events[id]
	if !ok {
		return database.Event{}, pgx.ErrNoRows
	}
	return e, nil
}

func (m *mockOrderStore) GetFarmProductListing(ctx context.Context, id int64) (database.FarmProductListing, error) {
	l, ok := m.farmListings[id]
	if !ok {
		return database.FarmProductListing{}, pgx.ErrNoRows
	}
	return *l, nil
}

func (m *mockOrderStore) GetFarmProductListingForUpdate(ctx context.Context, id int64) (database.FarmProductListing, error) {
	return m.GetFarmProductListing(ctx, id)
}

func (m *mockOrderStore) GetEventProductListingForUpdate(ctx context.Context, id int64) (database.EventProductListing, error) {
	l, ok := m.eventListings[id]
	if !ok {
		return database.EventProductListing{}, pgx.ErrNoRows
	}
	return *l, nil
}

func (m *mockOrderStore) DecrementFarmProductStock(ctx context.Context, arg database.AdjustStockParams) (int32, error) {
	l, ok := m.farmListings[arg.ID]
	if !ok || l.Stock < arg.Quantity {
		return 0, pgx.ErrNoRows
	}
	l.Stock -= arg.Quantity
	return l.Stock, nil
}

func (m *mockOrderStore) IncrementFarmProductStock(ctx context.Context, arg database.AdjustStockParams) (int32, error) {
	l, ok := m.farmListings[arg.ID]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	l.Stock += arg.Quantity
	return l.Stock, nil
}

func (m *mockOrderStore) DecrementEventProductStock(ctx context.Context, arg database.AdjustStockParams) (int32, error) {
	l, ok := m.eventListings[arg.ID]
	if !ok || l.Stock < arg.Quantity {
		return 0, pgx.ErrNoRows
	}
	l.Stock -= arg.Quantity
	return l.Stock, nil
}

func (m *mockOrderStore) IncrementEventProductStock(ctx context.Context, arg database.AdjustStockParams) (int32, error) {
	l, ok := m.eventListings[arg.ID]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	l.Stock += arg.Quantity
	return l.Stock, nil
}

func (m *mockOrderStore) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	if m.createOrderFn != nil {
		return m.createOrderFn(ctx, arg)
	}
	o := &database.Order{
		ID:                 m.nextOrderID,
		OrderNumber:        arg.OrderNumber,
		OrderType:          arg.OrderType,
		Status:             enum.OrderStatusPending,
		BuyerID:            arg.BuyerID,
		AnonymousEmail:     arg.AnonymousEmail,
		EventID:            arg.EventID,
		TotalPrice:         arg.TotalPrice,
		ContactName:        arg.ContactName,
		ContactPhone:       arg.ContactPhone,
		DeliveryAddress:    arg.DeliveryAddress,
		DeliveryCity:       arg.DeliveryCity,
		DeliveryPostalCode: arg.DeliveryPostalCode,
		Notes:              arg.Notes,
		PaymentMethod:      arg.PaymentMethod,
	}
	m.nextOrderID++
	m.orders[o.ID] = o
	return *o, nil
}

func (m *mockOrderStore) GetOrderForUpdate(ctx context.Context, id int64) (database.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	return *o, nil
}

func (m *mockOrderStore) UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
	o, ok := m.orders[arg.ID]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	o.Status = arg.Status
	return *o, nil
}

func (m *mockOrderStore) RecomputeOrderTotal(ctx context.Context, id int64) (database.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	total := decimal.Zero
	for _, it := range m.items {
		if it.OrderID == id && it.Status == enum.OrderItemStatusActive {
			total = total.Add(numericToDecimal(it.UnitPrice).Mul(decimal.NewFromInt32(it.Quantity)))
		}
	}
	o.TotalPrice = decimalToNumeric(total)
	return *o, nil
}

func (m *mockOrderStore) CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	it := &database.OrderItem{
		ID:          m.nextItemID,
		OrderID:     arg.OrderID,
		ListingID:   arg.ListingID,
		ProductID:   arg.ProductID,
		FarmerID:    arg.FarmerID,
		Quantity:    arg.Quantity,
		UnitPrice:   arg.UnitPrice,
		ProductName: arg.ProductName,
		SellerName:  arg.SellerName,
		Status:      enum.OrderItemStatusActive,
	}
	m.nextItemID++
	m.items[it.ID] = it
	return *it, nil
}

func (m *mockOrderStore) GetOrderItem(ctx context.Context, id int64) (database.OrderItem, error) {
	it, ok := m.items[id]
	if !ok {
		return database.OrderItem{}, pgx.ErrNoRows
	}
	return *it, nil
}

func (m *mockOrderStore) GetOrderItemForUpdate(ctx context.Context, id int64) (database.OrderItem, error) {
	return m.GetOrderItem(ctx, id)
}

func (m *mockOrderStore) ListOrderItemsByOrder(ctx context.Context, orderID int64) ([]database.OrderItem, error) {
	out := []database.OrderItem{}
	for id := int64(1); id < m.nextItemID; id++ {
		if it, ok := m.items[id]; ok && it.OrderID == orderID {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (m *mockOrderStore) CancelOrderItem(ctx context.Context, id int64) (database.OrderItem, error) {
	it, ok := m.items[id]
	if !ok || it.Status != enum.OrderItemStatusActive {
		return database.OrderItem{}, pgx.ErrNoRows
	}
	it.Status = enum.OrderItemStatusCanceled
	return *it, nil
}

func (m *mockOrderStore) CancelOrderItemsByOrder(ctx context.Context, orderID int64) (int64, error) {
	var n int64
	for _, it := range m.items {
		if it.OrderID == orderID && it.Status != enum.OrderItemStatusCanceled {
			it.Status = enum.OrderItemStatusCanceled
			n++
		}
	}
	return n, nil
}

func (m *mockOrderStore) CountActiveOrderItems(ctx context.Context, orderID int64) (int64, error) {
	var n int64
	for _, it := range m.items {
		if it.OrderID == orderID && it.Status == enum.OrderItemStatusActive {
			n++
		}
	}
	return n, nil
}

func (m *mockOrderStore) CreateOrderHistory(ctx context.Context, arg database.CreateOrderHistoryParams) (database.OrderHistory, error) {
	m.history = append(m.history, arg)
	return database.OrderHistory{ID: int64(len(m.history)), OrderID: arg.OrderID, UserID: arg.UserID, Action: arg.Action, Message: arg.Message}, nil
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	events []events.OrderEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.OrderEvent) error {
	p.events = append(p.events, e)
	return p.err
}

// --- Test helpers ---

const (
	farmerID      int64 = 10
	otherFarmerID int64 = 11
	farmListingID int64 = 100
	eventID       int64 = 200
	eventListing  int64 = 300
)

var fixedNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func makeNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

func numericEquals(n pgtype.Numeric, expected string) bool {
	d := numericToDecimal(n)
	exp, _ := decimal.NewFromString(expected)
	return d.Equal(exp)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// seededStore has one farm listing (3.50, stock 50) and one event listing
// (2.00, stock 20) for an event that ends a day after fixedNow.
func seededStore() *mockOrderStore {
	store := newMockStore()
	store.farmListings[farmListingID] = &database.FarmProductListing{
		ID: farmListingID, FarmID: 1, ProductID: 7, Price: makeNumeric("3.50"), Stock: 50,
		ProductName: "Heirloom Tomatoes", FarmName: "Green Acres", OwnerID: farmerID,
	}
	store.farmListings[farmListingID+1] = &database.FarmProductListing{
		ID: farmListingID + 1, FarmID: 2, ProductID: 8, Price: makeNumeric("1.25"), Stock: 10,
		ProductName: "Eggs", FarmName: "Hill Farm", OwnerID: otherFarmerID,
	}
	store.events[eventID] = database.Event{
		ID: eventID, FarmerID: farmerID, Name: "Spring Market", Address: "1 Market Sq", City: "Springfield",
		PostalCode: pgtype.Text{String: "12345", Valid: true},
		StartDate:  fixedNow.Add(-time.Hour), EndDate: fixedNow.Add(24 * time.Hour),
	}
	store.eventListings[eventListing] = &database.EventProductListing{
		ID: eventListing, EventID: eventID, ProductID: 9, Price: makeNumeric("2.00"), Stock: 20,
		ProductName: "Honey", EventName: "Spring Market", FarmerID: farmerID, EventEndDate: fixedNow.Add(24 * time.Hour),
	}
	return store
}

// newTestService creates an OrderService with mocked dependencies and a fixed clock.
func newTestService(store *mockOrderStore) (*OrderService, *mockTx, *recordingPublisher) {
	tx := &mockTx{}
	pool := &mockTxBeginner{tx: tx}
	pub := &recordingPublisher{}
	newStore := func(db database.DBTX) OrderStore { return store }
	svc := NewOrderService(pool, newStore, pub)
	svc.now = func() time.Time { return fixedNow }
	return svc, tx, pub
}

func basicCheckout(buyer Buyer, lines ...CartLine) CheckoutRequest {
	return CheckoutRequest{
		Buyer: buyer,
		Contact: Contact{
			Name: "Jane", Address: "5 Elm St", City: "Springfield",
		},
		Lines: lines,
	}
}

// =====================
// Checkout validation
// =====================

func TestCheckout_EmptyCart(t *testing.T) {
	svc, _, _ := newTestService(seededStore())
	_, err := svc.Checkout(context.Background(), basicCheckout(RegisteredBuyer{UserID: 5}))
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got: %v", err)
	}
}

func TestCheckout_MissingBuyer(t *testing.T) {
	svc, _, _ := newTestService(seededStore())
	_, err := svc.Checkout(context.Background(), basicCheckout(nil, CartLine{ListingID: farmListingID, Quantity: 1, UnitPrice: dec("3.5")}))
	if !errors.Is(err, ErrMissingBuyer) {
		t.Fatalf("expected ErrMissingBuyer, got: %v", err)
	}
}

func TestCheckout_ZeroQuantity(t *testing.T) {
	svc, _, _ := newTestService(seededStore())
	_, err := svc.Checkout(context.Background(), basicCheckout(RegisteredBuyer{UserID: 5}, CartLine{ListingID: farmListingID, Quantity: 0, UnitPrice: dec("3.5")}))
	if !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got: %v", err)
	}
}

func TestCheckout_InvalidPaymentMethod(t *testing.T) {
	svc, _, _ := newTestService(seededStore())
	req := basicCheckout(RegisteredBuyer{UserID: 5}, CartLine{ListingID: farmListingID, Quantity: 1, UnitPrice: dec("3.5")})
	req.PaymentMethod = "BARTER"
	_, err := svc.Checkout(context.Background(), req)
	if !errors.Is(err, ErrInvalidPaymentMethod) {
		t.Fatalf("expected ErrInvalidPaymentMethod, got: %v", err)
	}
}

func TestCheckout_UnknownListing(t *testing.T) {
	svc, _, _ := newTestService(seededStore())
	_, err := svc.Checkout(context.Background(), basicCheckout(RegisteredBuyer{UserID: 5}, CartLine{ListingID: 999, Quantity: 1, UnitPrice: dec("1")}))
	if !errors.Is(err, ErrListingNotFound) {
		t.Fatalf("expected ErrListingNotFound, got: %v", err)
	}
}

func TestCheckout_InsufficientStock(t *testing.T) {
	svc, tx, pub := newTestService(seededStore())
	_, err := svc.Checkout(context.Background(), basicCheckout(RegisteredBuyer{UserID: 5}, CartLine{ListingID: farmListingID, Quantity: 51, UnitPrice: dec("3.50")}))
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got: %v", err)
	}
	if err.Error() != "items[0]: Insufficient stock for some products" {
		t.Errorf("unexpected message: %q", err.Error())
	}
	if tx.committed != 0 {
		t.Error("transaction must not commit")
	}
	if len(pub.events) != 0 {
		t.Error("no event should be published")
	}
}

func TestCheckout_DuplicateLinesShareStock(t *testing.T) {
	svc, _, _ := newTestService(seededStore())
	_, err := svc.Checkout(context.Background(), basicCheckout(RegisteredBuyer{UserID: 5},
		CartLine{ListingID: farmListingID, Quantity: 30, UnitPrice: dec("3.50")},
		CartLine{ListingID: farmListingID, Quantity: 30, UnitPrice: dec("3.50")},
	))
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got: %v", err)
	}
}

func TestCheckout_PriceChanged(t *testing.T) {
	svc, _, _ := newTestService(seededStore())
	_, err := svc.Checkout(context.Background(), basicCheckout(RegisteredBuyer{UserID: 5}, CartLine{ListingID: farmListingID, Quantity: 1, UnitPrice: dec("3.00")}))
	if !errors.Is(err, ErrPriceChanged) {
		t.Fatalf("expected ErrPriceChanged, got: %v", err)
	}
}

// =====================
// Checkout success
// =====================

func TestCheckout_TotalAndStock(t *testing.T) {
	store := seededStore()
	svc, tx, pub := newTestService(store)

	result, err := svc.Checkout(context.Background(), basicCheckout(RegisteredBuyer{UserID: 5},
		CartLine{ListingID: farmListingID, Quantity: 2, UnitPrice: dec("3.5")},
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !numericEquals(result.Order.TotalPrice, "7.00") {
		t.Errorf("expected total 7.00, got %s", numericToDecimal(result.Order.TotalPrice))
	}
	if got := store.farmListings[farmListingID].Stock; got != 48 {
		t.Errorf("expected stock 48, got %d", got)
	}
	if result.Order.OrderType != enum.OrderTypeStandard || result.Order.Status != enum.OrderStatusPending {
		t.Errorf("unexpected type/status: %s/%s", result.Order.OrderType, result.Order.Status)
	}
	if result.Order.PaymentMethod != enum.PaymentMethodCash {
		t.Errorf("expected default payment CASH, got %s", result.Order.PaymentMethod)
	}
	if !result.Order.BuyerID.Valid || result.Order.BuyerID.Int64 != 5 || result.Order.AnonymousEmail.Valid {
		t.Errorf("buyer columns wrong: %+v %+v", result.Order.BuyerID, result.Order.AnonymousEmail)
	}
	if !regexp.MustCompile(`^FL-20260501-[0-9A-F]{8}$`).MatchString(result.Order.OrderNumber) {
		t.Errorf("unexpected order number %q", result.Order.OrderNumber)
	}

	if len(result.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(result.Items))
	}
	item := result.Items[0]
	if item.ProductName != "Heirloom Tomatoes" || item.SellerName != "Green Acres" {
		t.Errorf("snapshot wrong: %s / %s", item.ProductName, item.SellerName)
	}
	if !item.FarmerID.Valid || item.FarmerID.Int64 != farmerID {
		t.Errorf("expected farmer %d, got %+v", farmerID, item.FarmerID)
	}
	if item.Status != enum.OrderItemStatusActive {
		t.Errorf("expected ACTIVE item, got %s", item.Status)
	}

	if tx.committed != 1 {
		t.Errorf("expected 1 commit, got %d", tx.committed)
	}
	if len(store.history) != 1 || store.history[0].Action != enum.HistoryOrderCreated {
		t.Errorf("expected ORDER_CREATED history, got %+v", store.history)
	}
	if len(pub.events) != 1 || pub.events[0].Type != events.TypeOrderCreated {
		t.Fatalf("expected order.created event, got %+v", pub.events)
	}
	if pub.events[0].TotalPrice != "7.00" || len(pub.events[0].FarmerIDs) != 1 || pub.events[0].FarmerIDs[0] != farmerID {
		t.Errorf("event payload wrong: %+v", pub.events[0])
	}
}

func TestCheckout_TotalIsSumOfLines(t *testing.T) {
	store := seededStore()
	svc, _, pub := newTestService(store)

	// Lines out of listing-id order; items keep cart order.
	result, err := svc.Checkout(context.Background(), basicCheckout(GuestBuyer{Email: "guest@example.com"},
		CartLine{ListingID: farmListingID + 1, Quantity: 4, UnitPrice: dec("1.25")},
		CartLine{ListingID: farmListingID, Quantity: 3, UnitPrice: dec("3.50")},
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !numericEquals(result.Order.TotalPrice, "15.50") {
		t.Errorf("expected total 15.50, got %s", numericToDecimal(result.Order.TotalPrice))
	}
	if result.Items[0].ListingID != farmListingID+1 || result.Items[1].ListingID != farmListingID {
		t.Errorf("items out of cart order: %d, %d", result.Items[0].ListingID, result.Items[1].ListingID)
	}
	if result.Order.BuyerID.Valid || result.Order.AnonymousEmail.String != "guest@example.com" {
		t.Errorf("guest columns wrong: %+v %+v", result.Order.BuyerID, result.Order.AnonymousEmail)
	}
	if store.history[0].UserID.Valid {
		t.Error("guest history entry must have no actor")
	}
	if len(pub.events[0].FarmerIDs) != 2 {
		t.Errorf("expected two farmers in event, got %v", pub.events[0].FarmerIDs)
	}
}

func TestCheckout_RetriesOrderNumberConflict(t *testing.T) {
	store := seededStore()
	attempts := 0
	store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		attempts++
		if attempts < 3 {
			return database.Order{}, &pgconn.PgError{Code: "23505", ConstraintName: "orders_order_number_key"}
		}
		return database.Order{ID: 1, OrderNumber: arg.OrderNumber, TotalPrice: arg.TotalPrice}, nil
	}
	svc, _, _ := newTestService(store)

	_, err := svc.Checkout(context.Background(), basicCheckout(RegisteredBuyer{UserID: 5},
		CartLine{ListingID: farmListingID, Quantity: 1, UnitPrice: dec("3.50")},
	))
	if err != nil {
		t.Fatalf("expected success on 3rd attempt, got: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestCheckout_GivesUpAfterRepeatedConflicts(t *testing.T) {
	store := seededStore()
	conflict := &pgconn.PgError{Code: "23505", ConstraintName: "orders_order_number_key"}
	store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		return database.Order{}, conflict
	}
	svc, _, _ := newTestService(store)

	_, err := svc.Checkout(context.Background(), basicCheckout(RegisteredBuyer{UserID: 5},
		CartLine{ListingID: farmListingID, Quantity: 1, UnitPrice: dec("3.50")},
	))
	if !isOrderNumberConflict(err) {
		t.Fatalf("expected order number conflict, got: %v", err)
	}
}

func TestCheckout_PublishFailureDoesNotFail(t *testing.T) {
	store := seededStore()
	svc, _, pub := newTestService(store)
	pub.err = errors.New("broker down")

	if _, err := svc.Checkout(context.Background(), basicCheckout(RegisteredBuyer{UserID: 5},
		CartLine{ListingID: farmListingID, Quantity: 1, UnitPrice: dec("3.50")},
	)); err != nil {
		t.Fatalf("publish failure must not fail checkout: %v", err)
	}
}

func TestCheckout_BeginError(t *testing.T) {
	store := seededStore()
	svc := NewOrderService(&mockTxBeginner{err: errors.New("pool closed")}, func(db database.DBTX) OrderStore { return store }, nil)
	_, err := svc.Checkout(context.Background(), basicCheckout(RegisteredBuyer{UserID: 5},
		CartLine{ListingID: farmListingID, Quantity: 1, UnitPrice: dec("3.50")},
	))
	if err == nil {
		t.Fatal("expected error")
	}
}

// =====================
// Preorder checkout
// =====================

func TestCheckoutPreorder_Success(t *testing.T) {
	store := seededStore()
	svc, _, _ := newTestService(store)

	result, err := svc.CheckoutPreorder(context.Background(), PreorderRequest{
		Buyer:   GuestBuyer{Email: "g@example.com"},
		EventID: eventID,
		Contact: Contact{Name: "Guest", Address: "ignored", City: "ignored"},
		Lines:   []CartLine{{ListingID: eventListing, Quantity: 5, UnitPrice: dec("2.00")}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	o := result.Order
	if o.OrderType != enum.OrderTypePreorder || o.PaymentMethod != enum.PaymentMethodCash {
		t.Errorf("unexpected type/payment: %s/%s", o.OrderType, o.PaymentMethod)
	}
	if o.DeliveryAddress != "1 Market Sq" || o.DeliveryCity != "Springfield" || o.DeliveryPostalCode.String != "12345" {
		t.Errorf("delivery not copied from event: %s %s %s", o.DeliveryAddress, o.DeliveryCity, o.DeliveryPostalCode.String)
	}
	if !o.EventID.Valid || o.EventID.Int64 != eventID {
		t.Errorf("expected event id %d, got %+v", eventID, o.EventID)
	}
	if !numericEquals(o.TotalPrice, "10.00") {
		t.Errorf("expected total 10.00, got %s", numericToDecimal(o.TotalPrice))
	}
	if got := store.eventListings[eventListing].Stock; got != 15 {
		t.Errorf("expected event stock 15, got %d", got)
	}
	if result.Items[0].SellerName != "Spring Market" {
		t.Errorf("expected event name as seller, got %s", result.Items[0].SellerName)
	}
	if result.Event == nil || result.Event.ID != eventID {
		t.Error("expected event in result")
	}
}

func TestCheckoutPreorder_EventNotFound(t *testing.T) {
	svc, _, _ := newTestService(seededStore())
	_, err := svc.CheckoutPreorder(context.Background(), PreorderRequest{
		Buyer:   RegisteredBuyer{UserID: 5},
		EventID: 404,
		Lines:   []CartLine{{ListingID: eventListing, Quantity: 1, UnitPrice: dec("2.00")}},
	})
	if !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got: %v", err)
	}
}

func TestCheckoutPreorder_ListingFromOtherEvent(t *testing.T) {
	store := seededStore()
	store.eventListings[eventListing].EventID = eventID + 1
	svc, _, _ := newTestService(store)
	_, err := svc.CheckoutPreorder(context.Background(), PreorderRequest{
		Buyer:   RegisteredBuyer{UserID: 5},
		EventID: eventID,
		Lines:   []CartLine{{ListingID: eventListing, Quantity: 1, UnitPrice: dec("2.00")}},
	})
	if !errors.Is(err, ErrEventMismatch) {
		t.Fatalf("expected ErrEventMismatch, got: %v", err)
	}
}

func TestCheckoutPreorder_EventEnded(t *testing.T) {
	store := seededStore()
	ev := store.events[eventID]
	ev.EndDate = fixedNow
	store.events[eventID] = ev
	svc, _, _ := newTestService(store)
	_, err := svc.CheckoutPreorder(context.Background(), PreorderRequest{
		Buyer:   RegisteredBuyer{UserID: 5},
		EventID: eventID,
		Lines:   []CartLine{{ListingID: eventListing, Quantity: 1, UnitPrice: dec("2.00")}},
	})
	if !errors.Is(err, ErrEventClosed) {
		t.Fatalf("expected ErrEventClosed, got: %v", err)
	}
}

func TestCheckoutPreorder_InsufficientStock(t *testing.T) {
	svc, _, _ := newTestService(seededStore())
	_, err := svc.CheckoutPreorder(context.Background(), PreorderRequest{
		Buyer:   RegisteredBuyer{UserID: 5},
		EventID: eventID,
		Lines:   []CartLine{{ListingID: eventListing, Quantity: 21, UnitPrice: dec("2.00")}},
	})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got: %v", err)
	}
}

func TestNewOrderNumberFormat(t *testing.T) {
	a := newOrderNumber(fixedNow)
	b := newOrderNumber(fixedNow)
	re := regexp.MustCompile(`^FL-20260501-[0-9A-F]{8}$`)
	if !re.MatchString(a) || !re.MatchString(b) {
		t.Fatalf("unexpected format: %s %s", a, b)
	}
	if a == b {
		t.Error("order numbers should differ")
	}
}

func TestIsOrderNumberConflict(t *testing.T) {
	if isOrderNumberConflict(errors.New("boom")) {
		t.Error("plain error is not a conflict")
	}
	if isOrderNumberConflict(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}) {
		t.Error("other unique constraint is not a conflict")
	}
	if !isOrderNumberConflict(&pgconn.PgError{Code: "23505", ConstraintName: "orders_order_number_key"}) {
		t.Error("order number constraint should be a conflict")
	}
}
