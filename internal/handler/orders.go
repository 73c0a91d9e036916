package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/farmlink/api/internal/database"
	"github.com/farmlink/api/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderStore defines the database methods needed by order read handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	GetOrderByNumber(ctx context.Context, orderNumber string) (database.GetOrderByNumberRow, error)
	ListOrdersByBuyer(ctx context.Context, arg database.ListOrdersByBuyerParams) ([]database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID int64) ([]database.OrderItem, error)
	ListOrderHistory(ctx context.Context, orderID int64) ([]database.OrderHistory, error)
	GetEvent(ctx context.Context, id int64) (database.Event, error)
}

// OrderHandler serves order lookups.
type OrderHandler struct {
	store     OrderStore
	jwtSecret string
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(store OrderStore, jwtSecret string) *OrderHandler {
	return &OrderHandler{store: store, jwtSecret: jwtSecret}
}

// RegisterRoutes registers order endpoints. Expected to be mounted at /api/orders.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.With(middleware.Authenticate(h.jwtSecret)).Get("/", h.List)
	r.Get("/{orderNumber}", h.GetByNumber)
}

// --- Response types ---

type contactResponse struct {
	Name       string  `json:"name"`
	Email      *string `json:"email"`
	Phone      *string `json:"phone"`
	Address    string  `json:"address"`
	City       string  `json:"city"`
	PostalCode *string `json:"postalCode"`
}

type orderSummaryResponse struct {
	ID            int64     `json:"id"`
	OrderNumber   string    `json:"orderNumber"`
	OrderType     string    `json:"orderType"`
	Status        string    `json:"status"`
	TotalPrice    string    `json:"totalPrice"`
	PaymentMethod string    `json:"paymentMethod"`
	IsPaid        bool      `json:"isPaid"`
	IsDelivered   bool      `json:"isDelivered"`
	CreatedAt     time.Time `json:"createdAt"`
}

type orderItemResponse struct {
	ID          int64  `json:"id"`
	ProductID   int64  `json:"productId"`
	ListingID   int64  `json:"listingId"`
	ProductName string `json:"productName"`
	SellerName  string `json:"sellerName"`
	Quantity    int32  `json:"quantity"`
	UnitPrice   string `json:"unitPrice"`
	LineTotal   string `json:"lineTotal"`
	Status      string `json:"status"`
}

type orderHistoryResponse struct {
	Action    string    `json:"action"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

type orderEventResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	City      string    `json:"city"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

type orderDetailResponse struct {
	orderSummaryResponse
	Contact   contactResponse        `json:"contact"`
	Notes     *string                `json:"notes"`
	Event     *orderEventResponse    `json:"event"`
	Items     []orderItemResponse    `json:"items"`
	History   []orderHistoryResponse `json:"history"`
	UpdatedAt time.Time              `json:"updatedAt"`
}

type orderListResponse struct {
	Orders []orderSummaryResponse `json:"orders"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
}

// --- Handlers ---

// GetByNumber handles GET /api/orders/{orderNumber}.
func (h *OrderHandler) GetByNumber(w http.ResponseWriter, r *http.Request) {
	orderNumber := chi.URLParam(r, "orderNumber")

	row, err := h.store.GetOrderByNumber(r.Context(), orderNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeMessage(w, http.StatusNotFound, "Order not found")
			return
		}
		writeInternal(w, "get order by number", err, zap.String("order_number", orderNumber))
		return
	}

	order := row.Order

	items, err := h.store.ListOrderItemsByOrder(r.Context(), order.ID)
	if err != nil {
		writeInternal(w, "list order items", err, zap.Int64("order_id", order.ID))
		return
	}
	history, err := h.store.ListOrderHistory(r.Context(), order.ID)
	if err != nil {
		writeInternal(w, "list order history", err, zap.Int64("order_id", order.ID))
		return
	}

	resp := orderDetailResponse{
		orderSummaryResponse: toOrderSummary(order),
		Contact: contactResponse{
			Name:       order.ContactName,
			Email:      textPtr(row.BuyerEmail),
			Phone:      textPtr(order.ContactPhone),
			Address:    order.DeliveryAddress,
			City:       order.DeliveryCity,
			PostalCode: textPtr(order.DeliveryPostalCode),
		},
		Notes:     textPtr(order.Notes),
		Items:     make([]orderItemResponse, len(items)),
		History:   make([]orderHistoryResponse, len(history)),
		UpdatedAt: order.UpdatedAt,
	}
	for i, it := range items {
		resp.Items[i] = toOrderItemResponse(it)
	}
	for i, hst := range history {
		resp.History[i] = orderHistoryResponse{Action: hst.Action, Message: hst.Message, CreatedAt: hst.CreatedAt}
	}

	if order.EventID.Valid {
		ev, err := h.store.GetEvent(r.Context(), order.EventID.Int64)
		switch {
		case err == nil:
			resp.Event = &orderEventResponse{
				ID:        ev.ID,
				Name:      ev.Name,
				Address:   ev.Address,
				City:      ev.City,
				StartDate: ev.StartDate,
				EndDate:   ev.EndDate,
			}
		case !errors.Is(err, pgx.ErrNoRows):
			writeInternal(w, "get order event", err, zap.Int64("event_id", order.EventID.Int64))
			return
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// List handles GET /api/orders: the caller's own orders, newest first.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	limit, offset := parsePagination(r)

	orders, err := h.store.ListOrdersByBuyer(r.Context(), database.ListOrdersByBuyerParams{
		BuyerID: claims.UserID,
		Limit:   int32(limit),
		Offset:  int32(offset),
	})
	if err != nil {
		writeInternal(w, "list buyer orders", err, zap.Int64("user_id", claims.UserID))
		return
	}

	resp := orderListResponse{
		Orders: make([]orderSummaryResponse, len(orders)),
		Limit:  limit,
		Offset: offset,
	}
	for i, o := range orders {
		resp.Orders[i] = toOrderSummary(o)
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

func toOrderSummary(o database.Order) orderSummaryResponse {
	return orderSummaryResponse{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		OrderType:     o.OrderType,
		Status:        o.Status,
		TotalPrice:    numericToString(o.TotalPrice),
		PaymentMethod: o.PaymentMethod,
		IsPaid:        o.IsPaid,
		IsDelivered:   o.IsDelivered,
		CreatedAt:     o.CreatedAt,
	}
}

func toOrderItemResponse(it database.OrderItem) orderItemResponse {
	unit := numericToDecimal(it.UnitPrice)
	return orderItemResponse{
		ID:          it.ID,
		ProductID:   it.ProductID,
		ListingID:   it.ListingID,
		ProductName: it.ProductName,
		SellerName:  it.SellerName,
		Quantity:    it.Quantity,
		UnitPrice:   unit.StringFixed(2),
		LineTotal:   unit.Mul(decimal.NewFromInt32(it.Quantity)).StringFixed(2),
		Status:      it.Status,
	}
}
