package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/farmlink/api/internal/database"
	"github.com/farmlink/api/internal/enum"
	"github.com/farmlink/api/internal/middleware"
	"github.com/farmlink/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderServicer defines the service methods needed by checkout handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	Checkout(ctx context.Context, req service.CheckoutRequest) (*service.CheckoutResult, error)
	CheckoutPreorder(ctx context.Context, req service.PreorderRequest) (*service.CheckoutResult, error)
	CancelOrder(ctx context.Context, orderID, userID int64, orderType string) (database.Order, error)
	CancelItem(ctx context.Context, itemID, userID int64, orderType string) (*service.CancelItemResult, error)
}

// CheckoutHandler handles standard and preorder checkout and cancellation.
type CheckoutHandler struct {
	svc       OrderServicer
	jwtSecret string
}

// NewCheckoutHandler creates a new CheckoutHandler.
func NewCheckoutHandler(svc OrderServicer, jwtSecret string) *CheckoutHandler {
	return &CheckoutHandler{svc: svc, jwtSecret: jwtSecret}
}

// RegisterRoutes registers standard checkout endpoints.
// Expected to be mounted at /api/checkout.
func (h *CheckoutHandler) RegisterRoutes(r chi.Router) {
	h.register(r, enum.OrderTypeStandard, h.Checkout)
}

// RegisterPreorderRoutes registers preorder checkout endpoints.
// Expected to be mounted at /api/checkout-preorder.
func (h *CheckoutHandler) RegisterPreorderRoutes(r chi.Router) {
	h.register(r, enum.OrderTypePreorder, h.CheckoutPreorder)
}

func (h *CheckoutHandler) register(r chi.Router, orderType string, create http.HandlerFunc) {
	r.With(middleware.OptionalAuthenticate(h.jwtSecret)).Post("/", create)
	r.With(middleware.Authenticate(h.jwtSecret)).Patch("/{id}/cancel", h.cancelOrder(orderType))
	r.With(
		middleware.Authenticate(h.jwtSecret),
		middleware.RequireRole(enum.UserRoleFarmer),
	).Patch("/item/{id}/cancel", h.cancelItem(orderType))
}

// --- Request / Response types ---

type cartItemRequest struct {
	ProductID   int64           `json:"productId" validate:"required,gt=0"`
	Quantity    int32           `json:"quantity" validate:"required,gt=0"`
	UnitPrice   decimal.Decimal `json:"unitPrice" validate:"gt=0"`
	ProductName string          `json:"productName" validate:"max=200"`
	SellerName  string          `json:"sellerName" validate:"max=200"`
}

type userInfoRequest struct {
	BuyerID       int64  `json:"buyerId" validate:"omitempty,gt=0"`
	Email         string `json:"email" validate:"omitempty,email"`
	Name          string `json:"name" validate:"required,max=200"`
	Phone         string `json:"phone" validate:"max=50"`
	Address       string `json:"address" validate:"required,max=500"`
	City          string `json:"city" validate:"required,max=200"`
	PostalCode    string `json:"postalCode" validate:"max=20"`
	Notes         string `json:"notes" validate:"max=1000"`
	PaymentMethod string `json:"paymentMethod" validate:"omitempty,oneof=CASH CARD BANK_TRANSFER"`
}

type checkoutRequest struct {
	CartItems []cartItemRequest `json:"cartItems" validate:"dive"`
	UserInfo  userInfoRequest   `json:"userInfo"`
}

type preorderUserInfoRequest struct {
	BuyerID int64  `json:"buyerId" validate:"omitempty,gt=0"`
	Email   string `json:"email" validate:"omitempty,email"`
	Name    string `json:"name" validate:"required,max=200"`
	Phone   string `json:"phone" validate:"max=50"`
	Notes   string `json:"notes" validate:"max=1000"`
}

type preorderRequest struct {
	EventID   int64                   `json:"eventId" validate:"required,gt=0"`
	CartItems []cartItemRequest       `json:"cartItems" validate:"min=1,dive"`
	UserInfo  preorderUserInfoRequest `json:"userInfo"`
}

type checkoutResponse struct {
	OrderID     int64  `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	TotalPrice  string `json:"totalPrice"`
}

type cancelItemResponse struct {
	Message       string `json:"message"`
	NewTotalPrice string `json:"newTotalPrice"`
	OrderCanceled bool   `json:"orderCanceled"`
}

// --- Handlers ---

// Checkout handles POST /api/checkout.
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if len(req.CartItems) == 0 {
		writeMessage(w, http.StatusBadRequest, service.ErrEmptyCart.Error())
		return
	}
	buyer, ok := resolveBuyer(w, r, req.UserInfo.BuyerID, req.UserInfo.Email)
	if !ok {
		return
	}

	result, err := h.svc.Checkout(r.Context(), service.CheckoutRequest{
		Buyer: buyer,
		Contact: service.Contact{
			Name:       req.UserInfo.Name,
			Phone:      req.UserInfo.Phone,
			Address:    req.UserInfo.Address,
			City:       req.UserInfo.City,
			PostalCode: req.UserInfo.PostalCode,
			Notes:      req.UserInfo.Notes,
		},
		PaymentMethod: req.UserInfo.PaymentMethod,
		Lines:         toCartLines(req.CartItems),
	})
	if err != nil {
		writeServiceError(w, "checkout", err)
		return
	}

	writeJSON(w, http.StatusOK, checkoutResponse{
		OrderID:     result.Order.ID,
		OrderNumber: result.Order.OrderNumber,
		TotalPrice:  numericToString(result.Order.TotalPrice),
	})
}

// CheckoutPreorder handles POST /api/checkout-preorder.
func (h *CheckoutHandler) CheckoutPreorder(w http.ResponseWriter, r *http.Request) {
	var req preorderRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	buyer, ok := resolveBuyer(w, r, req.UserInfo.BuyerID, req.UserInfo.Email)
	if !ok {
		return
	}

	result, err := h.svc.CheckoutPreorder(r.Context(), service.PreorderRequest{
		Buyer:   buyer,
		EventID: req.EventID,
		Contact: service.Contact{
			Name:  req.UserInfo.Name,
			Phone: req.UserInfo.Phone,
			Notes: req.UserInfo.Notes,
		},
		Lines: toCartLines(req.CartItems),
	})
	if err != nil {
		writeServiceError(w, "checkout preorder", err)
		return
	}

	writeJSON(w, http.StatusOK, checkoutResponse{
		OrderID:     result.Order.ID,
		OrderNumber: result.Order.OrderNumber,
		TotalPrice:  numericToString(result.Order.TotalPrice),
	})
}

// cancelOrder handles PATCH /{id}/cancel for the given order type.
func (h *CheckoutHandler) cancelOrder(orderType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, ok := parseID(chi.URLParam(r, "id"))
		if !ok {
			writeMessage(w, http.StatusBadRequest, "Invalid order ID")
			return
		}
		claims := middleware.ClaimsFromContext(r.Context())

		if _, err := h.svc.CancelOrder(r.Context(), orderID, claims.UserID, orderType); err != nil {
			writeServiceError(w, "cancel order", err, zap.Int64("order_id", orderID))
			return
		}

		msg := "Order canceled successfully"
		if orderType == enum.OrderTypePreorder {
			msg = "Preorder canceled successfully"
		}
		writeMessage(w, http.StatusOK, msg)
	}
}

// cancelItem handles PATCH /item/{id}/cancel for the given order type.
func (h *CheckoutHandler) cancelItem(orderType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, ok := parseID(chi.URLParam(r, "id"))
		if !ok {
			writeMessage(w, http.StatusBadRequest, "Invalid item ID")
			return
		}
		claims := middleware.ClaimsFromContext(r.Context())

		result, err := h.svc.CancelItem(r.Context(), itemID, claims.UserID, orderType)
		if err != nil {
			writeServiceError(w, "cancel order item", err, zap.Int64("item_id", itemID))
			return
		}

		msg := "Item canceled successfully"
		if result.OrderCanceled {
			msg = "Item canceled; order canceled as no items remain"
		}
		writeJSON(w, http.StatusOK, cancelItemResponse{
			Message:       msg,
			NewTotalPrice: result.NewTotalPrice.StringFixed(2),
			OrderCanceled: result.OrderCanceled,
		})
	}
}

// --- Helpers ---

// resolveBuyer picks the order's buyer: the authenticated caller when there
// is one, otherwise a guest identified by email. A body buyerId must match
// the caller.
func resolveBuyer(w http.ResponseWriter, r *http.Request, bodyBuyerID int64, email string) (service.Buyer, bool) {
	claims := middleware.ClaimsFromContext(r.Context())
	if bodyBuyerID != 0 && (claims == nil || claims.UserID != bodyBuyerID) {
		writeMessage(w, http.StatusForbidden, service.ErrUnauthorized.Error())
		return nil, false
	}
	var userID int64
	if claims != nil {
		userID = claims.UserID
	}
	buyer, err := service.NewBuyer(userID, email)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, validationResponse{
			Message: "Validation failed",
			Details: []fieldError{{Path: "userInfo.email", Message: "is required for guest checkout"}},
		})
		return nil, false
	}
	return buyer, true
}

func toCartLines(items []cartItemRequest) []service.CartLine {
	lines := make([]service.CartLine, len(items))
	for i, it := range items {
		lines[i] = service.CartLine{
			ListingID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		}
	}
	return lines
}

// serviceErrors maps service sentinels to HTTP statuses. The sentinel's text
// is the response message.
var serviceErrors = []struct {
	err    error
	status int
}{
	{service.ErrOrderNotFound, http.StatusNotFound},
	{service.ErrItemNotFound, http.StatusNotFound},
	{service.ErrEventNotFound, http.StatusNotFound},
	{service.ErrUnauthorized, http.StatusForbidden},
	{service.ErrNotYourProduct, http.StatusForbidden},
	{service.ErrEmptyCart, http.StatusBadRequest},
	{service.ErrMissingBuyer, http.StatusBadRequest},
	{service.ErrInvalidQuantity, http.StatusBadRequest},
	{service.ErrInvalidPaymentMethod, http.StatusBadRequest},
	{service.ErrListingNotFound, http.StatusBadRequest},
	{service.ErrInsufficientStock, http.StatusBadRequest},
	{service.ErrPriceChanged, http.StatusBadRequest},
	{service.ErrEventMismatch, http.StatusBadRequest},
	{service.ErrEventClosed, http.StatusBadRequest},
	{service.ErrOrderNotCancelable, http.StatusBadRequest},
	{service.ErrItemAlreadyCanceled, http.StatusBadRequest},
	{service.ErrPreorderEventEnded, http.StatusBadRequest},
	{service.ErrFarmerEventEnded, http.StatusBadRequest},
}

func writeServiceError(w http.ResponseWriter, op string, err error, fields ...zap.Field) {
	for _, se := range serviceErrors {
		if errors.Is(err, se.err) {
			writeMessage(w, se.status, se.err.Error())
			return
		}
	}
	writeInternal(w, op, err, fields...)
}
