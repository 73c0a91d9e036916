package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/farmlink/api/internal/database"
	"github.com/farmlink/api/internal/enum"
	"github.com/farmlink/api/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const farmerTopProducts = 5

// FarmerStore defines the database methods needed by farmer handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type FarmerStore interface {
	ListFarmerOrderItems(ctx context.Context, arg database.ListFarmerOrderItemsParams) ([]database.ListFarmerOrderItemsRow, error)
	GetFarmerStats(ctx context.Context, farmerID int64) (database.GetFarmerStatsRow, error)
	GetFarmerTopProducts(ctx context.Context, arg database.GetFarmerTopProductsParams) ([]database.GetFarmerTopProductsRow, error)
	GetFarmProductListing(ctx context.Context, id int64) (database.FarmProductListing, error)
	GetEventProductListing(ctx context.Context, id int64) (database.EventProductListing, error)
	UpdateFarmProduct(ctx context.Context, arg database.UpdateListingParams) (database.FarmProduct, error)
	UpdateEventProduct(ctx context.Context, arg database.UpdateListingParams) (database.EventProduct, error)
}

// FarmerHandler serves the farmer dashboard: sold items, sales stats and
// listing maintenance. Routes expect Authenticate and RequireRole(FARMER)
// to run first.
type FarmerHandler struct {
	store FarmerStore
}

// NewFarmerHandler creates a new FarmerHandler.
func NewFarmerHandler(store FarmerStore) *FarmerHandler {
	return &FarmerHandler{store: store}
}

// RegisterRoutes registers farmer endpoints. Expected to be mounted at /api/farmer.
func (h *FarmerHandler) RegisterRoutes(r chi.Router) {
	r.Get("/orders", h.ListOrders)
	r.Get("/stats", h.Stats)
	r.Patch("/farm-products/{id}", h.UpdateFarmProduct)
	r.Patch("/event-products/{id}", h.UpdateEventProduct)
}

// --- Request / Response types ---

type updateListingRequest struct {
	Price *decimal.Decimal `json:"price" validate:"omitempty,gt=0"`
	Stock *int32           `json:"stock" validate:"omitempty,gte=0"`
}

type farmerOrderItemResponse struct {
	ID          int64     `json:"id"`
	OrderID     int64     `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	OrderType   string    `json:"orderType"`
	OrderStatus string    `json:"orderStatus"`
	ProductName string    `json:"productName"`
	Quantity    int32     `json:"quantity"`
	UnitPrice   string    `json:"unitPrice"`
	LineTotal   string    `json:"lineTotal"`
	Status      string    `json:"status"`
	ContactName string    `json:"contactName"`
	BuyerEmail  *string   `json:"buyerEmail"`
	CreatedAt   time.Time `json:"createdAt"`
}

type farmerOrderListResponse struct {
	Items  []farmerOrderItemResponse `json:"items"`
	Limit  int                       `json:"limit"`
	Offset int                       `json:"offset"`
}

type topProductResponse struct {
	ProductID   int64  `json:"productId"`
	ProductName string `json:"productName"`
	UnitsSold   int64  `json:"unitsSold"`
	Revenue     string `json:"revenue"`
}

type farmerStatsResponse struct {
	Revenue       string               `json:"revenue"`
	UnitsSold     int64                `json:"unitsSold"`
	CanceledItems int64                `json:"canceledItems"`
	OrderCount    int64                `json:"orderCount"`
	TopProducts   []topProductResponse `json:"topProducts"`
}

type listingUpdateResponse struct {
	ID    int64  `json:"id"`
	Price string `json:"price"`
	Stock int32  `json:"stock"`
}

// --- Handlers ---

// ListOrders handles GET /api/farmer/orders?status=ACTIVE|CANCELED.
func (h *FarmerHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	limit, offset := parsePagination(r)

	var status pgtype.Text
	if s := r.URL.Query().Get("status"); s != "" {
		if s != enum.OrderItemStatusActive && s != enum.OrderItemStatusCanceled {
			writeMessage(w, http.StatusBadRequest, "Invalid status filter")
			return
		}
		status = pgtype.Text{String: s, Valid: true}
	}

	rows, err := h.store.ListFarmerOrderItems(r.Context(), database.ListFarmerOrderItemsParams{
		FarmerID: claims.UserID,
		Status:   status,
		Limit:    int32(limit),
		Offset:   int32(offset),
	})
	if err != nil {
		writeInternal(w, "list farmer order items", err, zap.Int64("farmer_id", claims.UserID))
		return
	}

	resp := farmerOrderListResponse{
		Items:  make([]farmerOrderItemResponse, len(rows)),
		Limit:  limit,
		Offset: offset,
	}
	for i, row := range rows {
		unit := numericToDecimal(row.UnitPrice)
		resp.Items[i] = farmerOrderItemResponse{
			ID:          row.ID,
			OrderID:     row.OrderID,
			OrderNumber: row.OrderNumber,
			OrderType:   row.OrderType,
			OrderStatus: row.OrderStatus,
			ProductName: row.ProductName,
			Quantity:    row.Quantity,
			UnitPrice:   unit.StringFixed(2),
			LineTotal:   unit.Mul(decimal.NewFromInt32(row.Quantity)).StringFixed(2),
			Status:      row.Status,
			ContactName: row.ContactName,
			BuyerEmail:  textPtr(row.BuyerEmail),
			CreatedAt:   row.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Stats handles GET /api/farmer/stats.
func (h *FarmerHandler) Stats(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	stats, err := h.store.GetFarmerStats(r.Context(), claims.UserID)
	if err != nil {
		writeInternal(w, "get farmer stats", err, zap.Int64("farmer_id", claims.UserID))
		return
	}
	top, err := h.store.GetFarmerTopProducts(r.Context(), database.GetFarmerTopProductsParams{
		FarmerID: claims.UserID,
		Limit:    farmerTopProducts,
	})
	if err != nil {
		writeInternal(w, "get farmer top products", err, zap.Int64("farmer_id", claims.UserID))
		return
	}

	resp := farmerStatsResponse{
		Revenue:       numericToString(stats.Revenue),
		UnitsSold:     stats.UnitsSold,
		CanceledItems: stats.CanceledItems,
		OrderCount:    stats.OrderCount,
		TopProducts:   make([]topProductResponse, len(top)),
	}
	for i, p := range top {
		resp.TopProducts[i] = topProductResponse{
			ProductID:   p.ProductID,
			ProductName: p.ProductName,
			UnitsSold:   p.UnitsSold,
			Revenue:     numericToString(p.Revenue),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateFarmProduct handles PATCH /api/farmer/farm-products/{id}.
func (h *FarmerHandler) UpdateFarmProduct(w http.ResponseWriter, r *http.Request) {
	id, params, ok := h.decodeListingUpdate(w, r)
	if !ok {
		return
	}
	claims := middleware.ClaimsFromContext(r.Context())

	listing, err := h.store.GetFarmProductListing(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeMessage(w, http.StatusNotFound, "Product not found")
			return
		}
		writeInternal(w, "get farm listing", err, zap.Int64("listing_id", id))
		return
	}
	if listing.OwnerID != claims.UserID {
		writeMessage(w, http.StatusForbidden, "Not your product")
		return
	}

	updated, err := h.store.UpdateFarmProduct(r.Context(), params)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeMessage(w, http.StatusNotFound, "Product not found")
			return
		}
		writeInternal(w, "update farm listing", err, zap.Int64("listing_id", id))
		return
	}
	writeJSON(w, http.StatusOK, listingUpdateResponse{
		ID:    updated.ID,
		Price: numericToString(updated.Price),
		Stock: updated.Stock,
	})
}

// UpdateEventProduct handles PATCH /api/farmer/event-products/{id}.
func (h *FarmerHandler) UpdateEventProduct(w http.ResponseWriter, r *http.Request) {
	id, params, ok := h.decodeListingUpdate(w, r)
	if !ok {
		return
	}
	claims := middleware.ClaimsFromContext(r.Context())

	listing, err := h.store.GetEventProductListing(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeMessage(w, http.StatusNotFound, "Product not found")
			return
		}
		writeInternal(w, "get event listing", err, zap.Int64("listing_id", id))
		return
	}
	if listing.FarmerID != claims.UserID {
		writeMessage(w, http.StatusForbidden, "Not your product")
		return
	}

	updated, err := h.store.UpdateEventProduct(r.Context(), params)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeMessage(w, http.StatusNotFound, "Product not found")
			return
		}
		writeInternal(w, "update event listing", err, zap.Int64("listing_id", id))
		return
	}
	writeJSON(w, http.StatusOK, listingUpdateResponse{
		ID:    updated.ID,
		Price: numericToString(updated.Price),
		Stock: updated.Stock,
	})
}

// decodeListingUpdate parses the listing id and body. Fields left out of the
// body stay unchanged.
func (h *FarmerHandler) decodeListingUpdate(w http.ResponseWriter, r *http.Request) (int64, database.UpdateListingParams, bool) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeMessage(w, http.StatusBadRequest, "Invalid product ID")
		return 0, database.UpdateListingParams{}, false
	}

	var req updateListingRequest
	if !decodeAndValidate(w, r, &req) {
		return 0, database.UpdateListingParams{}, false
	}
	if req.Price == nil && req.Stock == nil {
		writeJSON(w, http.StatusBadRequest, validationResponse{
			Message: "Validation failed",
			Details: []fieldError{{Path: "price", Message: "price or stock is required"}},
		})
		return 0, database.UpdateListingParams{}, false
	}

	params := database.UpdateListingParams{ID: id}
	if req.Price != nil {
		params.Price = decimalToNumeric(*req.Price)
	}
	if req.Stock != nil {
		params.Stock = pgtype.Int4{Int32: *req.Stock, Valid: true}
	}
	return id, params, true
}
