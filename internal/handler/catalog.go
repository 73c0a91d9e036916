package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/farmlink/api/internal/database"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// CatalogStore defines the database methods needed by catalog handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type CatalogStore interface {
	ListFarms(ctx context.Context) ([]database.Farm, error)
	GetFarm(ctx context.Context, id int64) (database.Farm, error)
	ListFarmListings(ctx context.Context, farmID int64) ([]database.ListingRow, error)
	ListOpenEvents(ctx context.Context, now time.Time) ([]database.Event, error)
	GetEvent(ctx context.Context, id int64) (database.Event, error)
	ListEventListings(ctx context.Context, eventID int64) ([]database.ListingRow, error)
}

// CatalogHandler serves the public farm and event catalog.
type CatalogHandler struct {
	store CatalogStore
	now   func() time.Time
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(store CatalogStore) *CatalogHandler {
	return &CatalogHandler{store: store, now: time.Now}
}

// RegisterFarmRoutes registers farm endpoints. Expected to be mounted at /api/farms.
func (h *CatalogHandler) RegisterFarmRoutes(r chi.Router) {
	r.Get("/", h.ListFarms)
	r.Get("/{id}/products", h.ListFarmProducts)
}

// RegisterEventRoutes registers event endpoints. Expected to be mounted at /api/events.
func (h *CatalogHandler) RegisterEventRoutes(r chi.Router) {
	r.Get("/", h.ListEvents)
	r.Get("/{id}/products", h.ListEventProducts)
}

// --- Response types ---

type farmResponse struct {
	ID          int64   `json:"id"`
	OwnerID     int64   `json:"ownerId"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Address     string  `json:"address"`
	City        string  `json:"city"`
	ImageURL    *string `json:"imageUrl"`
}

type eventResponse struct {
	ID          int64     `json:"id"`
	FarmerID    int64     `json:"farmerId"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Address     string    `json:"address"`
	City        string    `json:"city"`
	PostalCode  *string   `json:"postalCode"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"`
}

type listingResponse struct {
	ID          int64   `json:"id"`
	ProductID   int64   `json:"productId"`
	ProductName string  `json:"productName"`
	Category    string  `json:"category"`
	Unit        string  `json:"unit"`
	ImageURL    *string `json:"imageUrl"`
	Price       string  `json:"price"`
	Stock       int32   `json:"stock"`
}

// --- Handlers ---

// ListFarms handles GET /api/farms.
func (h *CatalogHandler) ListFarms(w http.ResponseWriter, r *http.Request) {
	farms, err := h.store.ListFarms(r.Context())
	if err != nil {
		writeInternal(w, "list farms", err)
		return
	}

	resp := make([]farmResponse, len(farms))
	for i, f := range farms {
		resp[i] = farmResponse{
			ID:          f.ID,
			OwnerID:     f.OwnerID,
			Name:        f.Name,
			Description: textPtr(f.Description),
			Address:     f.Address,
			City:        f.City,
			ImageURL:    textPtr(f.ImageUrl),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListFarmProducts handles GET /api/farms/{id}/products.
func (h *CatalogHandler) ListFarmProducts(w http.ResponseWriter, r *http.Request) {
	farmID, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeMessage(w, http.StatusBadRequest, "Invalid farm ID")
		return
	}

	if _, err := h.store.GetFarm(r.Context(), farmID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeMessage(w, http.StatusNotFound, "Farm not found")
			return
		}
		writeInternal(w, "get farm", err, zap.Int64("farm_id", farmID))
		return
	}

	listings, err := h.store.ListFarmListings(r.Context(), farmID)
	if err != nil {
		writeInternal(w, "list farm listings", err, zap.Int64("farm_id", farmID))
		return
	}
	writeJSON(w, http.StatusOK, toListingResponses(listings))
}

// ListEvents handles GET /api/events: upcoming and running events.
func (h *CatalogHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.store.ListOpenEvents(r.Context(), h.now())
	if err != nil {
		writeInternal(w, "list open events", err)
		return
	}

	resp := make([]eventResponse, len(events))
	for i, e := range events {
		resp[i] = eventResponse{
			ID:          e.ID,
			FarmerID:    e.FarmerID,
			Name:        e.Name,
			Description: textPtr(e.Description),
			Address:     e.Address,
			City:        e.City,
			PostalCode:  textPtr(e.PostalCode),
			StartDate:   e.StartDate,
			EndDate:     e.EndDate,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListEventProducts handles GET /api/events/{id}/products.
func (h *CatalogHandler) ListEventProducts(w http.ResponseWriter, r *http.Request) {
	eventID, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeMessage(w, http.StatusBadRequest, "Invalid event ID")
		return
	}

	if _, err := h.store.GetEvent(r.Context(), eventID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeMessage(w, http.StatusNotFound, "Event not found")
			return
		}
		writeInternal(w, "get event", err, zap.Int64("event_id", eventID))
		return
	}

	listings, err := h.store.ListEventListings(r.Context(), eventID)
	if err != nil {
		writeInternal(w, "list event listings", err, zap.Int64("event_id", eventID))
		return
	}
	writeJSON(w, http.StatusOK, toListingResponses(listings))
}

func toListingResponses(rows []database.ListingRow) []listingResponse {
	resp := make([]listingResponse, len(rows))
	for i, l := range rows {
		resp[i] = listingResponse{
			ID:          l.ID,
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Category:    l.Category,
			Unit:        l.Unit,
			ImageURL:    textPtr(l.ImageUrl),
			Price:       numericToString(l.Price),
			Stock:       l.Stock,
		}
	}
	return resp
}
