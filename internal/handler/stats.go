package handler

import (
	"context"
	"net/http"

	"github.com/farmlink/api/internal/database"
	"github.com/go-chi/chi/v5"
)

// StatsStore defines the database methods needed by the public stats handler.
type StatsStore interface {
	GetPublicStats(ctx context.Context) (database.GetPublicStatsRow, error)
}

// StatsHandler serves marketplace-wide counters.
type StatsHandler struct {
	store StatsStore
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(store StatsStore) *StatsHandler {
	return &StatsHandler{store: store}
}

// RegisterRoutes registers stats endpoints. Expected to be mounted at /api/stats.
func (h *StatsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Get)
}

type publicStatsResponse struct {
	FarmerCount   int64   `json:"farmerCount"`
	FarmCount     int64   `json:"farmCount"`
	ProductCount  int64   `json:"productCount"`
	OrderCount    int64   `json:"orderCount"`
	AverageRating *string `json:"averageRating"`
}

// Get handles GET /api/stats. averageRating is null until the first review.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	row, err := h.store.GetPublicStats(r.Context())
	if err != nil {
		writeInternal(w, "get public stats", err)
		return
	}

	resp := publicStatsResponse{
		FarmerCount:  row.FarmerCount,
		FarmCount:    row.FarmCount,
		ProductCount: row.ProductCount,
		OrderCount:   row.OrderCount,
	}
	if row.AverageRating.Valid {
		s := numericToString(row.AverageRating)
		resp.AverageRating = &s
	}
	writeJSON(w, http.StatusOK, resp)
}
