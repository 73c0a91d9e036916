package router

import (
	"net/http"

	"github.com/farmlink/api/internal/config"
	"github.com/farmlink/api/internal/database"
	"github.com/farmlink/api/internal/enum"
	"github.com/farmlink/api/internal/handler"
	"github.com/farmlink/api/internal/metrics"
	mw "github.com/farmlink/api/internal/middleware"
	"github.com/farmlink/api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Deps carries the collaborators the router wires into handlers.
type Deps struct {
	Queries *database.Queries
	Orders  handler.OrderServicer
	Hub     *ws.Hub
	// Limiter throttles the public checkout endpoints. Nil disables it.
	Limiter mw.Limiter
}

// New creates a Chi router with all application routes wired up.
func New(cfg *config.Config, deps Deps) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.RequestLogger(zap.L()))
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
	})
	r.Handle("/metrics", metrics.Handler())

	// WebSocket route authenticates on its own (query token, cookie or header)
	r.Method(http.MethodGet, "/ws/farmer/orders", ws.NewHandler(deps.Hub, cfg.JWTSecret, cfg.CORSOrigins))

	r.Route("/api", func(r chi.Router) {
		checkoutHandler := handler.NewCheckoutHandler(deps.Orders, cfg.JWTSecret)
		r.Route("/checkout", func(r chi.Router) {
			if deps.Limiter != nil {
				r.Use(mw.RateLimit(deps.Limiter, "checkout"))
			}
			checkoutHandler.RegisterRoutes(r)
		})
		r.Route("/checkout-preorder", func(r chi.Router) {
			if deps.Limiter != nil {
				r.Use(mw.RateLimit(deps.Limiter, "checkout-preorder"))
			}
			checkoutHandler.RegisterPreorderRoutes(r)
		})

		orderHandler := handler.NewOrderHandler(deps.Queries, cfg.JWTSecret)
		r.Route("/orders", orderHandler.RegisterRoutes)

		catalogHandler := handler.NewCatalogHandler(deps.Queries)
		r.Route("/farms", catalogHandler.RegisterFarmRoutes)
		r.Route("/events", catalogHandler.RegisterEventRoutes)

		statsHandler := handler.NewStatsHandler(deps.Queries)
		r.Route("/stats", statsHandler.RegisterRoutes)

		// Farmer-only routes
		r.Route("/farmer", func(r chi.Router) {
			r.Use(mw.Authenticate(cfg.JWTSecret))
			r.Use(mw.RequireRole(enum.UserRoleFarmer))
			farmerHandler := handler.NewFarmerHandler(deps.Queries)
			farmerHandler.RegisterRoutes(r)
		})
	})

	zap.L().Info("router initialized")
	return r
}
