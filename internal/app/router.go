package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Joseamica/avoqado-server-sub011/internal/catalog"
	"github.com/Joseamica/avoqado-server-sub011/internal/checkout"
	"github.com/Joseamica/avoqado-server-sub011/internal/inventory"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	CatalogHandler   *catalog.Handler
	InventoryHandler *inventory.Handler
	CheckoutHandler  *checkout.Handler
}

// NewRouter constructs the chi.Router. Every domain route is venue-scoped;
// venue authentication is assumed to happen at the edge in front of this
// service.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/venues/{venueID}", func(r chi.Router) {
		params.CatalogHandler.MountRoutes(r)
		params.InventoryHandler.MountRoutes(r)
		params.CheckoutHandler.MountRoutes(r)
	})

	return r
}
