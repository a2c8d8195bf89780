package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hthomas22/size-agent/internal/messaging"
	"github.com/hthomas22/size-agent/internal/shopify"
	"github.com/hthomas22/size-agent/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger           *logging.Logger
	ShopifyHandler   *shopify.Handler
	MessagingHandler *messaging.Handler
	MetricsHandler   http.Handler
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", healthCheck)

	r.Route("/webhook", func(r chi.Router) {
		r.Post("/order", cfg.ShopifyHandler.OrderWebhook)
		r.Post("/reply", cfg.MessagingHandler.ReplyWebhook)
	})

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
