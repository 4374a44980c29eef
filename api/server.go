// Package api exposes the management REST surface: webhook registration and
// lifecycle, delivery history, and dead letter queue inspection. Handlers are
// thin adapters over the webhook service and the stores; they never touch the
// delivery engine directly.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/delivery"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/dlq"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/ext"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/webhook"
)

// Server holds all dependencies for the REST API handlers.
type Server struct {
	webhookSvc *webhook.Service
	ledger     delivery.Store
	dlqStore   dlq.Store
	extensions *ext.Registry
	logger     *slog.Logger
}

// New creates an API Server backed by the provided service and stores.
func New(webhookSvc *webhook.Service, ledger delivery.Store, dlqStore dlq.Store, extensions *ext.Registry, logger *slog.Logger) *Server {
	return &Server{
		webhookSvc: webhookSvc,
		ledger:     ledger,
		dlqStore:   dlqStore,
		extensions: extensions,
		logger:     logger,
	}
}

// Mount registers all API routes under the given router.
func (s *Server) Mount(r chi.Router) {
	// Webhook registry
	r.Post("/webhooks", s.handleCreateWebhook)
	r.Get("/webhooks", s.handleListWebhooks)
	r.Get("/webhooks/{webhookID}", s.handleGetWebhook)
	r.Post("/webhooks/{webhookID}/deactivate", s.handleDeactivateWebhook)

	// Delivery ledger
	r.Get("/webhooks/{webhookID}/deliveries", s.handleListDeliveries)

	// Dead letter queue
	r.Get("/dlq", s.handleListDLQ)
	r.Get("/dlq/count", s.handleCountDLQ)
}

// Handler returns an http.Handler with all routes mounted under /v1.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Route("/v1", s.Mount)
	return r
}

// ─── Shared helpers ───────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// queryInt parses an integer query parameter, falling back to def when the
// parameter is absent or malformed.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
