package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	hookrelay "github.com/blitzy-public-samples/mca-solution-fku9fu-sub001"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/delivery"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/event"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/id"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/webhook"
)

type webhookRequest struct {
	URL    string   `json:"url"`
	Secret string   `json:"secret"`
	Events []string `json:"events"`
}

// webhookResponse mirrors webhook.Config without the signing secret. The
// secret is write-only: accepted at registration, never readable back.
type webhookResponse struct {
	ID        id.WebhookID `json:"id"`
	URL       string       `json:"url"`
	Events    []event.Type `json:"events"`
	Active    bool         `json:"active"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func newWebhookResponse(c *webhook.Config) webhookResponse {
	return webhookResponse{
		ID:        c.ID,
		URL:       c.URL,
		Events:    c.Events,
		Active:    c.Active,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func (s *Server) handleCreateWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	events := make([]event.Type, len(req.Events))
	for i, e := range req.Events {
		events[i] = event.Type(e)
	}
	c := &webhook.Config{
		URL:    req.URL,
		Secret: req.Secret,
		Events: events,
	}

	if err := s.webhookSvc.Create(r.Context(), c); err != nil {
		var ve *hookrelay.ValidationError
		switch {
		case errors.As(err, &ve):
			writeError(w, http.StatusBadRequest, ve.Error())
		case errors.Is(err, hookrelay.ErrWebhookExists):
			writeError(w, http.StatusConflict, "webhook already exists")
		default:
			s.logger.Error("create webhook failed", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to create webhook")
		}
		return
	}
	writeJSON(w, http.StatusCreated, newWebhookResponse(c))
}

func (s *Server) handleListWebhooks(w http.ResponseWriter, r *http.Request) {
	opts := webhook.ListOpts{
		Limit:  queryInt(r, "limit", 100),
		Offset: queryInt(r, "offset", 0),
	}
	configs, err := s.webhookSvc.List(r.Context(), opts)
	if err != nil {
		s.logger.Error("list webhooks failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list webhooks")
		return
	}
	out := make([]webhookResponse, len(configs))
	for i, c := range configs {
		out[i] = newWebhookResponse(c)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetWebhook(w http.ResponseWriter, r *http.Request) {
	webhookID, err := id.ParseWebhookID(chi.URLParam(r, "webhookID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook id")
		return
	}

	c, err := s.webhookSvc.Get(r.Context(), webhookID)
	if err != nil {
		if errors.Is(err, hookrelay.ErrWebhookNotFound) {
			writeError(w, http.StatusNotFound, "webhook not found")
			return
		}
		s.logger.Error("get webhook failed", "webhook_id", webhookID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get webhook")
		return
	}
	writeJSON(w, http.StatusOK, newWebhookResponse(c))
}

func (s *Server) handleDeactivateWebhook(w http.ResponseWriter, r *http.Request) {
	webhookID, err := id.ParseWebhookID(chi.URLParam(r, "webhookID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook id")
		return
	}

	c, err := s.webhookSvc.Deactivate(r.Context(), webhookID)
	if err != nil {
		if errors.Is(err, hookrelay.ErrWebhookNotFound) {
			writeError(w, http.StatusNotFound, "webhook not found")
			return
		}
		s.logger.Error("deactivate webhook failed", "webhook_id", webhookID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to deactivate webhook")
		return
	}
	s.extensions.EmitWebhookDeactivated(r.Context(), c)
	writeJSON(w, http.StatusOK, newWebhookResponse(c))
}

func (s *Server) handleListDeliveries(w http.ResponseWriter, r *http.Request) {
	webhookID, err := id.ParseWebhookID(chi.URLParam(r, "webhookID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook id")
		return
	}
	if _, err := s.webhookSvc.Get(r.Context(), webhookID); err != nil {
		if errors.Is(err, hookrelay.ErrWebhookNotFound) {
			writeError(w, http.StatusNotFound, "webhook not found")
			return
		}
		s.logger.Error("get webhook failed", "webhook_id", webhookID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list deliveries")
		return
	}

	opts := delivery.ListOpts{
		Limit:  queryInt(r, "limit", 100),
		Offset: queryInt(r, "offset", 0),
	}
	attempts, err := s.ledger.ListAttemptsByWebhook(r.Context(), webhookID, opts)
	if err != nil {
		s.logger.Error("list deliveries failed", "webhook_id", webhookID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list deliveries")
		return
	}
	writeJSON(w, http.StatusOK, attempts)
}
