package api

import (
	"io"
	"net/http"

	"hostdesk/syncengine/internal/ingest"
	"hostdesk/syncengine/internal/logging"
	"hostdesk/syncengine/internal/metrics"
	"hostdesk/syncengine/internal/middleware"
	"hostdesk/syncengine/internal/models/dtos/responses"
	"hostdesk/syncengine/internal/notify"
)

// SignatureHeader carries the hex HMAC of the delivery body.
const SignatureHeader = "X-Marketplace-Signature"

const maxBodyBytes = 1 << 20

// WebhookHandler handles marketplace delivery endpoints
type WebhookHandler struct {
	gate       *ingest.Gate
	dispatcher *notify.Dispatcher
	metrics    *metrics.MetricsRegistry
}

// NewWebhookHandler creates a new webhook handler. dispatcher and metricsReg
// may be nil.
func NewWebhookHandler(gate *ingest.Gate, dispatcher *notify.Dispatcher, metricsReg *metrics.MetricsRegistry) *WebhookHandler {
	return &WebhookHandler{
		gate:       gate,
		dispatcher: dispatcher,
		metrics:    metricsReg,
	}
}

// MarketplaceWebhook accepts one delivery from the booking marketplace.
// Every business outcome answers 200 so the marketplace never retries a
// delivery we have already decided on; only a storage failure answers 500.
//
// @Summary Ingest a marketplace delivery
// @Tags webhook
// @Accept json
// @Produce json
// @Success 200 {object} responses.IngestResponse
// @Failure 500 {object} responses.APIResponse[any]
// @Router /webhook/marketplace [post]
func (h *WebhookHandler) MarketplaceWebhook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "unreadable request body")
			return
		}

		outcome, err := h.gate.Ingest(r.Context(), body, r.Header.Get(SignatureHeader))
		if err != nil {
			h.countOutcome("error")
			logging.Error("webhook commit failed",
				"request_id", middleware.RequestIDFromContext(r.Context()),
				"error", err.Error(),
			)
			respondWithError(w, http.StatusInternalServerError, "failed to commit delivery")
			return
		}

		h.countOutcome(string(outcome.State))

		resp := &responses.IngestResponse{
			Outcome:    string(outcome.State),
			ExternalID: outcome.ExternalID,
			Table:      h.gate.TableName(),
		}

		if outcome.State == ingest.StateCommitted {
			resp.SyncID = outcome.Record.SyncID
			// Best effort: a notification failure must not fail the
			// delivery, the record is already committed.
			if h.dispatcher.Enabled() {
				if err := h.dispatcher.DispatchRecord(r.Context(), h.gate.TableName(), outcome.Record); err != nil {
					logging.Warn("failed to dispatch committed record",
						"table", h.gate.TableName(),
						"sync_id", outcome.Record.SyncID,
						"error", err.Error(),
					)
				}
			}
		}

		respondWithSuccess(w, http.StatusOK, resp)
	}
}

func (h *WebhookHandler) countOutcome(outcome string) {
	if h.metrics == nil {
		return
	}
	h.metrics.IngestEventsTotal.WithLabelValues(h.gate.TableName(), outcome).Inc()
}
