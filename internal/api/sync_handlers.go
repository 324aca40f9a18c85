package api

import (
	"net/http"

	"hostdesk/syncengine/internal/models/dtos/responses"
	syncpkg "hostdesk/syncengine/internal/sync"

	"github.com/go-chi/chi/v5"
)

// SyncHandler handles manual reconcile triggering endpoints
type SyncHandler struct {
	orch *syncpkg.Orchestrator
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(orch *syncpkg.Orchestrator) *SyncHandler {
	return &SyncHandler{orch: orch}
}

// TriggerSync runs one reconcile pass for the table in the path.
// The optional mode query parameter selects pull, push, bidirectional or
// auto (the default).
//
// @Summary Trigger a reconcile pass
// @Tags sync
// @Produce json
// @Param table path string true "Registered table name"
// @Param mode query string false "auto|pull|push|bidirectional"
// @Success 200 {object} responses.SyncResponse
// @Failure 400 {object} responses.APIResponse[any]
// @Failure 404 {object} responses.APIResponse[any]
// @Failure 500 {object} responses.APIResponse[any]
// @Router /api/v1/sync/{table} [post]
func (h *SyncHandler) TriggerSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tableName := chi.URLParam(r, "table")

		mode, err := syncpkg.ParseMode(r.URL.Query().Get("mode"))
		if err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		if _, err := h.orch.Registry().Get(tableName); err != nil {
			respondWithError(w, http.StatusNotFound, err.Error())
			return
		}

		res, err := h.orch.Reconcile(r.Context(), tableName, mode)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}

		respondWithSuccess(w, http.StatusOK, &responses.SyncResponse{
			Table:      res.Table,
			Mode:       string(res.Mode),
			Added:      res.Added,
			KeptLocal:  res.KeptLocal,
			KeptRemote: res.KeptRemote,
			Deleted:    res.Deleted,
			NoOp:       res.NoOp,
			DurationMs: int(res.Duration.Milliseconds()),
		})
	}
}
