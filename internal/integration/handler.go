package integration

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/foodflow/foodflow/internal/platform/httpx"
)

// Handler exposes the published artifact over HTTP.
type Handler struct {
	store *FlaggedStore
}

// NewHandler constructs Handler.
func NewHandler(store *FlaggedStore) *Handler {
	return &Handler{store: store}
}

// MountRoutes registers the reporting endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/flagged", h.getFlagged)
	r.Get("/last-sync", h.getLastSync)
}

func (h *Handler) getFlagged(w http.ResponseWriter, r *http.Request) {
	artifact, err := h.store.Load()
	if err != nil {
		if errors.Is(err, ErrNoArtifact) {
			httpx.RespondError(w, fmt.Errorf("%w: no sync cycle has completed", httpx.ErrNotFound))
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, artifact)
}

func (h *Handler) getLastSync(w http.ResponseWriter, r *http.Request) {
	lastSync := h.store.LastSync()
	if lastSync.IsZero() {
		httpx.RespondError(w, fmt.Errorf("%w: no sync cycle has completed", httpx.ErrNotFound))
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{
		"last_sync": lastSync.Format(time.RFC3339Nano),
	})
}
