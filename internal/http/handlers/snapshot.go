package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rapportlabs/rapport/internal/engine"
	"github.com/rapportlabs/rapport/pkg/logging"
)

// SnapshotHandler serves read-only relational snapshots.
type SnapshotHandler struct {
	engine *engine.Engine
	logger *logging.Logger
}

func NewSnapshotHandler(eng *engine.Engine, logger *logging.Logger) *SnapshotHandler {
	if eng == nil {
		panic("handlers: engine cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SnapshotHandler{engine: eng, logger: logger}
}

// GetSnapshot handles GET /v1/subjects/{subjectID}/snapshot.
func (h *SnapshotHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectID")
	if subjectID == "" {
		writeError(w, http.StatusBadRequest, "subject id is required")
		return
	}
	snap, err := h.engine.Snapshot(r.Context(), subjectID)
	if err != nil {
		h.logger.Error("snapshot read failed", "subject_id", subjectID, "error", err)
		writeError(w, http.StatusInternalServerError, "snapshot read failed")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
