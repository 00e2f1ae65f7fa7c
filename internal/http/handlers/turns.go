package handlers

import (
	"net/http"

	"github.com/rapportlabs/rapport/internal/engine"
	"github.com/rapportlabs/rapport/pkg/logging"
)

// TurnsHandler processes inbound conversation turns.
type TurnsHandler struct {
	engine *engine.Engine
	logger *logging.Logger
}

func NewTurnsHandler(eng *engine.Engine, logger *logging.Logger) *TurnsHandler {
	if eng == nil {
		panic("handlers: engine cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &TurnsHandler{engine: eng, logger: logger}
}

// ProcessTurn handles POST /v1/turns.
func (h *TurnsHandler) ProcessTurn(w http.ResponseWriter, r *http.Request) {
	var req engine.TurnRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.SubjectID == "" {
		writeError(w, http.StatusBadRequest, "subjectId is required")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	result, err := h.engine.ProcessTurn(r.Context(), req)
	if err != nil {
		h.logger.Error("turn processing failed", "subject_id", req.SubjectID, "error", err)
		writeError(w, http.StatusInternalServerError, "turn processing failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
