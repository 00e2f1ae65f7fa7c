package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rapportlabs/rapport/internal/intimacy"
	"github.com/rapportlabs/rapport/internal/relationship"
	"github.com/rapportlabs/rapport/pkg/logging"
)

// AdminHandler holds the operator surface: destructive or out-of-band
// actions that never happen on the conversational path.
type AdminHandler struct {
	ledger        *relationship.Ledger
	intimacyStore intimacy.Store
	logger        *logging.Logger
}

func NewAdminHandler(ledger *relationship.Ledger, intimacyStore intimacy.Store, logger *logging.Logger) *AdminHandler {
	if ledger == nil {
		panic("handlers: ledger cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminHandler{ledger: ledger, intimacyStore: intimacyStore, logger: logger}
}

// ResetSubject handles POST /admin/subjects/{subjectID}/reset. It wipes the
// relational scalars and the rolling intimacy window; event history stays.
func (h *AdminHandler) ResetSubject(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectID")
	if subjectID == "" {
		writeError(w, http.StatusBadRequest, "subject id is required")
		return
	}
	if err := h.ledger.Reset(r.Context(), subjectID); err != nil {
		h.logger.Error("subject reset failed", "subject_id", subjectID, "error", err)
		writeError(w, http.StatusInternalServerError, "reset failed")
		return
	}
	if h.intimacyStore != nil {
		if err := h.intimacyStore.Delete(r.Context(), subjectID); err != nil {
			h.logger.Warn("intimacy window delete failed", "subject_id", subjectID, "error", err)
		}
	}
	h.logger.Info("subject reset by operator", "subject_id", subjectID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset", "subjectId": subjectID})
}

type repairRequest struct {
	SubjectID string `json:"subjectId"`
	Note      string `json:"note,omitempty"`
}

// Repair handles POST /admin/repair: clear a rupture flag out of band.
func (h *AdminHandler) Repair(w http.ResponseWriter, r *http.Request) {
	var req repairRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.SubjectID == "" {
		writeError(w, http.StatusBadRequest, "subjectId is required")
		return
	}
	state, err := h.ledger.Repair(r.Context(), req.SubjectID, req.Note)
	if err != nil {
		h.logger.Error("manual repair failed", "subject_id", req.SubjectID, "error", err)
		writeError(w, http.StatusInternalServerError, "repair failed")
		return
	}
	writeJSON(w, http.StatusOK, state)
}
