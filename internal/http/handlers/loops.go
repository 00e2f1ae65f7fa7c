package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rapportlabs/rapport/internal/loops"
	"github.com/rapportlabs/rapport/pkg/logging"
)

// LoopsHandler exposes loop lifecycle transitions the renderer drives after
// the user answers (or brushes off) a follow-up.
type LoopsHandler struct {
	tracker *loops.Tracker
	logger  *logging.Logger
}

func NewLoopsHandler(tracker *loops.Tracker, logger *logging.Logger) *LoopsHandler {
	if tracker == nil {
		panic("handlers: tracker cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &LoopsHandler{tracker: tracker, logger: logger}
}

// Resolve handles POST /v1/subjects/{subjectID}/loops/{loopID}/resolve.
func (h *LoopsHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	h.close(w, r, loops.StatusResolved)
}

// Dismiss handles POST /v1/subjects/{subjectID}/loops/{loopID}/dismiss.
func (h *LoopsHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	h.close(w, r, loops.StatusDismissed)
}

type topicCloseRequest struct {
	Topic string `json:"topic"`
}

type topicCloseResponse struct {
	Closed int `json:"closed"`
}

// ResolveTopic handles POST /v1/subjects/{subjectID}/loops/resolve-by-topic.
// The renderer calls it when the user addresses an open thread directly, so
// every fuzzy-matching loop closes in one go.
func (h *LoopsHandler) ResolveTopic(w http.ResponseWriter, r *http.Request) {
	h.closeTopic(w, r, loops.StatusResolved)
}

// DismissTopic handles POST /v1/subjects/{subjectID}/loops/dismiss-by-topic.
func (h *LoopsHandler) DismissTopic(w http.ResponseWriter, r *http.Request) {
	h.closeTopic(w, r, loops.StatusDismissed)
}

func (h *LoopsHandler) closeTopic(w http.ResponseWriter, r *http.Request, status loops.LoopStatus) {
	subjectID := chi.URLParam(r, "subjectID")
	if subjectID == "" {
		writeError(w, http.StatusBadRequest, "subject id is required")
		return
	}
	var req topicCloseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Topic == "" {
		writeError(w, http.StatusBadRequest, "topic is required")
		return
	}

	var (
		closed int
		err    error
	)
	if status == loops.StatusResolved {
		closed, err = h.tracker.ResolveByTopic(r.Context(), subjectID, req.Topic)
	} else {
		closed, err = h.tracker.DismissByTopic(r.Context(), subjectID, req.Topic)
	}
	if err != nil {
		h.logger.Error("loop topic close failed",
			"subject_id", subjectID, "topic", req.Topic, "status", status, "error", err)
		writeError(w, http.StatusInternalServerError, "loop close failed")
		return
	}
	writeJSON(w, http.StatusOK, topicCloseResponse{Closed: closed})
}

func (h *LoopsHandler) close(w http.ResponseWriter, r *http.Request, status loops.LoopStatus) {
	subjectID := chi.URLParam(r, "subjectID")
	loopID := chi.URLParam(r, "loopID")
	if subjectID == "" || loopID == "" {
		writeError(w, http.StatusBadRequest, "subject id and loop id are required")
		return
	}

	loop, err := h.tracker.Close(r.Context(), subjectID, loopID, status)
	if errors.Is(err, loops.ErrLoopNotFound) {
		writeError(w, http.StatusNotFound, "loop not found")
		return
	}
	if err != nil {
		h.logger.Error("loop close failed",
			"subject_id", subjectID, "loop_id", loopID, "status", status, "error", err)
		writeError(w, http.StatusInternalServerError, "loop close failed")
		return
	}
	writeJSON(w, http.StatusOK, loop)
}
