package api

import (
	"errors"
	"net/http"

	"github.com/campuslink/arena/internal/arena"
)

type errorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// writeEngineError maps the engine's typed errors onto HTTP statuses so UI
// boundaries can key actionable feedback off the kind.
func writeEngineError(w http.ResponseWriter, err error) {
	kind, status := classify(err)
	writeJSON(w, status, errorResponse{Kind: kind, Message: err.Error()})
}

func classify(err error) (string, int) {
	switch {
	case errors.Is(err, arena.ErrSessionNotFound):
		return "session_not_found", http.StatusNotFound
	case errors.Is(err, arena.ErrSessionClosed):
		return "session_closed", http.StatusConflict
	case errors.Is(err, arena.ErrInvalidParticipantSet):
		return "invalid_participant_set", http.StatusBadRequest
	case errors.Is(err, arena.ErrNotAParticipant):
		return "not_a_participant", http.StatusForbidden
	case errors.Is(err, arena.ErrNotCreator):
		return "not_creator", http.StatusForbidden
	case errors.Is(err, arena.ErrNotAllReady):
		return "not_all_ready", http.StatusConflict
	case errors.Is(err, arena.ErrRoundMismatch):
		return "round_mismatch", http.StatusConflict
	case errors.Is(err, arena.ErrNotYourTurn):
		return "not_your_turn", http.StatusConflict
	case errors.Is(err, arena.ErrAlreadySubmitted):
		return "already_submitted", http.StatusConflict
	default:
		return "internal", http.StatusInternalServerError
	}
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Kind: "bad_request", Message: message})
}
