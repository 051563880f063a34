package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/campuslink/arena/internal/models"
)

// Engine is what the control plane needs from the session lifecycle
// manager.
type Engine interface {
	CreateSession(ctx context.Context, key models.ActivityKey, creatorUserID string, participantUserIDs []string, campusID string) (uuid.UUID, error)
	JoinSession(ctx context.Context, sessionID uuid.UUID, userID string) error
	SetReady(ctx context.Context, sessionID uuid.UUID, userID string, ready bool) error
	StartSession(ctx context.Context, sessionID uuid.UUID, requestedBy string) error
	LeaveSession(ctx context.Context, sessionID uuid.UUID, userID string) error
	Snapshot(ctx context.Context, sessionID uuid.UUID) (*models.Snapshot, error)
	ListSessions(ctx context.Context, status *models.SessionStatus) ([]models.SessionSummary, error)
}

// Handler exposes the control-plane operations over HTTP JSON.
type Handler struct {
	engine Engine
}

// NewHandler creates the control-plane handler.
func NewHandler(engine Engine) *Handler {
	return &Handler{engine: engine}
}

// RegisterRoutes registers control-plane routes with an HTTP mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/sessions", h.createSession)
	mux.HandleFunc("POST /v1/sessions/{id}/join", h.joinSession)
	mux.HandleFunc("POST /v1/sessions/{id}/ready", h.setReady)
	mux.HandleFunc("POST /v1/sessions/{id}/start", h.startSession)
	mux.HandleFunc("POST /v1/sessions/{id}/leave", h.leaveSession)
	mux.HandleFunc("GET /v1/sessions/{id}", h.fetchSnapshot)
	mux.HandleFunc("GET /v1/sessions", h.listSessions)
}

type createSessionRequest struct {
	ActivityKey        models.ActivityKey `json:"activity_key"`
	CreatorUserID      string             `json:"creator_user_id"`
	ParticipantUserIDs []string           `json:"participant_user_ids"`
	CampusID           string             `json:"campus_id,omitempty"`
}

type createSessionResponse struct {
	SessionID uuid.UUID `json:"session_id"`
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.CreatorUserID == "" {
		writeBadRequest(w, "creator_user_id is required")
		return
	}

	sessionID, err := h.engine.CreateSession(r.Context(), req.ActivityKey, req.CreatorUserID, req.ParticipantUserIDs, req.CampusID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createSessionResponse{SessionID: sessionID})
}

type userRequest struct {
	UserID string `json:"user_id"`
	Ready  *bool  `json:"ready,omitempty"`
}

func (h *Handler) joinSession(w http.ResponseWriter, r *http.Request) {
	sessionID, req, ok := h.sessionAndUser(w, r)
	if !ok {
		return
	}
	if err := h.engine.JoinSession(r.Context(), sessionID, req.UserID); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (h *Handler) setReady(w http.ResponseWriter, r *http.Request) {
	sessionID, req, ok := h.sessionAndUser(w, r)
	if !ok {
		return
	}
	if req.Ready == nil {
		writeBadRequest(w, "ready is required")
		return
	}
	if err := h.engine.SetReady(r.Context(), sessionID, req.UserID, *req.Ready); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	sessionID, req, ok := h.sessionAndUser(w, r)
	if !ok {
		return
	}
	if err := h.engine.StartSession(r.Context(), sessionID, req.UserID); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (h *Handler) leaveSession(w http.ResponseWriter, r *http.Request) {
	sessionID, req, ok := h.sessionAndUser(w, r)
	if !ok {
		return
	}
	if err := h.engine.LeaveSession(r.Context(), sessionID, req.UserID); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (h *Handler) fetchSnapshot(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathSessionID(w, r)
	if !ok {
		return
	}
	snap, err := h.engine.Snapshot(r.Context(), sessionID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	var status *models.SessionStatus
	if s := r.URL.Query().Get("status"); s != "" {
		st := models.SessionStatus(s)
		switch st {
		case models.StatusLobby, models.StatusRunning, models.StatusEnded, models.StatusCancelled:
			status = &st
		default:
			writeBadRequest(w, "unknown status filter")
			return
		}
	}

	summaries, err := h.engine.ListSessions(r.Context(), status)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]models.SessionSummary{"sessions": summaries})
}

func (h *Handler) sessionAndUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, userRequest, bool) {
	sessionID, ok := pathSessionID(w, r)
	if !ok {
		return uuid.Nil, userRequest{}, false
	}
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return uuid.Nil, userRequest{}, false
	}
	if req.UserID == "" {
		writeBadRequest(w, "user_id is required")
		return uuid.Nil, userRequest{}, false
	}
	return sessionID, req, true
}

func pathSessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	sessionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeBadRequest(w, "invalid session id")
		return uuid.Nil, false
	}
	return sessionID, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
