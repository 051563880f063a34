package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/campuslink/arena/internal/arena/events"
	"github.com/campuslink/arena/internal/models"
)

// Engine is what the gateway needs from the session lifecycle manager.
type Engine interface {
	Submit(ctx context.Context, sessionID uuid.UUID, userID string, roundIndex int, payload json.RawMessage, clientElapsedMs int64) (*models.Submission, error)
	MarkConnection(sessionID uuid.UUID, userID string, connected bool)
}

// TelemetrySink is what the gateway needs from the telemetry collector.
type TelemetrySink interface {
	Ingest(sessionID uuid.UUID, userID string, raw json.RawMessage) error
}

// clientMessage is the envelope for client->server streaming messages.
type clientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// submitPayload is the client shape for a round submission.
type submitPayload struct {
	RoundIndex      int             `json:"round_index"`
	AnswerPayload   json.RawMessage `json:"answer_payload"`
	ClientElapsedMs int64           `json:"client_elapsed_ms"`
}

// submitAck confirms an accepted submission back to its sender.
type submitAck struct {
	RoundIndex int            `json:"round_index"`
	Metrics    models.Metrics `json:"metrics"`
	Score      float64        `json:"score"`
}

// streamError is sent only to the offending connection; one bad client
// message never tears down the session.
type streamError struct {
	Message string `json:"message"`
}

const (
	messageTypeSubmit    = "submit"
	messageTypeTelemetry = "telemetry"

	eventTypeSubmitAck events.Type = "activity.submission.accepted"
	eventTypeError     events.Type = "activity.error"
)

// handleClientMessage routes one client message. The identity on the
// message is the connection's authenticated user; clients cannot submit or
// emit telemetry on behalf of anyone else.
func (cm *ConnectionManager) handleClientMessage(c *Connection, message []byte) {
	var msg clientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		cm.sendError(c, "malformed message")
		return
	}

	switch msg.Type {
	case messageTypeSubmit:
		cm.handleSubmit(c, msg.Payload)
	case messageTypeTelemetry:
		if err := cm.telemetry.Ingest(c.SessionID, c.UserID, msg.Payload); err != nil {
			cm.sendError(c, err.Error())
		}
	default:
		log.Debug().
			Str("connection_id", c.ID).
			Str("type", msg.Type).
			Msg("ignoring unknown client message type")
	}
}

func (cm *ConnectionManager) handleSubmit(c *Connection, raw json.RawMessage) {
	var payload submitPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		cm.sendError(c, "malformed submit payload")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub, err := cm.engine.Submit(ctx, c.SessionID, c.UserID, payload.RoundIndex, payload.AnswerPayload, payload.ClientElapsedMs)
	if err != nil {
		// Late and duplicate submissions are rejected, not fatal.
		log.Debug().
			Err(err).
			Str("session_id", c.SessionID.String()).
			Str("user_id", c.UserID).
			Msg("submission rejected")
		cm.sendError(c, err.Error())
		return
	}

	ack := events.New(c.SessionID, eventTypeSubmitAck, sub.ServerReceivedAt, submitAck{
		RoundIndex: sub.RoundIndex,
		Metrics:    sub.Metrics,
		Score:      sub.Score,
	})
	cm.BroadcastToUser(c.SessionID, c.UserID, ack)
}

func (cm *ConnectionManager) sendError(c *Connection, message string) {
	evt := events.New(c.SessionID, eventTypeError, time.Now(), streamError{Message: message})
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}
