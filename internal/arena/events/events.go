package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope for every streaming-plane event the engine emits.
type Event struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	Type      Type            `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Type identifies an event kind on the wire.
type Type string

const (
	TypeRoundStarted     Type = "activity.round.started"
	TypeSessionEnded     Type = "activity.session.ended"
	TypeSessionCancelled Type = "activity.session.cancelled"
	TypeParticipantJoin  Type = "activity.participant.joined"
	TypeParticipantReady Type = "activity.participant.ready"
)

// New builds an event envelope, marshalling the payload. A payload that
// cannot marshal is a programming error; the envelope is still emitted with
// empty data rather than dropping the transition on the floor.
func New(sessionID uuid.UUID, eventType Type, now time.Time, payload any) *Event {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte("{}")
	}
	return &Event{
		ID:        uuid.New().String(),
		SessionID: sessionID.String(),
		Type:      eventType,
		Timestamp: now,
		Data:      data,
	}
}
