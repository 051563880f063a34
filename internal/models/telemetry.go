package models

import (
	"time"

	"github.com/google/uuid"
)

// TelemetryKind identifies the input event kinds accepted from clients.
type TelemetryKind string

const (
	TelemetryKeystrokeDelta TelemetryKind = "keystroke-delta"
	TelemetryPasteAttempt   TelemetryKind = "paste-attempt"
)

// TelemetryEvent is a transient per-participant input event. It only feeds
// anti-cheat flags and is never part of the authoritative session record.
type TelemetryEvent struct {
	SessionID uuid.UUID     `json:"session_id"`
	UserID    string        `json:"user_id"`
	Kind      TelemetryKind `json:"kind"`
	Timestamp time.Time     `json:"timestamp"`
	DeltaText string        `json:"delta_text,omitempty"`
	Blocked   bool          `json:"blocked,omitempty"`
}

// AntiCheatFlags is the advisory per-participant view surfaced on the
// session snapshot for moderation/policy layers. None of these disqualify
// a participant on their own.
type AntiCheatFlags struct {
	PasteAttempts    int64 `json:"paste_attempts"`
	SuspicionCount   int64 `json:"suspicion_count"`
	DroppedTelemetry int64 `json:"dropped_telemetry"`
}
