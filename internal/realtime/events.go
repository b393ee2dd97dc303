package realtime

import (
	"time"

	"github.com/google/uuid"

	"github.com/gigglechat/giggle/internal/models"
)

// EventKind names an authoritative change pushed by the realtime
// transport.
type EventKind string

const (
	EventMessageUpserted EventKind = "message_upserted"
	EventBlockChanged    EventKind = "block_changed"
	EventTyping          EventKind = "typing"
	EventPresenceChanged EventKind = "presence_changed"
)

// Event is one change pushed from the transport. Only the fields for
// the given kind are populated.
type Event struct {
	Kind EventKind `json:"kind"`

	// message_upserted. TempID, when non-nil, names the optimistic
	// placeholder this durable message replaces.
	Message *models.Message `json:"message,omitempty"`
	TempID  uuid.UUID       `json:"temp_id,omitempty"`

	// block_changed
	BlockerID uuid.UUID `json:"blocker_id,omitempty"`
	BlockedID uuid.UUID `json:"blocked_id,omitempty"`
	Blocked   bool      `json:"blocked,omitempty"`

	// typing / presence_changed
	UserID    uuid.UUID `json:"user_id,omitempty"`
	Typing    bool      `json:"typing,omitempty"`
	Online    bool      `json:"online,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}
