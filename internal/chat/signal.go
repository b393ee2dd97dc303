package chat

import "errors"

// SignalKind tells the sender what happened to their submission.
// Policy outcomes (blocked, warning) are signals, not errors: the
// message was handled, just not delivered.
type SignalKind string

const (
	// SignalNone means the message went through normally.
	SignalNone SignalKind = ""
	// SignalWarning means the message was quarantined for toxicity and
	// the sender is one strike away from being blocked.
	SignalWarning SignalKind = "warning"
	// SignalBlocked means the receiver has blocked the sender, either
	// before this submission or as a result of it.
	SignalBlocked SignalKind = "blocked"
	// SignalSendFailed means the transport hand-off failed; the
	// optimistic entry was rolled back and the sender may retry.
	SignalSendFailed SignalKind = "send_failed"
)

// Signal is reported to the caller alongside the submitted message so
// the UI can explain the outcome. Quarantined-by-block and
// quarantined-by-toxicity carry distinct reasons for the sender but
// look identical to the receiver.
type Signal struct {
	Kind   SignalKind `json:"kind,omitempty"`
	Reason string     `json:"reason,omitempty"`
}

var (
	// ErrEmptyContent rejects whitespace-only text before any state is
	// created.
	ErrEmptyContent = errors.New("message content is empty")
	// ErrUnknownKind rejects a submission with an unrecognized payload
	// kind.
	ErrUnknownKind = errors.New("unknown message kind")
)
