package models

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MessageKind discriminates the payload carried by a message.
type MessageKind string

const (
	KindText       MessageKind = "text"
	KindImage      MessageKind = "image"
	KindCallInvite MessageKind = "call_invite"
)

// MessageStatus is the delivery lifecycle state of a message.
//
// pending -> {sent, quarantined}; sent -> {delivered, read};
// delivered -> read. quarantined and read are terminal.
type MessageStatus string

const (
	StatusPending     MessageStatus = "pending"
	StatusSent        MessageStatus = "sent"
	StatusDelivered   MessageStatus = "delivered"
	StatusRead        MessageStatus = "read"
	StatusQuarantined MessageStatus = "quarantined"
)

// ModerationResult is attached to outbound text messages that went
// through the moderation pipeline.
type ModerationResult struct {
	Score    float64 `json:"score"`
	Category string  `json:"category"`
	Flagged  bool    `json:"flagged"`
	Reason   string  `json:"reason,omitempty"`
}

// Message represents a chat message in the system
type Message struct {
	ID             uuid.UUID         `json:"id"`
	ConversationID string            `json:"conversation_id"`
	SenderID       uuid.UUID         `json:"sender_id"`
	ReceiverID     uuid.UUID         `json:"receiver_id"`
	Kind           MessageKind       `json:"kind"`
	Text           string            `json:"text,omitempty"`
	ImageURL       string            `json:"image_url,omitempty"`
	CallURL        string            `json:"call_url,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	Status         MessageStatus     `json:"status"`
	Moderation     *ModerationResult `json:"moderation,omitempty"`
	Reactions      map[string]string `json:"reactions,omitempty"` // participant id -> emoji, one per participant
}

// MessageContent is the payload of a message submission. Exactly one
// payload field should be populated for the given kind.
type MessageContent struct {
	Kind     MessageKind `json:"kind" binding:"required"`
	Text     string      `json:"text,omitempty"`
	ImageURL string      `json:"image_url,omitempty"`
	CallURL  string      `json:"call_url,omitempty"`
}

// MessageRequest is the structure for message submission requests
type MessageRequest struct {
	ReceiverID uuid.UUID      `json:"receiver_id" binding:"required"`
	Content    MessageContent `json:"content" binding:"required"`
}

// ReactionRequest toggles an emoji reaction on a message.
type ReactionRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

// ConversationID derives the shared conversation key for two
// participants. It is symmetric: both ends compute the same value
// independently regardless of who is sender or receiver.
func ConversationID(a, b uuid.UUID) string {
	ids := []string{a.String(), b.String()}
	sort.Strings(ids)
	return strings.Join(ids, "_")
}

// HiddenText is what the receiver sees in place of quarantined content.
const HiddenText = "[message hidden]"

// Sanitized returns a copy safe to show to the given viewer. Quarantined
// content is withheld from everyone except the sender; the sender keeps
// the real content so they can see what was withheld.
func (m *Message) Sanitized(viewerID uuid.UUID) *Message {
	if m.Status != StatusQuarantined || viewerID == m.SenderID {
		return m
	}
	out := *m
	out.Text = HiddenText
	out.ImageURL = ""
	out.CallURL = ""
	out.Moderation = nil
	return &out
}
