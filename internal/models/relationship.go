package models

import (
	"time"

	"github.com/google/uuid"
)

// RequestStatus is the lifecycle state of a friend request.
// denied is terminal: a denied pair cannot re-request until the
// accompanying block is lifted.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestDenied   RequestStatus = "denied"
)

// FriendRequest is a relationship edge between two users. At most one
// non-denied edge exists between any unordered pair.
type FriendRequest struct {
	ID         uuid.UUID     `json:"id"`
	SenderID   uuid.UUID     `json:"sender_id"`
	ReceiverID uuid.UUID     `json:"receiver_id"`
	Status     RequestStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
}

// FriendRequestResponse is an incoming request enriched with the
// sender's profile for display.
type FriendRequestResponse struct {
	FriendRequest
	Sender *UserResponse `json:"sender,omitempty"`
}

// BlockEdge records that blocker no longer accepts messages from
// blocked. Directional: A blocking B does not imply B blocks A.
type BlockEdge struct {
	ID        uuid.UUID `json:"id"`
	BlockerID uuid.UUID `json:"blocker_id"`
	BlockedID uuid.UUID `json:"blocked_id"`
	CreatedAt time.Time `json:"created_at"`
}
