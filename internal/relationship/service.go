// Package relationship maintains the social graph that gates message
// delivery: friend requests, accepted edges and directional blocks.
package relationship

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/gigglechat/giggle/internal/chat"
	"github.com/gigglechat/giggle/internal/database"
	"github.com/gigglechat/giggle/internal/logger"
	"github.com/gigglechat/giggle/internal/models"
)

var log = logger.New("relationship")

var (
	ErrAlreadyFriends  = errors.New("already friends")
	ErrRequestPending  = errors.New("request already pending")
	ErrRequestDenied   = errors.New("request was denied")
	ErrBlockedByTarget = errors.New("user is unavailable")
	ErrMustUnblock     = errors.New("you must unblock this user first")
	ErrSelfRequest     = errors.New("cannot send a request to yourself")
)

// Publisher receives block-edge change events for fan-out to the
// affected users.
type Publisher interface {
	PublishBlockChange(blockerID, blockedID uuid.UUID, blocked bool)
}

// Service enforces the relationship invariants over the injected
// store: at most one non-denied edge per unordered pair, denied is
// terminal, blocks are directional and idempotent.
type Service struct {
	store     database.Store
	strikes   *chat.StrikeLedger
	publisher Publisher

	assistantID uuid.UUID
}

func NewService(store database.Store, strikes *chat.StrikeLedger, publisher Publisher) *Service {
	return &Service{store: store, strikes: strikes, publisher: publisher}
}

// SetAssistant names the built-in assistant so it appears in every
// user's contact list without a friend edge.
func (s *Service) SetAssistant(id uuid.UUID) {
	s.assistantID = id
}

// SendRequest issues a friend request after checking every gate the
// pair can be in: an existing edge, or a block in either direction.
func (s *Service) SendRequest(senderID, receiverID uuid.UUID) (*models.FriendRequest, error) {
	if senderID == receiverID {
		return nil, ErrSelfRequest
	}

	// A receiver-side block hides the receiver entirely; a sender-side
	// block must be lifted explicitly first.
	blockedByTarget, err := s.store.IsBlocked(receiverID, senderID)
	if err != nil {
		return nil, err
	}
	if blockedByTarget {
		return nil, ErrBlockedByTarget
	}

	hasBlocked, err := s.store.IsBlocked(senderID, receiverID)
	if err != nil {
		return nil, err
	}
	if hasBlocked {
		return nil, ErrMustUnblock
	}

	existing, err := s.store.GetFriendRequestBetween(senderID, receiverID)
	if err != nil && !errors.Is(err, database.ErrRequestNotFound) {
		return nil, err
	}
	if existing != nil {
		switch existing.Status {
		case models.RequestAccepted:
			return nil, ErrAlreadyFriends
		case models.RequestPending:
			return nil, ErrRequestPending
		case models.RequestDenied:
			return nil, ErrRequestDenied
		}
	}

	req, err := s.store.CreateFriendRequest(senderID, receiverID)
	if err != nil {
		return nil, fmt.Errorf("failed to create friend request: %w", err)
	}

	log.Info("friend request %s: %s -> %s", req.ID, senderID, receiverID)
	return req, nil
}

// Request fetches a friend request by id.
func (s *Service) Request(requestID uuid.UUID) (*models.FriendRequest, error) {
	return s.store.GetFriendRequestByID(requestID)
}

// Respond accepts or denies a pending request. Denying auto-creates a
// block edge from the receiver toward the sender.
func (s *Service) Respond(requestID uuid.UUID, accept bool) error {
	req, err := s.store.GetFriendRequestByID(requestID)
	if err != nil {
		return err
	}

	if accept {
		return s.store.UpdateFriendRequestStatus(requestID, models.RequestAccepted)
	}

	if err := s.store.UpdateFriendRequestStatus(requestID, models.RequestDenied); err != nil {
		return err
	}

	// Deny always blocks. Flagged for product confirmation; see DESIGN.md.
	if err := s.Block(req.ReceiverID, req.SenderID); err != nil {
		return fmt.Errorf("failed to block after deny: %w", err)
	}
	return nil
}

// Block creates a directional block edge. Idempotent: blocking an
// already-blocked user is a no-op.
func (s *Service) Block(blockerID, blockedID uuid.UUID) error {
	if _, err := s.store.CreateBlock(blockerID, blockedID); err != nil {
		return err
	}

	log.Info("block: %s -> %s", blockerID, blockedID)
	if s.publisher != nil {
		s.publisher.PublishBlockChange(blockerID, blockedID, true)
	}
	return nil
}

// Unblock removes the edge and resets the strike counter for the
// unblocked offender toward this user, so their next message is
// evaluated fresh.
func (s *Service) Unblock(blockerID, blockedID uuid.UUID) error {
	if err := s.store.DeleteBlock(blockerID, blockedID); err != nil {
		return err
	}
	if s.strikes != nil {
		s.strikes.Reset(blockedID, blockerID)
	}

	log.Info("unblock: %s -> %s", blockerID, blockedID)
	if s.publisher != nil {
		s.publisher.PublishBlockChange(blockerID, blockedID, false)
	}
	return nil
}

// IncomingRequests lists pending requests addressed to the user,
// enriched with sender profiles.
func (s *Service) IncomingRequests(userID uuid.UUID) ([]*models.FriendRequestResponse, error) {
	requests, err := s.store.GetIncomingRequests(userID)
	if err != nil {
		return nil, err
	}

	out := make([]*models.FriendRequestResponse, 0, len(requests))
	for _, req := range requests {
		enriched := &models.FriendRequestResponse{FriendRequest: *req}
		if sender, err := s.store.GetUserByID(req.SenderID); err == nil {
			resp := sender.ToResponse()
			enriched.Sender = &resp
		}
		out = append(out, enriched)
	}
	return out, nil
}

// Contacts lists the user's accepted friends. The built-in assistant,
// when configured, is always present.
func (s *Service) Contacts(userID uuid.UUID) ([]*models.User, error) {
	contacts, err := s.store.GetContacts(userID)
	if err != nil {
		return nil, err
	}

	if s.assistantID == uuid.Nil || s.assistantID == userID {
		return contacts, nil
	}
	for _, c := range contacts {
		if c.ID == s.assistantID {
			return contacts, nil
		}
	}
	assistant, err := s.store.GetUserByID(s.assistantID)
	if err != nil {
		log.Warn("assistant profile %s not found: %v", s.assistantID, err)
		return contacts, nil
	}
	return append(contacts, assistant), nil
}

// BlockedUsers lists everyone the user has blocked.
func (s *Service) BlockedUsers(userID uuid.UUID) ([]*models.User, error) {
	return s.store.GetBlockedUsers(userID)
}
