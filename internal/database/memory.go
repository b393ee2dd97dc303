package database

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gigglechat/giggle/internal/models"
)

// MemoryStore keeps everything in process memory. It backs development
// runs and unit tests with the same semantics as the Postgres store.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]*models.User
	messages map[uuid.UUID]*models.Message
	requests map[uuid.UUID]*models.FriendRequest
	blocks   map[uuid.UUID]*models.BlockEdge
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[uuid.UUID]*models.User),
		messages: make(map[uuid.UUID]*models.Message),
		requests: make(map[uuid.UUID]*models.FriendRequest),
		blocks:   make(map[uuid.UUID]*models.BlockEdge),
	}
}

func (s *MemoryStore) CreateUser(username, email, passwordHash string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == username || u.Email == email {
			return nil, ErrUserAlreadyExists
		}
	}

	user := &models.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
		LastSeen:     time.Now().UTC(),
	}
	s.users[user.ID] = user

	copied := *user
	return &copied, nil
}

// AddUser seeds a prebuilt user, e.g. the built-in assistant profile.
func (s *MemoryStore) AddUser(user *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *user
	s.users[user.ID] = &copied
}

func (s *MemoryStore) GetUserByEmail(email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *MemoryStore) GetUserByID(id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *MemoryStore) UpdateLastSeen(userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.LastSeen = time.Now().UTC()
	return nil
}

func (s *MemoryStore) GetAllUsers(excludeUserID uuid.UUID) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var users []*models.User
	for _, u := range s.users {
		if u.ID == excludeUserID {
			continue
		}
		copied := *u
		users = append(users, &copied)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (s *MemoryStore) CreateMessage(msg *models.Message) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *msg
	stored.ID = uuid.New()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	if stored.ConversationID == "" {
		stored.ConversationID = models.ConversationID(stored.SenderID, stored.ReceiverID)
	}
	if stored.Reactions == nil {
		stored.Reactions = map[string]string{}
	}

	s.messages[stored.ID] = &stored

	copied := stored
	return &copied, nil
}

func (s *MemoryStore) GetMessageByID(messageID uuid.UUID) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.messages[messageID]
	if !ok {
		return nil, ErrMessageNotFound
	}
	copied := *m
	return &copied, nil
}

func (s *MemoryStore) GetConversation(userID1, userID2 uuid.UUID) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conversationID := models.ConversationID(userID1, userID2)
	var messages []*models.Message
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			copied := *m
			messages = append(messages, &copied)
		}
	}
	sort.Slice(messages, func(i, j int) bool {
		if messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].ID.String() < messages[j].ID.String()
		}
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	return messages, nil
}

func (s *MemoryStore) UpdateMessageStatus(messageID uuid.UUID, status models.MessageStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[messageID]
	if !ok {
		return ErrMessageNotFound
	}
	m.Status = status
	return nil
}

func (s *MemoryStore) UpdateMessageReactions(messageID uuid.UUID, reactions map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[messageID]
	if !ok {
		return ErrMessageNotFound
	}
	copied := make(map[string]string, len(reactions))
	for k, v := range reactions {
		copied[k] = v
	}
	m.Reactions = copied
	return nil
}

func (s *MemoryStore) CreateFriendRequest(senderID, receiverID uuid.UUID) (*models.FriendRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req := &models.FriendRequest{
		ID:         uuid.New(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     models.RequestPending,
		CreatedAt:  time.Now().UTC(),
	}
	s.requests[req.ID] = req

	copied := *req
	return &copied, nil
}

func (s *MemoryStore) GetFriendRequestByID(requestID uuid.UUID) (*models.FriendRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[requestID]
	if !ok {
		return nil, ErrRequestNotFound
	}
	copied := *req
	return &copied, nil
}

func (s *MemoryStore) GetFriendRequestBetween(userID1, userID2 uuid.UUID) (*models.FriendRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.FriendRequest
	for _, req := range s.requests {
		if (req.SenderID == userID1 && req.ReceiverID == userID2) ||
			(req.SenderID == userID2 && req.ReceiverID == userID1) {
			if latest == nil || req.CreatedAt.After(latest.CreatedAt) {
				latest = req
			}
		}
	}
	if latest == nil {
		return nil, ErrRequestNotFound
	}
	copied := *latest
	return &copied, nil
}

func (s *MemoryStore) UpdateFriendRequestStatus(requestID uuid.UUID, status models.RequestStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[requestID]
	if !ok {
		return ErrRequestNotFound
	}
	req.Status = status
	return nil
}

func (s *MemoryStore) GetIncomingRequests(userID uuid.UUID) ([]*models.FriendRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var requests []*models.FriendRequest
	for _, req := range s.requests {
		if req.ReceiverID == userID && req.Status == models.RequestPending {
			copied := *req
			requests = append(requests, &copied)
		}
	}
	sort.Slice(requests, func(i, j int) bool { return requests[i].CreatedAt.Before(requests[j].CreatedAt) })
	return requests, nil
}

func (s *MemoryStore) GetContacts(userID uuid.UUID) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var contacts []*models.User
	for _, req := range s.requests {
		if req.Status != models.RequestAccepted {
			continue
		}
		var friendID uuid.UUID
		switch userID {
		case req.SenderID:
			friendID = req.ReceiverID
		case req.ReceiverID:
			friendID = req.SenderID
		default:
			continue
		}
		if u, ok := s.users[friendID]; ok {
			copied := *u
			contacts = append(contacts, &copied)
		}
	}
	sort.Slice(contacts, func(i, j int) bool { return contacts[i].Username < contacts[j].Username })
	return contacts, nil
}

func (s *MemoryStore) CreateBlock(blockerID, blockedID uuid.UUID) (*models.BlockEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Idempotent: a duplicate block returns the existing edge.
	for _, b := range s.blocks {
		if b.BlockerID == blockerID && b.BlockedID == blockedID {
			copied := *b
			return &copied, nil
		}
	}

	edge := &models.BlockEdge{
		ID:        uuid.New(),
		BlockerID: blockerID,
		BlockedID: blockedID,
		CreatedAt: time.Now().UTC(),
	}
	s.blocks[edge.ID] = edge

	copied := *edge
	return &copied, nil
}

func (s *MemoryStore) DeleteBlock(blockerID, blockedID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, b := range s.blocks {
		if b.BlockerID == blockerID && b.BlockedID == blockedID {
			delete(s.blocks, id)
		}
	}
	return nil
}

func (s *MemoryStore) IsBlocked(blockerID, blockedID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, b := range s.blocks {
		if b.BlockerID == blockerID && b.BlockedID == blockedID {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) GetBlockedUsers(blockerID uuid.UUID) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var users []*models.User
	for _, b := range s.blocks {
		if b.BlockerID != blockerID {
			continue
		}
		if u, ok := s.users[b.BlockedID]; ok {
			copied := *u
			users = append(users, &copied)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
