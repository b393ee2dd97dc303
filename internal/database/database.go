package database

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/gigglechat/giggle/internal/models"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrMessageNotFound   = errors.New("message not found")
	ErrRequestNotFound   = errors.New("friend request not found")
)

// Store is the repository the engine is built against. All queries are
// scoped by participant id; no cross-user data is ever returned without
// an explicit id filter.
type Store interface {
	// User methods
	CreateUser(username, email, passwordHash string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id uuid.UUID) (*models.User, error)
	UpdateLastSeen(userID uuid.UUID) error
	GetAllUsers(excludeUserID uuid.UUID) ([]*models.User, error)

	// Message methods
	CreateMessage(msg *models.Message) (*models.Message, error)
	GetMessageByID(messageID uuid.UUID) (*models.Message, error)
	GetConversation(userID1, userID2 uuid.UUID) ([]*models.Message, error)
	UpdateMessageStatus(messageID uuid.UUID, status models.MessageStatus) error
	UpdateMessageReactions(messageID uuid.UUID, reactions map[string]string) error

	// Friend request methods
	CreateFriendRequest(senderID, receiverID uuid.UUID) (*models.FriendRequest, error)
	GetFriendRequestByID(requestID uuid.UUID) (*models.FriendRequest, error)
	GetFriendRequestBetween(userID1, userID2 uuid.UUID) (*models.FriendRequest, error)
	UpdateFriendRequestStatus(requestID uuid.UUID, status models.RequestStatus) error
	GetIncomingRequests(userID uuid.UUID) ([]*models.FriendRequest, error)
	GetContacts(userID uuid.UUID) ([]*models.User, error)

	// Block methods
	CreateBlock(blockerID, blockedID uuid.UUID) (*models.BlockEdge, error)
	DeleteBlock(blockerID, blockedID uuid.UUID) error
	IsBlocked(blockerID, blockedID uuid.UUID) (bool, error)
	GetBlockedUsers(blockerID uuid.UUID) ([]*models.User, error)

	Close() error
}

type StoreType string

const (
	PostgreSQL StoreType = "postgres"
	InMemory   StoreType = "memory"
)

// NewStore builds a Store of the given type. The in-memory store is for
// development and tests; production runs on PostgreSQL.
func NewStore(storeType StoreType, connStr string) (Store, error) {
	switch storeType {
	case PostgreSQL:
		return NewPostgresStore(connStr)
	case InMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", storeType)
	}
}
