package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/gigglechat/giggle/internal/models"
)

type PostgresStore struct {
	*sql.DB
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PostgresStore{db}, nil
}

func (db *PostgresStore) CreateUser(username, email, passwordHash string) (*models.User, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM users WHERE username = $1 OR email = $2",
		username, email).Scan(&count)
	if err != nil {
		return nil, err
	}

	if count > 0 {
		return nil, ErrUserAlreadyExists
	}

	user := &models.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
		LastSeen:     time.Now().UTC(),
	}

	_, err = db.Exec(
		"INSERT INTO users (id, username, email, password_hash, created_at, last_seen) VALUES ($1, $2, $3, $4, $5, $6)",
		user.ID, user.Username, user.Email, user.PasswordHash, user.CreatedAt, user.LastSeen,
	)
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (db *PostgresStore) GetUserByEmail(email string) (*models.User, error) {
	user := &models.User{}

	err := db.QueryRow(`
		SELECT id, username, email, password_hash,
		       COALESCE(display_name, ''), COALESCE(avatar_url, ''),
		       is_assistant, created_at, last_seen
		FROM users WHERE email = $1`, email).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.DisplayName, &user.AvatarURL, &user.IsAssistant,
		&user.CreatedAt, &user.LastSeen)

	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}

	if err != nil {
		return nil, err
	}

	return user, nil
}

func (db *PostgresStore) GetUserByID(id uuid.UUID) (*models.User, error) {
	var user models.User
	err := db.QueryRow(`
		SELECT id, username, email, password_hash,
		       COALESCE(display_name, ''), COALESCE(avatar_url, ''),
		       is_assistant, created_at, last_seen
		FROM users WHERE id = $1`,
		id).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.DisplayName, &user.AvatarURL, &user.IsAssistant,
		&user.CreatedAt, &user.LastSeen)

	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (db *PostgresStore) UpdateLastSeen(userID uuid.UUID) error {
	result, err := db.Exec("UPDATE users SET last_seen = $1 WHERE id = $2",
		time.Now().UTC(), userID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (db *PostgresStore) GetAllUsers(excludeUserID uuid.UUID) ([]*models.User, error) {
	rows, err := db.Query(`
		SELECT id, username, email, password_hash,
		       COALESCE(display_name, ''), COALESCE(avatar_url, ''),
		       is_assistant, created_at, last_seen
		FROM users
		WHERE id != $1
		ORDER BY username`, excludeUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	return scanUsers(rows)
}

func scanUsers(rows *sql.Rows) ([]*models.User, error) {
	var users []*models.User
	for rows.Next() {
		var user models.User
		err := rows.Scan(
			&user.ID, &user.Username, &user.Email, &user.PasswordHash,
			&user.DisplayName, &user.AvatarURL, &user.IsAssistant,
			&user.CreatedAt, &user.LastSeen)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, &user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}

	return users, nil
}

func (db *PostgresStore) CreateMessage(msg *models.Message) (*models.Message, error) {
	stored := *msg
	stored.ID = uuid.New()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	if stored.ConversationID == "" {
		stored.ConversationID = models.ConversationID(stored.SenderID, stored.ReceiverID)
	}

	moderation, err := marshalNullable(stored.Moderation)
	if err != nil {
		return nil, err
	}
	reactions, err := json.Marshal(reactionsOrEmpty(stored.Reactions))
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(
		`INSERT INTO messages (id, conversation_id, sender_id, receiver_id, kind, text, image_url, call_url, created_at, status, moderation, reactions)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		stored.ID, stored.ConversationID, stored.SenderID, stored.ReceiverID,
		stored.Kind, stored.Text, stored.ImageURL, stored.CallURL,
		stored.CreatedAt, stored.Status, moderation, reactions,
	)
	if err != nil {
		return nil, err
	}

	return &stored, nil
}

func (db *PostgresStore) GetMessageByID(messageID uuid.UUID) (*models.Message, error) {
	row := db.QueryRow(`
		SELECT id, conversation_id, sender_id, receiver_id, kind, text, image_url, call_url, created_at, status, moderation, reactions
		FROM messages
		WHERE id = $1`, messageID)

	msg, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (db *PostgresStore) GetConversation(userID1, userID2 uuid.UUID) ([]*models.Message, error) {
	rows, err := db.Query(`
		SELECT id, conversation_id, sender_id, receiver_id, kind, text, image_url, call_url, created_at, status, moderation, reactions
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC`,
		models.ConversationID(userID1, userID2),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}

func (db *PostgresStore) UpdateMessageStatus(messageID uuid.UUID, status models.MessageStatus) error {
	result, err := db.Exec("UPDATE messages SET status = $1 WHERE id = $2", status, messageID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrMessageNotFound
	}

	return nil
}

func (db *PostgresStore) UpdateMessageReactions(messageID uuid.UUID, reactions map[string]string) error {
	payload, err := json.Marshal(reactionsOrEmpty(reactions))
	if err != nil {
		return err
	}

	result, err := db.Exec("UPDATE messages SET reactions = $1 WHERE id = $2", payload, messageID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrMessageNotFound
	}

	return nil
}

func (db *PostgresStore) CreateFriendRequest(senderID, receiverID uuid.UUID) (*models.FriendRequest, error) {
	req := &models.FriendRequest{
		ID:         uuid.New(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     models.RequestPending,
		CreatedAt:  time.Now().UTC(),
	}

	_, err := db.Exec(
		"INSERT INTO friend_requests (id, sender_id, receiver_id, status, created_at) VALUES ($1, $2, $3, $4, $5)",
		req.ID, req.SenderID, req.ReceiverID, req.Status, req.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return req, nil
}

func (db *PostgresStore) GetFriendRequestByID(requestID uuid.UUID) (*models.FriendRequest, error) {
	var req models.FriendRequest
	err := db.QueryRow(
		"SELECT id, sender_id, receiver_id, status, created_at FROM friend_requests WHERE id = $1",
		requestID).Scan(&req.ID, &req.SenderID, &req.ReceiverID, &req.Status, &req.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}

	return &req, nil
}

func (db *PostgresStore) GetFriendRequestBetween(userID1, userID2 uuid.UUID) (*models.FriendRequest, error) {
	var req models.FriendRequest
	err := db.QueryRow(`
		SELECT id, sender_id, receiver_id, status, created_at
		FROM friend_requests
		WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at DESC
		LIMIT 1`,
		userID1, userID2).Scan(&req.ID, &req.SenderID, &req.ReceiverID, &req.Status, &req.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}

	return &req, nil
}

func (db *PostgresStore) UpdateFriendRequestStatus(requestID uuid.UUID, status models.RequestStatus) error {
	result, err := db.Exec("UPDATE friend_requests SET status = $1 WHERE id = $2", status, requestID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrRequestNotFound
	}

	return nil
}

func (db *PostgresStore) GetIncomingRequests(userID uuid.UUID) ([]*models.FriendRequest, error) {
	rows, err := db.Query(`
		SELECT id, sender_id, receiver_id, status, created_at
		FROM friend_requests
		WHERE receiver_id = $1 AND status = $2
		ORDER BY created_at ASC`,
		userID, models.RequestPending,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []*models.FriendRequest
	for rows.Next() {
		var req models.FriendRequest
		if err := rows.Scan(&req.ID, &req.SenderID, &req.ReceiverID, &req.Status, &req.CreatedAt); err != nil {
			return nil, err
		}
		requests = append(requests, &req)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return requests, nil
}

func (db *PostgresStore) GetContacts(userID uuid.UUID) ([]*models.User, error) {
	rows, err := db.Query(`
		SELECT u.id, u.username, u.email, u.password_hash,
		       COALESCE(u.display_name, ''), COALESCE(u.avatar_url, ''),
		       u.is_assistant, u.created_at, u.last_seen
		FROM users u
		JOIN friend_requests r
		  ON (r.sender_id = $1 AND r.receiver_id = u.id)
		  OR (r.receiver_id = $1 AND r.sender_id = u.id)
		WHERE r.status = $2
		ORDER BY u.username`,
		userID, models.RequestAccepted,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query contacts: %w", err)
	}
	defer rows.Close()

	return scanUsers(rows)
}

func (db *PostgresStore) CreateBlock(blockerID, blockedID uuid.UUID) (*models.BlockEdge, error) {
	// Blocking is idempotent: a duplicate block returns the existing edge.
	var existing models.BlockEdge
	err := db.QueryRow(
		"SELECT id, blocker_id, blocked_id, created_at FROM blocks WHERE blocker_id = $1 AND blocked_id = $2",
		blockerID, blockedID).Scan(&existing.ID, &existing.BlockerID, &existing.BlockedID, &existing.CreatedAt)
	if err == nil {
		return &existing, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	edge := &models.BlockEdge{
		ID:        uuid.New(),
		BlockerID: blockerID,
		BlockedID: blockedID,
		CreatedAt: time.Now().UTC(),
	}

	_, err = db.Exec(
		"INSERT INTO blocks (id, blocker_id, blocked_id, created_at) VALUES ($1, $2, $3, $4)",
		edge.ID, edge.BlockerID, edge.BlockedID, edge.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return edge, nil
}

func (db *PostgresStore) DeleteBlock(blockerID, blockedID uuid.UUID) error {
	_, err := db.Exec("DELETE FROM blocks WHERE blocker_id = $1 AND blocked_id = $2", blockerID, blockedID)
	return err
}

func (db *PostgresStore) IsBlocked(blockerID, blockedID uuid.UUID) (bool, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM blocks WHERE blocker_id = $1 AND blocked_id = $2",
		blockerID, blockedID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (db *PostgresStore) GetBlockedUsers(blockerID uuid.UUID) ([]*models.User, error) {
	rows, err := db.Query(`
		SELECT u.id, u.username, u.email, u.password_hash,
		       COALESCE(u.display_name, ''), COALESCE(u.avatar_url, ''),
		       u.is_assistant, u.created_at, u.last_seen
		FROM users u
		JOIN blocks b ON b.blocked_id = u.id
		WHERE b.blocker_id = $1
		ORDER BY u.username`,
		blockerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query blocked users: %w", err)
	}
	defer rows.Close()

	return scanUsers(rows)
}

func (db *PostgresStore) Close() error {
	return db.DB.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(row rowScanner) (*models.Message, error) {
	var msg models.Message
	var moderation, reactions []byte

	err := row.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.ReceiverID,
		&msg.Kind, &msg.Text, &msg.ImageURL, &msg.CallURL,
		&msg.CreatedAt, &msg.Status, &moderation, &reactions)
	if err != nil {
		return nil, err
	}

	if len(moderation) > 0 {
		var result models.ModerationResult
		if err := json.Unmarshal(moderation, &result); err != nil {
			return nil, fmt.Errorf("failed to decode moderation data: %w", err)
		}
		msg.Moderation = &result
	}

	if len(reactions) > 0 {
		if err := json.Unmarshal(reactions, &msg.Reactions); err != nil {
			return nil, fmt.Errorf("failed to decode reactions: %w", err)
		}
	}
	if msg.Reactions == nil {
		msg.Reactions = map[string]string{}
	}

	return &msg, nil
}

func marshalNullable(v *models.ModerationResult) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func reactionsOrEmpty(reactions map[string]string) map[string]string {
	if reactions == nil {
		return map[string]string{}
	}
	return reactions
}
