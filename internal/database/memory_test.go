package database

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigglechat/giggle/internal/models"
)

func TestMemoryStoreUsers(t *testing.T) {
	store := NewMemoryStore()

	user, err := store.CreateUser("alice", "alice@example.com", "hash")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, user.ID)

	t.Run("duplicate username", func(t *testing.T) {
		_, err := store.CreateUser("alice", "other@example.com", "hash")
		assert.ErrorIs(t, err, ErrUserAlreadyExists)
	})

	t.Run("lookup by email", func(t *testing.T) {
		found, err := store.GetUserByEmail("alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.ID)

		_, err = store.GetUserByEmail("nobody@example.com")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("update last seen", func(t *testing.T) {
		before := user.LastSeen
		time.Sleep(time.Millisecond)
		require.NoError(t, store.UpdateLastSeen(user.ID))

		found, err := store.GetUserByID(user.ID)
		require.NoError(t, err)
		assert.True(t, found.LastSeen.After(before))
	})

	t.Run("returned copies are detached", func(t *testing.T) {
		found, err := store.GetUserByID(user.ID)
		require.NoError(t, err)
		found.Username = "mutated"

		again, err := store.GetUserByID(user.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", again.Username)
	})
}

func TestMemoryStoreMessages(t *testing.T) {
	store := NewMemoryStore()
	sender := uuid.New()
	receiver := uuid.New()

	created, err := store.CreateMessage(&models.Message{
		SenderID:   sender,
		ReceiverID: receiver,
		Kind:       models.KindText,
		Text:       "hello",
		Status:     models.StatusSent,
	})
	require.NoError(t, err)

	t.Run("durable id and derived fields assigned", func(t *testing.T) {
		assert.NotEqual(t, uuid.Nil, created.ID)
		assert.Equal(t, models.ConversationID(sender, receiver), created.ConversationID)
		assert.False(t, created.CreatedAt.IsZero())
		assert.NotNil(t, created.Reactions)
	})

	t.Run("conversation is symmetric and ordered", func(t *testing.T) {
		later, err := store.CreateMessage(&models.Message{
			SenderID:   receiver,
			ReceiverID: sender,
			Kind:       models.KindText,
			Text:       "hi back",
			CreatedAt:  created.CreatedAt.Add(time.Second),
			Status:     models.StatusSent,
		})
		require.NoError(t, err)

		forward, err := store.GetConversation(sender, receiver)
		require.NoError(t, err)
		reverse, err := store.GetConversation(receiver, sender)
		require.NoError(t, err)

		require.Len(t, forward, 2)
		assert.Equal(t, forward[0].ID, created.ID)
		assert.Equal(t, forward[1].ID, later.ID)
		assert.Equal(t, forward[0].ID, reverse[0].ID)
	})

	t.Run("status update", func(t *testing.T) {
		require.NoError(t, store.UpdateMessageStatus(created.ID, models.StatusRead))
		found, err := store.GetMessageByID(created.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusRead, found.Status)

		assert.ErrorIs(t, store.UpdateMessageStatus(uuid.New(), models.StatusRead), ErrMessageNotFound)
	})

	t.Run("reactions update", func(t *testing.T) {
		reactions := map[string]string{sender.String(): "👍"}
		require.NoError(t, store.UpdateMessageReactions(created.ID, reactions))

		found, err := store.GetMessageByID(created.ID)
		require.NoError(t, err)
		assert.Equal(t, "👍", found.Reactions[sender.String()])
	})
}

func TestMemoryStoreFriendRequests(t *testing.T) {
	store := NewMemoryStore()
	alice, err := store.CreateUser("alice", "alice@example.com", "hash")
	require.NoError(t, err)
	bob, err := store.CreateUser("bob", "bob@example.com", "hash")
	require.NoError(t, err)

	req, err := store.CreateFriendRequest(alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, req.Status)

	t.Run("lookup between pair is direction-agnostic", func(t *testing.T) {
		found, err := store.GetFriendRequestBetween(bob.ID, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, req.ID, found.ID)
	})

	t.Run("incoming requests scoped to receiver", func(t *testing.T) {
		incoming, err := store.GetIncomingRequests(bob.ID)
		require.NoError(t, err)
		require.Len(t, incoming, 1)

		none, err := store.GetIncomingRequests(alice.ID)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("accept yields contacts on both sides", func(t *testing.T) {
		require.NoError(t, store.UpdateFriendRequestStatus(req.ID, models.RequestAccepted))

		contacts, err := store.GetContacts(alice.ID)
		require.NoError(t, err)
		require.Len(t, contacts, 1)
		assert.Equal(t, bob.ID, contacts[0].ID)

		contacts, err = store.GetContacts(bob.ID)
		require.NoError(t, err)
		require.Len(t, contacts, 1)
		assert.Equal(t, alice.ID, contacts[0].ID)
	})
}

func TestMemoryStoreBlocks(t *testing.T) {
	store := NewMemoryStore()
	alice, err := store.CreateUser("alice", "alice@example.com", "hash")
	require.NoError(t, err)
	bob, err := store.CreateUser("bob", "bob@example.com", "hash")
	require.NoError(t, err)

	first, err := store.CreateBlock(alice.ID, bob.ID)
	require.NoError(t, err)

	t.Run("idempotent", func(t *testing.T) {
		second, err := store.CreateBlock(alice.ID, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)

		blocked, err := store.GetBlockedUsers(alice.ID)
		require.NoError(t, err)
		assert.Len(t, blocked, 1)
	})

	t.Run("directional", func(t *testing.T) {
		forward, err := store.IsBlocked(alice.ID, bob.ID)
		require.NoError(t, err)
		assert.True(t, forward)

		reverse, err := store.IsBlocked(bob.ID, alice.ID)
		require.NoError(t, err)
		assert.False(t, reverse)
	})

	t.Run("delete lifts the block", func(t *testing.T) {
		require.NoError(t, store.DeleteBlock(alice.ID, bob.ID))

		blocked, err := store.IsBlocked(alice.ID, bob.ID)
		require.NoError(t, err)
		assert.False(t, blocked)
	})
}
