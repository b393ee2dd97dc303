package relationship

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigglechat/giggle/internal/chat"
	"github.com/gigglechat/giggle/internal/database"
	"github.com/gigglechat/giggle/internal/models"
)

// captureBlocks records block-change notifications.
type captureBlocks struct {
	mu     sync.Mutex
	events []bool
}

func (c *captureBlocks) PublishBlockChange(blockerID, blockedID uuid.UUID, blocked bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, blocked)
}

func newService(t *testing.T) (*Service, *database.MemoryStore, *chat.StrikeLedger) {
	t.Helper()
	store := database.NewMemoryStore()
	strikes := chat.NewStrikeLedger()
	return NewService(store, strikes, &captureBlocks{}), store, strikes
}

func TestSendRequest(t *testing.T) {
	svc, store, _ := newService(t)
	alice := uuid.New()
	bob := uuid.New()

	req, err := svc.SendRequest(alice, bob)
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, req.Status)

	t.Run("duplicate while pending", func(t *testing.T) {
		_, err := svc.SendRequest(alice, bob)
		assert.ErrorIs(t, err, ErrRequestPending)

		// The reverse direction hits the same pending edge.
		_, err = svc.SendRequest(bob, alice)
		assert.ErrorIs(t, err, ErrRequestPending)
	})

	t.Run("duplicate after accept", func(t *testing.T) {
		require.NoError(t, svc.Respond(req.ID, true))
		_, err := svc.SendRequest(alice, bob)
		assert.ErrorIs(t, err, ErrAlreadyFriends)
	})

	t.Run("to self", func(t *testing.T) {
		_, err := svc.SendRequest(alice, alice)
		assert.ErrorIs(t, err, ErrSelfRequest)
	})

	t.Run("accepted pair are contacts", func(t *testing.T) {
		contacts, err := store.GetContacts(alice)
		require.NoError(t, err)
		require.Len(t, contacts, 1)
		assert.Equal(t, bob, contacts[0].ID)
	})
}

func TestDenyAutoBlocks(t *testing.T) {
	svc, store, _ := newService(t)
	alice := uuid.New()
	bob := uuid.New()

	req, err := svc.SendRequest(alice, bob)
	require.NoError(t, err)

	require.NoError(t, svc.Respond(req.ID, false))

	stored, err := store.GetFriendRequestByID(req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestDenied, stored.Status)

	// Deny always blocks, receiver toward sender.
	blocked, err := store.IsBlocked(bob, alice)
	require.NoError(t, err)
	assert.True(t, blocked)

	// The block is directional.
	blocked, err = store.IsBlocked(alice, bob)
	require.NoError(t, err)
	assert.False(t, blocked)

	t.Run("denied edge is terminal for requests", func(t *testing.T) {
		_, err := svc.SendRequest(alice, bob)
		// Alice is now blocked by Bob, which masks the denied edge.
		assert.ErrorIs(t, err, ErrBlockedByTarget)
	})
}

func TestBlockIsIdempotent(t *testing.T) {
	svc, store, _ := newService(t)
	alice := uuid.New()
	troll := uuid.New()

	store.AddUser(&models.User{ID: troll, Username: "troll", Email: "troll@example.com"})

	require.NoError(t, svc.Block(alice, troll))
	require.NoError(t, svc.Block(alice, troll))

	users, err := svc.BlockedUsers(alice)
	require.NoError(t, err)
	assert.Len(t, users, 1, "duplicate block leaves exactly one edge")
}

func TestUnblockResetsStrikes(t *testing.T) {
	svc, store, strikes := newService(t)
	victim := uuid.New()
	offender := uuid.New()

	strikes.Record(offender, victim)
	strikes.Record(offender, victim)
	require.NoError(t, svc.Block(victim, offender))

	require.NoError(t, svc.Unblock(victim, offender))

	blocked, err := store.IsBlocked(victim, offender)
	require.NoError(t, err)
	assert.False(t, blocked)
	assert.Equal(t, 0, strikes.Count(offender, victim), "a fresh relationship starts clean")
}

func TestSendRequestBlockGates(t *testing.T) {
	svc, store, _ := newService(t)
	alice := uuid.New()
	bob := uuid.New()

	t.Run("blocked by target", func(t *testing.T) {
		_, err := store.CreateBlock(bob, alice)
		require.NoError(t, err)

		_, err = svc.SendRequest(alice, bob)
		assert.ErrorIs(t, err, ErrBlockedByTarget)

		require.NoError(t, store.DeleteBlock(bob, alice))
	})

	t.Run("sender must unblock first", func(t *testing.T) {
		_, err := store.CreateBlock(alice, bob)
		require.NoError(t, err)

		_, err = svc.SendRequest(alice, bob)
		assert.ErrorIs(t, err, ErrMustUnblock)
	})
}

func TestContactsIncludeAssistant(t *testing.T) {
	svc, store, _ := newService(t)
	assistant := uuid.New()
	alice := uuid.New()

	store.AddUser(&models.User{ID: assistant, Username: "giggle-ai", Email: "ai@example.com", IsAssistant: true})
	svc.SetAssistant(assistant)

	contacts, err := svc.Contacts(alice)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, assistant, contacts[0].ID)

	// The assistant does not list itself.
	contacts, err = svc.Contacts(assistant)
	require.NoError(t, err)
	assert.Empty(t, contacts)
}

func TestIncomingRequests(t *testing.T) {
	svc, store, _ := newService(t)
	alice := uuid.New()
	bob := uuid.New()

	store.AddUser(&models.User{ID: alice, Username: "alice", Email: "alice@example.com"})

	_, err := svc.SendRequest(alice, bob)
	require.NoError(t, err)

	requests, err := svc.IncomingRequests(bob)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, alice, requests[0].SenderID)
	require.NotNil(t, requests[0].Sender)
	assert.Equal(t, "alice", requests[0].Sender.Username)

	// The sender has no incoming requests.
	requests, err = svc.IncomingRequests(alice)
	require.NoError(t, err)
	assert.Empty(t, requests)
}
