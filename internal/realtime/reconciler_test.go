package realtime

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigglechat/giggle/internal/models"
)

func newTestConversation() (*Conversation, uuid.UUID, uuid.UUID) {
	self := uuid.New()
	peer := uuid.New()
	return NewConversation(self, peer), self, peer
}

func makeMessage(sender, receiver uuid.UUID, text string, at time.Time) *models.Message {
	return &models.Message{
		ID:             uuid.New(),
		ConversationID: models.ConversationID(sender, receiver),
		SenderID:       sender,
		ReceiverID:     receiver,
		Kind:           models.KindText,
		Text:           text,
		CreatedAt:      at,
		Status:         models.StatusSent,
	}
}

func messageTexts(conv *Conversation) []string {
	msgs := conv.Messages()
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Text
	}
	return out
}

func TestEchoAfterOptimisticInsert(t *testing.T) {
	conv, self, peer := newTestConversation()
	now := time.Now().UTC()

	optimistic := makeMessage(self, peer, "hello", now)
	optimistic.Status = models.StatusPending
	conv.AddOptimistic(optimistic)

	echo := makeMessage(self, peer, "hello", now.Add(200*time.Millisecond))
	conv.Apply(Event{Kind: EventMessageUpserted, Message: echo, TempID: optimistic.ID})

	msgs := conv.Messages()
	require.Len(t, msgs, 1, "exactly one visible entry after the round trip")
	assert.Equal(t, echo.ID, msgs[0].ID)
	assert.Equal(t, models.StatusSent, msgs[0].Status)
}

func TestEchoBeforeOptimisticInsert(t *testing.T) {
	conv, self, peer := newTestConversation()
	now := time.Now().UTC()

	echo := makeMessage(self, peer, "hello", now)
	conv.Apply(Event{Kind: EventMessageUpserted, Message: echo})

	optimistic := makeMessage(self, peer, "hello", now)
	optimistic.Status = models.StatusPending
	conv.AddOptimistic(optimistic)

	msgs := conv.Messages()
	require.Len(t, msgs, 1, "arrival order must not produce a duplicate")
	assert.Equal(t, echo.ID, msgs[0].ID)
}

func TestEchoMatchesByContentAndTime(t *testing.T) {
	conv, self, peer := newTestConversation()
	now := time.Now().UTC()

	optimistic := makeMessage(self, peer, "hello", now)
	optimistic.Status = models.StatusPending
	conv.AddOptimistic(optimistic)

	// No temp id on the event: the fallback pairs by sender, content
	// and approximate timestamp.
	echo := makeMessage(self, peer, "hello", now.Add(2*time.Second))
	conv.Apply(Event{Kind: EventMessageUpserted, Message: echo})

	msgs := conv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, echo.ID, msgs[0].ID)
}

func TestEchoPreservesPlaceholderPosition(t *testing.T) {
	conv, self, peer := newTestConversation()
	now := time.Now().UTC()

	conv.Seed([]*models.Message{
		makeMessage(peer, self, "first", now.Add(-2*time.Minute)),
	})

	optimistic := makeMessage(self, peer, "middle", now)
	optimistic.Status = models.StatusPending
	conv.AddOptimistic(optimistic)

	conv.Apply(Event{Kind: EventMessageUpserted, Message: makeMessage(peer, self, "last", now.Add(time.Second))})

	// The durable echo carries a slightly later timestamp; the entry
	// must not jump past "last".
	echo := makeMessage(self, peer, "middle", now.Add(2*time.Second))
	conv.Apply(Event{Kind: EventMessageUpserted, Message: echo, TempID: optimistic.ID})

	assert.Equal(t, []string{"first", "middle", "last"}, messageTexts(conv))
}

func TestStatusUpdateReplacesInPlace(t *testing.T) {
	conv, self, peer := newTestConversation()
	now := time.Now().UTC()

	msg := makeMessage(self, peer, "hello", now)
	conv.Apply(Event{Kind: EventMessageUpserted, Message: msg})

	updated := *msg
	updated.Status = models.StatusRead
	conv.Apply(Event{Kind: EventMessageUpserted, Message: &updated})

	msgs := conv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, models.StatusRead, msgs[0].Status)
}

func TestOrderingByCreatedAtWithIDTiebreak(t *testing.T) {
	conv, self, peer := newTestConversation()
	now := time.Now().UTC()

	early := makeMessage(peer, self, "early", now.Add(-time.Minute))
	late := makeMessage(self, peer, "late", now)
	tieA := makeMessage(peer, self, "tie-a", now.Add(-30*time.Second))
	tieB := makeMessage(self, peer, "tie-b", now.Add(-30*time.Second))

	// Deterministic tiebreak regardless of arrival order.
	if tieA.ID.String() > tieB.ID.String() {
		tieA, tieB = tieB, tieA
		tieA.Text, tieB.Text = "tie-a", "tie-b"
	}

	for _, m := range []*models.Message{late, tieB, early, tieA} {
		conv.Apply(Event{Kind: EventMessageUpserted, Message: m})
	}

	assert.Equal(t, []string{"early", "tie-a", "tie-b", "late"}, messageTexts(conv))
}

func TestQuarantinedContentHiddenFromReceiver(t *testing.T) {
	conv, self, peer := newTestConversation()

	inbound := makeMessage(peer, self, "something awful", time.Now().UTC())
	inbound.Status = models.StatusQuarantined
	conv.Apply(Event{Kind: EventMessageUpserted, Message: inbound})

	msgs := conv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, models.HiddenText, msgs[0].Text)

	// The sender's own view keeps the real content.
	senderView := NewConversation(peer, self)
	senderView.Apply(Event{Kind: EventMessageUpserted, Message: inbound})
	assert.Equal(t, "something awful", senderView.Messages()[0].Text)
}

func TestBlockChangeDisablesSubmit(t *testing.T) {
	conv, self, peer := newTestConversation()

	assert.True(t, conv.CanSubmit())

	conv.Apply(Event{Kind: EventBlockChanged, BlockerID: peer, BlockedID: self, Blocked: true})
	assert.False(t, conv.CanSubmit())

	// Our own block of the peer does not disable our submissions.
	conv.Apply(Event{Kind: EventBlockChanged, BlockerID: peer, BlockedID: self, Blocked: false})
	conv.Apply(Event{Kind: EventBlockChanged, BlockerID: self, BlockedID: peer, Blocked: true})
	assert.True(t, conv.CanSubmit())
}

func TestTypingExpiresWithoutFalseSignal(t *testing.T) {
	conv, _, peer := newTestConversation()
	conv.SetTypingTTL(30 * time.Millisecond)

	conv.Apply(Event{Kind: EventTyping, UserID: peer, Typing: true})
	assert.True(t, conv.PeerTyping())

	// The peer disconnected mid-type; no typing=false ever arrives.
	assert.Eventually(t, func() bool { return !conv.PeerTyping() },
		time.Second, 5*time.Millisecond)
}

func TestTypingClearedByExplicitFalse(t *testing.T) {
	conv, _, peer := newTestConversation()
	conv.SetTypingTTL(time.Minute)

	conv.Apply(Event{Kind: EventTyping, UserID: peer, Typing: true})
	conv.Apply(Event{Kind: EventTyping, UserID: peer, Typing: false})
	assert.False(t, conv.PeerTyping())
}

func TestTypingIgnoresOtherUsers(t *testing.T) {
	conv, _, _ := newTestConversation()

	conv.Apply(Event{Kind: EventTyping, UserID: uuid.New(), Typing: true})
	assert.False(t, conv.PeerTyping())
}

func TestPresenceTracksPeerOnly(t *testing.T) {
	conv, _, peer := newTestConversation()

	conv.Apply(Event{Kind: EventPresenceChanged, UserID: uuid.New(), Online: true})
	assert.False(t, conv.PeerOnline())

	conv.Apply(Event{Kind: EventPresenceChanged, UserID: peer, Online: true})
	assert.True(t, conv.PeerOnline())

	conv.Apply(Event{Kind: EventPresenceChanged, UserID: peer, Online: false})
	assert.False(t, conv.PeerOnline())
}

func TestCloseDiscardsLateEvents(t *testing.T) {
	conv, self, peer := newTestConversation()

	conv.Apply(Event{Kind: EventMessageUpserted, Message: makeMessage(peer, self, "before", time.Now().UTC())})
	conv.Close()

	// A classification or send completing after teardown must not
	// mutate the view.
	conv.Apply(Event{Kind: EventMessageUpserted, Message: makeMessage(peer, self, "after", time.Now().UTC())})
	assert.Equal(t, []string{"before"}, messageTexts(conv))
	assert.False(t, conv.CanSubmit())
}

func TestOnChangeNotifications(t *testing.T) {
	conv, self, peer := newTestConversation()

	changes := 0
	conv.OnChange(func() { changes++ })

	conv.Apply(Event{Kind: EventMessageUpserted, Message: makeMessage(peer, self, "hi", time.Now().UTC())})
	assert.Equal(t, 1, changes)

	// An event that changes nothing does not notify.
	conv.Apply(Event{Kind: EventBlockChanged, BlockerID: self, BlockedID: peer, Blocked: false})
	assert.Equal(t, 1, changes)
}
