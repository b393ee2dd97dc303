// Package realtime merges authoritative change events into the local
// view of a conversation, reconciling them against optimistic entries.
package realtime

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gigglechat/giggle/internal/logger"
	"github.com/gigglechat/giggle/internal/models"
)

var log = logger.New("realtime")

// TypingTTL is how long a received typing=true stays visible without a
// follow-up. The reconciler schedules its own expiry rather than
// trusting a matching typing=false to arrive; the peer may disconnect
// mid-type.
const TypingTTL = 5 * time.Second

// matchWindow bounds the content+timestamp fallback used to pair a
// durable echo with an optimistic placeholder when no temp-id mapping
// arrived.
const matchWindow = 30 * time.Second

// Conversation is the reconciled local view of one two-party
// conversation. All mutation is serialized behind one mutex so a
// concurrent submit and reconcile cannot interleave.
type Conversation struct {
	mu sync.Mutex

	selfID uuid.UUID
	peerID uuid.UUID

	messages []*models.Message
	tempIDs  map[uuid.UUID]bool

	blockedByPeer bool
	blockingPeer  bool
	peerTyping    bool
	peerOnline    bool
	typingTimer   *time.Timer
	typingTTL     time.Duration

	onChange func()
	closed   bool
}

func NewConversation(selfID, peerID uuid.UUID) *Conversation {
	return &Conversation{
		selfID:    selfID,
		peerID:    peerID,
		tempIDs:   make(map[uuid.UUID]bool),
		typingTTL: TypingTTL,
	}
}

// OnChange registers a callback invoked (outside the lock) whenever the
// visible state changes.
func (c *Conversation) OnChange(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// Seed loads an initial authoritative snapshot, replacing local state.
func (c *Conversation) Seed(messages []*models.Message) {
	c.mu.Lock()
	c.messages = append([]*models.Message(nil), messages...)
	c.sortLocked()
	changed := !c.closed
	c.mu.Unlock()

	if changed {
		c.notify()
	}
}

// SetTypingTTL overrides the typing expiry window.
func (c *Conversation) SetTypingTTL(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.typingTTL = d
}

// AddOptimistic inserts a locally-created pending entry for immediate
// display. The entry's id is temporary; a later message_upserted event
// replaces it with the durable record. If the authoritative echo
// already arrived, the optimistic insert is dropped so the entry never
// appears twice.
func (c *Conversation) AddOptimistic(msg *models.Message) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	for _, existing := range c.messages {
		if c.tempIDs[existing.ID] || existing.SenderID != msg.SenderID {
			continue
		}
		if existing.Text != msg.Text || existing.Kind != msg.Kind {
			continue
		}
		delta := msg.CreatedAt.Sub(existing.CreatedAt)
		if delta < 0 {
			delta = -delta
		}
		if delta <= matchWindow {
			c.mu.Unlock()
			return
		}
	}
	c.tempIDs[msg.ID] = true
	c.messages = append(c.messages, msg)
	c.sortLocked()
	c.mu.Unlock()

	c.notify()
}

// Apply merges one authoritative event. Events for a closed
// conversation are discarded: a result arriving after teardown must not
// mutate a view no longer observed.
func (c *Conversation) Apply(ev Event) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	changed := false
	switch ev.Kind {
	case EventMessageUpserted:
		if ev.Message != nil {
			changed = c.applyMessageLocked(ev.Message, ev.TempID)
		}
	case EventBlockChanged:
		changed = c.applyBlockLocked(ev)
	case EventTyping:
		changed = c.applyTypingLocked(ev)
	case EventPresenceChanged:
		if ev.UserID == c.peerID && c.peerOnline != ev.Online {
			c.peerOnline = ev.Online
			changed = true
		}
	default:
		log.Warn("unknown event kind %q discarded", ev.Kind)
	}
	c.mu.Unlock()

	if changed {
		c.notify()
	}
}

// applyMessageLocked implements the reconciliation rule: replace by
// durable id in place, else replace the matching optimistic
// placeholder preserving its position, else append.
func (c *Conversation) applyMessageLocked(msg *models.Message, tempID uuid.UUID) bool {
	for i, existing := range c.messages {
		if existing.ID == msg.ID {
			c.messages[i] = msg
			return true
		}
	}

	if idx := c.placeholderIndexLocked(msg, tempID); idx >= 0 {
		delete(c.tempIDs, c.messages[idx].ID)
		// Replace in place so the entry does not jump position when the
		// durable timestamp differs slightly from the optimistic one.
		c.messages[idx] = msg
		return true
	}

	c.messages = append(c.messages, msg)
	c.sortLocked()
	return true
}

// placeholderIndexLocked finds the optimistic entry a durable echo
// replaces: by explicit temp id when the send acknowledgement supplied
// one, otherwise by content and approximate timestamp.
func (c *Conversation) placeholderIndexLocked(msg *models.Message, tempID uuid.UUID) int {
	if tempID != uuid.Nil {
		for i, existing := range c.messages {
			if existing.ID == tempID && c.tempIDs[existing.ID] {
				return i
			}
		}
	}

	if msg.SenderID != c.selfID {
		return -1
	}
	for i, existing := range c.messages {
		if !c.tempIDs[existing.ID] {
			continue
		}
		if existing.Status != models.StatusPending && existing.Status != models.StatusSent {
			continue
		}
		if existing.Text != msg.Text || existing.Kind != msg.Kind {
			continue
		}
		delta := msg.CreatedAt.Sub(existing.CreatedAt)
		if delta < 0 {
			delta = -delta
		}
		if delta <= matchWindow {
			return i
		}
	}
	return -1
}

func (c *Conversation) applyBlockLocked(ev Event) bool {
	switch {
	case ev.BlockerID == c.peerID && ev.BlockedID == c.selfID:
		if c.blockedByPeer != ev.Blocked {
			c.blockedByPeer = ev.Blocked
			return true
		}
	case ev.BlockerID == c.selfID && ev.BlockedID == c.peerID:
		if c.blockingPeer != ev.Blocked {
			c.blockingPeer = ev.Blocked
			return true
		}
	}
	return false
}

func (c *Conversation) applyTypingLocked(ev Event) bool {
	if ev.UserID != c.peerID {
		return false
	}

	if c.typingTimer != nil {
		c.typingTimer.Stop()
		c.typingTimer = nil
	}

	if !ev.Typing {
		if !c.peerTyping {
			return false
		}
		c.peerTyping = false
		return true
	}

	c.peerTyping = true
	c.typingTimer = time.AfterFunc(c.typingTTL, c.expireTyping)
	return true
}

func (c *Conversation) expireTyping() {
	c.mu.Lock()
	if c.closed || !c.peerTyping {
		c.mu.Unlock()
		return
	}
	c.peerTyping = false
	c.typingTimer = nil
	c.mu.Unlock()

	c.notify()
}

// Messages returns the visible entries in presentation order, with
// quarantined content hidden from this side unless it is the sender.
func (c *Conversation) Messages() []*models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*models.Message, len(c.messages))
	for i, msg := range c.messages {
		out[i] = msg.Sanitized(c.selfID)
	}
	return out
}

// CanSubmit reports whether further submissions to the peer are
// allowed. It flips to false when a block_changed event says the peer
// has blocked us; already-rendered history stays visible.
func (c *Conversation) CanSubmit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.blockedByPeer && !c.closed
}

// PeerTyping reports the ephemeral typing indicator.
func (c *Conversation) PeerTyping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerTyping
}

// PeerOnline reports the last observed presence of the peer.
func (c *Conversation) PeerOnline() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerOnline
}

// Close tears the view down. Late events and expiry timers become
// no-ops; in-flight work is discarded on arrival rather than aborted.
func (c *Conversation) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.typingTimer != nil {
		c.typingTimer.Stop()
		c.typingTimer = nil
	}
}

// sortLocked keeps entries ordered by CreatedAt ascending with id as a
// stable tiebreak across reconciliations.
func (c *Conversation) sortLocked() {
	sort.SliceStable(c.messages, func(i, j int) bool {
		a, b := c.messages[i], c.messages[j]
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID.String() < b.ID.String()
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

func (c *Conversation) notify() {
	c.mu.Lock()
	fn := c.onChange
	closed := c.closed
	c.mu.Unlock()

	if fn != nil && !closed {
		fn()
	}
}
