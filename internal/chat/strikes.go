package chat

import (
	"sync"

	"github.com/google/uuid"
)

// StrikeLedger counts consecutive flagged messages per ordered
// (offender, victim) pair. Escalation is relationship-scoped: a user
// toxic toward one peer is not penalized toward another. Safe for
// concurrent use across conversations.
type StrikeLedger struct {
	mu      sync.Mutex
	strikes map[strikeKey]int
}

type strikeKey struct {
	offenderID uuid.UUID
	victimID   uuid.UUID
}

func NewStrikeLedger() *StrikeLedger {
	return &StrikeLedger{strikes: make(map[strikeKey]int)}
}

// Record increments and returns the counter for the pair.
func (l *StrikeLedger) Record(offenderID, victimID uuid.UUID) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := strikeKey{offenderID: offenderID, victimID: victimID}
	l.strikes[key]++
	return l.strikes[key]
}

// Count returns the current counter for the pair without mutating it.
func (l *StrikeLedger) Count(offenderID, victimID uuid.UUID) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.strikes[strikeKey{offenderID: offenderID, victimID: victimID}]
}

// Reset clears the pair so a fresh relationship starts clean. Called
// when the victim unblocks the offender.
func (l *StrikeLedger) Reset(offenderID, victimID uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.strikes, strikeKey{offenderID: offenderID, victimID: victimID})
}
