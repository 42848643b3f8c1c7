package persona

import (
	"sync"
	"time"
)

const (
	// threadResponseInterval is the minimum gap between two bot responses in
	// the same thread.
	threadResponseInterval = 1 * time.Second
	// creationCooldown is the minimum gap between two thread creations by
	// the same user.
	creationCooldown = 5 * time.Minute
)

// Limiter holds the ephemeral rate-limit state: per-thread last-response
// reservations and per-user creation cooldowns. It is owned by the core and
// injected where needed; nothing here is persisted, and thread counts stay
// authoritative in the store.
type Limiter struct {
	mu           sync.Mutex
	lastResponse map[string]time.Time // thread ID → reserved response time
	lastCreation map[string]time.Time // user ID → last thread creation

	threadInterval time.Duration
	cooldown       time.Duration
	now            func() time.Time
}

// NewLimiter creates a Limiter with the production intervals.
func NewLimiter() *Limiter {
	return &Limiter{
		lastResponse:   make(map[string]time.Time),
		lastCreation:   make(map[string]time.Time),
		threadInterval: threadResponseInterval,
		cooldown:       creationCooldown,
		now:            time.Now,
	}
}

// ReserveThread reserves the next response slot for a thread and returns how
// long the caller must wait before responding. The reservation is taken at
// entry, under the map lock, so concurrent messages in the same thread queue
// up in acquisition order while other threads proceed independently.
func (l *Limiter) ReserveThread(threadID string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	slot := now
	if last, ok := l.lastResponse[threadID]; ok {
		if next := last.Add(l.threadInterval); next.After(now) {
			slot = next
		}
	}
	l.lastResponse[threadID] = slot
	return slot.Sub(now)
}

// CreationWait returns how much of the creation cooldown remains for a user;
// zero means the user may create a thread now.
func (l *Limiter) CreationWait(userID string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	last, ok := l.lastCreation[userID]
	if !ok {
		return 0
	}
	remaining := l.cooldown - l.now().Sub(last)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RecordCreation marks a successful thread creation for cooldown purposes.
func (l *Limiter) RecordCreation(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastCreation[userID] = l.now()
}
