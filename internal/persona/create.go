package persona

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/zulandar/masquerade/internal/gateway"
)

// maxSessionsPerUser caps the number of active persona threads one user may
// own at a time.
const maxSessionsPerUser = 3

// CreateRequest carries the validated-at-the-edge inputs of a thread
// creation command.
type CreateRequest struct {
	ChannelID         string
	GuildID           string
	UserID            string
	Name              string
	Persona           string // empty means DefaultPersona
	AvatarURL         string
	AvatarContentType string
	Private           bool
}

// Creator runs the thread-creation workflow: precondition checks in a fixed
// order, platform thread creation, session persistence, and the compensating
// thread deletion when persistence fails.
type Creator struct {
	store   Store
	ai      Completer
	cache   *Cache
	limiter *Limiter
	adapter gateway.Adapter
	now     func() time.Time
}

// CreatorOpts holds parameters for creating a Creator.
type CreatorOpts struct {
	Store   Store
	AI      Completer
	Cache   *Cache
	Limiter *Limiter
	Adapter gateway.Adapter
}

// NewCreator creates a Creator.
func NewCreator(opts CreatorOpts) (*Creator, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("persona: creator: store is required")
	}
	if opts.AI == nil {
		return nil, fmt.Errorf("persona: creator: ai is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("persona: creator: adapter is required")
	}
	cache := opts.Cache
	if cache == nil {
		cache = NewCache()
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = NewLimiter()
	}
	return &Creator{
		store:   opts.Store,
		ai:      opts.AI,
		cache:   cache,
		limiter: limiter,
		adapter: opts.Adapter,
		now:     time.Now,
	}, nil
}

// Create validates the request, creates the platform thread and the session
// document together, and returns the new thread's ID. Preconditions are
// checked in a fixed order and the first failure wins; no thread exists
// after any precondition failure. If the session write fails after the
// thread was created, the thread is deleted again: the pair is created
// atomically or not at all.
func (c *Creator) Create(ctx context.Context, req CreateRequest) (string, error) {
	if err := c.checkPreconditions(ctx, req); err != nil {
		return "", err
	}

	threadID, err := c.adapter.CreateThread(ctx, req.ChannelID, req.Name+" RP", req.Private)
	if err != nil {
		return "", fmt.Errorf("%w: failed to create the thread", ErrServiceUnavailable)
	}
	log.Printf("persona: created thread %s for user %s", threadID, req.UserID)

	sess := NewSession(threadID, req.Name, req.Persona, req.ChannelID, req.GuildID,
		req.UserID, req.AvatarURL, c.now())

	if err := c.store.CreateSession(ctx, sess); err != nil {
		log.Printf("persona: save session for thread %s failed, rolling back: %v", threadID, err)
		if derr := c.adapter.DeleteThread(ctx, threadID); derr != nil {
			log.Printf("persona: rollback delete of thread %s: %v", threadID, derr)
		}
		return "", fmt.Errorf("%w: failed to save persona data", ErrServiceUnavailable)
	}

	c.cache.Put(sess)
	c.limiter.RecordCreation(req.UserID)
	return threadID, nil
}

// checkPreconditions runs the creation gate checks in order: AI up, store
// up, creation cooldown, session cap, name length, avatar type.
func (c *Creator) checkPreconditions(ctx context.Context, req CreateRequest) error {
	if !c.ai.Available() {
		return fmt.Errorf("%w: AI service is currently unavailable", ErrServiceUnavailable)
	}
	if !c.store.Available(ctx) {
		return fmt.Errorf("%w: database service is currently unavailable", ErrServiceUnavailable)
	}

	if wait := c.limiter.CreationWait(req.UserID); wait > 0 {
		minutes := int(wait.Round(time.Minute) / time.Minute)
		if minutes < 1 {
			minutes = 1
		}
		return fmt.Errorf("%w: you're creating threads too fast, please wait %d minute(s)",
			ErrRateLimited, minutes)
	}

	count, err := c.store.CountByOwner(ctx, req.UserID)
	if err != nil {
		return fmt.Errorf("%w: database service is currently unavailable", ErrServiceUnavailable)
	}
	if count >= maxSessionsPerUser {
		return fmt.Errorf("%w: you've reached the maximum of %d active personas, delete some before creating new ones",
			ErrRateLimited, maxSessionsPerUser)
	}

	if n := utf8.RuneCountInString(req.Name); n < MinNameLength || n > MaxNameLength {
		return fmt.Errorf("%w: name must be %d-%d characters", ErrInvalidParameters, MinNameLength, MaxNameLength)
	}
	if !strings.HasPrefix(req.AvatarContentType, "image/") {
		return fmt.Errorf("%w: avatar must be an image (JPG/PNG/GIF)", ErrInvalidParameters)
	}
	return nil
}

// Remove deletes a thread's session and drops it from the cache. Used when
// a managed thread is deleted on the platform.
func (c *Creator) Remove(ctx context.Context, threadID string) (bool, error) {
	c.cache.Invalidate(threadID)
	deleted, err := c.store.DeleteSession(ctx, threadID)
	if err != nil {
		return false, fmt.Errorf("persona: remove session %s: %w", threadID, err)
	}
	if deleted {
		log.Printf("persona: removed session for thread %s", threadID)
	}
	return deleted, nil
}
