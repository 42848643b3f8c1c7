package persona

import (
	"log"
	"sync"
	"time"

	"github.com/zulandar/masquerade/internal/models"
)

// defaultCacheCapacity bounds the session cache. The process would otherwise
// hold every session it ever touched for its whole lifetime.
const defaultCacheCapacity = 512

type cacheEntry struct {
	sess     *models.Session
	lastUsed time.Time
}

// Cache is an in-memory cache of session documents keyed by thread ID. It
// only ever holds validated documents: a session missing its name, history,
// or system context is refused, so a partial write can never poison the
// cache. When full, the least-recently-used entry is evicted.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*cacheEntry
	capacity int
	now      func() time.Time
}

// NewCache creates a Cache with the default capacity.
func NewCache() *Cache {
	return &Cache{
		entries:  make(map[string]*cacheEntry),
		capacity: defaultCacheCapacity,
		now:      time.Now,
	}
}

// Get returns the cached session for a thread, if any. The returned session
// is a private copy: the cache mutates its own copy under the lock, so
// callers may read theirs without synchronization.
func (c *Cache) Get(threadID string) (*models.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[threadID]
	if !ok {
		return nil, false
	}
	e.lastUsed = c.now()
	return snapshot(e.sess), true
}

// Put caches a copy of a session. Invalid documents are dropped, not stored.
func (c *Cache) Put(sess *models.Session) {
	if !sess.Valid() {
		log.Printf("persona: cache: refusing invalid session %q", sessionID(sess))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[sess.ID]; !ok && len(c.entries) >= c.capacity {
		c.evictOldest()
	}
	c.entries[sess.ID] = &cacheEntry{sess: snapshot(sess), lastUsed: c.now()}
}

// evictOldest removes the least-recently-used entry. Caller holds the lock.
func (c *Cache) evictOldest() {
	var oldestID string
	var oldest time.Time
	for id, e := range c.entries {
		if oldestID == "" || e.lastUsed.Before(oldest) {
			oldestID = id
			oldest = e.lastUsed
		}
	}
	if oldestID != "" {
		delete(c.entries, oldestID)
	}
}

// Invalidate drops a thread's cached session, e.g. after session deletion.
func (c *Cache) Invalidate(threadID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, threadID)
}

// RecordExchange appends an exchange pair to the cached session's history,
// mirroring the store's trailing-window trim so cached context keeps pace
// with what is persisted. A cache miss is a no-op.
func (c *Cache) RecordExchange(threadID, userMsg, modelMsg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[threadID]
	if !ok {
		return
	}
	h := append(e.sess.History,
		models.NewFragment(models.RoleUser, userMsg),
		models.NewFragment(models.RoleModel, modelMsg))
	if len(h) > models.MaxHistoryEntries {
		h = h[len(h)-models.MaxHistoryEntries:]
	}
	e.sess.History = h
}

// Len returns the number of cached sessions.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// snapshot copies a session along with its history slice so the copy shares
// no mutable state with the original.
func snapshot(s *models.Session) *models.Session {
	cp := *s
	cp.History = append([]models.Fragment(nil), s.History...)
	return &cp
}

func sessionID(s *models.Session) string {
	if s == nil {
		return ""
	}
	return s.ID
}
