package persona

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/zulandar/masquerade/internal/ai"
	"github.com/zulandar/masquerade/internal/gateway"
	"github.com/zulandar/masquerade/internal/models"
)

// maxMessageLength is the Discord message length ceiling.
const maxMessageLength = 2000

// Store is the session persistence surface the core needs.
type Store interface {
	GetSession(ctx context.Context, threadID string) (*models.Session, error)
	CreateSession(ctx context.Context, sess *models.Session) error
	AppendExchange(ctx context.Context, threadID, userMsg, modelMsg string) error
	DeleteSession(ctx context.Context, threadID string) (bool, error)
	CountByOwner(ctx context.Context, userID string) (int, error)
	CountActive(ctx context.Context) (int, error)
	Available(ctx context.Context) bool
}

// Completer is the completion-gateway surface the core needs.
type Completer interface {
	GeneratePersona(ctx context.Context, message, systemContext string, history []models.Fragment) (string, error)
	Available() bool
}

// User-facing failure notices. Short, non-technical, never a raw error.
const (
	noticeRateLimited = "(I'm responding too fast - please wait a moment)"
	noticeTrouble     = "(I'm having trouble generating a response right now)"
	noticeUnexpected  = "(An unexpected error occurred)"
)

// Pipeline turns an inbound thread message into a persisted, rate-limited
// persona reply. One Pipeline serves the whole process; every collaborator
// is injected at construction.
type Pipeline struct {
	store   Store
	ai      Completer
	cache   *Cache
	limiter *Limiter
	adapter gateway.Adapter

	sleep func(ctx context.Context, d time.Duration) error
}

// PipelineOpts holds parameters for creating a Pipeline.
type PipelineOpts struct {
	Store   Store
	AI      Completer
	Cache   *Cache
	Limiter *Limiter
	Adapter gateway.Adapter
}

// NewPipeline creates a Pipeline.
func NewPipeline(opts PipelineOpts) (*Pipeline, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("persona: pipeline: store is required")
	}
	if opts.AI == nil {
		return nil, fmt.Errorf("persona: pipeline: ai is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("persona: pipeline: adapter is required")
	}
	cache := opts.Cache
	if cache == nil {
		cache = NewCache()
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = NewLimiter()
	}
	return &Pipeline{
		store:   opts.Store,
		ai:      opts.AI,
		cache:   cache,
		limiter: limiter,
		adapter: opts.Adapter,
		sleep:   sleepCtx,
	}, nil
}

// HandleMessage processes one inbound message end to end. Messages outside
// managed persona threads and messages from bots are ignored silently. A
// message is never retried: it ends replied, suppressed, or failed with a
// user-facing notice.
func (p *Pipeline) HandleMessage(ctx context.Context, msg gateway.InboundMessage) {
	if msg.FromBot || msg.ThreadID == "" {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("persona: pipeline: panic handling message in thread %s: %v", msg.ThreadID, r)
			p.send(ctx, msg.ThreadID, noticeUnexpected)
		}
	}()

	sess := p.resolve(ctx, msg.ThreadID)
	if sess == nil {
		return // not a managed persona thread
	}

	// Reserve the thread's next response slot before any slow work.
	if wait := p.limiter.ReserveThread(msg.ThreadID); wait > 0 {
		if err := p.sleep(ctx, wait); err != nil {
			return
		}
	}

	p.adapter.Typing(ctx, msg.ThreadID)

	reply, err := p.ai.GeneratePersona(ctx, msg.Text, sess.SystemContext, sess.History)
	if err != nil {
		p.sendFailureNotice(ctx, msg.ThreadID, err)
		return
	}
	if strings.TrimSpace(reply) == "" {
		return // nothing to say, nothing to persist
	}

	reply = Truncate(reply)

	// Persist the raw user message and the (possibly truncated) reply. The
	// write-back is best effort: responses are at-least-once, history is not.
	if err := p.store.AppendExchange(ctx, msg.ThreadID, msg.Text, reply); err != nil {
		log.Printf("persona: pipeline: append history for thread %s: %v", msg.ThreadID, err)
	} else {
		p.cache.RecordExchange(msg.ThreadID, msg.Text, reply)
	}

	p.send(ctx, msg.ThreadID, reply)
}

// resolve looks up the thread's session, cache first, then the store. Only
// validated documents are cached or returned; anything else means the thread
// is not managed and the message is suppressed.
func (p *Pipeline) resolve(ctx context.Context, threadID string) *models.Session {
	if sess, ok := p.cache.Get(threadID); ok {
		return sess
	}

	sess, err := p.store.GetSession(ctx, threadID)
	if err != nil {
		log.Printf("persona: pipeline: load session %s: %v", threadID, err)
		return nil
	}
	if sess == nil {
		return nil
	}
	if !sess.Valid() {
		log.Printf("persona: pipeline: session %s is missing required fields", threadID)
		return nil
	}

	p.cache.Put(sess)
	return sess
}

// sendFailureNotice maps a completion failure to its user-facing notice.
func (p *Pipeline) sendFailureNotice(ctx context.Context, threadID string, err error) {
	switch {
	case errors.Is(err, ai.ErrRateLimited):
		log.Printf("persona: pipeline: rate limited in thread %s", threadID)
		p.send(ctx, threadID, noticeRateLimited)
	case errors.Is(err, ai.ErrContentBlocked):
		log.Printf("persona: pipeline: content blocked in thread %s: %v", threadID, err)
		p.send(ctx, threadID, fmt.Sprintf("(My response was blocked: %s)", blockReason(err)))
	default:
		log.Printf("persona: pipeline: generate for thread %s: %v", threadID, err)
		p.send(ctx, threadID, noticeTrouble)
	}
}

func (p *Pipeline) send(ctx context.Context, threadID, text string) {
	if err := p.adapter.Send(ctx, threadID, text); err != nil {
		log.Printf("persona: pipeline: send to thread %s: %v", threadID, err)
	}
}

// Truncate hard-cuts text to the platform message ceiling, marking the cut
// with an ellipsis.
func Truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= maxMessageLength {
		return text
	}
	return string(runes[:maxMessageLength-3]) + "..."
}

// blockReason extracts the reason detail from a content-blocked error.
func blockReason(err error) string {
	s := err.Error()
	if i := strings.LastIndex(s, ": "); i >= 0 {
		return s[i+2:]
	}
	return s
}

// sleepCtx sleeps for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
