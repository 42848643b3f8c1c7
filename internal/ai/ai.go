// Package ai wraps the Google Gemini API behind a completion gateway with
// global request pacing, bounded retry on throttling, and safety-filter
// classification.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/zulandar/masquerade/internal/models"
)

const (
	// defaultModel is the Gemini model used when none is configured.
	defaultModel = "gemini-2.0-flash-001"
	// minInterval is the minimum gap between any two upstream requests,
	// enforced across all callers.
	minInterval = 2 * time.Second
	// maxRetries bounds retry attempts on upstream throttling.
	maxRetries = 3
	// baseBackoff is the first retry delay; it doubles per attempt.
	baseBackoff = 1 * time.Second
	// maxReplyLength is the Discord message length ceiling. Persona
	// completions longer than this are rejected, not truncated.
	maxReplyLength = 2000
)

// generator abstracts the genai model call we use, enabling test mocks.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// realGenerator wraps *genai.Client to implement the generator interface.
type realGenerator struct {
	client *genai.Client
}

func (r *realGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return r.client.Models.GenerateContent(ctx, model, contents, config)
}

// Manager is the completion gateway. All completion requests in the process
// go through one Manager, which serializes them behind a single pacing gate.
type Manager struct {
	gen     generator
	model   string
	config  *genai.GenerateContentConfig
	timeout time.Duration

	mu          sync.Mutex // pacing gate; held while waiting so callers queue in arrival order
	lastRequest time.Time

	// Injectable for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Opts holds parameters for creating a Manager.
type Opts struct {
	APIKey         string        // Gemini API key; empty yields an unavailable Manager
	Model          string        // defaults to gemini-2.0-flash-001
	RequestTimeout time.Duration // per-request deadline; 0 disables
	// For testing: inject a mock generator instead of a real client.
	Generator generator
}

// New creates a Manager. A missing API key is not an error: the Manager is
// created unavailable and every completion fails with ErrUnavailable, so the
// bot degrades to explicit "service unavailable" replies instead of crashing.
func New(ctx context.Context, opts Opts) (*Manager, error) {
	m := &Manager{
		gen:     opts.Generator,
		model:   opts.Model,
		config:  roleplayConfig(),
		timeout: opts.RequestTimeout,
		now:     time.Now,
		sleep:   sleepCtx,
	}
	if m.model == "" {
		m.model = defaultModel
	}

	if m.gen == nil && opts.APIKey != "" {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  opts.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("ai: create client: %w", err)
		}
		m.gen = &realGenerator{client: client}
		log.Printf("ai: initialized model %s", m.model)
	}

	return m, nil
}

// roleplayConfig returns generation parameters tuned for roleplay, with all
// safety categories disabled (persona threads are opt-in fiction).
func roleplayConfig() *genai.GenerateContentConfig {
	blockNone := func(c genai.HarmCategory) *genai.SafetySetting {
		return &genai.SafetySetting{Category: c, Threshold: genai.HarmBlockThresholdBlockNone}
	}
	return &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0.9),
		TopP:            genai.Ptr[float32](0.95),
		TopK:            genai.Ptr[float32](40),
		MaxOutputTokens: 2048,
		SafetySettings: []*genai.SafetySetting{
			blockNone(genai.HarmCategoryHarassment),
			blockNone(genai.HarmCategoryHateSpeech),
			blockNone(genai.HarmCategorySexuallyExplicit),
			blockNone(genai.HarmCategoryDangerousContent),
		},
	}
}

// Available reports whether the gateway has a usable client.
func (m *Manager) Available() bool {
	return m != nil && m.gen != nil
}

// Generate runs one completion for message with the given prior history.
// It blocks on the global pacing gate, retries on upstream throttling with
// exponential backoff (1s, 2s, 4s), and classifies failures into the
// gateway's sentinel errors.
func (m *Manager) Generate(ctx context.Context, message string, history []models.Fragment) (string, error) {
	if !m.Available() {
		return "", ErrUnavailable
	}

	contents := make([]*genai.Content, 0, len(history)+1)
	for _, f := range history {
		contents = append(contents, genai.NewContentFromText(f.Text(), genai.Role(f.Role)))
	}
	contents = append(contents, genai.NewContentFromText(message, genai.RoleUser))

	// Bounded retry loop: the attempt count and backoff are carried as data,
	// never call-stack depth.
	backoff := baseBackoff
	for attempt := 0; ; attempt++ {
		resp, err := m.callOnce(ctx, contents)
		if err == nil {
			return extractText(resp)
		}
		if !isThrottled(err) {
			return "", err
		}
		if attempt == maxRetries {
			return "", fmt.Errorf("%w: upstream throttled after %d retries", ErrRateLimited, maxRetries)
		}
		log.Printf("ai: throttled (attempt %d/%d), retrying in %v", attempt+1, maxRetries, backoff)
		if serr := m.sleep(ctx, backoff); serr != nil {
			return "", fmt.Errorf("%w: %v", ErrTransport, serr)
		}
		backoff *= 2
	}
}

// callOnce waits for the pacing gate, then issues a single upstream request
// under the configured deadline. Transport faults come back classified;
// throttling comes back raw for the retry loop to detect.
func (m *Manager) callOnce(ctx context.Context, contents []*genai.Content) (*genai.GenerateContentResponse, error) {
	if err := m.pace(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	callCtx := ctx
	if m.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	resp, err := m.gen.GenerateContent(callCtx, m.model, contents, m.config)
	if err != nil {
		if isThrottled(err) {
			return nil, err
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: request timed out after %v", ErrTransport, m.timeout)
		}
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return resp, nil
}

// pace enforces the global minimum inter-request interval. The mutex is held
// across the wait so concurrent callers serialize in arrival order.
func (m *Manager) pace(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.lastRequest.IsZero() {
		if elapsed := m.now().Sub(m.lastRequest); elapsed < minInterval {
			if err := m.sleep(ctx, minInterval-elapsed); err != nil {
				return err
			}
		}
	}
	m.lastRequest = m.now()
	return nil
}

// extractText validates a response and returns its text. Raw text is
// returned only when exactly one candidate with non-empty parts exists.
func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("%w: nil response", ErrInvalidResponse)
	}
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
			return "", fmt.Errorf("%w: %s", ErrContentBlocked, resp.PromptFeedback.BlockReason)
		}
		return "", fmt.Errorf("%w: no candidates", ErrInvalidResponse)
	}
	if len(resp.Candidates) > 1 {
		return "", fmt.Errorf("%w: %d candidates", ErrInvalidResponse, len(resp.Candidates))
	}

	cand := resp.Candidates[0]
	if cand.Content == nil || len(cand.Content.Parts) == 0 {
		return "", fmt.Errorf("%w: empty content", ErrInvalidResponse)
	}

	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

// isThrottled reports whether err is an upstream 429.
func isThrottled(err error) bool {
	var apiErr genai.APIError
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests
}

// sleepCtx sleeps for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
