package ai

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"google.golang.org/genai"

	"github.com/zulandar/masquerade/internal/models"
)

// mockGenerator returns scripted results and records the contents it was
// called with.
type mockGenerator struct {
	mu       sync.Mutex
	calls    int
	contents [][]*genai.Content
	results  []mockResult // consumed per call; the last one repeats
}

type mockResult struct {
	resp *genai.GenerateContentResponse
	err  error
}

func (g *mockGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.contents = append(g.contents, contents)
	var r mockResult
	if g.calls < len(g.results) {
		r = g.results[g.calls]
	} else if len(g.results) > 0 {
		r = g.results[len(g.results)-1]
	}
	g.calls++
	return r.resp, r.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: text}}}},
		},
	}
}

// newTestManager builds a Manager with a scripted generator, a clock that
// jumps well past the pacing interval on every read, and a sleep that only
// records durations.
func newTestManager(t *testing.T, gen *mockGenerator) (*Manager, *[]time.Duration) {
	t.Helper()
	var slept []time.Duration
	cur := time.Unix(1000, 0)
	m, err := New(context.Background(), Opts{Generator: gen})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	m.now = func() time.Time {
		cur = cur.Add(5 * time.Second)
		return cur
	}
	m.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return m, &slept
}

func TestGenerate_Success(t *testing.T) {
	gen := &mockGenerator{results: []mockResult{{resp: textResponse("hello there")}}}
	m, _ := newTestManager(t, gen)

	got, err := m.Generate(context.Background(), "hi", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hello there" {
		t.Errorf("Generate = %q, want %q", got, "hello there")
	}
	if gen.calls != 1 {
		t.Errorf("calls = %d, want 1", gen.calls)
	}
}

func TestGenerate_HistoryPrecedesMessage(t *testing.T) {
	gen := &mockGenerator{results: []mockResult{{resp: textResponse("ok")}}}
	m, _ := newTestManager(t, gen)

	history := []models.Fragment{
		models.NewFragment(models.RoleUser, "first"),
		models.NewFragment(models.RoleModel, "second"),
	}
	if _, err := m.Generate(context.Background(), "third", history); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sent := gen.contents[0]
	if len(sent) != 3 {
		t.Fatalf("len(contents) = %d, want 3", len(sent))
	}
	if sent[0].Parts[0].Text != "first" || sent[1].Parts[0].Text != "second" {
		t.Errorf("history not replayed in order: %q, %q", sent[0].Parts[0].Text, sent[1].Parts[0].Text)
	}
	if sent[2].Parts[0].Text != "third" {
		t.Errorf("message = %q, want %q", sent[2].Parts[0].Text, "third")
	}
	if sent[2].Role != genai.RoleUser {
		t.Errorf("message role = %q, want %q", sent[2].Role, genai.RoleUser)
	}
}

func TestGenerate_RetrySchedule(t *testing.T) {
	gen := &mockGenerator{results: []mockResult{{err: genai.APIError{Code: 429, Message: "quota"}}}}
	m, slept := newTestManager(t, gen)

	_, err := m.Generate(context.Background(), "hi", nil)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("error = %v, want ErrRateLimited", err)
	}
	if gen.calls != 4 {
		t.Errorf("calls = %d, want 4 (1 initial + 3 retries)", gen.calls)
	}
	want := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}
	if len(*slept) != len(want) {
		t.Fatalf("slept = %v, want %v", *slept, want)
	}
	for i, d := range want {
		if (*slept)[i] != d {
			t.Errorf("backoff[%d] = %v, want %v", i, (*slept)[i], d)
		}
	}
}

func TestGenerate_ThrottleThenSuccess(t *testing.T) {
	gen := &mockGenerator{results: []mockResult{
		{err: genai.APIError{Code: 429}},
		{resp: textResponse("recovered")},
	}}
	m, _ := newTestManager(t, gen)

	got, err := m.Generate(context.Background(), "hi", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "recovered" {
		t.Errorf("Generate = %q, want %q", got, "recovered")
	}
	if gen.calls != 2 {
		t.Errorf("calls = %d, want 2", gen.calls)
	}
}

func TestGenerate_Pacing(t *testing.T) {
	gen := &mockGenerator{results: []mockResult{{resp: textResponse("ok")}}}
	m, err := New(context.Background(), Opts{Generator: gen})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	// Frozen clock: the second request arrives zero time after the first,
	// so it must wait the full pacing interval.
	fixed := time.Unix(1000, 0)
	m.now = func() time.Time { return fixed }
	var slept []time.Duration
	m.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	if _, err := m.Generate(context.Background(), "one", nil); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if len(slept) != 0 {
		t.Fatalf("first call slept %v, want none", slept)
	}
	if _, err := m.Generate(context.Background(), "two", nil); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if len(slept) != 1 || slept[0] != 2*time.Second {
		t.Errorf("second call slept %v, want [2s]", slept)
	}
}

func TestGenerate_ContentBlocked(t *testing.T) {
	gen := &mockGenerator{results: []mockResult{{resp: &genai.GenerateContentResponse{
		PromptFeedback: &genai.GenerateContentResponsePromptFeedback{
			BlockReason: genai.BlockedReasonSafety,
		},
	}}}}
	m, _ := newTestManager(t, gen)

	_, err := m.Generate(context.Background(), "hi", nil)
	if !errors.Is(err, ErrContentBlocked) {
		t.Fatalf("error = %v, want ErrContentBlocked", err)
	}
	if !strings.Contains(err.Error(), string(genai.BlockedReasonSafety)) {
		t.Errorf("error %q does not carry block reason", err)
	}
	if gen.calls != 1 {
		t.Errorf("calls = %d, want 1 (blocks are never retried)", gen.calls)
	}
}

func TestGenerate_InvalidResponses(t *testing.T) {
	tests := []struct {
		name string
		resp *genai.GenerateContentResponse
	}{
		{"no candidates", &genai.GenerateContentResponse{}},
		{
			"two candidates",
			&genai.GenerateContentResponse{Candidates: []*genai.Candidate{
				{Content: &genai.Content{Parts: []*genai.Part{{Text: "a"}}}},
				{Content: &genai.Content{Parts: []*genai.Part{{Text: "b"}}}},
			}},
		},
		{
			"empty parts",
			&genai.GenerateContentResponse{Candidates: []*genai.Candidate{
				{Content: &genai.Content{}},
			}},
		},
		{
			"nil content",
			&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &mockGenerator{results: []mockResult{{resp: tt.resp}}}
			m, _ := newTestManager(t, gen)
			_, err := m.Generate(context.Background(), "hi", nil)
			if !errors.Is(err, ErrInvalidResponse) {
				t.Errorf("error = %v, want ErrInvalidResponse", err)
			}
			if gen.calls != 1 {
				t.Errorf("calls = %d, want 1 (malformed responses are never retried)", gen.calls)
			}
		})
	}
}

func TestGenerate_TransportErrorNotRetried(t *testing.T) {
	gen := &mockGenerator{results: []mockResult{{err: genai.APIError{Code: 500, Message: "boom"}}}}
	m, _ := newTestManager(t, gen)

	_, err := m.Generate(context.Background(), "hi", nil)
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("error = %v, want ErrTransport", err)
	}
	if gen.calls != 1 {
		t.Errorf("calls = %d, want 1", gen.calls)
	}
}

func TestGenerate_UnavailableWithoutKey(t *testing.T) {
	m, err := New(context.Background(), Opts{})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if m.Available() {
		t.Error("Available() = true without API key or generator")
	}
	_, err = m.Generate(context.Background(), "hi", nil)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
}

func TestGeneratePersona_FramesPrompt(t *testing.T) {
	gen := &mockGenerator{results: []mockResult{{resp: textResponse("in character")}}}
	m, _ := newTestManager(t, gen)

	got, err := m.GeneratePersona(context.Background(), "who are you?", "You are Dracula.", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "in character" {
		t.Errorf("GeneratePersona = %q, want %q", got, "in character")
	}

	sent := gen.contents[0]
	prompt := sent[len(sent)-1].Parts[0].Text
	want := "You are Dracula.\n\nUser: who are you?"
	if prompt != want {
		t.Errorf("prompt = %q, want %q", prompt, want)
	}
}

func TestGeneratePersona_RejectsOversizedReply(t *testing.T) {
	long := strings.Repeat("x", maxReplyLength+1)
	gen := &mockGenerator{results: []mockResult{{resp: textResponse(long)}}}
	m, _ := newTestManager(t, gen)

	_, err := m.GeneratePersona(context.Background(), "hi", "ctx", nil)
	if !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("error = %v, want ErrInvalidResponse", err)
	}
}

func TestGeneratePersona_AcceptsLimitLengthReply(t *testing.T) {
	exact := strings.Repeat("x", maxReplyLength)
	gen := &mockGenerator{results: []mockResult{{resp: textResponse(exact)}}}
	m, _ := newTestManager(t, gen)

	got, err := m.GeneratePersona(context.Background(), "hi", "ctx", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != maxReplyLength {
		t.Errorf("len = %d, want %d", len(got), maxReplyLength)
	}
}

func TestGeneratePersona_LimitCountsRunesNotBytes(t *testing.T) {
	// Multibyte reply at the character ceiling, well over it in bytes.
	exact := strings.Repeat("ü", maxReplyLength)
	gen := &mockGenerator{results: []mockResult{{resp: textResponse(exact)}}}
	m, _ := newTestManager(t, gen)

	got, err := m.GeneratePersona(context.Background(), "hi", "ctx", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := utf8.RuneCountInString(got); n != maxReplyLength {
		t.Errorf("rune count = %d, want %d", n, maxReplyLength)
	}
}
