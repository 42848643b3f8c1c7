package persona

import (
	"context"
	"sync"
	"time"

	"github.com/zulandar/masquerade/internal/models"
)

// mockStore implements Store in memory with failure injection.
type mockStore struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
	appends  []appendCall
	creates  []string

	down         bool
	getErr       error
	createErr    error
	appendErr    error
	ownerCount   int
	ownerCountOK bool
}

type appendCall struct {
	threadID string
	userMsg  string
	modelMsg string
}

func newMockStore() *mockStore {
	return &mockStore{sessions: make(map[string]*models.Session), ownerCountOK: true}
}

func (s *mockStore) GetSession(ctx context.Context, threadID string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.sessions[threadID], nil
}

func (s *mockStore) CreateSession(ctx context.Context, sess *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.sessions[sess.ID] = sess
	s.creates = append(s.creates, sess.ID)
	return nil
}

func (s *mockStore) AppendExchange(ctx context.Context, threadID, userMsg, modelMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	s.appends = append(s.appends, appendCall{threadID, userMsg, modelMsg})
	return nil
}

func (s *mockStore) DeleteSession(ctx context.Context, threadID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[threadID]
	delete(s.sessions, threadID)
	return ok, nil
}

func (s *mockStore) CountByOwner(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ownerCountOK {
		return 0, context.DeadlineExceeded
	}
	return s.ownerCount, nil
}

func (s *mockStore) CountActive(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions), nil
}

func (s *mockStore) Available(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.down
}

func (s *mockStore) appendCalls() []appendCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]appendCall, len(s.appends))
	copy(out, s.appends)
	return out
}

// mockCompleter implements Completer with a scripted reply.
type mockCompleter struct {
	mu    sync.Mutex
	down  bool
	reply string
	err   error
	calls []completeCall
}

type completeCall struct {
	message       string
	systemContext string
	historyLen    int
}

func (c *mockCompleter) GeneratePersona(ctx context.Context, message, systemContext string, history []models.Fragment) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, completeCall{message, systemContext, len(history)})
	if c.err != nil {
		return "", c.err
	}
	return c.reply, nil
}

func (c *mockCompleter) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.down
}

func (c *mockCompleter) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

// validSession builds a complete session document for tests.
func validSession(threadID string) *models.Session {
	created := time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC)
	return NewSession(threadID, "Dracula", "An ancient vampire lord.",
		"chan-1", "guild-1", "user-1", "https://cdn.example/avatar.png", created)
}
