package ai

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/zulandar/masquerade/internal/models"
)

// GeneratePersona runs a persona-framed completion: the session's system
// context is prepended to the user message so the model stays in character.
// Outputs longer than the Discord message ceiling are rejected with
// ErrInvalidResponse; truncation is the pipeline's call, not the gateway's.
func (m *Manager) GeneratePersona(ctx context.Context, message, systemContext string, history []models.Fragment) (string, error) {
	if !m.Available() {
		return "", ErrUnavailable
	}

	prompt := fmt.Sprintf("%s\n\nUser: %s", systemContext, message)

	text, err := m.Generate(ctx, prompt, history)
	if err != nil {
		return "", err
	}
	if n := utf8.RuneCountInString(text); n > maxReplyLength {
		return "", fmt.Errorf("%w: %d chars exceeds message limit", ErrInvalidResponse, n)
	}
	return text, nil
}
