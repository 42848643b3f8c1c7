// Package persona is the message-processing and session-state core: it owns
// the thread-session lifecycle, the in-memory session cache and rate-limit
// state, the inbound-message pipeline, and the thread-creation workflow.
package persona

import (
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/masquerade/internal/models"
)

// DefaultPersona is used when a thread is created without instructions.
const DefaultPersona = "You are a helpful and friendly AI assistant with a unique personality. " +
	"You're knowledgeable, creative, and enjoy engaging in meaningful conversations."

// Name length bounds for a persona display name.
const (
	MinNameLength = 2
	MaxNameLength = 32
)

// Sentinel errors for the creation workflow. Their wrapping messages are
// user-facing; the command layer shows them verbatim.
var (
	// ErrInvalidParameters means user input failed validation. No side
	// effects have happened when this is returned.
	ErrInvalidParameters = errors.New("invalid persona parameters")

	// ErrRateLimited means the user hit the creation cooldown or the active
	// session cap.
	ErrRateLimited = errors.New("persona rate limit")

	// ErrServiceUnavailable means a required dependency (AI, database) is
	// down and the operation was refused up front.
	ErrServiceUnavailable = errors.New("persona service unavailable")
)

// BuildSystemContext derives the frozen system context for a new session
// from the display name and persona instructions. It is computed exactly
// once at creation; the persona stays fixed for the thread's lifetime.
func BuildSystemContext(name, personaInstructions string) string {
	return fmt.Sprintf(
		"You are %s. You are participating in a roleplay conversation. "+
			"Character instructions: %s\n\n"+
			"Stay in character at all times. Keep responses conversational and engaging. "+
			"Respond as the character, not as an AI.",
		name, personaInstructions)
}

// SeedHistory returns the initial exchange pair every new session starts
// with, priming the model for the roleplay.
func SeedHistory(name, personaInstructions string) []models.Fragment {
	return []models.Fragment{
		models.NewFragment(models.RoleUser, "Roleplay details: "+personaInstructions),
		models.NewFragment(models.RoleModel, "I'll roleplay as "+name),
	}
}

// NewSession assembles a session document for a freshly created thread.
func NewSession(threadID, name, personaInstructions, channelID, guildID, createdBy, avatarURL string, createdAt time.Time) *models.Session {
	if personaInstructions == "" {
		personaInstructions = DefaultPersona
	}
	return &models.Session{
		ID:            threadID,
		Name:          name,
		Persona:       personaInstructions,
		History:       SeedHistory(name, personaInstructions),
		SystemContext: BuildSystemContext(name, personaInstructions),
		ChannelID:     channelID,
		GuildID:       guildID,
		CreatedBy:     createdBy,
		CreatedAt:     createdAt.UTC().Format(time.RFC3339),
		AvatarURL:     avatarURL,
	}
}
