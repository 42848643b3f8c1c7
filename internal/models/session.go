// Package models defines the persisted document shapes for Masquerade.
package models

import "time"

// Roles for conversation history fragments. These match the content roles
// the Gemini API expects, so history can be replayed verbatim.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// MaxHistoryEntries caps the rolling conversation history at rest: 12
// exchange pairs, trimmed oldest-first on every append.
const MaxHistoryEntries = 24

// Part is a single text part of a history fragment.
type Part struct {
	Text string `bson:"text" json:"text"`
}

// Fragment is one role-tagged entry in a session's conversation history.
type Fragment struct {
	Role  string `bson:"role" json:"role"`
	Parts []Part `bson:"parts" json:"parts"`
}

// NewFragment builds a single-part fragment.
func NewFragment(role, text string) Fragment {
	return Fragment{Role: role, Parts: []Part{{Text: text}}}
}

// Text returns the concatenated text of all parts.
func (f Fragment) Text() string {
	if len(f.Parts) == 1 {
		return f.Parts[0].Text
	}
	var s string
	for _, p := range f.Parts {
		s += p.Text
	}
	return s
}

// Session is the persisted state for one active persona thread. The document
// ID is the Discord thread ID, so a thread maps to at most one session.
type Session struct {
	ID            string     `bson:"_id" json:"id"`
	Name          string     `bson:"name" json:"name"`
	Persona       string     `bson:"persona" json:"persona"`
	History       []Fragment `bson:"history" json:"history"`
	SystemContext string     `bson:"system_context" json:"system_context"`
	ChannelID     string     `bson:"channel_id" json:"channel_id"`
	GuildID       string     `bson:"guild_id,omitempty" json:"guild_id,omitempty"`
	CreatedBy     string     `bson:"created_by" json:"created_by"`
	CreatedAt     string     `bson:"created_at" json:"created_at"` // ISO-8601
	AvatarURL     string     `bson:"avatar_url,omitempty" json:"avatar_url,omitempty"`
}

// Valid reports whether the document carries all fields the message pipeline
// depends on. Partial documents (interrupted writes, manual edits) must be
// treated as absent and never cached.
func (s *Session) Valid() bool {
	if s == nil {
		return false
	}
	return s.Name != "" && s.History != nil && s.SystemContext != ""
}

// BloodTimer is the castle blood-timer document for the reminder loop.
// A single document per channel; the ID is fixed by the reminder store.
type BloodTimer struct {
	ID          string `bson:"_id" json:"id"`
	EndsAt      string `bson:"ends_at" json:"ends_at"` // ISO-8601
	ChannelID   string `bson:"channel_id" json:"channel_id"`
	CastleLevel int    `bson:"castle_level" json:"castle_level"`
}

// EndsAtTime parses the stored expiry timestamp.
func (t *BloodTimer) EndsAtTime() (time.Time, error) {
	return time.Parse(time.RFC3339, t.EndsAt)
}
