// Package gateway defines the chat-platform surface the persona core drives.
// Platform implementations live in subpackages (discord); the core only ever
// sees these types.
package gateway

import (
	"context"
	"time"
)

// InboundMessage is a platform message event, normalized for the pipeline.
type InboundMessage struct {
	ChannelID string // parent channel of the thread, or the channel itself
	ThreadID  string // set only when the message was sent inside a thread
	GuildID   string
	UserID    string
	UserName  string
	Text      string
	FromBot   bool // author is a bot (including ourselves)
	Timestamp time.Time
}

// Adapter connects the bot to a chat platform: it delivers inbound messages
// and carries replies, thread management, and typing indicators back out.
type Adapter interface {
	Connect(ctx context.Context) error
	// Listen returns the inbound message channel. Must be called after Connect.
	Listen(ctx context.Context) (<-chan InboundMessage, error)
	// Send posts text to a channel or thread.
	Send(ctx context.Context, channelID, text string) error
	// Typing shows a typing indicator in the channel. Best effort.
	Typing(ctx context.Context, channelID string) error
	// CreateThread creates a thread in the channel and returns its ID.
	CreateThread(ctx context.Context, channelID, name string, private bool) (string, error)
	// DeleteThread removes a thread, e.g. to roll back a failed creation.
	DeleteThread(ctx context.Context, threadID string) error
	Close() error
}
