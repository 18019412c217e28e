// Package transport defines the chat platform operations the game engine
// consumes. The engine treats the transport as a view: every call may fail
// and the game keeps running on in-memory state alone.
package transport

import (
	"context"
	"errors"
)

var (
	ErrNotFound    = errors.New("message not found")
	ErrUnreachable = errors.New("user unreachable")
)

// Button is an interactive component attached to a message. ID is echoed
// back verbatim in the client's button-press event.
type Button struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Chat is the abstract messaging surface. Implementations must be safe for
// concurrent use; sessions call into it from their own goroutines.
type Chat interface {
	// SendMessage posts to a channel and returns the new message's ID.
	SendMessage(ctx context.Context, channelID, content string, buttons []Button) (string, error)

	// EditMessage replaces a message's content. A nil buttons slice leaves
	// the existing components alone; an empty non-nil slice removes them.
	EditMessage(ctx context.Context, channelID, messageID, content string, buttons []Button) error

	DeleteMessage(ctx context.Context, channelID, messageID string) error

	// SendDirectMessage delivers privately to one user; ErrUnreachable when
	// the user cannot receive DMs.
	SendDirectMessage(ctx context.Context, userID, content string) error

	// SetChannelPostingAllowed opens or closes the channel for player chat.
	SetChannelPostingAllowed(ctx context.Context, channelID string, allowed bool) error

	// ResolveDisplayName never fails; unknown users resolve to "@<userID>".
	ResolveDisplayName(ctx context.Context, groupID, userID string) string
}
