package types

import "github.com/warsan/imposter-game-backend/internal/transport"

// ClientMessage is what a connected player sends over the gateway socket.
type ClientMessage struct {
	Type   string `json:"type"` // "join" | "leave" | "vote" | "chat"
	Target string `json:"target,omitempty"`
	Text   string `json:"text,omitempty"`
}

// ServerEvent is the gateway's projection of the chat surface: channel
// messages (with optional buttons), edits and deletions by message ID,
// direct messages, relayed player chat, and per-client notices.
type ServerEvent struct {
	Type      string             `json:"type"` // "message" | "edit" | "delete" | "dm" | "chat" | "notice" | "error"
	MessageID string             `json:"message_id,omitempty"`
	ChannelID string             `json:"channel_id,omitempty"`
	UserID    string             `json:"user_id,omitempty"`
	Content   string             `json:"content,omitempty"`
	Buttons   []transport.Button `json:"buttons,omitempty"`
	Error     string             `json:"error,omitempty"`
}
