// Package ws is the in-process chat gateway: it implements the transport
// interface over websocket fan-out, one room per group. The gateway keeps
// the sent-message table so edits and deletes can miss (NotFound) the same
// way a real chat platform's would.
package ws

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warsan/imposter-game-backend/internal/transport"
	"github.com/warsan/imposter-game-backend/pkg/types"
)

type storedMessage struct {
	content string
	buttons []transport.Button
}

type room struct {
	clients        map[string]*client // clientID -> client
	names          map[string]string  // userID -> display name
	messages       map[string]*storedMessage
	postingAllowed bool
}

type client struct {
	userID string
	out    chan types.ServerEvent
}

type Gateway struct {
	log   *zap.Logger
	mu    sync.Mutex
	rooms map[string]*room
}

func NewGateway(log *zap.Logger) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{log: log, rooms: make(map[string]*room)}
}

// A group and its channel share one key: each group plays in a single
// channel, so the gateway does not keep a separate channel table.
func (g *Gateway) room(key string) *room {
	r, ok := g.rooms[key]
	if !ok {
		r = &room{
			clients:        make(map[string]*client),
			names:          make(map[string]string),
			messages:       make(map[string]*storedMessage),
			postingAllowed: true,
		}
		g.rooms[key] = r
	}
	return r
}

// Subscribe registers a connection and its display name; the returned
// channel carries everything broadcast to the room plus this user's DMs.
func (g *Gateway) Subscribe(groupID, userID, displayName string) (string, <-chan types.ServerEvent) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r := g.room(groupID)
	id := uuid.NewString()
	c := &client{userID: userID, out: make(chan types.ServerEvent, 16)}
	r.clients[id] = c
	if displayName != "" {
		r.names[userID] = displayName
	}
	return id, c.out
}

func (g *Gateway) Unsubscribe(groupID, clientID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[groupID]
	if !ok {
		return
	}
	if c, ok := r.clients[clientID]; ok {
		close(c.out)
		delete(r.clients, clientID)
	}
}

// RelayChat forwards player chat to the room, honoring the posting lock.
// It reports false when the channel is closed for chatter.
func (g *Gateway) RelayChat(groupID, userID, text string) bool {
	g.mu.Lock()
	r := g.room(groupID)
	if !r.postingAllowed {
		g.mu.Unlock()
		return false
	}
	g.broadcastLocked(r, types.ServerEvent{Type: "chat", ChannelID: groupID, UserID: userID, Content: text})
	g.mu.Unlock()
	return true
}

// broadcastLocked fans an event out to every room client, dropping clients
// whose outbox is full.
func (g *Gateway) broadcastLocked(r *room, ev types.ServerEvent) {
	for id, c := range r.clients {
		select {
		case c.out <- ev:
		default:
			close(c.out)
			delete(r.clients, id)
			g.log.Warn("dropped slow gateway client", zap.String("client", id))
		}
	}
}

// --- transport.Chat ---

func (g *Gateway) SendMessage(_ context.Context, channelID, content string, buttons []transport.Button) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r := g.room(channelID)
	id := uuid.NewString()
	r.messages[id] = &storedMessage{content: content, buttons: buttons}
	g.broadcastLocked(r, types.ServerEvent{
		Type: "message", MessageID: id, ChannelID: channelID, Content: content, Buttons: buttons,
	})
	return id, nil
}

func (g *Gateway) EditMessage(_ context.Context, channelID, messageID, content string, buttons []transport.Button) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	r := g.room(channelID)
	m, ok := r.messages[messageID]
	if !ok {
		return transport.ErrNotFound
	}
	m.content = content
	if buttons != nil {
		m.buttons = buttons
	}
	g.broadcastLocked(r, types.ServerEvent{
		Type: "edit", MessageID: messageID, ChannelID: channelID, Content: content, Buttons: m.buttons,
	})
	return nil
}

func (g *Gateway) DeleteMessage(_ context.Context, channelID, messageID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	r := g.room(channelID)
	if _, ok := r.messages[messageID]; !ok {
		return transport.ErrNotFound
	}
	delete(r.messages, messageID)
	g.broadcastLocked(r, types.ServerEvent{Type: "delete", MessageID: messageID, ChannelID: channelID})
	return nil
}

func (g *Gateway) SendDirectMessage(_ context.Context, userID, content string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delivered := false
	for _, r := range g.rooms {
		for id, c := range r.clients {
			if c.userID != userID {
				continue
			}
			select {
			case c.out <- types.ServerEvent{Type: "dm", UserID: userID, Content: content}:
				delivered = true
			default:
				close(c.out)
				delete(r.clients, id)
			}
		}
	}
	if !delivered {
		return transport.ErrUnreachable
	}
	return nil
}

func (g *Gateway) SetChannelPostingAllowed(_ context.Context, channelID string, allowed bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	r := g.room(channelID)
	r.postingAllowed = allowed
	notice := "The channel is closed while votes are cast."
	if allowed {
		notice = "The channel is open again."
	}
	g.broadcastLocked(r, types.ServerEvent{Type: "notice", ChannelID: channelID, Content: notice})
	return nil
}

func (g *Gateway) ResolveDisplayName(_ context.Context, groupID, userID string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if r, ok := g.rooms[groupID]; ok {
		if name, ok := r.names[userID]; ok {
			return name
		}
	}
	return "@" + userID
}
