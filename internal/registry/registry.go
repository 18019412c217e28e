// Package registry owns the group -> session table. A single goroutine
// serializes creation, lookup and removal, so two simultaneous lobby-start
// requests for the same group cannot race.
package registry

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/warsan/imposter-game-backend/internal/engine"
	"github.com/warsan/imposter-game-backend/internal/session"
	"github.com/warsan/imposter-game-backend/internal/stats"
	"github.com/warsan/imposter-game-backend/internal/transport"
)

var ErrAlreadyActive = errors.New("a game is already running in this group")

type Deps struct {
	Chat     transport.Chat
	Stats    *stats.Accrual
	Log      *zap.Logger
	Settings session.Settings
}

type msg interface{ isRegistryMsg() }

type createMsg struct {
	groupID  string
	hostID   string
	channel  string
	required int
	reply    chan createResult
}

type createResult struct {
	sess *session.Session
	err  error
}

type getMsg struct {
	groupID string
	reply   chan *session.Session
}

type removeMsg struct{ groupID string }

type shutdownMsg struct{}

func (createMsg) isRegistryMsg()   {}
func (getMsg) isRegistryMsg()      {}
func (removeMsg) isRegistryMsg()   {}
func (shutdownMsg) isRegistryMsg() {}

type Registry struct {
	inbox    chan msg
	sessions map[string]*session.Session
	deps     Deps
	ctx      context.Context
	cancel   context.CancelFunc
}

func New(parent context.Context, deps Deps) *Registry {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	r := &Registry{
		inbox:    make(chan msg, 64),
		sessions: make(map[string]*session.Session),
		deps:     deps,
		ctx:      ctx,
		cancel:   cancel,
	}
	go r.loop()
	return r
}

// Create starts a new lobby for the group, rejecting a second concurrent
// game and out-of-range player counts.
func (r *Registry) Create(ctx context.Context, groupID, hostID, channelID string, requiredPlayers int) (*session.Session, error) {
	reply := make(chan createResult, 1)
	select {
	case r.inbox <- createMsg{groupID: groupID, hostID: hostID, channel: channelID, required: requiredPlayers, reply: reply}:
	case <-r.ctx.Done():
		return nil, r.ctx.Err()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case res := <-reply:
		return res.sess, res.err
	case <-r.ctx.Done():
		return nil, r.ctx.Err()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Get returns the group's active session, or nil.
func (r *Registry) Get(ctx context.Context, groupID string) *session.Session {
	reply := make(chan *session.Session, 1)
	select {
	case r.inbox <- getMsg{groupID: groupID, reply: reply}:
	case <-r.ctx.Done():
		return nil
	case <-ctx.Done():
		return nil
	}
	select {
	case s := <-reply:
		return s
	case <-r.ctx.Done():
		return nil
	case <-ctx.Done():
		return nil
	}
}

// Remove drops and stops the group's session, if any.
func (r *Registry) Remove(groupID string) {
	select {
	case r.inbox <- removeMsg{groupID: groupID}:
	case <-r.ctx.Done():
	}
}

// Shutdown stops every session and the registry loop.
func (r *Registry) Shutdown() {
	select {
	case r.inbox <- shutdownMsg{}:
	case <-r.ctx.Done():
	}
}

func (r *Registry) loop() {
	for {
		select {
		case <-r.ctx.Done():
			return
		case m := <-r.inbox:
			switch m := m.(type) {
			case createMsg:
				m.reply <- r.create(m)
			case getMsg:
				m.reply <- r.sessions[m.groupID]
			case removeMsg:
				if s := r.sessions[m.groupID]; s != nil {
					delete(r.sessions, m.groupID)
					s.Close()
				}
			case shutdownMsg:
				for id, s := range r.sessions {
					s.Close()
					delete(r.sessions, id)
				}
				r.cancel()
				return
			}
		}
	}
}

func (r *Registry) create(m createMsg) createResult {
	if r.sessions[m.groupID] != nil {
		return createResult{err: ErrAlreadyActive}
	}
	if m.required < engine.MinPlayers || m.required > engine.MaxPlayers {
		return createResult{err: engine.ErrBadPlayerCount}
	}

	s := session.New(r.ctx, session.Config{
		GroupID:         m.groupID,
		HostID:          m.hostID,
		ChannelID:       m.channel,
		RequiredPlayers: m.required,
		Chat:            r.deps.Chat,
		Stats:           r.deps.Stats,
		Log:             r.deps.Log,
		Settings:        r.deps.Settings,
		OnEnd:           r.Remove,
	})
	r.sessions[m.groupID] = s
	r.deps.Log.Info("session created",
		zap.String("group", m.groupID),
		zap.String("host", m.hostID),
		zap.Int("required", m.required))
	return createResult{sess: s}
}
