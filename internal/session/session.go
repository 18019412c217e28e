// Package session runs one game instance as a single-writer actor: every
// mutation (join, leave, vote, timer fire) goes through the inbox and is
// applied by the session's own goroutine, so game state needs no locks.
package session

import (
	"context"
	"errors"
	"math/rand"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/warsan/imposter-game-backend/internal/engine"
	"github.com/warsan/imposter-game-backend/internal/stats"
	"github.com/warsan/imposter-game-backend/internal/transport"
)

var (
	ErrAlreadyJoined   = errors.New("already joined the lobby")
	ErrLobbyFull       = errors.New("lobby is full")
	ErrNotJoined       = errors.New("not in the lobby")
	ErrNotLobbyPhase   = errors.New("lobby is closed")
	ErrNotVotingPhase  = errors.New("voting is not open")
	ErrNotAlive        = errors.New("player is not alive in this game")
	ErrAlreadyVoted    = errors.New("vote already cast this round")
	ErrIneligibleVoter = errors.New("tied players cannot vote in a revote")
	ErrInvalidTarget   = errors.New("target is not a candidate")
	ErrNotHost         = errors.New("only the host can abort the game")
	ErrGameEnded       = errors.New("game has ended")
)

// Settings are the timing constants of a session. Zero values fall back to
// the production defaults; tests shrink them to run in milliseconds.
type Settings struct {
	LobbyWait           time.Duration
	PostRevealDelay     time.Duration
	PostResolutionDelay time.Duration
	TickInterval        time.Duration
	// Countdown lengths in ticks. Zero means use the per-roster-size table.
	DiscussionTicks int
	VotingTicks     int
}

func (s Settings) withDefaults() Settings {
	if s.LobbyWait == 0 {
		s.LobbyWait = 60 * time.Second
	}
	if s.PostRevealDelay == 0 {
		s.PostRevealDelay = 10 * time.Second
	}
	if s.PostResolutionDelay == 0 {
		s.PostResolutionDelay = 3 * time.Second
	}
	if s.TickInterval == 0 {
		s.TickInterval = time.Second
	}
	return s
}

type Config struct {
	GroupID         string
	HostID          string
	ChannelID       string
	RequiredPlayers int

	Chat     transport.Chat
	Stats    *stats.Accrual
	Log      *zap.Logger
	Settings Settings
	Rand     *rand.Rand

	// OnEnd is called once, from the session goroutine, when the session
	// reaches a terminal state (win, unfilled lobby, abort).
	OnEnd func(groupID string)
}

// View is a read-only snapshot of session state, for tests and status
// queries.
type View struct {
	GroupID     string
	Phase       engine.Phase
	Day         int
	Players     []string
	Alive       []string
	Factions    map[string]engine.Faction
	Adversaries []string
	Votes       int
	Tied        []string
	Remaining   int
}

type msg interface{ isSessionMsg() }

type joinMsg struct {
	userID string
	reply  chan error
}

type leaveMsg struct {
	userID string
	reply  chan error
}

type voteMsg struct {
	voterID  string
	targetID string
	reply    chan error
}

type abortMsg struct {
	actorID string
	reply   chan error
}

type stateMsg struct{ reply chan View }

type tickMsg struct{ gen int }

type timerMsg struct{ gen int }

func (joinMsg) isSessionMsg()  {}
func (leaveMsg) isSessionMsg() {}
func (voteMsg) isSessionMsg()  {}
func (abortMsg) isSessionMsg() {}
func (stateMsg) isSessionMsg() {}
func (tickMsg) isSessionMsg()  {}
func (timerMsg) isSessionMsg() {}

type Session struct {
	cfg   Config
	inbox chan msg
	ctx   context.Context
	cancel context.CancelFunc

	players     []string
	alive       []string
	factions    map[string]engine.Faction
	adversaries []string
	votes       map[string]string
	phase       engine.Phase
	day         int
	tied        []string

	// single active timer, generation-guarded so a stale fire after a phase
	// transition is dropped instead of resolving twice
	timerGen  int
	timerStop chan struct{}
	remaining int
	onExpire  func()

	lobbyMsgID string
	phaseMsgID string
	voteMsgID  string
}

func New(parent context.Context, cfg Config) *Session {
	cfg.Settings = cfg.Settings.withDefaults()
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		cfg:    cfg,
		inbox:  make(chan msg, 64),
		ctx:    ctx,
		cancel: cancel,
		votes:  make(map[string]string),
		phase:  engine.PhaseLobby,
		day:    1,
	}
	go s.run()
	return s
}

func (s *Session) GroupID() string { return s.cfg.GroupID }

// Close stops the session goroutine. The registry calls it after removal.
func (s *Session) Close() { s.cancel() }

func (s *Session) Join(ctx context.Context, userID string) error {
	reply := make(chan error, 1)
	return s.ask(ctx, joinMsg{userID: userID, reply: reply}, reply)
}

func (s *Session) Leave(ctx context.Context, userID string) error {
	reply := make(chan error, 1)
	return s.ask(ctx, leaveMsg{userID: userID, reply: reply}, reply)
}

func (s *Session) CastVote(ctx context.Context, voterID, targetID string) error {
	reply := make(chan error, 1)
	return s.ask(ctx, voteMsg{voterID: voterID, targetID: targetID, reply: reply}, reply)
}

func (s *Session) Abort(ctx context.Context, actorID string) error {
	reply := make(chan error, 1)
	return s.ask(ctx, abortMsg{actorID: actorID, reply: reply}, reply)
}

func (s *Session) State(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	select {
	case s.inbox <- stateMsg{reply: reply}:
	case <-s.ctx.Done():
		return View{}, ErrGameEnded
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
	select {
	case v := <-reply:
		return v, nil
	case <-s.ctx.Done():
		return View{}, ErrGameEnded
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

func (s *Session) ask(ctx context.Context, m msg, reply chan error) error {
	select {
	case s.inbox <- m:
	case <-s.ctx.Done():
		return ErrGameEnded
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-s.ctx.Done():
		// the action that ended the game may be this one: give an already
		// dispatched reply a moment to land before reporting the game gone
		select {
		case err := <-reply:
			return err
		case <-time.After(10 * time.Millisecond):
			return ErrGameEnded
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) run() {
	s.openLobby()
	for {
		select {
		case <-s.ctx.Done():
			return
		case m := <-s.inbox:
			switch m := m.(type) {
			case joinMsg:
				m.reply <- s.handleJoin(m.userID)
			case leaveMsg:
				m.reply <- s.handleLeave(m.userID)
			case voteMsg:
				m.reply <- s.handleVote(m.voterID, m.targetID)
			case abortMsg:
				m.reply <- s.handleAbort(m.actorID)
			case stateMsg:
				m.reply <- s.snapshot()
			case tickMsg:
				if m.gen == s.timerGen {
					s.handleTick()
				}
			case timerMsg:
				if m.gen == s.timerGen {
					expire := s.onExpire
					s.cancelTimer()
					if expire != nil {
						expire()
					}
				}
			}
		}
	}
}

func (s *Session) snapshot() View {
	return View{
		GroupID:     s.cfg.GroupID,
		Phase:       s.phase,
		Day:         s.day,
		Players:     slices.Clone(s.players),
		Alive:       slices.Clone(s.alive),
		Factions:    cloneFactions(s.factions),
		Adversaries: slices.Clone(s.adversaries),
		Votes:       len(s.votes),
		Tied:        slices.Clone(s.tied),
		Remaining:   s.remaining,
	}
}

func cloneFactions(in map[string]engine.Faction) map[string]engine.Faction {
	if in == nil {
		return nil
	}
	out := make(map[string]engine.Faction, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (s *Session) handleJoin(userID string) error {
	if s.phase != engine.PhaseLobby {
		return ErrNotLobbyPhase
	}
	if slices.Contains(s.players, userID) {
		return ErrAlreadyJoined
	}
	if len(s.players) >= s.cfg.RequiredPlayers {
		return ErrLobbyFull
	}

	s.players = append(s.players, userID)

	// name capture and roster refresh are view updates; never block the actor
	go func() {
		name := s.cfg.Chat.ResolveDisplayName(s.ctx, s.cfg.GroupID, userID)
		s.cfg.Stats.RecordDisplayName(context.Background(), userID, name)
	}()
	s.refreshLobbyMessage()

	if len(s.players) == s.cfg.RequiredPlayers {
		s.startGame()
	}
	return nil
}

func (s *Session) handleLeave(userID string) error {
	if s.phase != engine.PhaseLobby {
		return ErrNotLobbyPhase
	}
	i := slices.Index(s.players, userID)
	if i < 0 {
		return ErrNotJoined
	}
	// leaving frees the slot; a late joiner may take it until the lobby
	// window runs out
	s.players = slices.Delete(s.players, i, i+1)
	s.refreshLobbyMessage()
	return nil
}

func (s *Session) handleVote(voterID, targetID string) error {
	switch s.phase {
	case engine.PhaseVoting, engine.PhaseRevote:
	case engine.PhaseEnded:
		return ErrGameEnded
	default:
		return ErrNotVotingPhase
	}
	if s.phase == engine.PhaseRevote && slices.Contains(s.tied, voterID) {
		return ErrIneligibleVoter
	}
	if !slices.Contains(s.alive, voterID) {
		return ErrNotAlive
	}
	if _, voted := s.votes[voterID]; voted {
		return ErrAlreadyVoted
	}
	if !slices.Contains(s.candidates(), targetID) {
		return ErrInvalidTarget
	}

	s.votes[voterID] = targetID

	// early resolution once every eligible voter has spoken
	eligible := engine.EligibleVoters(s.alive, s.phase, s.tied)
	if len(s.votes) >= len(eligible) {
		s.resolveVotes()
	}
	return nil
}

func (s *Session) handleAbort(actorID string) error {
	if actorID != s.cfg.HostID {
		return ErrNotHost
	}
	if s.phase == engine.PhaseEnded {
		return ErrGameEnded
	}
	s.cancelTimer()
	s.phase = engine.PhaseEnded
	s.post("The game was aborted by the host.")
	s.unlockChannel()
	s.finish()
	return nil
}

// candidates are the players a vote may target this round.
func (s *Session) candidates() []string {
	if s.phase == engine.PhaseRevote {
		return s.tied
	}
	return s.alive
}

func (s *Session) finish() {
	if s.cfg.OnEnd != nil {
		s.cfg.OnEnd(s.cfg.GroupID)
	}
}
