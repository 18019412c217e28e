package session

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/warsan/imposter-game-backend/internal/engine"
	"github.com/warsan/imposter-game-backend/internal/transport"
)

const (
	ButtonJoin       = "join_lobby"
	ButtonLeave      = "leave_lobby"
	ButtonVotePrefix = "vote_"
)

// openLobby posts the join prompt and arms the fill window. An unfilled
// lobby cancels itself; that is the expected outcome, not an error.
func (s *Session) openLobby() {
	buttons := []transport.Button{
		{ID: ButtonJoin, Label: "Join"},
		{ID: ButtonLeave, Label: "Leave"},
	}
	id, err := s.cfg.Chat.SendMessage(s.ctx, s.cfg.ChannelID, s.lobbyRender(0, nil), buttons)
	if err != nil {
		s.cfg.Log.Warn("lobby prompt failed", zap.String("group", s.cfg.GroupID), zap.Error(err))
	}
	s.lobbyMsgID = id

	s.armDelay(s.cfg.Settings.LobbyWait, func() {
		if s.phase != engine.PhaseLobby || len(s.players) >= s.cfg.RequiredPlayers {
			return
		}
		s.phase = engine.PhaseEnded
		s.deleteMessage(s.lobbyMsgID)
		s.post("Not enough players joined in time. The game was cancelled.")
		s.finish()
	})
}

// refreshLobbyMessage re-renders the roster. Name resolution and the edit
// happen off the actor goroutine; the message is a projection of state, not
// state itself.
func (s *Session) refreshLobbyMessage() {
	if s.lobbyMsgID == "" {
		return
	}
	msgID := s.lobbyMsgID
	roster := slices.Clone(s.players)
	go func() {
		names := make([]string, len(roster))
		for i, id := range roster {
			names[i] = s.cfg.Chat.ResolveDisplayName(s.ctx, s.cfg.GroupID, id)
		}
		body := s.lobbyRender(len(roster), names)
		if err := s.cfg.Chat.EditMessage(s.ctx, s.cfg.ChannelID, msgID, body, nil); err != nil {
			s.cfg.Log.Warn("lobby refresh failed", zap.String("group", s.cfg.GroupID), zap.Error(err))
		}
	}()
}

func (s *Session) lobbyRender(joined int, names []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Imposter Game - waiting lobby\nRequired players: %d\nJoined: %d\n",
		s.cfg.RequiredPlayers, joined)
	if len(names) > 0 {
		fmt.Fprintf(&b, "Players:\n%s\n", strings.Join(names, "\n"))
	}
	fmt.Fprintf(&b, "Window: %ds", int(s.cfg.Settings.LobbyWait/time.Second))
	return b.String()
}

// startGame is the lobby -> discussion transition: assign factions once,
// seed the alive set, notify everyone privately, then schedule the first
// discussion after the reveal delay.
func (s *Session) startGame() {
	s.cancelTimer()
	s.deleteMessage(s.lobbyMsgID)
	s.lobbyMsgID = ""

	s.phase = engine.PhaseDiscussion
	s.alive = slices.Clone(s.players)

	assignment, err := engine.AssignFactions(s.players, s.cfg.Rand)
	if err != nil {
		// unreachable: the registry validates the count at creation
		s.cfg.Log.Error("faction assignment failed", zap.String("group", s.cfg.GroupID), zap.Error(err))
		s.phase = engine.PhaseEnded
		s.finish()
		return
	}
	s.factions = assignment.Factions
	s.adversaries = assignment.Adversaries

	s.sendRoleNotifications(assignment)
	s.post("Roles have been sent to everyone in private. Check your DMs!")

	s.armDelay(s.cfg.Settings.PostRevealDelay, s.startDiscussion)
}

// sendRoleNotifications DMs each player their faction. Adversaries learn
// their partners. An unreachable player keeps the role; the failure is only
// logged.
func (s *Session) sendRoleNotifications(a engine.Assignment) {
	players := slices.Clone(s.players)
	adversaries := slices.Clone(a.Adversaries)
	go func() {
		names := make(map[string]string, len(adversaries))
		for _, id := range adversaries {
			names[id] = s.cfg.Chat.ResolveDisplayName(s.ctx, s.cfg.GroupID, id)
		}
		for _, id := range players {
			var content string
			if a.Factions[id] == engine.FactionAdversary {
				content = "You are an **Adversary**. Blend in and survive the votes."
				if len(adversaries) > 1 {
					var partners []string
					for _, other := range adversaries {
						if other != id {
							partners = append(partners, names[other])
						}
					}
					content += " Your fellow adversaries: " + strings.Join(partners, ", ")
				}
			} else {
				content = "You are a **Regular**. Find the adversaries and vote them out."
			}
			if err := s.cfg.Chat.SendDirectMessage(s.ctx, id, content); err != nil {
				s.cfg.Log.Warn("role DM failed", zap.String("group", s.cfg.GroupID),
					zap.String("user", id), zap.Error(err))
			}
		}
	}()
}

func (s *Session) startDiscussion() {
	s.phase = engine.PhaseDiscussion
	ticks := s.cfg.Settings.DiscussionTicks
	if ticks == 0 {
		ticks = engine.DiscussionSeconds(s.cfg.RequiredPlayers)
	}

	id, err := s.cfg.Chat.SendMessage(s.ctx, s.cfg.ChannelID, s.discussionContent(ticks), nil)
	if err != nil {
		s.cfg.Log.Warn("discussion prompt failed", zap.String("group", s.cfg.GroupID), zap.Error(err))
	}
	s.phaseMsgID = id

	s.armCountdown(ticks, func() {
		s.deleteMessage(s.phaseMsgID)
		s.phaseMsgID = ""
		s.startVoting(false)
	})
}

func (s *Session) discussionContent(remaining int) string {
	return fmt.Sprintf("Day %d - Discussion\nTime remaining: %ds\n\nAlive players: %s",
		s.day, remaining, strings.Join(s.mentions(s.alive), " "))
}

// startVoting closes the channel for chatter (first round of the day only),
// clears the ballot box and posts one vote button per candidate.
func (s *Session) startVoting(revote bool) {
	if !revote {
		s.tied = nil
		if err := s.cfg.Chat.SetChannelPostingAllowed(s.ctx, s.cfg.ChannelID, false); err != nil {
			s.cfg.Log.Warn("channel lock failed", zap.String("group", s.cfg.GroupID), zap.Error(err))
		}
		s.phase = engine.PhaseVoting
	} else {
		s.phase = engine.PhaseRevote
	}
	s.votes = make(map[string]string)

	ticks := s.cfg.Settings.VotingTicks
	if ticks == 0 {
		ticks = engine.VotingSeconds(s.cfg.RequiredPlayers)
	}

	if revote {
		s.post(fmt.Sprintf("The votes were tied! Revote time! %s", strings.Join(s.mentions(s.alive), " ")))
	} else {
		s.post(fmt.Sprintf("Voting has started! %s", strings.Join(s.mentions(s.alive), " ")))
	}

	candidates := s.candidates()
	buttons := make([]transport.Button, 0, len(candidates))
	for _, id := range candidates {
		buttons = append(buttons, transport.Button{
			ID:    ButtonVotePrefix + id,
			Label: s.cfg.Chat.ResolveDisplayName(s.ctx, s.cfg.GroupID, id),
		})
	}

	id, err := s.cfg.Chat.SendMessage(s.ctx, s.cfg.ChannelID, s.votingContent(ticks), buttons)
	if err != nil {
		s.cfg.Log.Warn("vote prompt failed", zap.String("group", s.cfg.GroupID), zap.Error(err))
	}
	s.voteMsgID = id

	s.armCountdown(ticks, s.resolveVotes)
}

func (s *Session) votingContent(remaining int) string {
	title := "Voting"
	if s.phase == engine.PhaseRevote {
		title = "Revote"
	}
	return fmt.Sprintf("Day %d - %s\nTime remaining: %ds\nPick who you want to vote out.",
		s.day, title, remaining)
}

// resolveVotes runs the round's terminal action exactly once: the countdown
// reaching zero and the last eligible ballot both land here, and the timer
// generation guard keeps the loser of that race from firing it again.
func (s *Session) resolveVotes() {
	s.cancelTimer()

	if s.voteMsgID != "" {
		msgID := s.voteMsgID
		content := s.votingContent(0)
		go func() {
			if err := s.cfg.Chat.EditMessage(s.ctx, s.cfg.ChannelID, msgID, content, []transport.Button{}); err != nil {
				s.cfg.Log.Warn("vote message disable failed", zap.String("group", s.cfg.GroupID), zap.Error(err))
			}
		}()
	}

	s.postVoteLedger()

	outcome := engine.Tally(s.votes)
	if len(outcome.Tied) > 1 {
		s.tied = outcome.Tied
		s.startVoting(true)
		return
	}

	if outcome.Eliminated != "" {
		s.eliminate(outcome.Eliminated)
	} else {
		s.post("No votes were cast. Nobody was eliminated.")
	}

	s.unlockChannel()
	s.evaluateRound()
}

func (s *Session) postVoteLedger() {
	votes := make(map[string]string, len(s.votes))
	for k, v := range s.votes {
		votes[k] = v
	}
	go func() {
		if len(votes) == 0 {
			if _, err := s.cfg.Chat.SendMessage(s.ctx, s.cfg.ChannelID, "Voting results\nNo votes were cast.", nil); err != nil {
				s.cfg.Log.Warn("vote ledger failed", zap.String("group", s.cfg.GroupID), zap.Error(err))
			}
			return
		}
		var lines []string
		for voter, target := range votes {
			lines = append(lines, fmt.Sprintf("**%s** voted for **%s**",
				s.cfg.Chat.ResolveDisplayName(s.ctx, s.cfg.GroupID, voter),
				s.cfg.Chat.ResolveDisplayName(s.ctx, s.cfg.GroupID, target)))
		}
		slices.Sort(lines)
		content := "Voting results\n" + strings.Join(lines, "\n")
		if _, err := s.cfg.Chat.SendMessage(s.ctx, s.cfg.ChannelID, content, nil); err != nil {
			s.cfg.Log.Warn("vote ledger failed", zap.String("group", s.cfg.GroupID), zap.Error(err))
		}
	}()
}

func (s *Session) eliminate(playerID string) {
	i := slices.Index(s.alive, playerID)
	if i >= 0 {
		s.alive = slices.Delete(s.alive, i, i+1)
	}
	faction := "Regular"
	if s.factions[playerID] == engine.FactionAdversary {
		faction = "Adversary"
	}
	s.post(fmt.Sprintf("Player eliminated\n%s has been voted out.\n\nThey were a **%s**.",
		s.mention(playerID), faction))
}

// evaluateRound checks the win condition and either schedules the next day
// or finishes the game.
func (s *Session) evaluateRound() {
	winner := engine.EvaluateWin(s.alive, s.factions)
	if winner == engine.WinnerNone {
		s.day++
		s.armDelay(s.cfg.Settings.PostResolutionDelay, s.startDiscussion)
		return
	}
	s.endGame(winner)
}

func (s *Session) endGame(winner engine.Winner) {
	s.cancelTimer()
	s.phase = engine.PhaseEnded

	var reveal []string
	for _, id := range s.players {
		faction := "Regular"
		if s.factions[id] == engine.FactionAdversary {
			faction = "Adversary"
		}
		reveal = append(reveal, fmt.Sprintf("**%s**: %s",
			s.cfg.Chat.ResolveDisplayName(s.ctx, s.cfg.GroupID, id), faction))
	}

	label := "THE REGULARS WIN!"
	if winner == engine.WinnerAdversaries {
		label = "THE ADVERSARIES WIN!"
	}
	s.post(fmt.Sprintf("The game is over\n**%s**\n\nPlayer roles:\n%s", label, strings.Join(reveal, "\n")))

	players := slices.Clone(s.players)
	factions := cloneFactions(s.factions)
	go s.cfg.Stats.RecordGameResult(context.Background(), players, factions, winner)

	s.finish()
}

func (s *Session) unlockChannel() {
	if err := s.cfg.Chat.SetChannelPostingAllowed(s.ctx, s.cfg.ChannelID, true); err != nil {
		s.cfg.Log.Warn("channel unlock failed", zap.String("group", s.cfg.GroupID), zap.Error(err))
	}
}

// post sends an announcement to the game channel and logs delivery failures;
// the in-memory state is the source of truth, not the transcript.
func (s *Session) post(content string) {
	if _, err := s.cfg.Chat.SendMessage(s.ctx, s.cfg.ChannelID, content, nil); err != nil {
		s.cfg.Log.Warn("announcement failed", zap.String("group", s.cfg.GroupID), zap.Error(err))
	}
}

func (s *Session) deleteMessage(msgID string) {
	if msgID == "" {
		return
	}
	go func() {
		if err := s.cfg.Chat.DeleteMessage(s.ctx, s.cfg.ChannelID, msgID); err != nil {
			s.cfg.Log.Warn("message delete failed", zap.String("group", s.cfg.GroupID), zap.Error(err))
		}
	}()
}

func (s *Session) mentions(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = s.mention(id)
	}
	return out
}

func (s *Session) mention(id string) string { return "@" + id }

// --- timers ---

// armDelay installs a single-shot timer. Arming always cancels the previous
// timer first; at most one is ever live per session.
func (s *Session) armDelay(d time.Duration, expire func()) {
	s.cancelTimer()
	s.timerGen++
	gen := s.timerGen
	s.onExpire = expire
	stop := make(chan struct{})
	s.timerStop = stop

	go func() {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-stop:
		case <-s.ctx.Done():
		case <-t.C:
			select {
			case s.inbox <- timerMsg{gen: gen}:
			case <-stop:
			case <-s.ctx.Done():
			}
		}
	}()
}

// armCountdown installs the per-second tick countdown. Ticks carry the timer
// generation; anything sent by a superseded countdown is ignored.
func (s *Session) armCountdown(ticks int, expire func()) {
	s.cancelTimer()
	s.timerGen++
	gen := s.timerGen
	s.remaining = ticks
	s.onExpire = expire
	stop := make(chan struct{})
	s.timerStop = stop

	go func() {
		t := time.NewTicker(s.cfg.Settings.TickInterval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-s.ctx.Done():
				return
			case <-t.C:
				select {
				case s.inbox <- tickMsg{gen: gen}:
				case <-stop:
					return
				case <-s.ctx.Done():
					return
				}
			}
		}
	}()
}

func (s *Session) cancelTimer() {
	if s.timerStop != nil {
		close(s.timerStop)
		s.timerStop = nil
	}
	s.timerGen++
	s.remaining = 0
	s.onExpire = nil
}

// handleTick decrements the countdown and refreshes the visible display at a
// reduced cadence: every 5 ticks, and every tick inside the final 10.
func (s *Session) handleTick() {
	s.remaining--
	if s.remaining <= 0 {
		expire := s.onExpire
		s.cancelTimer()
		if expire != nil {
			expire()
		}
		return
	}
	if s.remaining%5 == 0 || s.remaining <= 10 {
		s.refreshCountdown()
	}
}

func (s *Session) refreshCountdown() {
	var msgID, content string
	switch s.phase {
	case engine.PhaseDiscussion:
		msgID = s.phaseMsgID
		content = s.discussionContent(s.remaining)
	case engine.PhaseVoting, engine.PhaseRevote:
		msgID = s.voteMsgID
		content = s.votingContent(s.remaining)
	default:
		return
	}
	if msgID == "" {
		return
	}
	go func() {
		if err := s.cfg.Chat.EditMessage(s.ctx, s.cfg.ChannelID, msgID, content, nil); err != nil {
			s.cfg.Log.Warn("countdown refresh failed", zap.String("group", s.cfg.GroupID), zap.Error(err))
		}
	}()
}
