package transport

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Call is one recorded transport operation.
type Call struct {
	Op        string // "send", "edit", "delete", "dm", "lock"
	ChannelID string
	MessageID string
	UserID    string
	Content   string
	Buttons   []Button
	Allowed   bool
}

// Recorder is an in-memory Chat used by tests: it records every call and
// hands out sequential message IDs. Optionally some users can be marked
// unreachable to exercise DM failure paths.
type Recorder struct {
	mu          sync.Mutex
	calls       []Call
	nextID      int
	Names       map[string]string
	Unreachable map[string]bool
}

func NewRecorder() *Recorder {
	return &Recorder{
		Names:       make(map[string]string),
		Unreachable: make(map[string]bool),
	}
}

func (r *Recorder) SendMessage(_ context.Context, channelID, content string, buttons []Button) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := fmt.Sprintf("m%d", r.nextID)
	r.calls = append(r.calls, Call{Op: "send", ChannelID: channelID, MessageID: id, Content: content, Buttons: buttons})
	return id, nil
}

func (r *Recorder) EditMessage(_ context.Context, channelID, messageID, content string, buttons []Button) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Op: "edit", ChannelID: channelID, MessageID: messageID, Content: content, Buttons: buttons})
	return nil
}

func (r *Recorder) DeleteMessage(_ context.Context, channelID, messageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Op: "delete", ChannelID: channelID, MessageID: messageID})
	return nil
}

func (r *Recorder) SendDirectMessage(_ context.Context, userID, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Unreachable[userID] {
		return ErrUnreachable
	}
	r.calls = append(r.calls, Call{Op: "dm", UserID: userID, Content: content})
	return nil
}

func (r *Recorder) SetChannelPostingAllowed(_ context.Context, channelID string, allowed bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Op: "lock", ChannelID: channelID, Allowed: allowed})
	return nil
}

func (r *Recorder) ResolveDisplayName(_ context.Context, _, userID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name, ok := r.Names[userID]; ok {
		return name
	}
	return "@" + userID
}

// Calls returns a copy of everything recorded so far.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// CallsOf filters recorded calls by operation.
func (r *Recorder) CallsOf(op string) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// ContainsContent reports whether any recorded send or edit mentions the
// given substring.
func (r *Recorder) ContainsContent(sub string) bool {
	for _, c := range r.Calls() {
		if (c.Op == "send" || c.Op == "edit" || c.Op == "dm") && strings.Contains(c.Content, sub) {
			return true
		}
	}
	return false
}
