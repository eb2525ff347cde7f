// Package panel holds the chat panel logic: it consumes the Connection's
// event stream, maintains the message timeline, and persists the session
// record as turns complete. Rendering is left to the host editor; the
// panel exposes the timeline and loading state it should draw.
package panel

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/asiloisad/pulsar-claude-chat/claude"
	"github.com/asiloisad/pulsar-claude-chat/session"
)

// Panel orchestrates one chat conversation.
type Panel struct {
	conn  *claude.Connection
	store *session.Store
	log   *slog.Logger

	mu           sync.Mutex
	projectPaths []string
	sessionID    string
	persistedID  string
	messages     []session.Message
	loading      bool
	inFlight     bool // a streaming assistant message is open
	totalUsage   session.TokenUsage
	turnUsage    session.TokenUsage
}

// New creates a panel bound to a connection and store. store may be nil,
// in which case nothing is persisted.
func New(conn *claude.Connection, store *session.Store, projectPaths []string, log *slog.Logger) *Panel {
	return &Panel{
		conn:         conn,
		store:        store,
		log:          log,
		projectPaths: projectPaths,
	}
}

// Run consumes events until the channel closes. Call from a goroutine.
func (p *Panel) Run(events <-chan claude.Event) {
	for ev := range events {
		p.HandleEvent(ev)
	}
}

// Send appends the user message, marks the turn loading, and forwards the
// prompt to the CLI.
func (p *Panel) Send(prompt string) error {
	if p.conn == nil {
		return fmt.Errorf("no connection")
	}

	p.mu.Lock()
	p.messages = append(p.messages, session.Message{Role: "user", Content: prompt})
	p.loading = true
	p.inFlight = false
	p.mu.Unlock()

	if err := p.conn.Send(prompt); err != nil {
		p.mu.Lock()
		p.loading = false
		p.messages = append(p.messages, session.Message{
			Role:    "error",
			Content: err.Error(),
			IsError: true,
		})
		p.mu.Unlock()
		return err
	}
	return nil
}

// Restore loads a persisted session into the panel. A missing record is
// not an error; the panel simply stays empty.
func (p *Panel) Restore(sessionID string) error {
	if p.store == nil {
		return nil
	}

	rec, err := p.store.Load(sessionID)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}

	p.mu.Lock()
	p.sessionID = rec.SessionID
	p.persistedID = rec.SessionID
	p.messages = rec.Messages
	p.totalUsage = rec.TokenUsage
	p.turnUsage = session.TokenUsage{}
	p.mu.Unlock()
	return nil
}

// Messages returns a copy of the timeline.
func (p *Panel) Messages() []session.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]session.Message, len(p.messages))
	copy(out, p.messages)
	return out
}

// Loading reports whether a turn is in progress.
func (p *Panel) Loading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loading
}

// SessionID returns the current session id, or "" before assignment.
func (p *Panel) SessionID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessionID
}

// TokenUsage returns the running total including the in-progress turn.
func (p *Panel) TokenUsage() session.TokenUsage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return addUsage(p.totalUsage, p.turnUsage)
}

func addUsage(a, b session.TokenUsage) session.TokenUsage {
	return session.TokenUsage{
		Input:         a.Input + b.Input,
		Output:        a.Output + b.Output,
		CacheRead:     a.CacheRead + b.CacheRead,
		CacheCreation: a.CacheCreation + b.CacheCreation,
	}
}

// HandleEvent applies one connection event to the panel state.
func (p *Panel) HandleEvent(ev claude.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch e := ev.(type) {
	case claude.SessionAssigned:
		p.rekeyLocked(e.ID)

	case claude.TextDelta:
		p.appendDeltaLocked(e.Text)

	case claude.AssistantTurn:
		// A complete assistant message ends any streaming message
		p.inFlight = false
		for _, text := range e.TextBlocks {
			p.messages = append(p.messages, session.Message{Role: "assistant", Content: text})
		}
		for _, tu := range e.ToolUses {
			p.messages = append(p.messages, session.Message{
				Role:      "tool",
				ID:        tu.ID,
				Name:      tu.Name,
				Input:     tu.Input,
				Collapsed: true,
			})
		}

	case claude.ToolResult:
		p.resolveToolLocked(e)

	case claude.UsageUpdate:
		// Values are cumulative within the turn; keep the latest
		p.turnUsage = session.TokenUsage{
			Input:         e.Input,
			Output:        e.Output,
			CacheRead:     e.CacheRead,
			CacheCreation: e.CacheCreation,
		}

	case claude.TurnResult:
		p.loading = false
		p.inFlight = false
		p.totalUsage = addUsage(p.totalUsage, p.turnUsage)
		p.turnUsage = session.TokenUsage{}
		if e.IsError && e.Text != "" {
			p.messages = append(p.messages, session.Message{
				Role:    "error",
				Content: e.Text,
				IsError: true,
			})
		}
		p.persistLocked()

	case claude.SessionExpired:
		// Expiry kills the in-flight turn; the next Send starts fresh.
		p.sessionID = ""
		p.loading = false
		p.inFlight = false

	case claude.ProcessExited:
		p.loading = false
		p.inFlight = false
		if e.Err != nil {
			content := "Claude process exited unexpectedly: " + e.Err.Error()
			if e.Stderr != "" {
				content += "\n" + e.Stderr
			}
			p.messages = append(p.messages, session.Message{
				Role:    "error",
				Content: content,
				IsError: true,
			})
		}

	case claude.SpawnError:
		p.loading = false
		p.inFlight = false
		p.messages = append(p.messages, session.Message{
			Role:    "error",
			Content: e.Title + ": " + e.Detail,
			IsError: true,
		})
	}
}

// appendDeltaLocked grows the streaming assistant message, opening a new
// one when none is in flight.
func (p *Panel) appendDeltaLocked(text string) {
	if p.inFlight && len(p.messages) > 0 {
		last := &p.messages[len(p.messages)-1]
		if last.Role == "assistant" {
			last.Content += text
			return
		}
	}
	p.messages = append(p.messages, session.Message{Role: "assistant", Content: text})
	p.inFlight = true
}

// resolveToolLocked attaches a result to the tool message with the
// matching id. Unknown ids are a no-op.
func (p *Panel) resolveToolLocked(res claude.ToolResult) {
	for i := len(p.messages) - 1; i >= 0; i-- {
		if p.messages[i].Role == "tool" && p.messages[i].ID == res.ToolUseID {
			p.messages[i].Result = res.Content
			p.messages[i].IsError = res.IsError
			return
		}
	}
	p.log.Debug("tool result for unknown tool use", "toolUseID", res.ToolUseID)
}

// rekeyLocked switches persistence to a new session id. A record already
// saved under the old id is moved.
func (p *Panel) rekeyLocked(newID string) {
	if newID == p.sessionID {
		return
	}

	oldPersisted := p.persistedID
	p.sessionID = newID

	if p.store != nil && oldPersisted != "" && oldPersisted != newID {
		if _, err := p.store.Delete(oldPersisted); err != nil {
			p.log.Warn("failed to remove re-keyed session", "sessionID", oldPersisted, "error", err)
		}
		p.persistedID = ""
		p.persistLocked()
	}
}

// persistLocked saves the current timeline under the session id. Must be
// called with mu held.
func (p *Panel) persistLocked() {
	if p.store == nil || p.sessionID == "" {
		return
	}

	rec := &session.Record{
		SessionID:    p.sessionID,
		ProjectPaths: p.projectPaths,
		FirstMessage: firstUserMessage(p.messages),
		Messages:     p.messages,
		TokenUsage:   p.totalUsage,
	}

	existing, err := p.store.Load(p.sessionID)
	if err == nil && existing != nil {
		rec.CreatedAt = existing.CreatedAt
	}

	if err := p.store.Save(rec); err != nil {
		p.log.Error("failed to persist session", "sessionID", p.sessionID, "error", err)
		return
	}
	p.persistedID = p.sessionID
}

func firstUserMessage(messages []session.Message) string {
	for _, m := range messages {
		if m.Role == "user" {
			return m.Content
		}
	}
	return ""
}
