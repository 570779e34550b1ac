// Package window manages the bounded conversation context: recent turns,
// the rolling summary and the ordered prompt handed to the agent.
package window

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rcliao/convo-memory/internal/llm"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one (role, content) entry of a conversation or prompt.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Policy controls when older turns are compacted.
type Policy struct {
	RecentTurns     int // user+assistant pairs kept verbatim
	TriggerTurns    int // compaction starts above this many user turns
	MaxSummaryChars int // 0 keeps the whole accumulated summary
}

// DefaultPolicy keeps 10 turns and compacts past 20 user turns.
var DefaultPolicy = Policy{RecentTurns: 10, TriggerTurns: 20}

const summarizeSystem = "You are a conversation summarizer. From the older conversation log, " +
	"produce a concise, self-contained summary of durable facts, decisions, preferences, " +
	"constraints and important events. Drop incidental detail and keep what future turns will need."

// Manager compacts conversation history through a summarizing completer.
type Manager struct {
	policy    Policy
	completer llm.Completer
	timeout   time.Duration
	logger    *zap.Logger
}

// NewManager returns a Manager. A nil completer disables compaction.
func NewManager(p Policy, c llm.Completer, timeout time.Duration, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{policy: p, completer: c, timeout: timeout, logger: logger.Named("window")}
}

// Policy returns the manager's policy.
func (m *Manager) Policy() Policy { return m.policy }

// CountUserTurns returns the number of user-authored messages.
func CountUserTurns(turns []Message) int {
	n := 0
	for _, t := range turns {
		if t.Role == RoleUser {
			n++
		}
	}
	return n
}

// Recent returns the last 2*n messages of turns.
func Recent(turns []Message, n int) []Message {
	keep := max(0, 2*n)
	if keep >= len(turns) {
		return turns
	}
	return turns[len(turns)-keep:]
}

// MaybeUpdateSummary compacts history once it holds more than TriggerTurns
// user turns. Everything before the last 2*RecentTurns messages is summarized
// once and appended to the prior summary; only the recent suffix is returned.
// When nothing qualifies or summarization fails, prior and turns come back
// unchanged.
func (m *Manager) MaybeUpdateSummary(ctx context.Context, prior string, turns []Message) (string, []Message) {
	if CountUserTurns(turns) <= m.policy.TriggerTurns {
		return prior, turns
	}

	recent := Recent(turns, m.policy.RecentTurns)
	old := turns[:len(turns)-len(recent)]
	if len(old) == 0 {
		return prior, turns
	}

	text, ok := llm.Guard(ctx, m.completer, m.timeout, m.logger, "summarize", llm.Request{
		System: summarizeSystem,
		User:   "Summarize the following conversation log.\n\n" + RenderTurns(old),
	})
	if !ok {
		return prior, turns
	}

	merged := strings.TrimSpace(text)
	if p := strings.TrimSpace(prior); p != "" {
		merged = p + "\n\n" + merged
	}
	merged = capSummary(merged, m.policy.MaxSummaryChars)

	m.logger.Info("summary updated",
		zap.Int("compacted", len(old)),
		zap.Int("kept", len(recent)),
		zap.Int("summary_chars", len([]rune(merged))),
	)
	return merged, append([]Message(nil), recent...)
}

// RenderTurns formats messages as role-labeled plain text, one per line.
func RenderTurns(turns []Message) string {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		label := "[Assistant]"
		if t.Role == RoleUser {
			label = "[User]"
		}
		lines = append(lines, label+" "+t.Content)
	}
	return strings.Join(lines, "\n")
}

// capSummary drops the oldest paragraphs until the summary fits maxChars.
// The newest paragraph is always kept.
func capSummary(s string, maxChars int) string {
	if maxChars <= 0 {
		return s
	}
	paras := strings.Split(s, "\n\n")
	for len(paras) > 1 && len([]rune(strings.Join(paras, "\n\n"))) > maxChars {
		paras = paras[1:]
	}
	return strings.Join(paras, "\n\n")
}
