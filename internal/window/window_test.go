package window

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rcliao/convo-memory/internal/llm"
)

func history(userTurns int) []Message {
	var out []Message
	for i := 0; i < userTurns; i++ {
		out = append(out,
			Message{Role: RoleUser, Content: fmt.Sprintf("question %d", i)},
			Message{Role: RoleAssistant, Content: fmt.Sprintf("answer %d", i)},
		)
	}
	return out
}

type countingCompleter struct {
	calls int
	last  llm.Request
	reply string
	err   error
}

func (c *countingCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	c.calls++
	c.last = req
	return c.reply, c.err
}

func newManager(t *testing.T, recent, trigger int, c llm.Completer) *Manager {
	return NewManager(Policy{RecentTurns: recent, TriggerTurns: trigger}, c, time.Second, zaptest.NewLogger(t))
}

func TestMaybeUpdateSummaryBoundary(t *testing.T) {
	ctx := context.Background()

	t.Run("at trigger is unchanged", func(t *testing.T) {
		c := &countingCompleter{reply: "summary"}
		turns := history(10)
		summary, pruned := newManager(t, 3, 10, c).MaybeUpdateSummary(ctx, "prior", turns)

		assert.Equal(t, "prior", summary)
		assert.Equal(t, turns, pruned)
		assert.Zero(t, c.calls)
	})

	t.Run("above trigger compacts", func(t *testing.T) {
		c := &countingCompleter{reply: "  cat is Ongsim-i  "}
		turns := history(11)
		summary, pruned := newManager(t, 3, 10, c).MaybeUpdateSummary(ctx, "", turns)

		assert.Equal(t, "cat is Ongsim-i", summary)
		assert.LessOrEqual(t, len(pruned), 2*3)
		assert.Equal(t, turns[len(turns)-6:], pruned)
		assert.Equal(t, 1, c.calls)
		assert.Contains(t, c.last.User, "[User] question 0")
		assert.Contains(t, c.last.User, "[Assistant] answer 7")
		assert.NotContains(t, c.last.User, "question 8")
	})
}

func TestMaybeUpdateSummaryAccumulates(t *testing.T) {
	c := &countingCompleter{reply: "new facts"}
	summary, _ := newManager(t, 2, 3, c).MaybeUpdateSummary(context.Background(), " old facts ", history(5))
	assert.Equal(t, "old facts\n\nnew facts", summary)
}

func TestMaybeUpdateSummaryFailOpen(t *testing.T) {
	turns := history(12)
	for name, c := range map[string]llm.Completer{
		"error": &countingCompleter{err: errors.New("rate limited")},
		"empty": &countingCompleter{reply: ""},
		"nil":   nil,
	} {
		t.Run(name, func(t *testing.T) {
			summary, pruned := newManager(t, 2, 5, c).MaybeUpdateSummary(context.Background(), "prior", turns)
			assert.Equal(t, "prior", summary)
			assert.Equal(t, turns, pruned)
		})
	}
}

func TestMaybeUpdateSummaryNoOldPrefix(t *testing.T) {
	c := &countingCompleter{reply: "x"}
	turns := history(4)
	summary, pruned := newManager(t, 10, 2, c).MaybeUpdateSummary(context.Background(), "", turns)
	assert.Empty(t, summary)
	assert.Equal(t, turns, pruned)
	assert.Zero(t, c.calls)
}

func TestMaybeUpdateSummaryCapsLength(t *testing.T) {
	c := &countingCompleter{reply: "newest"}
	m := NewManager(Policy{RecentTurns: 1, TriggerTurns: 1, MaxSummaryChars: 12}, c, time.Second, nil)
	summary, _ := m.MaybeUpdateSummary(context.Background(), "oldest paragraph", history(3))
	assert.Equal(t, "newest", summary)
}

func TestBuildContextOrder(t *testing.T) {
	recent := []Message{
		{Role: RoleUser, Content: "hi"},
		{Role: "tool", Content: "ignored"},
		{Role: RoleAssistant, Content: "hello"},
	}
	msgs := BuildContext("the summary", []string{"allergic to chicken"}, []string{"likes tuna", "", "indoor only"}, recent, "what should I feed?")

	require.Len(t, msgs, 6)
	assert.Equal(t, Message{Role: RoleSystem, Content: SummaryPreamble + "the summary"}, msgs[0])
	assert.Equal(t, Message{Role: RoleSystem, Content: CoreFactsPreamble + "- allergic to chicken"}, msgs[1])
	assert.Equal(t, Message{Role: RoleSystem, Content: MemoryPreamble + "- likes tuna\n- indoor only"}, msgs[2])
	assert.Equal(t, Message{Role: RoleUser, Content: "hi"}, msgs[3])
	assert.Equal(t, Message{Role: RoleAssistant, Content: "hello"}, msgs[4])
	assert.Equal(t, Message{Role: RoleUser, Content: "what should I feed?"}, msgs[5])
}

func TestBuildContextOmitsEmptyBlocks(t *testing.T) {
	msgs := BuildContext("", nil, []string{""}, nil, "hello")
	assert.Equal(t, []Message{{Role: RoleUser, Content: "hello"}}, msgs)
}

func TestRecent(t *testing.T) {
	turns := history(5)
	assert.Len(t, Recent(turns, 2), 4)
	assert.Equal(t, turns, Recent(turns, 50))
	assert.Empty(t, Recent(turns, 0))
}

func TestTrimBlock(t *testing.T) {
	tests := []struct {
		name     string
		texts    []string
		max, per int
		want     []string
	}{
		{"no limits", []string{"a", "", "b"}, 0, 0, []string{"a", "b"}},
		{"per item cap", []string{"abcdefgh"}, 0, 5, []string{"abcd…"}},
		{"budget fills", []string{"aaaa", "bbbb"}, 8, 0, []string{"aaaa", "bbbb"}},
		{"last item cut", []string{"aaaa", "bbbbbb"}, 7, 0, []string{"aaaa", "bb…"}},
		{"no room left", []string{"aaaa", "bbbb", "cccc"}, 5, 0, []string{"aaaa"}},
		{"runes not bytes", []string{"고양이 이름은 옹심이"}, 0, 4, []string{"고양이…"}},
		{"empty input", nil, 10, 5, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TrimBlock(tt.texts, tt.max, tt.per))
		})
	}
}

func TestRenderTurns(t *testing.T) {
	got := RenderTurns([]Message{{Role: RoleUser, Content: "a"}, {Role: RoleAssistant, Content: "b"}})
	assert.Equal(t, "[User] a\n[Assistant] b", got)
	assert.False(t, strings.HasSuffix(got, "\n"))
}
