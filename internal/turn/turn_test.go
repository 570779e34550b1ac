package turn

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rcliao/convo-memory/internal/extract"
	"github.com/rcliao/convo-memory/internal/llm"
	"github.com/rcliao/convo-memory/internal/model"
	"github.com/rcliao/convo-memory/internal/recall"
	"github.com/rcliao/convo-memory/internal/store"
	"github.com/rcliao/convo-memory/internal/window"
)

// scripted answers the extractor and the summarizer by their prompts.
func scripted(extracted, summary string, err error) llm.CompleterFunc {
	return func(ctx context.Context, req llm.Request) (string, error) {
		if err != nil {
			return "", err
		}
		if strings.Contains(req.System, "memory extractor") {
			return extracted, nil
		}
		return summary, nil
	}
}

func newTestPipeline(t *testing.T, c llm.Completer, policy window.Policy) (*Pipeline, *store.FileStore) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	s, err := store.NewFileStore(filepath.Join(t.TempDir(), "memory.json"), logger)
	require.NoError(t, err)
	p := NewPipeline(
		s,
		recall.NewEngine(s, logger),
		window.NewManager(policy, c, time.Second, logger),
		extract.New(c, extract.Options{}, logger),
		Options{K: 8, CoreFacts: CoreFactsOptions{MinImportance: 0.8, MaxChars: 1600, PerItemChars: 640}},
		logger,
	)
	return p, s
}

func TestRecordThenPrepare(t *testing.T) {
	ctx := context.Background()
	p, s := newTestPipeline(t, scripted("- cat name is Ongsim-i\n- allergy: chicken\n- prefers sunny windows", "", nil), window.DefaultPolicy)
	sess := &Session{UserID: "u1", CatID: "cat:ongsim"}

	res, err := p.Record(ctx, sess, "My cat Ongsim-i is allergic to chicken", "Got it, no chicken for Ongsim-i.")
	require.NoError(t, err)
	assert.Len(t, res.CreatedIDs, 3)
	require.Len(t, sess.Turns, 2)
	assert.Equal(t, window.RoleAssistant, sess.Turns[1].Role)

	mem, err := s.Read(ctx, "u1", res.CreatedIDs[1])
	require.NoError(t, err)
	assert.Equal(t, model.TypeAllergy, mem.Type)
	assert.Equal(t, "cat:ongsim", mem.CatID)

	again, err := p.Record(ctx, sess, "Remember, chicken is bad", "Yes.")
	require.NoError(t, err)
	assert.Empty(t, again.CreatedIDs)
	assert.Equal(t, 3, again.Deduped)

	msgs, err := p.Prepare(ctx, sess, "What is Ongsim-i's name?")
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(msgs), 3)
	// profile scores 0.65, below the pinning threshold, so it is retrieved instead
	assert.Equal(t, window.Message{Role: window.RoleSystem, Content: window.CoreFactsPreamble + "- allergy: chicken"}, msgs[0])
	assert.Equal(t, window.Message{Role: window.RoleSystem, Content: window.MemoryPreamble + "- cat name is ongsim-i\n- prefers sunny windows"}, msgs[1])
	assert.Equal(t, window.Message{Role: window.RoleUser, Content: "What is Ongsim-i's name?"}, msgs[len(msgs)-1])
	assert.Len(t, msgs, 2+4+1)
}

func TestRecordExtractionFailureIsNotFatal(t *testing.T) {
	p, s := newTestPipeline(t, scripted("", "", errors.New("provider down")), window.DefaultPolicy)
	sess := &Session{UserID: "u1"}

	res, err := p.Record(context.Background(), sess, "hi", "hello")
	require.NoError(t, err)
	assert.Empty(t, res.CreatedIDs)
	assert.Len(t, sess.Turns, 2)

	mems, _ := s.List(context.Background(), "u1")
	assert.Empty(t, mems)
}

func TestRecordWriteFailurePropagates(t *testing.T) {
	p, s := newTestPipeline(t, scripted("indoor only", "", nil), window.DefaultPolicy)
	require.NoError(t, os.RemoveAll(filepath.Dir(s.Path())))

	_, err := p.Record(context.Background(), &Session{UserID: "u1"}, "she stays inside", "ok")
	var werr *store.WriteError
	assert.ErrorAs(t, err, &werr)
}

func TestPrepareCompactsLongSessions(t *testing.T) {
	p, _ := newTestPipeline(t, scripted("", "ongsim-i is a russian blue", nil), window.Policy{RecentTurns: 2, TriggerTurns: 3})
	sess := &Session{UserID: "u1"}
	for i := 0; i < 5; i++ {
		sess.Turns = append(sess.Turns,
			window.Message{Role: window.RoleUser, Content: fmt.Sprintf("q%d", i)},
			window.Message{Role: window.RoleAssistant, Content: fmt.Sprintf("a%d", i)},
		)
	}

	msgs, err := p.Prepare(context.Background(), sess, "next")
	require.NoError(t, err)

	assert.Equal(t, "ongsim-i is a russian blue", sess.Summary)
	assert.Len(t, sess.Turns, 4)
	assert.Equal(t, window.Message{Role: window.RoleSystem, Content: window.SummaryPreamble + "ongsim-i is a russian blue"}, msgs[0])
	assert.Len(t, msgs, 1+4+1)
}

func TestPipelineRequiresUser(t *testing.T) {
	p, _ := newTestPipeline(t, nil, window.DefaultPolicy)
	_, err := p.Prepare(context.Background(), &Session{}, "x")
	assert.ErrorIs(t, err, store.ErrInvalidUserID)
	_, err = p.Record(context.Background(), &Session{}, "x", "y")
	assert.ErrorIs(t, err, store.ErrInvalidUserID)
}
