// Package turn drives the memory components once per conversational turn.
package turn

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rcliao/convo-memory/internal/extract"
	"github.com/rcliao/convo-memory/internal/metrics"
	"github.com/rcliao/convo-memory/internal/recall"
	"github.com/rcliao/convo-memory/internal/store"
	"github.com/rcliao/convo-memory/internal/window"
)

// Session is the transient per-conversation state. It is owned by the
// caller and never persisted here.
type Session struct {
	UserID  string           `json:"user_id"`
	OwnerID string           `json:"owner_id,omitempty"`
	CatID   string           `json:"cat_id,omitempty"`
	Summary string           `json:"summary,omitempty"`
	Turns   []window.Message `json:"turns"`
}

// CoreFactsOptions bounds the pinned facts block.
type CoreFactsOptions struct {
	MinImportance float64
	MaxChars      int
	PerItemChars  int
}

// Options tunes a Pipeline.
type Options struct {
	K         int
	CoreFacts CoreFactsOptions
}

// Pipeline composes store, ranking, window management and extraction.
type Pipeline struct {
	store     store.Store
	engine    *recall.Engine
	window    *window.Manager
	extractor *extract.Extractor
	opts      Options
	logger    *zap.Logger
}

// NewPipeline wires the components of one turn.
func NewPipeline(s store.Store, e *recall.Engine, w *window.Manager, x *extract.Extractor, opts Options, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{store: s, engine: e, window: w, extractor: x, opts: opts, logger: logger.Named("turn")}
}

// Prepare compacts the session if due, gathers pinned facts and retrieved
// memories for message, and returns the ordered prompt for the agent. The
// session's summary and turns are updated in place. Retrieval failures
// degrade to a prompt without memories.
func (p *Pipeline) Prepare(ctx context.Context, sess *Session, message string) ([]window.Message, error) {
	if sess.UserID == "" {
		return nil, store.ErrInvalidUserID
	}

	sess.Summary, sess.Turns = p.window.MaybeUpdateSummary(ctx, sess.Summary, sess.Turns)

	pinned := p.engine.CoreFacts(ctx, recall.CoreFactsParams{
		UserID:        sess.UserID,
		OwnerID:       sess.OwnerID,
		CatID:         sess.CatID,
		Message:       message,
		Summary:       sess.Summary,
		MinImportance: p.opts.CoreFacts.MinImportance,
		MaxChars:      p.opts.CoreFacts.MaxChars,
		PerItemChars:  p.opts.CoreFacts.PerItemChars,
	})

	var retrieved []string
	res, err := p.engine.Search(ctx, recall.SearchParams{
		UserID:  sess.UserID,
		Query:   recall.RewriteQuery(message, sess.Summary),
		K:       p.opts.K,
		OwnerID: sess.OwnerID,
		CatID:   sess.CatID,
	})
	if err != nil {
		metrics.FailOpen.WithLabelValues("search").Inc()
		p.logger.Warn("memory search failed", zap.String("user_id", sess.UserID), zap.Error(err))
	} else {
		isPinned := make(map[string]bool, len(pinned))
		for _, f := range pinned {
			isPinned[f] = true
		}
		for _, it := range res.Items {
			if !isPinned[it.Content] {
				retrieved = append(retrieved, it.Content)
			}
		}
	}

	recent := window.Recent(sess.Turns, p.window.Policy().RecentTurns)
	return window.BuildContext(sess.Summary, pinned, retrieved, recent, message), nil
}

// Record appends the exchange to the session, extracts candidates from it
// and upserts them. Extraction never fails the turn; a store write failure
// is returned.
func (p *Pipeline) Record(ctx context.Context, sess *Session, message, reply string) (*store.UpsertResult, error) {
	if sess.UserID == "" {
		return nil, store.ErrInvalidUserID
	}

	sess.Turns = append(sess.Turns, window.Message{Role: window.RoleUser, Content: message})
	cands := p.extractor.Extract(ctx, sess.Turns, reply)
	sess.Turns = append(sess.Turns, window.Message{Role: window.RoleAssistant, Content: reply})

	if len(cands) == 0 {
		return &store.UpsertResult{CreatedIDs: []string{}}, nil
	}
	for i := range cands {
		cands[i].OwnerID = sess.OwnerID
		cands[i].CatID = sess.CatID
	}

	res, err := p.store.Upsert(ctx, sess.UserID, cands)
	if err != nil {
		return nil, fmt.Errorf("record memories: %w", err)
	}
	return res, nil
}
