package recall

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/rcliao/convo-memory/internal/metrics"
	"github.com/rcliao/convo-memory/internal/model"
	"github.com/rcliao/convo-memory/internal/store"
)

// DefaultK is the result count used when a search does not set one.
const DefaultK = 8

// Filters narrow a search before scoring.
type Filters struct {
	Type model.Type `json:"type,omitempty"`
	Tags []string   `json:"tags,omitempty"`
}

// SearchParams holds parameters for searching memories. A zero K means
// DefaultK.
type SearchParams struct {
	UserID  string
	Query   string
	K       int
	OwnerID string
	CatID   string
	Filters Filters
}

// Stats describes one search. It is informational only.
type Stats struct {
	TookMS int64 `json:"took_ms"`
	Total  int   `json:"total"`
}

// ScoredMemory is a ranked record.
type ScoredMemory struct {
	model.Memory
	Score float64 `json:"score"`
}

// SearchResult is the ranked response.
type SearchResult struct {
	Items []ScoredMemory `json:"items"`
	Stats Stats          `json:"stats"`
}

// Engine ranks a store's records.
type Engine struct {
	store  store.Store
	now    func() time.Time
	logger *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock fixes the time used for decay scoring.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine returns an Engine reading from s.
func NewEngine(s store.Store, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{store: s, now: time.Now, logger: logger.Named("recall")}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Search filters the user's records by scope, type and tags, scores the
// survivors and returns the top max(1, K) by descending score. Equal scores
// keep store order.
func (e *Engine) Search(ctx context.Context, p SearchParams) (*SearchResult, error) {
	if p.UserID == "" {
		return nil, store.ErrInvalidUserID
	}
	start := time.Now()

	mems, err := e.store.List(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}

	now := e.now()
	var ranked []ScoredMemory
	for _, m := range mems {
		if !matches(m, p) {
			continue
		}
		ranked = append(ranked, ScoredMemory{Memory: m, Score: Score(m, p.Query, now)})
	}
	total := len(ranked)

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	k := p.K
	if k == 0 {
		k = DefaultK
	}
	k = max(1, k)
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	if ranked == nil {
		ranked = []ScoredMemory{}
	}

	took := time.Since(start)
	metrics.SearchSeconds.Observe(took.Seconds())
	e.logger.Debug("search",
		zap.String("user_id", p.UserID),
		zap.Int("total", total),
		zap.Int("returned", len(ranked)),
		zap.Duration("took", took),
	)

	return &SearchResult{
		Items: ranked,
		Stats: Stats{TookMS: took.Milliseconds(), Total: total},
	}, nil
}

func matches(m model.Memory, p SearchParams) bool {
	if m.UserID != p.UserID {
		return false
	}
	if p.OwnerID != "" && m.OwnerID != p.OwnerID {
		return false
	}
	if p.CatID != "" && m.CatID != p.CatID {
		return false
	}
	if p.Filters.Type != "" && m.Type != p.Filters.Type {
		return false
	}
	if len(p.Filters.Tags) > 0 {
		have := make(map[string]bool, len(m.Tags))
		for _, t := range m.Tags {
			have[t] = true
		}
		for _, t := range p.Filters.Tags {
			if !have[t] {
				return false
			}
		}
	}
	return true
}
