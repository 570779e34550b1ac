// Package recall ranks stored memories against a query.
package recall

import (
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/rcliao/convo-memory/internal/model"
)

// Score weights. They sum to 1 so a score stays in [0,1].
const (
	OverlapWeight    = 0.7
	DecayWeight      = 0.2
	ImportanceWeight = 0.1
)

// decayPerDay is the exponential decay rate applied to record age in days.
const decayPerDay = 0.002

// Tokenize case-folds s and splits it on whitespace, '/' and '-'.
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return unicode.IsSpace(r) || r == '/' || r == '-'
	})
}

// LexicalOverlap returns the share of distinct query tokens present in content.
func LexicalOverlap(query, content string) float64 {
	q := tokenSet(query)
	c := tokenSet(content)
	if len(q) == 0 || len(c) == 0 {
		return 0
	}
	inter := 0
	for t := range q {
		if c[t] {
			inter++
		}
	}
	return float64(inter) / float64(max(1, len(q)))
}

func tokenSet(s string) map[string]bool {
	toks := Tokenize(s)
	set := make(map[string]bool, len(toks))
	for _, t := range toks {
		set[t] = true
	}
	return set
}

// TimeDecay returns exp(-0.002 * age_days). Future timestamps count as age 0
// and a malformed timestamp counts as fully fresh.
func TimeDecay(timestamp string, now time.Time) float64 {
	ts, err := model.ParseTimestamp(timestamp)
	if err != nil {
		return 1.0
	}
	ageDays := now.In(ts.Location()).Sub(ts).Hours() / 24.0
	if ageDays < 0 {
		ageDays = 0
	}
	return math.Exp(-decayPerDay * ageDays)
}

// Score is the composite relevance of m for query at time now.
func Score(m model.Memory, query string, now time.Time) float64 {
	return OverlapWeight*LexicalOverlap(query, m.Content) +
		DecayWeight*TimeDecay(m.Timestamp, now) +
		ImportanceWeight*m.Importance
}
