package recall

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/rcliao/convo-memory/internal/metrics"
	"github.com/rcliao/convo-memory/internal/model"
	"github.com/rcliao/convo-memory/internal/window"
)

// CoreTypes are searched, in order, for the pinned facts block.
var CoreTypes = []model.Type{
	model.TypeContraindication,
	model.TypeAllergy,
	model.TypeMedication,
	model.TypeChronic,
	model.TypeDiet,
	model.TypeProfile,
}

// CoreFactsParams holds parameters for building the pinned facts block.
type CoreFactsParams struct {
	UserID        string
	OwnerID       string
	CatID         string
	Message       string
	Summary       string
	MinImportance float64
	PerTypeK      int // results per type search; <= 0 means 6
	MaxChars      int
	PerItemChars  int
}

// CoreFacts collects safety and profile records that must always reach the
// agent. One search runs per core type; records below MinImportance are
// dropped, duplicates keep their first position and the list is trimmed to
// the char budget. A failing search only loses its own type.
func (e *Engine) CoreFacts(ctx context.Context, p CoreFactsParams) []string {
	k := p.PerTypeK
	if k <= 0 {
		k = 6
	}
	query := RewriteQuery(p.Message, p.Summary)

	var facts []string
	seen := map[string]bool{}
	for _, typ := range CoreTypes {
		res, err := e.Search(ctx, SearchParams{
			UserID:  p.UserID,
			Query:   query,
			K:       k,
			OwnerID: p.OwnerID,
			CatID:   p.CatID,
			Filters: Filters{Type: typ},
		})
		if err != nil {
			metrics.FailOpen.WithLabelValues("core_facts").Inc()
			e.logger.Warn("core facts search failed", zap.String("type", string(typ)), zap.Error(err))
			continue
		}
		for _, it := range res.Items {
			text := strings.TrimSpace(it.Content)
			if text == "" || it.Importance < p.MinImportance || seen[text] {
				continue
			}
			seen[text] = true
			facts = append(facts, text)
		}
	}

	return window.TrimBlock(facts, p.MaxChars, p.PerItemChars)
}
