// Package extract turns recent dialogue into typed, scored memory candidates.
package extract

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rcliao/convo-memory/internal/llm"
	"github.com/rcliao/convo-memory/internal/model"
	"github.com/rcliao/convo-memory/internal/window"
)

// Defaults for Options.
const (
	DefaultMaxTurns      = 6
	DefaultMaxCandidates = 5
)

const systemPrompt = `You are a memory extractor. From the conversation below, extract at least 1 and at most 5 items worth remembering for future conversations, each as a one-line summary.
Categories, by priority (safety/medical > profile > preferences/decisions/todos):
- profile: name, age, sex, breed, neutered, weight, temperament
- allergy: allergies, hypersensitivity, side effects
- chronic: chronic conditions, diagnoses, medical history
- contraindication: things that must be avoided
- medication: drugs, dosing
- diet: diet, food, supplements
- preference, decision, constraint, todo, or any other durable fact

Rules:
1) If a pet's name is mentioned, include an item of the form "cat name is {name}".
2) Use the category keyword naturally in each item (e.g. "allergy", "medication", "dose", "avoid", "diet", "breed", "weight").
3) Remove filler, emoji and quotes; state facts only.
4) Leave out anything vague or speculative.

Output one item per line, at most five lines. Example:
- cat name is Ongsim-i
- allergy: chicken
- medication: amoxicillin 50mg twice a day
- avoid: chocolate
- indoor only`

// Options tunes an Extractor.
type Options struct {
	MaxTurns      int
	MaxCandidates int
	Timeout       time.Duration
}

// Extractor proposes memory candidates with one completion call per turn.
type Extractor struct {
	completer llm.Completer
	opts      Options
	logger    *zap.Logger
}

// New returns an Extractor. Zero options take the defaults.
func New(c llm.Completer, opts Options, logger *zap.Logger) *Extractor {
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = DefaultMaxTurns
	}
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = DefaultMaxCandidates
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{completer: c, opts: opts, logger: logger.Named("extract")}
}

// Extract asks the completer for memorable lines from the last MaxTurns
// turns plus the latest reply, then classifies and scores each line. Any
// completion failure yields no candidates; Extract never fails.
func (e *Extractor) Extract(ctx context.Context, recent []window.Message, reply string) []model.Candidate {
	if len(recent) > e.opts.MaxTurns {
		recent = recent[len(recent)-e.opts.MaxTurns:]
	}

	text, ok := llm.Guard(ctx, e.completer, e.opts.Timeout, e.logger, "extract", llm.Request{
		System: systemPrompt,
		User: "Extract the items to remember from this conversation log and the latest reply.\n\n" +
			"Conversation log:\n" + window.RenderTurns(recent) + "\n\nLatest reply:\n" + reply,
	})
	if !ok {
		return []model.Candidate{}
	}

	out := []model.Candidate{}
	for _, line := range ParseLines(text, e.opts.MaxCandidates) {
		typ := Classify(line)
		out = append(out, model.Candidate{
			Content:    line,
			Type:       typ,
			Importance: model.Score(model.ImportanceFor(typ)),
		})
	}
	e.logger.Debug("extracted", zap.Int("candidates", len(out)))
	return out
}

// ParseLines splits a completion into normalized one-line items. Bullet
// markers are stripped and blank lines skipped; at most limit items return.
func ParseLines(text string, limit int) []string {
	var out []string
	for _, ln := range strings.Split(text, "\n") {
		if len(out) >= limit {
			break
		}
		ln = strings.Trim(ln, "-•*\t\r ")
		if norm := model.Normalize(ln); norm != "" {
			out = append(out, norm)
		}
	}
	return out
}
