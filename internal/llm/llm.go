// Package llm adapts text-completion providers for the extractor and the
// summarizer.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Provider names accepted by New.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// ErrUnusable is returned when a completion produced nothing usable.
var ErrUnusable = errors.New("completion returned no usable text")

// Request is a single-shot completion prompt.
type Request struct {
	System string
	User   string
}

// Completer produces a text completion.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Config selects and tunes a provider.
type Config struct {
	Provider  string
	Model     string
	APIKey    string
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
}

// New returns the completer for cfg.Provider. An empty provider returns a nil
// Completer, which Guard treats as unavailable.
func New(cfg Config) (Completer, error) {
	switch cfg.Provider {
	case "":
		return nil, nil
	case ProviderAnthropic:
		c, err := NewAnthropic(cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	case ProviderOpenAI:
		c, err := NewOpenAI(cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q (valid: anthropic, openai)", cfg.Provider)
	}
}
