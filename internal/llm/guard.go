package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rcliao/convo-memory/internal/metrics"
)

// Guard runs one completion under the fail-open policy: a timeout bounds it,
// a panic or error is recovered, and empty output counts as a failure. On
// failure it logs, counts the event under op and returns ok=false. A nil
// completer returns ok=false without counting.
func Guard(ctx context.Context, c Completer, timeout time.Duration, logger *zap.Logger, op string, req Request) (text string, ok bool) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if c == nil {
		logger.Debug("no completer configured", zap.String("op", op))
		return "", false
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	out, err := safeComplete(ctx, c, req)
	if err == nil && strings.TrimSpace(out) == "" {
		err = ErrUnusable
	}
	if err != nil {
		metrics.FailOpen.WithLabelValues(op).Inc()
		logger.Warn("completion failed", zap.String("op", op), zap.Error(err))
		return "", false
	}
	return out, true
}

type completion struct {
	text string
	err  error
}

// safeComplete returns when the completer does or when ctx ends, whichever
// comes first, so a completer that ignores ctx cannot stall the caller.
func safeComplete(ctx context.Context, c Completer, req Request) (string, error) {
	done := make(chan completion, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- completion{err: fmt.Errorf("completer panic: %v", r)}
			}
		}()
		text, err := c.Complete(ctx, req)
		done <- completion{text: text, err: err}
	}()

	select {
	case res := <-done:
		return res.text, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
