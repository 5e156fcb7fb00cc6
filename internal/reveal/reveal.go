// Package reveal implements the cosmetic incremental reveal of completed
// assistant text. It is display-layer only: the underlying transport
// delivers whole responses, and nothing here ever touches persisted data.
package reveal

import (
	"context"
	"time"
)

const (
	// DefaultInterval is the cadence between reveal steps.
	DefaultInterval = 10 * time.Millisecond

	// DefaultStep is how many runes each step exposes.
	DefaultStep = 5
)

// Options tunes the reveal cadence. Zero values take the defaults.
type Options struct {
	Interval time.Duration
	Step     int
}

// Stream emits growing prefixes of content on the returned channel until
// the full text has been shown, then closes it. When final is true the full
// content is emitted once, immediately; messages loaded from history never
// animate. Cancelling ctx stops the ticker and closes the channel, so a
// consumer tearing down a view cannot leak the timer or keep revealing onto
// stale content.
func Stream(ctx context.Context, content string, final bool, opts Options) <-chan string {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Step <= 0 {
		opts.Step = DefaultStep
	}

	out := make(chan string, 1)

	if final || content == "" {
		out <- content
		close(out)
		return out
	}

	go func() {
		defer close(out)

		runes := []rune(content)
		ticker := time.NewTicker(opts.Interval)
		defer ticker.Stop()

		shown := 0
		for shown < len(runes) {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				shown += opts.Step
				if shown > len(runes) {
					shown = len(runes)
				}
				select {
				case out <- string(runes[:shown]):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}
