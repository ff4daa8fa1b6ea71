package chat

import (
	"context"
	"fmt"
	"io"
	"sync"

	"golang.org/x/time/rate"
)

// Replier sends a line of text to a channel or nick.
type Replier interface {
	Reply(ctx context.Context, target, text string) error
}

// WriterReplier writes "<target> <text>" lines to an io.Writer. It is safe
// for concurrent use.
type WriterReplier struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterReplier returns a Replier writing to w.
func NewWriterReplier(w io.Writer) *WriterReplier {
	return &WriterReplier{w: w}
}

func (r *WriterReplier) Reply(_ context.Context, target, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := fmt.Fprintf(r.w, "%s %s\n", target, text); err != nil {
		return fmt.Errorf("failed to write reply to %s: %w", target, err)
	}
	return nil
}

// PacedReplier limits how fast lines are sent so the bot is not kicked for
// flooding. All targets share one budget, as they share one connection.
type PacedReplier struct {
	next    Replier
	limiter *rate.Limiter
}

// NewPacedReplier allows linesPerSecond lines with bursts of up to burst
// lines. A rate of zero disables pacing.
func NewPacedReplier(next Replier, linesPerSecond float64, burst int) *PacedReplier {
	limit := rate.Limit(linesPerSecond)
	if linesPerSecond <= 0 {
		limit = rate.Inf
	}
	return &PacedReplier{
		next:    next,
		limiter: rate.NewLimiter(limit, max(1, burst)),
	}
}

func (r *PacedReplier) Reply(ctx context.Context, target, text string) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("reply to %s not sent: %w", target, err)
	}
	return r.next.Reply(ctx, target, text)
}
