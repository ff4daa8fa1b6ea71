package chat

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/danielolaszy/rmsnarf/internal/logging"
	"golang.org/x/sync/errgroup"
)

// Handler produces reply lines. *snarf.Service implements it.
type Handler interface {
	Snarf(ctx context.Context, channel, text string) []string
	Lookup(ctx context.Context, id int) []string
}

// Dispatcher routes events to a Handler and sends the replies.
type Dispatcher struct {
	handler Handler
	replier Replier
	prefix  string
	workers int
}

// NewDispatcher creates a dispatcher. Channel messages starting with prefix
// are commands; private messages are always commands. At most workers events
// are handled at once.
func NewDispatcher(handler Handler, replier Replier, prefix string, workers int) *Dispatcher {
	return &Dispatcher{
		handler: handler,
		replier: replier,
		prefix:  prefix,
		workers: max(1, workers),
	}
}

// Run handles events until the channel is closed, ctx is done or a reply
// cannot be sent. Events are handled concurrently; the lines of one event are
// sent in order.
func (d *Dispatcher) Run(ctx context.Context, events <-chan Event) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)

loop:
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				break loop
			}
			g.Go(func() error {
				return d.Handle(gctx, ev)
			})
		case <-gctx.Done():
			break loop
		}
	}

	return g.Wait()
}

// Handle answers a single event.
func (d *Dispatcher) Handle(ctx context.Context, ev Event) error {
	var lines []string
	if args, ok := d.command(ev); ok {
		lines = d.runCommand(ctx, args)
	} else if ev.InChannel() {
		lines = d.handler.Snarf(ctx, ev.Target, ev.Text)
	}

	target := ev.ReplyTo()
	for _, line := range lines {
		if err := d.replier.Reply(ctx, target, line); err != nil {
			logging.Error("failed to send reply", "target", target, "error", err)
			return err
		}
	}
	return nil
}

// command returns the words of a bug command addressed to the bot.
func (d *Dispatcher) command(ev Event) ([]string, bool) {
	text := strings.TrimSpace(ev.Text)
	if ev.InChannel() {
		if d.prefix == "" || !strings.HasPrefix(text, d.prefix) {
			return nil, false
		}
		text = strings.TrimPrefix(text, d.prefix)
	}

	args := strings.Fields(text)
	if len(args) == 0 || !strings.EqualFold(args[0], "bug") {
		return nil, false
	}
	return args[1:], true
}

func (d *Dispatcher) runCommand(ctx context.Context, args []string) []string {
	if len(args) != 1 {
		return []string{"(bug <bug number>) -- Expand bug # to a full URI"}
	}

	id, err := strconv.Atoi(args[0])
	if err != nil {
		return []string{fmt.Sprintf("Error: %q is not a valid integer.", args[0])}
	}

	logging.Debug("bug lookup requested", "issue_id", id)
	return d.handler.Lookup(ctx, id)
}
