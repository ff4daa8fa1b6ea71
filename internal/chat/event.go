// Package chat connects the snarfer to a line-oriented chat host. Events are
// read one per line and replies are written back as "<target> <text>" lines.
package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/danielolaszy/rmsnarf/internal/logging"
)

// Event is a message seen by the bot.
type Event struct {
	// Target is the channel, or the bot's own nick for private messages
	Target string
	// Nick is the sender, empty when the host does not say
	Nick string
	Text string
}

// IsChannel reports whether name is a channel name.
func IsChannel(name string) bool {
	return name != "" && strings.ContainsRune("#&+!", rune(name[0]))
}

// InChannel reports whether the event was said in a channel.
func (e Event) InChannel() bool {
	return IsChannel(e.Target)
}

// ReplyTo returns where answers to the event go: the channel, or the sender
// of a private message.
func (e Event) ReplyTo() string {
	if e.InChannel() || e.Nick == "" {
		return e.Target
	}
	return e.Nick
}

// ParseEvent parses one input line. Two forms are accepted:
//
//	:nick!user@host PRIVMSG #channel :text
//	#channel text
func ParseEvent(line string) (Event, error) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return Event{}, fmt.Errorf("empty line")
	}

	if strings.HasPrefix(line, ":") {
		return parsePrivmsg(line)
	}

	target, text, ok := strings.Cut(line, " ")
	if !ok || text == "" {
		return Event{}, fmt.Errorf("expected \"<target> <text>\", got %q", line)
	}
	return Event{Target: target, Text: text}, nil
}

func parsePrivmsg(line string) (Event, error) {
	prefix, rest, ok := strings.Cut(line[1:], " ")
	if !ok {
		return Event{}, fmt.Errorf("malformed message %q", line)
	}
	nick, _, _ := strings.Cut(prefix, "!")

	command, rest, ok := strings.Cut(rest, " ")
	if !ok || !strings.EqualFold(command, "PRIVMSG") {
		return Event{}, fmt.Errorf("unsupported message %q", line)
	}

	target, text, ok := strings.Cut(rest, " ")
	if !ok || !strings.HasPrefix(text, ":") {
		return Event{}, fmt.Errorf("malformed PRIVMSG %q", line)
	}

	return Event{Target: target, Nick: nick, Text: text[1:]}, nil
}

// ReadEvents parses lines from r and sends them on events until r is
// exhausted or ctx is done. Lines that do not parse are logged and skipped.
// events is not closed.
func ReadEvents(ctx context.Context, r io.Reader, events chan<- Event) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		ev, err := ParseEvent(scanner.Text())
		if err != nil {
			logging.Debug("skipping input line", "error", err)
			continue
		}

		select {
		case events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read events: %w", err)
	}
	return nil
}
