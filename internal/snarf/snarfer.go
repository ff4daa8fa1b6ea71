// Package snarf watches channel text for Redmine issue references and turns
// them into summary lines.
package snarf

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/danielolaszy/rmsnarf/internal/config"
	"github.com/danielolaszy/rmsnarf/internal/dedup"
	"github.com/danielolaszy/rmsnarf/internal/format"
	"github.com/danielolaszy/rmsnarf/internal/logging"
	"github.com/danielolaszy/rmsnarf/internal/redmine"
	"github.com/danielolaszy/rmsnarf/pkg/models"
)

// Pattern matches issue references such as "RM 42", "RM#42" or "RM # 42".
var Pattern = regexp.MustCompile(`\bRM\b[\s#]*(?P<id>\d+)`)

var idGroup = Pattern.SubexpIndex("id")

// Fetcher retrieves a single issue. Implementations return an error
// wrapping redmine.ErrNotFound when the issue does not exist.
type Fetcher interface {
	Fetch(ctx context.Context, issueID string) (models.Issue, error)
}

// Settings is an immutable snapshot of everything the service needs. It is
// replaced as a whole on reconfiguration.
type Settings struct {
	Fetcher     Fetcher
	Formatter   *format.Formatter
	TrackerName string
	// Enabled applies to channels without an entry in Channels
	Enabled  bool
	Channels map[string]bool
	Timeout  time.Duration
}

// NewSettings builds Settings from cfg around fetcher.
func NewSettings(cfg *config.Config, fetcher Fetcher) Settings {
	channels := make(map[string]bool, len(cfg.Snarfer.Channels))
	for name, enabled := range cfg.Snarfer.Channels {
		channels[dedup.FoldChannel(name)] = enabled
	}

	return Settings{
		Fetcher:     fetcher,
		Formatter:   format.New(cfg.Snarfer.Format, cfg.Redmine.URL, cfg.Redmine.Name),
		TrackerName: cfg.Redmine.Name,
		Enabled:     cfg.Snarfer.Enabled,
		Channels:    channels,
		Timeout:     cfg.Snarfer.TimeoutDuration(),
	}
}

// ChannelEnabled reports whether snarfing is on for channel.
func (s *Settings) ChannelEnabled(channel string) bool {
	if enabled, ok := s.Channels[dedup.FoldChannel(channel)]; ok {
		return enabled
	}
	return s.Enabled
}

// Service answers issue references in channels and explicit lookups.
type Service struct {
	tracker  *dedup.Tracker
	settings atomic.Pointer[Settings]
}

// NewService creates a service. tracker is shared by all channels and should
// be created with settings.Timeout.
func NewService(tracker *dedup.Tracker, settings Settings) *Service {
	s := &Service{tracker: tracker}
	s.settings.Store(&settings)
	return s
}

// Reconfigure swaps in new settings. Messages already being handled finish
// with the settings they started with. A changed timeout only applies to
// channels that have not been seen yet.
func (s *Service) Reconfigure(settings Settings) {
	s.settings.Store(&settings)
	s.tracker.SetTimeout(settings.Timeout)
	logging.Info("snarfer reconfigured",
		"tracker", settings.TrackerName,
		"enabled", settings.Enabled,
		"timeout", settings.Timeout)
}

// ExtractIDs returns the issue IDs referenced in text, in order and with
// repeats.
func ExtractIDs(text string) []string {
	matches := Pattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m[idGroup])
	}
	return ids
}

// Snarf handles a message seen in channel and returns the lines to send
// back, in order. It returns nil when the channel is not enabled, nothing
// was referenced, or every reference was announced recently.
func (s *Service) Snarf(ctx context.Context, channel, text string) []string {
	ids := ExtractIDs(text)
	if len(ids) == 0 {
		return nil
	}

	st := s.settings.Load()
	if !st.ChannelEnabled(channel) {
		return nil
	}

	log := logging.With("channel", channel)
	log.Debug("snarfed issue ids", "ids", ids)

	// A cancelled message must not claim IDs it will never announce.
	if err := ctx.Err(); err != nil {
		log.Warn("dropped issue references", "ids", ids, "error", err)
		return nil
	}

	var accepted []string
	for _, id := range ids {
		if s.tracker.ShouldAnnounce(channel, id) {
			accepted = append(accepted, id)
		}
	}
	if len(accepted) == 0 {
		return nil
	}

	var lines []string
	for _, id := range accepted {
		// IDs left in the batch stay claimed until their window expires.
		if err := ctx.Err(); err != nil {
			log.Warn("stopped handling issue references", "issue_id", id, "error", err)
			break
		}

		result, err := s.describe(ctx, st, id)
		if errors.Is(err, redmine.ErrNotFound) {
			// the snarf path has no not-found message
			result = st.Formatter.Format(id, nil)
		}
		lines = append(lines, result...)
	}
	return lines
}

// Lookup describes issue id on request. It ignores channel settings and the
// announcement windows.
func (s *Service) Lookup(ctx context.Context, id int) []string {
	st := s.settings.Load()
	issueID := strconv.Itoa(id)

	lines, err := s.describe(ctx, st, issueID)
	if errors.Is(err, redmine.ErrNotFound) || (err == nil && len(lines) == 0) {
		return []string{fmt.Sprintf("sorry, bug %d was not found", id)}
	}
	return lines
}

// describe fetches and formats one issue. Failures other than not found
// come back as a single error line and a nil error.
func (s *Service) describe(ctx context.Context, st *Settings, issueID string) ([]string, error) {
	issue, err := st.Fetcher.Fetch(ctx, issueID)
	if err != nil {
		if errors.Is(err, redmine.ErrNotFound) {
			logging.Debug("issue not found", "issue_id", issueID)
			return nil, err
		}
		logging.Warn("failed to fetch issue", "issue_id", issueID, "error", err)
		return []string{fmt.Sprintf("An error occurred when trying to query %s: %v", st.TrackerName, err)}, nil
	}

	return st.Formatter.Format(issueID, issue), nil
}
