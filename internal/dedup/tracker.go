// Package dedup suppresses repeated issue announcements within a channel.
//
// Each channel owns a window of recently announced issue IDs. An ID stays in
// the window for the timeout the window was created with; while it is there,
// further mentions of the same ID in that channel are not announced again.
package dedup

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danielolaszy/rmsnarf/internal/logging"
)

// Tracker holds one announcement window per channel. It is safe for
// concurrent use; windows are locked individually so channels never contend
// with each other.
type Tracker struct {
	mu      sync.RWMutex
	windows map[string]*window

	// timeout is read when a window is created, in nanoseconds
	timeout atomic.Int64
	now     func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// NewTracker creates a tracker whose windows expire entries after timeout.
func NewTracker(timeout time.Duration, opts ...Option) *Tracker {
	t := &Tracker{
		windows: make(map[string]*window),
		now:     time.Now,
	}
	t.timeout.Store(int64(timeout))
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SetTimeout changes the timeout used for windows created from now on.
// Existing windows keep the timeout they were created with.
func (t *Tracker) SetTimeout(timeout time.Duration) {
	t.timeout.Store(int64(timeout))
}

// Prime creates windows for channels known at startup.
func (t *Tracker) Prime(channels ...string) {
	for _, channel := range channels {
		t.window(channel)
	}
}

// ShouldAnnounce reports whether issueID may be announced in channel. A true
// result records the announcement, so of several concurrent callers asking
// about the same ID and channel exactly one gets true.
func (t *Tracker) ShouldAnnounce(channel, issueID string) bool {
	w := t.window(channel)

	w.mu.Lock()
	defer w.mu.Unlock()

	now := t.now()
	w.prune(now)
	if w.contains(issueID) {
		return false
	}
	w.entries = append(w.entries, entry{id: issueID, at: now})

	logging.Info("issue added to announcement window",
		"channel", channel,
		"issue_id", issueID,
		"window", w.ids())
	return true
}

// Len returns the number of unexpired entries in channel's window.
func (t *Tracker) Len(channel string) int {
	t.mu.RLock()
	w, ok := t.windows[FoldChannel(channel)]
	t.mu.RUnlock()
	if !ok {
		return 0
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(t.now())
	return len(w.entries)
}

// Channels returns the folded names of channels that have a window.
func (t *Tracker) Channels() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	channels := make([]string, 0, len(t.windows))
	for name := range t.windows {
		channels = append(channels, name)
	}
	return channels
}

func (t *Tracker) window(channel string) *window {
	key := FoldChannel(channel)

	t.mu.RLock()
	w, ok := t.windows[key]
	t.mu.RUnlock()
	if ok {
		return w
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if w, ok := t.windows[key]; ok {
		return w
	}
	w = &window{timeout: time.Duration(t.timeout.Load())}
	t.windows[key] = w
	logging.Debug("created announcement window", "channel", channel, "timeout", w.timeout)
	return w
}

type entry struct {
	id string
	at time.Time
}

// window is a time-ordered queue; the oldest entry is first.
type window struct {
	mu      sync.Mutex
	timeout time.Duration
	entries []entry
}

// prune drops entries older than the timeout. An entry exactly timeout old
// is still live.
func (w *window) prune(now time.Time) {
	cutoff := now.Add(-w.timeout)
	n := 0
	for n < len(w.entries) && w.entries[n].at.Before(cutoff) {
		n++
	}
	if n > 0 {
		w.entries = append(w.entries[:0], w.entries[n:]...)
	}
}

func (w *window) contains(id string) bool {
	for _, e := range w.entries {
		if e.id == id {
			return true
		}
	}
	return false
}

func (w *window) ids() []string {
	ids := make([]string, len(w.entries))
	for i, e := range w.entries {
		ids[i] = e.id
	}
	return ids
}

// FoldChannel normalizes a channel name using RFC 1459 case mapping, under
// which "[]\~" are the uppercase forms of "{}|^".
func FoldChannel(channel string) string {
	return rfc1459.Replace(strings.ToLower(channel))
}

var rfc1459 = strings.NewReplacer("[", "{", "]", "}", "\\", "|", "~", "^")
