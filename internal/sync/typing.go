package sync

import (
	"sort"
	stdsync "sync"
	"time"
)

const (
	// DefaultTypingExpiry is how long a typing indicator stays visible after
	// the last typing event for that user.
	DefaultTypingExpiry = 3 * time.Second

	// DefaultDebounceWindow is the minimum gap between typing events a sender
	// emits for one conversation.
	DefaultDebounceWindow = 500 * time.Millisecond
)

// TypingTracker is the receiver side of typing presence. Each typing event
// replaces that user's expiry timer; entries carry a generation drawn from a
// tracker-wide counter, so a callback from a replaced timer cannot remove the
// entry its successor just refreshed.
type TypingTracker struct {
	mu      stdsync.Mutex
	expiry  time.Duration
	gen     uint64
	timers  map[string]*typingEntry
	current map[string]struct{}
}

type typingEntry struct {
	timer *time.Timer
	gen   uint64
}

func NewTypingTracker(expiry time.Duration) *TypingTracker {
	if expiry <= 0 {
		expiry = DefaultTypingExpiry
	}
	return &TypingTracker{
		expiry:  expiry,
		timers:  make(map[string]*typingEntry),
		current: make(map[string]struct{}),
	}
}

// Refresh marks userID as typing and restarts their expiry timer.
func (t *TypingTracker) Refresh(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.current[userID] = struct{}{}
	t.gen++
	gen := t.gen
	if e, ok := t.timers[userID]; ok {
		// Stop cannot recall a callback already in flight; the generation
		// check in expire turns that callback into a no-op.
		e.timer.Stop()
	}
	t.timers[userID] = &typingEntry{
		gen:   gen,
		timer: time.AfterFunc(t.expiry, func() { t.expire(userID, gen) }),
	}
}

func (t *TypingTracker) expire(userID string, gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.timers[userID]
	if !ok || e.gen != gen {
		return
	}
	delete(t.current, userID)
	delete(t.timers, userID)
}

// Users returns everyone currently typing, in stable order.
func (t *TypingTracker) Users() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	users := make([]string, 0, len(t.current))
	for u := range t.current {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}

// Clear drops every indicator and pending timer. Called when the user
// switches conversations so stale indicators never bleed across items.
func (t *TypingTracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, e := range t.timers {
		e.timer.Stop()
	}
	t.timers = make(map[string]*typingEntry)
	t.current = make(map[string]struct{})
}

// TypingDebouncer is the sender side: keystrokes call Trigger, and at most
// one publish fires per window no matter how many keystrokes arrive. It is
// a small timer-state machine: idle until the first keystroke, pending while
// the window is open, publishing once when the window closes.
type TypingDebouncer struct {
	mu      stdsync.Mutex
	window  time.Duration
	publish func()
	pending bool
	timer   *time.Timer
}

func NewTypingDebouncer(window time.Duration, publish func()) *TypingDebouncer {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &TypingDebouncer{
		window:  window,
		publish: publish,
	}
}

// Trigger records a keystroke. The first call opens the window; further
// calls inside it coalesce. The publish fires once, when the window closes.
func (d *TypingDebouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pending {
		return
	}
	d.pending = true
	d.timer = time.AfterFunc(d.window, d.fire)
}

func (d *TypingDebouncer) fire() {
	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		return
	}
	d.pending = false
	d.timer = nil
	d.mu.Unlock()

	d.publish()
}

// Stop cancels an open window without publishing.
func (d *TypingDebouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = false
}
