package quota

import (
	"context"
	"sync"
	"time"

	"marketdata-service/internal/domain"
	infraconfig "marketdata-service/internal/infrastructure/config"
)

// bucket coalesces calls recorded within the same second.
type bucket struct {
	at    time.Time
	count int
}

// window is the per-credential sliding-window state. Credentials are
// independent: throttling one never blocks another.
type window struct {
	buckets       []bucket
	available     bool
	cooldownUntil time.Time
}

type Clock func() time.Time

// WaitFunc suspends the caller for d or until ctx is canceled.
type WaitFunc func(ctx context.Context, d time.Duration) error

// Tracker enforces a per-credential calls-per-minute budget with a
// safety buffer, and a fixed cooldown after an explicit throttling
// signal from the provider.
type Tracker struct {
	mu    sync.Mutex
	creds map[string]*window

	maxAllowed   int
	safetyBuffer int
	cooldown     time.Duration
	windowLen    time.Duration
	retryMargin  time.Duration

	now  Clock
	wait WaitFunc
}

type Option func(*Tracker)

func WithClock(c Clock) Option   { return func(t *Tracker) { t.now = c } }
func WithWait(w WaitFunc) Option { return func(t *Tracker) { t.wait = w } }
func WithWindow(d time.Duration) Option {
	return func(t *Tracker) { t.windowLen = d }
}

func NewTracker(maxAllowed, safetyBuffer int, cooldown time.Duration, opts ...Option) *Tracker {
	t := &Tracker{
		creds:        make(map[string]*window),
		maxAllowed:   maxAllowed,
		safetyBuffer: safetyBuffer,
		cooldown:     cooldown,
		windowLen:    infraconfig.QuotaWindow,
		retryMargin:  infraconfig.QuotaRetryMargin,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.now == nil {
		t.now = time.Now
	}
	if t.wait == nil {
		t.wait = sleepWait
	}
	return t
}

func sleepWait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (t *Tracker) cred(name string) *window {
	w, ok := t.creds[name]
	if !ok {
		w = &window{available: true}
		t.creds[name] = w
	}
	return w
}

// prune drops buckets that have slid out of the window.
func (w *window) prune(now time.Time, windowLen time.Duration) {
	cutoff := now.Add(-windowLen)
	i := 0
	for ; i < len(w.buckets); i++ {
		if w.buckets[i].at.After(cutoff) {
			break
		}
	}
	if i > 0 {
		w.buckets = append(w.buckets[:0:0], w.buckets[i:]...)
	}
}

func (w *window) recentCalls() int {
	n := 0
	for _, b := range w.buckets {
		n += b.count
	}
	return n
}

// Reserve suspends the caller until a call against credential is safe.
// It is the only blocking point of the acquisition pipeline; the wait
// loop re-evaluates the window after every suspension.
func (t *Tracker) Reserve(ctx context.Context, credential string) error {
	for {
		t.mu.Lock()
		now := t.now()
		w := t.cred(credential)

		if !w.available {
			if now.Before(w.cooldownUntil) {
				d := w.cooldownUntil.Sub(now)
				t.mu.Unlock()
				if err := t.wait(ctx, d); err != nil {
					return err
				}
				continue
			}
			w.available = true
		}

		w.prune(now, t.windowLen)
		if w.recentCalls() < t.maxAllowed-t.safetyBuffer {
			t.mu.Unlock()
			return nil
		}

		// Window is full: wait for the oldest bucket to slide out.
		d := w.buckets[0].at.Add(t.windowLen).Sub(now) + t.retryMargin
		t.mu.Unlock()
		if err := t.wait(ctx, d); err != nil {
			return err
		}
	}
}

// Record accounts n completed call attempts against credential.
func (t *Tracker) Record(credential string, n int) {
	if n <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	w := t.cred(credential)
	now := t.now().Truncate(time.Second)
	if ln := len(w.buckets); ln > 0 && w.buckets[ln-1].at.Equal(now) {
		w.buckets[ln-1].count += n
		return
	}
	w.buckets = append(w.buckets, bucket{at: now, count: n})
}

// ReportThrottled reacts to an explicit throttling signal: the window is
// cleared and the credential stays unavailable for the full cooldown,
// which is authoritative over any room the window might regain earlier.
func (t *Tracker) ReportThrottled(credential string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	w := t.cred(credential)
	w.buckets = nil
	w.available = false
	w.cooldownUntil = t.now().Add(t.cooldown)
}

func (t *Tracker) Status(credential string) domain.QuotaStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	w := t.cred(credential)
	now := t.now()
	w.prune(now, t.windowLen)
	recent := w.recentCalls()
	available := w.available || !now.Before(w.cooldownUntil)
	remaining := t.maxAllowed - t.safetyBuffer - recent
	if remaining < 0 {
		remaining = 0
	}
	return domain.QuotaStatus{
		Credential:  credential,
		RecentCalls: recent,
		MaxAllowed:  t.maxAllowed,
		Remaining:   remaining,
		Available:   available,
	}
}

// Remaining reports how many calls fit in the effective budget right now.
func (t *Tracker) Remaining(credential string) int {
	return t.Status(credential).Remaining
}
