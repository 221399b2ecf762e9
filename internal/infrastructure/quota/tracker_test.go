package quota

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testClock is a manually advanced clock shared between the tracker and
// the injected wait function, so suspensions are deterministic.
type testClock struct {
	t time.Time
}

func (c *testClock) now() time.Time { return c.t }

func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestTracker(c *testClock, max, buffer int, cooldown time.Duration) (*Tracker, *[]time.Duration) {
	waits := &[]time.Duration{}
	tr := NewTracker(max, buffer, cooldown,
		WithClock(c.now),
		WithWait(func(_ context.Context, d time.Duration) error {
			*waits = append(*waits, d)
			c.advance(d)
			return nil
		}),
	)
	return tr, waits
}

func Test_Reserve_UnderBudget_NoWait(t *testing.T) {
	t.Parallel()
	c := &testClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	tr, waits := newTestTracker(c, 60, 10, 2*time.Minute)

	tr.Record("key-a", 49)
	require.NoError(t, tr.Reserve(context.Background(), "key-a"))
	require.Empty(t, *waits)
}

func Test_Reserve_SuspendsUntilWindowSlides(t *testing.T) {
	t.Parallel()
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := &testClock{t: start}
	tr, waits := newTestTracker(c, 60, 10, 2*time.Minute)

	// 50 calls spread over 5 seconds fill the effective budget of 50.
	for i := 0; i < 5; i++ {
		tr.Record("key-a", 10)
		c.advance(time.Second)
	}
	require.Equal(t, 50, tr.Status("key-a").RecentCalls)

	require.NoError(t, tr.Reserve(context.Background(), "key-a"))
	require.NotEmpty(t, *waits)
	// The 51st call may not proceed before the oldest bucket (recorded at
	// start) has left the trailing 60s window.
	require.False(t, c.t.Before(start.Add(time.Minute)))
}

func Test_Reserve_HonorsCooldownAfterThrottle(t *testing.T) {
	t.Parallel()
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := &testClock{t: start}
	tr, waits := newTestTracker(c, 60, 10, 2*time.Minute)

	tr.ReportThrottled("key-a")
	c.advance(10 * time.Second)

	require.NoError(t, tr.Reserve(context.Background(), "key-a"))
	require.Len(t, *waits, 1)
	// 10s already elapsed; the reserve must sit out the remaining 110s
	// even though the cleared window has plenty of room.
	require.Equal(t, 110*time.Second, (*waits)[0])
	require.False(t, c.t.Before(start.Add(2*time.Minute)))
}

func Test_ReportThrottled_ClearsWindow(t *testing.T) {
	t.Parallel()
	c := &testClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	tr, _ := newTestTracker(c, 60, 10, 2*time.Minute)

	tr.Record("key-a", 30)
	tr.ReportThrottled("key-a")

	st := tr.Status("key-a")
	require.Equal(t, 0, st.RecentCalls)
	require.False(t, st.Available)

	c.advance(2 * time.Minute)
	require.True(t, tr.Status("key-a").Available)
}

func Test_Credentials_Independent(t *testing.T) {
	t.Parallel()
	c := &testClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	tr, waits := newTestTracker(c, 60, 10, 2*time.Minute)

	tr.ReportThrottled("key-a")
	require.NoError(t, tr.Reserve(context.Background(), "key-b"))
	require.Empty(t, *waits)
}

func Test_Record_CoalescesSameSecond(t *testing.T) {
	t.Parallel()
	c := &testClock{t: time.Date(2025, 6, 1, 12, 0, 0, 100, time.UTC)}
	tr, _ := newTestTracker(c, 60, 10, 2*time.Minute)

	tr.Record("key-a", 1)
	tr.Record("key-a", 1)
	tr.Record("key-a", 2)

	tr.mu.Lock()
	defer tr.mu.Unlock()
	w := tr.creds["key-a"]
	require.Len(t, w.buckets, 1)
	require.Equal(t, 4, w.buckets[0].count)
}

func Test_Reserve_CanceledContext(t *testing.T) {
	t.Parallel()
	c := &testClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	tr := NewTracker(60, 10, 2*time.Minute,
		WithClock(c.now),
		WithWait(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }),
	)
	tr.Record("key-a", 50)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, tr.Reserve(ctx, "key-a"), context.Canceled)
}

func Test_Status_Remaining(t *testing.T) {
	t.Parallel()
	c := &testClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	tr, _ := newTestTracker(c, 60, 10, 2*time.Minute)

	tr.Record("key-a", 20)
	st := tr.Status("key-a")
	require.Equal(t, 20, st.RecentCalls)
	require.Equal(t, 60, st.MaxAllowed)
	require.Equal(t, 30, st.Remaining)
	require.True(t, st.Available)

	// Buckets older than the window stop counting.
	c.advance(61 * time.Second)
	require.Equal(t, 0, tr.Status("key-a").RecentCalls)
}
