package scheduler

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// TestAddJob_SingleInstanceGuarantee matches spec.md §8 scenario 8: a
// job with a 2-second body registered at a 1-second interval must
// start at most 3 times over 5 seconds, and never concurrently.
func TestAddJob_SingleInstanceGuarantee(t *testing.T) {
	s := New(zerolog.Nop())

	var starts int64
	var mu sync.Mutex
	running := false
	overlapped := false

	err := s.AddJob("slow", "@every 1s", func() {
		mu.Lock()
		if running {
			overlapped = true
		}
		running = true
		mu.Unlock()

		atomic.AddInt64(&starts, 1)
		time.Sleep(2 * time.Second)

		mu.Lock()
		running = false
		mu.Unlock()
	})
	require.NoError(t, err)

	s.Start()
	time.Sleep(5 * time.Second)
	s.Shutdown(true)

	require.False(t, overlapped, "job body must never run concurrently with itself")
	require.LessOrEqual(t, atomic.LoadInt64(&starts), int64(3))
	require.GreaterOrEqual(t, atomic.LoadInt64(&starts), int64(1))
}

func TestShutdown_WaitDrainsRunningJob(t *testing.T) {
	s := New(zerolog.Nop())
	started := make(chan struct{})
	finished := make(chan struct{})

	err := s.AddJob("drain", "@every 1s", func() {
		close(started)
		time.Sleep(300 * time.Millisecond)
		close(finished)
	})
	require.NoError(t, err)

	s.Start()
	<-started
	s.Shutdown(true)

	select {
	case <-finished:
	default:
		t.Fatal("Shutdown(wait=true) returned before the running job drained")
	}
}

// TestNoteFiring_SkipsFiringBeyondMisfireGrace matches spec.md §4.8's
// misfire policy: a firing that arrives more than misfireGrace after
// the previously computed expected time is coalesced and skipped,
// rather than run late. Uses injected timestamps instead of sleeping
// out the 30-second grace window.
func TestNoteFiring_SkipsFiringBeyondMisfireGrace(t *testing.T) {
	s := New(zerolog.Nop())

	schedule, err := cronParser.Parse("@every 1m")
	require.NoError(t, err)
	stats := &jobStats{schedule: schedule}

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.True(t, s.noteFiring("misfire-test", stats, base), "first firing has no prior expectation and must run")
	require.Equal(t, int64(1), stats.runs)
	require.Equal(t, int64(0), stats.skipped)

	late := stats.nextExpected.Add(misfireGrace + time.Second)
	require.False(t, s.noteFiring("misfire-test", stats, late), "firing beyond the grace window must be coalesced and skipped")
	require.Equal(t, int64(1), stats.runs)
	require.Equal(t, int64(1), stats.skipped)

	onTime := stats.nextExpected
	require.True(t, s.noteFiring("misfire-test", stats, onTime), "a subsequent on-time firing must run")
	require.Equal(t, int64(2), stats.runs)
	require.Equal(t, int64(1), stats.skipped)
}

func TestAddJob_DuplicateIDReplacesPreviousRegistration(t *testing.T) {
	s := New(zerolog.Nop())

	var firstCalls, secondCalls int64
	require.NoError(t, s.AddJob("dup", "@every 1s", func() { atomic.AddInt64(&firstCalls, 1) }))
	require.NoError(t, s.AddJob("dup", "@every 1s", func() { atomic.AddInt64(&secondCalls, 1) }))

	s.Start()
	time.Sleep(1200 * time.Millisecond)
	s.Shutdown(true)

	require.Equal(t, int64(0), atomic.LoadInt64(&firstCalls))
	require.GreaterOrEqual(t, atomic.LoadInt64(&secondCalls), int64(1))
}
