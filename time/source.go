// Package time provides replaceable clocks for the relay loops.
package time

import (
	"context"
	"sync"
	"time"
)

// Source is a clock that can sleep.
type Source interface {
	Now() time.Time

	// Sleep pauses for d or until ctx is done, whichever comes first.
	Sleep(ctx context.Context, d time.Duration)
}

type StdSource struct{}

func (s *StdSource) Now() time.Time {
	return time.Now()
}

func (s *StdSource) Sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// TestSource is a manual clock. Sleep advances the clock by the requested
// duration and returns immediately.
type TestSource struct {
	N time.Time

	lock   sync.Mutex
	sleeps []time.Duration
}

func (t *TestSource) Now() time.Time {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.N
}

func (t *TestSource) Set(sec int64, nsec int64) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.N = time.Unix(sec, nsec)
}

func (t *TestSource) Advance(d time.Duration) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.N = t.N.Add(d)
}

func (t *TestSource) Sleep(ctx context.Context, d time.Duration) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.sleeps = append(t.sleeps, d)
	t.N = t.N.Add(d)
}

// Sleeps returns the durations of all calls to Sleep so far.
func (t *TestSource) Sleeps() []time.Duration {
	t.lock.Lock()
	defer t.lock.Unlock()

	s := make([]time.Duration, len(t.sleeps))
	copy(s, t.sleeps)

	return s
}
