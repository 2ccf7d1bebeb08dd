package srt

import (
	"testing"
	"time"

	timesrc "github.com/datarhei/srtrelay/time"

	"github.com/stretchr/testify/require"
)

func TestMaybeSample(t *testing.T) {
	conn := newStubConn(1, "127.0.0.1")

	last := time.Unix(100, 0)

	_, ok := MaybeSample(conn, last, last.Add(999*time.Millisecond), time.Second)
	require.False(t, ok)
	require.Equal(t, 0, conn.statsCalls)

	now := last.Add(time.Second)

	s, ok := MaybeSample(conn, last, now, time.Second)
	require.True(t, ok)
	require.Equal(t, now, s.Time)
	require.Equal(t, float64(100), s.MbpsBandwidth)
	require.Equal(t, 1, conn.statsCalls)
}

func TestSamplerTick(t *testing.T) {
	clock := &timesrc.TestSource{}
	conn := newStubConn(1, "127.0.0.1")

	emitted := 0

	sampler := NewSampler(clock, 5*time.Second, func(s Statistics) {
		emitted++
	})

	for i := 0; i < 100; i++ {
		clock.Advance(100 * time.Millisecond)
		sampler.Tick(conn)
	}

	// 10 seconds with a packet every 100ms
	require.Equal(t, 2, emitted)
	require.Equal(t, 2, conn.statsCalls)
}

func TestSamplerTickGrid(t *testing.T) {
	clock := &timesrc.TestSource{}
	conn := newStubConn(1, "127.0.0.1")

	start := clock.Now()
	samples := []time.Duration{}

	sampler := NewSampler(clock, time.Second, func(s Statistics) {
		samples = append(samples, s.Time.Sub(start))
	})

	// A tick every 700ms drifts off the grid if the next interval
	// started at the last sample.
	for i := 0; i < 10; i++ {
		clock.Advance(700 * time.Millisecond)
		sampler.Tick(conn)
	}

	require.Equal(t, []time.Duration{
		1400 * time.Millisecond,
		2100 * time.Millisecond,
		3500 * time.Millisecond,
		4200 * time.Millisecond,
		5600 * time.Millisecond,
		6300 * time.Millisecond,
		7000 * time.Millisecond,
	}, samples)

	// Sparse traffic skips the missed intervals.
	clock.Advance(3500 * time.Millisecond)
	require.True(t, sampler.Tick(conn))

	clock.Advance(400 * time.Millisecond)
	require.False(t, sampler.Tick(conn))

	clock.Advance(100 * time.Millisecond)
	require.True(t, sampler.Tick(conn))
}
