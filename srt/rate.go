package srt

import (
	"time"

	"github.com/prep/average"
)

const (
	rateWindow      = 10 * time.Second
	rateGranularity = time.Second
)

// RateMeter measures a bitrate over a sliding window.
type RateMeter struct {
	window *average.SlidingWindow
}

func NewRateMeter() *RateMeter {
	return &RateMeter{
		window: average.MustNew(rateWindow, rateGranularity),
	}
}

// Add accounts n bytes.
func (r *RateMeter) Add(n int) {
	r.window.Add(int64(n) * 8)
}

// Bitrate returns the average bits per second over the window.
func (r *RateMeter) Bitrate() float64 {
	return r.window.Average(rateWindow) / rateGranularity.Seconds()
}

func (r *RateMeter) Stop() {
	r.window.Stop()
}
