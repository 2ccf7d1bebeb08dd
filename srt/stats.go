package srt

import (
	"time"

	timesrc "github.com/datarhei/srtrelay/time"
)

// Statistics is a snapshot of the counters of a connection.
type Statistics struct {
	Time     time.Time     `json:"ts"`
	Interval time.Duration `json:"interval"` // time since the previous snapshot of the same connection

	MbpsBandwidth float64 `json:"bandwidth_mbps"` // estimated link capacity
	MbpsRecvRate  float64 `json:"recv_rate_mbps"`
	MbpsSendRate  float64 `json:"send_rate_mbps"`
	MsRTT         float64 `json:"rtt_ms"`

	PktRecvUnique uint64 `json:"pkt_recv_unique"`
	PktRecvLoss   uint64 `json:"pkt_recv_loss"`
	PktRecvDrop   uint64 `json:"pkt_recv_drop"`
	PktSendLoss   uint64 `json:"pkt_send_loss"`
	PktRetrans    uint64 `json:"pkt_retrans"`

	IntervalPktRecvUnique uint64 `json:"interval_pkt_recv_unique"`
	IntervalPktRecvLoss   uint64 `json:"interval_pkt_recv_loss"`

	ByteRecv uint64 `json:"byte_recv"`
	ByteSent uint64 `json:"byte_sent"`
}

// StatsReader is anything that provides connection statistics.
type StatsReader interface {
	Stats() Statistics
}

// MaybeSample returns a snapshot of conn if at least interval has passed
// between last and now. Otherwise conn is not touched and false is returned.
func MaybeSample(conn StatsReader, last, now time.Time, interval time.Duration) (Statistics, bool) {
	if now.Sub(last) < interval {
		return Statistics{}, false
	}

	s := conn.Stats()
	s.Time = now

	return s, true
}

// Sampler emits a snapshot of a connection at most once per interval.
type Sampler struct {
	clock    timesrc.Source
	interval time.Duration
	last     time.Time
	emit     func(Statistics)
}

// NewSampler returns a sampler whose first interval starts now.
func NewSampler(clock timesrc.Source, interval time.Duration, emit func(Statistics)) *Sampler {
	return &Sampler{
		clock:    clock,
		interval: interval,
		last:     clock.Now(),
		emit:     emit,
	}
}

// Tick samples conn if the interval has passed since the last sample. Samples
// are due at whole multiples of the interval after the sampler was created.
func (s *Sampler) Tick(conn StatsReader) bool {
	now := s.clock.Now()

	stats, ok := MaybeSample(conn, s.last, now, s.interval)
	if !ok {
		return false
	}

	// Stay on the interval grid, skipping the intervals without a tick.
	if s.interval > 0 {
		s.last = s.last.Add(now.Sub(s.last) / s.interval * s.interval)
	} else {
		s.last = now
	}

	if s.emit != nil {
		s.emit(stats)
	}

	return true
}
