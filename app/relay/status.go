package relay

import (
	"sync"

	"github.com/datarhei/srtrelay/srt"
)

type relayLoop interface {
	Stats() srt.RelayStats
	LastStatistics() (srt.Statistics, bool)
}

// relayHolder refers to the relay loop of the current connection. Each
// reconnect replaces it.
type relayHolder struct {
	current relayLoop
	lock    sync.RWMutex
}

func (h *relayHolder) set(r relayLoop) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.current = r
}

func (h *relayHolder) Stats() srt.RelayStats {
	h.lock.RLock()
	defer h.lock.RUnlock()

	if h.current == nil {
		return srt.RelayStats{State: srt.StateConnecting.String()}
	}

	return h.current.Stats()
}

func (h *relayHolder) LastStatistics() (srt.Statistics, bool) {
	h.lock.RLock()
	defer h.lock.RUnlock()

	if h.current == nil {
		return srt.Statistics{}, false
	}

	return h.current.LastStatistics()
}

// status implements the view of the HTTP API. The broadcaster is set before
// the API is started and never changes.
type status struct {
	mode        Mode
	broadcaster *srt.Broadcaster
	relay       *relayHolder
}

func newStatus(mode Mode) *status {
	return &status{
		mode:  mode,
		relay: &relayHolder{},
	}
}

func (s *status) Mode() string {
	return string(s.mode)
}

func (s *status) Clients() []srt.Client {
	if s.broadcaster == nil {
		return []srt.Client{}
	}

	return s.broadcaster.Clients()
}

func (s *status) Broadcast() (srt.BroadcastStats, bool) {
	if s.broadcaster == nil {
		return srt.BroadcastStats{}, false
	}

	return s.broadcaster.Stats(), true
}

func (s *status) Relay() (srt.RelayStats, bool) {
	if s.mode == ModeBroadcast {
		return srt.RelayStats{}, false
	}

	return s.relay.Stats(), true
}

func (s *status) LastStatistics() (srt.Statistics, bool) {
	if s.mode == ModeBroadcast {
		return srt.Statistics{}, false
	}

	return s.relay.LastStatistics()
}
