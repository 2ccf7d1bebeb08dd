package relay

import (
	"testing"

	"github.com/datarhei/srtrelay/srt"

	"github.com/stretchr/testify/require"
)

type loop struct {
	stats srt.RelayStats
	last  *srt.Statistics
}

func (l *loop) Stats() srt.RelayStats {
	return l.stats
}

func (l *loop) LastStatistics() (srt.Statistics, bool) {
	if l.last == nil {
		return srt.Statistics{}, false
	}

	return *l.last, true
}

func TestStatusBroadcast(t *testing.T) {
	s := newStatus(ModeBroadcast)

	require.Equal(t, "broadcast", s.Mode())
	require.Empty(t, s.Clients())

	_, ok := s.Broadcast()
	require.False(t, ok)

	_, ok = s.Relay()
	require.False(t, ok)

	_, ok = s.LastStatistics()
	require.False(t, ok)
}

func TestStatusRelay(t *testing.T) {
	s := newStatus(ModeRecv)

	stats, ok := s.Relay()
	require.True(t, ok)
	require.Equal(t, "connecting", stats.State)

	_, ok = s.LastStatistics()
	require.False(t, ok)

	s.relay.set(&loop{
		stats: srt.RelayStats{State: "relaying", Packets: 12},
		last:  &srt.Statistics{MsRTT: 4.5},
	})

	stats, ok = s.Relay()
	require.True(t, ok)
	require.Equal(t, uint64(12), stats.Packets)

	last, ok := s.LastStatistics()
	require.True(t, ok)
	require.Equal(t, 4.5, last.MsRTT)

	require.Empty(t, s.Clients())
}
