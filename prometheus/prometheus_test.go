package prometheus

import (
	"io"
	"net"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/datarhei/srtrelay/srt"

	"github.com/stretchr/testify/require"
)

type broadcastReader struct{}

func (r *broadcastReader) Addr() net.Addr {
	return &net.UDPAddr{IP: net.IPv4zero, Port: 9000}
}

func (r *broadcastReader) Stats() srt.BroadcastStats {
	return srt.BroadcastStats{
		Clients:    3,
		Payloads:   10,
		Sends:      29,
		Bytes:      29 * 1316,
		SendErrors: 1,
	}
}

type relayReader struct {
	hasLast bool
}

func (r *relayReader) Stats() srt.RelayStats {
	return srt.RelayStats{
		State:   srt.StateRelaying.String(),
		Packets: 42,
		Bytes:   42 * 188,
	}
}

func (r *relayReader) LastStatistics() (srt.Statistics, bool) {
	return srt.Statistics{
		MbpsBandwidth: 12.5,
		PktRecvUnique: 40,
		PktRecvLoss:   2,
		MsRTT:         3.5,
	}, r.hasLast
}

func scrape(t *testing.T, m Metrics) string {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)

	m.HTTPHandler().ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	return string(body)
}

func TestBroadcastCollector(t *testing.T) {
	m := New()

	err := m.Register(NewBroadcastCollector("relay1", &broadcastReader{}))
	require.NoError(t, err)

	body := scrape(t, m)

	require.Contains(t, body, `srt_broadcast_connections{endpoint="0.0.0.0:9000",instance="relay1"} 3`)
	require.Contains(t, body, `srt_broadcast_sends_total{endpoint="0.0.0.0:9000",instance="relay1"} 29`)
	require.Contains(t, body, `srt_broadcast_send_errors_total{endpoint="0.0.0.0:9000",instance="relay1"} 1`)
}

func TestRelayCollector(t *testing.T) {
	m := New()
	r := &relayReader{}

	err := m.Register(NewRelayCollector("relay1", "ingest", r))
	require.NoError(t, err)

	body := scrape(t, m)

	require.Contains(t, body, `srt_relay_state{direction="ingest",instance="relay1",state="relaying"} 1`)
	require.Contains(t, body, `srt_relay_state{direction="ingest",instance="relay1",state="closed"} 0`)
	require.Contains(t, body, `srt_relay_packets_total{direction="ingest",instance="relay1"} 42`)
	require.NotContains(t, body, "srt_relay_rtt_ms")

	r.hasLast = true

	body = scrape(t, m)

	require.Contains(t, body, `srt_relay_rtt_ms{direction="ingest",instance="relay1"} 3.5`)
	require.Contains(t, body, `srt_relay_recv_loss_packets_total{direction="ingest",instance="relay1"} 2`)
}

func TestUnregisterAll(t *testing.T) {
	m := New()

	require.NoError(t, m.Register(NewUptimeCollector("relay1", time.Now().Add(-time.Minute))))
	require.Contains(t, scrape(t, m), `uptime_seconds{instance="relay1"}`)

	m.UnregisterAll()
	require.NotContains(t, scrape(t, m), "uptime_seconds")
}
