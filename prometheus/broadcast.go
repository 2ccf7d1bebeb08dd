package prometheus

import (
	"net"

	"github.com/datarhei/srtrelay/srt"

	"github.com/prometheus/client_golang/prometheus"
)

// BroadcastReader is implemented by srt.Broadcaster.
type BroadcastReader interface {
	Addr() net.Addr
	Stats() srt.BroadcastStats
}

type broadcastCollector struct {
	instance string
	reader   BroadcastReader

	connectionsDesc *prometheus.Desc
	payloadsDesc    *prometheus.Desc
	sendsDesc       *prometheus.Desc
	bytesDesc       *prometheus.Desc
	sendErrorsDesc  *prometheus.Desc
	bitrateDesc     *prometheus.Desc
}

func NewBroadcastCollector(instance string, r BroadcastReader) prometheus.Collector {
	labels := []string{"instance", "endpoint"}

	return &broadcastCollector{
		instance: instance,
		reader:   r,
		connectionsDesc: prometheus.NewDesc(
			"srt_broadcast_connections",
			"Current number of connected SRT clients",
			labels, nil),
		payloadsDesc: prometheus.NewDesc(
			"srt_broadcast_payloads_total",
			"Total number of broadcasted payloads",
			labels, nil),
		sendsDesc: prometheus.NewDesc(
			"srt_broadcast_sends_total",
			"Total number of successful sends to clients",
			labels, nil),
		bytesDesc: prometheus.NewDesc(
			"srt_broadcast_bytes_total",
			"Total number of bytes sent to clients",
			labels, nil),
		sendErrorsDesc: prometheus.NewDesc(
			"srt_broadcast_send_errors_total",
			"Total number of failed sends to clients",
			labels, nil),
		bitrateDesc: prometheus.NewDesc(
			"srt_broadcast_bitrate_bps",
			"Average bitrate sent to all clients over the last 10 seconds",
			labels, nil),
	}
}

func (c *broadcastCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.connectionsDesc
	ch <- c.payloadsDesc
	ch <- c.sendsDesc
	ch <- c.bytesDesc
	ch <- c.sendErrorsDesc
	ch <- c.bitrateDesc
}

func (c *broadcastCollector) Collect(ch chan<- prometheus.Metric) {
	endpoint := ""
	if addr := c.reader.Addr(); addr != nil {
		endpoint = addr.String()
	}

	stats := c.reader.Stats()

	ch <- prometheus.MustNewConstMetric(c.connectionsDesc, prometheus.GaugeValue, float64(stats.Clients), c.instance, endpoint)
	ch <- prometheus.MustNewConstMetric(c.payloadsDesc, prometheus.CounterValue, float64(stats.Payloads), c.instance, endpoint)
	ch <- prometheus.MustNewConstMetric(c.sendsDesc, prometheus.CounterValue, float64(stats.Sends), c.instance, endpoint)
	ch <- prometheus.MustNewConstMetric(c.bytesDesc, prometheus.CounterValue, float64(stats.Bytes), c.instance, endpoint)
	ch <- prometheus.MustNewConstMetric(c.sendErrorsDesc, prometheus.CounterValue, float64(stats.SendErrors), c.instance, endpoint)
	ch <- prometheus.MustNewConstMetric(c.bitrateDesc, prometheus.GaugeValue, stats.Bitrate, c.instance, endpoint)
}
