package prometheus

import (
	"github.com/datarhei/srtrelay/srt"

	"github.com/prometheus/client_golang/prometheus"
)

// RelayReader provides the counters of a relay loop and its most recent
// connection statistics, if there are any yet.
type RelayReader interface {
	Stats() srt.RelayStats
	LastStatistics() (srt.Statistics, bool)
}

type relayCollector struct {
	instance  string
	direction string
	reader    RelayReader

	stateDesc     *prometheus.Desc
	packetsDesc   *prometheus.Desc
	bytesDesc     *prometheus.Desc
	bitrateDesc   *prometheus.Desc
	bandwidthDesc *prometheus.Desc
	recvDesc      *prometheus.Desc
	lossDesc      *prometheus.Desc
	retransDesc   *prometheus.Desc
	rttDesc       *prometheus.Desc
}

// NewRelayCollector exposes a relay loop. direction is either "ingest" or "egress".
func NewRelayCollector(instance, direction string, r RelayReader) prometheus.Collector {
	labels := []string{"instance", "direction"}

	return &relayCollector{
		instance:  instance,
		direction: direction,
		reader:    r,
		stateDesc: prometheus.NewDesc(
			"srt_relay_state",
			"State of the relay, 1 for the current state",
			[]string{"instance", "direction", "state"}, nil),
		packetsDesc: prometheus.NewDesc(
			"srt_relay_packets_total",
			"Total number of relayed packets",
			labels, nil),
		bytesDesc: prometheus.NewDesc(
			"srt_relay_bytes_total",
			"Total number of relayed bytes",
			labels, nil),
		bitrateDesc: prometheus.NewDesc(
			"srt_relay_bitrate_bps",
			"Average relayed bitrate over the last 10 seconds",
			labels, nil),
		bandwidthDesc: prometheus.NewDesc(
			"srt_relay_bandwidth_mbps",
			"Estimated link capacity of the SRT connection",
			labels, nil),
		recvDesc: prometheus.NewDesc(
			"srt_relay_recv_unique_packets_total",
			"Total number of unique packets received on the SRT connection",
			labels, nil),
		lossDesc: prometheus.NewDesc(
			"srt_relay_recv_loss_packets_total",
			"Total number of packets lost on the SRT connection",
			labels, nil),
		retransDesc: prometheus.NewDesc(
			"srt_relay_retrans_packets_total",
			"Total number of retransmitted packets on the SRT connection",
			labels, nil),
		rttDesc: prometheus.NewDesc(
			"srt_relay_rtt_ms",
			"Smoothed round trip time of the SRT connection",
			labels, nil),
	}
}

func (c *relayCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.stateDesc
	ch <- c.packetsDesc
	ch <- c.bytesDesc
	ch <- c.bitrateDesc
	ch <- c.bandwidthDesc
	ch <- c.recvDesc
	ch <- c.lossDesc
	ch <- c.retransDesc
	ch <- c.rttDesc
}

func (c *relayCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.reader.Stats()

	for _, state := range []srt.State{srt.StateConnecting, srt.StateRelaying, srt.StateClosed} {
		value := 0.0
		if state.String() == stats.State {
			value = 1
		}

		ch <- prometheus.MustNewConstMetric(c.stateDesc, prometheus.GaugeValue, value, c.instance, c.direction, state.String())
	}

	ch <- prometheus.MustNewConstMetric(c.packetsDesc, prometheus.CounterValue, float64(stats.Packets), c.instance, c.direction)
	ch <- prometheus.MustNewConstMetric(c.bytesDesc, prometheus.CounterValue, float64(stats.Bytes), c.instance, c.direction)
	ch <- prometheus.MustNewConstMetric(c.bitrateDesc, prometheus.GaugeValue, stats.Bitrate, c.instance, c.direction)

	s, ok := c.reader.LastStatistics()
	if !ok {
		return
	}

	ch <- prometheus.MustNewConstMetric(c.bandwidthDesc, prometheus.GaugeValue, s.MbpsBandwidth, c.instance, c.direction)
	ch <- prometheus.MustNewConstMetric(c.recvDesc, prometheus.CounterValue, float64(s.PktRecvUnique), c.instance, c.direction)
	ch <- prometheus.MustNewConstMetric(c.lossDesc, prometheus.CounterValue, float64(s.PktRecvLoss), c.instance, c.direction)
	ch <- prometheus.MustNewConstMetric(c.retransDesc, prometheus.CounterValue, float64(s.PktRetrans), c.instance, c.direction)
	ch <- prometheus.MustNewConstMetric(c.rttDesc, prometheus.GaugeValue, s.MsRTT, c.instance, c.direction)
}
