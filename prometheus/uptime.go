package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type uptimeCollector struct {
	instance string
	start    time.Time
	now      func() time.Time

	uptimeDesc *prometheus.Desc
}

func NewUptimeCollector(instance string, start time.Time) prometheus.Collector {
	return &uptimeCollector{
		instance: instance,
		start:    start,
		now:      time.Now,
		uptimeDesc: prometheus.NewDesc(
			"uptime_seconds",
			"Number of seconds the relay is up",
			[]string{"instance"}, nil),
	}
}

func (c *uptimeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.uptimeDesc
}

func (c *uptimeCollector) Collect(ch chan<- prometheus.Metric) {
	uptime := c.now().Sub(c.start).Seconds()

	ch <- prometheus.MustNewConstMetric(c.uptimeDesc, prometheus.CounterValue, uptime, c.instance)
}
