package admin

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/neerajchowdary889/DMXP-MPMC"
)

// busCollector adapts a *dmxp.Bus's in-process Metrics into the
// prometheus.Collector interface. Counters and gauges are computed
// fresh on every Collect call straight from bus.Metrics.Snapshot, so
// there is no separate goroutine keeping a parallel set of counters
// in sync with the bus.
type busCollector struct {
	bus *dmxp.Bus

	sendOps       *prometheus.Desc
	sendBytes     *prometheus.Desc
	sendErrors    *prometheus.Desc
	fullEvents    *prometheus.Desc
	receiveOps    *prometheus.Desc
	receiveBytes  *prometheus.Desc
	receiveErrors *prometheus.Desc
	emptyEvents   *prometheus.Desc
	brokenPipe    *prometheus.Desc
	channelCount  *prometheus.Desc
}

func newBusCollector(bus *dmxp.Bus) *busCollector {
	return &busCollector{
		bus:           bus,
		sendOps:       prometheus.NewDesc("dmxp_send_ops_total", "Total send attempts, successful or not.", nil, nil),
		sendBytes:     prometheus.NewDesc("dmxp_send_bytes_total", "Total payload bytes across all send attempts.", nil, nil),
		sendErrors:    prometheus.NewDesc("dmxp_send_errors_total", "Total failed send operations.", nil, nil),
		fullEvents:    prometheus.NewDesc("dmxp_channel_full_total", "Total send attempts against a full channel.", nil, nil),
		receiveOps:    prometheus.NewDesc("dmxp_receive_ops_total", "Total receive attempts, including those that found the channel empty.", nil, nil),
		receiveBytes:  prometheus.NewDesc("dmxp_receive_bytes_total", "Total bytes received.", nil, nil),
		receiveErrors: prometheus.NewDesc("dmxp_receive_errors_total", "Total failed receive operations.", nil, nil),
		emptyEvents:   prometheus.NewDesc("dmxp_channel_empty_total", "Total receive attempts against an empty channel.", nil, nil),
		brokenPipe:    prometheus.NewDesc("dmxp_broken_pipe_total", "Total operations that observed no live counterpart.", nil, nil),
		channelCount:  prometheus.NewDesc("dmxp_channel_count", "Current number of channels allocated in the region.", nil, nil),
	}
}

func (c *busCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.sendOps
	ch <- c.sendBytes
	ch <- c.sendErrors
	ch <- c.fullEvents
	ch <- c.receiveOps
	ch <- c.receiveBytes
	ch <- c.receiveErrors
	ch <- c.emptyEvents
	ch <- c.brokenPipe
	ch <- c.channelCount
}

func (c *busCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.bus.Metrics.Snapshot()
	ch <- prometheus.MustNewConstMetric(c.sendOps, prometheus.CounterValue, float64(snap.SendOps))
	ch <- prometheus.MustNewConstMetric(c.sendBytes, prometheus.CounterValue, float64(snap.SendBytes))
	ch <- prometheus.MustNewConstMetric(c.sendErrors, prometheus.CounterValue, float64(snap.SendErrors))
	ch <- prometheus.MustNewConstMetric(c.fullEvents, prometheus.CounterValue, float64(snap.FullEvents))
	ch <- prometheus.MustNewConstMetric(c.receiveOps, prometheus.CounterValue, float64(snap.ReceiveOps))
	ch <- prometheus.MustNewConstMetric(c.receiveBytes, prometheus.CounterValue, float64(snap.ReceiveBytes))
	ch <- prometheus.MustNewConstMetric(c.receiveErrors, prometheus.CounterValue, float64(snap.ReceiveErrors))
	ch <- prometheus.MustNewConstMetric(c.emptyEvents, prometheus.CounterValue, float64(snap.EmptyEvents))
	ch <- prometheus.MustNewConstMetric(c.brokenPipe, prometheus.CounterValue, float64(snap.BrokenPipeEvents))
	ch <- prometheus.MustNewConstMetric(c.channelCount, prometheus.GaugeValue, float64(c.bus.ChannelCount()))
}

// metricsHandler returns an http.Handler serving Prometheus exposition
// format for bus, using a private registry so multiple buses in the
// same process (as in tests) never collide on metric names.
func metricsHandler(bus *dmxp.Bus) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(newBusCollector(bus))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
