package ddcstats

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes a Registry's counters as Prometheus metrics — a
// read-only view over the same numbers Report returns, grounded on the
// pattern sockstats uses to scrape kernel socket counters with
// client_golang: one Collector wrapping an existing in-memory source of
// truth rather than prometheus owning the state.
type Collector struct {
	registry *Registry

	fatalDesc    *prometheus.Desc
	exhaustDesc  *prometheus.Desc
	successDesc  *prometheus.Desc
	maxTriesDesc *prometheus.Desc
}

// NewCollector wraps registry for Prometheus registration, e.g.
// prometheus.MustRegister(ddcstats.NewCollector(ddcstats.Default)).
func NewCollector(registry *Registry) *Collector {
	return &Collector{
		registry: registry,
		fatalDesc: prometheus.NewDesc(
			"ddc_exchange_fatal_total", "Operations that failed with a terminal, non-retried outcome.",
			[]string{"class"}, nil),
		exhaustDesc: prometheus.NewDesc(
			"ddc_exchange_retries_exceeded_total", "Operations that exhausted their retry budget.",
			[]string{"class"}, nil),
		successDesc: prometheus.NewDesc(
			"ddc_exchange_success_total", "Operations that succeeded, labeled by the attempt number that succeeded.",
			[]string{"class", "tries"}, nil),
		maxTriesDesc: prometheus.NewDesc(
			"ddc_exchange_max_tries", "Configured max_tries for this operation class.",
			[]string{"class"}, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.fatalDesc
	ch <- c.exhaustDesc
	ch <- c.successDesc
	ch <- c.maxTriesDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for class := Class(0); class < numClasses; class++ {
		snap := c.registry.Report(class, 0)
		label := class.String()

		ch <- prometheus.MustNewConstMetric(c.fatalDesc, prometheus.CounterValue, float64(snap.Fatal), label)
		ch <- prometheus.MustNewConstMetric(c.exhaustDesc, prometheus.CounterValue, float64(snap.RetriesExceeded), label)
		ch <- prometheus.MustNewConstMetric(c.maxTriesDesc, prometheus.GaugeValue, float64(snap.MaxTries), label)

		for tries := 1; tries < len(snap.SuccessesByTries); tries++ {
			if snap.SuccessesByTries[tries] == 0 {
				continue
			}
			ch <- prometheus.MustNewConstMetric(c.successDesc, prometheus.CounterValue,
				float64(snap.SuccessesByTries[tries]), label, strconv.Itoa(tries))
		}
	}
}
