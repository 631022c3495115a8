package metrics

import (
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
)

// Collector exposes a Registry to Prometheus. Counters map to counters,
// gauges to gauges and histograms to summaries without quantiles.
type Collector struct {
	reg       *Registry
	namespace string
}

// NewCollector returns a Collector for reg. Metric names are prefixed with
// namespace and have dots replaced by underscores.
func NewCollector(reg *Registry, namespace string) *Collector {
	return &Collector{reg: reg, namespace: namespace}
}

// Describe implements prometheus.Collector. The metric set grows at runtime,
// so descriptors are derived from a collection pass.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(c, ch)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.reg.mu.RLock()
	defer c.reg.mu.RUnlock()

	for name, m := range c.reg.counters {
		ch <- prometheus.MustNewConstMetric(c.desc(name), prometheus.CounterValue, float64(m.Value()))
	}
	for name, m := range c.reg.gauges {
		ch <- prometheus.MustNewConstMetric(c.desc(name), prometheus.GaugeValue, float64(m.Value()))
	}
	for name, m := range c.reg.histograms {
		s := m.Snapshot()
		ch <- prometheus.MustNewConstSummary(c.desc(name), uint64(s.Count), s.Sum, nil)
	}
}

func (c *Collector) desc(name string) *prometheus.Desc {
	fq := prometheus.BuildFQName(c.namespace, "", strings.NewReplacer(".", "_", "-", "_").Replace(name))
	return prometheus.NewDesc(fq, name, nil, nil)
}

// Gatherer returns a Prometheus registry holding only a Collector for reg.
func Gatherer(reg *Registry, namespace string) *prometheus.Registry {
	pr := prometheus.NewRegistry()
	pr.MustRegister(NewCollector(reg, namespace))
	return pr
}

// Handler serves reg in the Prometheus exposition format.
func Handler(reg *Registry, namespace string) http.Handler {
	return promhttp.HandlerFor(Gatherer(reg, namespace), promhttp.HandlerOpts{})
}

// WriteText writes reg in the Prometheus text format, sorted by name.
func WriteText(w io.Writer, reg *Registry, namespace string) error {
	families, err := Gatherer(reg, namespace).Gather()
	if err != nil {
		return err
	}
	sort.Slice(families, func(i, j int) bool { return families[i].GetName() < families[j].GetName() })
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
