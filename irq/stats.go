package irq

import "github.com/prometheus/client_golang/prometheus"

// Stats mirrors the spec §2 "glue: statistics" component as Prometheus
// collectors. The descriptor's count/spurious_count fields remain the
// source of truth (Desc.Count, Desc.SpuriousCount); these are additive
// instrumentation over them, keyed by domain name rather than by virq
// so cardinality stays bounded regardless of how many virqs a kernel
// allocates over its lifetime.
type Stats struct {
	mappingsCreated  prometheus.Counter
	mappingsDisposed prometheus.Counter
	dispatches       *prometheus.CounterVec
	spurious         *prometheus.CounterVec
	domainsLive      prometheus.Gauge
}

func newStats() *Stats {
	return &Stats{
		mappingsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "irq",
			Name:      "mappings_created_total",
			Help:      "Number of hwirq-to-virq mappings created across all domains.",
		}),
		mappingsDisposed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "irq",
			Name:      "mappings_disposed_total",
			Help:      "Number of hwirq-to-virq mappings disposed across all domains.",
		}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "irq",
			Name:      "dispatches_total",
			Help:      "Number of completed handler-chain dispatches, by domain.",
		}, []string{"domain"}),
		spurious: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "irq",
			Name:      "spurious_total",
			Help:      "Number of dispatches that found no live mapping or a disabled descriptor, by domain.",
		}, []string{"domain"}),
		domainsLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "irq",
			Name:      "domains_live",
			Help:      "Number of currently registered domains.",
		}),
	}
}

// Register attaches every collector to reg. Callers that don't want
// Prometheus exposition (e.g. unit tests) simply never call this.
func (s *Stats) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{s.mappingsCreated, s.mappingsDisposed, s.dispatches, s.spurious, s.domainsLive} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stats) mappingCreated(domain string) {
	s.mappingsCreated.Inc()
	_ = domain
}

func (s *Stats) mappingDisposed(domain string) {
	s.mappingsDisposed.Inc()
	_ = domain
}

func (s *Stats) dispatched(domain string) {
	s.dispatches.WithLabelValues(domain).Inc()
}

func (s *Stats) spuriousHit(domain string) {
	s.spurious.WithLabelValues(domain).Inc()
}

func (s *Stats) setDomainsLive(n int) {
	s.domainsLive.Set(float64(n))
}
