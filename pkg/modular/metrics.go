package modular

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 运行时指标，同时实现 Observer 和 StartObserver
type Metrics struct {
	resolves      *prometheus.CounterVec
	constructions *prometheus.HistogramVec
	startDuration *prometheus.GaugeVec
	startFailures *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		resolves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "neuralmail",
				Subsystem: "registry",
				Name:      "resolves_total",
				Help:      "Total number of service resolutions.",
			},
			[]string{"service", "result"},
		),
		constructions: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "neuralmail",
				Subsystem: "registry",
				Name:      "construct_duration_seconds",
				Help:      "Duration of service factory calls.",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
			[]string{"service", "scope"},
		),
		startDuration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "neuralmail",
				Subsystem: "module",
				Name:      "start_duration_seconds",
				Help:      "Duration of the last Start call per module.",
			},
			[]string{"module", "priority"},
		),
		startFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "neuralmail",
				Subsystem: "module",
				Name:      "start_failures_total",
				Help:      "Total number of failed module starts.",
			},
			[]string{"module"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.resolves, m.constructions, m.startDuration, m.startFailures)
	}
	return m
}

func (m *Metrics) OnResolve(key string, found bool) {
	result := "hit"
	if !found {
		result = "miss"
	}
	m.resolves.WithLabelValues(key, result).Inc()
}

func (m *Metrics) OnConstruct(key string, scope Scope, cost time.Duration) {
	m.constructions.WithLabelValues(key, scope.String()).Observe(cost.Seconds())
}

func (m *Metrics) OnModuleStarted(name string, priority Priority, cost time.Duration, err error) {
	m.startDuration.WithLabelValues(name, priority.String()).Set(cost.Seconds())
	if err != nil {
		m.startFailures.WithLabelValues(name).Inc()
	}
}

// Resolves 返回指定服务的解析计数器
func (m *Metrics) Resolves(key, result string) prometheus.Counter {
	return m.resolves.WithLabelValues(key, result)
}

func (m *Metrics) StartFailures(name string) prometheus.Counter {
	return m.startFailures.WithLabelValues(name)
}
