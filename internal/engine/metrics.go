package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stressRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "glyphwheel_stress_runs_total",
		Help: "Stress operations by result (completed, refused)",
	}, []string{"result"})

	recoveryRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "glyphwheel_recovery_runs_total",
		Help: "Recovery operations run",
	})

	linksFormed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "glyphwheel_links_formed_total",
		Help: "Links recorded by link-formation sweeps",
	})

	deaths = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "glyphwheel_node_deaths_total",
		Help: "Nodes removed by lifecycle ticks, by reason",
	}, []string{"reason"})

	spawns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "glyphwheel_spawns_total",
		Help: "Nodes created autonomously",
	})

	entropyGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "glyphwheel_entropy",
		Help: "Entropy after the most recent operation",
	})

	coherenceGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "glyphwheel_coherence",
		Help: "Coherence after the most recent operation",
	})

	nodeGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "glyphwheel_nodes",
		Help: "Live nodes",
	})

	ghostGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "glyphwheel_ghosts",
		Help: "Ghost records retained",
	})

	opDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "glyphwheel_operation_duration_seconds",
		Help:    "Bulk operation latency",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
	}, []string{"operation"})
)
