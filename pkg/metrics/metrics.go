// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProviderCalls counts generation submissions by provider and outcome
	// (success, transient, permanent, credential, cancelled).
	ProviderCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reelforge",
		Subsystem: "provider",
		Name:      "calls_total",
		Help:      "Generation calls by provider and outcome.",
	}, []string{"provider", "outcome"})

	// ProviderLatency observes wall time from submit to downloaded artifact.
	ProviderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "reelforge",
		Subsystem: "provider",
		Name:      "generation_seconds",
		Help:      "Seconds from submission to downloaded artifact.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"provider"})

	// BudgetCommitted totals committed spend in USD by category.
	BudgetCommitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reelforge",
		Subsystem: "budget",
		Name:      "committed_usd_total",
		Help:      "Committed spend in USD by category.",
	}, []string{"category"})

	// BudgetDenied counts reservations refused for insufficient funds.
	BudgetDenied = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "reelforge",
		Subsystem: "budget",
		Name:      "denied_total",
		Help:      "Reservations denied for insufficient remaining budget.",
	})

	// PilotsFinished counts pilots by terminal status.
	PilotsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reelforge",
		Subsystem: "pilot",
		Name:      "finished_total",
		Help:      "Pilots finished by terminal status.",
	}, []string{"status"})

	// RunsFinished counts runs by terminal status.
	RunsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reelforge",
		Subsystem: "run",
		Name:      "finished_total",
		Help:      "Runs finished by terminal status.",
	}, []string{"status"})

	// QueueDepth tracks runs waiting for a worker.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "reelforge",
		Subsystem: "queue",
		Name:      "depth",
		Help:      "Runs waiting for a worker.",
	})

	// ScenesFailed counts scenes with no passing variation.
	ScenesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "reelforge",
		Subsystem: "scene",
		Name:      "failed_total",
		Help:      "Scenes where no variation passed the QA threshold.",
	})
)
