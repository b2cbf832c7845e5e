package assessment

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kompas",
		Subsystem: "assessment",
		Name:      "runs_total",
		Help:      "Number of assessment runs by outcome",
	}, []string{"outcome"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "kompas",
		Subsystem: "assessment",
		Name:      "run_duration_seconds",
		Help:      "Wall-clock duration of assessment runs",
		Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 80, 160},
	})

	questionVerdicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kompas",
		Subsystem: "assessment",
		Name:      "question_verdicts_total",
		Help:      "Terminal question verdicts by kind",
	}, []string{"verdict"})

	cacheEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kompas",
		Subsystem: "assessment",
		Name:      "cache_events_total",
		Help:      "Answer cache lookups by result",
	}, []string{"result"})

	synthesisFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "kompas",
		Subsystem: "assessment",
		Name:      "synthesis_failures_total",
		Help:      "Number of synthesis calls that exhausted their retry budget",
	})
)
