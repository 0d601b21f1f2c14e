// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Total number of pipeline runs by final status",
		},
		[]string{"status"},
	)

	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "pipeline_stage_duration_seconds",
			Help: "Duration of each pipeline stage in seconds",
		},
		[]string{"stage"},
	)

	PipelineStageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_stage_errors_total",
			Help: "Total number of stage-level errors by error code",
		},
		[]string{"stage", "error_code"},
	)

	ScoringJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoring_jobs_total",
			Help: "Total number of jobs processed by the match loop",
		},
		[]string{"outcome"},
	)

	ScoringDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "scoring_duration_seconds",
			Help: "Duration of scoring a single job in seconds",
		},
	)

	IndexRebuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "index_rebuilds_total",
			Help: "Total number of embedding index rebuilds",
		},
		[]string{"result"},
	)

	RunsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_runs_active",
			Help: "Number of pipeline runs currently in flight",
		},
	)
)
