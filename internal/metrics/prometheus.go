package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CurationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldvision_curations_total",
		Help: "Total number of curation runs, by outcome",
	}, []string{"outcome"})

	StageFramesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldvision_stage_frames_total",
		Help: "Frames emitted by each pipeline stage",
	}, []string{"stage"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fieldvision_stage_duration_seconds",
		Help:    "Duration of each pipeline stage",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	}, []string{"stage"})

	SharpnessFallbackTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fieldvision_sharpness_fallback_total",
		Help: "Runs where every frame scored as blurred and the unfiltered frames were kept",
	})

	FramesAnalyzedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldvision_frames_analyzed_total",
		Help: "Curated frames sent to visual analysis, by status",
	}, []string{"status"})
)
