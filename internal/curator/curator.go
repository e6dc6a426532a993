// Package curator turns a video into a small, sharp, non-redundant set of
// encoded still frames.
//
// A run is strictly staged: extract, filter by sharpness, deduplicate,
// select, encode. Each stage consumes the full output of the previous one.
// Runs share no mutable state, so any number may proceed concurrently.
package curator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/redeyefit/fieldvision/internal/dedup"
	"github.com/redeyefit/fieldvision/internal/extractor"
	"github.com/redeyefit/fieldvision/internal/metrics"
	"github.com/redeyefit/fieldvision/internal/models"
	"github.com/redeyefit/fieldvision/internal/sharpness"
)

// Curator runs the frame curation pipeline.
type Curator struct {
	opts      Options
	extractor *extractor.Extractor
	encoder   ImageEncoder
	logger    *slog.Logger
}

// New validates opts and creates a Curator.
func New(decoder extractor.VideoDecoder, encoder ImageEncoder, opts Options, logger *slog.Logger) (*Curator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if decoder == nil || encoder == nil {
		return nil, fmt.Errorf("%w: decoder and encoder are required", ErrInvalidConfig)
	}

	return &Curator{
		opts:      opts,
		extractor: extractor.New(decoder, opts.SampleInterval, logger),
		encoder:   encoder,
		logger:    logger,
	}, nil
}

// Curate runs the pipeline for locator on a background goroutine. The
// returned channel yields exactly one result and is then closed.
//
// A result with no frames and a nil Err means the video had no usable
// frames. Cancelling ctx stops the run at the next stage boundary; the
// result then carries the context error.
func (c *Curator) Curate(ctx context.Context, locator string) <-chan models.CurationResult {
	resultChan := make(chan models.CurationResult, 1)

	go func() {
		defer close(resultChan)
		resultChan <- c.run(ctx, locator)
	}()

	return resultChan
}

func (c *Curator) run(ctx context.Context, locator string) models.CurationResult {
	result := models.CurationResult{
		RunID:   uuid.NewString(),
		Locator: locator,
	}
	logger := c.logger.With("run_id", result.RunID, "video", locator)
	start := time.Now()

	cancelled := func(stage string) bool {
		if err := ctx.Err(); err != nil {
			logger.Info("curation cancelled", "before", stage, "error", err)
			metrics.CurationsTotal.WithLabelValues("cancelled").Inc()
			result.Err = err
			return true
		}
		return false
	}

	if cancelled("extract") {
		return result
	}
	frames := timed("extract", func() []models.Frame {
		return c.extractor.ExtractFrames(ctx, locator)
	})
	extracted := len(frames)

	if cancelled("sharpness") {
		return result
	}
	frames = timed("sharpness", func() []models.Frame {
		kept, fellBack := sharpness.Filter(frames, c.opts.SharpnessThreshold, c.opts.Workers)
		if fellBack {
			metrics.SharpnessFallbackTotal.Inc()
			logger.Info("all frames scored as blurred, keeping unfiltered frames",
				"frames", len(kept), "threshold", c.opts.SharpnessThreshold)
		}
		return kept
	})
	sharp := len(frames)

	if cancelled("dedup") {
		return result
	}
	frames = timed("dedup", func() []models.Frame {
		return dedup.Deduplicate(frames, c.opts.DedupThreshold, c.opts.Workers)
	})
	unique := len(frames)

	if cancelled("select") {
		return result
	}
	frames = timed("select", func() []models.Frame {
		return Select(frames, c.opts.MaxFrames)
	})

	if cancelled("encode") {
		return result
	}
	encodeStart := time.Now()
	result.Frames = EncodeFrames(frames, c.encoder, c.opts.EncodeQuality, logger)
	metrics.StageDuration.WithLabelValues("encode").Observe(time.Since(encodeStart).Seconds())
	metrics.StageFramesTotal.WithLabelValues("encode").Add(float64(len(result.Frames)))

	outcome := "curated"
	if result.Empty() {
		outcome = "empty"
	}
	metrics.CurationsTotal.WithLabelValues(outcome).Inc()

	logger.Info("curation complete",
		"extracted", extracted,
		"sharp", sharp,
		"unique", unique,
		"delivered", len(result.Frames),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return result
}

func timed(stage string, fn func() []models.Frame) []models.Frame {
	start := time.Now()
	frames := fn()
	metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	metrics.StageFramesTotal.WithLabelValues(stage).Add(float64(len(frames)))
	return frames
}
