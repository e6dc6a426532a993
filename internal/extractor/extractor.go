package extractor

import (
	"context"
	"image"
	"log/slog"
	"time"

	"github.com/redeyefit/fieldvision/internal/models"
)

// VideoDecoder opens a video source for random-access frame reads.
type VideoDecoder interface {
	Open(ctx context.Context, locator string) (VideoHandle, error)
}

// VideoHandle is an opened video. Callers must Close it when done.
type VideoHandle interface {
	Duration() time.Duration
	FrameAt(ctx context.Context, offset time.Duration) (image.Image, error)
	Close() error
}

// Extractor samples a video at fixed time intervals.
type Extractor struct {
	decoder  VideoDecoder
	interval time.Duration
	logger   *slog.Logger
}

// New creates an extractor. interval must be positive.
func New(decoder VideoDecoder, interval time.Duration, logger *slog.Logger) *Extractor {
	return &Extractor{
		decoder:  decoder,
		interval: interval,
		logger:   logger,
	}
}

// ExtractFrames requests a frame at every multiple of the interval below the
// video's duration. Samples that fail to decode are skipped. A video that
// cannot be opened, or has no duration, yields no frames.
func (e *Extractor) ExtractFrames(ctx context.Context, locator string) []models.Frame {
	handle, err := e.decoder.Open(ctx, locator)
	if err != nil {
		e.logger.Warn("failed to open video", "video", locator, "error", err)
		return nil
	}
	defer func() {
		if err := handle.Close(); err != nil {
			e.logger.Debug("failed to close video", "video", locator, "error", err)
		}
	}()

	duration := handle.Duration()
	if duration <= 0 {
		e.logger.Info("video has no duration", "video", locator)
		return nil
	}

	var frames []models.Frame
	for i := 0; ; i++ {
		offset := time.Duration(i) * e.interval
		if offset >= duration {
			break
		}

		img, err := handle.FrameAt(ctx, offset)
		if err != nil {
			e.logger.Debug("skipping sample", "video", locator, "offset", offset, "error", err)
			continue
		}

		frames = append(frames, models.Frame{
			Index:  i,
			Offset: offset,
			Image:  img,
		})
	}

	e.logger.Debug("extracted frames", "video", locator, "count", len(frames), "duration", duration)
	return frames
}
