package curator

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned by New for options that can never produce a valid run.
var ErrInvalidConfig = errors.New("invalid curator configuration")

// Options are the tuning knobs of the pipeline.
type Options struct {
	// SampleInterval is the time between extracted samples.
	SampleInterval time.Duration
	// SharpnessThreshold is the minimum Laplacian variance a frame must exceed.
	// Raising it rejects more soft-focus frames.
	SharpnessThreshold float64
	// DedupThreshold is the signature similarity at or above which a frame is a
	// duplicate of the last kept frame. Raising it keeps more frames.
	DedupThreshold float64
	// MaxFrames caps the number of frames delivered.
	MaxFrames int
	// EncodeQuality is the lossy encoding quality on a 0-1 scale.
	EncodeQuality float64
	// Workers bounds parallel per-frame scoring and hashing.
	Workers int
}

// DefaultOptions returns the reference configuration.
func DefaultOptions() Options {
	return Options{
		SampleInterval:     time.Second,
		SharpnessThreshold: 13.0,
		DedupThreshold:     0.90,
		MaxFrames:          20,
		EncodeQuality:      0.8,
		Workers:            4,
	}
}

// Validate reports misconfiguration as an error wrapping ErrInvalidConfig.
func (o Options) Validate() error {
	switch {
	case o.SampleInterval <= 0:
		return fmt.Errorf("%w: sample interval must be positive, got %s", ErrInvalidConfig, o.SampleInterval)
	case o.SharpnessThreshold < 0:
		return fmt.Errorf("%w: sharpness threshold must not be negative, got %g", ErrInvalidConfig, o.SharpnessThreshold)
	case o.DedupThreshold < 0 || o.DedupThreshold > 1:
		return fmt.Errorf("%w: dedup threshold must be within [0, 1], got %g", ErrInvalidConfig, o.DedupThreshold)
	case o.MaxFrames <= 0:
		return fmt.Errorf("%w: max frames must be positive, got %d", ErrInvalidConfig, o.MaxFrames)
	case o.EncodeQuality <= 0 || o.EncodeQuality > 1:
		return fmt.Errorf("%w: encode quality must be within (0, 1], got %g", ErrInvalidConfig, o.EncodeQuality)
	case o.Workers <= 0:
		return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidConfig, o.Workers)
	}
	return nil
}
