package extractor

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"
)

// FrameSource renders the frame visible at offset.
type FrameSource func(offset time.Duration) (image.Image, error)

// SyntheticVideo is an in-memory video.
type SyntheticVideo struct {
	Duration time.Duration
	Source   FrameSource
}

// SyntheticDecoder serves in-memory videos keyed by locator. It records how
// many handles are still open so callers can check that every handle is released.
type SyntheticDecoder struct {
	mu     sync.Mutex
	videos map[string]SyntheticVideo
	open   int
}

// NewSyntheticDecoder creates an empty decoder.
func NewSyntheticDecoder() *SyntheticDecoder {
	return &SyntheticDecoder{videos: make(map[string]SyntheticVideo)}
}

// Add registers a video under locator.
func (d *SyntheticDecoder) Add(locator string, video SyntheticVideo) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.videos[locator] = video
}

// OpenHandles returns the number of handles not yet closed.
func (d *SyntheticDecoder) OpenHandles() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

func (d *SyntheticDecoder) Open(ctx context.Context, locator string) (VideoHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	video, ok := d.videos[locator]
	if !ok {
		return nil, fmt.Errorf("unknown video %q", locator)
	}
	d.open++
	return &syntheticHandle{decoder: d, video: video}, nil
}

type syntheticHandle struct {
	decoder *SyntheticDecoder
	video   SyntheticVideo
	closed  bool
}

func (h *syntheticHandle) Duration() time.Duration {
	return h.video.Duration
}

func (h *syntheticHandle) FrameAt(ctx context.Context, offset time.Duration) (image.Image, error) {
	if offset < 0 || offset >= h.video.Duration {
		return nil, fmt.Errorf("offset %s out of range", offset)
	}
	return h.video.Source(offset)
}

func (h *syntheticHandle) Close() error {
	h.decoder.mu.Lock()
	defer h.decoder.mu.Unlock()
	if !h.closed {
		h.closed = true
		h.decoder.open--
	}
	return nil
}
