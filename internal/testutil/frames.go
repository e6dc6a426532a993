// Package testutil renders deterministic synthetic rasters for pipeline tests.
package testutil

import (
	"image"
	"image/color"
	"log/slog"
	"math/rand"
	"time"
)

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// Noise returns a grayscale image of seeded random intensities. It scores as sharp.
func Noise(w, h int, seed int64) *image.Gray {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.Intn(256))
	}
	return img
}

// Split returns an RGBA image that is white on one half and black on the other.
// vertical splits into left/right halves, otherwise top/bottom.
func Split(w, h int, vertical bool) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{A: 255}
			if (vertical && x < w/2) || (!vertical && y < h/2) {
				c = color.RGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// Ramp returns a smooth linear gradient. It has almost no edge energy and
// scores as blurred.
func Ramp(w, h int, horizontal bool) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			pos, span := y, h-1
			if horizontal {
				pos, span = x, w-1
			}
			img.SetGray(x, y, color.Gray{Y: uint8(pos * 255 / span)})
		}
	}
	return img
}

// Uniform returns a single-intensity image.
func Uniform(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

// Seconds converts a whole number of seconds to a duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
