// Package sharpness scores frames for blur and drops soft-focus ones.
package sharpness

import (
	"image"
	"image/draw"

	"golang.org/x/sync/errgroup"

	"github.com/redeyefit/fieldvision/internal/models"
)

// Score returns the population variance of the absolute 4-neighbour
// Laplacian over the interior pixels of img's grayscale conversion.
// Images without interior pixels score 0.
func Score(img image.Image) float64 {
	gray := toGray(img)
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 3 || h < 3 {
		return 0
	}

	n := (w - 2) * (h - 2)
	laplacian := make([]float64, 0, n)
	var sum float64
	for y := 1; y < h-1; y++ {
		row := y * gray.Stride
		for x := 1; x < w-1; x++ {
			i := row + x
			l := 4*int(gray.Pix[i]) -
				int(gray.Pix[i-gray.Stride]) -
				int(gray.Pix[i+gray.Stride]) -
				int(gray.Pix[i-1]) -
				int(gray.Pix[i+1])
			if l < 0 {
				l = -l
			}
			laplacian = append(laplacian, float64(l))
			sum += float64(l)
		}
	}

	mean := sum / float64(n)
	var sq float64
	for _, l := range laplacian {
		d := l - mean
		sq += d * d
	}
	return sq / float64(n)
}

// Scores computes Score for every frame using up to workers goroutines.
// scores[i] belongs to frames[i].
func Scores(frames []models.Frame, workers int) []float64 {
	scores := make([]float64, len(frames))

	var g errgroup.Group
	g.SetLimit(max(workers, 1))
	for i, frame := range frames {
		g.Go(func() error {
			scores[i] = Score(frame.Image)
			return nil
		})
	}
	_ = g.Wait()

	return scores
}

// Filter keeps frames scoring above threshold, in order. If that would drop
// every frame, the input is returned unchanged and fellBack is true.
func Filter(frames []models.Frame, threshold float64, workers int) (kept []models.Frame, fellBack bool) {
	if len(frames) == 0 {
		return frames, false
	}

	scores := Scores(frames, workers)
	for i, frame := range frames {
		if scores[i] > threshold {
			kept = append(kept, frame)
		}
	}

	if len(kept) == 0 {
		return frames, true
	}
	return kept, false
}

// toGray returns img as an *image.Gray whose bounds start at the origin.
func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}
