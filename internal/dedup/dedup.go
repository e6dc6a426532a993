package dedup

import (
	"golang.org/x/sync/errgroup"

	"github.com/redeyefit/fieldvision/internal/models"
)

// Signatures hashes every frame using up to workers goroutines.
func Signatures(frames []models.Frame, workers int) []Signature {
	sigs := make([]Signature, len(frames))

	var g errgroup.Group
	g.SetLimit(max(workers, 1))
	for i, frame := range frames {
		g.Go(func() error {
			sigs[i] = Hash(frame.Image)
			return nil
		})
	}
	_ = g.Wait()

	return sigs
}

// Deduplicate keeps the first frame, then every frame whose similarity to the
// most recently kept frame is below threshold. Order is preserved.
func Deduplicate(frames []models.Frame, threshold float64, workers int) []models.Frame {
	if len(frames) == 0 {
		return nil
	}

	sigs := Signatures(frames, workers)

	kept := []models.Frame{frames[0]}
	last := sigs[0]
	for i := 1; i < len(frames); i++ {
		if sigs[i].Similarity(last) >= threshold {
			continue
		}
		kept = append(kept, frames[i])
		last = sigs[i]
	}
	return kept
}
