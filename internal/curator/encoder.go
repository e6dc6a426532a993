package curator

import (
	"bytes"
	"image"
	"image/jpeg"
	"log/slog"
	"math"

	"github.com/redeyefit/fieldvision/internal/models"
)

// ImageEncoder serializes a raster to a lossy still-image format.
// quality is on a 0-1 scale.
type ImageEncoder interface {
	Encode(img image.Image, quality float64) ([]byte, error)
}

// JPEGEncoder encodes baseline JPEG.
type JPEGEncoder struct{}

func (JPEGEncoder) Encode(img image.Image, quality float64) ([]byte, error) {
	q := int(math.Round(quality * 100))
	q = min(max(q, 1), 100)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeFrames encodes frames in order, dropping any that fail.
func EncodeFrames(frames []models.Frame, encoder ImageEncoder, quality float64, logger *slog.Logger) []models.CuratedFrame {
	curated := make([]models.CuratedFrame, 0, len(frames))
	for _, frame := range frames {
		data, err := encoder.Encode(frame.Image, quality)
		if err != nil {
			logger.Debug("dropping frame that failed to encode", "index", frame.Index, "error", err)
			continue
		}
		curated = append(curated, models.CuratedFrame{
			Index:  frame.Index,
			Offset: frame.Offset,
			Data:   data,
		})
	}
	return curated
}
