package curator

import "github.com/redeyefit/fieldvision/internal/models"

// Select returns the first maxFrames frames.
func Select(frames []models.Frame, maxFrames int) []models.Frame {
	if len(frames) <= maxFrames {
		return frames
	}
	return frames[:maxFrames]
}
