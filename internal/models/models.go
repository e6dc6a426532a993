package models

import (
	"image"
	"time"
)

// Frame is a raster image sampled from a video.
type Frame struct {
	Index  int           // sequence index, strictly increasing in temporal order
	Offset time.Duration // sample time offset from the start of the video
	Image  image.Image
}

// CuratedFrame is an encoded frame that survived curation.
type CuratedFrame struct {
	Index  int           `json:"index"`
	Offset time.Duration `json:"offset"`
	Data   []byte        `json:"-"`
}

// CurationResult is the ordered output of one curation run.
type CurationResult struct {
	RunID   string
	Locator string
	Frames  []CuratedFrame
	Err     error
}

// Empty reports whether the run produced no usable frames.
func (r CurationResult) Empty() bool {
	return len(r.Frames) == 0
}

// WorkItem represents a curated frame to be analyzed
type WorkItem struct {
	Frame    CuratedFrame
	Path     string
	FrameNum int
	Total    int
}

// AnalysisResult represents the result of analyzing a frame
type AnalysisResult struct {
	Frame   string  `json:"frame"`
	Index   int     `json:"index"`
	Offset  float64 `json:"offset_seconds"`
	Content string  `json:"content"`
}

// FrameSearchResult is a stored frame ranked by visual similarity.
type FrameSearchResult struct {
	VideoName   string
	FrameNumber int
	FramePath   string
	Description string
	Similarity  float64
}
