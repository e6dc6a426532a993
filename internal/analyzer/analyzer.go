package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/redeyefit/fieldvision/internal/metrics"
	"github.com/redeyefit/fieldvision/internal/models"
	"github.com/redeyefit/fieldvision/internal/storage"
)

const prompt = "What work is shown in this jobsite frame? Identify the trade, the visible materials and equipment, and estimate how complete the work appears. Be specific."

// Tagger describes a single curated frame.
type Tagger interface {
	Describe(ctx context.Context, item models.WorkItem) (string, error)
}

// Processor sends curated frames to a Tagger with a bounded worker pool and
// stores one result per frame.
type Processor struct {
	tagger  Tagger
	storage storage.Storage
	workers int
	logger  *slog.Logger
}

func NewProcessor(tagger Tagger, storage storage.Storage, workers int, logger *slog.Logger) *Processor {
	if workers <= 0 {
		workers = 4
	}
	return &Processor{
		tagger:  tagger,
		storage: storage,
		workers: workers,
		logger:  logger,
	}
}

// ProcessFrames analyzes frames; paths[i] is where frames[i] was stored.
// Failed frames do not stop the others; their errors are joined into the
// returned error once every frame has been attempted.
func (p *Processor) ProcessFrames(ctx context.Context, frames []models.CuratedFrame, paths []string) error {
	if len(frames) != len(paths) {
		return fmt.Errorf("got %d frames but %d paths", len(frames), len(paths))
	}
	if len(frames) == 0 {
		return nil
	}

	workChan := make(chan models.WorkItem, len(frames))
	resultsChan := make(chan models.AnalysisResult, len(frames))
	errorsChan := make(chan error, len(frames))

	var wg sync.WaitGroup

	remainingFrames := atomic.Int64{}
	remainingFrames.Store(int64(len(frames)))

	// Start worker pool
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for work := range workChan {
				analysis, err := p.tagger.Describe(ctx, work)
				if err != nil {
					metrics.FramesAnalyzedTotal.WithLabelValues("failed").Inc()
					errorsChan <- fmt.Errorf("frame %d/%d failed: %w", work.FrameNum, work.Total, err)
					continue
				}
				metrics.FramesAnalyzedTotal.WithLabelValues("ok").Inc()

				resultsChan <- models.AnalysisResult{
					Frame:   storage.FrameName(work.Frame),
					Index:   work.Frame.Index,
					Offset:  work.Frame.Offset.Seconds(),
					Content: analysis,
				}

				remaining := remainingFrames.Add(-1)
				p.logger.Debug("frame analyzed", "index", work.Frame.Index, "remaining", remaining)
			}
		}()
	}

	// Send work to workers
	for i, frame := range frames {
		workChan <- models.WorkItem{
			Frame:    frame,
			Path:     paths[i],
			FrameNum: i + 1,
			Total:    len(frames),
		}
	}
	close(workChan)

	// Collect results
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for result := range resultsChan {
			if err := p.storage.AddResult(ctx, result); err != nil {
				errorsChan <- fmt.Errorf("frame %s not stored: %w", result.Frame, err)
			}
		}
	}()

	// Wait for all workers to finish
	wg.Wait()
	close(resultsChan)
	<-collected
	close(errorsChan)

	// Flush any remaining results
	if err := p.storage.Flush(); err != nil {
		return fmt.Errorf("failed to flush final results: %w", err)
	}

	// Check for any errors
	var errorMessages []string
	for err := range errorsChan {
		errorMessages = append(errorMessages, err.Error())
	}
	if len(errorMessages) > 0 {
		return fmt.Errorf("encountered errors during processing: %v", strings.Join(errorMessages, "; "))
	}

	return nil
}
