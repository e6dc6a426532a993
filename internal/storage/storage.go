package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/redeyefit/fieldvision/internal/models"
)

const batchSize = 10 // Number of results to batch write

// Storage defines the interface for storing analysis results
type Storage interface {
	// AddResult adds a single analysis result
	AddResult(ctx context.Context, result models.AnalysisResult) error

	// Flush ensures all pending results are saved
	Flush() error
}

// FrameStore persists the curated frames of one video and returns where
// each frame was written, in order.
type FrameStore interface {
	SaveFrames(ctx context.Context, frames []models.CuratedFrame) ([]string, error)
}

// FrameName is the file name a curated frame is stored under.
func FrameName(frame models.CuratedFrame) string {
	return fmt.Sprintf("frame_%04d.jpg", frame.Index)
}

// FileStorage writes frames and analysis results under outputDir/videoName.
// A FileStorage represents one run: its first write replaces whatever an
// earlier run left in the directory.
type FileStorage struct {
	results   []models.AnalysisResult
	mu        sync.Mutex
	written   bool
	outputDir string
	videoName string
}

// NewStorage creates a new storage manager
func NewStorage(outputDir, videoName string) *FileStorage {
	return &FileStorage{
		results:   []models.AnalysisResult{},
		outputDir: outputDir,
		videoName: videoName,
	}
}

// Dir is the directory this video's files are written to.
func (s *FileStorage) Dir() string {
	return filepath.Join(s.outputDir, s.videoName)
}

// SaveFrames writes every frame as a JPEG file and returns the file paths.
// Frames and results from a previous run of the same video are removed first.
func (s *FileStorage) SaveFrames(ctx context.Context, frames []models.CuratedFrame) ([]string, error) {
	if err := os.MkdirAll(s.Dir(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create frame directory '%s': %w", s.Dir(), err)
	}
	if err := s.clearPrevious(); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(frames))
	for _, frame := range frames {
		if err := ctx.Err(); err != nil {
			return paths, err
		}
		path := filepath.Join(s.Dir(), FrameName(frame))
		if err := os.WriteFile(path, frame.Data, 0644); err != nil {
			return paths, fmt.Errorf("failed to write frame '%s': %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// AddResult adds a result to the batch and flushes if the batch is full
func (s *FileStorage) AddResult(ctx context.Context, result models.AnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)

	// Write to disk when batch is full
	if len(s.results) >= batchSize {
		return s.flush()
	}
	return nil
}

// Flush writes all pending results to disk
func (s *FileStorage) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flush()
}

// ResultsPath is the JSON file analysis results are appended to.
func (s *FileStorage) ResultsPath() string {
	return filepath.Join(s.Dir(), "analysis_results.json")
}

func (s *FileStorage) clearPrevious() error {
	stale, err := filepath.Glob(filepath.Join(s.Dir(), "frame_*.jpg"))
	if err != nil {
		return err
	}
	stale = append(stale, s.ResultsPath())
	for _, path := range stale {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove '%s': %w", path, err)
		}
	}
	return nil
}

func (s *FileStorage) flush() error {
	if len(s.results) == 0 {
		return nil
	}

	resultsFilePath := s.ResultsPath()

	// Only batches from this run are merged; an older file is overwritten.
	var existingResults []models.AnalysisResult
	if s.written {
		data, err := os.ReadFile(resultsFilePath)
		if err != nil {
			return fmt.Errorf("failed to read existing results: %w", err)
		}
		if err := json.Unmarshal(data, &existingResults); err != nil {
			return fmt.Errorf("failed to unmarshal existing results: %w", err)
		}
	}

	allResults := append(existingResults, s.results...)

	if err := os.MkdirAll(filepath.Dir(resultsFilePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory for results: %w", err)
	}

	file, err := os.Create(resultsFilePath)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := json.NewEncoder(file).Encode(allResults); err != nil {
		return err
	}

	s.results = nil // Clear the batch
	s.written = true
	return nil
}

// LoadResults reads the analysis results stored for this video.
func (s *FileStorage) LoadResults() ([]models.AnalysisResult, error) {
	data, err := os.ReadFile(s.ResultsPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read results file: %w", err)
	}

	var results []models.AnalysisResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("failed to unmarshal results: %w", err)
	}
	return results, nil
}

// Multi fans results out to several stores.
type Multi []Storage

func (m Multi) AddResult(ctx context.Context, result models.AnalysisResult) error {
	for _, s := range m {
		if err := s.AddResult(ctx, result); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) Flush() error {
	for _, s := range m {
		if err := s.Flush(); err != nil {
			return err
		}
	}
	return nil
}
