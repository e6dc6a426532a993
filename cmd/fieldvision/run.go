package main

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/redeyefit/fieldvision/internal/analyzer"
	"github.com/redeyefit/fieldvision/internal/config"
	"github.com/redeyefit/fieldvision/internal/models"
	"github.com/redeyefit/fieldvision/internal/storage"
)

// sinks are the optional shared backends curated frames are copied to.
type sinks struct {
	pool    *pgxpool.Pool
	objects *storage.ObjectStorage
}

func newSinks(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sinks, error) {
	s := &sinks{}

	if cfg.DatabaseURL != "" {
		pool, err := storage.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := storage.InitSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		s.pool = pool
		logger.Info("storing frames in postgres")
	}

	if cfg.MinIOEndpoint != "" {
		objects, err := storage.NewObjectStorage(ctx, storage.ObjectStorageConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			UseSSL:    cfg.MinIOUseSSL,
			Bucket:    cfg.MinIOBucket,
		})
		if err != nil {
			s.Close()
			return nil, err
		}
		s.objects = objects
		logger.Info("uploading frames to object storage", "bucket", cfg.MinIOBucket)
	}

	return s, nil
}

func (s *sinks) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func newTagger(ctx context.Context, cfg *config.Config, logger *slog.Logger) (analyzer.Tagger, error) {
	switch strings.ToLower(cfg.Analyzer) {
	case "", "none":
		return nil, nil
	case "mock":
		return analyzer.MockTagger{}, nil
	case "ollama":
		visionAgent, err := analyzer.NewAgent(ctx, analyzer.OllamaOptions{
			BaseURL: cfg.OllamaURL,
			Port:    cfg.OllamaPort,
			Model:   cfg.OllamaModel,
		}, logger)
		if err != nil {
			return nil, err
		}
		return analyzer.NewAgentTagger(visionAgent), nil
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for the openai analyzer")
		}
		return analyzer.NewOpenAITagger(cfg.OpenAIAPIKey, "", cfg.OpenAIModel), nil
	default:
		return nil, fmt.Errorf("unknown analyzer %q", cfg.Analyzer)
	}
}

// handleResult stores a curated video's frames and, when an analyzer is
// configured, describes each of them.
func handleResult(ctx context.Context, cfg *config.Config, s *sinks, tagger analyzer.Tagger, result models.CurationResult, logger *slog.Logger) error {
	if result.Err != nil {
		return result.Err
	}

	logger = logger.With("run_id", result.RunID, "video", result.Locator)
	if result.Empty() {
		logger.Warn("no usable frames")
		return nil
	}

	videoName := strings.TrimSuffix(filepath.Base(result.Locator), filepath.Ext(result.Locator))

	files := storage.NewStorage(cfg.OutputDir, videoName)
	paths, err := files.SaveFrames(ctx, result.Frames)
	if err != nil {
		return err
	}
	logger.Info("saved curated frames", "count", len(paths), "dir", files.Dir())

	results := storage.Multi{files}

	if s.pool != nil {
		pg, err := storage.NewPostgresStorage(ctx, s.pool, videoName)
		if err != nil {
			return err
		}
		if _, err := pg.SaveFrames(ctx, result.Frames); err != nil {
			return err
		}
		results = append(results, pg)
	}

	if s.objects != nil {
		keys, err := s.objects.ForVideo(videoName).SaveFrames(ctx, result.Frames)
		if err != nil {
			return err
		}
		logger.Debug("uploaded curated frames", "count", len(keys))
	}

	if tagger == nil {
		return nil
	}

	processor := analyzer.NewProcessor(tagger, results, cfg.AnalyzerWorkers, logger)
	if err := processor.ProcessFrames(ctx, result.Frames, paths); err != nil {
		return err
	}
	logger.Info("analysis complete", "results", files.ResultsPath())
	return nil
}

func searchSimilar(ctx context.Context, cfg *config.Config, imagePath string, limit int) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for similar frame search")
	}

	f, err := os.Open(imagePath)
	if err != nil {
		return err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("failed to decode '%s': %w", imagePath, err)
	}

	pool, err := storage.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	results, err := storage.SearchSimilarFrames(ctx, pool, img, limit)
	if err != nil {
		return err
	}

	fmt.Println("Search Results:")
	for _, res := range results {
		fmt.Printf("Video: %s, Frame Number: %d, Frame Path: %s, Similarity: %f\n  %s\n",
			res.VideoName, res.FrameNumber, res.FramePath, res.Similarity, res.Description)
	}
	return nil
}
