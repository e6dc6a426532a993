package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/lmittmann/tint"

	"github.com/redeyefit/fieldvision/internal/analyzer"
	"github.com/redeyefit/fieldvision/internal/config"
	"github.com/redeyefit/fieldvision/internal/curator"
	"github.com/redeyefit/fieldvision/internal/extractor"
	"github.com/redeyefit/fieldvision/internal/metrics"
	"github.com/redeyefit/fieldvision/internal/models"
	"github.com/redeyefit/fieldvision/internal/watcher"
)

const usage = "Usage: fieldvision --video path/to/video.mp4 [--video another.mp4 ...] [--output output_directory] [--config fieldvision.yaml]\n" +
	"       fieldvision --watch [directory] [--output output_directory] [--config fieldvision.yaml]\n" +
	"       fieldvision --similar path/to/image.jpg [--limit 10] [--config fieldvision.yaml]"

var errUsage = errors.New("invalid arguments")

type options struct {
	videoPaths  []string
	outputDir   string
	configPath  string
	similarPath string
	watch       bool
	watchDir    string
	limit       int
}

func main() {
	if err := run(); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Println(usage)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts, err := parseArgs(os.Args[1:])
	if err != nil {
		return err
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if opts.outputDir != "" {
		cfg.OutputDir = opts.outputDir
	}
	if opts.watchDir != "" {
		cfg.WatchPath = opts.watchDir
	}

	// Configure logger
	logger := slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      cfg.Level(),
			TimeFormat: "15:04:05",
		}),
	)

	if opts.similarPath != "" {
		if err := searchSimilar(ctx, cfg, opts.similarPath, opts.limit); err != nil {
			return fmt.Errorf("similar frame search failed: %w", err)
		}
		return nil
	}

	if cfg.MetricsPort > 0 {
		srv := metrics.StartMetricsServer(cfg.MetricsPort, logger)
		defer srv.Shutdown(context.Background())
	}

	cur, err := curator.New(
		extractor.NewFFmpegDecoder(cfg.FFmpegPath, cfg.FFprobePath),
		curator.JPEGEncoder{},
		cfg.CuratorOptions(),
		logger,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize curator: %w", err)
	}

	sinks, err := newSinks(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer sinks.Close()

	tagger, err := newTagger(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize analyzer: %w", err)
	}

	if opts.watch {
		return watchVideos(ctx, cfg, cur, sinks, tagger, logger)
	}
	return processVideos(ctx, cfg, cur, sinks, tagger, opts.videoPaths, logger)
}

func parseArgs(args []string) (options, error) {
	opts := options{limit: 10}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--video":
			if i+1 < len(args) {
				opts.videoPaths = append(opts.videoPaths, args[i+1])
				i++
			}
		case "--output":
			if i+1 < len(args) {
				opts.outputDir = args[i+1]
				i++
			}
		case "--config":
			if i+1 < len(args) {
				opts.configPath = args[i+1]
				i++
			}
		case "--similar":
			if i+1 < len(args) {
				opts.similarPath = args[i+1]
				i++
			}
		case "--watch":
			opts.watch = true
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "--") {
				opts.watchDir = args[i+1]
				i++
			}
		case "--limit":
			if i+1 < len(args) {
				if _, err := fmt.Sscanf(args[i+1], "%d", &opts.limit); err != nil {
					return opts, errUsage
				}
				i++
			}
		}
	}

	if len(opts.videoPaths) == 0 && opts.similarPath == "" && !opts.watch {
		return opts, errUsage
	}
	return opts, nil
}

// processVideos curates every video concurrently and handles the results in
// argument order. Each curation gets its own deadline.
func processVideos(ctx context.Context, cfg *config.Config, cur *curator.Curator, s *sinks, tagger analyzer.Tagger, videoPaths []string, logger *slog.Logger) error {
	pending := make([]<-chan models.CurationResult, len(videoPaths))
	cancels := make([]context.CancelFunc, len(videoPaths))
	for i, videoPath := range videoPaths {
		logger.Info("curating video", "video", videoPath)
		var curateCtx context.Context
		curateCtx, cancels[i] = curationContext(ctx, cfg)
		pending[i] = cur.Curate(curateCtx, videoPath)
	}

	failed := 0
	for i, videoPath := range videoPaths {
		result := <-pending[i]
		cancels[i]()
		if err := handleResult(ctx, cfg, s, tagger, result, logger); err != nil {
			logger.Error("error processing video", "video", videoPath, "error", err)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d videos failed", failed, len(videoPaths))
	}
	logger.Info("video processing completed successfully", "videos", len(videoPaths))
	return nil
}

// watchVideos curates each new video that appears under the watch path, one
// at a time, until ctx is cancelled.
func watchVideos(ctx context.Context, cfg *config.Config, cur *curator.Curator, s *sinks, tagger analyzer.Tagger, logger *slog.Logger) error {
	w := watcher.New(cfg.WatchPath, cfg.WatchInterval, logger)
	found, err := w.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to watch '%s': %w", cfg.WatchPath, err)
	}
	logger.Info("watching for videos", "dir", cfg.WatchPath, "interval", cfg.WatchInterval)

	for videoPath := range found {
		logger.Info("curating video", "video", videoPath)
		curateCtx, cancel := curationContext(ctx, cfg)
		result := <-cur.Curate(curateCtx, videoPath)
		cancel()
		if err := handleResult(ctx, cfg, s, tagger, result, logger); err != nil {
			logger.Error("error processing video", "video", videoPath, "error", err)
		}
	}

	logger.Info("stopped watching", "dir", cfg.WatchPath)
	return nil
}

// curationContext bounds a single curation by cfg.Timeout. A non-positive
// timeout disables the deadline.
func curationContext(ctx context.Context, cfg *config.Config) (context.Context, context.CancelFunc) {
	if cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, cfg.Timeout)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFile(path)
}
