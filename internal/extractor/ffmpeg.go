package extractor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// FFmpegDecoder decodes videos by shelling out to ffprobe and ffmpeg.
type FFmpegDecoder struct {
	ffmpegPath  string
	ffprobePath string
}

// NewFFmpegDecoder creates a decoder. Empty paths fall back to the binaries on PATH.
func NewFFmpegDecoder(ffmpegPath, ffprobePath string) *FFmpegDecoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpegDecoder{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// Open probes the video's duration.
func (d *FFmpegDecoder) Open(ctx context.Context, videoPath string) (VideoHandle, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return nil, fmt.Errorf("video file does not exist at path: '%s'", videoPath)
	}

	duration, err := d.probeDuration(ctx, videoPath)
	if err != nil {
		return nil, err
	}

	return &ffmpegHandle{
		ffmpegPath: d.ffmpegPath,
		videoPath:  videoPath,
		duration:   duration,
	}, nil
}

func (d *FFmpegDecoder) probeDuration(ctx context.Context, videoPath string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, d.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

type ffmpegHandle struct {
	ffmpegPath string
	videoPath  string
	duration   time.Duration
}

func (h *ffmpegHandle) Duration() time.Duration {
	return h.duration
}

// FrameAt seeks to offset and decodes a single frame piped out as PNG.
func (h *ffmpegHandle) FrameAt(ctx context.Context, offset time.Duration) (image.Image, error) {
	cmd := exec.CommandContext(ctx, h.ffmpegPath,
		"-hide_banner",
		"-loglevel", "error",
		"-ss", strconv.FormatFloat(offset.Seconds(), 'f', 3, 64),
		"-i", h.videoPath,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg capture failed: %w (%s)", err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("no frame data at %s", offset)
	}

	img, err := png.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("invalid frame data: %w", err)
	}
	return img, nil
}

// Close is a no-op; every frame read runs its own ffmpeg process.
func (h *ffmpegHandle) Close() error {
	return nil
}
