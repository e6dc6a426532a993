package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/redeyefit/fieldvision/internal/curator"
)

// Config holds runtime configuration, loaded from the environment and
// optionally overlaid with a YAML file.
type Config struct {
	// Curation
	SampleInterval     time.Duration `env:"FV_SAMPLE_INTERVAL"     envDefault:"1s"        yaml:"sample_interval"`
	SharpnessThreshold float64       `env:"FV_SHARPNESS_THRESHOLD" envDefault:"13.0"      yaml:"sharpness_threshold"`
	DedupThreshold     float64       `env:"FV_DEDUP_THRESHOLD"     envDefault:"0.90"      yaml:"dedup_threshold"`
	MaxFrames          int           `env:"FV_MAX_FRAMES"          envDefault:"20"        yaml:"max_frames"`
	EncodeQuality      float64       `env:"FV_ENCODE_QUALITY"      envDefault:"0.8"       yaml:"encode_quality"`
	Workers            int           `env:"FV_WORKERS"             envDefault:"4"         yaml:"workers"`
	Timeout            time.Duration `env:"FV_TIMEOUT"             envDefault:"60s"       yaml:"timeout"`

	FFmpegPath  string `env:"FFMPEG_PATH"  envDefault:"ffmpeg"  yaml:"ffmpeg_path"`
	FFprobePath string `env:"FFPROBE_PATH" envDefault:"ffprobe" yaml:"ffprobe_path"`

	OutputDir string `env:"FV_OUTPUT_DIR" envDefault:"output_frames" yaml:"output_dir"`
	LogLevel  string `env:"LOG_LEVEL"     envDefault:"info"          yaml:"log_level"`

	// Watch mode
	WatchPath     string        `env:"LOCAL_WATCH_PATH"  envDefault:"./FieldVision" yaml:"watch_path"`
	WatchInterval time.Duration `env:"FV_WATCH_INTERVAL" envDefault:"5s"            yaml:"watch_interval"`

	// Analysis: none, mock, ollama or openai
	Analyzer        string `env:"FV_ANALYZER"        envDefault:"none"                 yaml:"analyzer"`
	AnalyzerWorkers int    `env:"FV_ANALYZER_WORKERS" envDefault:"4"                   yaml:"analyzer_workers"`
	OllamaURL       string `env:"OLLAMA_URL"         envDefault:"http://localhost"     yaml:"ollama_url"`
	OllamaPort      int    `env:"OLLAMA_PORT"        envDefault:"11434"                yaml:"ollama_port"`
	OllamaModel     string `env:"OLLAMA_MODEL"       envDefault:"llama3.2-vision:11b"  yaml:"ollama_model"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"                                       yaml:"-"`
	OpenAIModel     string `env:"OPENAI_MODEL"       envDefault:"gpt-4o-mini"          yaml:"openai_model"`

	// Storage
	DatabaseURL    string `env:"DATABASE_URL"     yaml:"database_url"`
	MinIOEndpoint  string `env:"MINIO_ENDPOINT"   yaml:"minio_endpoint"`
	MinIOAccessKey string `env:"MINIO_ACCESS_KEY" yaml:"-"`
	MinIOSecretKey string `env:"MINIO_SECRET_KEY" yaml:"-"`
	MinIOUseSSL    bool   `env:"MINIO_USE_SSL"    envDefault:"false"  yaml:"minio_use_ssl"`
	MinIOBucket    string `env:"MINIO_BUCKET"     envDefault:"frames" yaml:"minio_bucket"`

	MetricsPort int `env:"METRICS_PORT" envDefault:"0" yaml:"metrics_port"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads the environment, then overlays the keys present in the YAML file at path.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file '%s': %w", path, err)
	}
	return cfg, nil
}

// CuratorOptions maps the curation knobs onto curator.Options.
func (c *Config) CuratorOptions() curator.Options {
	return curator.Options{
		SampleInterval:     c.SampleInterval,
		SharpnessThreshold: c.SharpnessThreshold,
		DedupThreshold:     c.DedupThreshold,
		MaxFrames:          c.MaxFrames,
		EncodeQuality:      c.EncodeQuality,
		Workers:            c.Workers,
	}
}

// Level parses LogLevel, defaulting to info.
func (c *Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
