package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/redeyefit/fieldvision/internal/dedup"
	"github.com/redeyefit/fieldvision/internal/models"
)

// PostgresStorage stores the curated frames and analyses of one video.
// Each frame row carries a 64-dimension luminance descriptor so visually
// similar frames can be found across videos.
type PostgresStorage struct {
	pool      *pgxpool.Pool
	videoID   int
	videoName string
}

// Connect opens a connection pool and verifies it.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// NewPostgresStorage binds a storage to videoName, creating its row if needed.
func NewPostgresStorage(ctx context.Context, pool *pgxpool.Pool, videoName string) (*PostgresStorage, error) {
	storage := &PostgresStorage{
		pool:      pool,
		videoName: videoName,
	}

	videoID, err := storage.getOrCreateVideo(ctx, videoName)
	if err != nil {
		return nil, err
	}
	storage.videoID = videoID

	return storage, nil
}

func (s *PostgresStorage) getOrCreateVideo(ctx context.Context, videoName string) (int, error) {
	var id int
	err := s.pool.QueryRow(ctx,
		"SELECT id FROM videos WHERE name = $1",
		videoName).Scan(&id)

	if err == nil {
		return id, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("error checking for existing video: %w", err)
	}

	err = s.pool.QueryRow(ctx,
		`INSERT INTO videos (name, created_at) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`,
		videoName, time.Now()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create video entry: %w", err)
	}

	return id, nil
}

// SaveFrames upserts a row per frame and returns the stored frame names.
func (s *PostgresStorage) SaveFrames(ctx context.Context, frames []models.CuratedFrame) ([]string, error) {
	names := make([]string, 0, len(frames))
	for _, frame := range frames {
		img, err := jpeg.Decode(bytes.NewReader(frame.Data))
		if err != nil {
			return names, fmt.Errorf("failed to decode frame %d: %w", frame.Index, err)
		}

		name := FrameName(frame)
		_, err = s.pool.Exec(ctx,
			`INSERT INTO frames
			(video_id, frame_number, frame_path, timestamp, descriptor, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (video_id, frame_number) DO UPDATE
			SET frame_path = EXCLUDED.frame_path,
				timestamp = EXCLUDED.timestamp,
				descriptor = EXCLUDED.descriptor`,
			s.videoID, frame.Index, name, frame.Offset.Seconds(),
			pgvector.NewVector(dedup.Descriptor(img)), time.Now())
		if err != nil {
			return names, fmt.Errorf("failed to store frame information: %w", err)
		}
		names = append(names, name)
	}
	return names, nil
}

// AddResult stores an analysis against a previously saved frame.
func (s *PostgresStorage) AddResult(ctx context.Context, result models.AnalysisResult) error {
	var frameID int
	err := s.pool.QueryRow(ctx,
		"SELECT id FROM frames WHERE video_id = $1 AND frame_number = $2",
		s.videoID, result.Index).Scan(&frameID)
	if err != nil {
		return fmt.Errorf("failed to find frame %d: %w", result.Index, err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO analyses (frame_id, content, created_at) VALUES ($1, $2, $3)`,
		frameID, result.Content, time.Now())
	if err != nil {
		return fmt.Errorf("failed to store analysis: %w", err)
	}

	return nil
}

// Flush implements the Storage interface - no-op for Postgres as we save immediately
func (s *PostgresStorage) Flush() error {
	return nil
}

// SearchSimilarFrames finds stored frames, from any video, that look like img.
// Each frame is listed once, with its most recent analysis.
func SearchSimilarFrames(ctx context.Context, pool *pgxpool.Pool, img image.Image, limit int) ([]models.FrameSearchResult, error) {
	rows, err := pool.Query(ctx,
		`SELECT v.name, f.frame_number, f.frame_path, COALESCE(a.content, ''),
		1 - (f.descriptor <=> $1) AS similarity
		FROM frames f
		JOIN videos v ON f.video_id = v.id
		LEFT JOIN LATERAL (
			SELECT content FROM analyses
			WHERE frame_id = f.id
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		) a ON true
		ORDER BY f.descriptor <=> $1
		LIMIT $2`,
		pgvector.NewVector(dedup.Descriptor(img)), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search similar frames: %w", err)
	}
	defer rows.Close()

	var results []models.FrameSearchResult
	for rows.Next() {
		var result models.FrameSearchResult
		if err := rows.Scan(&result.VideoName, &result.FrameNumber, &result.FramePath,
			&result.Description, &result.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan search results: %w", err)
		}
		results = append(results, result)
	}

	return results, rows.Err()
}

// InitSchema creates the database schema if it doesn't exist
func InitSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	_, err := pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS videos (
			id SERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			UNIQUE(name)
		);

		CREATE TABLE IF NOT EXISTS frames (
			id SERIAL PRIMARY KEY,
			video_id INTEGER REFERENCES videos(id) ON DELETE CASCADE,
			frame_number INTEGER NOT NULL,
			frame_path VARCHAR(255) NOT NULL,
			timestamp DOUBLE PRECISION NOT NULL,
			descriptor vector(%d),
			created_at TIMESTAMPTZ NOT NULL,
			UNIQUE(video_id, frame_number)
		);

		CREATE TABLE IF NOT EXISTS analyses (
			id SERIAL PRIMARY KEY,
			frame_id INTEGER REFERENCES frames(id) ON DELETE CASCADE,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);
	`, dedup.Bits))
	if err != nil {
		return fmt.Errorf("failed to create database schema: %w", err)
	}

	_, err = pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS idx_frames_video_id ON frames(video_id);
		CREATE INDEX IF NOT EXISTS idx_analyses_frame_id ON analyses(frame_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to create database indexes: %w", err)
	}

	return nil
}
