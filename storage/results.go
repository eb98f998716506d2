package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Abhijeetkumar8582/NewCode/core"
)

// ErrNotFound is returned when a video or its artifacts do not exist.
var ErrNotFound = errors.New("not found")

// ResultStore persists video records and their analysis artifacts: per-frame
// results, transcript segments, and the generated summary.
type ResultStore interface {
	SaveVideo(ctx context.Context, rec core.VideoRecord) error
	UpdateVideoStatus(ctx context.Context, videoID, status, errMsg string) error
	GetVideo(ctx context.Context, videoID string) (core.VideoRecord, error)
	ListVideos(ctx context.Context) ([]core.VideoRecord, error)

	SaveResults(ctx context.Context, videoID string, results []core.FrameAnalysisResult) error
	ListResults(ctx context.Context, videoID string, page, perPage int) ([]core.FrameAnalysisResult, int, error)

	SaveSegments(ctx context.Context, videoID string, segments []core.Segment) error
	GetSegments(ctx context.Context, videoID string) ([]core.Segment, error)

	SaveSummary(ctx context.Context, videoID, summary string) error
	GetSummary(ctx context.Context, videoID string) (string, error)
}

// NewResultStore picks postgres when a URL is configured and reachable,
// otherwise the in-process memory store.
func NewResultStore(ctx context.Context, postgresURL string, log *slog.Logger) ResultStore {
	if postgresURL != "" {
		s, err := NewPostgresResultStore(ctx, postgresURL)
		if err != nil {
			log.Warn("postgres result store init failed, falling back to memory store", "err", err)
		} else {
			return s
		}
	}
	return NewMemoryResultStore()
}

// paginate clamps page/perPage and returns the slice bounds for a list of n.
func paginate(n, page, perPage int) (start, end int) {
	if perPage <= 0 {
		perPage = 10
	}
	if page <= 0 {
		page = 1
	}
	start = (page - 1) * perPage
	if start > n {
		start = n
	}
	end = min(start+perPage, n)
	return start, end
}

// ---------------- Memory implementation ----------------

type MemoryResultStore struct {
	mu        sync.RWMutex
	videos    map[string]core.VideoRecord
	results   map[string][]core.FrameAnalysisResult
	segments  map[string][]core.Segment
	summaries map[string]string
}

func NewMemoryResultStore() *MemoryResultStore {
	return &MemoryResultStore{
		videos:    map[string]core.VideoRecord{},
		results:   map[string][]core.FrameAnalysisResult{},
		segments:  map[string][]core.Segment{},
		summaries: map[string]string{},
	}
}

func (s *MemoryResultStore) SaveVideo(_ context.Context, rec core.VideoRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videos[rec.VideoID] = rec
	return nil
}

func (s *MemoryResultStore) UpdateVideoStatus(_ context.Context, videoID, status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.videos[videoID]
	if !ok {
		return ErrNotFound
	}
	rec.Status = status
	rec.Error = errMsg
	s.videos[videoID] = rec
	return nil
}

func (s *MemoryResultStore) GetVideo(_ context.Context, videoID string) (core.VideoRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.videos[videoID]
	if !ok {
		return core.VideoRecord{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryResultStore) ListVideos(_ context.Context) ([]core.VideoRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.VideoRecord, 0, len(s.videos))
	for _, rec := range s.videos {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryResultStore) SaveResults(_ context.Context, videoID string, results []core.FrameAnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]core.FrameAnalysisResult, len(results))
	copy(cp, results)
	s.results[videoID] = cp

	if rec, ok := s.videos[videoID]; ok {
		rec.FrameCount = len(results)
		s.videos[videoID] = rec
	}
	return nil
}

func (s *MemoryResultStore) ListResults(_ context.Context, videoID string, page, perPage int) ([]core.FrameAnalysisResult, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all, ok := s.results[videoID]
	if !ok {
		if _, exists := s.videos[videoID]; !exists {
			return nil, 0, ErrNotFound
		}
		return []core.FrameAnalysisResult{}, 0, nil
	}
	start, end := paginate(len(all), page, perPage)
	out := make([]core.FrameAnalysisResult, end-start)
	copy(out, all[start:end])
	return out, len(all), nil
}

func (s *MemoryResultStore) SaveSegments(_ context.Context, videoID string, segments []core.Segment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]core.Segment, len(segments))
	copy(cp, segments)
	s.segments[videoID] = cp
	return nil
}

func (s *MemoryResultStore) GetSegments(_ context.Context, videoID string) ([]core.Segment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	segs, ok := s.segments[videoID]
	if !ok {
		if _, exists := s.videos[videoID]; !exists {
			return nil, ErrNotFound
		}
		return []core.Segment{}, nil
	}
	out := make([]core.Segment, len(segs))
	copy(out, segs)
	return out, nil
}

func (s *MemoryResultStore) SaveSummary(_ context.Context, videoID, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[videoID] = summary
	return nil
}

func (s *MemoryResultStore) GetSummary(_ context.Context, videoID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summary, ok := s.summaries[videoID]
	if !ok {
		if _, exists := s.videos[videoID]; !exists {
			return "", ErrNotFound
		}
		return "", nil
	}
	return summary, nil
}

// ---------------- Postgres implementation ----------------

type PostgresResultStore struct {
	pool *pgxpool.Pool
}

func NewPostgresResultStore(ctx context.Context, dbURL string) (*PostgresResultStore, error) {
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &PostgresResultStore{pool: pool}
	if err := s.ensureTables(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresResultStore) ensureTables(ctx context.Context) error {
	ddls := []string{
		`CREATE TABLE IF NOT EXISTS videos (
			video_id VARCHAR(255) PRIMARY KEY,
			video_name VARCHAR(500),
			video_path VARCHAR(1000),
			duration FLOAT DEFAULT 0,
			status VARCHAR(32) NOT NULL DEFAULT 'pending',
			error TEXT DEFAULT '',
			frame_count INT DEFAULT 0,
			summary TEXT DEFAULT '',
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS frame_results (
			id SERIAL PRIMARY KEY,
			video_id VARCHAR(255) NOT NULL,
			timestamp_sec FLOAT NOT NULL,
			frame_number INT NOT NULL,
			image_path VARCHAR(1000),
			description TEXT,
			ocr_text TEXT,
			meta_tags JSONB,
			processing_time_ms INT DEFAULT 0,
			model VARCHAR(128),
			error TEXT DEFAULT '',
			UNIQUE(video_id, frame_number)
		);`,
		`CREATE TABLE IF NOT EXISTS transcript_segments (
			id SERIAL PRIMARY KEY,
			video_id VARCHAR(255) NOT NULL,
			start_sec FLOAT NOT NULL,
			end_sec FLOAT NOT NULL,
			text TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_frame_results_video ON frame_results(video_id, timestamp_sec);`,
		`CREATE INDEX IF NOT EXISTS idx_transcript_segments_video ON transcript_segments(video_id, start_sec);`,
	}
	for _, ddl := range ddls {
		if _, err := s.pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("ensure tables: %w", err)
		}
	}
	return nil
}

func (s *PostgresResultStore) SaveVideo(ctx context.Context, rec core.VideoRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO videos (video_id, video_name, video_path, duration, status, error, frame_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (video_id) DO UPDATE SET
			video_name = EXCLUDED.video_name,
			video_path = EXCLUDED.video_path,
			duration = EXCLUDED.duration,
			status = EXCLUDED.status,
			error = EXCLUDED.error,
			frame_count = EXCLUDED.frame_count
	`, rec.VideoID, rec.VideoName, rec.VideoPath, rec.Duration, rec.Status, rec.Error, rec.FrameCount, rec.CreatedAt)
	return err
}

func (s *PostgresResultStore) UpdateVideoStatus(ctx context.Context, videoID, status, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE videos SET status = $2, error = $3 WHERE video_id = $1`, videoID, status, errMsg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresResultStore) GetVideo(ctx context.Context, videoID string) (core.VideoRecord, error) {
	var rec core.VideoRecord
	err := s.pool.QueryRow(ctx, `
		SELECT video_id, video_name, video_path, duration, status, error, frame_count, created_at
		FROM videos WHERE video_id = $1
	`, videoID).Scan(&rec.VideoID, &rec.VideoName, &rec.VideoPath, &rec.Duration,
		&rec.Status, &rec.Error, &rec.FrameCount, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.VideoRecord{}, ErrNotFound
	}
	return rec, err
}

func (s *PostgresResultStore) ListVideos(ctx context.Context) ([]core.VideoRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT video_id, video_name, video_path, duration, status, error, frame_count, created_at
		FROM videos ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.VideoRecord
	for rows.Next() {
		var rec core.VideoRecord
		if err := rows.Scan(&rec.VideoID, &rec.VideoName, &rec.VideoPath, &rec.Duration,
			&rec.Status, &rec.Error, &rec.FrameCount, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresResultStore) SaveResults(ctx context.Context, videoID string, results []core.FrameAnalysisResult) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM frame_results WHERE video_id = $1`, videoID); err != nil {
		return err
	}
	for _, r := range results {
		tags, err := json.Marshal(r.MetaTags)
		if err != nil {
			tags = []byte("[]")
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO frame_results (video_id, timestamp_sec, frame_number, image_path,
				description, ocr_text, meta_tags, processing_time_ms, model, error)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, videoID, r.TimestampSec, r.FrameNumber, r.ImagePath,
			r.Description, r.OCRText, tags, r.ProcessingTimeMs, r.Model, r.Error); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(ctx,
		`UPDATE videos SET frame_count = $2 WHERE video_id = $1`, videoID, len(results)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresResultStore) ListResults(ctx context.Context, videoID string, page, perPage int) ([]core.FrameAnalysisResult, int, error) {
	if _, err := s.GetVideo(ctx, videoID); err != nil {
		return nil, 0, err
	}

	var total int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM frame_results WHERE video_id = $1`, videoID).Scan(&total); err != nil {
		return nil, 0, err
	}

	start, end := paginate(total, page, perPage)
	rows, err := s.pool.Query(ctx, `
		SELECT timestamp_sec, frame_number, image_path, description, COALESCE(ocr_text, ''),
			   COALESCE(meta_tags, '[]'::jsonb), processing_time_ms, model, error
		FROM frame_results WHERE video_id = $1
		ORDER BY timestamp_sec ASC
		OFFSET $2 LIMIT $3
	`, videoID, start, end-start)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]core.FrameAnalysisResult, 0, end-start)
	for rows.Next() {
		var r core.FrameAnalysisResult
		var tags []byte
		if err := rows.Scan(&r.TimestampSec, &r.FrameNumber, &r.ImagePath, &r.Description,
			&r.OCRText, &tags, &r.ProcessingTimeMs, &r.Model, &r.Error); err != nil {
			return nil, 0, err
		}
		_ = json.Unmarshal(tags, &r.MetaTags)
		out = append(out, r)
	}
	return out, total, rows.Err()
}

func (s *PostgresResultStore) SaveSegments(ctx context.Context, videoID string, segments []core.Segment) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM transcript_segments WHERE video_id = $1`, videoID); err != nil {
		return err
	}
	for _, seg := range segments {
		if _, err := tx.Exec(ctx, `
			INSERT INTO transcript_segments (video_id, start_sec, end_sec, text)
			VALUES ($1, $2, $3, $4)
		`, videoID, seg.Start, seg.End, seg.Text); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresResultStore) GetSegments(ctx context.Context, videoID string) ([]core.Segment, error) {
	if _, err := s.GetVideo(ctx, videoID); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT start_sec, end_sec, text FROM transcript_segments
		WHERE video_id = $1 ORDER BY start_sec ASC
	`, videoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []core.Segment{}
	for rows.Next() {
		var seg core.Segment
		if err := rows.Scan(&seg.Start, &seg.End, &seg.Text); err != nil {
			return nil, err
		}
		out = append(out, seg)
	}
	return out, rows.Err()
}

func (s *PostgresResultStore) SaveSummary(ctx context.Context, videoID, summary string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE videos SET summary = $2 WHERE video_id = $1`, videoID, summary)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresResultStore) GetSummary(ctx context.Context, videoID string) (string, error) {
	var summary string
	err := s.pool.QueryRow(ctx,
		`SELECT summary FROM videos WHERE video_id = $1`, videoID).Scan(&summary)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return summary, err
}
