// Package store keeps the history of training runs and their episodes in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"snakedqn/internal/logging"
)

var (
	// ErrRunNotFound is returned when no run matches the query
	ErrRunNotFound = errors.New("run not found")
	// ErrStoreClosed is returned after Close
	ErrStoreClosed = errors.New("store closed")
)

// Run describes one training invocation
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Seed       int64
	Resumed    bool
	Games      int
	Record     int
}

// Store is a SQLite backed run history
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	closed bool
}

// Open opens or creates the database at path
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL DEFAULT 0,
			seed INTEGER NOT NULL,
			resumed INTEGER NOT NULL DEFAULT 0,
			games INTEGER NOT NULL DEFAULT 0,
			record INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS episodes (
			run_id TEXT NOT NULL,
			episode INTEGER NOT NULL,
			score INTEGER NOT NULL,
			record INTEGER NOT NULL,
			frames INTEGER NOT NULL,
			reward REAL NOT NULL,
			death TEXT NOT NULL,
			cycles INTEGER NOT NULL,
			length INTEGER NOT NULL,
			epsilon INTEGER NOT NULL,
			explored INTEGER NOT NULL,
			loss REAL NOT NULL,
			mean_score REAL NOT NULL,
			seed INTEGER NOT NULL,
			PRIMARY KEY (run_id, episode)
		);

		CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// StartRun inserts a new run
func (s *Store) StartRun(ctx context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, seed, resumed, games, record)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, run.StartedAt.UnixNano(), run.Seed, boolToInt(run.Resumed), run.Games, run.Record)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// FinishRun records the final progress of a run
func (s *Store) FinishRun(ctx context.Context, id string, games, record int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, games = ?, record = ? WHERE id = ?
	`, time.Now().UnixNano(), games, record, id)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRunNotFound
	}
	return nil
}

// AddEpisode stores one finished episode of a run
func (s *Store) AddEpisode(ctx context.Context, runID string, r logging.EpisodeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO episodes (
			run_id, episode, score, record, frames, reward, death, cycles,
			length, epsilon, explored, loss, mean_score, seed
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, r.Episode, r.Score, r.Record, r.Frames, r.Reward, r.Death, r.Cycles,
		r.Length, r.Epsilon, r.Explored, r.Loss, r.MeanScore, int64(r.Seed))
	if err != nil {
		return fmt.Errorf("failed to insert episode %d: %w", r.Episode, err)
	}
	return nil
}

// Episodes returns the episodes of a run in order
func (s *Store) Episodes(ctx context.Context, runID string) ([]logging.EpisodeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT episode, score, record, frames, reward, death, cycles,
			length, epsilon, explored, loss, mean_score, seed
		FROM episodes WHERE run_id = ? ORDER BY episode
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query episodes: %w", err)
	}
	defer rows.Close()

	var records []logging.EpisodeRecord
	for rows.Next() {
		var r logging.EpisodeRecord
		var seed int64
		if err := rows.Scan(&r.Episode, &r.Score, &r.Record, &r.Frames, &r.Reward, &r.Death, &r.Cycles,
			&r.Length, &r.Epsilon, &r.Explored, &r.Loss, &r.MeanScore, &seed); err != nil {
			return nil, fmt.Errorf("failed to scan episode: %w", err)
		}
		r.Seed = uint64(seed)
		records = append(records, r)
	}
	return records, rows.Err()
}

// Run looks up a run by id
func (s *Store) Run(ctx context.Context, id string) (Run, error) {
	return s.queryRun(ctx, `WHERE id = ?`, id)
}

// LatestRun returns the most recently started run
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	return s.queryRun(ctx, `ORDER BY started_at DESC LIMIT 1`)
}

func (s *Store) queryRun(ctx context.Context, clause string, args ...interface{}) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Run{}, ErrStoreClosed
	}

	var (
		run               Run
		started, finished int64
		resumed           int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, seed, resumed, games, record FROM runs `+clause,
		args...).Scan(&run.ID, &started, &finished, &run.Seed, &resumed, &run.Games, &run.Record)
	if err == sql.ErrNoRows {
		return Run{}, ErrRunNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("failed to query run: %w", err)
	}

	run.StartedAt = time.Unix(0, started)
	if finished > 0 {
		run.FinishedAt = time.Unix(0, finished)
	}
	run.Resumed = resumed != 0
	return run, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
