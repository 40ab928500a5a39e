package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/connsolve/internal/domain"
	_ "modernc.org/sqlite"
)

// DefaultListLimit caps ListGames when no positive limit is given.
const DefaultListLimit = 50

// SQLiteStore implements Archive using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the archive database at dbPath.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode for concurrent readers while a game is being archived.
	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

var _ Archive = (*SQLiteStore)(nil)

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS games (
		session_id TEXT PRIMARY KEY,
		fingerprint TEXT NOT NULL,
		words_json TEXT NOT NULL,
		groups_json TEXT NOT NULL,
		attempts_json TEXT NOT NULL,
		won INTEGER NOT NULL,
		mistakes INTEGER NOT NULL,
		one_away_count INTEGER NOT NULL DEFAULT 0,
		strategy TEXT,
		model TEXT,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_games_fingerprint ON games(fingerprint, finished_at);
	CREATE INDEX IF NOT EXISTS idx_games_finished ON games(finished_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveGame creates or replaces the record for rec.SessionID.
func (s *SQLiteStore) SaveGame(ctx context.Context, rec *GameRecord) error {
	if rec == nil || rec.SessionID == "" || rec.Fingerprint == "" {
		return errors.New("save game: record needs a session id and fingerprint")
	}
	words, err := json.Marshal(rec.Words)
	if err != nil {
		return fmt.Errorf("encode words: %w", err)
	}
	groups, err := json.Marshal(rec.Groups)
	if err != nil {
		return fmt.Errorf("encode groups: %w", err)
	}
	attempts, err := json.Marshal(rec.Attempts)
	if err != nil {
		return fmt.Errorf("encode attempts: %w", err)
	}

	query := `
	INSERT INTO games (
		session_id, fingerprint, words_json, groups_json, attempts_json,
		won, mistakes, one_away_count, strategy, model, started_at, finished_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(session_id) DO UPDATE SET
		groups_json = excluded.groups_json,
		attempts_json = excluded.attempts_json,
		won = excluded.won,
		mistakes = excluded.mistakes,
		one_away_count = excluded.one_away_count,
		strategy = COALESCE(excluded.strategy, games.strategy),
		model = COALESCE(excluded.model, games.model),
		finished_at = excluded.finished_at`

	err = withRetry(ctx, "save_game", func() error {
		_, err := s.db.ExecContext(ctx, query,
			rec.SessionID, rec.Fingerprint, string(words), string(groups), string(attempts),
			rec.Won, rec.Mistakes, rec.OneAwayCount, nullString(rec.Strategy), nullString(rec.Model),
			rec.StartedAt.UnixMilli(), rec.FinishedAt.UnixMilli(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("save game %s: %w", rec.SessionID, err)
	}
	return nil
}

const selectGame = `
	SELECT session_id, fingerprint, words_json, groups_json, attempts_json,
	       won, mistakes, one_away_count, strategy, model, started_at, finished_at
	FROM games`

// GetGame returns the latest game for a board fingerprint, or nil.
func (s *SQLiteStore) GetGame(ctx context.Context, fingerprint string) (*GameRecord, error) {
	row := s.db.QueryRowContext(ctx, selectGame+` WHERE fingerprint = ? ORDER BY finished_at DESC LIMIT 1`, fingerprint)
	rec, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListGames returns up to limit games, newest first.
func (s *SQLiteStore) ListGames(ctx context.Context, limit int) ([]*GameRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, selectGame+` ORDER BY finished_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query games: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close games rows", "error", closeErr)
		}
	}()

	var out []*GameRecord
	for rows.Next() {
		rec, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate games: %w", err)
	}
	return out, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGame(row scanner) (*GameRecord, error) {
	var (
		rec                     GameRecord
		words, groups, attempts string
		strategy, model         sql.NullString
		startedAt, finishedAt   int64
	)
	err := row.Scan(
		&rec.SessionID, &rec.Fingerprint, &words, &groups, &attempts,
		&rec.Won, &rec.Mistakes, &rec.OneAwayCount, &strategy, &model,
		&startedAt, &finishedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan game row: %w", err)
	}

	if err := json.Unmarshal([]byte(words), &rec.Words); err != nil {
		return nil, fmt.Errorf("decode words: %w", err)
	}
	if err := json.Unmarshal([]byte(groups), &rec.Groups); err != nil {
		return nil, fmt.Errorf("decode groups: %w", err)
	}
	if err := json.Unmarshal([]byte(attempts), &rec.Attempts); err != nil {
		return nil, fmt.Errorf("decode attempts: %w", err)
	}
	rec.Strategy = strategy.String
	rec.Model = model.String
	rec.StartedAt = time.UnixMilli(startedAt)
	rec.FinishedAt = time.UnixMilli(finishedAt)
	return &rec, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ArchiveSession saves a finished session. It is a convenience for callers
// holding a domain session.
func ArchiveSession(ctx context.Context, a Archive, sess *domain.Session) error {
	if !sess.IsGameOver() {
		return fmt.Errorf("archive session %s: game is not over", sess.ID)
	}
	return a.SaveGame(ctx, NewGameRecord(sess))
}
