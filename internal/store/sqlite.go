package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"geniebot/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS turns (
			turn_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			question TEXT NOT NULL,
			status TEXT NOT NULL,
			reply_chars INTEGER NOT NULL DEFAULT 0,
			image_name TEXT,
			latency_ms INTEGER NOT NULL DEFAULT 0,
			error TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, created_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateTurn records a processed turn.
func (s *SQLiteStore) CreateTurn(ctx context.Context, turn *domain.Turn) error {
	var imageName, errStr sql.NullString
	if turn.ImageName != "" {
		imageName = sql.NullString{String: turn.ImageName, Valid: true}
	}
	if turn.Error != "" {
		errStr = sql.NullString{String: turn.Error, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turns (turn_id, session_id, question, status, reply_chars, image_name, latency_ms, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		turn.TurnID, turn.SessionID, turn.Question, turn.Status, turn.ReplyChars, imageName, turn.LatencyMs, errStr, turn.CreatedAt)
	return err
}

// GetTurn retrieves a turn by ID. Returns nil without error when not found.
func (s *SQLiteStore) GetTurn(ctx context.Context, turnID string) (*domain.Turn, error) {
	var turn domain.Turn
	var imageName, errStr sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT turn_id, session_id, question, status, reply_chars, image_name, latency_ms, error, created_at
		 FROM turns WHERE turn_id = ?`,
		turnID).Scan(&turn.TurnID, &turn.SessionID, &turn.Question, &turn.Status,
		&turn.ReplyChars, &imageName, &turn.LatencyMs, &errStr, &turn.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if imageName.Valid {
		turn.ImageName = imageName.String
	}
	if errStr.Valid {
		turn.Error = errStr.String
	}
	return &turn, nil
}

// ListTurns retrieves recent turns, newest first. An empty sessionID lists
// across all sessions.
func (s *SQLiteStore) ListTurns(ctx context.Context, sessionID string, limit int) ([]domain.Turn, error) {
	query := `SELECT turn_id, session_id, question, status, reply_chars, image_name, latency_ms, error, created_at FROM turns`
	args := []interface{}{}

	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}

	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []domain.Turn
	for rows.Next() {
		var turn domain.Turn
		var imageName, errStr sql.NullString
		if err := rows.Scan(&turn.TurnID, &turn.SessionID, &turn.Question, &turn.Status,
			&turn.ReplyChars, &imageName, &turn.LatencyMs, &errStr, &turn.CreatedAt); err != nil {
			return nil, err
		}
		if imageName.Valid {
			turn.ImageName = imageName.String
		}
		if errStr.Valid {
			turn.Error = errStr.String
		}
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}
