package usage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/arief/naia/pkg/provider"
)

// Store persists per-turn usage rows to sqlite for later inspection.
type Store struct {
	db *sql.DB
}

// Row is one recorded usage entry.
type Row struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	Model        string    `json:"model"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	TotalTokens  int       `json:"total_tokens"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// NewStore opens (or creates) the usage database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open usage database: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS token_usage (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			model TEXT NOT NULL,
			input_tokens INTEGER NOT NULL,
			output_tokens INTEGER NOT NULL,
			total_tokens INTEGER NOT NULL,
			recorded_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_token_usage_session ON token_usage(session_id);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize usage schema: %w", err)
	}

	log.Debug().Str("path", dbPath).Msg("Usage store opened")
	return &Store{db: db}, nil
}

// Record inserts one usage row.
func (s *Store) Record(sessionID, model string, usage provider.TokenUsage) error {
	_, err := s.db.Exec(
		`INSERT INTO token_usage (id, session_id, model, input_tokens, output_tokens, total_tokens, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), sessionID, model,
		usage.InputTokens, usage.OutputTokens, usage.TotalTokens,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	return nil
}

// BySession returns all rows for a session, oldest first.
func (s *Store) BySession(sessionID string) ([]Row, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, model, input_tokens, output_tokens, total_tokens, recorded_at
		 FROM token_usage WHERE session_id = ? ORDER BY recorded_at ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage: %w", err)
	}
	defer rows.Close()

	out := []Row{}
	for rows.Next() {
		var row Row
		if err := rows.Scan(&row.ID, &row.SessionID, &row.Model,
			&row.InputTokens, &row.OutputTokens, &row.TotalTokens, &row.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan usage row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Totals aggregates a session's usage across all rows.
func (s *Store) Totals(sessionID string) (provider.TokenUsage, error) {
	var usage provider.TokenUsage
	err := s.db.QueryRow(
		`SELECT COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0), COALESCE(SUM(total_tokens), 0)
		 FROM token_usage WHERE session_id = ?`,
		sessionID,
	).Scan(&usage.InputTokens, &usage.OutputTokens, &usage.TotalTokens)
	if err != nil {
		return provider.TokenUsage{}, fmt.Errorf("failed to total usage: %w", err)
	}
	return usage, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
