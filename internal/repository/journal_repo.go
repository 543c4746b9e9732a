package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shared-sketch/backend/internal/model"
)

// DefaultListLimit is used when List is called with a non-positive limit.
const DefaultListLimit = 100

// JournalRepository provides data access for the activity journal.
type JournalRepository struct {
	db *sql.DB
}

// NewJournalRepository creates a new JournalRepository.
func NewJournalRepository(db *sql.DB) *JournalRepository {
	return &JournalRepository{db: db}
}

// Append inserts one journal entry.
func (r *JournalRepository) Append(ctx context.Context, entry *model.JournalEntry) error {
	query := `
		INSERT INTO journal (id, kind, client, points, color, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	var color sql.NullString
	if entry.Color != "" {
		color = sql.NullString{String: entry.Color, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.Kind,
		entry.Client,
		entry.Points,
		color,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append journal entry: %w", err)
	}

	return nil
}

// List returns up to limit entries, newest first.
func (r *JournalRepository) List(ctx context.Context, limit int) ([]*model.JournalEntry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `
		SELECT id, kind, client, points, color, created_at
		FROM journal
		ORDER BY seq DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal: %w", err)
	}
	defer rows.Close()

	var entries []*model.JournalEntry
	for rows.Next() {
		entry := &model.JournalEntry{}
		var color sql.NullString

		if err := rows.Scan(
			&entry.ID,
			&entry.Kind,
			&entry.Client,
			&entry.Points,
			&color,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}

		if color.Valid {
			entry.Color = color.String
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating journal: %w", err)
	}

	return entries, nil
}

// Count returns the number of entries of the given kind.
func (r *JournalRepository) Count(ctx context.Context, kind model.JournalKind) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM journal WHERE kind = ?`
	if err := r.db.QueryRowContext(ctx, query, kind).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count journal entries: %w", err)
	}
	return count, nil
}
