package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// timeFormat is fixed-width UTC so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// Page size limits for List.
const (
	defaultLimit = 50
	maxLimit     = 500
)

// Entry is one recorded publish cycle.
type Entry struct {
	ID          string    `json:"id"`
	PublishedAt time.Time `json:"published_at"`
	Topic       string    `json:"topic"`
	Result      string    `json:"result"`
	Payload     string    `json:"payload,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// Filter controls which entries List returns.
type Filter struct {
	Result string // optional: only entries with this result
	Limit  int    // default 50, max 500
}

// Repository defines the publish history operations.
type Repository interface {
	Create(ctx context.Context, entry *Entry) error
	List(ctx context.Context, filter Filter) ([]Entry, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// SQLiteRepository stores publish history in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new publish history repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts an entry. The ID and PublishedAt are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, entry *Entry) error {
	if entry.ID == "" {
		entry.ID = "pub-" + uuid.NewString()
	}
	if entry.PublishedAt.IsZero() {
		entry.PublishedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO publish_history (id, published_at, topic, result, payload, error)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.PublishedAt.UTC().Format(timeFormat),
		entry.Topic,
		entry.Result,
		nullableString(entry.Payload),
		nullableString(entry.Error),
	)
	if err != nil {
		return fmt.Errorf("inserting publish history: %w", err)
	}
	return nil
}

// nullableString returns nil for empty strings so the column stores NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns entries matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) ([]Entry, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}

	query := `SELECT id, published_at, topic, result, payload, error FROM publish_history`
	var args []any
	if filter.Result != "" {
		query += ` WHERE result = ?`
		args = append(args, filter.Result)
	}
	query += ` ORDER BY published_at DESC, id LIMIT ?`
	args = append(args, filter.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying publish history: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var publishedAt string
		var payload, errText sql.NullString

		if err := rows.Scan(&e.ID, &publishedAt, &e.Topic, &e.Result, &payload, &errText); err != nil {
			return nil, fmt.Errorf("scanning publish history: %w", err)
		}
		e.Payload = payload.String
		e.Error = errText.String

		t, err := time.Parse(timeFormat, publishedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing publish history timestamp %q: %w", publishedAt, err)
		}
		e.PublishedAt = t

		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating publish history: %w", err)
	}

	return entries, nil
}

// Prune deletes entries published before the cutoff and returns how many
// were removed.
func (r *SQLiteRepository) Prune(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM publish_history WHERE published_at < ?`,
		before.UTC().Format(timeFormat),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning publish history: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning publish history: %w", err)
	}
	return n, nil
}
