package meal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"nutrition-bot/internal/nutrition"

	sq "github.com/Masterminds/squirrel"
)

// ErrPersistence means the store could not durably record or read meals.
var ErrPersistence = errors.New("meal store failure")

// Record is one classified meal as persisted. Records are append-only:
// created once after a successful classification, never updated or deleted.
type Record struct {
	ID             int64
	UserID         string
	Timestamp      time.Time
	ImageRef       string
	Description    string
	Classification nutrition.Classification
}

// Repository is the SQLite-backed meal store.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a Repository on top of an open database handle.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Append inserts one meal record and returns its assigned id. The record is
// durably visible to queries issued after Append returns.
func (r *Repository) Append(ctx context.Context, rec Record) (int64, error) {
	classJSON, err := json.Marshal(rec.Classification)
	if err != nil {
		return 0, fmt.Errorf("%w: marshal classification: %v", ErrPersistence, err)
	}

	query, args, err := sq.Insert("meals").
		Columns("user_id", "timestamp", "image_ref", "description", "classification_json").
		Values(rec.UserID, formatTimestamp(rec.Timestamp), nullable(rec.ImageRef), nullable(rec.Description), string(classJSON)).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("%w: build insert: %v", ErrPersistence, err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%w: insert meal: %v", ErrPersistence, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: read insert id: %v", ErrPersistence, err)
	}
	return id, nil
}

// Classifications returns the stored classification of every meal for the
// user, oldest first. A non-nil since bounds the scan to meals with
// timestamp at or after it.
func (r *Repository) Classifications(ctx context.Context, userID string, since *time.Time) ([]nutrition.Classification, error) {
	builder := sq.Select("classification_json").
		From("meals").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("timestamp ASC")
	if since != nil {
		builder = builder.Where(sq.GtOrEq{"timestamp": formatTimestamp(*since)})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: build query: %v", ErrPersistence, err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query meals: %v", ErrPersistence, err)
	}
	defer rows.Close()

	var classifications []nutrition.Classification
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("%w: scan meal: %v", ErrPersistence, err)
		}
		var c nutrition.Classification
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			return nil, fmt.Errorf("%w: decode classification: %v", ErrPersistence, err)
		}
		classifications = append(classifications, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate meals: %v", ErrPersistence, err)
	}
	return classifications, nil
}

// formatTimestamp renders a UTC timestamp at second precision. All stored
// timestamps share this shape so that SQLite's lexicographic TEXT comparison
// matches chronological order.
func formatTimestamp(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
