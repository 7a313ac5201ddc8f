package metrics

import (
	"database/sql"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"

	"nutrition-bot/internal/llm"
)

// Store handles persistence of model call metadata to SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore initializes the Store with an existing database connection.
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Record saves one call's metadata. Bookkeeping never interrupts the
// pipeline: failures are logged and dropped.
func (s *Store) Record(meta llm.CallMeta) {
	if meta.Usage.PromptTokens == 0 && meta.Usage.CompletionTokens == 0 {
		return
	}

	query, args, err := sq.Insert("model_calls").
		Columns("operation", "model", "prompt_tokens", "completion_tokens", "latency_ms", "created_at").
		Values(
			meta.Operation,
			meta.Usage.Model,
			meta.Usage.PromptTokens,
			meta.Usage.CompletionTokens,
			meta.Latency.Milliseconds(),
			formatTimestamp(time.Now()),
		).
		ToSql()
	if err != nil {
		s.logger.Error("failed to build model call insert", slog.Any("error", err))
		return
	}

	if _, err := s.db.Exec(query, args...); err != nil {
		s.logger.Error("failed to record model call",
			slog.String("operation", meta.Operation), slog.Any("error", err))
	}
}

// DailyUsage represents token totals for a single day.
type DailyUsage struct {
	Date             string
	PromptTokens     int
	CompletionTokens int
	Calls            int
}

// GetDailyUsage aggregates usage for the last N days, most recent day first.
func (s *Store) GetDailyUsage(days int) ([]DailyUsage, error) {
	since := formatTimestamp(time.Now().AddDate(0, 0, -days))

	query, args, err := sq.Select(
		"substr(created_at, 1, 10) AS day",
		"SUM(prompt_tokens)",
		"SUM(completion_tokens)",
		"COUNT(*)",
	).From("model_calls").
		Where(sq.GtOrEq{"created_at": since}).
		GroupBy("day").
		OrderBy("day DESC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []DailyUsage
	for rows.Next() {
		var u DailyUsage
		if err := rows.Scan(&u.Date, &u.PromptTokens, &u.CompletionTokens, &u.Calls); err != nil {
			return nil, err
		}
		results = append(results, u)
	}
	return results, rows.Err()
}

// Cleanup removes call records older than the specified number of days and
// reports how many were deleted.
func (s *Store) Cleanup(olderThanDays int) (int64, error) {
	threshold := formatTimestamp(time.Now().AddDate(0, 0, -olderThanDays))

	query, args, err := sq.Delete("model_calls").
		Where(sq.Lt{"created_at": threshold}).
		ToSql()
	if err != nil {
		return 0, err
	}

	res, err := s.db.Exec(query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// formatTimestamp renders a UTC second-precision RFC3339 string. Stored as
// TEXT, these compare lexicographically in the same order as chronologically.
func formatTimestamp(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}
