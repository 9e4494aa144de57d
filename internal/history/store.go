package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ziadkadry99/textbook-qa/internal/db"
)

// timeLayout keeps millisecond precision so newest-first ordering holds
// for records written in quick succession.
const timeLayout = "2006-01-02 15:04:05.000"

// DefaultLimit caps ListQueries when no limit is given.
const DefaultLimit = 50

// Store persists query and ingestion records.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// RecordQuery inserts a query record. If rec.ID is empty a UUID is
// generated; a zero AskedAt is set to now.
func (s *Store) RecordQuery(ctx context.Context, rec QueryRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.AskedAt.IsZero() {
		rec.AskedAt = time.Now()
	}
	if rec.Sources == nil {
		rec.Sources = []string{}
	}

	sources, err := json.Marshal(rec.Sources)
	if err != nil {
		return fmt.Errorf("marshalling sources: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO queries (id, asked_at, question, answer, sources, error_kind, error, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.AskedAt.UTC().Format(timeLayout),
		rec.Question,
		rec.Answer,
		string(sources),
		rec.ErrorKind,
		rec.Error,
		rec.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("inserting query record: %w", err)
	}
	return nil
}

// ListQueries returns query records newest first.
func (s *Store) ListQueries(ctx context.Context, limit, offset int) ([]QueryRecord, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, asked_at, question, answer, sources, error_kind, error, duration_ms
		FROM queries ORDER BY asked_at DESC, rowid DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying query records: %w", err)
	}
	defer rows.Close()

	records := []QueryRecord{}
	for rows.Next() {
		var (
			rec         QueryRecord
			ts, sources string
		)
		if err := rows.Scan(&rec.ID, &ts, &rec.Question, &rec.Answer, &sources,
			&rec.ErrorKind, &rec.Error, &rec.DurationMS); err != nil {
			return nil, fmt.Errorf("scanning query record: %w", err)
		}
		rec.AskedAt = parseTime(ts)
		if err := json.Unmarshal([]byte(sources), &rec.Sources); err != nil {
			rec.Sources = nil
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// RecordIngest inserts an ingestion run.
func (s *Store) RecordIngest(ctx context.Context, run IngestRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.Failures == nil {
		run.Failures = map[string]string{}
	}

	failures, err := json.Marshal(run.Failures)
	if err != nil {
		return fmt.Errorf("marshalling failures: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ingest_runs (id, started_at, processed, skipped, chunks, failures, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.StartedAt.UTC().Format(timeLayout),
		run.Processed,
		run.Skipped,
		run.Chunks,
		string(failures),
		run.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("inserting ingest run: %w", err)
	}
	return nil
}

// ListIngestRuns returns ingestion runs newest first.
func (s *Store) ListIngestRuns(ctx context.Context, limit int) ([]IngestRun, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, processed, skipped, chunks, failures, duration_ms
		FROM ingest_runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying ingest runs: %w", err)
	}
	defer rows.Close()

	runs := []IngestRun{}
	for rows.Next() {
		var (
			run          IngestRun
			ts, failures string
		)
		if err := rows.Scan(&run.ID, &ts, &run.Processed, &run.Skipped, &run.Chunks,
			&failures, &run.DurationMS); err != nil {
			return nil, fmt.Errorf("scanning ingest run: %w", err)
		}
		run.StartedAt = parseTime(ts)
		if err := json.Unmarshal([]byte(failures), &run.Failures); err != nil {
			run.Failures = nil
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func parseTime(ts string) time.Time {
	for _, layout := range []string{timeLayout, time.DateTime, time.RFC3339Nano} {
		if t, err := time.Parse(layout, ts); err == nil {
			return t
		}
	}
	return time.Time{}
}
