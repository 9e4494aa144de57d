// Package history keeps a log of answered questions and ingestion runs.
package history

import "time"

// QueryRecord is a single question asked through the service, successful
// or not.
type QueryRecord struct {
	ID         string    `json:"id"`
	AskedAt    time.Time `json:"asked_at"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer,omitempty"`
	Sources    []string  `json:"sources"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
}

// IngestRun summarizes one ingestion invocation.
type IngestRun struct {
	ID         string            `json:"id"`
	StartedAt  time.Time         `json:"started_at"`
	Processed  int               `json:"processed"`
	Skipped    int               `json:"skipped"`
	Chunks     int               `json:"chunks"`
	Failures   map[string]string `json:"failures"`
	DurationMS int64             `json:"duration_ms"`
}
