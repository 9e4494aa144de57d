package qa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ziadkadry99/textbook-qa/internal/apperr"
	"github.com/ziadkadry99/textbook-qa/internal/history"
	"github.com/ziadkadry99/textbook-qa/internal/retriever"
	"github.com/ziadkadry99/textbook-qa/internal/vectordb"
)

var errServiceNotReady = errors.New("vector database not loaded")

// Retriever is the retrieval side the service depends on.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]retriever.CompressedResult, error)
	Search(ctx context.Context, query string, k int) ([]vectordb.Result, error)
	Ready() bool
}

// IndexStats reports the size of the loaded index.
type IndexStats interface {
	Count() int
}

// Recorder receives one record per question. Failures to record never
// affect the answer.
type Recorder interface {
	RecordQuery(ctx context.Context, rec history.QueryRecord) error
}

// Service is the query entry point shared by the CLI, HTTP and MCP surfaces.
type Service struct {
	retriever   Retriever
	synthesizer *Synthesizer
	stats       IndexStats
	recorder    Recorder
	logger      *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithRecorder logs every question to rec.
func WithRecorder(rec Recorder) ServiceOption {
	return func(s *Service) { s.recorder = rec }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService wires a retriever and a synthesizer. stats may be nil.
func NewService(r Retriever, synth *Synthesizer, stats IndexStats, opts ...ServiceOption) *Service {
	s := &Service{
		retriever:   r,
		synthesizer: synth,
		stats:       stats,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Health reports readiness and the number of indexed chunks.
func (s *Service) Health() Health {
	h := Health{Ready: s.retriever != nil && s.retriever.Ready()}
	if s.stats != nil {
		h.Entries = s.stats.Count()
	}
	return h
}

// Ask answers one question. Every failure is returned as an *apperr.Error;
// a partial answer is never returned.
func (s *Service) Ask(ctx context.Context, question string) (*Answer, error) {
	start := time.Now()
	q := strings.TrimSpace(question)

	ans, err := s.ask(ctx, q)
	if err != nil {
		err = classify("ask", err)
		ans = nil
	}
	s.record(ctx, q, ans, err, time.Since(start))
	return ans, err
}

func (s *Service) ask(ctx context.Context, q string) (*Answer, error) {
	if q == "" {
		return nil, apperr.InvalidInput("ask", "question must not be empty")
	}
	if s.retriever == nil || !s.retriever.Ready() {
		return nil, apperr.NotReady("ask", errServiceNotReady)
	}

	compressed, err := s.retriever.Retrieve(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("retrieving context: %w", err)
	}
	s.logger.Debug("retrieved context", "question", q, "chunks", len(compressed))

	return s.synthesizer.Answer(ctx, q, compressed)
}

// Search runs similarity search without compression or synthesis.
func (s *Service) Search(ctx context.Context, query string, k int) ([]vectordb.Result, error) {
	if s.retriever == nil {
		return nil, apperr.NotReady("search", errServiceNotReady)
	}
	results, err := s.retriever.Search(ctx, strings.TrimSpace(query), k)
	if err != nil {
		return nil, classify("search", err)
	}
	return results, nil
}

func (s *Service) record(ctx context.Context, q string, ans *Answer, err error, elapsed time.Duration) {
	if s.recorder == nil {
		return
	}
	rec := history.QueryRecord{
		Question:   q,
		DurationMS: elapsed.Milliseconds(),
		Sources:    []string{},
	}
	if ans != nil {
		rec.Answer = ans.Answer
		for _, d := range ans.RetrievedDocuments {
			rec.Sources = append(rec.Sources, d.Link+"#"+d.Page)
		}
	}
	if err != nil {
		var e *apperr.Error
		if errors.As(err, &e) {
			rec.ErrorKind = e.Reason()
			rec.Error = e.Detail()
		} else {
			rec.Error = err.Error()
		}
	}

	if recErr := s.recorder.RecordQuery(context.WithoutCancel(ctx), rec); recErr != nil {
		s.logger.Warn("failed to record query", "error", recErr)
	}
}

// classify returns the first *apperr.Error in err's chain, or wraps err in
// one. Deadlines count as provider failures.
func classify(op string, err error) error {
	var e *apperr.Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Provider(op, err)
	}
	return apperr.New(apperr.KindInternal, op, err)
}
