// Package analysis scores screening summaries and records them for the
// mindwell-analysis service.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/rbright/mindwell/internal/screening"
	"github.com/rbright/mindwell/internal/telemetry"
)

// ErrEmptySummary is returned when a report carries no summary text.
var ErrEmptySummary = errors.New("summary is required")

// DefaultSource tags screenings submitted through the voice agent.
const DefaultSource = "ElevenLabs Agent"

// Report is one screening submission.
type Report struct {
	Summary string
	// PreliminaryScore is the agent's own estimate, when it sent one.
	PreliminaryScore *float64
}

// Analysis is the scored outcome of a report.
type Analysis struct {
	Score      float64
	Validation string
	Reasoning  string
}

// Screening is the persisted record of one analyzed report.
type Screening struct {
	ID         string
	Summary    string
	Score      float64
	Validation string
	Reasoning  string
	Analyzer   string
	Source     string
	CreatedAt  time.Time
}

// Analyzer scores a report.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, report Report) (Analysis, error)
}

// Store persists screenings.
type Store interface {
	Save(ctx context.Context, record Screening) error
	Ping(ctx context.Context) error
	Close() error
}

// Options tunes a Service. Zero values pick defaults.
type Options struct {
	Helplines []screening.Helpline
	Source    string
	Logger    *slog.Logger
	// Fallback runs when the primary analyzer fails. Nil uses KeywordAnalyzer.
	Fallback Analyzer
	Now      func() time.Time
}

// Service runs analysis and persistence for submitted reports.
type Service struct {
	analyzer  Analyzer
	fallback  Analyzer
	store     Store
	helplines []screening.Helpline
	source    string
	logger    *slog.Logger
	now       func() time.Time
}

// NewService wires an analyzer to a store.
func NewService(analyzer Analyzer, store Store, opts Options) *Service {
	fallback := opts.Fallback
	if fallback == nil {
		fallback = KeywordAnalyzer{}
	}
	if analyzer == nil {
		analyzer = fallback
	}
	helplines := screening.CloneHelplines(opts.Helplines)
	if len(helplines) == 0 {
		helplines = screening.DefaultHelplines()
	}
	source := strings.TrimSpace(opts.Source)
	if source == "" {
		source = DefaultSource
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		analyzer:  analyzer,
		fallback:  fallback,
		store:     store,
		helplines: helplines,
		source:    source,
		logger:    logger,
		now:       now,
	}
}

// Submit analyzes report and records the screening. A store failure is
// logged and does not fail the submission.
func (s *Service) Submit(ctx context.Context, report Report) (Analysis, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "analysis.submit")
	defer span.End()

	report.Summary = strings.TrimSpace(report.Summary)
	if report.Summary == "" {
		span.SetStatus(codes.Error, ErrEmptySummary.Error())
		return Analysis{}, ErrEmptySummary
	}
	span.SetAttributes(attribute.Int("summary.length", len(report.Summary)))

	used := s.analyzer
	result, err := used.Analyze(ctx, report)
	if err != nil && used != s.fallback {
		s.logger.Warn("analyzer failed; using fallback",
			"analyzer", used.Name(),
			"fallback", s.fallback.Name(),
			"error", err,
		)
		used = s.fallback
		result, err = used.Analyze(ctx, report)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Analysis{}, fmt.Errorf("analyze report: %w", err)
	}

	result.Score = screening.ClampScore(result.Score)
	result.Validation = strings.TrimSpace(result.Validation)
	if result.Validation == "" {
		result.Validation = screening.DefaultValidation
	}
	span.SetAttributes(
		attribute.String("analysis.analyzer", used.Name()),
		attribute.Float64("analysis.score", result.Score),
	)

	record := Screening{
		ID:         uuid.NewString(),
		Summary:    report.Summary,
		Score:      result.Score,
		Validation: result.Validation,
		Reasoning:  result.Reasoning,
		Analyzer:   used.Name(),
		Source:     s.source,
		CreatedAt:  s.now().UTC(),
	}
	if s.store != nil {
		if err := s.store.Save(ctx, record); err != nil {
			span.RecordError(err)
			s.logger.Error("screening not persisted", "id", record.ID, "error", err)
		}
	}

	s.logger.Info("screening analyzed",
		"id", record.ID,
		"analyzer", record.Analyzer,
		"score", record.Score,
		"tier", string(screening.Tier(record.Score)),
	)
	return result, nil
}

// Helplines returns a copy of the configured helpline list.
func (s *Service) Helplines() []screening.Helpline {
	return screening.CloneHelplines(s.helplines)
}

// Ping reports whether the store is reachable. No store is always healthy.
func (s *Service) Ping(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	return s.store.Ping(ctx)
}

// Watch pings the store every interval and reports reachability changes to
// onChange, starting with the first result. It returns when ctx is done.
func (s *Service) Watch(ctx context.Context, interval time.Duration, onChange func(healthy bool)) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	first, last := true, false
	check := func() {
		pingCtx, cancel := context.WithTimeout(ctx, interval)
		err := s.Ping(pingCtx)
		cancel()
		healthy := err == nil
		if !first && healthy == last {
			return
		}
		first, last = false, healthy
		if err != nil {
			s.logger.Warn("store unreachable", "error", err)
		}
		onChange(healthy)
	}

	check()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}
