package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/manifestcheck/internal/collab"
	"github.com/JonMunkholm/manifestcheck/internal/config"
	"github.com/JonMunkholm/manifestcheck/internal/correct"
	"github.com/JonMunkholm/manifestcheck/internal/dedupe"
	"github.com/JonMunkholm/manifestcheck/internal/fixloop"
	"github.com/JonMunkholm/manifestcheck/internal/logging"
	"github.com/JonMunkholm/manifestcheck/internal/manifest"
	"github.com/JonMunkholm/manifestcheck/internal/mapping"
	"github.com/JonMunkholm/manifestcheck/internal/metrics"
	"github.com/JonMunkholm/manifestcheck/internal/parser"
	"github.com/JonMunkholm/manifestcheck/internal/reference"
	"github.com/JonMunkholm/manifestcheck/internal/report"
	"github.com/JonMunkholm/manifestcheck/internal/rules"
)

var (
	ErrNoFile         = errors.New("no file provided")
	ErrEmptyFile      = errors.New("empty file")
	ErrFileTooLarge   = errors.New("file too large")
	ErrInvalidRequest = errors.New("invalid request")
	ErrReportNotFound = errors.New("report not found")
	ErrStoreDisabled  = errors.New("report storage is not configured")
)

// DefaultTimeout bounds the processing of one document.
const DefaultTimeout = 2 * time.Minute

// Options wires a Service. Nil fields get working defaults: the built-in
// header patterns, the standard rule set, a loop without a collaborator
// and a limiter with default bounds. A nil Store disables saved reports.
type Options struct {
	Patterns *mapping.Patterns
	Engine   *rules.Engine
	Loop     *fixloop.Loop
	Narrator report.Narrator
	Store    ReportStore
	Limiter  *DocumentLimiter
	Metrics  *metrics.Metrics

	MaxFileSize int64
	Timeout     time.Duration
}

// Service runs the compliance pipeline for the web and CLI front ends. It
// holds no per-document state and is safe for concurrent use.
type Service struct {
	patterns *mapping.Patterns
	engine   *rules.Engine
	loop     *fixloop.Loop
	narrator report.Narrator
	store    ReportStore
	limiter  *DocumentLimiter
	metrics  *metrics.Metrics

	maxFileSize int64
	timeout     time.Duration
	validate    *validator.Validate
}

// NewService creates a Service from opts.
func NewService(opts Options) *Service {
	s := &Service{
		patterns:    opts.Patterns,
		engine:      opts.Engine,
		loop:        opts.Loop,
		narrator:    opts.Narrator,
		store:       opts.Store,
		limiter:     opts.Limiter,
		metrics:     opts.Metrics,
		maxFileSize: opts.MaxFileSize,
		timeout:     opts.Timeout,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
	if s.patterns == nil {
		s.patterns = mapping.DefaultPatterns()
	}
	if s.engine == nil {
		s.engine = rules.New(rules.Options{})
	}
	if s.loop == nil {
		s.loop = fixloop.New(nil, nil, s.engine, fixloop.Config{})
	}
	if s.limiter == nil {
		s.limiter = NewDocumentLimiter(DefaultMaxConcurrent, DefaultMaxWaitTime)
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	return s
}

// NewServiceFromConfig builds the full pipeline from configuration. pool may
// be nil, in which case reports are kept in memory and tariff references
// come from the HTTP dictionary or the built-in table.
func NewServiceFromConfig(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, m *metrics.Metrics) (*Service, error) {
	patterns := mapping.DefaultPatterns()
	if cfg.Mapping.PatternsFile != "" {
		loaded, err := mapping.LoadPatterns(cfg.Mapping.PatternsFile)
		if err != nil {
			return nil, err
		}
		patterns = loaded
	}

	tolerance, err := decimal.NewFromString(cfg.Rules.DutyTolerance)
	if err != nil {
		return nil, fmt.Errorf("parse duty tolerance: %w", err)
	}
	ruleOpts := rules.Options{DutyTolerance: tolerance, Workers: cfg.Upload.ValidationWorkers}
	if cfg.Rules.HSRangeEnabled {
		ruleOpts.HSRange = &rules.Range{Min: cfg.Rules.HSRangeMin, Max: cfg.Rules.HSRangeMax}
	}
	engine := rules.New(ruleOpts)

	client, err := collab.New(cfg.Collaborator)
	if err != nil {
		return nil, err
	}
	lookup, err := reference.New(cfg.Reference, pool)
	if err != nil {
		return nil, fmt.Errorf("create reference lookup: %w", err)
	}

	opts := Options{
		Patterns: patterns,
		Engine:   engine,
		Loop: fixloop.New(client, lookup, engine, fixloop.Config{
			MaxAttempts:   cfg.Collaborator.MaxAttempts,
			Reasks:        cfg.Collaborator.Reasks,
			CallTimeout:   cfg.Collaborator.Timeout,
			LookupTimeout: cfg.Reference.Timeout,
		}),
		Limiter:     NewDocumentLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		Metrics:     m,
		MaxFileSize: cfg.Upload.MaxFileSize,
		Timeout:     cfg.Upload.Timeout,
	}
	if cfg.Collaborator.Enabled() {
		opts.Narrator = &collab.Narrator{Client: client, Timeout: cfg.Collaborator.Timeout}
	}

	if pool != nil {
		store := NewPGStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		opts.Store = store
	} else {
		opts.Store = NewMemoryStore(DefaultMemoryReports)
	}

	return NewService(opts), nil
}

// AnalyzeOptions controls optional analysis steps.
type AnalyzeOptions struct {
	// Persist saves the report so it can be fetched with Report.
	Persist bool

	// Narrative asks the collaborator to write the summary.
	Narrative bool
}

// Analyze parses, validates and scores one document.
//
// A document that cannot be parsed is not an error: the result is a
// zero-record report carrying a single critical issue, and so is empty
// content. Errors are returned only for a missing file, oversize input,
// limiter saturation and cancellation.
func (s *Service) Analyze(ctx context.Context, fileName string, data []byte, opts AnalyzeOptions) (*report.Report, error) {
	if err := s.checkInput(fileName, data); err != nil {
		return nil, err
	}

	ctx, release, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	logger := logging.WithFields(ctx, "file", fileName, "bytes", len(data))

	doc, err := parser.Parse(fileName, data)
	if err != nil {
		msg := MapError(err)
		logger.Warn("document could not be parsed", "error", err, "code", msg.Code)
		s.metrics.ObserveAnalyze(start, string(doc.Kind), "failed", 0, nil)
		rep := report.Failed(fileName, doc.Kind, msg.Code, msg.Message)
		s.persist(ctx, rep, opts.Persist)
		return rep, nil
	}

	mapped, cols := s.patterns.MapDocument(doc)
	issues, err := s.engine.Validate(ctx, mapped, cols)
	if err != nil {
		return nil, err
	}
	groups := dedupe.Detect(mapped.Records)
	rep := report.Build(mapped, cols, issues, groups)

	if opts.Narrative {
		if err := rep.Narrate(ctx, s.narrator); err != nil {
			logger.Warn("narrative unavailable, keeping rule summary", "error", err)
		}
		if rep.FallbackUsed {
			s.metrics.ObserveNarrativeFallback()
		}
	}

	s.persist(ctx, rep, opts.Persist)
	s.metrics.ObserveAnalyze(start, string(doc.Kind), "ok", rep.RecordCount, severityCounts(rep.Errors))

	logger.Info("document analyzed",
		"report_id", rep.ID,
		"kind", doc.Kind,
		"records", rep.RecordCount,
		"issues", len(rep.Errors),
		"score", rep.Score,
	)
	return rep, nil
}

// Correct applies every automatic fix, removes duplicate lines and
// regenerates the document. An empty format keeps the input format; an
// unknown one produces JSON. Unlike Analyze, a document that cannot be
// parsed is an error since there is nothing to regenerate.
func (s *Service) Correct(ctx context.Context, fileName string, data []byte, format string) (*correct.Output, error) {
	if err := s.checkInput(fileName, data); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	ctx, release, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	doc, err := parser.Parse(fileName, data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", fileName, err)
	}
	mapped, cols := s.patterns.MapDocument(doc)

	var out manifest.Format
	if format != "" {
		out, _ = manifest.ParseFormat(format)
	}
	result, err := correct.Correct(mapped, cols, correct.Options{Format: out, Rules: s.engine})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveCorrect(string(result.Format))
	logging.FromContext(ctx).Info("document corrected",
		"file", fileName,
		"format", result.Format,
		"issues_fixed", result.IssuesFixed,
		"duplicates_removed", result.DuplicatesRemoved,
		"client_ip", IPAddressFromContext(ctx),
		"client_ua", UserAgentFromContext(ctx),
	)
	return result, nil
}

// FixRequest is one record submitted for iterative correction. Record keys
// may be source headers or canonical field names.
type FixRequest struct {
	Record map[string]any   `json:"record" validate:"required,min=1"`
	Issues []manifest.Issue `json:"issues"`
	Score  int              `json:"score" validate:"gte=0,lte=100"`

	// Keys is the caller's key order for Record. Header mapping binds the
	// first matching key, so order matters when two keys match one field.
	// Keys missing here follow in sorted order.
	Keys []string `json:"-"`
}

// UnmarshalJSON decodes a request and keeps the record's key order.
func (r *FixRequest) UnmarshalJSON(b []byte) error {
	type plain FixRequest
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*r = FixRequest(p)
	r.Keys = parser.ObjectKeys(b, "record")
	return nil
}

// orderedRecord encodes rec as a JSON object with keys in the given order.
func orderedRecord(rec map[string]any, keys []string) ([]byte, error) {
	seen := make(map[string]bool, len(rec))
	ordered := make([]string, 0, len(rec))
	for _, k := range keys {
		if _, ok := rec[k]; ok && !seen[k] {
			seen[k] = true
			ordered = append(ordered, k)
		}
	}
	var rest []string
	for k := range rec {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	ordered = append(ordered, rest...)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range ordered {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(rec[k])
		if err != nil {
			return nil, fmt.Errorf("record field %s: %w", k, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Fix runs a fix session for one record.
func (s *Service) Fix(ctx context.Context, req FixRequest) (*fixloop.Result, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	ctx, release, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	data, err := orderedRecord(req.Record, req.Keys)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	doc, err := parser.FromValue("record", data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	mapped, cols := s.patterns.MapDocument(doc)

	result, err := s.loop.Run(ctx, fixloop.Request{
		Record:        mapped.Records[0],
		Columns:       cols,
		Issues:        req.Issues,
		DeclaredScore: req.Score,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveFix(result.State, result.Attempts, result.FallbackUsed)
	logging.FromContext(ctx).Info("fix session finished",
		"session_id", result.SessionID,
		"state", result.State,
		"score", result.Score,
		"client_ip", IPAddressFromContext(ctx),
		"client_ua", UserAgentFromContext(ctx),
	)
	return result, nil
}

// Report returns a saved report.
func (s *Service) Report(ctx context.Context, id string) (*report.Report, error) {
	if s.store == nil {
		return nil, ErrStoreDisabled
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrReportNotFound, id)
	}
	return s.store.Get(ctx, id)
}

// LimiterStatus reports document slot usage.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForDrain blocks until no document is being processed or ctx ends.
func (s *Service) WaitForDrain(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

func (s *Service) checkInput(fileName string, data []byte) error {
	if fileName == "" && data == nil {
		return ErrNoFile
	}
	if s.maxFileSize > 0 && int64(len(data)) > s.maxFileSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, len(data), s.maxFileSize)
	}
	return nil
}

// begin takes a limiter slot and applies the processing timeout. The
// returned release must be called exactly once.
func (s *Service) begin(ctx context.Context) (context.Context, func(), error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		if errors.Is(err, ErrTooManyDocuments) {
			s.metrics.IncrementLimiterRejection()
		}
		return ctx, nil, err
	}
	done := s.metrics.TrackInProgress()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	return ctx, func() {
		cancel()
		done()
		s.limiter.Release()
	}, nil
}

// persist saves rep when asked. Storage failures are logged; the report is
// still returned to the caller.
func (s *Service) persist(ctx context.Context, rep *report.Report, requested bool) {
	if !requested {
		return
	}
	logger := logging.FromContext(ctx)
	if s.store == nil {
		logger.Warn("report persistence requested but no store is configured", "report_id", rep.ID)
		return
	}
	if err := s.store.Save(ctx, rep); err != nil {
		logger.Error("failed to save report", "report_id", rep.ID, "error", err)
		return
	}
	logger.Debug("report saved", slog.String("report_id", rep.ID))
}

func severityCounts(issues []manifest.Issue) map[string]int {
	counts := make(map[string]int, 4)
	for _, is := range issues {
		counts[string(is.Severity)]++
	}
	return counts
}
