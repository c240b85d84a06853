// Package fixloop drives the iterative correction of a single record.
//
// Each attempt applies the rule engine's own autofixes, asks the
// collaborator for the rest, merges the canonical fields it returns and
// rescores the record locally. The loop stops when the record reaches the
// maximum score, when attempts run out, when the collaborator is
// unavailable, or when the context ends. Scores the collaborator reports
// about its own output are logged and otherwise ignored.
package fixloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/JonMunkholm/manifestcheck/internal/collab"
	"github.com/JonMunkholm/manifestcheck/internal/logging"
	"github.com/JonMunkholm/manifestcheck/internal/manifest"
	"github.com/JonMunkholm/manifestcheck/internal/mapping"
	"github.com/JonMunkholm/manifestcheck/internal/reference"
	"github.com/JonMunkholm/manifestcheck/internal/rules"
)

const (
	DefaultMaxAttempts = 5

	reaskDelay = 100 * time.Millisecond
)

// Config bounds a loop.
type Config struct {
	MaxAttempts int

	// Reasks is how many more times a malformed response is requested.
	// Zero disables re-asking.
	Reasks int

	CallTimeout   time.Duration
	LookupTimeout time.Duration
}

// Loop runs fix sessions. It holds no per-session state and is safe for
// concurrent use.
type Loop struct {
	client collab.Client
	lookup reference.Lookup
	engine *rules.Engine
	cfg    Config
}

// New returns a loop. A nil client behaves like collab.Nop; a nil lookup
// sends prompts without reference excerpts.
func New(client collab.Client, lookup reference.Lookup, engine *rules.Engine, cfg Config) *Loop {
	if client == nil {
		client = collab.Nop{}
	}
	if engine == nil {
		engine = rules.New(rules.Options{})
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Reasks < 0 {
		cfg.Reasks = 0
	}
	return &Loop{client: client, lookup: lookup, engine: engine, cfg: cfg}
}

// Request is one record to fix.
type Request struct {
	Record manifest.Record

	// Columns is the record's column map. When empty, every canonical field
	// present on the record is treated as mapped.
	Columns mapping.ColumnMap

	// Issues seeds the first attempt. When empty the record is validated.
	Issues []manifest.Issue

	// DeclaredScore is the caller's score. It is logged, never trusted.
	DeclaredScore int
}

// Attempt records what one attempt did.
type Attempt struct {
	Number  int              `json:"number"`
	Score   int              `json:"score"`
	Autofix []manifest.Field `json:"autofix,omitempty"`
	Changed []manifest.Field `json:"changed,omitempty"`
	Claimed float64          `json:"claimed,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// Result is the outcome of a session.
type Result struct {
	SessionID    string                    `json:"session_id"`
	Record       manifest.Record           `json:"-"`
	Fields       map[manifest.Field]string `json:"record"`
	InitialScore int                       `json:"initial_score"`
	Score        int                       `json:"score"`
	Attempts     int                       `json:"attempts"`
	State        string                    `json:"state"`
	Success      bool                      `json:"success"`
	FallbackUsed bool                      `json:"fallback_used"`
	Issues       []manifest.Issue          `json:"issues"`
	History      []Attempt                 `json:"history"`
}

// state is the per-session loop state. The record held is always the best
// scoring one seen so far.
type state struct {
	record  manifest.Record
	score   int
	attempt int
}

// Run fixes one record. A cancelled context ends the session with the best
// record found so far; it is not an error.
func (l *Loop) Run(ctx context.Context, req Request) (*Result, error) {
	sessionID := uuid.NewString()
	ctx = logging.ContextWith(ctx, "session_id", sessionID, "row", req.Record.Row)
	logger := logging.FromContext(ctx)

	cols := req.Columns
	if len(cols.Columns) == 0 {
		cols = canonicalColumns(req.Record)
	}
	issues := req.Issues
	if len(issues) == 0 {
		issues = l.engine.ValidateRecord(req.Record, cols)
	}

	st := &state{record: req.Record, score: rules.Score(req.Record)}
	res := &Result{SessionID: sessionID, InitialScore: st.score, History: []Attempt{}}
	if req.DeclaredScore != 0 && req.DeclaredScore != st.score {
		logger.Info("declared score differs from computed score",
			"declared", req.DeclaredScore, "computed", st.score)
	}

	m := newMachine()
	// transitions must complete even after ctx is cancelled
	fire := func(event string) error {
		if err := m.Event(context.WithoutCancel(ctx), event); err != nil {
			return fmt.Errorf("fix loop %s from %s: %w", event, m.Current(), err)
		}
		return nil
	}
	if err := fire(eventStart); err != nil {
		return nil, err
	}

	for !terminal(m.Current()) {
		var event string
		switch {
		case ctx.Err() != nil:
			event = eventCancel
		case st.score >= rules.MaxScore:
			event = eventSucceed
		case st.attempt >= l.cfg.MaxAttempts:
			event = eventExhaust
		}
		if event != "" {
			if err := fire(event); err != nil {
				return nil, err
			}
			break
		}

		if err := fire(eventCorrect); err != nil {
			return nil, err
		}
		st.attempt++

		attempt, unavailable := l.attempt(ctx, st, cols, issues)
		if attempt.Error != "" {
			res.FallbackUsed = true
		}
		res.History = append(res.History, attempt)
		logger.Info("fix attempt scored",
			"attempt", attempt.Number, "score", attempt.Score,
			"changed", len(attempt.Changed), "claimed", attempt.Claimed)

		if unavailable && st.score < rules.MaxScore {
			if err := fire(eventExhaust); err != nil {
				return nil, err
			}
			break
		}
		if err := fire(eventRescore); err != nil {
			return nil, err
		}
		issues = l.engine.ValidateRecord(st.record, cols)
	}

	res.Record = st.record
	res.Fields = st.record.Fields
	res.Score = st.score
	res.Attempts = st.attempt
	res.State = m.Current()
	res.Success = st.score >= rules.MaxScore
	res.Issues = l.engine.ValidateRecord(st.record, cols)
	if res.Issues == nil {
		res.Issues = []manifest.Issue{}
	}
	logger.Info("fix session finished", "state", res.State, "score", res.Score, "attempts", res.Attempts)
	return res, nil
}

// attempt runs one correction round and updates st when the candidate
// scores at least as well. unavailable reports that no collaborator can be
// reached.
func (l *Loop) attempt(ctx context.Context, st *state, cols mapping.ColumnMap, issues []manifest.Issue) (Attempt, bool) {
	a := Attempt{Number: st.attempt}
	candidate := st.record

	for _, is := range issues {
		if is.Autofix == nil || !manifest.IsField(string(is.Field)) {
			continue
		}
		if candidate.Get(is.Field) == *is.Autofix {
			continue
		}
		candidate = candidate.With(headerFor(cols, is.Field), is.Field, *is.Autofix)
		a.Autofix = append(a.Autofix, is.Field)
	}

	unavailable := false
	if rules.Score(candidate) < rules.MaxScore {
		resp, err := l.ask(ctx, candidate, l.engine.ValidateRecord(candidate, cols))
		switch {
		case err != nil:
			a.Error = err.Error()
			unavailable = errors.Is(err, collab.ErrUnavailable)
			if !unavailable {
				logging.FromContext(ctx).LogAttrs(ctx, slog.LevelWarn, "collaborator fallback",
					slog.Int("attempt", a.Number), slog.String("error", err.Error()))
			}
		default:
			a.Claimed = resp.Claimed
			for _, f := range manifest.Fields {
				v, ok := resp.Record[f]
				if !ok || candidate.Get(f) == v {
					continue
				}
				candidate = candidate.With(headerFor(cols, f), f, v)
				a.Changed = append(a.Changed, f)
			}
		}
	}

	if score := rules.Score(candidate); score >= st.score {
		st.record = candidate
		st.score = score
	}
	a.Score = st.score
	return a, unavailable
}

// ask requests a correction, re-asking when the reply cannot be used.
func (l *Loop) ask(ctx context.Context, rec manifest.Record, issues []manifest.Issue) (*collab.FixResponse, error) {
	excerpt := reference.Excerpt(ctx, l.lookup,
		rec.Get(manifest.FieldHSCode), rec.Get(manifest.FieldDescription), l.cfg.LookupTimeout)

	var resp *collab.FixResponse
	reask := false
	backoff := retry.WithMaxRetries(uint64(l.cfg.Reasks), retry.NewConstant(reaskDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		prompt, err := buildPrompt(rec, issues, excerpt, reask)
		if err != nil {
			return err
		}
		reask = true

		callCtx := ctx
		if l.cfg.CallTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, l.cfg.CallTimeout)
			defer cancel()
		}

		text, err := l.client.Complete(callCtx, prompt)
		if err != nil {
			if errors.Is(err, collab.ErrEmptyResponse) {
				return retry.RetryableError(err)
			}
			return err
		}
		parsed, err := collab.ParseFix(text)
		if err != nil {
			return retry.RetryableError(err)
		}
		resp = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// headerFor returns the source column bound to f, or the field name.
func headerFor(cols mapping.ColumnMap, f manifest.Field) string {
	if h := cols.Header(f); h != "" {
		return h
	}
	return string(f)
}

func canonicalColumns(rec manifest.Record) mapping.ColumnMap {
	cm := mapping.ColumnMap{Columns: map[manifest.Field]mapping.Column{}}
	i := 0
	for _, f := range manifest.Fields {
		if rec.Has(f) {
			cm.Columns[f] = mapping.Column{Header: string(f), Index: i}
			i++
			continue
		}
		cm.Missing = append(cm.Missing, f)
	}
	return cm
}
