package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/manifestcheck/internal/report"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// ReportStore persists analyzed reports so they can be fetched by ID.
type ReportStore interface {
	Save(ctx context.Context, r *report.Report) error
	Get(ctx context.Context, id string) (*report.Report, error)
}

// DefaultMemoryReports is the number of reports a MemoryStore keeps.
const DefaultMemoryReports = 256

// MemoryStore keeps the most recent reports in process. It is used when no
// database is configured.
type MemoryStore struct {
	cache *lru.Cache[string, *report.Report]
}

// NewMemoryStore returns a store holding up to size reports.
func NewMemoryStore(size int) *MemoryStore {
	if size <= 0 {
		size = DefaultMemoryReports
	}
	cache, err := lru.New[string, *report.Report](size)
	if err != nil {
		// Only returned for a non-positive size.
		panic(err)
	}
	return &MemoryStore{cache: cache}
}

func (s *MemoryStore) Save(_ context.Context, r *report.Report) error {
	s.cache.Add(r.ID, r)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*report.Report, error) {
	r, ok := s.cache.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrReportNotFound, id)
	}
	return r, nil
}

const reportsSchema = `
CREATE TABLE IF NOT EXISTS compliance_reports (
    id           UUID PRIMARY KEY,
    file_name    TEXT NOT NULL,
    kind         TEXT NOT NULL,
    score        INTEGER NOT NULL,
    record_count INTEGER NOT NULL,
    body         JSONB NOT NULL,
    ip_address   INET,
    user_agent   TEXT,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PGStore stores reports in Postgres as JSONB alongside a few indexed
// columns for ad-hoc querying.
type PGStore struct {
	db DBTX
}

// NewPGStore wraps db. Call EnsureSchema once at startup.
func NewPGStore(db DBTX) *PGStore {
	return &PGStore{db: db}
}

// EnsureSchema creates the reports table if it does not exist.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, reportsSchema); err != nil {
		return fmt.Errorf("create compliance_reports: %w", err)
	}
	return nil
}

// Save inserts r. The client address and User-Agent are taken from ctx.
func (s *PGStore) Save(ctx context.Context, r *report.Report) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	_, err = s.db.Exec(ctx, `
INSERT INTO compliance_reports (id, file_name, kind, score, record_count, body, ip_address, user_agent, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ID, r.FileName, string(r.Kind), r.Score, r.RecordCount, body,
		parseClientAddr(IPAddressFromContext(ctx)), toPgText(UserAgentFromContext(ctx)), r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// Get loads a report by ID.
func (s *PGStore) Get(ctx context.Context, id string) (*report.Report, error) {
	var body []byte
	err := s.db.QueryRow(ctx, `SELECT body FROM compliance_reports WHERE id = $1`, id).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrReportNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load report: %w", err)
	}

	var r report.Report
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &r, nil
}

func toPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// parseClientAddr strips a port if present. Unparseable input stores NULL.
func parseClientAddr(s string) *netip.Addr {
	if s == "" {
		return nil
	}
	host := s
	if h, _, err := net.SplitHostPort(s); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return nil
	}
	return &addr
}
