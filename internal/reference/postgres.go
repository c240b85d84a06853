package reference

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/manifestcheck/internal/normalize"
)

// Postgres reads codes from the hs_codes table:
//
//	CREATE TABLE hs_codes (code text PRIMARY KEY, description text NOT NULL);
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres returns a lookup backed by pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) ByPrefix(ctx context.Context, prefix string) ([]Code, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT code, description FROM hs_codes WHERE code LIKE $1 || '%' ORDER BY code LIMIT $2`,
		normalize.HSDigits(prefix), DefaultLimit)
	if err != nil {
		return nil, fmt.Errorf("query hs_codes by prefix: %w", err)
	}
	return collectCodes(rows)
}

func (p *Postgres) Search(ctx context.Context, text string, limit int) ([]Code, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := p.pool.Query(ctx,
		`SELECT code, description FROM hs_codes WHERE description ILIKE '%' || $1 || '%' ORDER BY code LIMIT $2`,
		text, limit)
	if err != nil {
		return nil, fmt.Errorf("search hs_codes: %w", err)
	}
	return collectCodes(rows)
}

func collectCodes(rows pgx.Rows) ([]Code, error) {
	codes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Code, error) {
		var c Code
		err := row.Scan(&c.Code, &c.Description)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan hs_codes: %w", err)
	}
	return codes, nil
}
