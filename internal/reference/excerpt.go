package reference

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/manifestcheck/internal/config"
	"github.com/JonMunkholm/manifestcheck/internal/logging"
	"github.com/JonMunkholm/manifestcheck/internal/normalize"
)

// New selects the lookup for cfg: the HTTP dictionary when a URL is set,
// else the hs_codes table when pool is non-nil, else the built-in table.
// The result is cached.
func New(cfg config.ReferenceConfig, pool *pgxpool.Pool) (Lookup, error) {
	var source Lookup
	switch {
	case cfg.URL != "":
		source = NewHTTP(cfg.URL, cfg.Timeout)
	case pool != nil:
		source = NewPostgres(pool)
	default:
		source = Builtin()
	}
	return NewCached(source, cfg.CacheSize)
}

// excerptLimit caps each half of an excerpt.
const excerptLimit = 5

// Excerpt renders reference codes near hsCode and matching description as
// prompt text. Each lookup gets its own timeout; a failed or slow lookup
// contributes nothing.
func Excerpt(ctx context.Context, l Lookup, hsCode, description string, timeout time.Duration) string {
	if l == nil {
		return ""
	}

	var byPrefix, bySearch []Code
	if digits := headingDigits(hsCode); len(digits) >= 4 {
		byPrefix = bounded(ctx, timeout, "prefix", func(ctx context.Context) ([]Code, error) {
			return l.ByPrefix(ctx, digits[:4])
		})
	}
	if strings.TrimSpace(description) != "" {
		bySearch = bounded(ctx, timeout, "search", func(ctx context.Context) ([]Code, error) {
			return l.Search(ctx, description, excerptLimit)
		})
	}

	var b strings.Builder
	seen := map[string]bool{}
	write := func(codes []Code) {
		for i, c := range codes {
			if i == excerptLimit {
				break
			}
			if seen[c.Code] {
				continue
			}
			seen[c.Code] = true
			fmt.Fprintf(&b, "%s  %s\n", c.Code, c.Description)
		}
	}
	write(byPrefix)
	write(bySearch)
	return b.String()
}

// headingDigits returns the code's digits without the zero added by
// padding, so "0847120" looks up heading 8471.
func headingDigits(hsCode string) string {
	d := normalize.HSDigits(hsCode)
	if !normalize.IsDigits(d) {
		return ""
	}
	if len(d)%2 == 1 && d[0] == '0' {
		d = d[1:]
	}
	return d
}

func bounded(ctx context.Context, timeout time.Duration, op string, fn func(context.Context) ([]Code, error)) []Code {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	codes, err := fn(ctx)
	if err != nil {
		logging.FromContext(ctx).LogAttrs(ctx, slog.LevelWarn, "reference lookup failed",
			slog.String("op", op), slog.String("error", err.Error()))
		return nil
	}
	return codes
}
