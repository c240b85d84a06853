package reference

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/manifestcheck/internal/config"
)

func TestStatic_ByPrefix(t *testing.T) {
	codes, err := Builtin().ByPrefix(context.Background(), "84.71")
	require.NoError(t, err)
	require.Len(t, codes, 3)
	assert.Equal(t, "8471", codes[0].Code)
	assert.Equal(t, "847130", codes[1].Code)
}

func TestStatic_Search(t *testing.T) {
	codes, err := Builtin().Search(context.Background(), "Laptops and computers", 2)
	require.NoError(t, err)
	require.NotEmpty(t, codes)
	assert.Equal(t, "8471", codes[0].Code)
	assert.LessOrEqual(t, len(codes), 2)

	codes, err = Builtin().Search(context.Background(), "a b", 5)
	require.NoError(t, err)
	assert.Empty(t, codes)
}

func TestHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/codes":
			assert.Equal(t, "8471", r.URL.Query().Get("prefix"))
			w.Write([]byte(`[{"code":"847130","description":"Laptops"}]`))
		case "/search":
			assert.Equal(t, "3", r.URL.Query().Get("limit"))
			w.Write([]byte(`[{"code":"0902","description":"Tea"}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	h := NewHTTP(srv.URL, time.Second)

	codes, err := h.ByPrefix(context.Background(), "8471")
	require.NoError(t, err)
	assert.Equal(t, []Code{{Code: "847130", Description: "Laptops"}}, codes)

	codes, err = h.Search(context.Background(), "green tea", 3)
	require.NoError(t, err)
	assert.Equal(t, "0902", codes[0].Code)
}

func TestHTTP_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewHTTP(srv.URL, time.Second).ByPrefix(context.Background(), "8471")
	assert.ErrorContains(t, err, "status 400")
}

type countingLookup struct {
	calls atomic.Int32
	err   error
}

func (c *countingLookup) ByPrefix(context.Context, string) ([]Code, error) {
	c.calls.Add(1)
	return []Code{{Code: "8471"}}, c.err
}

func (c *countingLookup) Search(context.Context, string, int) ([]Code, error) {
	c.calls.Add(1)
	return []Code{{Code: "0902"}}, c.err
}

func TestCached(t *testing.T) {
	next := &countingLookup{}
	c, err := NewCached(next, 8)
	require.NoError(t, err)

	for range 3 {
		_, err := c.ByPrefix(context.Background(), "8471")
		require.NoError(t, err)
	}
	_, _ = c.Search(context.Background(), "tea", 5)
	_, _ = c.Search(context.Background(), "tea", 6)

	assert.Equal(t, int32(3), next.calls.Load())
}

func TestCached_ErrorsNotCached(t *testing.T) {
	next := &countingLookup{err: errors.New("down")}
	c, err := NewCached(next, 8)
	require.NoError(t, err)

	_, err = c.ByPrefix(context.Background(), "8471")
	assert.Error(t, err)
	_, err = c.ByPrefix(context.Background(), "8471")
	assert.Error(t, err)
	assert.Equal(t, int32(2), next.calls.Load())
}

type slowLookup struct{}

func (slowLookup) ByPrefix(ctx context.Context, _ string) ([]Code, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (slowLookup) Search(ctx context.Context, _ string, _ int) ([]Code, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestExcerpt(t *testing.T) {
	got := Excerpt(context.Background(), Builtin(), "847120", "laptops", time.Second)
	assert.Contains(t, got, "8471  Automatic data processing machines")
	assert.Contains(t, got, "847130")

	// slow sources time out and contribute nothing
	start := time.Now()
	assert.Empty(t, Excerpt(context.Background(), slowLookup{}, "847120", "laptops", 20*time.Millisecond))
	assert.Less(t, time.Since(start), time.Second)

	assert.Empty(t, Excerpt(context.Background(), nil, "847120", "laptops", time.Second))
	assert.Empty(t, Excerpt(context.Background(), Builtin(), "", "", time.Second))
}

func TestNew_DefaultsToBuiltin(t *testing.T) {
	l, err := New(config.ReferenceConfig{CacheSize: 4}, nil)
	require.NoError(t, err)

	codes, err := l.ByPrefix(context.Background(), "0902")
	require.NoError(t, err)
	require.Len(t, codes, 1)
	assert.Equal(t, "Tea, whether or not flavoured", codes[0].Description)
}

func TestHeadingDigits(t *testing.T) {
	tests := map[string]string{
		"8471.20":    "847120",
		"0847120":    "847120",
		"0902300000": "0902300000",
		"HS-XX":      "",
	}
	for in, want := range tests {
		assert.Equal(t, want, headingDigits(in), "headingDigits(%q)", in)
	}
}
