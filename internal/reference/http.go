package reference

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTP queries a remote code dictionary.
//
//	GET {base}/codes?prefix=8471      -> [{"code": "...", "description": "..."}]
//	GET {base}/search?q=laptop&limit=5 -> same shape
type HTTP struct {
	client *resty.Client
}

// NewHTTP returns a client for the dictionary at baseURL. Each request is
// bounded by timeout.
func NewHTTP(baseURL string, timeout time.Duration) *HTTP {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(1).
		SetRetryWaitTime(100 * time.Millisecond)
	client.AddRetryCondition(retryCondition)
	return &HTTP{client: client}
}

func retryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code >= 500 || code == 429
}

func (h *HTTP) ByPrefix(ctx context.Context, prefix string) ([]Code, error) {
	return h.get(ctx, "/codes", map[string]string{"prefix": prefix})
}

func (h *HTTP) Search(ctx context.Context, text string, limit int) ([]Code, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return h.get(ctx, "/search", map[string]string{"q": text, "limit": strconv.Itoa(limit)})
}

func (h *HTTP) get(ctx context.Context, path string, params map[string]string) ([]Code, error) {
	var codes []Code
	resp, err := h.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&codes).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("reference request %s: %w", path, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("reference request %s: status %d", path, resp.StatusCode())
	}
	return codes, nil
}
