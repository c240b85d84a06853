package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/manifestcheck/internal/core"
)

// WithRequestMetadata copies the client address and User-Agent onto ctx so
// saved reports record who submitted them.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithIPAddress(ctx, r.RemoteAddr)
	ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
	return ctx
}
