package http

import (
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/example/raid-scheduler/internal/logging"
)

// MemberIDHeader carries the caller identity set by the authenticating
// gateway in front of this service.
const MemberIDHeader = "X-Member-ID"

// RequireMember rejects requests without a member identity header and
// attaches the identity to the request context for downstream handlers.
func RequireMember(logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			memberID := strings.TrimSpace(r.Header.Get(MemberIDHeader))
			if memberID == "" {
				responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingMemberID)
				return
			}

			ctx := ContextWithMemberID(r.Context(), memberID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLogger attaches a per-request logger to the context and records
// request start and completion.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	var counter atomic.Uint64

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := counter.Add(1)
			logger := base.With(
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := logging.ContextWithLogger(r.Context(), logger)
			start := time.Now()
			logger.InfoContext(ctx, "request started")
			next.ServeHTTP(w, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed", "duration", time.Since(start))
		})
	}
}
