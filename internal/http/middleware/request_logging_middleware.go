package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sandeepkv93/course-identity-service/internal/domain"
)

// requestIdentity is filled in by AuthMiddleware further down the chain so the
// access log can name the caller.
type requestIdentity struct {
	userID uint
	role   domain.Role
	source string
}

type requestIdentityKey struct{}

func noteIdentity(ctx context.Context, user *domain.User, source string) {
	if ident, ok := ctx.Value(requestIdentityKey{}).(*requestIdentity); ok && user != nil {
		ident.userID = user.ID
		ident.role = user.Role
		ident.source = source
	}
}

// StructuredRequestLogger emits one slog line per request. Level follows the
// status class: 5xx error, 4xx warn, everything else info.
func StructuredRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ident := &requestIdentity{}
		r = r.WithContext(context.WithValue(r.Context(), requestIdentityKey{}, ident))
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}

		attrs := []slog.Attr{
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("route", route),
			slog.Int("status", status),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000.0),
			slog.String("request_id", chimiddleware.GetReqID(r.Context())),
			slog.String("client_ip", clientIPKey(r)),
			slog.String("user_agent", r.UserAgent()),
		}
		if ident.userID != 0 {
			attrs = append(attrs,
				slog.Uint64("user_id", uint64(ident.userID)),
				slog.String("role", string(ident.role)),
				slog.String("token_source", ident.source),
			)
		}

		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}
		slog.Default().LogAttrs(r.Context(), level, "http.request", attrs...)
	})
}
