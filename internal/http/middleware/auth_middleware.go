package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sandeepkv93/course-identity-service/internal/domain"
	"github.com/sandeepkv93/course-identity-service/internal/http/response"
	"github.com/sandeepkv93/course-identity-service/internal/observability"
	"github.com/sandeepkv93/course-identity-service/internal/repository"
	"github.com/sandeepkv93/course-identity-service/internal/security"
	"github.com/sandeepkv93/course-identity-service/internal/service"
)

type contextKey string

const (
	ClaimsContextKey contextKey = "claims"
	UserContextKey   contextKey = "user"
)

const unauthenticatedMessage = "Please login to access this resource"

// AuthMiddleware authenticates a request by access token plus a live session
// record. The identity attached to the context is the cached snapshot.
func AuthMiddleware(tokens *service.TokenService, sessions repository.SessionRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, source := accessTokenFromRequest(r)
			if raw == "" {
				observability.RecordAccessTokenValidation(r.Context(), "missing", "none")
				response.Error(w, r, http.StatusUnauthorized, string(service.KindUnauthenticated), unauthenticatedMessage)
				return
			}
			claims, userID, err := tokens.AuthenticateAccess(raw)
			if err != nil {
				outcome := "invalid"
				if errors.Is(err, security.ErrTokenExpired) {
					outcome = "expired"
				}
				observability.RecordAccessTokenValidation(r.Context(), outcome, source)
				response.FromError(w, r, err)
				return
			}
			user, err := sessions.Get(r.Context(), userID)
			if err != nil {
				if errors.Is(err, repository.ErrSessionNotFound) {
					observability.RecordAccessTokenValidation(r.Context(), "no_session", source)
					response.Error(w, r, http.StatusUnauthorized, string(service.KindUnauthenticated), unauthenticatedMessage)
					return
				}
				observability.RecordAccessTokenValidation(r.Context(), "session_error", source)
				response.FromError(w, r, &service.Error{Kind: service.KindInternal, Message: "session lookup failed", Err: err})
				return
			}
			observability.RecordAccessTokenValidation(r.Context(), "valid", source)
			noteIdentity(r.Context(), user, source)
			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			ctx = context.WithValue(ctx, UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func accessTokenFromRequest(r *http.Request) (string, string) {
	if raw := security.GetCookie(r, security.AccessTokenCookie); raw != "" {
		return raw, "cookie"
	}
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:]), "bearer"
	}
	return "", "none"
}

func ClaimsFromContext(ctx context.Context) (*security.Claims, bool) {
	c, ok := ctx.Value(ClaimsContextKey).(*security.Claims)
	return c, ok
}

func UserFromContext(ctx context.Context) (*domain.User, bool) {
	u, ok := ctx.Value(UserContextKey).(*domain.User)
	return u, ok && u != nil
}

// WithUser attaches an authenticated identity; used by tests and internal callers.
func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}
