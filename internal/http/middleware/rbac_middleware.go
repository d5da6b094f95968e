package middleware

import (
	"net/http"

	"github.com/sandeepkv93/course-identity-service/internal/domain"
	"github.com/sandeepkv93/course-identity-service/internal/http/response"
	"github.com/sandeepkv93/course-identity-service/internal/observability"
	"github.com/sandeepkv93/course-identity-service/internal/service"
)

// RequireRoles admits only identities whose cached role is one of roles.
func RequireRoles(roles ...domain.Role) func(http.Handler) http.Handler {
	return guard(func(u *domain.User) bool { return u.Role.Allowed(roles...) })
}

// RequireCapability admits identities whose role grants c.
func RequireCapability(c domain.Capability) func(http.Handler) http.Handler {
	return guard(func(u *domain.User) bool { return u.Role.Can(c) })
}

func guard(allowed func(*domain.User) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				observability.RecordAuthorizationEvent(r.Context(), "none", "unauthenticated")
				response.Error(w, r, http.StatusUnauthorized, string(service.KindUnauthenticated), unauthenticatedMessage)
				return
			}
			if !allowed(user) {
				observability.RecordAuthorizationEvent(r.Context(), user.Role.String(), "denied")
				response.Error(w, r, http.StatusForbidden, string(service.KindForbidden), "Role: "+user.Role.String()+" is not allowed to access this resource")
				return
			}
			observability.RecordAuthorizationEvent(r.Context(), user.Role.String(), "allowed")
			next.ServeHTTP(w, r)
		})
	}
}
