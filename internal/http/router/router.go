package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sandeepkv93/course-identity-service/internal/domain"
	"github.com/sandeepkv93/course-identity-service/internal/health"
	"github.com/sandeepkv93/course-identity-service/internal/http/handler"
	"github.com/sandeepkv93/course-identity-service/internal/http/middleware"
	"github.com/sandeepkv93/course-identity-service/internal/http/response"
	"github.com/sandeepkv93/course-identity-service/internal/repository"
	"github.com/sandeepkv93/course-identity-service/internal/service"
)

type Dependencies struct {
	AuthHandler       *handler.AuthHandler
	UserHandler       *handler.UserHandler
	AdminHandler      *handler.AdminHandler
	Tokens            *service.TokenService
	Sessions          repository.SessionRepository
	CORSOrigins       []string
	AuthRateLimitRPM  int
	APIRateLimitRPM   int
	GlobalRateLimiter GlobalRateLimiterFunc
	AuthRateLimiter   AuthRateLimiterFunc
	Readiness         *health.ProbeRunner
	EnableOTelHTTP    bool
}

type GlobalRateLimiterFunc func(http.Handler) http.Handler
type AuthRateLimiterFunc func(http.Handler) http.Handler

const maxJSONBodyBytes = 1 << 20

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(dep.CORSOrigins))

	globalLimiter := dep.GlobalRateLimiter
	if globalLimiter == nil {
		globalLimiter = middleware.NewRateLimiter(dep.APIRateLimitRPM, time.Minute).Middleware()
	}
	authLimiter := dep.AuthRateLimiter
	if authLimiter == nil {
		authLimiter = middleware.NewRateLimiter(dep.AuthRateLimitRPM, time.Minute).Middleware()
	}

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		ready, results := dep.Readiness.Ready(r.Context())
		if results == nil {
			results = []health.CheckResult{}
		}
		if ready {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": results})
			return
		}
		response.JSON(w, r, http.StatusServiceUnavailable, map[string]any{
			"success": false,
			"code":    "DEPENDENCY_UNREADY",
			"message": "dependencies are not ready",
			"checks":  results,
		})
	})

	authenticated := middleware.AuthMiddleware(dep.Tokens, dep.Sessions)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(globalLimiter)

		r.Group(func(r chi.Router) {
			r.Use(middleware.BodyLimit(maxJSONBodyBytes))
			r.With(authLimiter).Post("/registration", dep.AuthHandler.Registration)
			r.With(authLimiter).Post("/activate-user", dep.AuthHandler.ActivateUser)
			r.With(authLimiter).Post("/login", dep.AuthHandler.Login)
			r.With(authLimiter).Post("/social-auth", dep.AuthHandler.SocialAuth)
			r.With(authLimiter).Get("/update-token", dep.AuthHandler.UpdateToken)
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticated)
			r.Get("/logout", dep.AuthHandler.Logout)
			r.Get("/get-user", dep.UserHandler.GetUser)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireCapability(domain.CapProfileWrite))
				r.With(middleware.BodyLimit(maxJSONBodyBytes)).Put("/update-user-info", dep.UserHandler.UpdateInfo)
				r.With(middleware.BodyLimit(maxJSONBodyBytes)).Put("/update-user-password", dep.UserHandler.UpdatePassword)
				r.With(middleware.BodyLimit(handler.MaxAvatarUploadBytes)).Put("/update-user-avatar", dep.UserHandler.UpdateAvatar)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRoles(domain.RoleAdmin))
				r.With(middleware.RequireCapability(domain.CapUsersRead)).Get("/get-users", dep.AdminHandler.GetUsers)
				r.With(middleware.RequireCapability(domain.CapUsersWrite), middleware.BodyLimit(maxJSONBodyBytes)).Put("/update-user", dep.AdminHandler.UpdateUserRole)
				r.With(middleware.RequireCapability(domain.CapUsersWrite)).Delete("/delete-user/{id}", dep.AdminHandler.DeleteUser)
			})
		})
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
