package di

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/sandeepkv93/course-identity-service/internal/app"
	"github.com/sandeepkv93/course-identity-service/internal/config"
	"github.com/sandeepkv93/course-identity-service/internal/database"
	"github.com/sandeepkv93/course-identity-service/internal/health"
	"github.com/sandeepkv93/course-identity-service/internal/http/handler"
	"github.com/sandeepkv93/course-identity-service/internal/http/middleware"
	"github.com/sandeepkv93/course-identity-service/internal/http/router"
	"github.com/sandeepkv93/course-identity-service/internal/observability"
	"github.com/sandeepkv93/course-identity-service/internal/repository"
	"github.com/sandeepkv93/course-identity-service/internal/security"
	"github.com/sandeepkv93/course-identity-service/internal/service"
)

var ConfigSet = wire.NewSet(config.Load)

var ObservabilitySet = wire.NewSet(
	provideObservabilityRuntime,
	provideAppLogger,
)

var RuntimeInfraSet = wire.NewSet(
	provideRuntimeDB,
	provideRedisClient,
	provideReadinessProbeRunner,
)

var RepositorySet = wire.NewSet(
	repository.NewUserRepository,
	provideSessionRepository,
	wire.Bind(new(repository.SessionRepository), new(*repository.RedisSessionRepository)),
	provideActivationTicketRepository,
)

var SecuritySet = wire.NewSet(
	provideJWTManager,
	provideCookieManager,
)

var ServiceSet = wire.NewSet(
	provideTokenService,
	provideMailer,
	provideStorageService,
	provideActivationService,
	provideAuthService,
	service.NewUserService,
	wire.Bind(new(service.ActivationServiceInterface), new(*service.ActivationService)),
	wire.Bind(new(service.AuthServiceInterface), new(*service.AuthService)),
	wire.Bind(new(service.UserServiceInterface), new(*service.UserService)),
)

var HTTPSet = wire.NewSet(
	handler.NewAuthHandler,
	handler.NewUserHandler,
	handler.NewAdminHandler,
	provideGlobalRateLimiter,
	provideAuthRateLimiter,
	provideRouterDependencies,
	router.NewRouter,
	provideHTTPServer,
)

var AppSet = wire.NewSet(provideApp)

func provideObservabilityRuntime(cfg *config.Config) (*observability.Runtime, error) {
	bootstrapLogger := observability.NewBootstrapLogger(cfg)
	return observability.InitRuntime(context.Background(), cfg, bootstrapLogger)
}

func provideAppLogger(cfg *config.Config, runtime *observability.Runtime) *slog.Logger {
	return observability.InitLogger(cfg, runtime.LoggerProvider)
}

// provideRuntimeDB opens the store, applies migrations and promotes the
// bootstrap admin if that identity already exists.
func provideRuntimeDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	if err := database.Seed(db, cfg.BootstrapAdminEmail); err != nil {
		return nil, err
	}
	return db, nil
}

func provideRedisClient(cfg *config.Config, logger *slog.Logger) redis.UniversalClient {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	observability.InstrumentRedisClient(client, logger)
	return client
}

func provideSessionRepository(cfg *config.Config, client redis.UniversalClient) *repository.RedisSessionRepository {
	return repository.NewRedisSessionRepository(client, cfg.RedisKeyPrefix, cfg.JWTRefreshTTL)
}

// provideActivationTicketRepository records used tickets only when single-use
// activation is on; otherwise replay stays bounded by ticket expiry.
func provideActivationTicketRepository(cfg *config.Config, client redis.UniversalClient) repository.ActivationTicketRepository {
	if !cfg.ActivationSingleUse {
		return repository.NoopActivationTicketRepository{}
	}
	return repository.NewRedisActivationTicketRepository(client, cfg.RedisKeyPrefix)
}

func provideJWTManager(cfg *config.Config) *security.JWTManager {
	return security.NewJWTManager(cfg.JWTIssuer, cfg.ActivationSecret, cfg.JWTAccessSecret, cfg.JWTRefreshSecret)
}

func provideCookieManager(cfg *config.Config) *security.CookieManager {
	return security.NewCookieManager(cfg.CookieDomain, cfg.CookieSecure, cfg.CookieSameSite)
}

func provideTokenService(cfg *config.Config, jwt *security.JWTManager) *service.TokenService {
	return service.NewTokenService(jwt, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
}

// provideMailer sends through SMTP when SMTP_HOST is set and logs mails otherwise.
func provideMailer(cfg *config.Config, logger *slog.Logger) (service.Mailer, error) {
	renderer, err := service.NewMailRenderer()
	if err != nil {
		return nil, err
	}
	if cfg.SMTPHost == "" {
		logger.Warn("SMTP_HOST not set, activation mails are logged instead of sent")
		return service.NewDevMailer(logger, renderer), nil
	}
	return service.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom, renderer), nil
}

func provideStorageService(cfg *config.Config) (service.StorageService, error) {
	if cfg.MinIOEndpoint == "" {
		return service.DisabledStorageService{}, nil
	}
	return service.NewMinIOStorageService(cfg.MinIOEndpoint, cfg.MinIOAccessKey, cfg.MinIOSecretKey, cfg.MinIOBucket, cfg.MinIOUseSSL)
}

func provideActivationService(
	cfg *config.Config,
	userRepo repository.UserRepository,
	tickets repository.ActivationTicketRepository,
	tokens *service.TokenService,
	mailer service.Mailer,
) *service.ActivationService {
	return service.NewActivationService(userRepo, tickets, tokens, mailer, cfg.ActivationSingleUse, cfg.BootstrapAdminEmail)
}

func provideAuthService(
	cfg *config.Config,
	userRepo repository.UserRepository,
	sessions repository.SessionRepository,
	tokens *service.TokenService,
) *service.AuthService {
	return service.NewAuthService(userRepo, sessions, tokens, cfg.BootstrapAdminEmail)
}

// provideGlobalRateLimiter buckets authenticated callers by identity and fails
// open so a Redis outage does not take the API down with it.
func provideGlobalRateLimiter(cfg *config.Config, redisClient redis.UniversalClient, tokens *service.TokenService) router.GlobalRateLimiterFunc {
	var limiter middleware.Limiter = middleware.NewLocalFixedWindowLimiter()
	if cfg.RateLimitRedisEnabled && redisClient != nil {
		limiter = middleware.NewRedisFixedWindowLimiter(redisClient, cfg.RateLimitRedisPrefix+":api")
	}
	return middleware.NewDistributedRateLimiterWithKey(
		limiter,
		cfg.APIRateLimitPerMin,
		time.Minute,
		middleware.FailOpen,
		"api",
		middleware.SubjectOrIPKeyFunc(tokens),
	).Middleware()
}

// provideAuthRateLimiter guards credential endpoints by client address and
// fails closed.
func provideAuthRateLimiter(cfg *config.Config, redisClient redis.UniversalClient) router.AuthRateLimiterFunc {
	var limiter middleware.Limiter = middleware.NewLocalFixedWindowLimiter()
	if cfg.RateLimitRedisEnabled && redisClient != nil {
		limiter = middleware.NewRedisFixedWindowLimiter(redisClient, cfg.RateLimitRedisPrefix+":auth")
	}
	return middleware.NewDistributedRateLimiter(
		limiter,
		cfg.AuthRateLimitPerMin,
		time.Minute,
		middleware.FailClosed,
		"auth",
	).Middleware()
}

func provideRouterDependencies(
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	adminHandler *handler.AdminHandler,
	tokens *service.TokenService,
	sessions repository.SessionRepository,
	globalRateLimiter router.GlobalRateLimiterFunc,
	authRateLimiter router.AuthRateLimiterFunc,
	readiness *health.ProbeRunner,
	cfg *config.Config,
) router.Dependencies {
	return router.Dependencies{
		AuthHandler:       authHandler,
		UserHandler:       userHandler,
		AdminHandler:      adminHandler,
		Tokens:            tokens,
		Sessions:          sessions,
		CORSOrigins:       cfg.CORSAllowedOrigins,
		AuthRateLimitRPM:  cfg.AuthRateLimitPerMin,
		APIRateLimitRPM:   cfg.APIRateLimitPerMin,
		GlobalRateLimiter: globalRateLimiter,
		AuthRateLimiter:   authRateLimiter,
		Readiness:         readiness,
		EnableOTelHTTP:    cfg.OTELMetricsEnabled || cfg.OTELTracingEnabled,
	}
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func provideReadinessProbeRunner(cfg *config.Config, db *gorm.DB, redisClient redis.UniversalClient) *health.ProbeRunner {
	return health.NewProbeRunner(cfg.ReadinessProbeTimeout, cfg.ServerStartGracePeriod,
		health.NewIdentityStoreChecker(db),
		health.NewSessionCacheChecker(redisClient),
	)
}

func provideApp(
	cfg *config.Config,
	logger *slog.Logger,
	server *http.Server,
	runtime *observability.Runtime,
	db *gorm.DB,
	redisClient redis.UniversalClient,
) *app.App {
	return app.New(cfg, logger, server, runtime, db, redisClient)
}
