package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/sandeepkv93/course-identity-service/internal/domain"
	"github.com/sandeepkv93/course-identity-service/internal/observability"
	"github.com/sandeepkv93/course-identity-service/internal/repository"
	"github.com/sandeepkv93/course-identity-service/internal/security"
)

// sessionWriteAttempts bounds the Begin/Set loop when a concurrent logout or
// identity mutation supersedes the write.
const sessionWriteAttempts = 2

type LoginResult struct {
	User         *domain.User
	AccessToken  string
	RefreshToken string
}

// AuthService owns the session lifecycle: login, refresh rotation, logout
// and social sign-in.
type AuthService struct {
	userRepo            repository.UserRepository
	sessions            repository.SessionRepository
	tokenSvc            *TokenService
	bootstrapAdminEmail string
}

func NewAuthService(
	userRepo repository.UserRepository,
	sessions repository.SessionRepository,
	tokenSvc *TokenService,
	bootstrapAdminEmail string,
) *AuthService {
	return &AuthService{
		userRepo:            userRepo,
		sessions:            sessions,
		tokenSvc:            tokenSvc,
		bootstrapAdminEmail: normalizeEmail(bootstrapAdminEmail),
	}
}

func (s *AuthService) Login(ctx context.Context, email, password string) (result *LoginResult, err error) {
	ctx, span := observability.StartSpan(ctx, "auth.login", attribute.String("auth.provider", "local"))
	defer func() { observability.EndSpan(span, err) }()

	email = normalizeEmail(email)
	if email == "" || password == "" {
		observability.RecordAuthLogin(ctx, "local", "validation_error")
		return nil, validationError("Please enter email and password")
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			security.BurnPasswordCheck(password)
			observability.RecordAuthLogin(ctx, "local", "invalid_credentials")
			return nil, newError(KindInvalidCredentials, "Invalid email or password", nil)
		}
		observability.RecordAuthLogin(ctx, "local", "error")
		return nil, internalError("lookup user", err)
	}
	ok, err := security.VerifyPassword(user.PasswordHash, password)
	if err != nil || !ok {
		observability.RecordAuthLogin(ctx, "local", "invalid_credentials")
		return nil, newError(KindInvalidCredentials, "Invalid email or password", err)
	}

	result, err = s.startSession(ctx, user)
	if err != nil {
		observability.RecordAuthLogin(ctx, "local", "error")
		return nil, err
	}
	observability.RecordAuthLogin(ctx, "local", "success")
	return result, nil
}

// Refresh rotates the token pair and rewrites the session from the store.
// It requires a live session; a superseded write is retried with a fresh read.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (result *LoginResult, err error) {
	ctx, span := observability.StartSpan(ctx, "auth.refresh")
	defer func() { observability.EndSpan(span, err) }()

	userID, err := s.tokenSvc.ParseRefresh(refreshToken)
	if err != nil {
		observability.RecordAuthRefresh(ctx, strings.ToLower(string(KindOf(err))))
		return nil, err
	}
	span.SetAttributes(attribute.Int64("user.id", int64(userID)))

	pair, err := s.tokenSvc.IssuePair(userID)
	if err != nil {
		observability.RecordAuthRefresh(ctx, "error")
		return nil, internalError("issue tokens", err)
	}
	for attempt := 0; attempt < sessionWriteAttempts; attempt++ {
		user, gen, err := s.refreshSnapshot(ctx, userID)
		if err != nil {
			return nil, err
		}
		err = s.sessions.Set(ctx, user, gen)
		if err == nil {
			observability.RecordAuthRefresh(ctx, "success")
			return &LoginResult{User: user, AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
		}
		if !errors.Is(err, repository.ErrSessionSuperseded) {
			observability.RecordAuthRefresh(ctx, "error")
			return nil, internalError("write session", err)
		}
	}
	observability.RecordAuthRefresh(ctx, "superseded")
	return nil, newError(KindUnauthenticated, "Please login to access this resource", repository.ErrSessionSuperseded)
}

// refreshSnapshot takes the generation first, then checks the session is
// still live and reloads the identity. A logout or mutation after Begin makes
// the following Set fail.
func (s *AuthService) refreshSnapshot(ctx context.Context, userID uint) (*domain.User, int64, error) {
	gen, err := s.sessions.Begin(ctx, userID)
	if err != nil {
		observability.RecordAuthRefresh(ctx, "error")
		return nil, 0, internalError("begin session write", err)
	}
	if _, err := s.sessions.Get(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			observability.RecordAuthRefresh(ctx, "no_session")
			return nil, 0, newError(KindUnauthenticated, "Please login to access this resource", err)
		}
		observability.RecordAuthRefresh(ctx, "error")
		return nil, 0, internalError("load session", err)
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			observability.RecordAuthRefresh(ctx, "not_found")
			return nil, 0, newError(KindNotFound, "User not found.", err)
		}
		observability.RecordAuthRefresh(ctx, "error")
		return nil, 0, internalError("load user", err)
	}
	return user, gen, nil
}

// Logout removes the session record. Repeating it is harmless.
func (s *AuthService) Logout(ctx context.Context, userID uint) (err error) {
	ctx, span := observability.StartSpan(ctx, "auth.logout", attribute.Int64("user.id", int64(userID)))
	defer func() { observability.EndSpan(span, err) }()

	if err := s.sessions.Delete(ctx, userID); err != nil {
		observability.RecordAuthLogout(ctx, "error")
		return internalError("delete session", err)
	}
	observability.RecordAuthLogout(ctx, "success")
	return nil
}

// SocialAuth signs in a profile already verified by an external provider,
// creating the identity on first sight.
func (s *AuthService) SocialAuth(ctx context.Context, email, name, avatarURL string) (result *LoginResult, err error) {
	ctx, span := observability.StartSpan(ctx, "auth.social", attribute.String("auth.provider", "social"))
	defer func() { observability.EndSpan(span, err) }()

	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	if err := validateEmail(email); err != nil {
		observability.RecordAuthLogin(ctx, "social", "validation_error")
		return nil, err
	}
	if err := validateName(name); err != nil {
		observability.RecordAuthLogin(ctx, "social", "validation_error")
		return nil, err
	}

	user, err := s.findOrCreateSocial(ctx, email, name, strings.TrimSpace(avatarURL))
	if err != nil {
		observability.RecordAuthLogin(ctx, "social", "error")
		return nil, err
	}
	result, err = s.startSession(ctx, user)
	if err != nil {
		observability.RecordAuthLogin(ctx, "social", "error")
		return nil, err
	}
	observability.RecordAuthLogin(ctx, "social", "success")
	return result, nil
}

func (s *AuthService) findOrCreateSocial(ctx context.Context, email, name, avatarURL string) (*domain.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, internalError("lookup user", err)
	}

	unusable, err := security.NewUnusablePasswordHash()
	if err != nil {
		return nil, internalError("generate placeholder password", err)
	}
	user = &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: unusable,
		Role:         initialRole(email, s.bootstrapAdminEmail),
		IsVerified:   true,
		Avatar:       domain.Avatar{URL: avatarURL},
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if !errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, internalError("create user", err)
		}
		// Lost a race with a concurrent first sign-in for the same address.
		existing, findErr := s.userRepo.FindByEmail(ctx, email)
		if findErr != nil {
			return nil, internalError("lookup user", findErr)
		}
		return existing, nil
	}
	return user, nil
}

// startSession issues a fresh pair and writes the session record. A login is
// a new intent, so a logout that slipped in between Begin and Set is retried
// once against the new generation.
func (s *AuthService) startSession(ctx context.Context, user *domain.User) (*LoginResult, error) {
	pair, err := s.tokenSvc.IssuePair(user.ID)
	if err != nil {
		return nil, internalError("issue tokens", err)
	}
	for attempt := 0; attempt < sessionWriteAttempts; attempt++ {
		gen, err := s.sessions.Begin(ctx, user.ID)
		if err != nil {
			return nil, internalError("begin session write", err)
		}
		// reload after Begin so a mutation racing this login supersedes the Set
		fresh, err := s.userRepo.FindByID(ctx, user.ID)
		if err != nil {
			return nil, lookupError(err)
		}
		err = s.sessions.Set(ctx, fresh, gen)
		if err == nil {
			return &LoginResult{User: fresh, AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
		}
		if !errors.Is(err, repository.ErrSessionSuperseded) {
			return nil, internalError("write session", err)
		}
	}
	return nil, newError(KindUnauthenticated, "session was ended concurrently, please login again", repository.ErrSessionSuperseded)
}

// SessionTTLs exposes the cookie lifetimes for the HTTP layer.
func (s *AuthService) SessionTTLs() (access, refresh time.Duration) {
	return s.tokenSvc.AccessTTL(), s.tokenSvc.RefreshTTL()
}
