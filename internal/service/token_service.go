package service

import (
	"errors"
	"time"

	"github.com/sandeepkv93/course-identity-service/internal/security"
)

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// TokenService binds the JWT manager to the configured access/refresh lifetimes.
type TokenService struct {
	jwtMgr     *security.JWTManager
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewTokenService(jwtMgr *security.JWTManager, accessTTL, refreshTTL time.Duration) *TokenService {
	return &TokenService{jwtMgr: jwtMgr, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

func (s *TokenService) AccessTTL() time.Duration  { return s.accessTTL }
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

func (s *TokenService) IssuePair(userID uint) (TokenPair, error) {
	access, err := s.jwtMgr.SignAccessToken(userID, s.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.jwtMgr.SignRefreshToken(userID, s.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// AuthenticateAccess resolves an access token to its identity id. Every
// failure is Unauthenticated.
func (s *TokenService) AuthenticateAccess(raw string) (*security.Claims, uint, error) {
	claims, err := s.jwtMgr.ParseAccessToken(raw)
	if err != nil {
		return nil, 0, newError(KindUnauthenticated, "please login to access this resource", err)
	}
	id, err := claims.UserID()
	if err != nil {
		return nil, 0, newError(KindUnauthenticated, "please login to access this resource", err)
	}
	return claims, id, nil
}

// ParseRefresh resolves a refresh token to its identity id.
func (s *TokenService) ParseRefresh(raw string) (uint, error) {
	if raw == "" {
		return 0, newError(KindInvalidToken, "refresh token missing", nil)
	}
	claims, err := s.jwtMgr.ParseRefreshToken(raw)
	if err != nil {
		return 0, tokenError("could not refresh token", err)
	}
	id, err := claims.UserID()
	if err != nil {
		return 0, newError(KindInvalidToken, "could not refresh token", err)
	}
	return id, nil
}

func (s *TokenService) SignActivation(user security.ActivationUser, code string) (string, error) {
	return s.jwtMgr.SignActivation(user, code)
}

func (s *TokenService) ParseActivation(raw string) (*security.ActivationClaims, error) {
	claims, err := s.jwtMgr.ParseActivation(raw)
	if err != nil {
		return nil, tokenError("invalid activation token", err)
	}
	return claims, nil
}

// ActivationTTLLeft is how long the ticket stays valid on the token clock.
func (s *TokenService) ActivationTTLLeft(claims *security.ActivationClaims) time.Duration {
	if claims == nil || claims.ExpiresAt == nil {
		return 0
	}
	return claims.ExpiresAt.Time.Sub(s.jwtMgr.Now())
}

func tokenError(message string, err error) *Error {
	if errors.Is(err, security.ErrTokenExpired) {
		return newError(KindExpired, "token expired", err)
	}
	return newError(KindInvalidToken, message, err)
}
