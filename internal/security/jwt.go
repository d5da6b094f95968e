package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"

	// ActivationTTL is the fixed validity window of an activation ticket.
	ActivationTTL = 5 * time.Minute
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

type Claims struct {
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// UserID returns the numeric identity id carried in the subject claim.
func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid subject %q", c.Subject)
	}
	return uint(id), nil
}

// ActivationUser is the candidate identity embedded in an activation ticket.
type ActivationUser struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ActivationClaims struct {
	User           ActivationUser `json:"user"`
	ActivationCode string         `json:"activation_code"`
	jwt.RegisteredClaims
}

type JWTManager struct {
	issuer           string
	activationSecret []byte
	accessSecret     []byte
	refreshSecret    []byte
	now              func() time.Time
}

func NewJWTManager(issuer, activationSecret, accessSecret, refreshSecret string) *JWTManager {
	return &JWTManager{
		issuer:           issuer,
		activationSecret: []byte(activationSecret),
		accessSecret:     []byte(accessSecret),
		refreshSecret:    []byte(refreshSecret),
		now:              time.Now,
	}
}

// WithClock replaces the time source used for signing and validation.
func (m *JWTManager) WithClock(now func() time.Time) *JWTManager {
	m.now = now
	return m
}

// Now is the instant tokens are signed and validated against.
func (m *JWTManager) Now() time.Time { return m.now() }

func (m *JWTManager) SignActivation(user ActivationUser, code string) (string, error) {
	now := m.now()
	claims := ActivationClaims{
		User:             user,
		ActivationCode:   code,
		RegisteredClaims: m.registered("", now, ActivationTTL),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.activationSecret)
}

func (m *JWTManager) ParseActivation(raw string) (*ActivationClaims, error) {
	claims := &ActivationClaims{}
	if err := m.parse(raw, claims, m.activationSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

func (m *JWTManager) SignAccessToken(userID uint, ttl time.Duration) (string, error) {
	return m.sign(userID, TokenTypeAccess, ttl, m.accessSecret)
}

func (m *JWTManager) SignRefreshToken(userID uint, ttl time.Duration) (string, error) {
	return m.sign(userID, TokenTypeRefresh, ttl, m.refreshSecret)
}

func (m *JWTManager) ParseAccessToken(raw string) (*Claims, error) {
	return m.parseTyped(raw, TokenTypeAccess, m.accessSecret)
}

func (m *JWTManager) ParseRefreshToken(raw string) (*Claims, error) {
	return m.parseTyped(raw, TokenTypeRefresh, m.refreshSecret)
}

func (m *JWTManager) sign(userID uint, typ string, ttl time.Duration, secret []byte) (string, error) {
	claims := Claims{
		TokenType:        typ,
		RegisteredClaims: m.registered(strconv.FormatUint(uint64(userID), 10), m.now(), ttl),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (m *JWTManager) registered(subject string, now time.Time, ttl time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    m.issuer,
		Subject:   subject,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (m *JWTManager) parseTyped(raw, typ string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	if err := m.parse(raw, claims, secret); err != nil {
		return nil, err
	}
	if claims.TokenType != typ {
		return nil, fmt.Errorf("%w: unexpected token type %q", ErrTokenInvalid, claims.TokenType)
	}
	return claims, nil
}

func (m *JWTManager) parse(raw string, claims jwt.Claims, secret []byte) error {
	if raw == "" {
		return fmt.Errorf("%w: empty token", ErrTokenInvalid)
	}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	return nil
}
