package security

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const (
	testActivationSecret = "activation-secret-abcdefghijklmnop"
	testAccessSecret     = "abcdefghijklmnopqrstuvwxyz123456"
	testRefreshSecret    = "abcdefghijklmnopqrstuvwxyz654321"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestJWTManager() (*JWTManager, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	return NewJWTManager("iss", testActivationSecret, testAccessSecret, testRefreshSecret).WithClock(clock.Now), clock
}

func TestActivationTicketRoundTrip(t *testing.T) {
	mgr, _ := newTestJWTManager()
	user := ActivationUser{Name: "Ann", Email: "ann@x.com", Password: "secret1"}

	ticket, err := mgr.SignActivation(user, "4821")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := mgr.ParseActivation(ticket)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.User != user || claims.ActivationCode != "4821" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.ID == "" {
		t.Fatal("expected ticket id")
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != ActivationTTL {
		t.Fatalf("expected 5m validity, got %v", got)
	}
}

func TestActivationTicketExpiresAfterFiveMinutes(t *testing.T) {
	mgr, clock := newTestJWTManager()
	ticket, err := mgr.SignActivation(ActivationUser{Email: "ann@x.com"}, "1000")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	clock.t = clock.t.Add(4*time.Minute + 59*time.Second)
	if _, err := mgr.ParseActivation(ticket); err != nil {
		t.Fatalf("expected ticket still valid: %v", err)
	}

	clock.t = clock.t.Add(2 * time.Second)
	if _, err := mgr.ParseActivation(ticket); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestTokensDoNotVerifyAcrossSecrets(t *testing.T) {
	mgr, _ := newTestJWTManager()

	access, err := mgr.SignAccessToken(7, 5*time.Minute)
	if err != nil {
		t.Fatalf("sign access: %v", err)
	}
	refresh, err := mgr.SignRefreshToken(7, 72*time.Hour)
	if err != nil {
		t.Fatalf("sign refresh: %v", err)
	}
	ticket, err := mgr.SignActivation(ActivationUser{Email: "a@b.c"}, "1234")
	if err != nil {
		t.Fatalf("sign activation: %v", err)
	}

	if _, err := mgr.ParseRefreshToken(access); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("access token accepted as refresh: %v", err)
	}
	if _, err := mgr.ParseAccessToken(refresh); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("refresh token accepted as access: %v", err)
	}
	if _, err := mgr.ParseAccessToken(ticket); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("activation ticket accepted as access: %v", err)
	}
	if _, err := mgr.ParseActivation(access); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("access token accepted as activation ticket: %v", err)
	}

	claims, err := mgr.ParseAccessToken(access)
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}
	id, err := claims.UserID()
	if err != nil || id != 7 || claims.TokenType != TokenTypeAccess {
		t.Fatalf("unexpected access claims: %+v id=%d err=%v", claims, id, err)
	}
}

func TestParseAccessTokenExpiredAndMalformed(t *testing.T) {
	mgr, clock := newTestJWTManager()
	access, err := mgr.SignAccessToken(1, time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	clock.t = clock.t.Add(2 * time.Minute)
	if _, err := mgr.ParseAccessToken(access); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected expired, got %v", err)
	}

	for _, raw := range []string{"", "not-a-jwt", access[:len(access)-4] + "abcd"} {
		if _, err := mgr.ParseAccessToken(raw); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("expected invalid for %q, got %v", raw, err)
		}
	}
}

func TestParseRejectsForeignIssuer(t *testing.T) {
	mgr, clock := newTestJWTManager()
	other := NewJWTManager("other", testActivationSecret, testAccessSecret, testRefreshSecret).WithClock(clock.Now)
	tok, err := other.SignAccessToken(3, time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := mgr.ParseAccessToken(tok); err == nil || !strings.Contains(err.Error(), "token invalid") {
		t.Fatalf("expected issuer rejection, got %v", err)
	}
}

func TestNewActivationCodeRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := NewActivationCode()
		if err != nil {
			t.Fatalf("code: %v", err)
		}
		if len(code) != 4 || code < "1000" || code > "9999" {
			t.Fatalf("code out of range: %q", code)
		}
	}
}
