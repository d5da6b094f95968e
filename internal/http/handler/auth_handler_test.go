package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sandeepkv93/course-identity-service/internal/domain"
	"github.com/sandeepkv93/course-identity-service/internal/http/middleware"
	"github.com/sandeepkv93/course-identity-service/internal/security"
	"github.com/sandeepkv93/course-identity-service/internal/service"
)

func newTestAuthHandler(activation *stubActivationService, auth *stubAuthService) *AuthHandler {
	jwtMgr := security.NewJWTManager("test", "activation-secret-0123456789abcdef", "access-secret-0123456789abcdefghij", "refresh-secret-0123456789abcdefghi")
	tokens := service.NewTokenService(jwtMgr, 5*time.Minute, 72*time.Hour)
	return NewAuthHandler(activation, auth, security.NewCookieManager("", false, "lax"), tokens)
}

func TestRegistrationReturnsActivationTicket(t *testing.T) {
	var gotName, gotEmail, gotPassword string
	h := newTestAuthHandler(&stubActivationService{
		beginFn: func(name, email, password string) (string, error) {
			gotName, gotEmail, gotPassword = name, email, password
			return "ticket-123", nil
		},
	}, &stubAuthService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/registration", strings.NewReader(`{"name":"Ann","email":"ann@x.com","password":"secret1"}`))
	rr := httptest.NewRecorder()
	h.Registration(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rr.Code, rr.Body.String())
	}
	if gotName != "Ann" || gotEmail != "ann@x.com" || gotPassword != "secret1" {
		t.Fatalf("unexpected forwarded input %q %q %q", gotName, gotEmail, gotPassword)
	}
	body := decodeMap(t, rr)
	if body["success"] != true || body["activationToken"] != "ticket-123" {
		t.Fatalf("unexpected body: %+v", body)
	}
	if msg, _ := body["message"].(string); !strings.Contains(msg, "ann@x.com") {
		t.Fatalf("expected message to mention the address, got %q", msg)
	}
}

func TestRegistrationMapsServiceErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"duplicate", &service.Error{Kind: service.KindDuplicateEmail, Message: "Email already exist."}, http.StatusBadRequest, "DUPLICATE_EMAIL"},
		{"delivery", &service.Error{Kind: service.KindDelivery, Message: "could not send activation mail"}, http.StatusBadRequest, "DELIVERY_ERROR"},
		{"unexpected", errNotImplemented, http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestAuthHandler(&stubActivationService{
				beginFn: func(string, string, string) (string, error) { return "", tc.err },
			}, &stubAuthService{})
			req := httptest.NewRequest(http.MethodPost, "/api/v1/registration", strings.NewReader(`{"name":"Ann","email":"ann@x.com","password":"secret1"}`))
			rr := httptest.NewRecorder()
			h.Registration(rr, req)

			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}
			body := decodeErrorBody(t, rr)
			if body.Success || body.Code != tc.code || body.Message == "" {
				t.Fatalf("unexpected envelope: %+v", body)
			}
		})
	}
}

func TestRegistrationRejectsMalformedBody(t *testing.T) {
	h := newTestAuthHandler(&stubActivationService{}, &stubAuthService{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/registration", strings.NewReader(`{"name":`))
	rr := httptest.NewRecorder()
	h.Registration(rr, req)

	if rr.Code != http.StatusBadRequest || decodeErrorBody(t, rr).Code != "VALIDATION_ERROR" {
		t.Fatalf("expected 400 validation error, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestActivateUserForwardsTicketAndCode(t *testing.T) {
	h := newTestAuthHandler(&stubActivationService{
		completeFn: func(ticket, code string) (*domain.User, error) {
			if ticket != "t" || code != "1234" {
				t.Fatalf("unexpected ticket/code %q %q", ticket, code)
			}
			return &domain.User{ID: 1, Email: "ann@x.com"}, nil
		},
	}, &stubAuthService{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/activate-user", strings.NewReader(`{"activationToken":"t","activationCode":"1234"}`))
	rr := httptest.NewRecorder()
	h.ActivateUser(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	if body := decodeMap(t, rr); body["success"] != true {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestActivateUserInvalidCode(t *testing.T) {
	h := newTestAuthHandler(&stubActivationService{
		completeFn: func(string, string) (*domain.User, error) {
			return nil, &service.Error{Kind: service.KindInvalidCode, Message: "Invalid activation code."}
		},
	}, &stubAuthService{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/activate-user", strings.NewReader(`{"activationToken":"t","activationCode":"0000"}`))
	rr := httptest.NewRecorder()
	h.ActivateUser(rr, req)

	body := decodeErrorBody(t, rr)
	if rr.Code != http.StatusBadRequest || body.Message != "Invalid activation code." {
		t.Fatalf("unexpected response %d %+v", rr.Code, body)
	}
}

func TestLoginSetsCookiesWithTokenLifetimes(t *testing.T) {
	h := newTestAuthHandler(&stubActivationService{}, &stubAuthService{
		loginFn: func(email, password string) (*service.LoginResult, error) {
			return &service.LoginResult{
				User:         &domain.User{ID: 7, Email: email, Role: domain.RoleUser},
				AccessToken:  "access-jwt",
				RefreshToken: "refresh-jwt",
			}, nil
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/login", strings.NewReader(`{"email":"ann@x.com","password":"secret1"}`))
	rr := httptest.NewRecorder()
	h.Login(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := decodeMap(t, rr)
	if body["success"] != true || body["accessToken"] != "access-jwt" {
		t.Fatalf("unexpected body: %+v", body)
	}
	if _, leaked := body["refreshToken"]; leaked {
		t.Fatal("refresh token must only travel in the cookie")
	}

	cookies := map[string]*http.Cookie{}
	for _, c := range rr.Result().Cookies() {
		cookies[c.Name] = c
	}
	access, refresh := cookies[security.AccessTokenCookie], cookies[security.RefreshTokenCookie]
	if access == nil || refresh == nil {
		t.Fatalf("expected both token cookies, got %+v", cookies)
	}
	if access.Value != "access-jwt" || access.MaxAge != 300 || !access.HttpOnly || access.SameSite != http.SameSiteLaxMode {
		t.Fatalf("unexpected access cookie: %+v", access)
	}
	if refresh.Value != "refresh-jwt" || refresh.MaxAge != int((72*time.Hour).Seconds()) || !refresh.HttpOnly {
		t.Fatalf("unexpected refresh cookie: %+v", refresh)
	}
}

func TestLoginInvalidCredentialsSetsNoCookies(t *testing.T) {
	h := newTestAuthHandler(&stubActivationService{}, &stubAuthService{
		loginFn: func(string, string) (*service.LoginResult, error) {
			return nil, &service.Error{Kind: service.KindInvalidCredentials, Message: "Invalid email or password"}
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/login", strings.NewReader(`{"email":"ann@x.com","password":"nope"}`))
	rr := httptest.NewRecorder()
	h.Login(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if len(rr.Result().Cookies()) != 0 {
		t.Fatal("expected no cookies on failed login")
	}
}

func TestUpdateTokenReadsRefreshCookie(t *testing.T) {
	var seen string
	h := newTestAuthHandler(&stubActivationService{}, &stubAuthService{
		refreshFn: func(raw string) (*service.LoginResult, error) {
			seen = raw
			if raw == "" {
				return nil, &service.Error{Kind: service.KindInvalidToken, Message: "refresh token missing"}
			}
			return &service.LoginResult{User: &domain.User{ID: 7}, AccessToken: "a2", RefreshToken: "r2"}, nil
		},
	})

	rr := httptest.NewRecorder()
	h.UpdateToken(rr, httptest.NewRequest(http.MethodGet, "/api/v1/update-token", nil))
	if rr.Code != http.StatusBadRequest || decodeErrorBody(t, rr).Code != "INVALID_TOKEN" {
		t.Fatalf("expected invalid token without cookie, got %d %s", rr.Code, rr.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/update-token", nil)
	req.AddCookie(&http.Cookie{Name: security.RefreshTokenCookie, Value: "r1"})
	rr = httptest.NewRecorder()
	h.UpdateToken(rr, req)
	if rr.Code != http.StatusOK || seen != "r1" {
		t.Fatalf("expected rotation from cookie, got %d seen=%q", rr.Code, seen)
	}
	if body := decodeMap(t, rr); body["accessToken"] != "a2" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestSocialAuthForwardsProfile(t *testing.T) {
	h := newTestAuthHandler(&stubActivationService{}, &stubAuthService{
		socialFn: func(email, name, avatar string) (*service.LoginResult, error) {
			if email != "bob@x.com" || name != "Bob" || avatar != "https://img/bob.png" {
				t.Fatalf("unexpected profile %q %q %q", email, name, avatar)
			}
			return &service.LoginResult{User: &domain.User{ID: 9, Email: email}, AccessToken: "a", RefreshToken: "r"}, nil
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/social-auth", strings.NewReader(`{"email":"bob@x.com","name":"Bob","avatar":"https://img/bob.png"}`))
	rr := httptest.NewRecorder()
	h.SocialAuth(rr, req)

	if rr.Code != http.StatusOK || len(rr.Result().Cookies()) != 2 {
		t.Fatalf("expected session response with cookies, got %d", rr.Code)
	}
}

func TestLogoutClearsCookies(t *testing.T) {
	var loggedOut uint
	h := newTestAuthHandler(&stubActivationService{}, &stubAuthService{
		logoutFn: func(id uint) error {
			loggedOut = id
			return nil
		},
	})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/logout", nil)
	req = req.WithContext(middleware.WithUser(req.Context(), &domain.User{ID: 7}))
	rr := httptest.NewRecorder()
	h.Logout(rr, req)

	if rr.Code != http.StatusOK || loggedOut != 7 {
		t.Fatalf("expected logout of 7, got %d id=%d", rr.Code, loggedOut)
	}
	cookies := rr.Result().Cookies()
	if len(cookies) != 2 {
		t.Fatalf("expected both cookies cleared, got %d", len(cookies))
	}
	for _, c := range cookies {
		if c.MaxAge >= 0 || c.Value != "" {
			t.Fatalf("expected cleared cookie, got %+v", c)
		}
	}
}

func TestLogoutWithoutIdentity(t *testing.T) {
	h := newTestAuthHandler(&stubActivationService{}, &stubAuthService{})
	rr := httptest.NewRecorder()
	h.Logout(rr, httptest.NewRequest(http.MethodGet, "/api/v1/logout", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}
