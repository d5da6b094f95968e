package handler

import (
	"net/http"
	"time"

	"github.com/sandeepkv93/course-identity-service/internal/http/response"
	"github.com/sandeepkv93/course-identity-service/internal/observability"
	"github.com/sandeepkv93/course-identity-service/internal/security"
	"github.com/sandeepkv93/course-identity-service/internal/service"
)

type AuthHandler struct {
	activationSvc service.ActivationServiceInterface
	authSvc       service.AuthServiceInterface
	cookieMgr     *security.CookieManager
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewAuthHandler(
	activationSvc service.ActivationServiceInterface,
	authSvc service.AuthServiceInterface,
	cookieMgr *security.CookieManager,
	tokens *service.TokenService,
) *AuthHandler {
	return &AuthHandler{
		activationSvc: activationSvc,
		authSvc:       authSvc,
		cookieMgr:     cookieMgr,
		accessTTL:     tokens.AccessTTL(),
		refreshTTL:    tokens.RefreshTTL(),
	}
}

type sessionResponse struct {
	Success     bool   `json:"success"`
	User        any    `json:"user"`
	AccessToken string `json:"accessToken"`
}

type registrationRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type activationRequest struct {
	ActivationToken string `json:"activationToken"`
	ActivationCode  string `json:"activationCode"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type socialAuthRequest struct {
	Email  string `json:"email"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

func (h *AuthHandler) Registration(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "registration", status, time.Since(start))
	}()

	var body registrationRequest
	if err := decodeJSON(r, &body); err != nil {
		status = "failure"
		response.FromError(w, r, err)
		return
	}
	ticket, err := h.activationSvc.BeginRegistration(r.Context(), body.Name, body.Email, body.Password)
	if err != nil {
		status = "failure"
		observability.Audit(r, observability.AuditInput{
			EventName: "auth.registration.failed", TargetType: "user", Action: "register", Outcome: "failure", Reason: failureReason(err),
		})
		response.FromError(w, r, err)
		return
	}
	observability.Audit(r, observability.AuditInput{
		EventName: "auth.registration.started", TargetType: "user", Action: "register", Outcome: "success",
	})
	response.JSON(w, r, http.StatusCreated, map[string]any{
		"success":         true,
		"message":         "Please check your email " + body.Email + " to activate your account.",
		"activationToken": ticket,
	})
}

func (h *AuthHandler) ActivateUser(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "activate_user", status, time.Since(start))
	}()

	var body activationRequest
	if err := decodeJSON(r, &body); err != nil {
		status = "failure"
		response.FromError(w, r, err)
		return
	}
	user, err := h.activationSvc.CompleteActivation(r.Context(), body.ActivationToken, body.ActivationCode)
	if err != nil {
		status = "failure"
		observability.Audit(r, observability.AuditInput{
			EventName: "auth.activation.failed", TargetType: "user", Action: "activate", Outcome: "failure", Reason: failureReason(err),
		})
		response.FromError(w, r, err)
		return
	}
	observability.Audit(r, observability.AuditInput{
		EventName: "auth.activation.success", ActorUserID: userIDString(user.ID), TargetType: "user", TargetID: userIDString(user.ID), Action: "activate", Outcome: "success",
	})
	response.JSON(w, r, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Your account is created successfully.",
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "login", status, time.Since(start))
	}()

	var body loginRequest
	if err := decodeJSON(r, &body); err != nil {
		status = "failure"
		response.FromError(w, r, err)
		return
	}
	result, err := h.authSvc.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		status = "failure"
		observability.Audit(r, observability.AuditInput{
			EventName: "auth.login.failed", TargetType: "session", Action: "login", Outcome: "failure", Reason: failureReason(err),
		})
		response.FromError(w, r, err)
		return
	}
	h.writeSession(w, r, result, "auth.login.success", "login")
}

func (h *AuthHandler) SocialAuth(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "social_auth", status, time.Since(start))
	}()

	var body socialAuthRequest
	if err := decodeJSON(r, &body); err != nil {
		status = "failure"
		response.FromError(w, r, err)
		return
	}
	result, err := h.authSvc.SocialAuth(r.Context(), body.Email, body.Name, body.Avatar)
	if err != nil {
		status = "failure"
		observability.Audit(r, observability.AuditInput{
			EventName: "auth.social.failed", TargetType: "session", Action: "social_login", Outcome: "failure", Reason: failureReason(err),
		})
		response.FromError(w, r, err)
		return
	}
	h.writeSession(w, r, result, "auth.social.success", "social_login")
}

// UpdateToken rotates the token pair from the refresh cookie.
func (h *AuthHandler) UpdateToken(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "refresh", status, time.Since(start))
	}()

	result, err := h.authSvc.Refresh(r.Context(), security.GetCookie(r, security.RefreshTokenCookie))
	if err != nil {
		status = "failure"
		observability.Audit(r, observability.AuditInput{
			EventName: "auth.refresh.failed", TargetType: "session", Action: "refresh", Outcome: "failure", Reason: failureReason(err),
		})
		response.FromError(w, r, err)
		return
	}
	h.writeSession(w, r, result, "auth.refresh.success", "refresh")
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "logout", status, time.Since(start))
	}()

	user, err := currentUser(r)
	if err != nil {
		status = "failure"
		response.FromError(w, r, err)
		return
	}
	if err := h.authSvc.Logout(r.Context(), user.ID); err != nil {
		status = "failure"
		observability.Audit(r, observability.AuditInput{
			EventName: "auth.logout.failed", ActorUserID: userIDString(user.ID), TargetType: "session", TargetID: userIDString(user.ID), Action: "logout", Outcome: "failure", Reason: failureReason(err),
		})
		response.FromError(w, r, err)
		return
	}
	h.cookieMgr.ClearTokenCookies(w)
	observability.Audit(r, observability.AuditInput{
		EventName: "auth.logout.success", ActorUserID: userIDString(user.ID), TargetType: "session", TargetID: userIDString(user.ID), Action: "logout", Outcome: "success",
	})
	response.JSON(w, r, http.StatusOK, map[string]any{"success": true, "message": "Logged out successfully"})
}

func (h *AuthHandler) writeSession(w http.ResponseWriter, r *http.Request, result *service.LoginResult, event, action string) {
	h.cookieMgr.SetTokenCookies(w, result.AccessToken, result.RefreshToken, h.accessTTL, h.refreshTTL)
	id := userIDString(result.User.ID)
	observability.Audit(r, observability.AuditInput{
		EventName: event, ActorUserID: id, TargetType: "session", TargetID: id, Action: action, Outcome: "success",
	})
	response.JSON(w, r, http.StatusOK, sessionResponse{Success: true, User: result.User, AccessToken: result.AccessToken})
}
