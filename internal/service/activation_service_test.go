package service_test

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/sandeepkv93/course-identity-service/internal/domain"
	"github.com/sandeepkv93/course-identity-service/internal/repository"
	"github.com/sandeepkv93/course-identity-service/internal/security"
	"github.com/sandeepkv93/course-identity-service/internal/service"
)

// expectActivationMail captures the mailed code.
func expectActivationMail(h *harness, code *string) {
	h.mailer.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, msg service.Message) error {
		*code, _ = msg.Data["code"].(string)
		return nil
	})
}

func TestBeginRegistrationMailsCodeAndReturnsTicket(t *testing.T) {
	h := newHarness(t)
	var sent service.Message
	h.mailer.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, msg service.Message) error {
		sent = msg
		return nil
	})

	ticket, err := h.activation(true).BeginRegistration(h.ctx, " Ann ", " Ann@X.com ", "secret1")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if sent.To != "ann@x.com" || sent.Template != service.ActivationMailTemplate || sent.Subject == "" {
		t.Fatalf("unexpected mail: %+v", sent)
	}
	if sent.Data["name"] != "Ann" || sent.Data["expires_in"] != "5m0s" {
		t.Fatalf("unexpected mail data: %+v", sent.Data)
	}
	code, _ := sent.Data["code"].(string)
	n, err := strconv.Atoi(code)
	if err != nil || n < 1000 || n > 9999 {
		t.Fatalf("expected 4-digit code, got %q", code)
	}

	claims, err := h.jwt.ParseActivation(ticket)
	if err != nil {
		t.Fatalf("parse ticket: %v", err)
	}
	if claims.ActivationCode != code || claims.User.Email != "ann@x.com" || claims.User.Name != "Ann" {
		t.Fatalf("ticket does not carry the candidate: %+v", claims)
	}
	if _, err := h.users.FindByEmail(h.ctx, "ann@x.com"); !errors.Is(err, repository.ErrUserNotFound) {
		t.Fatalf("registration must not persist an identity, got %v", err)
	}
}

func TestBeginRegistrationValidation(t *testing.T) {
	cases := []struct {
		name, user, email, password string
	}{
		{"missing name", "", "ann@x.com", "secret1"},
		{"missing email", "Ann", "", "secret1"},
		{"bad email", "Ann", "not-an-email", "secret1"},
		{"short password", "Ann", "ann@x.com", "12345"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			_, err := h.activation(true).BeginRegistration(h.ctx, tc.user, tc.email, tc.password)
			assertKind(t, err, service.KindValidation)
		})
	}
}

func TestBeginRegistrationRejectsExistingEmail(t *testing.T) {
	h := newHarness(t)
	h.createUser(t, "Ann", "ann@x.com", "secret1", domain.RoleUser)

	_, err := h.activation(true).BeginRegistration(h.ctx, "Other", "ANN@x.com", "secret2")
	assertKind(t, err, service.KindDuplicateEmail)
}

func TestBeginRegistrationMailFailureReturnsNoTicket(t *testing.T) {
	h := newHarness(t)
	h.mailer.EXPECT().Send(gomock.Any(), gomock.Any()).Return(errors.New("smtp down"))

	ticket, err := h.activation(true).BeginRegistration(h.ctx, "Ann", "ann@x.com", "secret1")
	assertKind(t, err, service.KindDelivery)
	if ticket != "" {
		t.Fatalf("expected no ticket on delivery failure, got %q", ticket)
	}
}

func TestCompleteActivationWrongCodeDoesNotConsumeTicket(t *testing.T) {
	h := newHarness(t)
	svc := h.activation(true)
	var code string
	expectActivationMail(h, &code)
	ticket, err := svc.BeginRegistration(h.ctx, "Ann", "ann@x.com", "secret1")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	wrong := "1000"
	if code == wrong {
		wrong = "1001"
	}
	for i := 0; i < 3; i++ {
		_, err = svc.CompleteActivation(h.ctx, ticket, wrong)
		assertKind(t, err, service.KindInvalidCode)
	}

	user, err := svc.CompleteActivation(h.ctx, ticket, code)
	if err != nil {
		t.Fatalf("activation with right code: %v", err)
	}
	if user.ID == 0 || !user.IsVerified || user.Role != domain.RoleUser {
		t.Fatalf("unexpected activated user: %+v", user)
	}
	stored, err := h.users.FindByEmail(h.ctx, "ann@x.com")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if ok, _ := security.VerifyPassword(stored.PasswordHash, "secret1"); !ok {
		t.Fatal("stored password hash must verify the registered password")
	}
}

func TestCompleteActivationValidationAndTokenErrors(t *testing.T) {
	h := newHarness(t)
	svc := h.activation(true)
	var code string
	expectActivationMail(h, &code)
	ticket, err := svc.BeginRegistration(h.ctx, "Ann", "ann@x.com", "secret1")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	_, err = svc.CompleteActivation(h.ctx, "", code)
	assertKind(t, err, service.KindValidation)
	_, err = svc.CompleteActivation(h.ctx, ticket, "")
	assertKind(t, err, service.KindValidation)

	_, err = svc.CompleteActivation(h.ctx, ticket+"x", code)
	assertKind(t, err, service.KindInvalidToken)

	foreign, err := h.jwt.SignAccessToken(1, time.Minute)
	if err != nil {
		t.Fatalf("sign access: %v", err)
	}
	_, err = svc.CompleteActivation(h.ctx, foreign, code)
	assertKind(t, err, service.KindInvalidToken)

	h.clock.Advance(security.ActivationTTL + time.Second)
	_, err = svc.CompleteActivation(h.ctx, ticket, code)
	assertKind(t, err, service.KindExpired)
}

func TestCompleteActivationDuplicateEmailAfterTicketIssued(t *testing.T) {
	h := newHarness(t)
	svc := h.activation(false)
	var code string
	expectActivationMail(h, &code)
	ticket, err := svc.BeginRegistration(h.ctx, "Ann", "ann@x.com", "secret1")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	h.createUser(t, "Ann", "ann@x.com", "other-pass", domain.RoleUser)

	_, err = svc.CompleteActivation(h.ctx, ticket, code)
	assertKind(t, err, service.KindDuplicateEmail)
}

func TestCompleteActivationSingleUse(t *testing.T) {
	for _, tc := range []struct {
		name      string
		singleUse bool
		replayOK  bool
	}{
		{name: "single use rejects replay", singleUse: true, replayOK: false},
		{name: "stateless allows replay", singleUse: false, replayOK: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			svc := h.activation(tc.singleUse)
			var code string
			expectActivationMail(h, &code)
			ticket, err := svc.BeginRegistration(h.ctx, "Ann", "ann@x.com", "secret1")
			if err != nil {
				t.Fatalf("begin: %v", err)
			}
			user, err := svc.CompleteActivation(h.ctx, ticket, code)
			if err != nil {
				t.Fatalf("first activation: %v", err)
			}
			// Remove the identity so the replay is not stopped by the email check.
			if err := h.users.Delete(h.ctx, user.ID); err != nil {
				t.Fatalf("delete: %v", err)
			}

			_, err = svc.CompleteActivation(h.ctx, ticket, code)
			if tc.replayOK {
				if err != nil {
					t.Fatalf("expected replay to succeed, got %v", err)
				}
				return
			}
			assertKind(t, err, service.KindInvalidToken)
		})
	}
}

func TestCompleteActivationUsedMarkerFollowsTicketClock(t *testing.T) {
	h := newHarness(t)
	svc := h.activation(true)
	var code string
	expectActivationMail(h, &code)
	ticket, err := svc.BeginRegistration(h.ctx, "Ann", "ann@x.com", "secret1")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	claims, err := h.jwt.ParseActivation(ticket)
	if err != nil {
		t.Fatalf("parse ticket: %v", err)
	}

	h.clock.Advance(4 * time.Minute)
	if _, err := svc.CompleteActivation(h.ctx, ticket, code); err != nil {
		t.Fatalf("activate: %v", err)
	}
	ttl := h.redis.TTL("test:activation:used:" + claims.ID)
	if ttl <= 0 || ttl > time.Minute {
		t.Fatalf("used marker ttl = %v, want the ticket's remaining minute", ttl)
	}
}

func TestCompleteActivationBootstrapAdmin(t *testing.T) {
	h := newHarness(t)
	svc := h.activation(true)
	var code string
	expectActivationMail(h, &code)
	ticket, err := svc.BeginRegistration(h.ctx, "Root", "root@example.com", "secret1")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	user, err := svc.CompleteActivation(h.ctx, ticket, code)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if user.Role != domain.RoleAdmin {
		t.Fatalf("expected bootstrap admin role, got %s", user.Role)
	}
}
