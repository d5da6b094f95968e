package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/sandeepkv93/course-identity-service/internal/domain"
	"github.com/sandeepkv93/course-identity-service/internal/observability"
	"github.com/sandeepkv93/course-identity-service/internal/repository"
	"github.com/sandeepkv93/course-identity-service/internal/security"
)

const (
	ActivationMailTemplate = "activation-mail"
	activationMailSubject  = "Activate your account."
)

// ActivationService runs the two-phase registration: a signed ticket plus a
// mailed one-time code, then identity creation once both are presented.
type ActivationService struct {
	userRepo            repository.UserRepository
	tickets             repository.ActivationTicketRepository
	tokenSvc            *TokenService
	mailer              Mailer
	singleUse           bool
	bootstrapAdminEmail string
}

func NewActivationService(
	userRepo repository.UserRepository,
	tickets repository.ActivationTicketRepository,
	tokenSvc *TokenService,
	mailer Mailer,
	singleUse bool,
	bootstrapAdminEmail string,
) *ActivationService {
	return &ActivationService{
		userRepo:            userRepo,
		tickets:             tickets,
		tokenSvc:            tokenSvc,
		mailer:              mailer,
		singleUse:           singleUse,
		bootstrapAdminEmail: normalizeEmail(bootstrapAdminEmail),
	}
}

// BeginRegistration returns the activation ticket after the code mail was
// handed to the mailer. Nothing is persisted.
func (s *ActivationService) BeginRegistration(ctx context.Context, name, email, password string) (ticket string, err error) {
	ctx, span := observability.StartSpan(ctx, "activation.begin")
	defer func() { observability.EndSpan(span, err) }()

	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return "", s.fail(ctx, "begin", "validation_error", validationError("Name, email and password are required."))
	}
	if err := validateName(name); err != nil {
		return "", s.fail(ctx, "begin", "validation_error", err)
	}
	if err := validateEmail(email); err != nil {
		return "", s.fail(ctx, "begin", "validation_error", err)
	}
	if err := validatePassword(password); err != nil {
		return "", s.fail(ctx, "begin", "validation_error", err)
	}
	if err := s.ensureEmailFree(ctx, email, "Email already exist."); err != nil {
		return "", s.fail(ctx, "begin", string(KindOf(err)), err)
	}

	code, err := security.NewActivationCode()
	if err != nil {
		return "", s.fail(ctx, "begin", "internal_error", internalError("generate activation code", err))
	}
	ticket, err = s.tokenSvc.SignActivation(security.ActivationUser{Name: name, Email: email, Password: password}, code)
	if err != nil {
		return "", s.fail(ctx, "begin", "internal_error", internalError("sign activation ticket", err))
	}

	err = s.mailer.Send(ctx, Message{
		To:       email,
		Subject:  activationMailSubject,
		Template: ActivationMailTemplate,
		Data: map[string]any{
			"name":       name,
			"code":       code,
			"expires_in": security.ActivationTTL.String(),
		},
	})
	if err != nil {
		return "", s.fail(ctx, "begin", "delivery_error", newError(KindDelivery, "could not send activation mail", err))
	}
	observability.RecordActivationEvent(ctx, "begin", "success")
	return ticket, nil
}

// CompleteActivation verifies ticket and code and creates the identity.
// A wrong code leaves the ticket usable until it expires.
func (s *ActivationService) CompleteActivation(ctx context.Context, ticket, code string) (user *domain.User, err error) {
	ctx, span := observability.StartSpan(ctx, "activation.complete")
	defer func() { observability.EndSpan(span, err) }()

	ticket = strings.TrimSpace(ticket)
	code = strings.TrimSpace(code)
	if ticket == "" || code == "" {
		return nil, s.fail(ctx, "complete", "validation_error", validationError("Activation token and Activation code are required!"))
	}

	claims, err := s.tokenSvc.ParseActivation(ticket)
	if err != nil {
		return nil, s.fail(ctx, "complete", string(KindOf(err)), err)
	}
	if subtle.ConstantTimeCompare([]byte(claims.ActivationCode), []byte(code)) != 1 {
		return nil, s.fail(ctx, "complete", "invalid_code", newError(KindInvalidCode, "Invalid activation code.", nil))
	}

	email := normalizeEmail(claims.User.Email)
	if err := s.ensureEmailFree(ctx, email, "Email already exist!"); err != nil {
		return nil, s.fail(ctx, "complete", string(KindOf(err)), err)
	}

	if s.singleUse {
		span.SetAttributes(attribute.Bool("activation.single_use", true))
		claimed, err := s.tickets.Claim(ctx, claims.ID, s.tokenSvc.ActivationTTLLeft(claims))
		if err != nil {
			return nil, s.fail(ctx, "complete", "internal_error", internalError("claim activation ticket", err))
		}
		if !claimed {
			return nil, s.fail(ctx, "complete", "replayed", newError(KindInvalidToken, "activation token already used", nil))
		}
	}

	hash, err := security.HashPassword(claims.User.Password)
	if err != nil {
		return nil, s.fail(ctx, "complete", "internal_error", internalError("hash password", err))
	}
	user = &domain.User{
		Name:         strings.TrimSpace(claims.User.Name),
		Email:        email,
		PasswordHash: hash,
		Role:         initialRole(email, s.bootstrapAdminEmail),
		IsVerified:   true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, s.fail(ctx, "complete", string(KindDuplicateEmail), newError(KindDuplicateEmail, "Email already exist!", err))
		}
		return nil, s.fail(ctx, "complete", "internal_error", internalError("create user", err))
	}
	observability.RecordActivationEvent(ctx, "complete", "success")
	return user, nil
}

func (s *ActivationService) ensureEmailFree(ctx context.Context, email, message string) error {
	_, err := s.userRepo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return newError(KindDuplicateEmail, message, nil)
	case errors.Is(err, repository.ErrUserNotFound):
		return nil
	default:
		return internalError("lookup email", err)
	}
}

// initialRole grants admin to the configured bootstrap address only.
func initialRole(email, bootstrapAdminEmail string) domain.Role {
	if bootstrapAdminEmail != "" && email == bootstrapAdminEmail {
		return domain.RoleAdmin
	}
	return domain.RoleUser
}

func (s *ActivationService) fail(ctx context.Context, stage, outcome string, err error) error {
	observability.RecordActivationEvent(ctx, stage, strings.ToLower(outcome))
	return err
}
