package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/sandeepkv93/course-identity-service/internal/domain"
	"github.com/sandeepkv93/course-identity-service/internal/observability"
	"github.com/sandeepkv93/course-identity-service/internal/repository"
	"github.com/sandeepkv93/course-identity-service/internal/security"
)

// UserService applies identity mutations. Each one rewrites the cached
// session in the same call so authenticated reads never see stale state.
type UserService struct {
	userRepo repository.UserRepository
	sessions repository.SessionRepository
	storage  StorageService
}

func NewUserService(userRepo repository.UserRepository, sessions repository.SessionRepository, storage StorageService) *UserService {
	return &UserService{userRepo: userRepo, sessions: sessions, storage: storage}
}

func (s *UserService) GetByID(ctx context.Context, id uint) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err)
	}
	return user, nil
}

func (s *UserService) UpdateInfo(ctx context.Context, id uint, name string) (user *domain.User, err error) {
	ctx, span := observability.StartSpan(ctx, "user.update_info", attribute.Int64("user.id", int64(id)))
	defer func() { observability.EndSpan(span, err) }()

	name = strings.TrimSpace(name)
	if err := validateName(name); err != nil {
		observability.RecordUserProfileEvent(ctx, "update_info", "validation_error")
		return nil, err
	}
	user, err = s.userRepo.FindByID(ctx, id)
	if err != nil {
		observability.RecordUserProfileEvent(ctx, "update_info", "error")
		return nil, lookupError(err)
	}
	user.Name = name
	if err := s.persist(ctx, user); err != nil {
		observability.RecordUserProfileEvent(ctx, "update_info", "error")
		return nil, err
	}
	observability.RecordUserProfileEvent(ctx, "update_info", "success")
	return user, nil
}

func (s *UserService) UpdatePassword(ctx context.Context, id uint, oldPassword, newPassword string) (user *domain.User, err error) {
	ctx, span := observability.StartSpan(ctx, "user.update_password", attribute.Int64("user.id", int64(id)))
	defer func() { observability.EndSpan(span, err) }()

	if oldPassword == "" || newPassword == "" {
		observability.RecordUserProfileEvent(ctx, "update_password", "validation_error")
		return nil, validationError("Please enter old and new password")
	}
	if err := validatePassword(newPassword); err != nil {
		observability.RecordUserProfileEvent(ctx, "update_password", "validation_error")
		return nil, err
	}
	user, err = s.userRepo.FindByID(ctx, id)
	if err != nil {
		observability.RecordUserProfileEvent(ctx, "update_password", "error")
		return nil, lookupError(err)
	}
	if !security.HasUsablePassword(user.PasswordHash) {
		observability.RecordUserProfileEvent(ctx, "update_password", "validation_error")
		return nil, validationError("this account signs in through a social provider and has no password")
	}
	ok, err := security.VerifyPassword(user.PasswordHash, oldPassword)
	if err != nil || !ok {
		observability.RecordUserProfileEvent(ctx, "update_password", "invalid_credentials")
		return nil, newError(KindInvalidCredentials, "Invalid old password", err)
	}
	hash, err := security.HashPassword(newPassword)
	if err != nil {
		observability.RecordUserProfileEvent(ctx, "update_password", "error")
		return nil, internalError("hash password", err)
	}
	user.PasswordHash = hash
	if err := s.persist(ctx, user); err != nil {
		observability.RecordUserProfileEvent(ctx, "update_password", "error")
		return nil, err
	}
	observability.RecordUserProfileEvent(ctx, "update_password", "success")
	return user, nil
}

// UpdateAvatar stores the new image first and only then drops the previous
// object, so a failed upload keeps the old avatar.
func (s *UserService) UpdateAvatar(ctx context.Context, id uint, file io.Reader, size int64) (user *domain.User, err error) {
	ctx, span := observability.StartSpan(ctx, "user.update_avatar", attribute.Int64("user.id", int64(id)))
	defer func() { observability.EndSpan(span, err) }()

	user, err = s.userRepo.FindByID(ctx, id)
	if err != nil {
		observability.RecordUserProfileEvent(ctx, "update_avatar", "error")
		return nil, lookupError(err)
	}
	obj, err := s.storage.UploadAvatar(ctx, id, file, size)
	if err != nil {
		observability.RecordUserProfileEvent(ctx, "update_avatar", "upload_error")
		return nil, avatarError(err)
	}
	previous := user.Avatar.PublicID
	user.Avatar = domain.Avatar{PublicID: obj.PublicID, URL: obj.URL}
	if err := s.persist(ctx, user); err != nil {
		observability.RecordUserProfileEvent(ctx, "update_avatar", "error")
		return nil, err
	}
	if previous != "" && previous != obj.PublicID {
		if err := s.storage.DeleteAvatar(ctx, id, previous); err != nil {
			slog.WarnContext(ctx, "previous avatar not removed",
				"component", "user_service",
				"user_id", id,
				"public_id", previous,
				"error", err,
			)
		}
	}
	observability.RecordUserProfileEvent(ctx, "update_avatar", "success")
	return user, nil
}

func (s *UserService) List(ctx context.Context, req repository.PageRequest) (repository.PageResult[domain.User], error) {
	page, err := s.userRepo.List(ctx, req)
	if err != nil {
		return repository.PageResult[domain.User]{}, internalError("list users", err)
	}
	return page, nil
}

// UpdateRole changes the role of the identity registered under email.
func (s *UserService) UpdateRole(ctx context.Context, actorID uint, email, role string) (user *domain.User, err error) {
	ctx, span := observability.StartSpan(ctx, "admin.update_role", attribute.Int64("actor.id", int64(actorID)))
	defer func() { observability.EndSpan(span, err) }()

	email = normalizeEmail(email)
	if email == "" || strings.TrimSpace(role) == "" {
		observability.RecordAdminUserMutation(ctx, "update_role", "validation_error")
		return nil, validationError("email and role are required")
	}
	newRole, err := domain.ParseRole(role)
	if err != nil {
		observability.RecordAdminUserMutation(ctx, "update_role", "validation_error")
		return nil, newError(KindValidation, "unknown role", err)
	}
	user, err = s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		observability.RecordAdminUserMutation(ctx, "update_role", "error")
		return nil, lookupError(err)
	}
	if user.ID == actorID && newRole != user.Role {
		observability.RecordAdminUserMutation(ctx, "update_role", "forbidden")
		return nil, newError(KindForbidden, "admins cannot change their own role", nil)
	}
	user.Role = newRole
	if err := s.persist(ctx, user); err != nil {
		observability.RecordAdminUserMutation(ctx, "update_role", "error")
		return nil, err
	}
	observability.RecordAdminUserMutation(ctx, "update_role", "success")
	return user, nil
}

func (s *UserService) Delete(ctx context.Context, actorID, id uint) (err error) {
	ctx, span := observability.StartSpan(ctx, "admin.delete_user", attribute.Int64("user.id", int64(id)))
	defer func() { observability.EndSpan(span, err) }()

	if id == actorID {
		observability.RecordAdminUserMutation(ctx, "delete", "forbidden")
		return newError(KindForbidden, "admins cannot delete their own account", nil)
	}
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// a retry after a failed session delete still clears the session
			if err := s.sessions.Delete(ctx, id); err != nil {
				observability.RecordAdminUserMutation(ctx, "delete", "error")
				return internalError("delete session", err)
			}
		}
		observability.RecordAdminUserMutation(ctx, "delete", "error")
		return lookupError(err)
	}
	// The session goes first so a cache failure leaves the identity intact,
	// and again after the row so a login racing the delete cannot outlive it.
	if err := s.sessions.Delete(ctx, id); err != nil {
		observability.RecordAdminUserMutation(ctx, "delete", "error")
		return internalError("delete session", err)
	}
	if err := s.userRepo.Delete(ctx, id); err != nil {
		observability.RecordAdminUserMutation(ctx, "delete", "error")
		return lookupError(err)
	}
	if err := s.sessions.Delete(ctx, id); err != nil {
		observability.RecordAdminUserMutation(ctx, "delete", "error")
		return internalError("delete session", err)
	}
	if user.Avatar.PublicID != "" {
		if err := s.storage.DeleteAvatar(ctx, id, user.Avatar.PublicID); err != nil {
			slog.WarnContext(ctx, "avatar of deleted user not removed",
				"component", "user_service",
				"user_id", id,
				"public_id", user.Avatar.PublicID,
				"error", err,
			)
		}
	}
	observability.RecordAdminUserMutation(ctx, "delete", "success")
	return nil
}

// AddCourse records an enrollment for the order collaborator. Repeating it
// for the same course changes nothing.
func (s *UserService) AddCourse(ctx context.Context, id uint, courseID string) (*domain.User, error) {
	courseID = strings.TrimSpace(courseID)
	if courseID == "" {
		return nil, validationError("course id is required")
	}
	if err := s.userRepo.AddCourse(ctx, id, courseID); err != nil {
		return nil, lookupError(err)
	}
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err)
	}
	if err := s.syncSession(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) persist(ctx context.Context, user *domain.User) error {
	if err := s.userRepo.Update(ctx, user); err != nil {
		return lookupError(err)
	}
	return s.syncSession(ctx, user)
}

// syncSession rewrites a live session only; a logged-out identity stays
// logged out.
func (s *UserService) syncSession(ctx context.Context, user *domain.User) error {
	replaced, err := s.sessions.Replace(ctx, user)
	if err != nil {
		return internalError("rewrite session", err)
	}
	outcome := "rewritten"
	if !replaced {
		outcome = "absent"
	}
	observability.RecordSessionCacheEvent(ctx, "sync", outcome)
	return nil
}

func lookupError(err error) error {
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		return newError(KindNotFound, "User not found.", err)
	case errors.Is(err, repository.ErrDuplicateEmail):
		return newError(KindDuplicateEmail, "Email already exist.", err)
	default:
		return internalError("user store", err)
	}
}

func avatarError(err error) error {
	switch {
	case errors.Is(err, ErrFileTooBig), errors.Is(err, ErrInvalidFileType):
		return newError(KindValidation, err.Error(), err)
	case errors.Is(err, ErrStorageDisabled):
		return newError(KindInternal, "avatar uploads are not available", err)
	default:
		return internalError("upload avatar", err)
	}
}
