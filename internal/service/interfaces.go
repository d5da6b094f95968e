package service

import (
	"context"
	"io"

	"github.com/sandeepkv93/course-identity-service/internal/domain"
	"github.com/sandeepkv93/course-identity-service/internal/repository"
)

type ActivationServiceInterface interface {
	BeginRegistration(ctx context.Context, name, email, password string) (string, error)
	CompleteActivation(ctx context.Context, ticket, code string) (*domain.User, error)
}

type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*LoginResult, error)
	Logout(ctx context.Context, userID uint) error
	SocialAuth(ctx context.Context, email, name, avatarURL string) (*LoginResult, error)
}

type UserServiceInterface interface {
	GetByID(ctx context.Context, id uint) (*domain.User, error)
	UpdateInfo(ctx context.Context, id uint, name string) (*domain.User, error)
	UpdatePassword(ctx context.Context, id uint, oldPassword, newPassword string) (*domain.User, error)
	UpdateAvatar(ctx context.Context, id uint, file io.Reader, size int64) (*domain.User, error)
	List(ctx context.Context, req repository.PageRequest) (repository.PageResult[domain.User], error)
	UpdateRole(ctx context.Context, actorID uint, email, role string) (*domain.User, error)
	Delete(ctx context.Context, actorID, id uint) error
	AddCourse(ctx context.Context, id uint, courseID string) (*domain.User, error)
}

var (
	_ ActivationServiceInterface = (*ActivationService)(nil)
	_ AuthServiceInterface       = (*AuthService)(nil)
	_ UserServiceInterface       = (*UserService)(nil)
)
