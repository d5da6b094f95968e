package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/sandeepkv93/course-identity-service/internal/domain"
	"github.com/sandeepkv93/course-identity-service/internal/http/response"
	"github.com/sandeepkv93/course-identity-service/internal/repository"
	"github.com/sandeepkv93/course-identity-service/internal/service"
)

var errNotImplemented = errors.New("not implemented")

type stubActivationService struct {
	beginFn    func(name, email, password string) (string, error)
	completeFn func(ticket, code string) (*domain.User, error)
}

func (s *stubActivationService) BeginRegistration(_ context.Context, name, email, password string) (string, error) {
	if s.beginFn != nil {
		return s.beginFn(name, email, password)
	}
	return "", errNotImplemented
}

func (s *stubActivationService) CompleteActivation(_ context.Context, ticket, code string) (*domain.User, error) {
	if s.completeFn != nil {
		return s.completeFn(ticket, code)
	}
	return nil, errNotImplemented
}

type stubAuthService struct {
	loginFn   func(email, password string) (*service.LoginResult, error)
	refreshFn func(refreshToken string) (*service.LoginResult, error)
	logoutFn  func(userID uint) error
	socialFn  func(email, name, avatarURL string) (*service.LoginResult, error)
}

func (s *stubAuthService) Login(_ context.Context, email, password string) (*service.LoginResult, error) {
	if s.loginFn != nil {
		return s.loginFn(email, password)
	}
	return nil, errNotImplemented
}

func (s *stubAuthService) Refresh(_ context.Context, refreshToken string) (*service.LoginResult, error) {
	if s.refreshFn != nil {
		return s.refreshFn(refreshToken)
	}
	return nil, errNotImplemented
}

func (s *stubAuthService) Logout(_ context.Context, userID uint) error {
	if s.logoutFn != nil {
		return s.logoutFn(userID)
	}
	return errNotImplemented
}

func (s *stubAuthService) SocialAuth(_ context.Context, email, name, avatarURL string) (*service.LoginResult, error) {
	if s.socialFn != nil {
		return s.socialFn(email, name, avatarURL)
	}
	return nil, errNotImplemented
}

type stubUserService struct {
	updateInfoFn     func(id uint, name string) (*domain.User, error)
	updatePasswordFn func(id uint, oldPassword, newPassword string) (*domain.User, error)
	updateAvatarFn   func(id uint, file io.Reader, size int64) (*domain.User, error)
	listFn           func(req repository.PageRequest) (repository.PageResult[domain.User], error)
	updateRoleFn     func(actorID uint, email, role string) (*domain.User, error)
	deleteFn         func(actorID, id uint) error
}

func (s *stubUserService) GetByID(context.Context, uint) (*domain.User, error) {
	return nil, errNotImplemented
}

func (s *stubUserService) UpdateInfo(_ context.Context, id uint, name string) (*domain.User, error) {
	if s.updateInfoFn != nil {
		return s.updateInfoFn(id, name)
	}
	return nil, errNotImplemented
}

func (s *stubUserService) UpdatePassword(_ context.Context, id uint, oldPassword, newPassword string) (*domain.User, error) {
	if s.updatePasswordFn != nil {
		return s.updatePasswordFn(id, oldPassword, newPassword)
	}
	return nil, errNotImplemented
}

func (s *stubUserService) UpdateAvatar(_ context.Context, id uint, file io.Reader, size int64) (*domain.User, error) {
	if s.updateAvatarFn != nil {
		return s.updateAvatarFn(id, file, size)
	}
	return nil, errNotImplemented
}

func (s *stubUserService) List(_ context.Context, req repository.PageRequest) (repository.PageResult[domain.User], error) {
	if s.listFn != nil {
		return s.listFn(req)
	}
	return repository.PageResult[domain.User]{}, errNotImplemented
}

func (s *stubUserService) UpdateRole(_ context.Context, actorID uint, email, role string) (*domain.User, error) {
	if s.updateRoleFn != nil {
		return s.updateRoleFn(actorID, email, role)
	}
	return nil, errNotImplemented
}

func (s *stubUserService) Delete(_ context.Context, actorID, id uint) error {
	if s.deleteFn != nil {
		return s.deleteFn(actorID, id)
	}
	return errNotImplemented
}

func (s *stubUserService) AddCourse(context.Context, uint, string) (*domain.User, error) {
	return nil, errNotImplemented
}

func decodeErrorBody(t *testing.T, rr *httptest.ResponseRecorder) response.ErrorBody {
	t.Helper()
	var body response.ErrorBody
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, rr.Body.String())
	}
	return body
}

func decodeMap(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v (%s)", err, rr.Body.String())
	}
	return body
}
