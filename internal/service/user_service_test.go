package service_test

import (
	"bytes"
	"errors"
	"testing"

	"go.uber.org/mock/gomock"

	"github.com/sandeepkv93/course-identity-service/internal/domain"
	"github.com/sandeepkv93/course-identity-service/internal/repository"
	repogomock "github.com/sandeepkv93/course-identity-service/internal/repository/gomock"
	"github.com/sandeepkv93/course-identity-service/internal/security"
	"github.com/sandeepkv93/course-identity-service/internal/service"
)

func loginForTest(t *testing.T, h *harness, email, password string) {
	t.Helper()
	if _, err := h.auth().Login(h.ctx, email, password); err != nil {
		t.Fatalf("login %s: %v", email, err)
	}
}

func TestUserServiceGetByID(t *testing.T) {
	h := newHarness(t)
	ann := h.createUser(t, "Ann", "ann@x.com", "secret1", domain.RoleUser)
	svc := h.userService()

	got, err := svc.GetByID(h.ctx, ann.ID)
	if err != nil || got.Email != "ann@x.com" {
		t.Fatalf("get: user=%+v err=%v", got, err)
	}
	_, err = svc.GetByID(h.ctx, 999)
	assertKind(t, err, service.KindNotFound)
}

func TestUpdateInfoRewritesLiveSessionOnly(t *testing.T) {
	h := newHarness(t)
	ann := h.createUser(t, "Ann", "ann@x.com", "secret1", domain.RoleUser)
	bob := h.createUser(t, "Bob", "bob@x.com", "secret1", domain.RoleUser)
	loginForTest(t, h, "ann@x.com", "secret1")
	svc := h.userService()

	if _, err := svc.UpdateInfo(h.ctx, ann.ID, "  Ann Lee "); err != nil {
		t.Fatalf("update ann: %v", err)
	}
	cached, err := h.sessions.Get(h.ctx, ann.ID)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if cached.Name != "Ann Lee" {
		t.Fatalf("expected cached name to follow the store, got %q", cached.Name)
	}

	if _, err := svc.UpdateInfo(h.ctx, bob.ID, "Bobby"); err != nil {
		t.Fatalf("update bob: %v", err)
	}
	if h.hasSession(bob.ID) {
		t.Fatal("profile update must not create a session for a logged-out user")
	}

	_, err = svc.UpdateInfo(h.ctx, ann.ID, " ")
	assertKind(t, err, service.KindValidation)
	_, err = svc.UpdateInfo(h.ctx, 999, "Ghost")
	assertKind(t, err, service.KindNotFound)
}

func TestUpdatePassword(t *testing.T) {
	h := newHarness(t)
	ann := h.createUser(t, "Ann", "ann@x.com", "secret1", domain.RoleUser)
	loginForTest(t, h, "ann@x.com", "secret1")
	svc := h.userService()

	_, err := svc.UpdatePassword(h.ctx, ann.ID, "", "newpass1")
	assertKind(t, err, service.KindValidation)
	_, err = svc.UpdatePassword(h.ctx, ann.ID, "secret1", "short")
	assertKind(t, err, service.KindValidation)
	_, err = svc.UpdatePassword(h.ctx, ann.ID, "wrong-old", "newpass1")
	assertKind(t, err, service.KindInvalidCredentials)

	if _, err := svc.UpdatePassword(h.ctx, ann.ID, "secret1", "newpass1"); err != nil {
		t.Fatalf("update password: %v", err)
	}
	stored, err := h.users.FindByID(h.ctx, ann.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if ok, _ := security.VerifyPassword(stored.PasswordHash, "newpass1"); !ok {
		t.Fatal("new password must verify")
	}
	if !h.hasSession(ann.ID) {
		t.Fatal("live session must survive a password change")
	}
}

func TestUpdatePasswordRejectsSocialAccount(t *testing.T) {
	h := newHarness(t)
	res, err := h.auth().SocialAuth(h.ctx, "sam@x.com", "Sam", "")
	if err != nil {
		t.Fatalf("social: %v", err)
	}
	_, err = h.userService().UpdatePassword(h.ctx, res.User.ID, "anything", "newpass1")
	assertKind(t, err, service.KindValidation)
}

func TestUpdateAvatarReplacesPreviousObject(t *testing.T) {
	h := newHarness(t)
	ann := h.createUser(t, "Ann", "ann@x.com", "secret1", domain.RoleUser)
	ann.Avatar = domain.Avatar{PublicID: "avatars/user-1/old.png", URL: "https://old"}
	if err := h.users.Update(h.ctx, ann); err != nil {
		t.Fatalf("seed avatar: %v", err)
	}
	loginForTest(t, h, "ann@x.com", "secret1")

	body := bytes.NewReader([]byte("\x89PNG\r\n\x1a\n"))
	gomock.InOrder(
		h.storage.EXPECT().UploadAvatar(gomock.Any(), ann.ID, body, int64(8)).
			Return(service.AvatarObject{PublicID: "avatars/user-1/new.png", URL: "https://new"}, nil),
		h.storage.EXPECT().DeleteAvatar(gomock.Any(), ann.ID, "avatars/user-1/old.png").Return(nil),
	)

	updated, err := h.userService().UpdateAvatar(h.ctx, ann.ID, body, 8)
	if err != nil {
		t.Fatalf("update avatar: %v", err)
	}
	if updated.Avatar.PublicID != "avatars/user-1/new.png" || updated.Avatar.URL != "https://new" {
		t.Fatalf("unexpected avatar: %+v", updated.Avatar)
	}
	cached, err := h.sessions.Get(h.ctx, ann.ID)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if cached.Avatar.URL != "https://new" {
		t.Fatalf("expected cached avatar to be rewritten, got %+v", cached.Avatar)
	}
}

func TestUpdateAvatarUploadErrors(t *testing.T) {
	h := newHarness(t)
	ann := h.createUser(t, "Ann", "ann@x.com", "secret1", domain.RoleUser)
	svc := h.userService()

	h.storage.EXPECT().UploadAvatar(gomock.Any(), ann.ID, gomock.Any(), gomock.Any()).Return(service.AvatarObject{}, service.ErrInvalidFileType)
	_, err := svc.UpdateAvatar(h.ctx, ann.ID, bytes.NewReader([]byte("text")), 4)
	assertKind(t, err, service.KindValidation)

	h.storage.EXPECT().UploadAvatar(gomock.Any(), ann.ID, gomock.Any(), gomock.Any()).Return(service.AvatarObject{}, errors.New("minio down"))
	_, err = svc.UpdateAvatar(h.ctx, ann.ID, bytes.NewReader([]byte("text")), 4)
	assertKind(t, err, service.KindInternal)

	stored, err := h.users.FindByID(h.ctx, ann.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if stored.Avatar.PublicID != "" {
		t.Fatalf("failed upload must not change the avatar: %+v", stored.Avatar)
	}
}

func TestUpdateRole(t *testing.T) {
	h := newHarness(t)
	admin := h.createUser(t, "Root", "root@x.com", "secret1", domain.RoleAdmin)
	ann := h.createUser(t, "Ann", "ann@x.com", "secret1", domain.RoleUser)
	loginForTest(t, h, "ann@x.com", "secret1")
	svc := h.userService()

	_, err := svc.UpdateRole(h.ctx, admin.ID, "ann@x.com", "superuser")
	assertKind(t, err, service.KindValidation)
	_, err = svc.UpdateRole(h.ctx, admin.ID, "", "admin")
	assertKind(t, err, service.KindValidation)
	_, err = svc.UpdateRole(h.ctx, admin.ID, "ghost@x.com", "admin")
	assertKind(t, err, service.KindNotFound)
	_, err = svc.UpdateRole(h.ctx, admin.ID, "root@x.com", "user")
	assertKind(t, err, service.KindForbidden)

	updated, err := svc.UpdateRole(h.ctx, admin.ID, "ANN@x.com", " Admin ")
	if err != nil {
		t.Fatalf("update role: %v", err)
	}
	if updated.Role != domain.RoleAdmin {
		t.Fatalf("expected admin, got %s", updated.Role)
	}
	cached, err := h.sessions.Get(h.ctx, ann.ID)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if cached.Role != domain.RoleAdmin {
		t.Fatalf("role change must reach the cached session, got %s", cached.Role)
	}
	if h.hasSession(admin.ID) {
		t.Fatal("admin was never logged in and must stay that way")
	}
}

func TestDeleteUserRemovesIdentityAndSession(t *testing.T) {
	h := newHarness(t)
	admin := h.createUser(t, "Root", "root@x.com", "secret1", domain.RoleAdmin)
	ann := h.createUser(t, "Ann", "ann@x.com", "secret1", domain.RoleUser)
	ann.Avatar = domain.Avatar{PublicID: "avatars/user-2/a.png", URL: "https://a"}
	if err := h.users.Update(h.ctx, ann); err != nil {
		t.Fatalf("seed avatar: %v", err)
	}
	loginForTest(t, h, "ann@x.com", "secret1")
	svc := h.userService()

	err := svc.Delete(h.ctx, admin.ID, admin.ID)
	assertKind(t, err, service.KindForbidden)
	err = svc.Delete(h.ctx, admin.ID, 999)
	assertKind(t, err, service.KindNotFound)

	h.storage.EXPECT().DeleteAvatar(gomock.Any(), ann.ID, "avatars/user-2/a.png").Return(errors.New("ignored"))
	if err := svc.Delete(h.ctx, admin.ID, ann.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := h.users.FindByID(h.ctx, ann.ID); !errors.Is(err, repository.ErrUserNotFound) {
		t.Fatalf("expected identity gone, got %v", err)
	}
	if h.hasSession(ann.ID) {
		t.Fatal("expected session gone")
	}
}

func TestDeleteUserSessionFailureKeepsIdentityForRetry(t *testing.T) {
	h := newHarness(t)
	admin := h.createUser(t, "Root", "root@x.com", "secret1", domain.RoleAdmin)
	ann := h.createUser(t, "Ann", "ann@x.com", "secret1", domain.RoleUser)
	loginForTest(t, h, "ann@x.com", "secret1")
	svc := h.userService()

	h.redis.SetError("ERR injected session cache failure")
	err := svc.Delete(h.ctx, admin.ID, ann.ID)
	h.redis.SetError("")
	assertKind(t, err, service.KindInternal)
	if _, err := h.users.FindByID(h.ctx, ann.ID); err != nil {
		t.Fatalf("identity must survive a failed session delete: %v", err)
	}

	if err := svc.Delete(h.ctx, admin.ID, ann.ID); err != nil {
		t.Fatalf("retry delete: %v", err)
	}
	if _, err := h.users.FindByID(h.ctx, ann.ID); !errors.Is(err, repository.ErrUserNotFound) {
		t.Fatalf("expected identity gone, got %v", err)
	}
	if h.hasSession(ann.ID) {
		t.Fatal("deleted identity still has a session")
	}
}

func TestDeleteUserRetryClearsSessionLeftBehind(t *testing.T) {
	h := newHarness(t)
	admin := h.createUser(t, "Root", "root@x.com", "secret1", domain.RoleAdmin)
	ann := h.createUser(t, "Ann", "ann@x.com", "secret1", domain.RoleUser)

	ctrl := gomock.NewController(t)
	sessions := repogomock.NewMockSessionRepository(ctrl)
	gomock.InOrder(
		sessions.EXPECT().Delete(gomock.Any(), ann.ID).Return(nil),
		sessions.EXPECT().Delete(gomock.Any(), ann.ID).Return(errors.New("redis down")),
		sessions.EXPECT().Delete(gomock.Any(), ann.ID).Return(nil),
	)
	svc := service.NewUserService(h.users, sessions, h.storage)

	err := svc.Delete(h.ctx, admin.ID, ann.ID)
	assertKind(t, err, service.KindInternal)

	err = svc.Delete(h.ctx, admin.ID, ann.ID)
	assertKind(t, err, service.KindNotFound)
}

func TestAddCourseIsIdempotentAndSyncsSession(t *testing.T) {
	h := newHarness(t)
	ann := h.createUser(t, "Ann", "ann@x.com", "secret1", domain.RoleUser)
	loginForTest(t, h, "ann@x.com", "secret1")
	svc := h.userService()

	for i := 0; i < 2; i++ {
		if _, err := svc.AddCourse(h.ctx, ann.ID, "course-42"); err != nil {
			t.Fatalf("add course: %v", err)
		}
	}
	cached, err := h.sessions.Get(h.ctx, ann.ID)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if len(cached.Courses) != 1 || !cached.HasCourse("course-42") {
		t.Fatalf("unexpected cached courses: %+v", cached.Courses)
	}

	_, err = svc.AddCourse(h.ctx, ann.ID, " ")
	assertKind(t, err, service.KindValidation)
	_, err = svc.AddCourse(h.ctx, 999, "course-42")
	assertKind(t, err, service.KindNotFound)
}

func TestUserServiceList(t *testing.T) {
	h := newHarness(t)
	h.createUser(t, "Ann", "ann@x.com", "secret1", domain.RoleUser)
	h.createUser(t, "Bob", "bob@x.com", "secret1", domain.RoleUser)

	page, err := h.userService().List(h.ctx, repository.PageRequest{Page: 1, PageSize: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 2 || len(page.Items) != 1 || page.TotalPages != 2 {
		t.Fatalf("unexpected page: %+v", page)
	}
}
