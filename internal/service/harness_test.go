package service_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/mock/gomock"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sandeepkv93/course-identity-service/internal/domain"
	"github.com/sandeepkv93/course-identity-service/internal/repository"
	"github.com/sandeepkv93/course-identity-service/internal/security"
	"github.com/sandeepkv93/course-identity-service/internal/service"
	svcgomock "github.com/sandeepkv93/course-identity-service/internal/service/gomock"
)

const (
	testIssuer           = "course-identity-test"
	testActivationSecret = "activation-secret-0123456789abcdef"
	testAccessSecret     = "access-secret-0123456789abcdefghij"
	testRefreshSecret    = "refresh-secret-0123456789abcdefghi"
	testRefreshTTL       = 72 * time.Hour
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type harness struct {
	ctx      context.Context
	clock    *fakeClock
	redis    *miniredis.Miniredis
	users    repository.UserRepository
	sessions *repository.RedisSessionRepository
	tickets  repository.ActivationTicketRepository
	jwt      *security.JWTManager
	tokens   *service.TokenService
	mailer   *svcgomock.MockMailer
	storage  *svcgomock.MockStorageService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.User{}, &domain.UserCourse{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := &fakeClock{now: time.Now()}
	jwtMgr := security.NewJWTManager(testIssuer, testActivationSecret, testAccessSecret, testRefreshSecret).WithClock(clock.Now)
	ctrl := gomock.NewController(t)

	return &harness{
		ctx:      context.Background(),
		clock:    clock,
		redis:    mr,
		users:    repository.NewUserRepository(db),
		sessions: repository.NewRedisSessionRepository(client, "test", testRefreshTTL),
		tickets:  repository.NewRedisActivationTicketRepository(client, "test"),
		jwt:      jwtMgr,
		tokens:   service.NewTokenService(jwtMgr, 5*time.Minute, testRefreshTTL),
		mailer:   svcgomock.NewMockMailer(ctrl),
		storage:  svcgomock.NewMockStorageService(ctrl),
	}
}

func (h *harness) activation(singleUse bool) *service.ActivationService {
	return service.NewActivationService(h.users, h.tickets, h.tokens, h.mailer, singleUse, "root@example.com")
}

func (h *harness) auth() *service.AuthService {
	return service.NewAuthService(h.users, h.sessions, h.tokens, "root@example.com")
}

func (h *harness) userService() *service.UserService {
	return service.NewUserService(h.users, h.sessions, h.storage)
}

// createUser stores a verified identity with a real password hash.
func (h *harness) createUser(t *testing.T, name, email, password string, role domain.Role) *domain.User {
	t.Helper()
	hash, err := security.HashPassword(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &domain.User{Name: name, Email: email, PasswordHash: hash, Role: role, IsVerified: true}
	if err := h.users.Create(h.ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func (h *harness) hasSession(id uint) bool {
	return h.redis.Exists(fmt.Sprintf("test:session:%d", id))
}

func assertKind(t *testing.T, err error, want service.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := service.KindOf(err); got != want {
		t.Fatalf("expected kind %s, got %s (%v)", want, got, err)
	}
}
