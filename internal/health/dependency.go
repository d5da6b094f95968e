package health

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/sandeepkv93/course-identity-service/internal/domain"
)

// IdentityStoreChecker reports ready once the database answers and the
// identity tables have been migrated.
type IdentityStoreChecker struct {
	db *gorm.DB
}

func NewIdentityStoreChecker(db *gorm.DB) Checker {
	if db == nil {
		return nil
	}
	return &IdentityStoreChecker{db: db}
}

func (c *IdentityStoreChecker) Check(ctx context.Context) CheckResult {
	sqlDB, err := c.db.DB()
	if err != nil {
		return unhealthy("identity_store", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return unhealthy("identity_store", err)
	}
	migrator := c.db.WithContext(ctx).Migrator()
	for _, model := range []any{&domain.User{}, &domain.UserCourse{}} {
		if !migrator.HasTable(model) {
			return unhealthy("identity_store", fmt.Errorf("table for %T not migrated", model))
		}
	}
	return CheckResult{Name: "identity_store", Healthy: true}
}

// SessionCacheChecker pings the Redis instance holding session records.
type SessionCacheChecker struct {
	client redis.UniversalClient
}

func NewSessionCacheChecker(client redis.UniversalClient) Checker {
	if client == nil {
		return nil
	}
	return &SessionCacheChecker{client: client}
}

func (c *SessionCacheChecker) Check(ctx context.Context) CheckResult {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return unhealthy("session_cache", err)
	}
	return CheckResult{Name: "session_cache", Healthy: true}
}

func unhealthy(name string, err error) CheckResult {
	return CheckResult{Name: name, Healthy: false, Error: err.Error()}
}
