package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sandeepkv93/course-identity-service/internal/domain"
	"github.com/sandeepkv93/course-identity-service/internal/observability"
)

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionSuperseded = errors.New("session superseded by a later logout")
)

// SessionRepository is the authoritative record of who is logged in.
// Every write is fenced by the per-user generation counter that Delete and
// Replace bump, so a write that started before a logout can never resurrect
// the session and a snapshot read before a mutation can never overwrite it.
type SessionRepository interface {
	// Begin returns the generation to pass to Set for this logical operation.
	Begin(ctx context.Context, userID uint) (int64, error)
	Get(ctx context.Context, userID uint) (*domain.User, error)
	// Set writes the snapshot only if no Delete happened since Begin.
	Set(ctx context.Context, user *domain.User, gen int64) error
	// Replace rewrites an existing snapshot, keeping its TTL. It reports
	// false when there is no live session to rewrite. Either way it bumps the
	// generation, so a Set holding a snapshot read before the mutation loses.
	Replace(ctx context.Context, user *domain.User) (bool, error)
	Delete(ctx context.Context, userID uint) error
}

var sessionSetScript = redis.NewScript(`
local gen = redis.call("GET", KEYS[2])
if not gen then
  gen = "0"
end
if gen ~= ARGV[1] then
  return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`)

var sessionReplaceScript = redis.NewScript(`
redis.call("INCR", KEYS[2])
redis.call("PEXPIRE", KEYS[2], ARGV[2])
local ttl = redis.call("PTTL", KEYS[1])
if ttl == -2 then
  return 0
end
if ttl > 0 then
  redis.call("SET", KEYS[1], ARGV[1], "PX", ttl)
else
  redis.call("SET", KEYS[1], ARGV[1])
end
return 1
`)

var sessionDeleteScript = redis.NewScript(`
redis.call("DEL", KEYS[1])
redis.call("INCR", KEYS[2])
redis.call("PEXPIRE", KEYS[2], ARGV[1])
return 1
`)

type RedisSessionRepository struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisSessionRepository(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisSessionRepository {
	if prefix == "" {
		prefix = "identity"
	}
	return &RedisSessionRepository{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisSessionRepository) Begin(ctx context.Context, userID uint) (int64, error) {
	raw, err := r.client.Get(ctx, r.genKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read session generation: %w", err)
	}
	gen, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse session generation: %w", err)
	}
	return gen, nil
}

func (r *RedisSessionRepository) Get(ctx context.Context, userID uint) (*domain.User, error) {
	raw, err := r.client.Get(ctx, r.sessionKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.RecordSessionCacheEvent(ctx, "get", "miss")
		return nil, ErrSessionNotFound
	}
	if err != nil {
		observability.RecordSessionCacheEvent(ctx, "get", "error")
		return nil, fmt.Errorf("read session: %w", err)
	}
	var u domain.User
	if err := json.Unmarshal(raw, &u); err != nil {
		observability.RecordSessionCacheEvent(ctx, "get", "error")
		return nil, fmt.Errorf("decode session: %w", err)
	}
	observability.RecordSessionCacheEvent(ctx, "get", "hit")
	return &u, nil
}

func (r *RedisSessionRepository) Set(ctx context.Context, user *domain.User, gen int64) error {
	payload, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	res, err := sessionSetScript.Run(ctx, r.client,
		[]string{r.sessionKey(user.ID), r.genKey(user.ID)},
		strconv.FormatInt(gen, 10), payload, r.ttl.Milliseconds(),
	).Int64()
	if err != nil {
		observability.RecordSessionCacheEvent(ctx, "set", "error")
		return fmt.Errorf("write session: %w", err)
	}
	if res == 0 {
		observability.RecordSessionCacheEvent(ctx, "set", "superseded")
		return ErrSessionSuperseded
	}
	observability.RecordSessionCacheEvent(ctx, "set", "success")
	return nil
}

func (r *RedisSessionRepository) Replace(ctx context.Context, user *domain.User) (bool, error) {
	payload, err := json.Marshal(user)
	if err != nil {
		return false, fmt.Errorf("encode session: %w", err)
	}
	res, err := sessionReplaceScript.Run(ctx, r.client,
		[]string{r.sessionKey(user.ID), r.genKey(user.ID)},
		payload, r.genTTL().Milliseconds(),
	).Int64()
	if err != nil {
		observability.RecordSessionCacheEvent(ctx, "replace", "error")
		return false, fmt.Errorf("rewrite session: %w", err)
	}
	if res == 0 {
		observability.RecordSessionCacheEvent(ctx, "replace", "absent")
		return false, nil
	}
	observability.RecordSessionCacheEvent(ctx, "replace", "success")
	return true, nil
}

func (r *RedisSessionRepository) Delete(ctx context.Context, userID uint) error {
	err := sessionDeleteScript.Run(ctx, r.client,
		[]string{r.sessionKey(userID), r.genKey(userID)},
		r.genTTL().Milliseconds(),
	).Err()
	if err != nil {
		observability.RecordSessionCacheEvent(ctx, "delete", "error")
		return fmt.Errorf("delete session: %w", err)
	}
	observability.RecordSessionCacheEvent(ctx, "delete", "success")
	return nil
}

// genTTL keeps the fence alive at least as long as any session it guards.
func (r *RedisSessionRepository) genTTL() time.Duration {
	if r.ttl < time.Hour {
		return time.Hour
	}
	return r.ttl
}

func (r *RedisSessionRepository) sessionKey(userID uint) string {
	return fmt.Sprintf("%s:session:%d", r.prefix, userID)
}

func (r *RedisSessionRepository) genKey(userID uint) string {
	return r.sessionKey(userID) + ":gen"
}
