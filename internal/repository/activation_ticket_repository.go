package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ActivationTicketRepository records consumed activation tickets by id.
type ActivationTicketRepository interface {
	// Claim marks ticketID as used until ttl elapses. It reports false when
	// the ticket was already claimed.
	Claim(ctx context.Context, ticketID string, ttl time.Duration) (bool, error)
}

type RedisActivationTicketRepository struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisActivationTicketRepository(client redis.UniversalClient, prefix string) *RedisActivationTicketRepository {
	if prefix == "" {
		prefix = "identity"
	}
	return &RedisActivationTicketRepository{client: client, prefix: prefix}
}

func (r *RedisActivationTicketRepository) Claim(ctx context.Context, ticketID string, ttl time.Duration) (bool, error) {
	if ttl < time.Second {
		ttl = time.Second
	}
	ok, err := r.client.SetNX(ctx, fmt.Sprintf("%s:activation:used:%s", r.prefix, ticketID), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim activation ticket: %w", err)
	}
	return ok, nil
}

// NoopActivationTicketRepository accepts every claim, leaving replay bounded
// only by the unique email constraint.
type NoopActivationTicketRepository struct{}

func (NoopActivationTicketRepository) Claim(context.Context, string, time.Duration) (bool, error) {
	return true, nil
}
