package observability

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var redisInstrumentationOnce sync.Once

// InstrumentRedisClient installs command metrics on client once per process.
func InstrumentRedisClient(client redis.UniversalClient, logger *slog.Logger) {
	if client == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}

	redisInstrumentationOnce.Do(func() {
		hook, err := newRedisMetricsHook(client, otel.Meter(meterName))
		if err != nil {
			logger.Warn("redis observability instrumentation disabled", "error", err)
			return
		}
		client.AddHook(hook)
		logger.Info("redis observability instrumentation enabled")
	})
}

type redisMetricsHook struct {
	cmdTotal   metric.Int64Counter
	cmdErrors  metric.Int64Counter
	cmdLatency metric.Float64Histogram

	sessionHits   atomic.Int64
	sessionMisses atomic.Int64
	poolStats     func() *redis.PoolStats
}

func newRedisMetricsHook(client redis.UniversalClient, meter metric.Meter) (*redisMetricsHook, error) {
	h := &redisMetricsHook{poolStats: client.PoolStats}
	var err error
	if h.cmdTotal, err = meter.Int64Counter("redis.command.total", metric.WithDescription("Redis commands by key class")); err != nil {
		return nil, err
	}
	if h.cmdErrors, err = meter.Int64Counter("redis.command.errors", metric.WithDescription("Redis command errors by key class")); err != nil {
		return nil, err
	}
	if h.cmdLatency, err = meter.Float64Histogram("redis.command.duration", metric.WithUnit("s")); err != nil {
		return nil, err
	}
	saturation, err := meter.Float64ObservableGauge("redis.pool.saturation", metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}
	sessionHitRatio, err := meter.Float64ObservableGauge(
		"session.cache.hit_ratio",
		metric.WithUnit("1"),
		metric.WithDescription("Share of session lookups that found a live session record"),
	)
	if err != nil {
		return nil, err
	}

	_, err = meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		if stats := h.poolStats(); stats != nil && stats.TotalConns > 0 {
			o.ObserveFloat64(saturation, clampRatio(float64(stats.TotalConns-stats.IdleConns)/float64(stats.TotalConns)))
		}
		hits, misses := h.sessionHits.Load(), h.sessionMisses.Load()
		if hits+misses > 0 {
			o.ObserveFloat64(sessionHitRatio, clampRatio(float64(hits)/float64(hits+misses)))
		}
		return nil
	}, saturation, sessionHitRatio)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (h *redisMetricsHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h *redisMetricsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		h.observe(ctx, cmd, err, time.Since(start))
		return err
	}
}

func (h *redisMetricsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		elapsed := time.Since(start)
		for _, cmd := range cmds {
			h.observe(ctx, cmd, cmd.Err(), elapsed)
		}
		return err
	}
}

func (h *redisMetricsHook) observe(ctx context.Context, cmd redis.Cmder, err error, elapsed time.Duration) {
	command := strings.ToLower(cmd.Name())
	class := redisKeyClass(cmd)
	attrs := metric.WithAttributes(
		attribute.String("command", command),
		attribute.String("key_class", class),
		attribute.String("status", redisCommandStatus(err)),
	)
	h.cmdTotal.Add(ctx, 1, attrs)
	h.cmdLatency.Record(ctx, elapsed.Seconds(), attrs)
	if err != nil && !errors.Is(err, redis.Nil) {
		h.cmdErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("command", command),
			attribute.String("key_class", class),
			attribute.String("error_type", classifyRedisError(err)),
		))
	}
	if class == "session" && command == "get" {
		switch {
		case errors.Is(err, redis.Nil):
			h.sessionMisses.Add(1)
		case err == nil:
			h.sessionHits.Add(1)
		}
	}
}

// redisKeyClass buckets a command by the namespace segment of its first key,
// e.g. "identity:session:7" -> "session".
func redisKeyClass(cmd redis.Cmder) string {
	args := cmd.Args()
	idx := 1
	if name := strings.ToLower(cmd.Name()); name == "evalsha" || name == "eval" {
		idx = 3
	}
	if len(args) <= idx {
		return "none"
	}
	key, ok := args[idx].(string)
	if !ok {
		return "other"
	}
	parts := strings.Split(key, ":")
	if len(parts) < 2 {
		return "other"
	}
	switch parts[1] {
	case "session", "activation", "rl":
		return parts[1]
	default:
		return "other"
	}
}

func redisCommandStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, redis.Nil):
		return "miss"
	default:
		return "error"
	}
}

func classifyRedisError(err error) string {
	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "timeout"):
		return "timeout"
	case strings.Contains(errStr, "connection"):
		return "connection"
	default:
		return "other"
	}
}

func clampRatio(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
