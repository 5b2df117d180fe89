package ratelimit

import (
	"context"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/givelane/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("rate.limit",
	fx.Provide(NewRedisClient),
	fx.Provide(NewLocker),
	fx.Provide(NewTokenBucket),
	fx.Provide(NewLimiters),
)

// Limiters groups the per-endpoint request limiters.
type Limiters struct {
	Webhook   *Limiter
	Initiator *Limiter
}

// NewRedisClient returns nil when REDIS_ADDR is empty; locks and shared
// buckets are then disabled.
func NewRedisClient(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *redis.Client {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		log.Info("redis not configured, using process-local limits")
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				log.Warn("redis ping failed", zap.String("addr", addr), zap.Error(err))
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client
}

func NewLimiters(cfg config.Config, bucket *TokenBucket, log *zap.Logger) Limiters {
	return Limiters{
		Webhook:   NewLimiter("webhook", cfg.WebhookRateLimit, int(cfg.WebhookRateLimit), bucket, log),
		Initiator: NewLimiter("initiator", cfg.InitiatorRateLimit, int(cfg.InitiatorRateLimit), bucket, log),
	}
}
