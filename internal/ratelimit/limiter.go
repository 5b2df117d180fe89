package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Limiter throttles a request class per key. It uses the Redis bucket when
// one is configured and an in-process limiter otherwise or when Redis fails.
type Limiter struct {
	name   string
	rate   float64
	burst  int
	bucket *TokenBucket
	log    *zap.Logger

	mu    sync.Mutex
	local map[string]*rate.Limiter
}

func NewLimiter(name string, perSecond float64, burst int, bucket *TokenBucket, log *zap.Logger) *Limiter {
	if burst <= 0 {
		burst = int(perSecond)
	}
	if burst <= 0 {
		burst = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Limiter{
		name:   name,
		rate:   perSecond,
		burst:  burst,
		bucket: bucket,
		log:    log.Named("ratelimit." + name),
		local:  map[string]*rate.Limiter{},
	}
}

// Enabled reports whether a positive rate is configured.
func (l *Limiter) Enabled() bool {
	return l != nil && l.rate > 0
}

func (l *Limiter) Name() string {
	if l == nil {
		return ""
	}
	return l.name
}

// Allow reports whether one more request for key may proceed and, when it
// may not, how long the caller should wait.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, time.Duration) {
	if !l.Enabled() {
		return true, 0
	}
	if l.bucket != nil {
		res, err := l.bucket.Allow(ctx, l.name+":"+key, l.rate, l.burst)
		if err == nil {
			return res.Allowed, res.RetryAfter
		}
		l.log.Warn("redis rate limit unavailable, using local limiter", zap.Error(err))
	}

	limiter := l.limiterFor(key)
	reservation := limiter.Reserve()
	if !reservation.OK() {
		return false, time.Second
	}
	if delay := reservation.Delay(); delay > 0 {
		reservation.Cancel()
		return false, delay
	}
	return true, 0
}

func (l *Limiter) limiterFor(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.local[key]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(l.rate), l.burst)
		l.local[key] = limiter
	}
	return limiter
}
