package identity

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"tenant-admin/pkg/logger"
)

type EmailLookup interface {
	EmailForSubject(ctx context.Context, sub string) (string, error)
}

// CachedEmailLookup memoizes subject to email lookups in Redis. Cache errors
// degrade to a direct lookup.
type CachedEmailLookup struct {
	next EmailLookup
	rdb  redis.Cmdable
	ttl  time.Duration
}

func NewCachedEmailLookup(next EmailLookup, rdb redis.Cmdable, ttl time.Duration) *CachedEmailLookup {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedEmailLookup{next: next, rdb: rdb, ttl: ttl}
}

func emailKey(sub string) string { return "identity:email:" + sub }

func (c *CachedEmailLookup) EmailForSubject(ctx context.Context, sub string) (string, error) {
	log := logger.From(ctx)

	email, err := c.rdb.Get(ctx, emailKey(sub)).Result()
	switch {
	case err == nil && email != "":
		return email, nil
	case err != nil && !errors.Is(err, redis.Nil):
		log.Warn("email cache read failed", slog.Any("err", err))
	}

	email, err = c.next.EmailForSubject(ctx, sub)
	if err != nil {
		return "", err
	}
	if err := c.rdb.Set(ctx, emailKey(sub), email, c.ttl).Err(); err != nil {
		log.Warn("email cache write failed", slog.Any("err", err))
	}
	return email, nil
}
