package subscription

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventLedger remembers provider event ids that were already applied so
// redeliveries are acknowledged without touching storage.
type EventLedger interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

const (
	defaultLedgerPrefix = "reviewfunnel:billing:event:"
	defaultLedgerTTL    = 72 * time.Hour
)

// RedisLedger is an EventLedger on Redis keys with a TTL.
type RedisLedger struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisLedger keeps event ids for ttl; zero uses three days, which covers
// Stripe's retry window.
func NewRedisLedger(client redis.UniversalClient, ttl time.Duration) *RedisLedger {
	if ttl <= 0 {
		ttl = defaultLedgerTTL
	}
	return &RedisLedger{client: client, prefix: defaultLedgerPrefix, ttl: ttl}
}

func (l *RedisLedger) Seen(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, nil
	}
	n, err := l.client.Exists(ctx, l.prefix+eventID).Result()
	if err != nil {
		return false, errors.Join(ErrStorage, err)
	}
	return n > 0, nil
}

func (l *RedisLedger) Mark(ctx context.Context, eventID string) error {
	if eventID == "" {
		return nil
	}
	if err := l.client.SetNX(ctx, l.prefix+eventID, time.Now().UTC().Unix(), l.ttl).Err(); err != nil {
		return errors.Join(ErrStorage, err)
	}
	return nil
}
