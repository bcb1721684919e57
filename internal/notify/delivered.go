package notify

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const deliveredPrefix = "broadcast:sent:"

// DeliveryLog remembers which recipients of a campaign already received it, so
// a retried campaign only mails the rest.
type DeliveryLog interface {
	Delivered(ctx context.Context, campaignID string) (map[string]struct{}, error)
	MarkDelivered(ctx context.Context, campaignID string, addrs ...string) error
}

// RedisDeliveryLog keeps one set per campaign under "broadcast:sent:<id>".
type RedisDeliveryLog struct {
	R   *redis.Client
	TTL time.Duration
}

func (l RedisDeliveryLog) Delivered(ctx context.Context, campaignID string) (map[string]struct{}, error) {
	members, err := l.R.SMembers(ctx, deliveredPrefix+campaignID).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(members))
	for _, m := range members {
		out[m] = struct{}{}
	}
	return out, nil
}

func (l RedisDeliveryLog) MarkDelivered(ctx context.Context, campaignID string, addrs ...string) error {
	if len(addrs) == 0 {
		return nil
	}
	ttl := l.TTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	key := deliveredPrefix + campaignID
	members := make([]any, len(addrs))
	for i, a := range addrs {
		members[i] = a
	}
	pipe := l.R.TxPipeline()
	pipe.SAdd(ctx, key, members...)
	pipe.Expire(ctx, key, ttl)
	_, err := pipe.Exec(ctx)
	return err
}
