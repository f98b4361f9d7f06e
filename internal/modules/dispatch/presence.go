// README: Driver presence tracked in Redis with a heartbeat TTL.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	presenceKeyPrefix = "dispatch:driver:%d:online"
	// presenceTTL is how long a driver stays online without a heartbeat.
	presenceTTL = 2 * time.Minute
)

type Presence struct {
	redis *redis.Client
}

func NewPresence(redis *redis.Client) *Presence {
	return &Presence{redis: redis}
}

func (p *Presence) SetOnline(ctx context.Context, driverID int64) error {
	return p.redis.Set(ctx, presenceKey(driverID), "1", presenceTTL).Err()
}

func (p *Presence) SetOffline(ctx context.Context, driverID int64) error {
	return p.redis.Del(ctx, presenceKey(driverID)).Err()
}

func (p *Presence) IsOnline(ctx context.Context, driverID int64) (bool, error) {
	val, err := p.redis.Get(ctx, presenceKey(driverID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return val == "1", nil
}

func presenceKey(driverID int64) string {
	return fmt.Sprintf(presenceKeyPrefix, driverID)
}
