package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Redis struct {
	Client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{Client: client}
}

// The TTL bounds how long a crashed booking request can keep a table locked.
const lockTTL = 10 * time.Second

// LockTable takes the per-table booking lock. The token identifies the owner
// so an expired lock reclaimed by another request cannot be released by us.
func (r *Redis) LockTable(ctx context.Context, tableID, token string) (bool, error) {
	key := "table_lock:" + tableID
	ok, err := r.Client.SetNX(ctx, key, token, lockTTL).Result()
	return ok, err
}

func (r *Redis) UnlockTable(ctx context.Context, tableID, token string) error {
	key := fmt.Sprintf("table_lock:%s", tableID)
	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // already unlocked
	}
	if err != nil {
		return err
	}
	if val == token {
		_, err := r.Client.Del(ctx, key).Result()
		return err
	}
	return nil // do not unlock if not owned by this request
}
