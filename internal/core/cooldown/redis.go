package cooldown

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient 只依赖 SetNX，方便替换为 ClusterClient
type RedisClient interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
}

type Redis struct {
	RDB    RedisClient
	Prefix string
	window time.Duration
}

func NewRedis(rdb RedisClient, window time.Duration) *Redis {
	return &Redis{RDB: rdb, Prefix: "yamdb:cooldown:", window: window}
}

// Dial 按配置建立客户端，启动时 Ping 一次
func Dial(ctx context.Context, addr, pass string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

// Allow key 不存在时写入并放行；已存在说明仍在冷却期
func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	return r.RDB.SetNX(ctx, r.Prefix+key, 1, r.window).Result()
}
