package store

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisKV persists the key space in Redis under an optional prefix.
type RedisKV struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisKV connects and pings the server.
func NewRedisKV(addr, password string, db int, prefix string) (*RedisKV, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("could not connect to redis at %s: %w", addr, err)
	}
	return &RedisKV{rdb: rdb, prefix: prefix}, nil
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.rdb.Get(ctx, r.prefix+key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisKV) Apply(ctx context.Context, puts map[string]string, dels []string) error {
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for k, v := range puts {
			p.Set(ctx, r.prefix+k, v, 0)
		}
		if len(dels) > 0 {
			keys := make([]string, len(dels))
			for i, k := range dels {
				keys[i] = r.prefix + k
			}
			p.Del(ctx, keys...)
		}
		return nil
	})
	return err
}

func (r *RedisKV) Close() error { return r.rdb.Close() }
