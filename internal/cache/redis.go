package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// stateTTL outlives any debounce window so idle readers expire.
const stateTTL = time.Hour

type RedisConfig struct {
	Addr string
}

// RedisCache shares reader state between server instances.
type RedisCache struct {
	rdb *redis.Client
}

func NewRedis(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	const fn = "RedisCache:New"
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("%s:%w:%w", fn, ErrReadState, err)
	}
	return &RedisCache{rdb: rdb}, nil
}

func stateKey(readerID ReaderID) string {
	return "kiosk:reader:" + string(readerID) + ":last"
}

func (c *RedisCache) Get(ctx context.Context, readerID ReaderID) (ReaderState, bool, error) {
	const fn = "RedisCache:Get"
	data, err := c.rdb.Get(ctx, stateKey(readerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ReaderState{}, false, nil
	}
	if err != nil {
		return ReaderState{}, false, fmt.Errorf("%s:%w:%w", fn, ErrReadState, err)
	}
	var state ReaderState
	if err := json.Unmarshal(data, &state); err != nil {
		return ReaderState{}, false, fmt.Errorf("%s:%w:%w", fn, ErrReadState, err)
	}
	return state, true, nil
}

func (c *RedisCache) Set(ctx context.Context, readerID ReaderID, state ReaderState) error {
	const fn = "RedisCache:Set"
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("%s:%w:%w", fn, ErrWriteState, err)
	}
	if err := c.rdb.Set(ctx, stateKey(readerID), data, stateTTL).Err(); err != nil {
		return fmt.Errorf("%s:%w:%w", fn, ErrWriteState, err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
