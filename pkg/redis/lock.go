package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	pkgerrors "opencampus/backend/pkg/errors"
)

// 仅当 value 与持有者 token 一致时才删除，避免误删他人续上的锁
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock 获取互斥锁（SET NX PX），成功时返回释放函数。
// 锁已被持有时返回 pkgerrors.ErrLockNotAcquired。
func (c *Client) Lock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()

	ok, err := c.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, pkgerrors.ErrLockNotAcquired
	}

	release := func() {
		// 释放不受调用方 ctx 取消影响
		rctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, c.rdb, []string{key}, token).Err(); err != nil && !errors.Is(err, goredis.Nil) {
			c.logger.Warn("释放分布式锁失败", zap.String("key", key), zap.Error(err))
		}
	}
	return release, nil
}
