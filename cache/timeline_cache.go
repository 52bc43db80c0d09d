package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// TimelineKey 时间轴缓存键
func TimelineKey(songID string) string {
	return fmt.Sprintf("timeline:%s", songID)
}

// TimelineCache 用 Redis 字符串保存时间轴 JSON
type TimelineCache struct {
	client redis.Cmdable
}

// NewTimelineCache 创建时间轴缓存，client 为 nil 时使用全局 RedisClient
func NewTimelineCache(client redis.Cmdable) *TimelineCache {
	if client == nil && RedisClient != nil {
		client = RedisClient
	}
	return &TimelineCache{client: client}
}

// Get 读取缓存，未命中返回 nil, nil
func (c *TimelineCache) Get(ctx context.Context, songID string) ([]byte, error) {
	if c.client == nil {
		return nil, fmt.Errorf("Redis client not initialized")
	}
	data, err := c.client.Get(ctx, TimelineKey(songID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get timeline cache: %w", err)
	}
	return data, nil
}

// Set 写入缓存并设置过期时间
func (c *TimelineCache) Set(ctx context.Context, songID string, data []byte, ttl time.Duration) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	if err := c.client.Set(ctx, TimelineKey(songID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set timeline cache: %w", err)
	}
	return nil
}

// Delete 删除缓存，timeline push 之后调用
func (c *TimelineCache) Delete(ctx context.Context, songID string) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	if err := c.client.Del(ctx, TimelineKey(songID)).Err(); err != nil {
		return fmt.Errorf("failed to delete timeline cache: %w", err)
	}
	return nil
}
