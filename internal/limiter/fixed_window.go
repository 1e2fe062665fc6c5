// Package limiter 固定窗口限流器实现
package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// FixedWindowLimiter 固定窗口限流器
// 计数器按窗口起点分key，用Lua保证读改写的原子性。
type FixedWindowLimiter struct {
	client redis.Cmdable
	config *Config
}

// NewFixedWindowLimiter 创建固定窗口限流器
func NewFixedWindowLimiter(client redis.Cmdable, config *Config) *FixedWindowLimiter {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "limiter:fw"
	}

	return &FixedWindowLimiter{
		client: client,
		config: config,
	}
}

// Redis Lua脚本：固定窗口算法
const fixedWindowScript = `
-- KEYS[1]: 计数器key
-- ARGV[1]: 限制数量(rate)
-- ARGV[2]: 时间窗口(window秒)
-- ARGV[3]: 当前时间戳

local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

-- 计算当前窗口的开始时间
local window_start = math.floor(now / window) * window
local window_key = key .. ":" .. window_start

local current = tonumber(redis.call('GET', window_key) or 0)

if current + 1 > limit then
    -- 到下一个窗口的剩余时间
    local retry_after = window_start + window - now

    return {0, limit - current, retry_after, current}
else
    local new_count = redis.call('INCRBY', window_key, 1)
    redis.call('EXPIRE', window_key, window)

    return {1, limit - new_count, 0, new_count}
end
`

// getKey 生成Redis key
func (fw *FixedWindowLimiter) getKey(key string) string {
	return fmt.Sprintf("%s:%s", fw.config.KeyPrefix, key)
}

// Allow 检查是否允许请求通过
func (fw *FixedWindowLimiter) Allow(ctx context.Context, key string) (*LimitResult, error) {
	redisKey := fw.getKey(key)
	now := time.Now().Unix()

	result := fw.client.Eval(ctx, fixedWindowScript,
		[]string{redisKey},
		fw.config.Rate,
		int64(fw.config.Window.Seconds()),
		now,
	)

	if result.Err() != nil {
		return nil, fmt.Errorf("execute fixed window script: %w", result.Err())
	}

	values, ok := result.Val().([]interface{})
	if !ok || len(values) != 4 {
		return nil, fmt.Errorf("unexpected script result format")
	}

	allowed := values[0].(int64) == 1
	remaining := values[1].(int64)
	retryAfter := time.Duration(values[2].(int64)) * time.Second
	totalRequests := values[3].(int64)

	return &LimitResult{
		Allowed:       allowed,
		Remaining:     remaining,
		RetryAfter:    retryAfter,
		TotalRequests: totalRequests,
	}, nil
}

// Reset 重置指定key的所有窗口
func (fw *FixedWindowLimiter) Reset(ctx context.Context, key string) error {
	pattern := fw.getKey(key) + ":*"
	iter := fw.client.Scan(ctx, 0, pattern, 0).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan limiter keys: %w", err)
	}

	if len(keys) > 0 {
		if err := fw.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("delete limiter keys: %w", err)
		}
	}

	return nil
}
