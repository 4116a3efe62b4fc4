package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter 限流器接口
type RateLimiter interface {
	// Allow 判断请求是否允许通过
	Allow(ctx context.Context, key string) (bool, error)
}

// TokenBucketRateLimiter 基于Redis Lua脚本的令牌桶限流器，
// 多实例共享同一配额
type TokenBucketRateLimiter struct {
	client *redis.Client
	prefix string
	rate   int // 每秒生成的令牌数量
	burst  int // 令牌桶最大容量
}

// NewTokenBucketRateLimiter 创建新的令牌桶限流器
func NewTokenBucketRateLimiter(client *redis.Client, prefix string, rate, burst int) *TokenBucketRateLimiter {
	return &TokenBucketRateLimiter{
		client: client,
		prefix: fmt.Sprintf("rate_limit:%s", prefix),
		rate:   rate,
		burst:  burst,
	}
}

// 令牌桶算法的Lua脚本：补充令牌后尝试扣减一个
var tokenBucketScript = redis.NewScript(`
local tokens_key = KEYS[1] .. ":tokens"
local timestamp_key = KEYS[1] .. ":ts"
local now = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local burst = tonumber(ARGV[3])

local tokens = tonumber(redis.call("get", tokens_key) or burst)
local last_update = tonumber(redis.call("get", timestamp_key) or 0)

local elapsed = math.max(0, now - last_update)
tokens = math.min(burst, tokens + elapsed * rate)

local allowed = 0
if tokens >= 1 then
	tokens = tokens - 1
	allowed = 1
end

redis.call("set", tokens_key, tokens, "EX", 60)
redis.call("set", timestamp_key, now, "EX", 60)

return allowed
`)

// Allow 判断请求是否允许通过
func (l *TokenBucketRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.client == nil {
		return false, ErrRedisNotAvailable
	}

	bucketKey := fmt.Sprintf("%s:%s", l.prefix, key)
	now := time.Now().Unix()

	result, err := tokenBucketScript.Run(ctx, l.client, []string{bucketKey}, now, l.rate, l.burst).Int()
	if err != nil {
		return false, err
	}

	return result == 1, nil
}
