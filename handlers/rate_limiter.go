package handlers

import (
	"log"
	"net/http"
	"os"
	"strconv"

	"governance-voting-backend/cache"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// 全局限流器。Redis可用时用共享令牌桶，否则退回进程内限流。
var (
	redisLimiter     cache.RateLimiter
	localLimiter     *rate.Limiter
	rateLimitEnabled bool
	globalRate       = 100
	globalBurst      = 200
)

// InitRateLimiters 从环境变量初始化限流器
func InitRateLimiters() {
	if os.Getenv("ENABLE_RATE_LIMIT") != "true" {
		return
	}
	rateLimitEnabled = true

	if rateStr := os.Getenv("GLOBAL_RATE_LIMIT"); rateStr != "" {
		if r, err := strconv.Atoi(rateStr); err == nil && r > 0 {
			globalRate = r
			globalBurst = r * 2
		}
	}

	if client, err := cache.GetClient(); err == nil {
		redisLimiter = cache.NewTokenBucketRateLimiter(client, "global_api", globalRate, globalBurst)
		log.Printf("限流器已初始化（Redis令牌桶）：速率=%d/秒, 突发=%d", globalRate, globalBurst)
		return
	}

	// Redis不可用时退回进程内令牌桶
	localLimiter = rate.NewLimiter(rate.Limit(globalRate), globalBurst)
	log.Printf("限流器已初始化（进程内）：速率=%d/秒, 突发=%d", globalRate, globalBurst)
}

// RateLimitMiddleware 限流中间件
func RateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rateLimitEnabled {
			c.Next()
			return
		}

		allowed := true
		if redisLimiter != nil {
			ok, err := redisLimiter.Allow(c.Request.Context(), c.ClientIP())
			if err != nil {
				// 限流器自身故障时放行，不把Redis故障放大成服务不可用
				log.Printf("限流检查失败，放行请求: %v", err)
			} else {
				allowed = ok
			}
		} else if localLimiter != nil {
			allowed = localLimiter.Allow()
		}

		if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "请求频率过高，请稍后再试",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
