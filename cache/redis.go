package cache

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// 全局Redis客户端
var (
	redisClient *redis.Client
	initOnce    sync.Once
	initialized bool
)

// InitRedis 初始化Redis连接。Redis不可用时系统降级运行：
// 排序闸门退回进程内实现，限流退回本地令牌桶，审计事件直接落库。
func InitRedis() error {
	var initErr error

	initOnce.Do(func() {
		redisAddr := os.Getenv("REDIS_ADDR")
		if redisAddr == "" {
			host := os.Getenv("REDIS_HOST")
			if host == "" {
				host = "localhost"
			}
			port := os.Getenv("REDIS_PORT")
			if port == "" {
				port = "6379"
			}
			redisAddr = fmt.Sprintf("%s:%s", host, port)
		}

		redisDB := 0
		if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
			if db, err := strconv.Atoi(dbStr); err == nil {
				redisDB = db
			}
		}

		redisClient = redis.NewClient(&redis.Options{
			Addr:        redisAddr,
			Password:    os.Getenv("REDIS_PASSWORD"),
			DB:          redisDB,
			DialTimeout: 5 * time.Second,
			ReadTimeout: 5 * time.Second,
			PoolSize:    20,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := redisClient.Ping(ctx).Result(); err != nil {
			redisClient = nil
			initErr = fmt.Errorf("Redis连接失败: %v", err)
			return
		}

		initialized = true
		log.Printf("Redis连接初始化成功: %s", redisAddr)
	})

	return initErr
}

// GetClient 获取Redis客户端，未初始化或不可用时返回错误
func GetClient() (*redis.Client, error) {
	if !initialized || redisClient == nil {
		return nil, ErrRedisNotAvailable
	}
	return redisClient, nil
}

// Available 报告Redis是否可用
func Available() bool {
	return initialized && redisClient != nil
}

// CloseRedis 关闭Redis连接
func CloseRedis() {
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Printf("关闭Redis连接失败: %v", err)
		}
		redisClient = nil
		initialized = false
	}
}
