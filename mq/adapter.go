package mq

import (
	"fmt"
	"log"
	"os"
	"sync"

	"governance-voting-backend/cache"
	"governance-voting-backend/ledger"
)

// Handler 审计事件处理函数
type Handler func(event ledger.AuditEvent) error

// Adapter 审计事件队列适配器，在RocketMQ和Redis MQ之间自动选择。
// 设置了ROCKETMQ_NAMESRV_ADDR时走RocketMQ，否则使用Redis列表队列。
type Adapter struct {
	rocketEnabled bool
	redisEnabled  bool
	rocketMQ      *RocketMQ
	redisMQ       *RedisMQ
	initOnce      sync.Once
	initialized   bool
}

// NewAdapter 创建审计事件队列适配器
func NewAdapter() *Adapter {
	return &Adapter{}
}

// Initialize 初始化消息队列后端
func (a *Adapter) Initialize() error {
	var err error

	a.initOnce.Do(func() {
		// 优先尝试RocketMQ
		if addr := os.Getenv("ROCKETMQ_NAMESRV_ADDR"); addr != "" {
			rocket, rocketErr := NewRocketMQ(addr)
			if rocketErr == nil {
				a.rocketMQ = rocket
				a.rocketEnabled = true
				a.initialized = true
				log.Println("审计事件队列使用RocketMQ")
				return
			}
			log.Printf("RocketMQ初始化失败，回退到Redis MQ: %v", rocketErr)
		}

		// 回退到Redis列表队列
		client, redisErr := cache.GetClient()
		if redisErr != nil {
			err = fmt.Errorf("无法初始化审计事件队列: %v", redisErr)
			return
		}

		a.redisMQ = NewRedisMQ(client)
		a.redisEnabled = true
		a.initialized = true
		log.Println("审计事件队列使用Redis MQ")
	})

	return err
}

// IsInitialized 检查适配器是否已初始化
func (a *Adapter) IsInitialized() bool {
	return a.initialized && (a.redisEnabled || a.rocketEnabled)
}

// RegisterHandler 注册审计事件处理函数并启动消费者
func (a *Adapter) RegisterHandler(handler Handler) error {
	if !a.IsInitialized() {
		return fmt.Errorf("审计事件队列未初始化")
	}

	if a.rocketEnabled {
		return a.rocketMQ.Subscribe(handler)
	}

	a.redisMQ.RegisterHandler(handler)
	return a.redisMQ.Start()
}

// Publish 发布审计事件。实现ledger.AuditPublisher接口。
func (a *Adapter) Publish(event ledger.AuditEvent) error {
	if !a.IsInitialized() {
		return fmt.Errorf("审计事件队列未初始化，无法发送事件")
	}

	if a.rocketEnabled {
		return a.rocketMQ.Publish(event)
	}
	return a.redisMQ.Publish(event)
}

// GetQueueStats 获取队列统计信息
func (a *Adapter) GetQueueStats() map[string]interface{} {
	stats := make(map[string]interface{})

	if !a.IsInitialized() {
		stats["status"] = "未初始化"
		return stats
	}

	if a.rocketEnabled {
		stats["type"] = "RocketMQ"
		stats["status"] = "正常运行"
		return stats
	}

	stats["type"] = "Redis MQ"
	stats["status"] = "正常运行"
	stats["queues"] = a.redisMQ.GetQueueStats()
	return stats
}

// RetryDeadLetters 重试死信队列中的事件（仅Redis MQ模式可用）
func (a *Adapter) RetryDeadLetters() error {
	if !a.IsInitialized() {
		return fmt.Errorf("审计事件队列未初始化")
	}
	if !a.redisEnabled {
		return fmt.Errorf("当前队列模式不支持死信队列操作")
	}
	return a.redisMQ.RetryDeadLetters()
}

// Close 关闭消息队列
func (a *Adapter) Close() {
	if a.rocketEnabled && a.rocketMQ != nil {
		a.rocketMQ.Close()
	}
	if a.redisEnabled && a.redisMQ != nil {
		a.redisMQ.Stop()
	}
	log.Println("审计事件队列已关闭")
}
