package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"governance-voting-backend/ledger"

	"github.com/redis/go-redis/v9"
)

// 审计事件队列的队列名称常量
const (
	MainQueueName       = "audit_queue"       // 主队列
	ProcessingQueueName = "audit_processing"  // 处理中队列
	DeadLetterQueueName = "audit_dead_letter" // 死信队列
	ProcessedSetName    = "audit_processed"   // 幂等性集合
)

// RedisMQ 基于Redis列表实现的审计事件队列
type RedisMQ struct {
	client         *redis.Client
	ctx            context.Context
	processHandler Handler
	isRunning      bool
	stopChan       chan struct{}
	wg             sync.WaitGroup
	maxRetries     int
}

// NewRedisMQ 创建新的基于Redis的审计事件队列
func NewRedisMQ(client *redis.Client) *RedisMQ {
	return &RedisMQ{
		client:     client,
		ctx:        context.Background(),
		stopChan:   make(chan struct{}),
		maxRetries: 3,
	}
}

// RegisterHandler 注册审计事件处理函数
func (r *RedisMQ) RegisterHandler(handler Handler) {
	r.processHandler = handler
}

// Publish 发送审计事件到主队列。
// 以correlation_id做幂等检查，重复事件直接跳过。
func (r *RedisMQ) Publish(event ledger.AuditEvent) error {
	jsonData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化审计事件失败: %v", err)
	}

	exists, err := r.client.SIsMember(r.ctx, ProcessedSetName, event.CorrelationID).Result()
	if err != nil {
		// 幂等检查失败不阻断业务，只记录
		log.Printf("检查审计事件幂等性出错: %v", err)
	} else if exists {
		log.Printf("审计事件已处理过，跳过: %s", event.CorrelationID)
		return nil
	}

	if err := r.client.SAdd(r.ctx, ProcessedSetName, event.CorrelationID).Err(); err != nil {
		log.Printf("添加审计事件到幂等性集合出错: %v", err)
	}
	// 设置过期时间，避免集合无限增长
	r.client.Expire(r.ctx, ProcessedSetName, 48*time.Hour)

	if err := r.client.LPush(r.ctx, MainQueueName, jsonData).Err(); err != nil {
		return fmt.Errorf("发送审计事件到队列失败: %v", err)
	}

	return nil
}

// Start 启动消费者
func (r *RedisMQ) Start() error {
	if r.processHandler == nil {
		return fmt.Errorf("处理函数未注册")
	}

	if r.isRunning {
		return nil
	}

	r.isRunning = true
	log.Println("审计事件队列消费者启动中...")

	r.wg.Add(1)
	go r.consumeLoop()

	return nil
}

// consumeLoop 主消费循环：原子地把事件从主队列移入处理中队列，
// 处理成功后从处理中队列移除，失败则进入重试或死信
func (r *RedisMQ) consumeLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.stopChan:
			log.Println("审计事件消费循环退出")
			return
		default:
		}

		data, err := r.client.BRPopLPush(r.ctx, MainQueueName, ProcessingQueueName, 2*time.Second).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			log.Printf("读取审计事件队列失败: %v", err)
			time.Sleep(time.Second)
			continue
		}

		r.handleMessage(data)
	}
}

// handleMessage 处理一条审计事件消息
func (r *RedisMQ) handleMessage(data string) {
	var event ledger.AuditEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		log.Printf("反序列化审计事件失败，移入死信队列: %v", err)
		r.moveToDeadLetter(data)
		return
	}

	if err := r.processHandler(event); err != nil {
		log.Printf("处理审计事件 %s 失败: %v", event.CorrelationID, err)
		r.retryOrDeadLetter(data, event)
		return
	}

	// 处理成功，从处理中队列移除
	r.client.LRem(r.ctx, ProcessingQueueName, 1, data)
}

// retryOrDeadLetter 失败事件重新入队，超过最大重试次数进入死信队列
func (r *RedisMQ) retryOrDeadLetter(data string, event ledger.AuditEvent) {
	retryKey := fmt.Sprintf("audit_retries:%s", event.CorrelationID)

	retries, err := r.client.Incr(r.ctx, retryKey).Result()
	if err != nil {
		log.Printf("记录重试次数失败: %v", err)
		retries = int64(r.maxRetries) + 1
	}
	r.client.Expire(r.ctx, retryKey, 24*time.Hour)

	r.client.LRem(r.ctx, ProcessingQueueName, 1, data)

	if retries > int64(r.maxRetries) {
		log.Printf("审计事件 %s 超过最大重试次数，移入死信队列", event.CorrelationID)
		r.client.LPush(r.ctx, DeadLetterQueueName, data)
		return
	}

	r.client.LPush(r.ctx, MainQueueName, data)
}

// moveToDeadLetter 把无法解析的消息移入死信队列
func (r *RedisMQ) moveToDeadLetter(data string) {
	r.client.LRem(r.ctx, ProcessingQueueName, 1, data)
	r.client.LPush(r.ctx, DeadLetterQueueName, data)
}

// RetryDeadLetters 把死信队列中的事件全部移回主队列
func (r *RedisMQ) RetryDeadLetters() error {
	for {
		data, err := r.client.RPopLPush(r.ctx, DeadLetterQueueName, MainQueueName).Result()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("重试死信事件失败: %v", err)
		}
		log.Printf("死信事件已重新入队: %s", data)
	}
}

// GetQueueStats 获取各队列长度
func (r *RedisMQ) GetQueueStats() map[string]int64 {
	stats := make(map[string]int64)
	for _, name := range []string{MainQueueName, ProcessingQueueName, DeadLetterQueueName} {
		length, err := r.client.LLen(r.ctx, name).Result()
		if err != nil {
			length = -1
		}
		stats[name] = length
	}
	return stats
}

// Stop 停止消费者
func (r *RedisMQ) Stop() {
	if !r.isRunning {
		return
	}
	close(r.stopChan)
	r.wg.Wait()
	r.isRunning = false
	log.Println("审计事件队列消费者已停止")
}
