package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"governance-voting-backend/ledger"

	"github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/consumer"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/apache/rocketmq-client-go/v2/producer"
)

// TopicAuditEvents 审计事件主题
const TopicAuditEvents = "audit_events"

// RocketMQ 基于RocketMQ的审计事件队列后端
type RocketMQ struct {
	nameServer string
	producer   rocketmq.Producer
	consumer   rocketmq.PushConsumer
}

// NewRocketMQ 创建并启动RocketMQ生产者
func NewRocketMQ(nameServerAddr string) (*RocketMQ, error) {
	p, err := rocketmq.NewProducer(
		producer.WithNameServer([]string{nameServerAddr}),
		producer.WithGroupName("audit_producer"),
		producer.WithRetry(2),
		producer.WithSendMsgTimeout(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("创建RocketMQ生产者失败: %v", err)
	}

	if err := p.Start(); err != nil {
		return nil, fmt.Errorf("启动RocketMQ生产者失败: %v", err)
	}

	log.Printf("RocketMQ生产者已连接: %s", nameServerAddr)
	return &RocketMQ{nameServer: nameServerAddr, producer: p}, nil
}

// Publish 发送审计事件
func (m *RocketMQ) Publish(event ledger.AuditEvent) error {
	jsonData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化审计事件失败: %v", err)
	}

	msg := primitive.NewMessage(TopicAuditEvents, jsonData)
	msg.WithKeys([]string{event.CorrelationID})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := m.producer.SendSync(ctx, msg); err != nil {
		return fmt.Errorf("发送审计事件失败: %v", err)
	}

	return nil
}

// Subscribe 订阅审计事件主题并启动消费者
func (m *RocketMQ) Subscribe(handler Handler) error {
	c, err := rocketmq.NewPushConsumer(
		consumer.WithGroupName("audit_consumer"),
		consumer.WithNameServer([]string{m.nameServer}),
	)
	if err != nil {
		return fmt.Errorf("创建RocketMQ消费者失败: %v", err)
	}

	err = c.Subscribe(TopicAuditEvents, consumer.MessageSelector{},
		func(ctx context.Context, msgs ...*primitive.MessageExt) (consumer.ConsumeResult, error) {
			for _, msg := range msgs {
				var event ledger.AuditEvent
				if err := json.Unmarshal(msg.Body, &event); err != nil {
					log.Printf("反序列化审计事件失败: %v", err)
					continue
				}
				if err := handler(event); err != nil {
					log.Printf("处理审计事件 %s 失败: %v", event.CorrelationID, err)
					return consumer.ConsumeRetryLater, nil
				}
			}
			return consumer.ConsumeSuccess, nil
		})
	if err != nil {
		return fmt.Errorf("订阅审计事件主题失败: %v", err)
	}

	if err := c.Start(); err != nil {
		return fmt.Errorf("启动RocketMQ消费者失败: %v", err)
	}

	m.consumer = c
	log.Println("RocketMQ审计事件消费者已启动")
	return nil
}

// Close 关闭生产者和消费者
func (m *RocketMQ) Close() {
	if m.consumer != nil {
		if err := m.consumer.Shutdown(); err != nil {
			log.Printf("关闭RocketMQ消费者失败: %v", err)
		}
	}
	if m.producer != nil {
		if err := m.producer.Shutdown(); err != nil {
			log.Printf("关闭RocketMQ生产者失败: %v", err)
		}
	}
}
