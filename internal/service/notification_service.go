package service

import (
	"context"
	"encoding/json"
	"fmt"
	"planora_backend/internal/config"
	"planora_backend/pkg/logger"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type NotificationKind string

const (
	NotifyFriendRequest  NotificationKind = "friend_request"
	NotifyFriendAccepted NotificationKind = "friend_accepted"
	NotifyResourceShared NotificationKind = "resource_shared"
)

// Notification 投递给外部消费者（邮件、推送）的通知
type Notification struct {
	Kind      NotificationKind `json:"kind"`
	UserID    uint             `json:"userId"`
	Payload   interface{}      `json:"payload"`
	CreatedAt time.Time        `json:"createdAt"`
}

type NotificationPublisher interface {
	Publish(ctx context.Context, n Notification) error
	Close() error
}

// NewNotificationPublisher 未启用时返回空实现
func NewNotificationPublisher(cfg config.NotificationConfig) NotificationPublisher {
	if !cfg.Enabled || cfg.URL == "" {
		return NoopPublisher{}
	}
	return NewAMQPPublisher(cfg.URL, cfg.Queue)
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Notification) error { return nil }
func (NoopPublisher) Close() error                                { return nil }

// AMQPPublisher 发布到 RabbitMQ 持久化队列，连接断开后下次发布时重连
type AMQPPublisher struct {
	url   string
	queue string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPPublisher(url, queue string) *AMQPPublisher {
	if queue == "" {
		queue = "notifications"
	}
	return &AMQPPublisher{url: url, queue: queue}
}

func (p *AMQPPublisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.closeLocked()

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	// 幂等声明，durable 保证 broker 重启后消息仍在
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rabbitmq queue declare: %w", err)
	}

	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, n Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    n.CreatedAt,
		Type:         string(n.Kind),
		Body:         body,
	})
	if err != nil {
		p.closeLocked()
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}

func (p *AMQPPublisher) closeLocked() {
	if p.ch != nil {
		p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
	return nil
}

// publishQuietly 通知失败不影响主流程，只记录日志
func publishQuietly(ctx context.Context, pub NotificationPublisher, n Notification) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, n); err != nil {
		logger.Log.Warn("Failed to publish notification",
			zap.String("kind", string(n.Kind)),
			zap.Uint("userId", n.UserID),
			zap.Error(err))
	}
}
