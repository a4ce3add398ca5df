package mq

import (
	"context"
	"fmt"
	"sync"
	"time"

	"failboard/config"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	EmailQueue = "email_queue"
	AIQueue    = "ai_queue"
)

type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	// amqp channels are not safe for concurrent publishing
	mu sync.Mutex
}

func New(cfg *config.Config) (*RabbitMQ, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s:%s/",
		cfg.MQUser,
		cfg.MQPassword,
		cfg.MQHost,
		cfg.MQPort,
	)

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	for _, q := range []string{EmailQueue, AIQueue} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to declare queue %s: %w", q, err)
		}
	}

	return &RabbitMQ{conn: conn, channel: ch}, nil
}

// Publish sends a persistent JSON message to the named queue.
func (r *RabbitMQ) Publish(ctx context.Context, queue string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.channel.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

// Consume opens a dedicated channel per queue so one slow consumer cannot
// starve another's prefetch.
func (r *RabbitMQ) Consume(queue string) (<-chan amqp.Delivery, error) {
	ch, err := r.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open consumer channel: %w", err)
	}
	if err := ch.Qos(10, 0, false); err != nil {
		ch.Close()
		return nil, err
	}
	return ch.Consume(queue, "", false, false, false, false, nil)
}

func (r *RabbitMQ) Close() {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		r.conn.Close()
	}
}
