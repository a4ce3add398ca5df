package mq

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// HandlerFunc processes one message body. Returning an error dead-letters
// the message; it is not redelivered.
type HandlerFunc func(ctx context.Context, body []byte) error

type Source interface {
	Consume(queue string) (<-chan amqp.Delivery, error)
}

type Consumer struct {
	source   Source
	handlers map[string]HandlerFunc
	wg       sync.WaitGroup
}

func NewConsumer(source Source) *Consumer {
	return &Consumer{source: source, handlers: make(map[string]HandlerFunc)}
}

func (c *Consumer) Register(queue string, h HandlerFunc) {
	c.handlers[queue] = h
}

// Start runs one goroutine per registered queue. They stop when ctx is
// cancelled or the connection closes the delivery channel.
func (c *Consumer) Start(ctx context.Context) {
	for queue, h := range c.handlers {
		msgs, err := c.source.Consume(queue)
		if err != nil {
			zap.L().Error("failed to start consumer", zap.String("queue", queue), zap.Error(err))
			continue
		}
		c.wg.Add(1)
		go c.run(ctx, queue, msgs, h)
	}
}

func (c *Consumer) run(ctx context.Context, queue string, msgs <-chan amqp.Delivery, h HandlerFunc) {
	defer c.wg.Done()
	zap.L().Info("waiting for messages", zap.String("queue", queue))
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-msgs:
			if !ok {
				zap.L().Info("consumer channel closed", zap.String("queue", queue))
				return
			}
			if err := h(ctx, d.Body); err != nil {
				zap.L().Error("message handling failed", zap.String("queue", queue), zap.Error(err))
				d.Nack(false, false)
				continue
			}
			d.Ack(false)
		}
	}
}

// Wait blocks until every consumer goroutine has returned.
func (c *Consumer) Wait() {
	c.wg.Wait()
}
