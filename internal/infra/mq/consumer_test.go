package mq

import (
	"context"
	"errors"
	"sync"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
)

type ackRecorder struct {
	mu    sync.Mutex
	acks  int
	nacks int
}

func (a *ackRecorder) Ack(uint64, bool) error {
	a.mu.Lock()
	a.acks++
	a.mu.Unlock()
	return nil
}

func (a *ackRecorder) Nack(uint64, bool, bool) error {
	a.mu.Lock()
	a.nacks++
	a.mu.Unlock()
	return nil
}

func (a *ackRecorder) Reject(uint64, bool) error { return nil }

type chanSource map[string]chan amqp.Delivery

func (s chanSource) Consume(queue string) (<-chan amqp.Delivery, error) {
	ch, ok := s[queue]
	if !ok {
		return nil, errors.New("no such queue")
	}
	return ch, nil
}

func TestConsumer_AckAndNack(t *testing.T) {
	ch := make(chan amqp.Delivery, 3)
	acks := &ackRecorder{}
	src := chanSource{"q": ch}

	var got []string
	c := NewConsumer(src)
	c.Register("q", func(_ context.Context, body []byte) error {
		if string(body) == "bad" {
			return errors.New("cannot decode")
		}
		got = append(got, string(body))
		return nil
	})
	c.Register("missing", func(context.Context, []byte) error { return nil })

	for _, body := range []string{"a", "bad", "b"} {
		ch <- amqp.Delivery{Acknowledger: acks, Body: []byte(body)}
	}
	close(ch)

	c.Start(context.Background())
	c.Wait()

	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("want [a b], got %v", got)
	}
	if acks.acks != 2 || acks.nacks != 1 {
		t.Errorf("want 2 acks 1 nack, got %d/%d", acks.acks, acks.nacks)
	}
}
