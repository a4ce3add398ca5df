// Package pubsub fans values out to subscribers grouped by key. Publishers
// never block: a subscriber that falls behind loses its oldest pending value.
package pubsub

import "sync"

const defaultBuffer = 8

type Hub[T any] struct {
	mu     sync.Mutex
	subs   map[string]map[*subscription[T]]struct{}
	buffer int
}

type subscription[T any] struct {
	ch   chan T
	once sync.Once
}

func NewHub[T any](buffer int) *Hub[T] {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub[T]{subs: make(map[string]map[*subscription[T]]struct{}), buffer: buffer}
}

// Subscribe registers interest in key. The returned cancel func unsubscribes
// and closes the channel; calling it more than once is safe.
func (h *Hub[T]) Subscribe(key string) (<-chan T, func()) {
	sub := &subscription[T]{ch: make(chan T, h.buffer)}

	h.mu.Lock()
	if h.subs[key] == nil {
		h.subs[key] = make(map[*subscription[T]]struct{})
	}
	h.subs[key][sub] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		sub.once.Do(func() {
			h.mu.Lock()
			delete(h.subs[key], sub)
			if len(h.subs[key]) == 0 {
				delete(h.subs, key)
			}
			close(sub.ch)
			h.mu.Unlock()
		})
	}
	return sub.ch, cancel
}

// Publish delivers v to every subscriber of key.
func (h *Hub[T]) Publish(key string, v T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[key] {
		for {
			select {
			case sub.ch <- v:
			default:
				select {
				case <-sub.ch:
				default:
				}
				continue
			}
			break
		}
	}
}

func (h *Hub[T]) Subscribers(key string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[key])
}
