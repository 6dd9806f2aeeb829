// Package stream fans changed table items out to connected subscribers.
//
// A Poller reads the table's kinesis data stream and broadcasts each changed
// item through a Hub. Subscribers attach over the grpc server stream
// ddbstream.DdbStream/Subscribe and receive a ping every few seconds so idle
// connections stay open.
package stream

import (
	"context"
	"sync"
	"time"
)

const (
	TypeBroadcast = "broadcast"
	TypePing      = "ping"

	SubscriberBuffer = 128
	PingInterval     = 10 * time.Second
)

type Message struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

type Subscriber struct {
	messages chan Message
	done     chan struct{}
	once     sync.Once
}

func (s *Subscriber) Messages() <-chan Message {
	return s.messages
}

// Close marks the subscriber as gone. The hub drops it on the next
// broadcast.
func (s *Subscriber) Close() {
	s.once.Do(func() {
		close(s.done)
	})
}

type Hub struct {
	lock        sync.Mutex
	subscribers []*Subscriber
}

func NewHub() *Hub {
	return &Hub{}
}

func (h *Hub) Subscribe() *Subscriber {
	s := &Subscriber{
		messages: make(chan Message, SubscriberBuffer),
		done:     make(chan struct{}),
	}
	h.lock.Lock()
	defer h.lock.Unlock()
	h.subscribers = append(h.subscribers, s)
	return s
}

func (h *Hub) Len() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return len(h.subscribers)
}

// Broadcast delivers msg to every subscriber in subscription order, waiting
// on subscribers whose buffer is full. Closed subscribers are removed.
func (h *Hub) Broadcast(ctx context.Context, msg Message) error {
	h.lock.Lock()
	defer h.lock.Unlock()
	live := h.subscribers[:0]
	for i, s := range h.subscribers {
		select {
		case <-s.done:
			continue
		default:
		}
		select {
		case s.messages <- msg:
			live = append(live, s)
		case <-s.done:
		case <-ctx.Done():
			live = append(live, h.subscribers[i:]...)
			h.subscribers = live
			return ctx.Err()
		}
	}
	clear(h.subscribers[len(live):])
	h.subscribers = live
	return nil
}

// Ping broadcasts a ping immediately and then every interval until ctx is
// done.
func Ping(ctx context.Context, hub *Hub, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		err := hub.Broadcast(ctx, Message{Type: TypePing, Data: ""})
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
