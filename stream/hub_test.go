package stream

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestHubBroadcastOrder(t *testing.T) {
	hub := NewHub()
	a := hub.Subscribe()
	b := hub.Subscribe()
	ctx := context.Background()
	for _, data := range []string{"1", "2", "3"} {
		err := hub.Broadcast(ctx, Message{Type: TypeBroadcast, Data: data})
		if err != nil {
			t.Fatal(err)
		}
	}
	for _, sub := range []*Subscriber{a, b} {
		for _, want := range []string{"1", "2", "3"} {
			msg := <-sub.Messages()
			if msg.Type != TypeBroadcast || msg.Data != want {
				t.Errorf("\ngot:\n%v\nwant:\n%v\n", msg, Message{Type: TypeBroadcast, Data: want})
			}
		}
	}
}

func TestHubDropsClosedSubscribers(t *testing.T) {
	hub := NewHub()
	a := hub.Subscribe()
	b := hub.Subscribe()
	c := hub.Subscribe()
	b.Close()
	b.Close()
	err := hub.Broadcast(context.Background(), Message{Type: TypeBroadcast, Data: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if hub.Len() != 2 {
		t.Errorf("\ngot:\n%d\nwant:\n%d\n", hub.Len(), 2)
	}
	for _, sub := range []*Subscriber{a, c} {
		msg := <-sub.Messages()
		if msg.Data != "x" {
			t.Errorf("\ngot:\n%s\nwant:\n%s\n", msg.Data, "x")
		}
	}
	select {
	case msg := <-b.Messages():
		t.Errorf("closed subscriber got %v", msg)
	default:
	}
}

func TestHubBroadcastFullSubscriber(t *testing.T) {
	hub := NewHub()
	slow := hub.Subscribe()
	for i := 0; i < SubscriberBuffer; i++ {
		err := hub.Broadcast(context.Background(), Message{Type: TypeBroadcast})
		if err != nil {
			t.Fatal(err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := hub.Broadcast(ctx, Message{Type: TypeBroadcast})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("\ngot:\n%v\nwant:\n%v\n", err, context.DeadlineExceeded)
	}
	if hub.Len() != 1 {
		t.Errorf("\ngot:\n%d\nwant:\n%d\n", hub.Len(), 1)
	}
	slow.Close()
	err = hub.Broadcast(context.Background(), Message{Type: TypeBroadcast})
	if err != nil {
		t.Fatal(err)
	}
	if hub.Len() != 0 {
		t.Errorf("\ngot:\n%d\nwant:\n%d\n", hub.Len(), 0)
	}
}

func TestHubBroadcastNoSubscribers(t *testing.T) {
	hub := NewHub()
	err := hub.Broadcast(context.Background(), Message{Type: TypePing})
	if err != nil {
		t.Fatal(err)
	}
}

func TestPing(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- Ping(ctx, hub, 10*time.Millisecond)
	}()
	for i := 0; i < 3; i++ {
		select {
		case msg := <-sub.Messages():
			if msg.Type != TypePing || msg.Data != "" {
				t.Errorf("\ngot:\n%v\nwant:\n%v\n", msg, Message{Type: TypePing})
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for ping")
		}
	}
	cancel()
	err := <-done
	if !errors.Is(err, context.Canceled) {
		t.Errorf("\ngot:\n%v\nwant:\n%v\n", err, context.Canceled)
	}
}
