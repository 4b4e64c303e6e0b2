package events

import (
	"context"
	"testing"
	"time"
)

func TestDispatcherDeliversToTenantSubscribers(t *testing.T) {
	dispatcher := NewDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, cleanup := dispatcher.Subscribe(ctx, "tenant-1")
	defer cleanup()

	dispatcher.Publish("tenant-1", "sync-completed", map[string]any{"created": 3})

	select {
	case message := <-stream:
		if message.EventType != "sync-completed" {
			t.Fatalf("unexpected event type %s", message.EventType)
		}
		if message.TenantID != "tenant-1" {
			t.Fatalf("unexpected tenant %s", message.TenantID)
		}
		if message.Payload["created"] != 3 {
			t.Fatalf("unexpected payload %v", message.Payload)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected buffered delivery")
	}
}

func TestDispatcherIsolatesTenants(t *testing.T) {
	dispatcher := NewDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, cleanup := dispatcher.Subscribe(ctx, "tenant-a")
	defer cleanup()

	dispatcher.Publish("tenant-b", "sync-completed", nil)

	select {
	case message := <-stream:
		t.Fatalf("unexpected cross-tenant delivery: %+v", message)
	default:
	}
}

func TestDispatcherDropsWhenSubscriberBufferFull(t *testing.T) {
	dispatcher := NewDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, cleanup := dispatcher.Subscribe(ctx, "tenant-1")
	defer cleanup()

	// Overflow the buffer; Publish must never block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 64; i++ {
			dispatcher.Publish("tenant-1", "sync-completed", nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publish blocked on a full subscriber buffer")
	}

	received := 0
	for {
		select {
		case <-stream:
			received++
			continue
		default:
		}
		break
	}
	if received == 0 || received > 16 {
		t.Fatalf("expected at most the buffer size delivered, got %d", received)
	}
}

func TestDispatcherUnsubscribesOnContextCancel(t *testing.T) {
	dispatcher := NewDispatcher()
	ctx, cancel := context.WithCancel(context.Background())

	_, cleanup := dispatcher.Subscribe(ctx, "tenant-1")
	defer cleanup()
	cancel()

	deadline := time.After(time.Second)
	for {
		dispatcher.mu.RLock()
		remaining := len(dispatcher.subscribers["tenant-1"])
		dispatcher.mu.RUnlock()
		if remaining == 0 {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("expected subscriber removal after context cancellation")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestDispatcherIgnoresEmptyIdentifiers(t *testing.T) {
	dispatcher := NewDispatcher()
	dispatcher.Publish("", "sync-completed", nil)
	dispatcher.Publish("tenant-1", "", nil)

	stream, cleanup := dispatcher.Subscribe(context.Background(), "")
	defer cleanup()
	if _, open := <-stream; open {
		t.Fatalf("expected closed stream for empty tenant id")
	}
}
