package events

import (
	"context"
	"sync"
	"time"
)

// Message is one completion notification delivered to subscribers of a
// tenant's event stream.
type Message struct {
	TenantID  string
	EventType string
	Payload   map[string]any
	Timestamp time.Time
}

// Dispatcher fans sync completion events out to in-process subscribers,
// keyed by tenant. Publish is fire-and-forget: a subscriber with a full
// buffer misses the message rather than blocking the sync response.
type Dispatcher struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*subscriber
	nextID      int64
	bufferSize  int
	clock       func() time.Time
}

type subscriber struct {
	id     int64
	stream chan Message
}

// NewDispatcher constructs a dispatcher with a small per-subscriber buffer.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		subscribers: make(map[string]map[int64]*subscriber),
		bufferSize:  16,
		clock:       time.Now,
	}
}

// Subscribe registers a listener for one tenant's events. The returned
// cleanup runs automatically when the context is cancelled.
func (d *Dispatcher) Subscribe(ctx context.Context, tenantID string) (<-chan Message, func()) {
	if tenantID == "" {
		ch := make(chan Message)
		close(ch)
		return ch, func() {}
	}
	sub := &subscriber{
		id:     d.nextSequence(),
		stream: make(chan Message, d.bufferSize),
	}
	d.register(tenantID, sub)
	cleanup := func() {
		d.unregister(tenantID, sub.id)
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return sub.stream, cleanup
}

// Publish delivers a completion event to every subscriber of the tenant.
// Never blocks and never fails.
func (d *Dispatcher) Publish(tenantID, eventType string, payload map[string]any) {
	if tenantID == "" || eventType == "" {
		return
	}
	message := Message{
		TenantID:  tenantID,
		EventType: eventType,
		Payload:   payload,
		Timestamp: d.clock().UTC(),
	}
	d.mu.RLock()
	subscribers := d.subscribers[tenantID]
	if len(subscribers) == 0 {
		d.mu.RUnlock()
		return
	}
	copies := make([]*subscriber, 0, len(subscribers))
	for _, sub := range subscribers {
		copies = append(copies, sub)
	}
	d.mu.RUnlock()
	for _, sub := range copies {
		select {
		case sub.stream <- message:
		default:
		}
	}
}

func (d *Dispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *Dispatcher) register(tenantID string, sub *subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[tenantID]; !ok {
		d.subscribers[tenantID] = make(map[int64]*subscriber)
	}
	d.subscribers[tenantID][sub.id] = sub
}

func (d *Dispatcher) unregister(tenantID string, subscriberID int64) {
	d.mu.Lock()
	subscribers := d.subscribers[tenantID]
	if subscribers != nil {
		delete(subscribers, subscriberID)
		if len(subscribers) == 0 {
			delete(d.subscribers, tenantID)
		}
	}
	d.mu.Unlock()
}
