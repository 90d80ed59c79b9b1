// Package eventbus broadcasts events to every running instance.
package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dukex/actionhub/pkg/events"
)

var ErrUnknownEventType = errors.New("unknown event type")

type Event interface {
	GetType() events.EventType
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}

// handlers is the subscription table shared by the bus implementations.
type handlers struct {
	mu    sync.RWMutex
	table map[events.EventType]EventHandler
}

func newHandlers() *handlers {
	return &handlers{table: make(map[events.EventType]EventHandler)}
}

func (h *handlers) set(eventType events.EventType, handler EventHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.table[eventType] = handler
}

func (h *handlers) get(eventType events.EventType) (EventHandler, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	handler, ok := h.table[eventType]

	return handler, ok
}

func decode(eventType events.EventType, payload []byte) (any, error) {
	event, ok := events.New(eventType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, eventType)
	}

	if err := json.Unmarshal(payload, event); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", eventType, err)
	}

	return event, nil
}
