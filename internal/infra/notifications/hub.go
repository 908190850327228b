package notifications

import (
	"context"
	"sync"

	"omnisearch/internal/domain"
)

const defaultEventBuffer = 16

// EventHub fans engine events out to subscribers. Full subscriber buffers drop events.
type EventHub struct {
	mu   sync.RWMutex
	subs map[domain.EventKind]map[chan domain.Event]struct{}
}

func NewEventHub() *EventHub {
	return &EventHub{
		subs: make(map[domain.EventKind]map[chan domain.Event]struct{}),
	}
}

// Emit delivers event to every subscriber of its kind without blocking.
func (h *EventHub) Emit(event domain.Event) {
	if h == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[event.Kind] {
		select {
		case ch <- event:
		default:
		}
	}
}

// PublishConnections is a domain.ConnectionListener.
func (h *EventHub) PublishConnections(snapshot domain.ConnectionSnapshot) {
	h.Emit(domain.Event{Kind: domain.EventConnections, Snapshot: &snapshot})
}

// PublishHealth is a domain.HealthListener.
func (h *EventHub) PublishHealth(status domain.HealthStatus) {
	h.Emit(domain.Event{Kind: domain.EventHealth, Health: &status})
}

// Subscribe returns events of the given kinds (all kinds when none are given).
// The channel closes when ctx ends.
func (h *EventHub) Subscribe(ctx context.Context, kinds ...domain.EventKind) <-chan domain.Event {
	ch := make(chan domain.Event, defaultEventBuffer)
	if h == nil {
		close(ch)
		return ch
	}
	if len(kinds) == 0 {
		kinds = []domain.EventKind{domain.EventConnections, domain.EventHealth}
	}

	h.mu.Lock()
	for _, kind := range kinds {
		if h.subs[kind] == nil {
			h.subs[kind] = make(map[chan domain.Event]struct{})
		}
		h.subs[kind][ch] = struct{}{}
	}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		for _, kind := range kinds {
			delete(h.subs[kind], ch)
		}
		close(ch)
		h.mu.Unlock()
	}()

	return ch
}
