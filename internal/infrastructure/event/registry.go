package event

import (
	"slices"
	"sync"

	"github.com/shopdesk/backend/internal/domain/shared"
)

// subscription binds a handler to the event types it receives. A nil type
// set means every event.
type subscription struct {
	handler shared.EventHandler
	types   map[string]struct{}
}

func (s *subscription) matches(eventType string) bool {
	if s.types == nil {
		return true
	}
	_, ok := s.types[eventType]
	return ok
}

// widen adds event types to the subscription. No types turns it into a
// catch-all.
func (s *subscription) widen(eventTypes []string) {
	if len(eventTypes) == 0 {
		s.types = nil
		return
	}
	if s.types == nil {
		return
	}
	for _, t := range eventTypes {
		s.types[t] = struct{}{}
	}
}

// HandlerRegistry keeps one subscription per handler, in registration order.
// Dispatch lists are resolved per event type and cached until the next
// change.
type HandlerRegistry struct {
	mu       sync.RWMutex
	subs     []*subscription
	resolved map[string][]shared.EventHandler
}

// NewHandlerRegistry creates an empty registry
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{resolved: make(map[string][]shared.EventHandler)}
}

// Register subscribes handler to eventTypes, or to every event when none are
// given. Registering a handler again widens its existing subscription, so it
// is still called once per event.
func (r *HandlerRegistry) Register(handler shared.EventHandler, eventTypes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i := r.indexOf(handler); i >= 0 {
		r.subs[i].widen(eventTypes)
	} else {
		sub := &subscription{handler: handler}
		if len(eventTypes) > 0 {
			sub.types = make(map[string]struct{}, len(eventTypes))
			sub.widen(eventTypes)
		}
		r.subs = append(r.subs, sub)
	}
	clear(r.resolved)
}

// Unregister drops the handler's subscription
func (r *HandlerRegistry) Unregister(handler shared.EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i := r.indexOf(handler); i >= 0 {
		r.subs = slices.Delete(r.subs, i, i+1)
		clear(r.resolved)
	}
}

// HandlersFor returns the handlers subscribed to eventType in registration
// order. The returned slice must not be modified.
func (r *HandlerRegistry) HandlersFor(eventType string) []shared.EventHandler {
	r.mu.RLock()
	handlers, ok := r.resolved[eventType]
	r.mu.RUnlock()
	if ok {
		return handlers
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if handlers, ok := r.resolved[eventType]; ok {
		return handlers
	}
	handlers = make([]shared.EventHandler, 0, len(r.subs))
	for _, sub := range r.subs {
		if sub.matches(eventType) {
			handlers = append(handlers, sub.handler)
		}
	}
	r.resolved[eventType] = handlers
	return handlers
}

// Len returns the number of subscribed handlers
func (r *HandlerRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

func (r *HandlerRegistry) indexOf(handler shared.EventHandler) int {
	return slices.IndexFunc(r.subs, func(s *subscription) bool { return s.handler == handler })
}
