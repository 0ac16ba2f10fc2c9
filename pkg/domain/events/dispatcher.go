package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// HandlerFunc handles one dispatched event.
type HandlerFunc func(ctx context.Context, event Event) error

// namedHandler wraps a handler with its name for error reporting.
type namedHandler struct {
	name    string
	handler HandlerFunc
}

// Dispatcher routes events to registered handlers. Handlers for the
// wildcard type "*" receive every event.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]namedHandler

	// ContinueOnError determines whether dispatch keeps going when a
	// handler fails; collected errors are joined.
	ContinueOnError bool
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string][]namedHandler),
	}
}

// Register registers a handler for the given event types.
func (d *Dispatcher) Register(name string, handler HandlerFunc, eventTypes ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	nh := namedHandler{name: name, handler: handler}
	for _, eventType := range eventTypes {
		d.handlers[eventType] = append(d.handlers[eventType], nh)
	}
}

// RegisterWildcard registers a handler for all events.
func (d *Dispatcher) RegisterWildcard(name string, handler HandlerFunc) {
	d.Register(name, handler, "*")
}

// Dispatch sends an event to all matching handlers. With ContinueOnError
// false, dispatch stops at the first failing handler; otherwise every
// handler runs and failures are joined.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var handlers []namedHandler
	handlers = append(handlers, d.handlers[event.Type]...)
	handlers = append(handlers, d.handlers["*"]...)

	var errs []error
	for _, nh := range handlers {
		if err := nh.handler(ctx, event); err != nil {
			handlerErr := fmt.Errorf("handler %s failed for event %s: %w", nh.name, event.Type, err)
			if !d.ContinueOnError {
				return handlerErr
			}
			errs = append(errs, handlerErr)
		}
	}
	return errors.Join(errs...)
}

// HasHandlers returns true if any handler would receive the given event type.
func (d *Dispatcher) HasHandlers(eventType string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers[eventType]) > 0 || len(d.handlers["*"]) > 0
}
