// Package event provides a small synchronous/async event dispatcher.
//
// A Bus is created per process by the kernel and shared by the services:
//
//	bus := event.New()
//	bus.Listen(event.CatalogChanged, func(ctx context.Context, p any) { ... })
//	bus.FireAsync(ctx, event.CatalogChanged, productID)
//	defer bus.Wait()
package event

import (
	"context"
	"sync"

	"github.com/shashiranjanraj/offersync/pkg/logger"
)

// Event names fired by the services.
const (
	// CatalogChanged carries the product id that was created, renamed,
	// reactivated or deactivated.
	CatalogChanged = "catalog.changed"
	// OffersSynced carries the product id whose offers were refreshed.
	OffersSynced = "offers.synced"
	// CycleFinished carries the sync cycle report.
	CycleFinished = "sync.cycle_finished"
)

// Handler is a function that receives an event payload.
type Handler func(ctx context.Context, payload interface{})

// Bus dispatches named events to registered handlers.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	wg       sync.WaitGroup
}

func New() *Bus {
	return &Bus{handlers: map[string][]Handler{}}
}

// Listen registers a handler for the given event name.
func (b *Bus) Listen(event string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[event] = append(b.handlers[event], handler)
}

// Fire dispatches an event synchronously to all registered listeners.
// A panicking listener is logged and does not stop the others.
func (b *Bus) Fire(ctx context.Context, event string, payload interface{}) {
	for _, h := range b.snapshot(event) {
		b.call(ctx, event, h, payload)
	}
}

// FireAsync dispatches the event to all listeners concurrently and returns
// immediately. The handlers get a context that is not cancelled with ctx.
// Use Wait to block until they finish.
func (b *Bus) FireAsync(ctx context.Context, event string, payload interface{}) {
	detached := context.WithoutCancel(ctx)
	for _, h := range b.snapshot(event) {
		b.wg.Add(1)
		go func(h Handler) {
			defer b.wg.Done()
			b.call(detached, event, h, payload)
		}(h)
	}
}

// Wait blocks until every FireAsync handler has returned.
func (b *Bus) Wait() {
	b.wg.Wait()
}

func (b *Bus) snapshot(event string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	hs := make([]Handler, len(b.handlers[event]))
	copy(hs, b.handlers[event])
	return hs
}

func (b *Bus) call(ctx context.Context, event string, h Handler, payload interface{}) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithCtx(ctx).Error("event: listener panicked", "event", event, "panic", r)
		}
	}()
	h(ctx, payload)
}
