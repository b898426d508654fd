// Package hook replaces the host platform's global action and filter
// registry with an explicit registration table. Components register their
// handlers at startup; the HTTP layer dispatches host lifecycle events to
// them.
package hook

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
)

// Event names delivered by the host platform.
const (
	EventCartPageRender     = "cart_page_render"
	EventCheckoutPageRender = "checkout_page_render"
	EventApplicationInit    = "application_init"
	EventOrderProcessed     = "order_processed"
)

// FilterCouponsEnabled is the boolean filter deciding whether coupons are
// enabled for the request.
const FilterCouponsEnabled = "coupons_enabled"

// ErrUnknownEvent is returned when dispatching an event or filter nobody
// declared.
var ErrUnknownEvent = errors.New("unknown event")

// Handler reacts to a lifecycle event.
type Handler func(ctx context.Context, req *Request) error

// BoolFilter transforms a boolean value flowing through a filter chain.
type BoolFilter func(ctx context.Context, req *Request, v bool) (bool, error)

// Registrar is implemented by components that install their handlers on a Bus.
type Registrar interface {
	Register(b *Bus)
}

type registration[F any] struct {
	name string
	fn   F
}

// Bus is the registration table of event handlers and filters.
//
// Registration normally happens once at startup, dispatch on every request;
// both are safe for concurrent use.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]registration[Handler]
	filters  map[string][]registration[BoolFilter]
}

// NewBus creates a Bus that knows the host platform's events and filters.
func NewBus() *Bus {
	b := &Bus{
		handlers: make(map[string][]registration[Handler]),
		filters:  make(map[string][]registration[BoolFilter]),
	}
	for _, ev := range []string{
		EventCartPageRender,
		EventCheckoutPageRender,
		EventApplicationInit,
		EventOrderProcessed,
	} {
		b.handlers[ev] = nil
	}
	b.filters[FilterCouponsEnabled] = nil
	return b
}

// Install registers every given component on the bus.
func (b *Bus) Install(rs ...Registrar) *Bus {
	for _, r := range rs {
		r.Register(b)
	}
	return b
}

// On registers fn for event under name. Registering the same name twice for
// an event replaces the earlier handler instead of adding a second one.
func (b *Bus) On(event, name string, fn Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[event] = upsert(b.handlers[event], name, fn)
}

// Filter registers fn on the named boolean filter chain.
func (b *Bus) Filter(filter, name string, fn BoolFilter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.filters[filter] = upsert(b.filters[filter], name, fn)
}

// Handlers returns the names of the handlers registered for event, in
// dispatch order.
func (b *Bus) Handlers(event string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	regs := b.handlers[event]
	names := make([]string, len(regs))
	for i, r := range regs {
		names[i] = r.name
	}
	return names
}

// Known reports whether event is a declared event.
func (b *Bus) Known(event string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.handlers[event]
	return ok
}

// Dispatch runs the handlers of event in registration order. The first
// failing handler stops the dispatch.
func (b *Bus) Dispatch(ctx context.Context, event string, req *Request) error {
	b.mu.RLock()
	regs, ok := b.handlers[event]
	regs = append([]registration[Handler](nil), regs...)
	b.mu.RUnlock()

	if !ok {
		return errors.Wrapf(ErrUnknownEvent, "dispatch %q", event)
	}
	for _, r := range regs {
		if err := r.fn(ctx, req); err != nil {
			return errors.Wrapf(err, "%s: %s", event, r.name)
		}
	}
	return nil
}

// ApplyBool passes v through the filter chain and returns the final value.
func (b *Bus) ApplyBool(ctx context.Context, filter string, req *Request, v bool) (bool, error) {
	b.mu.RLock()
	regs, ok := b.filters[filter]
	regs = append([]registration[BoolFilter](nil), regs...)
	b.mu.RUnlock()

	if !ok {
		return v, errors.Wrapf(ErrUnknownEvent, "filter %q", filter)
	}
	for _, r := range regs {
		var err error
		if v, err = r.fn(ctx, req, v); err != nil {
			return v, errors.Wrapf(err, "%s: %s", filter, r.name)
		}
	}
	return v, nil
}

func upsert[F any](regs []registration[F], name string, fn F) []registration[F] {
	for i := range regs {
		if regs[i].name == name {
			regs[i].fn = fn
			return regs
		}
	}
	return append(regs, registration[F]{name: name, fn: fn})
}
