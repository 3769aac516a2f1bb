// Package notify delivers address-book change notifications asynchronously to
// registered subscribers over bounded per-subscription queues.
//
// The cache owner subscribes its invalidation handler here; address-book
// implementations publish a ChangeEvent after every successful mutation.
package notify

import (
	"context"
	"time"

	"rolo/pkg/rolo"
)

// BackpressurePolicy defines how a subscription queue behaves when full.
type BackpressurePolicy string

const (
	// DropNewest drops the incoming event when the queue is full.
	DropNewest BackpressurePolicy = "drop_newest"
	// DropOldest evicts the oldest queued event before enqueueing.
	DropOldest BackpressurePolicy = "drop_oldest"
	// Block waits for queue capacity or publisher context cancellation.
	// Cache-invalidation subscriptions should use Block so stale entries are
	// never silently kept.
	Block BackpressurePolicy = "block"
)

// Handler consumes one change event. Returned errors are routed to the bus's
// async error sink, never back to the publisher.
type Handler func(ctx context.Context, event rolo.ChangeEvent) error

// SubscriptionSpec configures one consumer subscription.
type SubscriptionSpec struct {
	// Name identifies the subscription in errors and logs.
	Name string
	// Kinds restricts delivery to the listed event kinds. Empty means all.
	Kinds []rolo.ChangeKind
	// Buffer is the queue capacity. Zero selects the bus default.
	Buffer int
	// Workers is the number of concurrent handler goroutines. Zero selects
	// the bus default.
	Workers int
	// HandlerTimeout bounds a single handler call. Zero selects the bus
	// default.
	HandlerTimeout time.Duration
	// Backpressure selects the full-queue policy. Empty selects Block.
	Backpressure BackpressurePolicy
}

// matches reports whether the kind filter admits the event.
func (s SubscriptionSpec) matches(event rolo.ChangeEvent) bool {
	if len(s.Kinds) == 0 {
		return true
	}
	for _, kind := range s.Kinds {
		if kind == event.Kind {
			return true
		}
	}

	return false
}

// Subscription controls one active registration.
type Subscription interface {
	// Name returns the subscription identifier.
	Name() string
	// Close stops delivery and unregisters from the bus.
	Close(ctx context.Context) error
}
