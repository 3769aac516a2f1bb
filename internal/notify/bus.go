package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"rolo/pkg/rolo"
)

// Bus fans change events out to subscribers with bounded buffering.
type Bus struct {
	mu                    sync.RWMutex
	nextID                int64
	closed                bool
	subscriptions         map[int64]*busSubscription
	defaultBuffer         int
	defaultWorkers        int
	defaultHandlerTimeout time.Duration
	onAsyncError          func(context.Context, string, error)
}

// NewBus creates an event bus. onAsyncError receives handler and delivery
// failures that cannot be returned to the publisher; nil disables reporting.
func NewBus(
	defaultBuffer int,
	defaultWorkers int,
	defaultHandlerTimeout time.Duration,
	onAsyncError func(context.Context, string, error),
) *Bus {
	return &Bus{
		subscriptions:         make(map[int64]*busSubscription),
		defaultBuffer:         defaultBuffer,
		defaultWorkers:        defaultWorkers,
		defaultHandlerTimeout: defaultHandlerTimeout,
		onAsyncError:          onAsyncError,
	}
}

// Publish dispatches an event to every subscription whose kind filter matches.
func (b *Bus) Publish(ctx context.Context, event rolo.ChangeEvent) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("publish %s: %w", event.Kind, err)
	}

	subs, err := b.snapshotSubscriptions()
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.Kind, err)
	}

	var publishErrs []error
	for _, sub := range subs {
		if !sub.spec.matches(event) {
			continue
		}
		if err := sub.enqueue(ctx, event); err != nil {
			if errors.Is(err, rolo.ErrEventDropped) || errors.Is(err, rolo.ErrSubscriptionClosed) {
				b.reportAsyncError(ctx, sub.spec.Name, err)
				continue
			}
			publishErrs = append(publishErrs, err)
		}
	}

	if len(publishErrs) > 0 {
		return fmt.Errorf("publish %s: %w", event.Kind, errors.Join(publishErrs...))
	}

	return nil
}

// Subscribe registers a bounded asynchronous consumer and returns its handle.
func (b *Bus) Subscribe(ctx context.Context, spec SubscriptionSpec, handler Handler) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", spec.Name, err)
	}
	if handler == nil {
		return nil, fmt.Errorf("subscribe %s: nil handler: %w", spec.Name, rolo.ErrInvalidSubscription)
	}

	subID := atomic.AddInt64(&b.nextID, 1)
	spec = b.normalizeSpec(spec, subID)
	sub := newBusSubscription(subID, spec, handler, b)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		sub.signalClose()
		return nil, fmt.Errorf("subscribe %s: %w", spec.Name, rolo.ErrBusClosed)
	}
	b.subscriptions[subID] = sub

	return sub, nil
}

// Close stops all subscriptions and rejects further publishes and subscribes.
func (b *Bus) Close(ctx context.Context) error {
	subs := make([]*busSubscription, 0)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for _, sub := range b.subscriptions {
		subs = append(subs, sub)
	}
	b.subscriptions = make(map[int64]*busSubscription)
	b.mu.Unlock()

	var closeErrs []error
	for _, sub := range subs {
		if err := sub.shutdown(ctx); err != nil {
			closeErrs = append(closeErrs, err)
		}
	}

	if len(closeErrs) > 0 {
		return fmt.Errorf("close bus: %w", errors.Join(closeErrs...))
	}

	return nil
}

// snapshotSubscriptions returns a stable copy for lock-free publish fan-out.
func (b *Bus) snapshotSubscriptions() ([]*busSubscription, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, rolo.ErrBusClosed
	}

	subs := make([]*busSubscription, 0, len(b.subscriptions))
	for _, sub := range b.subscriptions {
		subs = append(subs, sub)
	}

	return subs, nil
}

// normalizeSpec applies bus defaults when callers omit optional fields.
func (b *Bus) normalizeSpec(spec SubscriptionSpec, subID int64) SubscriptionSpec {
	if spec.Name == "" {
		spec.Name = fmt.Sprintf("subscription-%d", subID)
	}
	if len(spec.Kinds) > 0 {
		spec.Kinds = append([]rolo.ChangeKind(nil), spec.Kinds...)
	}
	if spec.Buffer <= 0 {
		spec.Buffer = b.defaultBuffer
	}
	if spec.Workers <= 0 {
		spec.Workers = b.defaultWorkers
	}
	if spec.HandlerTimeout <= 0 {
		spec.HandlerTimeout = b.defaultHandlerTimeout
	}
	if spec.Backpressure == "" {
		spec.Backpressure = Block
	}

	return spec
}

// unsubscribe removes and shuts down a subscription by id.
func (b *Bus) unsubscribe(ctx context.Context, subID int64) error {
	b.mu.Lock()
	sub, found := b.subscriptions[subID]
	if found {
		delete(b.subscriptions, subID)
	}
	b.mu.Unlock()

	if !found {
		return nil
	}

	if err := sub.shutdown(ctx); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", sub.spec.Name, err)
	}

	return nil
}

// reportAsyncError forwards background failures to the configured error sink.
func (b *Bus) reportAsyncError(ctx context.Context, scope string, err error) {
	if b.onAsyncError != nil {
		b.onAsyncError(ctx, scope, err)
	}
}
