package notify

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"rolo/pkg/rolo"
)

// busSubscription owns queueing and worker lifecycle for a single subscriber.
// Queue closure is driven by context cancellation rather than channel close.
type busSubscription struct {
	id      int64
	spec    SubscriptionSpec
	handler Handler
	queue   chan rolo.ChangeEvent
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	closed  atomic.Bool
	once    sync.Once
	bus     *Bus
}

// newBusSubscription creates a subscription and starts its workers.
func newBusSubscription(subID int64, spec SubscriptionSpec, handler Handler, bus *Bus) *busSubscription {
	subCtx, cancel := context.WithCancel(context.Background())
	sub := &busSubscription{
		id:      subID,
		spec:    spec,
		handler: handler,
		queue:   make(chan rolo.ChangeEvent, spec.Buffer),
		ctx:     subCtx,
		cancel:  cancel,
		done:    make(chan struct{}),
		bus:     bus,
	}

	sub.startWorkers()

	return sub
}

// Name returns the stable subscription name.
func (s *busSubscription) Name() string {
	return s.spec.Name
}

// Close unregisters this subscription from its parent bus.
func (s *busSubscription) Close(ctx context.Context) error {
	return s.bus.unsubscribe(ctx, s.id)
}

// enqueue applies the configured backpressure policy for the subscriber queue.
func (s *busSubscription) enqueue(ctx context.Context, event rolo.ChangeEvent) error {
	if s.closed.Load() {
		return fmt.Errorf("enqueue %s: %w", s.spec.Name, rolo.ErrSubscriptionClosed)
	}

	switch s.spec.Backpressure {
	case DropNewest:
		return s.enqueueDropNewest(event)
	case DropOldest:
		return s.enqueueDropOldest(event)
	case Block:
		return s.enqueueBlock(ctx, event)
	default:
		return fmt.Errorf("enqueue %s: %w", s.spec.Name, rolo.ErrInvalidSubscription)
	}
}

// enqueueDropNewest drops the incoming event when the queue is full.
func (s *busSubscription) enqueueDropNewest(event rolo.ChangeEvent) error {
	select {
	case s.queue <- event:
		return nil
	default:
		return fmt.Errorf("enqueue %s: %w", s.spec.Name, rolo.ErrEventDropped)
	}
}

// enqueueDropOldest evicts one queued event before enqueueing the new event.
func (s *busSubscription) enqueueDropOldest(event rolo.ChangeEvent) error {
	select {
	case s.queue <- event:
		return nil
	default:
	}

	select {
	case <-s.queue:
	default:
	}

	select {
	case s.queue <- event:
		return nil
	default:
		return fmt.Errorf("enqueue %s: %w", s.spec.Name, rolo.ErrEventDropped)
	}
}

// enqueueBlock waits for queue capacity or publisher context cancellation.
func (s *busSubscription) enqueueBlock(ctx context.Context, event rolo.ChangeEvent) error {
	select {
	case s.queue <- event:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("enqueue %s: %w", s.spec.Name, ctx.Err())
	}
}

// startWorkers launches worker goroutines and closes done after all exit.
func (s *busSubscription) startWorkers() {
	workerWG := &sync.WaitGroup{}
	for idx := 0; idx < s.spec.Workers; idx++ {
		workerID := idx
		workerWG.Add(1)
		go s.runWorker(workerWG, workerID)
	}

	go func() {
		workerWG.Wait()
		close(s.done)
	}()
}

// runWorker consumes the queue until subscription context cancellation, then
// drains whatever was already accepted before exiting.
func (s *busSubscription) runWorker(workerWG *sync.WaitGroup, workerID int) {
	defer workerWG.Done()

	for {
		select {
		case <-s.ctx.Done():
			s.drainQueue(workerID)
			return
		case event := <-s.queue:
			if err := s.handleEvent(s.ctx, workerID, event); err != nil {
				s.bus.reportAsyncError(s.ctx, s.spec.Name, err)
			}
		}
	}
}

// drainQueue delivers the events still buffered at close time. An event the
// bus accepted is an event the subscriber gets; shutdown must not silently
// abandon queued invalidations. Handlers run on a detached context bounded
// only by the per-call timeout.
func (s *busSubscription) drainQueue(workerID int) {
	drainCtx := context.WithoutCancel(s.ctx)
	for {
		select {
		case event := <-s.queue:
			if err := s.handleEvent(drainCtx, workerID, event); err != nil {
				s.bus.reportAsyncError(drainCtx, s.spec.Name, err)
			}
		default:
			return
		}
	}
}

// handleEvent executes one handler call with optional timeout and panic recovery.
func (s *busSubscription) handleEvent(ctx context.Context, workerID int, event rolo.ChangeEvent) error {
	handlerCtx := ctx
	cancel := func() {}
	if s.spec.HandlerTimeout > 0 {
		handlerCtxWithTimeout, handlerCancel := context.WithTimeout(ctx, s.spec.HandlerTimeout)
		handlerCtx = handlerCtxWithTimeout
		cancel = handlerCancel
	}
	defer cancel()

	scope := fmt.Sprintf("subscription %s worker %d", s.spec.Name, workerID)
	if err := runSafely(scope, func() error {
		return s.handler(handlerCtx, event)
	}); err != nil {
		return fmt.Errorf("%s handle %s: %w", scope, event.Kind, err)
	}

	return nil
}

// signalClose marks the subscription closed exactly once and cancels workers.
func (s *busSubscription) signalClose() {
	s.once.Do(func() {
		s.closed.Store(true)
		s.cancel()
	})
}

// shutdown waits for worker exit or returns when the supplied context expires.
func (s *busSubscription) shutdown(ctx context.Context) error {
	s.signalClose()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown subscription %s: %w", s.spec.Name, ctx.Err())
	}
}

// runSafely executes fn and converts panics into returned errors tagged with
// scope. It keeps a misbehaving handler from crashing the delivery workers.
func runSafely(scope string, fn func() error) (err error) {
	defer func() {
		recovered := recover()
		if recovered == nil {
			return
		}
		err = fmt.Errorf("%s: panic recovered: %v", scope, recovered)
	}()

	if err := fn(); err != nil {
		return fmt.Errorf("%s: %w", scope, err)
	}

	return nil
}
