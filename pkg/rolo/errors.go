package rolo

import "errors"

var (
	// ErrInvalidEmail indicates a resolve request with an empty email.
	ErrInvalidEmail = errors.New("rolo: invalid email")
	// ErrInvalidEvent indicates a change event that violates its kind's
	// invariants.
	ErrInvalidEvent = errors.New("rolo: invalid change event")
	// ErrInvalidSubscription indicates a subscription configuration the bus
	// cannot honor.
	ErrInvalidSubscription = errors.New("rolo: invalid subscription")
	// ErrSubscriptionClosed indicates a subscription that no longer accepts
	// deliveries.
	ErrSubscriptionClosed = errors.New("rolo: subscription closed")
	// ErrEventDropped indicates a non-blocking backpressure drop.
	ErrEventDropped = errors.New("rolo: event dropped due to backpressure")
	// ErrBusClosed indicates a publish or subscribe against a closed bus.
	ErrBusClosed = errors.New("rolo: bus closed")
	// ErrCardNotFound indicates an address-book lookup or mutation against an
	// unknown card id.
	ErrCardNotFound = errors.New("rolo: card not found")
)
