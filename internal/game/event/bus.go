package event

import (
	"errors"
	"time"
)

// ErrBusFull is returned when an enqueue cannot complete within its timeout.
var ErrBusFull = errors.New("event bus full")

// ErrBusClosed is returned when publishing to a closed bus.
var ErrBusClosed = errors.New("event bus closed")

// InboundBus is the bounded multi-producer single-consumer queue feeding the
// engine. Producers are transports; the sole consumer is the engine tick.
type InboundBus struct {
	ch     chan InboundEvent
	closed chan struct{}
}

// NewInboundBus creates a bus with the given capacity.
//
// Precondition: capacity must be >= 1.
func NewInboundBus(capacity int) *InboundBus {
	return &InboundBus{
		ch:     make(chan InboundEvent, capacity),
		closed: make(chan struct{}),
	}
}

// Publish enqueues ev, waiting up to timeout for space.
//
// Postcondition: Returns nil on success, ErrBusFull if the bus stayed full
// for the whole timeout, or ErrBusClosed after Close.
func (b *InboundBus) Publish(ev InboundEvent, timeout time.Duration) error {
	select {
	case <-b.closed:
		return ErrBusClosed
	default:
	}
	if timeout <= 0 {
		select {
		case b.ch <- ev:
			return nil
		case <-b.closed:
			return ErrBusClosed
		default:
			return ErrBusFull
		}
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case b.ch <- ev:
		return nil
	case <-b.closed:
		return ErrBusClosed
	case <-t.C:
		return ErrBusFull
	}
}

// Receive returns the consumer channel. Only the engine reads it.
func (b *InboundBus) Receive() <-chan InboundEvent {
	return b.ch
}

// Len returns the current queue depth.
func (b *InboundBus) Len() int {
	return len(b.ch)
}

// Close marks the bus closed for producers. Queued events stay readable.
func (b *InboundBus) Close() {
	select {
	case <-b.closed:
	default:
		close(b.closed)
	}
}

// OutboundBus carries engine events to the outbound router. The engine is
// the only producer, so enqueueing blocks rather than failing; the router
// enforces per-session backpressure downstream.
type OutboundBus struct {
	ch chan OutboundEvent
}

// NewOutboundBus creates a bus with the given capacity.
//
// Precondition: capacity must be >= 1.
func NewOutboundBus(capacity int) *OutboundBus {
	return &OutboundBus{ch: make(chan OutboundEvent, capacity)}
}

// Publish enqueues ev, blocking until space is available.
func (b *OutboundBus) Publish(ev OutboundEvent) {
	b.ch <- ev
}

// Receive returns the consumer channel. Only the router reads it.
func (b *OutboundBus) Receive() <-chan OutboundEvent {
	return b.ch
}

// Len returns the current queue depth.
func (b *OutboundBus) Len() int {
	return len(b.ch)
}
