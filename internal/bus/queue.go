package bus

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTimeout is returned when an event receive operation times out.
var ErrTimeout = errors.New("timeout waiting for event")

// MessageBus connects transport channels to the pipeline: channels publish
// inbound events, the gateway consumes them in delivery order, and replies
// flow back out through outbound subscribers.
type MessageBus struct {
	inbound  chan InboundEvent
	outbound chan OutboundMessage

	subscribers map[string][]func(OutboundMessage)
	mu          sync.RWMutex

	closed chan struct{}
}

// NewMessageBus creates a new MessageBus with the specified buffer size
// for both inbound and outbound channels.
func NewMessageBus(bufferSize int) *MessageBus {
	return &MessageBus{
		inbound:     make(chan InboundEvent, bufferSize),
		outbound:    make(chan OutboundMessage, bufferSize),
		subscribers: make(map[string][]func(OutboundMessage)),
		closed:      make(chan struct{}),
	}
}

// PublishInbound sends an event to the inbound channel.
func (b *MessageBus) PublishInbound(ev InboundEvent) {
	select {
	case <-b.closed:
		return
	case b.inbound <- ev:
	}
}

// ConsumeInbound blocks until an inbound event is available.
func (b *MessageBus) ConsumeInbound() InboundEvent {
	return <-b.inbound
}

// ConsumeInboundWithTimeout waits for an inbound event with a timeout.
// Returns ErrTimeout if no event is received within the specified duration.
func (b *MessageBus) ConsumeInboundWithTimeout(ctx context.Context, timeout time.Duration) (InboundEvent, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ev := <-b.inbound:
		return ev, nil
	case <-timer.C:
		return InboundEvent{}, ErrTimeout
	case <-ctx.Done():
		return InboundEvent{}, ctx.Err()
	}
}

// PublishOutbound sends a message to the outbound channel.
func (b *MessageBus) PublishOutbound(msg OutboundMessage) {
	select {
	case <-b.closed:
		return
	case b.outbound <- msg:
	}
}

// ConsumeOutbound blocks until an outbound message is available.
func (b *MessageBus) ConsumeOutbound() OutboundMessage {
	return <-b.outbound
}

// ConsumeOutboundWithTimeout waits for an outbound message with a timeout.
// Returns ErrTimeout if no message is received within the specified duration.
func (b *MessageBus) ConsumeOutboundWithTimeout(ctx context.Context, timeout time.Duration) (OutboundMessage, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-b.outbound:
		return msg, nil
	case <-timer.C:
		return OutboundMessage{}, ErrTimeout
	case <-ctx.Done():
		return OutboundMessage{}, ctx.Err()
	}
}

// SubscribeOutbound registers a callback function to receive outbound
// messages for the specified channel.
func (b *MessageBus) SubscribeOutbound(channel string, callback func(OutboundMessage)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[channel] = append(b.subscribers[channel], callback)
}

// DispatchOutbound runs a loop that dispatches outbound messages to
// registered subscribers. It should be called once, in its own goroutine,
// and runs until the context is cancelled.
func (b *MessageBus) DispatchOutbound(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.closed:
			return
		case msg := <-b.outbound:
			b.mu.RLock()
			callbacks := b.subscribers[msg.Channel]
			b.mu.RUnlock()

			for _, cb := range callbacks {
				go func(callback func(OutboundMessage)) {
					defer func() {
						recover() // subscriber panics must not kill the dispatcher
					}()
					callback(msg)
				}(cb)
			}
		}
	}
}

// InboundSize returns the current number of events in the inbound channel.
func (b *MessageBus) InboundSize() int {
	return len(b.inbound)
}

// OutboundSize returns the current number of messages in the outbound channel.
func (b *MessageBus) OutboundSize() int {
	return len(b.outbound)
}

// Close closes the message bus, stopping all dispatch operations.
func (b *MessageBus) Close() {
	close(b.closed)
}
