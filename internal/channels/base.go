// Package channels holds the transport adapters that feed inbound
// events onto the message bus and deliver outbound messages back to
// their networks.
package channels

import (
	"context"
	"sync"
	"time"

	"github.com/marhthing/pipebot/internal/bus"
)

// Channel is the interface all transport adapters must implement.
type Channel interface {
	// Name returns the unique identifier for this channel.
	Name() string

	// Start begins listening for messages on this channel.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the channel.
	Stop() error

	// Send delivers an outbound message through this channel.
	Send(msg bus.OutboundMessage) error

	// IsRunning returns true if the channel is currently active.
	IsRunning() bool
}

// BaseChannel provides common functionality for all channel implementations.
type BaseChannel struct {
	name    string
	bus     *bus.MessageBus
	running bool
	mu      sync.RWMutex
}

// NewBaseChannel creates a new BaseChannel with the given parameters.
func NewBaseChannel(name string, msgBus *bus.MessageBus) BaseChannel {
	return BaseChannel{
		name: name,
		bus:  msgBus,
	}
}

// Name returns the channel's unique identifier.
func (c *BaseChannel) Name() string {
	return c.name
}

// IsRunning returns true if the channel is currently active.
func (c *BaseChannel) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

// setRunning sets the running state of the channel.
func (c *BaseChannel) setRunning(running bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = running
}

// publishInbound publishes a received message to the message bus.
// Beyond a transport's configured allow-list, channels do not gate
// senders; everything published here reaches the archive and the
// access filter decides the rest.
func (c *BaseChannel) publishInbound(evt bus.InboundEvent) {
	evt.Channel = c.name
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	c.bus.PublishInbound(evt)
}

// getBus returns the message bus for use by derived channels.
func (c *BaseChannel) getBus() *bus.MessageBus {
	return c.bus
}
