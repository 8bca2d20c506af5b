package channels

import (
	"context"
	"testing"

	"github.com/marhthing/pipebot/internal/bus"
	"github.com/marhthing/pipebot/internal/config"
)

type fakeChannel struct {
	BaseChannel
	started bool
	stopped bool
	sent    []bus.OutboundMessage
}

func newFakeChannel(name string, msgBus *bus.MessageBus) *fakeChannel {
	return &fakeChannel{BaseChannel: NewBaseChannel(name, msgBus)}
}

func (c *fakeChannel) Start(ctx context.Context) error {
	c.started = true
	c.setRunning(true)
	return nil
}

func (c *fakeChannel) Stop() error {
	c.stopped = true
	c.setRunning(false)
	return nil
}

func (c *fakeChannel) Send(msg bus.OutboundMessage) error {
	c.sent = append(c.sent, msg)
	return nil
}

func newManager() *Manager {
	return NewManager(config.DefaultConfig(), bus.NewMessageBus(8))
}

func TestRegisterAndLifecycle(t *testing.T) {
	m := newManager()
	ch := newFakeChannel("fake", bus.NewMessageBus(8))
	if err := m.RegisterChannel(ch); err != nil {
		t.Fatalf("RegisterChannel failed: %v", err)
	}

	if err := m.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll failed: %v", err)
	}
	if !ch.started {
		t.Error("channel not started")
	}
	if got := m.RunningChannels(); len(got) != 1 || got[0] != "fake" {
		t.Errorf("RunningChannels = %v, want [fake]", got)
	}

	if err := m.StopAll(); err != nil {
		t.Fatalf("StopAll failed: %v", err)
	}
	if !ch.stopped {
		t.Error("channel not stopped")
	}
	if got := m.RunningChannels(); len(got) != 0 {
		t.Errorf("RunningChannels after stop = %v, want none", got)
	}
}

func TestRegisterDuplicateFails(t *testing.T) {
	m := newManager()
	if err := m.RegisterChannel(newFakeChannel("fake", bus.NewMessageBus(8))); err != nil {
		t.Fatalf("RegisterChannel failed: %v", err)
	}
	if err := m.RegisterChannel(newFakeChannel("fake", bus.NewMessageBus(8))); err == nil {
		t.Error("duplicate channel registration accepted")
	}
}

func TestUnregisterRunningChannelFails(t *testing.T) {
	m := newManager()
	ch := newFakeChannel("fake", bus.NewMessageBus(8))
	if err := m.RegisterChannel(ch); err != nil {
		t.Fatalf("RegisterChannel failed: %v", err)
	}
	if err := m.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll failed: %v", err)
	}

	if err := m.UnregisterChannel("fake"); err == nil {
		t.Error("unregistered a running channel")
	}
	if err := ch.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := m.UnregisterChannel("fake"); err != nil {
		t.Errorf("UnregisterChannel after stop failed: %v", err)
	}
	if m.ChannelCount() != 0 {
		t.Errorf("ChannelCount = %d, want 0", m.ChannelCount())
	}
}

func TestInitializeRequiresTelegramToken(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Channels.Telegram.Enabled = true
	m := NewManager(cfg, bus.NewMessageBus(8))
	if err := m.Initialize(); err == nil {
		t.Error("Initialize accepted an enabled telegram channel with no token")
	}
}
