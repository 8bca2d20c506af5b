package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/marhthing/pipebot/internal/bus"
	"github.com/marhthing/pipebot/internal/command"
	"github.com/marhthing/pipebot/internal/state"
	"github.com/marhthing/pipebot/internal/ttlstore"
)

const (
	ownerJID   = "owner@s.whatsapp.net"
	visitorJID = "visitor@s.whatsapp.net"
	groupJID   = "room@g.us"
)

type memoryArchive struct {
	mu     sync.Mutex
	stored []string
	done   chan struct{}
}

func newMemoryArchive() *memoryArchive {
	return &memoryArchive{done: make(chan struct{}, 16)}
}

func (a *memoryArchive) StoreEvent(ctx context.Context, evt *bus.InboundEvent) error {
	a.mu.Lock()
	a.stored = append(a.stored, evt.ID)
	a.mu.Unlock()
	a.done <- struct{}{}
	return nil
}

func (a *memoryArchive) waitOne(t *testing.T) {
	t.Helper()
	select {
	case <-a.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for archive write")
	}
}

type recordingResponder struct {
	mu        sync.Mutex
	replies   []string
	reactions []string
}

func (r *recordingResponder) Reply(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, text)
	return nil
}

func (r *recordingResponder) React(emoji string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reactions = append(r.reactions, emoji)
	return nil
}

func (r *recordingResponder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.replies...)
}

// namedStage is a configurable test stage.
type namedStage struct {
	name string
	run  func(ctx context.Context, pc *Context) error
}

func (s *namedStage) Name() string { return s.name }

func (s *namedStage) Run(ctx context.Context, pc *Context) error { return s.run(ctx, pc) }

type strictRecovery struct {
	RecoveryStage
	err error
}

func (s *strictRecovery) Recover(ctx context.Context, pc *Context, failedStage string, cause error) error {
	return s.err
}

func textEvent(sender, chat, text string) *bus.InboundEvent {
	return &bus.InboundEvent{
		Channel:   "test",
		ID:        "evt-" + text,
		Sender:    sender,
		Chat:      chat,
		Text:      text,
		IsGroup:   strings.HasSuffix(chat, "@g.us"),
		Timestamp: time.Now(),
	}
}

func newHost(t *testing.T, archive Archiver) (*Pipeline, *command.Registry, *state.Permissions) {
	t.Helper()
	st := state.New()
	if err := st.SetOwner(ownerJID); err != nil {
		t.Fatalf("SetOwner failed: %v", err)
	}
	reg := command.NewRegistry()
	disp := command.NewDispatcher(reg, st, ttlstore.New())
	p := New(disp)
	for _, s := range DefaultStages(archive, st, nil, "!") {
		p.Append(s)
	}
	return p, reg, st
}

func TestGrantedSenderCommandExecutes(t *testing.T) {
	p, reg, st := newHost(t, nil)
	ran := false
	if _, err := reg.Register(command.Spec{Name: "ping", Handler: func(ctx context.Context, inv *command.Invocation) error {
		ran = true
		return inv.Responder.Reply("pong")
	}}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := st.Grant(visitorJID, "ping"); err != nil {
		t.Fatalf("Grant failed: %v", err)
	}

	rsp := &recordingResponder{}
	if err := p.Handle(context.Background(), textEvent(visitorJID, visitorJID, "!ping"), rsp); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !ran {
		t.Fatal("handler did not run for a granted sender")
	}
	if got := rsp.all(); len(got) != 1 || got[0] != "pong" {
		t.Errorf("replies = %v, want [pong]", got)
	}
}

func TestStrangerGetsDenialNotSilence(t *testing.T) {
	p, reg, _ := newHost(t, nil)
	ran := false
	if _, err := reg.Register(command.Spec{Name: "wipe", SudoOnly: true, Handler: func(ctx context.Context, inv *command.Invocation) error {
		ran = true
		return nil
	}}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	rsp := &recordingResponder{}
	if err := p.Handle(context.Background(), textEvent(visitorJID, visitorJID, "!wipe"), rsp); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if ran {
		t.Error("handler ran for a denied sender")
	}
	if got := rsp.all(); len(got) != 1 {
		t.Fatalf("replies = %v, want exactly one denial message", got)
	}
}

func TestOwnMessagesAreDropped(t *testing.T) {
	p, reg, _ := newHost(t, nil)
	ran := false
	if _, err := reg.Register(command.Spec{Name: "ping", Handler: func(ctx context.Context, inv *command.Invocation) error {
		ran = true
		return nil
	}}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	evt := textEvent(ownerJID, visitorJID, "!ping")
	evt.FromSelf = true
	if err := p.Handle(context.Background(), evt, &recordingResponder{}); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if ran {
		t.Error("own outgoing message was dispatched")
	}
}

func TestFailingStageDoesNotHaltRun(t *testing.T) {
	archive := newMemoryArchive()
	st := state.New()
	if err := st.SetOwner(ownerJID); err != nil {
		t.Fatalf("SetOwner failed: %v", err)
	}
	reg := command.NewRegistry()
	ran := false
	if _, err := reg.Register(command.Spec{Name: "ping", Handler: func(ctx context.Context, inv *command.Invocation) error {
		ran = true
		return nil
	}}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	p := New(command.NewDispatcher(reg, st, ttlstore.New()))
	p.Append(&CaptureStage{Archive: archive})
	p.Append(&RecoveryStage{})
	p.Append(&namedStage{name: "broken", run: func(ctx context.Context, pc *Context) error {
		return errors.New("indicator backend down")
	}})
	p.Append(&CommandStage{Prefix: "!"})

	if err := p.Handle(context.Background(), textEvent(ownerJID, ownerJID, "!ping"), &recordingResponder{}); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	archive.waitOne(t)
	if !ran {
		t.Error("stages after the failing one did not run")
	}
}

func TestStagePanicIsContained(t *testing.T) {
	p := New(nil)
	p.Append(&RecoveryStage{})
	p.Append(&namedStage{name: "crash", run: func(ctx context.Context, pc *Context) error {
		panic("boom")
	}})
	reached := false
	p.Append(&namedStage{name: "after", run: func(ctx context.Context, pc *Context) error {
		reached = true
		return nil
	}})

	if err := p.Handle(context.Background(), textEvent(ownerJID, ownerJID, "hi"), nil); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !reached {
		t.Error("stage after the panicking one did not run")
	}
}

func TestRecoveryFailureAbortsRun(t *testing.T) {
	p := New(nil)
	p.Append(&strictRecovery{err: errors.New("recovery store unreachable")})
	p.Append(&namedStage{name: "broken", run: func(ctx context.Context, pc *Context) error {
		return errors.New("boom")
	}})
	reached := false
	p.Append(&namedStage{name: "after", run: func(ctx context.Context, pc *Context) error {
		reached = true
		return nil
	}})

	err := p.Handle(context.Background(), textEvent(ownerJID, ownerJID, "hi"), nil)
	var rerr *RecoveryError
	if !errors.As(err, &rerr) {
		t.Fatalf("err = %v, want *RecoveryError", err)
	}
	if rerr.Stage != "broken" {
		t.Errorf("RecoveryError.Stage = %q, want %q", rerr.Stage, "broken")
	}
	if reached {
		t.Error("stage ran after an aborted recovery")
	}
}

func TestGameMoveIsConsumedBeforeDispatch(t *testing.T) {
	p, reg, st := newHost(t, nil)
	ran := false
	if _, err := reg.Register(command.Spec{Name: "5", Handler: func(ctx context.Context, inv *command.Invocation) error {
		ran = true
		return nil
	}}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := st.StartGame(groupJID, "tictactoe", []string{visitorJID}); err != nil {
		t.Fatalf("StartGame failed: %v", err)
	}

	rsp := &recordingResponder{}
	if err := p.Handle(context.Background(), textEvent(visitorJID, groupJID, "5"), rsp); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if ran {
		t.Error("game move leaked into command dispatch")
	}
	got := rsp.all()
	if len(got) != 1 || !strings.Contains(got[0], "X") {
		t.Errorf("replies = %v, want a rendered board", got)
	}
}

func TestQuitEndsActiveGame(t *testing.T) {
	p, _, st := newHost(t, nil)
	if err := st.StartGame(groupJID, "tictactoe", []string{visitorJID}); err != nil {
		t.Fatalf("StartGame failed: %v", err)
	}

	if err := p.Handle(context.Background(), textEvent(visitorJID, groupJID, "quit"), &recordingResponder{}); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if _, active := st.GameAt(groupJID); active {
		t.Error("game still active after quit")
	}
}

func TestBatchProcessesInOrder(t *testing.T) {
	p, reg, st := newHost(t, nil)
	var order []string
	if _, err := reg.Register(command.Spec{Name: "mark", Handler: func(ctx context.Context, inv *command.Invocation) error {
		order = append(order, strings.Join(inv.Args, " "))
		return nil
	}}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := st.Grant(visitorJID, "mark"); err != nil {
		t.Fatalf("Grant failed: %v", err)
	}

	batch := []*bus.InboundEvent{
		textEvent(visitorJID, visitorJID, "!mark first"),
		textEvent(visitorJID, visitorJID, "!mark second"),
		textEvent(visitorJID, visitorJID, "!mark third"),
	}
	rsp := &recordingResponder{}
	if err := p.HandleBatch(context.Background(), batch, func(*bus.InboundEvent) bus.Responder { return rsp }); err != nil {
		t.Fatalf("HandleBatch failed: %v", err)
	}
	want := []string{"first", "second", "third"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}
