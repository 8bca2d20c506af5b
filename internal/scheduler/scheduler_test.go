package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/marhthing/pipebot/internal/bus"
)

func newTestScheduler(t *testing.T) (*Scheduler, *bus.MessageBus) {
	t.Helper()
	msgBus := bus.NewMessageBus(10)
	s := NewScheduler(msgBus, filepath.Join(t.TempDir(), "tasks.json"))
	return s, msgBus
}

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		once    bool
		wantErr bool
	}{
		{"@every 5m", 5 * time.Minute, false, false},
		{"@after 90s", 90 * time.Second, true, false},
		{"10m", 10 * time.Minute, false, false},
		{"@every nope", 0, false, true},
		{"@every 100ms", 0, false, true},
		{"", 0, false, true},
	}
	for _, tt := range tests {
		d, once, err := parseSchedule(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseSchedule(%q) accepted", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseSchedule(%q) failed: %v", tt.in, err)
			continue
		}
		if d != tt.want || once != tt.once {
			t.Errorf("parseSchedule(%q) = (%v, %v), want (%v, %v)", tt.in, d, once, tt.want, tt.once)
		}
	}
}

func TestAddListRemove(t *testing.T) {
	s, _ := newTestScheduler(t)

	id, err := s.AddTask("@every 1h", "drink water", "telegram", "123@telegram")
	if err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}
	if got := s.ListTasks(); len(got) != 1 || got[0].ID != id {
		t.Fatalf("ListTasks = %v", got)
	}

	if err := s.RemoveTask(id); err != nil {
		t.Fatalf("RemoveTask failed: %v", err)
	}
	if got := s.ListTasks(); len(got) != 0 {
		t.Errorf("ListTasks after remove = %v", got)
	}
	if err := s.RemoveTask(id); err == nil {
		t.Error("second RemoveTask succeeded")
	}
}

func TestAddTaskRejectsBadSchedule(t *testing.T) {
	s, _ := newTestScheduler(t)
	if _, err := s.AddTask("every day at noon", "hi", "telegram", "1@telegram"); err == nil {
		t.Error("invalid schedule accepted")
	}
}

func TestTasksSurviveRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	msgBus := bus.NewMessageBus(10)

	s1 := NewScheduler(msgBus, path)
	id, err := s1.AddTask("@every 1h", "stretch", "telegram", "123@telegram")
	if err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}

	s2 := NewScheduler(msgBus, path)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s2.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s2.Stop()

	tasks := s2.ListTasks()
	if len(tasks) != 1 || tasks[0].ID != id || tasks[0].Message != "stretch" {
		t.Errorf("restored tasks = %v", tasks)
	}
}

func TestOneShotTaskFiresAndRemovesItself(t *testing.T) {
	s, msgBus := newTestScheduler(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	if _, err := s.AddTask("@after 1s", "ding", "telegram", "123@telegram"); err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}

	got, err := msgBus.ConsumeOutboundWithTimeout(ctx, 5*time.Second)
	if err != nil {
		t.Fatalf("task did not fire: %v", err)
	}
	if got.Content != "ding" || got.ChatID != "123@telegram" {
		t.Errorf("fired message = %+v", got)
	}

	// Self-removal is asynchronous; poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(s.ListTasks()) == 0 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Error("one-shot task still registered after firing")
}
