// Package scheduler provides a best-effort timer scheduler for
// recurring and one-shot reminder messages. Tasks are persisted to
// ~/.pipebot/tasks.json and survive restarts.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/marhthing/pipebot/internal/bus"
)

// Task represents a single scheduled message.
type Task struct {
	ID       string `json:"id"`
	Schedule string `json:"schedule"` // "@every 5m" for recurring, "@after 5m" for one-shot
	Message  string `json:"message"`
	Channel  string `json:"channel"`
	ChatID   string `json:"chat_id"`
}

// taskEntry wraps a Task with runtime state for the scheduler.
type taskEntry struct {
	Task   Task
	cancel context.CancelFunc
}

// Scheduler fires stored tasks onto the message bus when their timers
// elapse. Best effort: no catch-up for fire times missed while the
// process was down.
type Scheduler struct {
	bus *bus.MessageBus

	mu      sync.RWMutex
	entries map[string]*taskEntry
	nextID  int

	persistPath string
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewScheduler creates a new Scheduler persisting to path.
func NewScheduler(msgBus *bus.MessageBus, path string) *Scheduler {
	return &Scheduler{
		bus:         msgBus,
		entries:     make(map[string]*taskEntry),
		nextID:      1,
		persistPath: path,
	}
}

// Start loads persisted tasks and begins all timers.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load scheduled tasks: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, entry := range s.entries {
		s.startTaskLocked(entry)
	}
	return nil
}

// Stop cancels all running timers and the scheduler context.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

// AddTask registers a new task and starts its timer. Returns the task ID.
func (s *Scheduler) AddTask(schedule, message, channel, chatID string) (string, error) {
	if _, _, err := parseSchedule(schedule); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := strconv.Itoa(s.nextID)
	s.nextID++

	entry := &taskEntry{
		Task: Task{
			ID:       id,
			Schedule: schedule,
			Message:  message,
			Channel:  channel,
			ChatID:   chatID,
		},
	}
	s.entries[id] = entry

	if s.ctx != nil {
		s.startTaskLocked(entry)
	}

	if err := s.saveLocked(); err != nil {
		return id, fmt.Errorf("task added but failed to persist: %w", err)
	}
	return id, nil
}

// RemoveTask stops and removes a task by ID.
func (s *Scheduler) RemoveTask(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("task %q not found", id)
	}

	if entry.cancel != nil {
		entry.cancel()
	}
	delete(s.entries, id)

	return s.saveLocked()
}

// ListTasks returns all registered tasks.
func (s *Scheduler) ListTasks() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]Task, 0, len(s.entries))
	for _, entry := range s.entries {
		tasks = append(tasks, entry.Task)
	}
	return tasks
}

// startTaskLocked launches the timer goroutine for one task entry.
// Caller must hold at least an RLock on s.mu.
func (s *Scheduler) startTaskLocked(entry *taskEntry) {
	taskCtx, taskCancel := context.WithCancel(s.ctx)
	entry.cancel = taskCancel

	go s.runTask(taskCtx, entry.Task)
}

func (s *Scheduler) runTask(ctx context.Context, task Task) {
	interval, once, err := parseSchedule(task.Schedule)
	if err != nil {
		return // validated in AddTask
	}

	if once {
		timer := time.NewTimer(interval)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
			s.fire(task)
			// One-shot tasks remove themselves after firing.
			_ = s.RemoveTask(task.ID)
		}
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fire(task)
		}
	}
}

func (s *Scheduler) fire(task Task) {
	s.bus.PublishOutbound(bus.OutboundMessage{
		Channel: task.Channel,
		ChatID:  task.ChatID,
		Content: task.Message,
	})
}

// parseSchedule understands "@every <duration>" for recurring tasks and
// "@after <duration>" for one-shot tasks. A bare duration is treated as
// recurring.
func parseSchedule(schedule string) (time.Duration, bool, error) {
	schedule = strings.TrimSpace(schedule)
	once := false
	switch {
	case strings.HasPrefix(schedule, "@every "):
		schedule = strings.TrimPrefix(schedule, "@every ")
	case strings.HasPrefix(schedule, "@after "):
		schedule = strings.TrimPrefix(schedule, "@after ")
		once = true
	}

	d, err := time.ParseDuration(strings.TrimSpace(schedule))
	if err != nil {
		return 0, false, fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	if d < time.Second {
		return 0, false, fmt.Errorf("schedule interval %s too short, minimum 1s", d)
	}
	return d, once, nil
}

// --- persistence ---

type persistedState struct {
	Tasks  []Task `json:"tasks"`
	NextID int    `json:"next_id"`
}

func (s *Scheduler) saveLocked() error {
	state := persistedState{
		Tasks:  make([]Task, 0, len(s.entries)),
		NextID: s.nextID,
	}
	for _, e := range s.entries {
		state.Tasks = append(state.Tasks, e.Task)
	}

	if err := os.MkdirAll(filepath.Dir(s.persistPath), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.persistPath, data, 0o600)
}

func (s *Scheduler) load() error {
	data, err := os.ReadFile(s.persistPath)
	if err != nil {
		return err
	}

	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}

	for _, task := range state.Tasks {
		s.entries[task.ID] = &taskEntry{Task: task}
	}
	if state.NextID > s.nextID {
		s.nextID = state.NextID
	}
	return nil
}
