// Package pipeline runs each inbound event through an ordered list of
// named stages sharing one mutable context, then hands recognized
// commands to the dispatcher. Stage failures are isolated; only a
// failure inside the designated recovery stage aborts a run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/marhthing/pipebot/internal/bus"
)

// Metadata keys stages use to pass derived facts forward.
const (
	MetaCommandName = "command.name"
	MetaCommandArgs = "command.args"
	MetaMediaPath   = "media.path"
)

// Context is the mutable per-event record threaded through all stages.
// It lives for one pipeline run and is never shared across runs, so it
// needs no locking.
type Context struct {
	Event     *bus.InboundEvent
	Responder bus.Responder

	meta        map[string]interface{}
	stopped     bool
	failedStage string
	failure     error
}

func newContext(evt *bus.InboundEvent, rsp bus.Responder) *Context {
	return &Context{Event: evt, Responder: rsp, meta: make(map[string]interface{})}
}

func (c *Context) Set(key string, value interface{}) { c.meta[key] = value }

func (c *Context) Get(key string) (interface{}, bool) {
	v, ok := c.meta[key]
	return v, ok
}

func (c *Context) GetString(key string) string {
	if v, ok := c.meta[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Stop marks the context so no later stage (and no dispatch) runs. The
// current stage still finishes; this is cooperative early exit, not
// preemption.
func (c *Context) Stop() { c.stopped = true }

func (c *Context) Stopped() bool { return c.stopped }

// Failed reports the most recent stage failure, if any stage raised one.
func (c *Context) Failed() (stage string, err error) {
	return c.failedStage, c.failure
}

// Stage is one named unit of per-event processing.
type Stage interface {
	Name() string
	Run(ctx context.Context, pc *Context) error
}

// Recoverer is the designated error-recovery stage. Recover is called
// once per stage failure; returning an error aborts the whole run.
// Recover may call pc.Stop() to suppress the remaining stages instead.
type Recoverer interface {
	Stage
	Recover(ctx context.Context, pc *Context, failedStage string, cause error) error
}

// RecoveryError aborts a pipeline run. It is the only error Handle
// returns: every other failure is contained and logged.
type RecoveryError struct {
	Stage string
	Err   error
}

func (e *RecoveryError) Error() string {
	return fmt.Sprintf("recovery failed after stage %q: %v", e.Stage, e.Err)
}

func (e *RecoveryError) Unwrap() error { return e.Err }

// Dispatcher executes the command a run extracted into its context.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, args []string, evt *bus.InboundEvent, rsp bus.Responder) (bool, error)
}

// Pipeline is an ordered stage list plus the dispatcher that runs after
// the stages. Construct it once at startup; it is safe for overlapping
// Handle calls as long as the stages themselves are.
type Pipeline struct {
	stages     []Stage
	recoverer  Recoverer
	dispatcher Dispatcher
}

func New(dispatcher Dispatcher) *Pipeline {
	return &Pipeline{dispatcher: dispatcher}
}

// Append adds a stage after the existing ones. If the stage implements
// Recoverer it also becomes the designated recovery stage.
func (p *Pipeline) Append(s Stage) {
	p.stages = append(p.stages, s)
	if r, ok := s.(Recoverer); ok {
		p.recoverer = r
	}
}

// Handle runs one inbound event through every stage in order, then
// dispatches the extracted command if the run was not stopped. The
// returned error is nil or a *RecoveryError.
func (p *Pipeline) Handle(ctx context.Context, evt *bus.InboundEvent, rsp bus.Responder) error {
	pc := newContext(evt, rsp)

	for _, stage := range p.stages {
		if pc.stopped {
			break
		}
		err := p.runStage(ctx, stage, pc)
		if err == nil {
			continue
		}
		pc.failedStage = stage.Name()
		pc.failure = err
		if p.recoverer == nil {
			log.Printf("[pipeline] stage %q failed (no recovery stage): %v", stage.Name(), err)
			continue
		}
		if stage == Stage(p.recoverer) {
			return &RecoveryError{Stage: stage.Name(), Err: err}
		}
		if rerr := p.recoverer.Recover(ctx, pc, stage.Name(), err); rerr != nil {
			return &RecoveryError{Stage: stage.Name(), Err: rerr}
		}
	}

	if pc.stopped || p.dispatcher == nil {
		return nil
	}
	name := pc.GetString(MetaCommandName)
	if name == "" {
		return nil
	}
	args, _ := pc.Get(MetaCommandArgs)
	argv, _ := args.([]string)
	if _, err := p.dispatcher.Dispatch(ctx, name, argv, evt, rsp); err != nil {
		// The user already got a failure message; this is for operators.
		log.Printf("[pipeline] %v", err)
	}
	return nil
}

// runStage converts a stage panic into an ordinary stage failure.
func (p *Pipeline) runStage(ctx context.Context, stage Stage, pc *Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return stage.Run(ctx, pc)
}

// HandleBatch processes a delivery batch strictly in order, finishing
// event N (dispatch included) before starting event N+1. A recovery
// failure abandons that event's run but not the rest of the batch; all
// such failures are joined into the returned error.
func (p *Pipeline) HandleBatch(ctx context.Context, events []*bus.InboundEvent, bind func(*bus.InboundEvent) bus.Responder) error {
	var errs []error
	for _, evt := range events {
		var rsp bus.Responder
		if bind != nil {
			rsp = bind(evt)
		}
		if err := p.Handle(ctx, evt, rsp); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
