package supervisor

import (
	"context"

	"github.com/skylark-uav/skylark/internal/link"
	"github.com/skylark-uav/skylark/internal/topics"
	"github.com/skylark-uav/skylark/pkg/log"
)

// Runtime bundles the shared resources every task may use: the health topic
// store (read side), the link, and a named logger. Task parameters come from
// the machine-specific config the task factory closed over.
type Runtime struct {
	Topics *topics.Store
	Link   link.Link
	Logger log.Logger
}

// Promotion is a transition request raised by a task. The owning machine
// applies at most one promotion per task per stage.
type Promotion struct {
	Target Stage
	Reason string
}

// Promote is a convenience constructor for promotion requests.
func Promote(target Stage, reason string) *Promotion {
	return &Promotion{Target: target, Reason: reason}
}

// Task is a unit of behavior active only while its owning stage is current.
//
// OnEnter runs when the stage is entered, Tick once per machine tick, OnExit
// when the stage is left or the machine shuts down. OnExit must complete
// promptly: it blocks the owning machine's next transition. Tick must not
// block on link I/O; all link operations are poll-based.
type Task interface {
	Name() string
	OnEnter(ctx context.Context, rt Runtime) error
	Tick(ctx context.Context, rt Runtime) (*Promotion, error)
	OnExit(ctx context.Context) error
}

// Factory creates a fresh task instance. Stage entry instantiates a new task
// from each factory, so no task state survives a stage exit.
type Factory func() Task

// TaskSet maps each stage to the ordered factories for its tasks. Built once
// at machine construction; config-driven overrides replace or extend a
// stage's slice before the machine is created.
type TaskSet map[Stage][]Factory

// FuncTask adapts plain functions into a Task; useful for small watchdogs
// and for tests.
type FuncTask struct {
	TaskName string
	Enter    func(ctx context.Context, rt Runtime) error
	Step     func(ctx context.Context, rt Runtime) (*Promotion, error)
	Exit     func(ctx context.Context) error
}

var _ Task = (*FuncTask)(nil)

func (f *FuncTask) Name() string { return f.TaskName }

func (f *FuncTask) OnEnter(ctx context.Context, rt Runtime) error {
	if f.Enter == nil {
		return nil
	}
	return f.Enter(ctx, rt)
}

func (f *FuncTask) Tick(ctx context.Context, rt Runtime) (*Promotion, error) {
	if f.Step == nil {
		return nil, nil
	}
	return f.Step(ctx, rt)
}

func (f *FuncTask) OnExit(ctx context.Context) error {
	if f.Exit == nil {
		return nil
	}
	return f.Exit(ctx)
}
