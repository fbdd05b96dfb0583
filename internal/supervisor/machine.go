package supervisor

import (
	"context"
	"fmt"
	"sync"

	"github.com/looplab/fsm"

	"github.com/skylark-uav/skylark/internal/pkg/metrics"
	"github.com/skylark-uav/skylark/pkg/log"
)

// runningTask pairs a live task instance with its per-stage promotion state.
type runningTask struct {
	task Task

	// requested holds the target this task already asked for in the current
	// stage, if any. A task gets at most one applied promotion per stage.
	requested *Stage
}

// Machine drives one stage graph. Exactly one stage is current at any
// instant; task instances exist only while their stage is current. All
// methods are safe for concurrent use, and a Tick is atomic with respect to
// transitions: no task observes a partially transitioned stage.
type Machine struct {
	name   string
	graph  Graph
	tasks  TaskSet
	rt     Runtime
	logger log.Logger

	mu       sync.Mutex
	fsm      *fsm.FSM
	running  []*runningTask
	started  bool
	shutdown bool
}

// Snapshot is the read-only observability view of a machine.
type Snapshot struct {
	Name     string   `json:"name"`
	Stage    string   `json:"stage"`
	Tasks    []string `json:"tasks"`
	Terminal bool     `json:"terminal"`
}

// New validates the graph and builds a machine. The machine does not run
// until Start.
func New(name string, graph Graph, tasks TaskSet, rt Runtime) (*Machine, error) {
	if err := graph.validate(); err != nil {
		return nil, fmt.Errorf("machine %s: %w", name, err)
	}
	if rt.Logger == nil {
		rt.Logger = log.WithName(name)
	}
	return &Machine{
		name:   name,
		graph:  graph,
		tasks:  tasks,
		rt:     rt,
		logger: rt.Logger,
		fsm:    buildFSM(graph),
	}, nil
}

// Start enters the initial stage, instantiating its tasks.
func (m *Machine) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return fmt.Errorf("machine %s already started", m.name)
	}
	if m.shutdown {
		return fmt.Errorf("machine %s is shut down", m.name)
	}
	m.started = true

	m.logger.Info("Entering initial stage", "stage", string(m.graph.Initial))
	metrics.SetCurrentStage(m.name, "", string(m.graph.Initial))
	return m.enterStageLocked(ctx, m.graph.Initial)
}

// Current returns the current stage.
func (m *Machine) Current() Stage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stage(m.fsm.Current())
}

// Terminal reports whether the current stage is terminal.
func (m *Machine) Terminal() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	def, ok := m.graph.def(Stage(m.fsm.Current()))
	return ok && def.Terminal
}

// Observe returns a snapshot for the status surface.
func (m *Machine) Observe() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.running))
	for _, rt := range m.running {
		names = append(names, rt.task.Name())
	}
	def, _ := m.graph.def(Stage(m.fsm.Current()))
	return Snapshot{
		Name:     m.name,
		Stage:    m.fsm.Current(),
		Tasks:    names,
		Terminal: def.Terminal,
	}
}

// Tick advances all running tasks one step, then applies at most one
// transition. When tasks request different targets in the same tick the
// target with the lowest fault priority wins; equal priorities resolve to
// the first request in task order, which keeps the outcome reproducible for
// a given input ordering.
func (m *Machine) Tick(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started || m.shutdown {
		return nil
	}

	current := Stage(m.fsm.Current())

	type request struct {
		task   string
		target Stage
		reason string
	}
	var requests []request

	for _, r := range m.running {
		p, err := r.task.Tick(ctx, m.rt)
		if err != nil {
			return fmt.Errorf("machine %s: task %s: %w", m.name, r.task.Name(), err)
		}
		if p == nil {
			continue
		}
		if r.requested != nil {
			// Already voted in this stage; a task cannot request two
			// transitions, conflicting or otherwise.
			m.logger.Debug("Ignoring repeat promotion request",
				"task", r.task.Name(), "target", string(p.Target))
			continue
		}
		target := p.Target
		r.requested = &target
		requests = append(requests, request{task: r.task.Name(), target: p.Target, reason: p.Reason})
	}

	if len(requests) == 0 {
		return nil
	}

	// Arbitrate. More than one distinct target in a single tick is a
	// reachable but exceptional condition; fault priority decides.
	chosen := requests[0]
	if len(requests) > 1 {
		for _, req := range requests[1:] {
			if m.faultPriority(req.target) < m.faultPriority(chosen.target) {
				chosen = req
			}
		}
		distinct := map[Stage]bool{}
		for _, req := range requests {
			distinct[req.target] = true
		}
		if len(distinct) > 1 {
			m.logger.Warn("Conflicting promotion requests in one tick; fault priority decides",
				"requests", len(requests), "chosen", string(chosen.target), "task", chosen.task)
		}
	}

	if !m.fsm.Can(eventName(chosen.target)) {
		m.logger.Warn("Promotion request for unreachable stage dropped",
			"from", string(current), "target", string(chosen.target), "task", chosen.task)
		return nil
	}

	return m.transitionLocked(ctx, chosen.target, chosen.reason, false)
}

// ForceTransition performs an externally driven transition, bypassing task
// voting. The stop/enter sequence is identical to a voted transition.
func (m *Machine) ForceTransition(ctx context.Context, target Stage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shutdown {
		return fmt.Errorf("machine %s is shut down", m.name)
	}
	if _, ok := m.graph.def(target); !ok {
		return fmt.Errorf("machine %s: unknown stage %q", m.name, target)
	}
	if !m.started {
		return fmt.Errorf("machine %s not started", m.name)
	}

	return m.transitionLocked(ctx, target, "forced", true)
}

// Shutdown stops the current tasks and releases the machine. Idempotent.
func (m *Machine) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shutdown {
		return nil
	}
	m.shutdown = true

	err := m.stopTasksLocked(ctx)
	m.logger.Info("Machine shut down", "stage", m.fsm.Current())
	return err
}

// transitionLocked commits a transition: stop every current task (their exit
// hooks complete before any new task starts), move the state, start the
// target stage's tasks. Caller holds m.mu.
func (m *Machine) transitionLocked(ctx context.Context, target Stage, reason string, forced bool) error {
	from := m.fsm.Current()

	if err := m.stopTasksLocked(ctx); err != nil {
		m.logger.Error(err, "Task exit hook failed during transition",
			"from", from, "to", string(target))
	}

	if forced {
		m.fsm.SetState(string(target))
	} else {
		if err := m.fsm.Event(ctx, eventName(target)); err != nil {
			return fmt.Errorf("machine %s: transition %s -> %s: %w", m.name, from, target, err)
		}
	}

	// Every committed transition is logged; demotions are never silent.
	m.logger.Info("Stage transition",
		"from", from, "to", string(target), "reason", reason, "forced", forced)
	metrics.SetCurrentStage(m.name, from, string(target))
	metrics.TransitionsTotal.WithLabelValues(m.name, from, string(target), fmt.Sprintf("%t", forced)).Inc()

	return m.enterStageLocked(ctx, target)
}

// enterStageLocked instantiates and starts the target stage's tasks.
func (m *Machine) enterStageLocked(ctx context.Context, target Stage) error {
	factories := m.tasks[target]
	m.running = make([]*runningTask, 0, len(factories))

	for _, factory := range factories {
		t := factory()
		if err := t.OnEnter(ctx, m.rt); err != nil {
			return fmt.Errorf("machine %s: enter %s: task %s: %w", m.name, target, t.Name(), err)
		}
		m.running = append(m.running, &runningTask{task: t})
	}
	return nil
}

// stopTasksLocked runs every running task's exit hook to completion and
// discards the instances. Exit errors are aggregated, not short-circuited:
// every task gets its chance to clean up.
func (m *Machine) stopTasksLocked(ctx context.Context) error {
	var firstErr error
	for _, r := range m.running {
		if err := r.task.OnExit(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("task %s: %w", r.task.Name(), err)
		}
	}
	m.running = nil
	return firstErr
}

// faultPriority looks up a stage's arbitration priority.
func (m *Machine) faultPriority(s Stage) int {
	def, ok := m.graph.def(s)
	if !ok {
		return int(^uint(0) >> 1)
	}
	return def.FaultPriority
}
