package exec

import (
	"context"
	"sync"

	"github.com/skylark-uav/skylark/internal/auto"
	"github.com/skylark-uav/skylark/internal/link"
	"github.com/skylark-uav/skylark/internal/supervisor"
	"github.com/skylark-uav/skylark/internal/topics"
	"github.com/skylark-uav/skylark/pkg/log"
)

// MachineName is the machine label used in logs, metrics and status.
const MachineName = "exec"

// Exec is the outer supervisor. It drives the stage machine, runs the
// telemetry ingestion path, and holds the only handle to the Auto child:
// spawned on entering HealthyGuided, shut down synchronously on leaving, and
// always a fresh instance on re-entry.
type Exec struct {
	cfg     *Config
	rt      supervisor.Runtime
	machine *supervisor.Machine
	ingest  *Ingestor
	logger  log.Logger
	budget  recoveryBudget

	childMu sync.Mutex
	child   *supervisor.Machine
}

// Status is the read-only observability snapshot of the whole core.
type Status struct {
	Exec   supervisor.Snapshot  `json:"exec"`
	Auto   *supervisor.Snapshot `json:"auto,omitempty"`
	Topics []topics.Entry       `json:"topics"`
}

// New builds the Exec supervisor over the given topic store and link.
func New(cfg *Config, store *topics.Store, l link.Link) (*Exec, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	if cfg.Auto == nil {
		cfg.Auto = auto.NewConfig()
	}

	logger := log.WithName(MachineName)
	e := &Exec{
		cfg:    cfg,
		logger: logger,
		ingest: NewIngestor(l, store, logger.WithName("ingest")),
		rt:     supervisor.Runtime{Topics: store, Link: l, Logger: logger},
	}

	defaults := supervisor.TaskSet{
		StageAwaitConnection: {
			func() supervisor.Task { return newConnectionWatchdog() },
		},
		StageAwaitingData: {
			func() supervisor.Task { return newRequestStream(cfg) },
			func() supervisor.Task { return newHeartbeat(cfg, true) },
		},
		StageAwaitingHealthy: {
			func() supervisor.Task { return newHeartbeat(cfg, false) },
			func() supervisor.Task { return newHealthChecks(cfg) },
		},
		StageAwaitingLock: {
			func() supervisor.Task { return newHeartbeat(cfg, false) },
			func() supervisor.Task { return newHealthMonitor(cfg) },
			func() supervisor.Task { return newLockChecks(cfg) },
		},
		StageHealthyUnarmed: {
			func() supervisor.Task { return newHeartbeat(cfg, false) },
			func() supervisor.Task { return newHealthMonitor(cfg) },
			func() supervisor.Task { return newArmChecks(cfg) },
		},
		StageHealthyArmed: {
			func() supervisor.Task { return newHeartbeat(cfg, false) },
			func() supervisor.Task { return newHealthMonitor(cfg) },
			func() supervisor.Task { return newArmedIdle() },
		},
		StageHealthyGuided: {
			func() supervisor.Task { return newHeartbeat(cfg, false) },
			func() supervisor.Task { return newHealthMonitor(cfg) },
			func() supervisor.Task { return newControlArmed(cfg, e.observeChild) },
		},
		StageUnhealthy: {
			func() supervisor.Task { return newHeartbeat(cfg, false) },
			func() supervisor.Task { return newErrorTask(cfg, &e.budget) },
		},
		StageFatal: {
			func() supervisor.Task { return newPossumTask() },
		},
	}

	m, err := supervisor.New(MachineName, Graph(), cfg.resolve(defaults), e.rt)
	if err != nil {
		return nil, err
	}
	e.machine = m
	return e, nil
}

// Start enters the initial stage.
func (e *Exec) Start(ctx context.Context) error {
	return e.machine.Start(ctx)
}

// Tick runs one Exec cycle: drain inbound telemetry into topics, advance the
// stage machine, then reconcile the Auto child against the resulting stage.
func (e *Exec) Tick(ctx context.Context) error {
	e.ingest.Drain()
	err := e.machine.Tick(ctx)
	e.reconcileChild(ctx)
	return err
}

// TickAuto advances the Auto child one cycle, if one exists. A child tick
// error is an unrecoverable autonomy fault: Exec forces itself to Unhealthy,
// which tears the child down.
func (e *Exec) TickAuto(ctx context.Context) error {
	e.childMu.Lock()
	child := e.child
	e.childMu.Unlock()
	if child == nil {
		return nil
	}

	err := child.Tick(ctx)
	if err == nil {
		return nil
	}
	e.logger.Error(err, "Auto tick failed, demoting")
	if ferr := e.machine.ForceTransition(ctx, StageUnhealthy); ferr != nil {
		e.logger.Error(ferr, "Demotion after auto failure failed")
	}
	e.reconcileChild(ctx)
	return err
}

// Current returns Exec's current stage.
func (e *Exec) Current() supervisor.Stage {
	return e.machine.Current()
}

// ForceTransition drives an external transition and reconciles the child.
func (e *Exec) ForceTransition(ctx context.Context, target supervisor.Stage) error {
	err := e.machine.ForceTransition(ctx, target)
	e.reconcileChild(ctx)
	return err
}

// AutoStage returns the Auto child's current stage, or false when no child
// exists.
func (e *Exec) AutoStage() (supervisor.Stage, bool) {
	e.childMu.Lock()
	defer e.childMu.Unlock()
	if e.child == nil {
		return "", false
	}
	return e.child.Current(), true
}

// Status returns the read-only snapshot for the observability surface.
func (e *Exec) Status() Status {
	st := Status{
		Exec:   e.machine.Observe(),
		Topics: e.rt.Topics.Snapshot(),
	}
	e.childMu.Lock()
	if e.child != nil {
		snap := e.child.Observe()
		st.Auto = &snap
	}
	e.childMu.Unlock()
	return st
}

// Shutdown tears down the child, then the machine. Idempotent.
func (e *Exec) Shutdown(ctx context.Context) error {
	e.childMu.Lock()
	if e.child != nil {
		if err := e.child.Shutdown(ctx); err != nil {
			e.logger.Error(err, "Auto shutdown failed")
		}
		e.child = nil
	}
	e.childMu.Unlock()
	return e.machine.Shutdown(ctx)
}

// observeChild is the accessor handed to ControlArmed. Called from inside a
// machine tick, so it must not touch the machine itself.
func (e *Exec) observeChild() (supervisor.Snapshot, bool) {
	e.childMu.Lock()
	defer e.childMu.Unlock()
	if e.child == nil {
		return supervisor.Snapshot{}, false
	}
	return e.child.Observe(), true
}

// reconcileChild aligns the Auto child with the current stage: spawn a fresh
// machine on HealthyGuided, shut down and drop on anything else. Shutdown
// completes before the handle is dropped, so two Auto generations can never
// issue commands concurrently.
func (e *Exec) reconcileChild(ctx context.Context) {
	current := e.machine.Current()

	e.childMu.Lock()
	defer e.childMu.Unlock()

	if current == StageHealthyGuided && e.child == nil {
		rt := e.rt
		rt.Logger = log.WithName(auto.MachineName)
		child, err := auto.New(e.cfg.Auto, rt)
		if err != nil {
			e.logger.Error(err, "Auto construction failed")
			return
		}
		if err := child.Start(ctx); err != nil {
			e.logger.Error(err, "Auto start failed")
			return
		}
		e.child = child
		e.logger.Info("Auto machine spawned")
		return
	}

	if current != StageHealthyGuided && e.child != nil {
		if err := e.child.Shutdown(ctx); err != nil {
			e.logger.Error(err, "Auto shutdown failed")
		}
		e.child = nil
		e.logger.Info("Auto machine torn down")
	}
}
