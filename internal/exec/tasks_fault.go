package exec

import (
	"context"
	"sync"

	"github.com/skylark-uav/skylark/internal/link"
	"github.com/skylark-uav/skylark/internal/supervisor"
)

// recoveryBudget counts Unhealthy entries across stage generations. Task
// instances are discarded on every stage exit, so the budget lives with Exec
// and is shared into each errorTask instance.
type recoveryBudget struct {
	mu   sync.Mutex
	used int
}

// consume takes one attempt and returns the attempt number.
func (b *recoveryBudget) consume() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.used++
	return b.used
}

// errorTask owns bounded recovery in Unhealthy: hold for the configured
// wait, then send the machine back through the health gate. Once the shared
// budget is exhausted the next entry demotes straight to Fatal.
type errorTask struct {
	cfg    *Config
	budget *recoveryBudget

	attempt   int
	waitTicks int
}

func newErrorTask(cfg *Config, budget *recoveryBudget) *errorTask {
	return &errorTask{cfg: cfg, budget: budget}
}

func (t *errorTask) Name() string { return "ErrorTask" }

func (t *errorTask) OnEnter(ctx context.Context, rt supervisor.Runtime) error {
	t.attempt = t.budget.consume()
	t.waitTicks = t.cfg.RecoveryWaitTicks
	rt.Logger.Warn("Entering recovery",
		"attempt", t.attempt, "maxAttempts", t.cfg.RecoveryMaxAttempts)
	return nil
}

func (t *errorTask) Tick(ctx context.Context, rt supervisor.Runtime) (*supervisor.Promotion, error) {
	if t.attempt > t.cfg.RecoveryMaxAttempts {
		return supervisor.Promote(StageFatal, "recovery budget exhausted"), nil
	}
	if t.waitTicks > 0 {
		t.waitTicks--
		return nil, nil
	}
	if !rt.Link.Connected() {
		// Nothing to retry against; hold until the link returns.
		return nil, nil
	}
	return supervisor.Promote(StageAwaitingHealthy, "retrying health gate"), nil
}

func (t *errorTask) OnExit(ctx context.Context) error { return nil }

// possumTask is terminal safe mode: one best-effort hold command on entry,
// then silence. No autonomy commands leave the vehicle after this point and
// the stage never self-promotes.
type possumTask struct{}

func newPossumTask() *possumTask { return &possumTask{} }

func (t *possumTask) Name() string { return "Possum" }

func (t *possumTask) OnEnter(ctx context.Context, rt supervisor.Runtime) error {
	if err := rt.Link.Send(ctx, link.Command{Type: link.CommandHold}); err != nil {
		rt.Logger.Error(err, "Failsafe hold command failed")
	} else {
		rt.Logger.Warn("Failsafe hold commanded, machine is terminal")
	}
	return nil
}

func (t *possumTask) Tick(ctx context.Context, rt supervisor.Runtime) (*supervisor.Promotion, error) {
	return nil, nil
}

func (t *possumTask) OnExit(ctx context.Context) error { return nil }
