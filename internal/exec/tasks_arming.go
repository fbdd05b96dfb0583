package exec

import (
	"context"
	"math"

	"github.com/skylark-uav/skylark/internal/link"
	"github.com/skylark-uav/skylark/internal/supervisor"
	"github.com/skylark-uav/skylark/internal/topics"
)

// armChecks issues the arm command with a bounded retry budget and promotes
// once the vehicle reports armed. Exhausting the budget is a recoverable
// fault.
type armChecks struct {
	cfg *Config

	attempts  int
	waitTicks int
}

func newArmChecks(cfg *Config) *armChecks { return &armChecks{cfg: cfg} }

func (t *armChecks) Name() string { return "ArmChecks" }

func (t *armChecks) OnEnter(ctx context.Context, rt supervisor.Runtime) error { return nil }

func (t *armChecks) Tick(ctx context.Context, rt supervisor.Runtime) (*supervisor.Promotion, error) {
	if e, ok := rt.Topics.Get(topics.KeyArmState); ok {
		if armed, ok := e.Bool(); ok && armed {
			return supervisor.Promote(StageHealthyArmed, "armed confirmed"), nil
		}
	}

	if t.waitTicks > 0 {
		t.waitTicks--
		return nil, nil
	}
	if t.attempts >= t.cfg.ArmMaxAttempts {
		return supervisor.Promote(StageUnhealthy, "arm attempts exhausted"), nil
	}

	t.attempts++
	t.waitTicks = t.cfg.ArmRetryTicks
	err := rt.Link.Send(ctx, link.Command{Type: link.CommandArm, Force: t.cfg.ForceArm})
	if err != nil {
		rt.Logger.Error(err, "Arm command failed", "attempt", t.attempts)
		return nil, nil
	}
	rt.Logger.Info("Arm commanded",
		"attempt", t.attempts, "maxAttempts", t.cfg.ArmMaxAttempts, "force", t.cfg.ForceArm)
	return nil, nil
}

func (t *armChecks) OnExit(ctx context.Context) error { return nil }

// armedIdle idles while armed, waiting for the start-autonomy trigger.
// Edge-triggered on the trigger topic; a disarm report demotes back to
// HealthyUnarmed.
type armedIdle struct {
	seenVersion uint64
}

func newArmedIdle() *armedIdle { return &armedIdle{} }

func (t *armedIdle) Name() string { return "ArmedIdle" }

func (t *armedIdle) OnEnter(ctx context.Context, rt supervisor.Runtime) error {
	t.seenVersion = rt.Topics.Version()
	return nil
}

func (t *armedIdle) Tick(ctx context.Context, rt supervisor.Runtime) (*supervisor.Promotion, error) {
	if e, ok := rt.Topics.Get(topics.KeyArmState); ok {
		if armed, ok := e.Bool(); ok && !armed {
			return supervisor.Promote(StageHealthyUnarmed, "disarmed"), nil
		}
	}

	e, ok := rt.Topics.Since(topics.KeyStartAuto, t.seenVersion)
	if !ok {
		return nil, nil
	}
	t.seenVersion = e.Version
	if v, ok := e.Bool(); ok && v {
		return supervisor.Promote(StageHealthyGuided, "start-autonomy trigger"), nil
	}
	return nil, nil
}

func (t *armedIdle) OnExit(ctx context.Context) error { return nil }

// autoObserver reports the Auto child's snapshot, or false while no child
// exists. Supplied by Exec, which owns the child handle.
type autoObserver func() (supervisor.Snapshot, bool)

// controlArmed supervises the autonomy window. The Auto child is spawned and
// torn down by Exec around this stage; controlArmed watches the child's
// terminal status plus the touchdown telemetry and demotes back to
// HealthyArmed once autonomy has ended on the ground.
type controlArmed struct {
	cfg     *Config
	observe autoObserver
}

func newControlArmed(cfg *Config, observe autoObserver) *controlArmed {
	return &controlArmed{cfg: cfg, observe: observe}
}

func (t *controlArmed) Name() string { return "ControlArmed" }

func (t *controlArmed) OnEnter(ctx context.Context, rt supervisor.Runtime) error { return nil }

func (t *controlArmed) Tick(ctx context.Context, rt supervisor.Runtime) (*supervisor.Promotion, error) {
	snap, ok := t.observe()
	if !ok {
		// Child not spawned yet; Exec reconciles it right after this tick.
		return nil, nil
	}
	if !snap.Terminal {
		return nil, nil
	}
	if t.landed(rt) {
		return supervisor.Promote(StageHealthyArmed, "autonomy ended, vehicle landed"), nil
	}
	return nil, nil
}

// landed reports that the landing has completed: the vehicle disarmed, or it
// sits at ground altitude with no residual climb rate.
func (t *controlArmed) landed(rt supervisor.Runtime) bool {
	if e, ok := rt.Topics.Get(topics.KeyArmState); ok {
		if armed, ok := e.Bool(); ok && !armed {
			return true
		}
	}

	ae, ok := rt.Topics.Get(topics.KeyAltitude)
	if !ok {
		return false
	}
	alt, ok := ae.Float64()
	if !ok || alt > t.cfg.Auto.TouchdownAltitude {
		return false
	}
	ce, ok := rt.Topics.Get(topics.KeyClimbRate)
	if !ok {
		return false
	}
	climb, ok := ce.Float64()
	return ok && math.Abs(climb) <= t.cfg.Auto.TouchdownClimbRate
}

func (t *controlArmed) OnExit(ctx context.Context) error { return nil }
