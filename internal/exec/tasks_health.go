package exec

import (
	"context"

	"github.com/skylark-uav/skylark/internal/supervisor"
	"github.com/skylark-uav/skylark/internal/topics"
)

// ekfHealthBits are the estimator flags required for basic health: attitude,
// horizontal velocity and absolute vertical position.
const ekfHealthBits = topics.EkfAttitude | topics.EkfVelocityHoriz | topics.EkfPosVertAbs

// ekfLockBits are the additional horizontal position flags of which at least
// one must be set for a positioning lock.
const ekfLockBits = topics.EkfPosHorizRel | topics.EkfPosHorizAbs

// hardFailure reports a failure that warrants immediate demotion: link loss,
// battery below the floor, or comm errors past the ceiling. An estimator
// still converging is not a hard failure; checkEkf covers regression for the
// stages past the health gate.
func hardFailure(cfg *Config, rt supervisor.Runtime) (string, bool) {
	if !rt.Link.Connected() {
		return "link down", true
	}
	if e, ok := rt.Topics.Get(topics.KeyBatteryLevel); ok {
		if v, ok := e.Float64(); ok && v >= 0 && v <= cfg.BatteryMinPercent {
			return "battery below floor", true
		}
	}
	if e, ok := rt.Topics.Get(topics.KeyCommErrors); ok {
		if v, ok := e.Float64(); ok && v >= cfg.CommErrorsMax {
			return "comm errors past ceiling", true
		}
	}
	return "", false
}

// healthGatePassed reports whether every health gate has been observed and
// passes: battery reported healthy (or unreported), comm errors under the
// ceiling, and the estimator health flags all set.
func healthGatePassed(cfg *Config, rt supervisor.Runtime) bool {
	be, ok := rt.Topics.Get(topics.KeyBatteryLevel)
	if !ok {
		return false
	}
	if v, ok := be.Float64(); !ok || (v >= 0 && v <= cfg.BatteryMinPercent) {
		return false
	}
	if e, ok := rt.Topics.Get(topics.KeyCommErrors); ok {
		if v, ok := e.Float64(); ok && v >= cfg.CommErrorsMax {
			return false
		}
	}
	ee, ok := rt.Topics.Get(topics.KeyEkfFlags)
	if !ok {
		return false
	}
	flags, ok := ee.Uint32()
	return ok && flags&ekfHealthBits == ekfHealthBits
}

// healthChecks gates AwaitingHealthy: promotes when every health topic
// passes, demotes on a hard failure.
type healthChecks struct {
	cfg *Config
}

func newHealthChecks(cfg *Config) *healthChecks { return &healthChecks{cfg: cfg} }

func (t *healthChecks) Name() string { return "HealthChecks" }

func (t *healthChecks) OnEnter(ctx context.Context, rt supervisor.Runtime) error { return nil }

func (t *healthChecks) Tick(ctx context.Context, rt supervisor.Runtime) (*supervisor.Promotion, error) {
	if reason, failed := hardFailure(t.cfg, rt); failed {
		return supervisor.Promote(StageUnhealthy, reason), nil
	}
	if healthGatePassed(t.cfg, rt) {
		return supervisor.Promote(StageAwaitingLock, "health gates passed"), nil
	}
	return nil, nil
}

func (t *healthChecks) OnExit(ctx context.Context) error { return nil }

// healthMonitor runs underneath every stage past the health gate and demotes
// to Unhealthy on a hard failure or an estimator regression. It makes the
// implicit fault edges of the stage graph real without special-casing them
// in the engine.
type healthMonitor struct {
	cfg *Config
}

func newHealthMonitor(cfg *Config) *healthMonitor { return &healthMonitor{cfg: cfg} }

func (t *healthMonitor) Name() string { return "HealthMonitor" }

func (t *healthMonitor) OnEnter(ctx context.Context, rt supervisor.Runtime) error { return nil }

func (t *healthMonitor) Tick(ctx context.Context, rt supervisor.Runtime) (*supervisor.Promotion, error) {
	if reason, failed := hardFailure(t.cfg, rt); failed {
		return supervisor.Promote(StageUnhealthy, reason), nil
	}
	if e, ok := rt.Topics.Get(topics.KeyEkfFlags); ok {
		if flags, ok := e.Uint32(); ok && flags&ekfHealthBits != ekfHealthBits {
			return supervisor.Promote(StageUnhealthy, "estimator health lost"), nil
		}
	}
	return nil, nil
}

func (t *healthMonitor) OnExit(ctx context.Context) error { return nil }

// lockChecks waits for a satisfactory positioning lock, bounded by the
// configured timeout.
type lockChecks struct {
	cfg *Config

	waited int
}

func newLockChecks(cfg *Config) *lockChecks { return &lockChecks{cfg: cfg} }

func (t *lockChecks) Name() string { return "LockChecks" }

func (t *lockChecks) OnEnter(ctx context.Context, rt supervisor.Runtime) error { return nil }

func (t *lockChecks) Tick(ctx context.Context, rt supervisor.Runtime) (*supervisor.Promotion, error) {
	if e, ok := rt.Topics.Get(topics.KeyEkfFlags); ok {
		if flags, ok := e.Uint32(); ok &&
			flags&ekfHealthBits == ekfHealthBits && flags&ekfLockBits != 0 {
			return supervisor.Promote(StageHealthyUnarmed, "positioning lock acquired"), nil
		}
	}

	t.waited++
	if t.waited > t.cfg.LockTimeoutTicks {
		return supervisor.Promote(StageUnhealthy, "positioning lock timeout"), nil
	}
	return nil, nil
}

func (t *lockChecks) OnExit(ctx context.Context) error { return nil }
