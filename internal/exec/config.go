package exec

import (
	"github.com/skylark-uav/skylark/internal/auto"
	"github.com/skylark-uav/skylark/internal/supervisor"
)

// Config carries the Exec machine's task parameters and per-stage task
// overrides. Tick-denominated durations assume the daemon's watchdog cadence
// of two ticks per second.
type Config struct {
	// BatteryMinPercent is the battery floor. A reading of -1 means the
	// flight controller does not report battery and is treated as healthy.
	BatteryMinPercent float64

	// CommErrorsMax is the cumulative comm-error ceiling.
	CommErrorsMax float64

	// HeartbeatEveryTicks is the keep-alive cadence. Two ticks is 1 Hz at
	// the default tick rate.
	HeartbeatEveryTicks int

	// StreamRateHz is the telemetry stream rate requested once in
	// AwaitingData.
	StreamRateHz int

	// LockTimeoutTicks bounds the wait for a positioning lock before
	// AwaitingLock demotes to Unhealthy.
	LockTimeoutTicks int

	// ForceArm sends the autopilot's force-arm magic with the arm command so
	// bench vehicles without a full pre-arm pass can arm.
	ForceArm bool

	// ArmRetryTicks is the wait between arm attempts.
	ArmRetryTicks int

	// ArmMaxAttempts bounds arm attempts before demoting to Unhealthy.
	ArmMaxAttempts int

	// RecoveryWaitTicks is how long Unhealthy holds before re-attempting the
	// health gate.
	RecoveryWaitTicks int

	// RecoveryMaxAttempts bounds Unhealthy entries before demoting to Fatal.
	RecoveryMaxAttempts int

	// Auto parameterizes the inner machine spawned in HealthyGuided.
	Auto *auto.Config

	overrides map[supervisor.Stage][]supervisor.Factory
	extras    map[supervisor.Stage][]supervisor.Factory
}

// NewConfig returns a Config with conservative defaults.
func NewConfig() *Config {
	return &Config{
		BatteryMinPercent:   20,
		CommErrorsMax:       100,
		HeartbeatEveryTicks: 2,
		StreamRateHz:        20,
		LockTimeoutTicks:    120,
		ForceArm:            false,
		ArmRetryTicks:       4,
		ArmMaxAttempts:      5,
		RecoveryWaitTicks:   10,
		RecoveryMaxAttempts: 3,
		Auto:                auto.NewConfig(),
	}
}

// WithStageTasks replaces the default task set of a stage.
func (c *Config) WithStageTasks(stage supervisor.Stage, factories ...supervisor.Factory) *Config {
	if c.overrides == nil {
		c.overrides = make(map[supervisor.Stage][]supervisor.Factory)
	}
	c.overrides[stage] = factories
	return c
}

// WithStageTask appends a task to a stage's defaults.
func (c *Config) WithStageTask(stage supervisor.Stage, factory supervisor.Factory) *Config {
	if c.extras == nil {
		c.extras = make(map[supervisor.Stage][]supervisor.Factory)
	}
	c.extras[stage] = append(c.extras[stage], factory)
	return c
}

// resolve merges defaults with overrides and extras into the final TaskSet.
func (c *Config) resolve(defaults supervisor.TaskSet) supervisor.TaskSet {
	out := make(supervisor.TaskSet, len(defaults))
	for stage, factories := range defaults {
		out[stage] = factories
	}
	for stage, factories := range c.overrides {
		out[stage] = factories
	}
	for stage, factories := range c.extras {
		out[stage] = append(out[stage], factories...)
	}
	return out
}
