package auto

import (
	"github.com/skylark-uav/skylark/internal/supervisor"
	"github.com/skylark-uav/skylark/internal/topics"
)

// Config carries the Auto machine's task parameters and per-stage task
// overrides. Built once at startup, read-only afterwards.
type Config struct {
	// TakeoffAltitude is the target altitude in meters for the takeoff
	// command.
	TakeoffAltitude float64

	// AltitudeTolerance is how close (meters) the climb must get to the
	// target before takeoff is considered complete.
	AltitudeTolerance float64

	// InitialPosition is the first guided setpoint, commanded while
	// establishing guided mode.
	InitialPosition topics.Position

	// GuidedMode is the flight controller mode name for guided flight.
	GuidedMode string

	// GuidanceEveryTicks is the cadence of guidance setpoints in AutoGuided.
	GuidanceEveryTicks int

	// CommandRetryTicks is how many ticks a flight task waits before
	// re-issuing a command whose send failed.
	CommandRetryTicks int

	// TouchdownAltitude is the relative altitude (meters) below which, with
	// a near-zero climb rate, touchdown is considered confirmed.
	TouchdownAltitude float64

	// TouchdownClimbRate is the absolute climb rate (m/s) below which the
	// vehicle counts as no longer descending.
	TouchdownClimbRate float64

	// overrides replaces or extends the default task set per stage.
	overrides map[supervisor.Stage][]supervisor.Factory
	extras    map[supervisor.Stage][]supervisor.Factory
}

// NewConfig returns a Config with conservative defaults.
func NewConfig() *Config {
	return &Config{
		TakeoffAltitude:    10,
		AltitudeTolerance:  0.5,
		GuidedMode:         "GUIDED",
		GuidanceEveryTicks: 5,
		CommandRetryTicks:  20,
		TouchdownAltitude:  0.2,
		TouchdownClimbRate: 0.1,
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
