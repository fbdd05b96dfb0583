package auto

import (
	"github.com/skylark-uav/skylark/internal/supervisor"
)

// MachineName is the machine label used in logs, metrics and status.
const MachineName = "auto"

// New builds a fresh Auto machine. Exec constructs one on entering
// HealthyGuided and discards it, fully stopped, on leaving; no state
// survives between generations.
func New(cfg *Config, rt supervisor.Runtime) (*supervisor.Machine, error) {
	if cfg == nil {
		cfg = NewConfig()
	}

	defaults := supervisor.TaskSet{
		StageShadow: {
			func() supervisor.Task { return newShadowWatch() },
		},
		StageStart: {
			func() supervisor.Task { return newTakeoff(cfg) },
		},
		StageHover: {
			func() supervisor.Task { return newGuidedInit(cfg) },
		},
		StageGuided: {
			func() supervisor.Task { return newSendGuidance(cfg) },
			func() supervisor.Task { return newListenForShow() },
			func() supervisor.Task { return newListenForLand() },
		},
		StageLand: {
			func() supervisor.Task { return newLand(cfg) },
		},
	}

	return supervisor.New(MachineName, Graph(), cfg.resolve(defaults), rt)
}
