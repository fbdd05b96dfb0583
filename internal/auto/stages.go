// Package auto implements the inner supervisor: the autonomous flight
// sequence from shadow idle through takeoff, guided flight and landing. An
// Auto machine exists only while Exec sits in its HealthyGuided stage; Exec
// owns the handle and tears the machine down the moment it leaves that
// stage.
package auto

import "github.com/skylark-uav/skylark/internal/supervisor"

// Auto stages, in forward order.
const (
	// StageShadow is the entry stage: disabled, waiting for the external
	// "start autonomy" trigger. Autonomy never begins implicitly.
	StageShadow supervisor.Stage = "AutoShadow"

	// StageStart issues the takeoff command and monitors the climb.
	StageStart supervisor.Stage = "AutoStart"

	// StageHover establishes guided mode and the initial position.
	StageHover supervisor.Stage = "AutoHover"

	// StageGuided streams guidance setpoints and listens for triggers.
	StageGuided supervisor.Stage = "AutoGuided"

	// StageLand issues the landing command and confirms touchdown. Terminal:
	// Exec observes the landing and decides when to tear Auto down.
	StageLand supervisor.Stage = "AutoLand"
)

// Graph returns the Auto transition graph. Landing outranks every forward
// stage in promotion arbitration; Auto has no fault stages of its own, all
// vehicle-level fault authority stays with Exec.
func Graph() supervisor.Graph {
	return supervisor.Graph{
		Initial: StageShadow,
		Stages: []supervisor.StageDef{
			{Name: StageLand, FaultPriority: 0, Terminal: true},
			{Name: StageShadow, FaultPriority: 1, Next: []supervisor.Stage{StageStart}},
			{Name: StageStart, FaultPriority: 2, Next: []supervisor.Stage{StageHover}},
			{Name: StageHover, FaultPriority: 3, Next: []supervisor.Stage{StageGuided}},
			{Name: StageGuided, FaultPriority: 4, Next: []supervisor.Stage{StageLand}},
		},
	}
}
