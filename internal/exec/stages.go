// Package exec implements the outer supervisor: connection bring-up, health
// and positioning-lock gating, arming, and the top-level fault stages. Exec
// owns the telemetry ingestion path (the sole writer of health topics) and
// the lifecycle of the inner Auto machine, which exists only while Exec sits
// in HealthyGuided.
package exec

import "github.com/skylark-uav/skylark/internal/supervisor"

// Exec stages, in forward order.
const (
	// StageAwaitConnection is the entry stage: waiting for a live link.
	StageAwaitConnection supervisor.Stage = "AwaitConnection"

	// StageAwaitingData requests telemetry streams and waits for the first
	// flight controller heartbeat.
	StageAwaitingData supervisor.Stage = "AwaitingData"

	// StageAwaitingHealthy gates on battery, comm errors and estimator
	// health.
	StageAwaitingHealthy supervisor.Stage = "AwaitingHealthy"

	// StageAwaitingLock gates on a satisfactory positioning lock, with a
	// bounded wait.
	StageAwaitingLock supervisor.Stage = "AwaitingLock"

	// StageHealthyUnarmed validates arm readiness and issues the arm command.
	StageHealthyUnarmed supervisor.Stage = "HealthyUnarmed"

	// StageHealthyArmed idles armed, waiting for the start-autonomy trigger.
	StageHealthyArmed supervisor.Stage = "HealthyArmed"

	// StageHealthyGuided is the autonomy stage: Exec spawns and supervises
	// the Auto child for as long as this stage is current.
	StageHealthyGuided supervisor.Stage = "HealthyGuided"

	// StageUnhealthy is the recoverable-fault holding stage.
	StageUnhealthy supervisor.Stage = "Unhealthy"

	// StageFatal is terminal safe mode. No autonomy commands leave the
	// vehicle after entry; external intervention resets the machine.
	StageFatal supervisor.Stage = "Fatal"
)

// Graph returns the Exec transition graph. Unhealthy and Fatal are fault
// stages, implicitly reachable from everywhere; HealthyArmed additionally
// carries an explicit demotion edge back to HealthyUnarmed for disarm, and
// HealthyGuided one back to HealthyArmed for autonomy ending normally.
func Graph() supervisor.Graph {
	return supervisor.Graph{
		Initial: StageAwaitConnection,
		Stages: []supervisor.StageDef{
			{Name: StageFatal, FaultPriority: 0, Terminal: true},
			{Name: StageUnhealthy, FaultPriority: 1, Next: []supervisor.Stage{StageAwaitingHealthy}},
			{Name: StageAwaitConnection, FaultPriority: 2, Next: []supervisor.Stage{StageAwaitingData}},
			{Name: StageAwaitingData, FaultPriority: 3, Next: []supervisor.Stage{StageAwaitingHealthy}},
			{Name: StageAwaitingHealthy, FaultPriority: 4, Next: []supervisor.Stage{StageAwaitingLock}},
			{Name: StageAwaitingLock, FaultPriority: 5, Next: []supervisor.Stage{StageHealthyUnarmed}},
			{Name: StageHealthyUnarmed, FaultPriority: 6, Next: []supervisor.Stage{StageHealthyArmed}},
			{Name: StageHealthyArmed, FaultPriority: 7, Next: []supervisor.Stage{StageHealthyGuided, StageHealthyUnarmed}},
			{Name: StageHealthyGuided, FaultPriority: 8, Next: []supervisor.Stage{StageHealthyArmed}},
		},
		FaultStages: []supervisor.Stage{StageUnhealthy, StageFatal},
	}
}
