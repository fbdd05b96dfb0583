// Package paths defines the MQTT topic segments of the Skylark vehicle
// protocol. These constants are the routing contract between the telemetry
// bridge in front of the flight controller, the operator tooling, and the
// supervisory core; changing them breaks deployed bridges.
package paths

// Inbound: bridge / operator -> core
const (
	// Telemetry is the topic segment for flight controller telemetry.
	// Pattern: {root}/telemetry/{type}
	Telemetry = "telemetry"

	// Command is the topic segment for operator-issued triggers.
	// Pattern: {root}/command/{trigger}
	Command = "command"
)

// Outbound: core -> bridge
const (
	// Send is the topic segment for commands to the flight controller.
	// Pattern: {root}/fc/send
	Send = "fc/send"
)
