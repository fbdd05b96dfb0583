package link

import "github.com/skylark-uav/skylark/internal/topics"

// CommandType discriminates outbound commands.
type CommandType string

const (
	// CommandHeartbeat is the ground-station style keep-alive.
	CommandHeartbeat CommandType = "heartbeat"

	// CommandRequestStream asks the flight controller to start emitting its
	// telemetry streams at the requested rate.
	CommandRequestStream CommandType = "request_stream"

	// CommandSetMode requests a flight mode change.
	CommandSetMode CommandType = "set_mode"

	// CommandArm requests arming. Force carries the autopilot's force-arm
	// magic so bench vehicles without full pre-arm pass can arm.
	CommandArm CommandType = "arm"

	// CommandDisarm requests disarming.
	CommandDisarm CommandType = "disarm"

	// CommandTakeoff requests a takeoff to Altitude meters.
	CommandTakeoff CommandType = "takeoff"

	// CommandSetPosition is a guided-mode position setpoint.
	CommandSetPosition CommandType = "set_position"

	// CommandLand requests a landing at the current position.
	CommandLand CommandType = "land"

	// CommandHold requests a failsafe hold; issued only from the terminal
	// safe mode.
	CommandHold CommandType = "hold"
)

// Command is one outbound unit to the flight controller. Field relevance
// depends on Type.
type Command struct {
	Type CommandType `json:"type"`

	Mode     string           `json:"mode,omitempty"`
	Altitude float64          `json:"altitude,omitempty"`
	Position *topics.Position `json:"position,omitempty"`
	Force    bool             `json:"force,omitempty"`

	// RequestStream parameters.
	StreamRateHz int `json:"stream_rate_hz,omitempty"`
}
