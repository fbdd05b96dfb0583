package link

import "github.com/skylark-uav/skylark/internal/topics"

// MessageType discriminates inbound messages.
type MessageType string

const (
	// MessageHeartbeat carries the flight controller's heartbeat: armed
	// state and current mode.
	MessageHeartbeat MessageType = "heartbeat"

	// MessageSysStatus carries system health: battery and comm errors.
	MessageSysStatus MessageType = "sys_status"

	// MessageEkfStatus carries the EKF status flag bitfield.
	MessageEkfStatus MessageType = "ekf_status"

	// MessagePosition carries position, relative altitude and climb rate.
	MessagePosition MessageType = "position"

	// MessageStartAuto is the externally issued "start autonomy" trigger.
	MessageStartAuto MessageType = "start_auto"

	// MessageLandRequest is the externally issued land request.
	MessageLandRequest MessageType = "land_request"
)

// Message is one inbound unit from the link: telemetry from the flight
// controller or an externally issued command trigger. Field relevance
// depends on Type; irrelevant fields are zero.
type Message struct {
	Type MessageType `json:"type"`

	// Heartbeat
	Armed bool   `json:"armed,omitempty"`
	Mode  string `json:"mode,omitempty"`

	// SysStatus
	BatteryRemaining float64 `json:"battery_remaining,omitempty"`
	CommErrors       float64 `json:"comm_errors,omitempty"`

	// EkfStatus
	EkfFlags uint32 `json:"ekf_flags,omitempty"`

	// Position
	Position    *topics.Position `json:"position,omitempty"`
	RelativeAlt float64          `json:"relative_alt,omitempty"`
	ClimbRate   float64          `json:"climb_rate,omitempty"`
}
