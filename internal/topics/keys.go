package topics

// Key identifies a health topic. Keys are well-known strings written by the
// Exec ingestion path and read by tasks in both machines.
type Key string

const (
	// KeyConnectionState is true while the link reports a live connection.
	KeyConnectionState Key = "link.connection-state"

	// KeyHeartbeat counts heartbeats observed from the flight controller.
	KeyHeartbeat Key = "telemetry.heartbeat"

	// KeyBatteryLevel is the reported battery remaining in percent, -1 when
	// the flight controller does not report it.
	KeyBatteryLevel Key = "telemetry.battery-level"

	// KeyCommErrors is the cumulative communication error count.
	KeyCommErrors Key = "telemetry.comm-errors"

	// KeyEkfFlags is the raw EKF status flag bitfield.
	KeyEkfFlags Key = "telemetry.ekf-flags"

	// KeyArmState is true while the vehicle reports armed.
	KeyArmState Key = "telemetry.arm-state"

	// KeyMode is the flight controller mode string.
	KeyMode Key = "telemetry.mode"

	// KeyAltitude is relative altitude in meters.
	KeyAltitude Key = "telemetry.altitude"

	// KeyClimbRate is vertical speed in m/s, negative while descending.
	KeyClimbRate Key = "telemetry.climb-rate"

	// KeyPosition is the last reported position, a Position value.
	KeyPosition Key = "telemetry.position"

	// KeyStartAuto is the externally settable "start autonomy" trigger.
	KeyStartAuto Key = "command.start-auto"

	// KeyLandRequest is the externally settable land request.
	KeyLandRequest Key = "command.land-request"
)

// EKF status flag bits, mirroring the autopilot's status report bitfield.
const (
	EkfAttitude      uint32 = 1 << 0
	EkfVelocityHoriz uint32 = 1 << 1
	EkfVelocityVert  uint32 = 1 << 2
	EkfPosHorizRel   uint32 = 1 << 3
	EkfPosHorizAbs   uint32 = 1 << 4
	EkfPosVertAbs    uint32 = 1 << 5
	EkfPosVertAgl    uint32 = 1 << 6
)

// Position is a latitude/longitude/altitude triple stored under KeyPosition.
type Position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	Alt float64 `json:"alt"`
}
