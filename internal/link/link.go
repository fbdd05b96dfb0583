// Package link is the boundary to the flight controller's telemetry/command
// channel. The supervisory core treats it strictly as a message bus: inbound
// messages are polled without blocking, outbound commands are serialized
// through a single ordered path so concurrent tasks never interleave partial
// command sequences.
package link

import "context"

// Link is the handle the supervisory machines hold. The connection's
// internals (buffers, sockets, broker sessions) belong to the implementation.
type Link interface {
	// Start brings the channel up. Non-blocking; Connected reports liveness.
	Start(ctx context.Context) error

	// Connected reports whether the channel is currently live.
	Connected() bool

	// Send queues one command for the flight controller. Implementations
	// serialize sends; callers may invoke this concurrently.
	Send(ctx context.Context, cmd Command) error

	// Poll drains and returns all inbound messages received since the last
	// call. It never blocks.
	Poll() []Message

	// Close tears the channel down.
	Close(ctx context.Context) error
}
