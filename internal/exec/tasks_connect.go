package exec

import (
	"context"

	"github.com/skylark-uav/skylark/internal/link"
	"github.com/skylark-uav/skylark/internal/supervisor"
	"github.com/skylark-uav/skylark/internal/topics"
)

// connectionWatchdog waits in the entry stage for a live link. It never
// demotes; there is nothing below AwaitConnection.
type connectionWatchdog struct{}

func newConnectionWatchdog() *connectionWatchdog { return &connectionWatchdog{} }

func (t *connectionWatchdog) Name() string { return "ConnectionWatchdog" }

func (t *connectionWatchdog) OnEnter(ctx context.Context, rt supervisor.Runtime) error { return nil }

func (t *connectionWatchdog) Tick(ctx context.Context, rt supervisor.Runtime) (*supervisor.Promotion, error) {
	if rt.Link.Connected() {
		return supervisor.Promote(StageAwaitingData, "link connected"), nil
	}
	return nil, nil
}

func (t *connectionWatchdog) OnExit(ctx context.Context) error { return nil }

// requestStream asks the flight controller once for its telemetry streams at
// the configured rate. One-shot with retry on send failure; never promotes.
type requestStream struct {
	cfg *Config

	sent       bool
	retryTicks int
}

func newRequestStream(cfg *Config) *requestStream { return &requestStream{cfg: cfg} }

func (t *requestStream) Name() string { return "RequestStream" }

func (t *requestStream) OnEnter(ctx context.Context, rt supervisor.Runtime) error {
	t.send(ctx, rt)
	return nil
}

func (t *requestStream) send(ctx context.Context, rt supervisor.Runtime) {
	err := rt.Link.Send(ctx, link.Command{
		Type:         link.CommandRequestStream,
		StreamRateHz: t.cfg.StreamRateHz,
	})
	if err != nil {
		rt.Logger.Error(err, "Stream request failed, will retry", "rateHz", t.cfg.StreamRateHz)
		t.retryTicks = t.cfg.HeartbeatEveryTicks
		return
	}
	rt.Logger.Info("Telemetry streams requested", "rateHz", t.cfg.StreamRateHz)
	t.sent = true
}

func (t *requestStream) Tick(ctx context.Context, rt supervisor.Runtime) (*supervisor.Promotion, error) {
	if !t.sent {
		if t.retryTicks > 0 {
			t.retryTicks--
			return nil, nil
		}
		t.send(ctx, rt)
	}
	return nil, nil
}

func (t *requestStream) OnExit(ctx context.Context) error { return nil }

// heartbeat emits the ground-station style keep-alive at a fixed cadence. In
// AwaitingData it additionally watches for the first flight controller
// heartbeat and promotes once telemetry is flowing; in every later stage it
// runs as a plain keep-alive.
type heartbeat struct {
	cfg     *Config
	promote bool

	ticks int
}

func newHeartbeat(cfg *Config, promoteOnTelemetry bool) *heartbeat {
	return &heartbeat{cfg: cfg, promote: promoteOnTelemetry}
}

func (t *heartbeat) Name() string { return "Heartbeat" }

func (t *heartbeat) OnEnter(ctx context.Context, rt supervisor.Runtime) error {
	if err := rt.Link.Send(ctx, link.Command{Type: link.CommandHeartbeat}); err != nil {
		rt.Logger.Debug("Keep-alive failed", "error", err.Error())
	}
	return nil
}

func (t *heartbeat) Tick(ctx context.Context, rt supervisor.Runtime) (*supervisor.Promotion, error) {
	t.ticks++
	if t.ticks%t.cfg.HeartbeatEveryTicks == 0 {
		if err := rt.Link.Send(ctx, link.Command{Type: link.CommandHeartbeat}); err != nil {
			// The cadence retries; connection loss is the health monitor's
			// concern, not this task's.
			rt.Logger.Debug("Keep-alive failed", "error", err.Error())
		}
	}

	if !t.promote {
		return nil, nil
	}
	if _, ok := rt.Topics.Get(topics.KeyHeartbeat); ok {
		return supervisor.Promote(StageAwaitingHealthy, "flight controller heartbeat observed"), nil
	}
	return nil, nil
}

func (t *heartbeat) OnExit(ctx context.Context) error { return nil }
