package auto

import (
	"context"
	"math"

	"github.com/skylark-uav/skylark/internal/link"
	"github.com/skylark-uav/skylark/internal/supervisor"
	"github.com/skylark-uav/skylark/internal/topics"
)

// takeoff commands a climb to the configured altitude and watches the
// altitude topic until the vehicle is within tolerance of the target.
type takeoff struct {
	cfg *Config

	sent       bool
	retryTicks int
}

func newTakeoff(cfg *Config) *takeoff { return &takeoff{cfg: cfg} }

func (t *takeoff) Name() string { return "Takeoff" }

func (t *takeoff) OnEnter(ctx context.Context, rt supervisor.Runtime) error {
	t.send(ctx, rt)
	return nil
}

func (t *takeoff) send(ctx context.Context, rt supervisor.Runtime) {
	err := rt.Link.Send(ctx, link.Command{
		Type:     link.CommandTakeoff,
		Altitude: t.cfg.TakeoffAltitude,
	})
	if err != nil {
		rt.Logger.Error(err, "Takeoff command failed, will retry", "altitude", t.cfg.TakeoffAltitude)
		t.sent = false
		t.retryTicks = t.cfg.CommandRetryTicks
		return
	}
	rt.Logger.Info("Takeoff commanded", "altitude", t.cfg.TakeoffAltitude)
	t.sent = true
}

func (t *takeoff) Tick(ctx context.Context, rt supervisor.Runtime) (*supervisor.Promotion, error) {
	if !t.sent {
		if t.retryTicks > 0 {
			t.retryTicks--
			return nil, nil
		}
		t.send(ctx, rt)
		return nil, nil
	}

	e, ok := rt.Topics.Get(topics.KeyAltitude)
	if !ok {
		return nil, nil
	}
	alt, ok := e.Float64()
	if !ok {
		return nil, nil
	}
	if math.Abs(alt-t.cfg.TakeoffAltitude) <= t.cfg.AltitudeTolerance {
		return supervisor.Promote(StageHover, "takeoff altitude reached"), nil
	}
	return nil, nil
}

func (t *takeoff) OnExit(ctx context.Context) error { return nil }

// guidedInit switches the flight controller into guided mode and pushes the
// first setpoint, then waits for the mode topic to confirm before handing
// over to the guidance stream.
type guidedInit struct {
	cfg *Config

	sent       bool
	retryTicks int
	sinceEnter uint64
}

func newGuidedInit(cfg *Config) *guidedInit { return &guidedInit{cfg: cfg} }

func (t *guidedInit) Name() string { return "GuidedInit" }

func (t *guidedInit) OnEnter(ctx context.Context, rt supervisor.Runtime) error {
	t.sinceEnter = rt.Topics.Version()
	t.send(ctx, rt)
	return nil
}

func (t *guidedInit) send(ctx context.Context, rt supervisor.Runtime) {
	if err := rt.Link.Send(ctx, link.Command{Type: link.CommandSetMode, Mode: t.cfg.GuidedMode}); err != nil {
		rt.Logger.Error(err, "Mode change failed, will retry", "mode", t.cfg.GuidedMode)
		t.sent = false
		t.retryTicks = t.cfg.CommandRetryTicks
		return
	}
	pos := t.cfg.InitialPosition
	if err := rt.Link.Send(ctx, link.Command{Type: link.CommandSetPosition, Position: &pos}); err != nil {
		rt.Logger.Error(err, "Initial setpoint failed, will retry")
		t.sent = false
		t.retryTicks = t.cfg.CommandRetryTicks
		return
	}
	rt.Logger.Info("Guided mode requested", "mode", t.cfg.GuidedMode)
	t.sent = true
}

func (t *guidedInit) Tick(ctx context.Context, rt supervisor.Runtime) (*supervisor.Promotion, error) {
	if !t.sent {
		if t.retryTicks > 0 {
			t.retryTicks--
			return nil, nil
		}
		t.send(ctx, rt)
		return nil, nil
	}

	// Confirmation requires a mode report that arrived after stage entry, so
	// a stale GUIDED left over from a previous flight cannot satisfy it.
	e, ok := rt.Topics.Since(topics.KeyMode, t.sinceEnter)
	if !ok {
		return nil, nil
	}
	mode, ok := e.String()
	if !ok || mode != t.cfg.GuidedMode {
		return nil, nil
	}
	return supervisor.Promote(StageGuided, "guided mode confirmed"), nil
}

func (t *guidedInit) OnExit(ctx context.Context) error { return nil }

// sendGuidance streams position setpoints at a fixed tick cadence for as long
// as the guided stage holds. It never promotes; leaving guided flight is the
// listeners' call.
type sendGuidance struct {
	cfg *Config

	ticks int
}

func newSendGuidance(cfg *Config) *sendGuidance { return &sendGuidance{cfg: cfg} }

func (t *sendGuidance) Name() string { return "SendGuidance" }

func (t *sendGuidance) OnEnter(ctx context.Context, rt supervisor.Runtime) error { return nil }

func (t *sendGuidance) Tick(ctx context.Context, rt supervisor.Runtime) (*supervisor.Promotion, error) {
	t.ticks++
	if t.ticks%t.cfg.GuidanceEveryTicks != 0 {
		return nil, nil
	}
	pos := t.target(rt)
	if err := rt.Link.Send(ctx, link.Command{Type: link.CommandSetPosition, Position: &pos}); err != nil {
		// Guidance is periodic anyway; the next cadence tick retries.
		rt.Logger.Error(err, "Guidance setpoint failed")
	}
	return nil, nil
}

// target picks the setpoint to stream. Holding the configured position is the
// default; richer trajectory sources plug in at the guided stage via config.
func (t *sendGuidance) target(rt supervisor.Runtime) topics.Position {
	return t.cfg.InitialPosition
}

func (t *sendGuidance) OnExit(ctx context.Context) error { return nil }

// land commands the landing and watches descent until touchdown. The stage is
// terminal; the outer machine observes the landed vehicle and tears this
// machine down.
type land struct {
	cfg *Config

	sent       bool
	retryTicks int
	down       bool
}

func newLand(cfg *Config) *land { return &land{cfg: cfg} }

func (t *land) Name() string { return "Land" }

func (t *land) OnEnter(ctx context.Context, rt supervisor.Runtime) error {
	t.send(ctx, rt)
	return nil
}

func (t *land) send(ctx context.Context, rt supervisor.Runtime) {
	if err := rt.Link.Send(ctx, link.Command{Type: link.CommandLand}); err != nil {
		rt.Logger.Error(err, "Land command failed, will retry")
		t.sent = false
		t.retryTicks = t.cfg.CommandRetryTicks
		return
	}
	rt.Logger.Info("Landing commanded")
	t.sent = true
}

func (t *land) Tick(ctx context.Context, rt supervisor.Runtime) (*supervisor.Promotion, error) {
	if !t.sent {
		if t.retryTicks > 0 {
			t.retryTicks--
			return nil, nil
		}
		t.send(ctx, rt)
		return nil, nil
	}
	if t.down {
		return nil, nil
	}
	if t.touchedDown(rt) {
		t.down = true
		rt.Logger.Info("Touchdown confirmed")
	}
	return nil, nil
}

func (t *land) touchedDown(rt supervisor.Runtime) bool {
	ae, ok := rt.Topics.Get(topics.KeyAltitude)
	if !ok {
		return false
	}
	alt, ok := ae.Float64()
	if !ok || alt > t.cfg.TouchdownAltitude {
		return false
	}
	ce, ok := rt.Topics.Get(topics.KeyClimbRate)
	if !ok {
		return false
	}
	climb, ok := ce.Float64()
	if !ok {
		return false
	}
	return math.Abs(climb) <= t.cfg.TouchdownClimbRate
}

func (t *land) OnExit(ctx context.Context) error { return nil }
