package auto

import (
	"context"
	"testing"

	"github.com/skylark-uav/skylark/internal/link"
	"github.com/skylark-uav/skylark/internal/supervisor"
	"github.com/skylark-uav/skylark/internal/topics"
)

func testSetup(t *testing.T, cfg *Config) (*supervisor.Machine, *topics.Store, *link.Memory) {
	t.Helper()

	store := topics.NewStore()
	mem := link.NewMemory()
	mem.SetConnected(true)

	m, err := New(cfg, supervisor.Runtime{Topics: store, Link: mem})
	if err != nil {
		t.Fatal(err)
	}
	return m, store, mem
}

func tick(t *testing.T, m *supervisor.Machine, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := m.Tick(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
}

func TestStartsInShadow(t *testing.T) {
	m, _, mem := testSetup(t, nil)
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	if got := m.Current(); got != StageShadow {
		t.Fatalf("current = %s, want %s", got, StageShadow)
	}

	// Shadow is passive: no trigger, no transition, no commands.
	tick(t, m, 5)
	if got := m.Current(); got != StageShadow {
		t.Fatalf("current = %s, want %s", got, StageShadow)
	}
	if sent := mem.Sent(); len(sent) != 0 {
		t.Fatalf("shadow stage sent commands: %v", sent)
	}
}

func TestStaleStartTriggerIgnored(t *testing.T) {
	cfg := NewConfig()
	store := topics.NewStore()
	mem := link.NewMemory()
	mem.SetConnected(true)

	// Trigger written before the machine exists must not start a flight.
	store.Put(topics.KeyStartAuto, true)

	m, err := New(cfg, supervisor.Runtime{Topics: store, Link: mem})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	tick(t, m, 3)
	if got := m.Current(); got != StageShadow {
		t.Fatalf("current = %s, want %s (stale trigger must be ignored)", got, StageShadow)
	}

	// A fresh trigger counts.
	store.Put(topics.KeyStartAuto, true)
	tick(t, m, 1)
	if got := m.Current(); got != StageStart {
		t.Fatalf("current = %s, want %s", got, StageStart)
	}
}

func TestFullFlightSequence(t *testing.T) {
	cfg := NewConfig()
	cfg.GuidanceEveryTicks = 1
	cfg.InitialPosition = topics.Position{Lat: 47.39, Lon: 8.55, Alt: 10}

	m, store, mem := testSetup(t, cfg)
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Shadow -> Start on a fresh trigger.
	store.Put(topics.KeyStartAuto, true)
	tick(t, m, 1)
	if got := m.Current(); got != StageStart {
		t.Fatalf("after trigger: current = %s, want %s", got, StageStart)
	}
	if cmds := mem.SentOfType(link.CommandTakeoff); len(cmds) != 1 || cmds[0].Altitude != cfg.TakeoffAltitude {
		t.Fatalf("takeoff commands = %v, want one at %.1f m", cmds, cfg.TakeoffAltitude)
	}

	// Start -> Hover once the climb reaches the target within tolerance.
	store.Put(topics.KeyAltitude, cfg.TakeoffAltitude-1)
	tick(t, m, 2)
	if got := m.Current(); got != StageStart {
		t.Fatalf("short of target: current = %s, want %s", got, StageStart)
	}
	store.Put(topics.KeyAltitude, cfg.TakeoffAltitude-0.2)
	tick(t, m, 1)
	if got := m.Current(); got != StageHover {
		t.Fatalf("at target: current = %s, want %s", got, StageHover)
	}
	if cmds := mem.SentOfType(link.CommandSetMode); len(cmds) != 1 || cmds[0].Mode != cfg.GuidedMode {
		t.Fatalf("set_mode commands = %v, want one for %s", cmds, cfg.GuidedMode)
	}

	// Hover -> Guided only on a mode report written after stage entry.
	tick(t, m, 2)
	if got := m.Current(); got != StageHover {
		t.Fatalf("unconfirmed mode: current = %s, want %s", got, StageHover)
	}
	store.Put(topics.KeyMode, cfg.GuidedMode)
	tick(t, m, 1)
	if got := m.Current(); got != StageGuided {
		t.Fatalf("confirmed mode: current = %s, want %s", got, StageGuided)
	}

	// Guided streams setpoints every cadence tick.
	before := len(mem.SentOfType(link.CommandSetPosition))
	tick(t, m, 3)
	after := len(mem.SentOfType(link.CommandSetPosition))
	if after-before != 3 {
		t.Fatalf("guidance setpoints in 3 ticks = %d, want 3", after-before)
	}

	// Guided -> Land on a fresh land request.
	store.Put(topics.KeyLandRequest, true)
	tick(t, m, 1)
	if got := m.Current(); got != StageLand {
		t.Fatalf("after land request: current = %s, want %s", got, StageLand)
	}
	if cmds := mem.SentOfType(link.CommandLand); len(cmds) != 1 {
		t.Fatalf("land commands = %v, want exactly one", cmds)
	}
	if !m.Terminal() {
		t.Fatal("land stage must be terminal")
	}

	// Touchdown keeps the machine in Land; no further transitions.
	store.Put(topics.KeyAltitude, 0.1)
	store.Put(topics.KeyClimbRate, 0.0)
	tick(t, m, 3)
	if got := m.Current(); got != StageLand {
		t.Fatalf("after touchdown: current = %s, want %s", got, StageLand)
	}
}

func TestStaleLandRequestIgnored(t *testing.T) {
	cfg := NewConfig()
	m, store, _ := testSetup(t, cfg)

	// Land request from a prior flight sits in the store before this
	// generation even starts.
	store.Put(topics.KeyLandRequest, true)

	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	store.Put(topics.KeyStartAuto, true)
	tick(t, m, 1)
	store.Put(topics.KeyAltitude, cfg.TakeoffAltitude)
	tick(t, m, 1)
	store.Put(topics.KeyMode, cfg.GuidedMode)
	tick(t, m, 1)
	if got := m.Current(); got != StageGuided {
		t.Fatalf("current = %s, want %s", got, StageGuided)
	}

	tick(t, m, 3)
	if got := m.Current(); got != StageGuided {
		t.Fatalf("current = %s, want %s (stale land request must be ignored)", got, StageGuided)
	}
}

func TestTakeoffRetriesAfterSendFailure(t *testing.T) {
	cfg := NewConfig()
	cfg.CommandRetryTicks = 2

	m, store, mem := testSetup(t, cfg)
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Link drops before the trigger; the takeoff send on stage entry fails.
	mem.SetConnected(false)
	store.Put(topics.KeyStartAuto, true)
	tick(t, m, 1)
	if got := m.Current(); got != StageStart {
		t.Fatalf("current = %s, want %s", got, StageStart)
	}
	if cmds := mem.SentOfType(link.CommandTakeoff); len(cmds) != 0 {
		t.Fatalf("takeoff commands over a down link = %v, want none", cmds)
	}

	// Link recovers; after the retry backoff the command goes out once.
	mem.SetConnected(true)
	tick(t, m, cfg.CommandRetryTicks+1)
	if cmds := mem.SentOfType(link.CommandTakeoff); len(cmds) != 1 {
		t.Fatalf("takeoff commands after recovery = %v, want exactly one", cmds)
	}
}

func TestStageTaskOverride(t *testing.T) {
	cfg := NewConfig()
	entered := false
	cfg.WithStageTask(StageShadow, func() supervisor.Task {
		return &supervisor.FuncTask{
			TaskName: "extra",
			Enter: func(ctx context.Context, rt supervisor.Runtime) error {
				entered = true
				return nil
			},
		}
	})

	m, _, _ := testSetup(t, cfg)
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !entered {
		t.Fatal("extra shadow task did not start")
	}

	snap := m.Observe()
	if len(snap.Tasks) != 2 {
		t.Fatalf("shadow tasks = %v, want the default plus the extra", snap.Tasks)
	}
}
