package supervisor

import (
	"context"
	"sync"
	"testing"

	"github.com/skylark-uav/skylark/internal/link"
	"github.com/skylark-uav/skylark/internal/topics"
)

const (
	stageA Stage = "A"
	stageB Stage = "B"
	stageC Stage = "C"
	stageU Stage = "Unwell"
	stageF Stage = "Dead"
)

func testGraph() Graph {
	return Graph{
		Initial: stageA,
		Stages: []StageDef{
			{Name: stageF, FaultPriority: 0, Terminal: true},
			{Name: stageU, FaultPriority: 1, Next: []Stage{stageA, stageF}},
			{Name: stageA, FaultPriority: 2, Next: []Stage{stageB}},
			{Name: stageB, FaultPriority: 3, Next: []Stage{stageC}},
			{Name: stageC, FaultPriority: 4, Terminal: true},
		},
		FaultStages: []Stage{stageU, stageF},
	}
}

func testRuntime() Runtime {
	return Runtime{Topics: topics.NewStore(), Link: link.NewMemory()}
}

// eventLog records lifecycle events across tasks to check ordering.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.events))
	copy(out, l.events)
	return out
}

func recordingFactory(name string, lg *eventLog, step func(ctx context.Context, rt Runtime) (*Promotion, error)) Factory {
	return func() Task {
		return &FuncTask{
			TaskName: name,
			Enter: func(ctx context.Context, rt Runtime) error {
				lg.add("enter:" + name)
				return nil
			},
			Step: step,
			Exit: func(ctx context.Context) error {
				lg.add("exit:" + name)
				return nil
			},
		}
	}
}

func TestStartEntersInitialStage(t *testing.T) {
	lg := &eventLog{}
	tasks := TaskSet{
		stageA: {recordingFactory("a1", lg, nil), recordingFactory("a2", lg, nil)},
	}

	m, err := New("test", testGraph(), tasks, testRuntime())
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	if got := m.Current(); got != stageA {
		t.Fatalf("current = %s, want %s", got, stageA)
	}
	want := []string{"enter:a1", "enter:a2"}
	got := lg.all()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("events = %v, want %v", got, want)
	}

	if err := m.Start(context.Background()); err == nil {
		t.Fatal("second Start should fail")
	}
}

func TestPromotionTransitionStopsBeforeStart(t *testing.T) {
	lg := &eventLog{}
	promote := true
	tasks := TaskSet{
		stageA: {recordingFactory("watch", lg, func(ctx context.Context, rt Runtime) (*Promotion, error) {
			if promote {
				promote = false
				return Promote(stageB, "test"), nil
			}
			return nil, nil
		})},
		stageB: {recordingFactory("b1", lg, nil)},
	}

	m, err := New("test", testGraph(), tasks, testRuntime())
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := m.Tick(context.Background()); err != nil {
		t.Fatal(err)
	}

	if got := m.Current(); got != stageB {
		t.Fatalf("current = %s, want %s", got, stageB)
	}

	// Exit hooks of the old stage must complete before any new task starts.
	want := []string{"enter:watch", "exit:watch", "enter:b1"}
	got := lg.all()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
}

func TestAtMostOnePromotionPerTaskPerStage(t *testing.T) {
	lg := &eventLog{}
	// The task first votes for an unreachable stage, then keeps voting for a
	// reachable one. The first (recorded) vote consumes its quota.
	calls := 0
	tasks := TaskSet{
		stageA: {recordingFactory("greedy", lg, func(ctx context.Context, rt Runtime) (*Promotion, error) {
			calls++
			if calls == 1 {
				return Promote(stageC, "invalid edge"), nil
			}
			return Promote(stageB, "late vote"), nil
		})},
	}

	m, err := New("test", testGraph(), tasks, testRuntime())
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if err := m.Tick(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if got := m.Current(); got != stageA {
		t.Fatalf("current = %s, want %s (no edge A->C, and the late vote must be ignored)", got, stageA)
	}
}

func TestConflictingPromotionsResolveByFaultPriority(t *testing.T) {
	lg := &eventLog{}
	tasks := TaskSet{
		stageA: {
			recordingFactory("forward", lg, func(ctx context.Context, rt Runtime) (*Promotion, error) {
				return Promote(stageB, "forward progress"), nil
			}),
			recordingFactory("watchdog", lg, func(ctx context.Context, rt Runtime) (*Promotion, error) {
				return Promote(stageU, "hard failure"), nil
			}),
		},
		stageU: {},
	}

	for i := 0; i < 5; i++ {
		m, err := New("test", testGraph(), tasks, testRuntime())
		if err != nil {
			t.Fatal(err)
		}
		if err := m.Start(context.Background()); err != nil {
			t.Fatal(err)
		}
		if err := m.Tick(context.Background()); err != nil {
			t.Fatal(err)
		}
		if got := m.Current(); got != stageU {
			t.Fatalf("run %d: current = %s, want %s (fault stage outranks forward stage)", i, got, stageU)
		}
	}
}

func TestForceTransitionBypassesVoting(t *testing.T) {
	lg := &eventLog{}
	tasks := TaskSet{
		stageA: {recordingFactory("a", lg, nil)},
		stageF: {recordingFactory("possum", lg, nil)},
	}

	m, err := New("test", testGraph(), tasks, testRuntime())
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := m.ForceTransition(context.Background(), stageF); err != nil {
		t.Fatal(err)
	}
	if got := m.Current(); got != stageF {
		t.Fatalf("current = %s, want %s", got, stageF)
	}
	if !m.Terminal() {
		t.Fatal("terminal stage not reported")
	}

	if err := m.ForceTransition(context.Background(), "NoSuchStage"); err == nil {
		t.Fatal("expected error for unknown stage")
	}
}

func TestShutdownIdempotent(t *testing.T) {
	lg := &eventLog{}
	tasks := TaskSet{
		stageA: {recordingFactory("a", lg, nil)},
	}

	m, err := New("test", testGraph(), tasks, testRuntime())
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := m.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := m.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}

	exits := 0
	for _, e := range lg.all() {
		if e == "exit:a" {
			exits++
		}
	}
	if exits != 1 {
		t.Fatalf("exit hook ran %d times, want 1", exits)
	}

	// A shut-down machine ignores ticks and refuses transitions.
	if err := m.Tick(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := m.ForceTransition(context.Background(), stageB); err == nil {
		t.Fatal("expected error transitioning a shut-down machine")
	}
}

func TestFreshTaskInstancePerStageEntry(t *testing.T) {
	instances := 0
	tasks := TaskSet{
		stageA: {func() Task {
			instances++
			return &FuncTask{TaskName: "counted"}
		}},
		stageU: {},
	}

	m, err := New("test", testGraph(), tasks, testRuntime())
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := m.ForceTransition(context.Background(), stageU); err != nil {
		t.Fatal(err)
	}
	if err := m.ForceTransition(context.Background(), stageA); err != nil {
		t.Fatal(err)
	}

	if instances != 2 {
		t.Fatalf("expected 2 instances across 2 entries, got %d", instances)
	}
}

func TestObserveSnapshot(t *testing.T) {
	lg := &eventLog{}
	tasks := TaskSet{
		stageA: {recordingFactory("a1", lg, nil), recordingFactory("a2", lg, nil)},
	}

	m, err := New("exec", testGraph(), tasks, testRuntime())
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	snap := m.Observe()
	if snap.Name != "exec" || snap.Stage != string(stageA) {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if len(snap.Tasks) != 2 || snap.Tasks[0] != "a1" || snap.Tasks[1] != "a2" {
		t.Fatalf("unexpected task list: %v", snap.Tasks)
	}
}

func TestGraphValidation(t *testing.T) {
	tests := []struct {
		name  string
		graph Graph
	}{
		{"empty", Graph{}},
		{"missing initial", Graph{Initial: "X", Stages: []StageDef{{Name: stageA}}}},
		{"dangling edge", Graph{Initial: stageA, Stages: []StageDef{{Name: stageA, Next: []Stage{"X"}}}}},
		{"duplicate stage", Graph{Initial: stageA, Stages: []StageDef{{Name: stageA}, {Name: stageA}}}},
		{"undeclared fault stage", Graph{Initial: stageA, Stages: []StageDef{{Name: stageA}}, FaultStages: []Stage{"X"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New("test", tt.graph, TaskSet{}, testRuntime()); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
