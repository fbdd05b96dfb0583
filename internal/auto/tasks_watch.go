package auto

import (
	"context"

	"github.com/skylark-uav/skylark/internal/supervisor"
	"github.com/skylark-uav/skylark/internal/topics"
)

// shadowWatch holds Auto in its disabled entry stage until the external
// "start autonomy" trigger arrives. Edge-triggered: only a trigger written
// after stage entry counts, so a stale trigger from a previous Auto
// generation cannot start a flight.
type shadowWatch struct {
	seenVersion uint64
}

func newShadowWatch() *shadowWatch { return &shadowWatch{} }

func (t *shadowWatch) Name() string { return "ShadowWatch" }

func (t *shadowWatch) OnEnter(ctx context.Context, rt supervisor.Runtime) error {
	t.seenVersion = rt.Topics.Version()
	return nil
}

func (t *shadowWatch) Tick(ctx context.Context, rt supervisor.Runtime) (*supervisor.Promotion, error) {
	e, ok := rt.Topics.Since(topics.KeyStartAuto, t.seenVersion)
	if !ok {
		return nil, nil
	}
	t.seenVersion = e.Version
	if v, ok := e.Bool(); ok && v {
		rt.Logger.Info("Start-autonomy trigger received, leaving shadow")
		return supervisor.Promote(StageStart, "start-auto trigger"), nil
	}
	return nil, nil
}

func (t *shadowWatch) OnExit(ctx context.Context) error { return nil }

// listenForShow is a reserved extension point. Its trigger and target
// transition are not yet specified; it ticks as a no-op until they are.
type listenForShow struct{}

func newListenForShow() *listenForShow { return &listenForShow{} }

func (t *listenForShow) Name() string { return "ListenForShow" }

func (t *listenForShow) OnEnter(ctx context.Context, rt supervisor.Runtime) error { return nil }

func (t *listenForShow) Tick(ctx context.Context, rt supervisor.Runtime) (*supervisor.Promotion, error) {
	return nil, nil
}

func (t *listenForShow) OnExit(ctx context.Context) error { return nil }

// listenForLand watches the land-request topic and promotes to AutoLand the
// first time it is set after stage entry.
type listenForLand struct {
	seenVersion uint64
}

func newListenForLand() *listenForLand { return &listenForLand{} }

func (t *listenForLand) Name() string { return "ListenForLand" }

func (t *listenForLand) OnEnter(ctx context.Context, rt supervisor.Runtime) error {
	t.seenVersion = rt.Topics.Version()
	return nil
}

func (t *listenForLand) Tick(ctx context.Context, rt supervisor.Runtime) (*supervisor.Promotion, error) {
	e, ok := rt.Topics.Since(topics.KeyLandRequest, t.seenVersion)
	if !ok {
		return nil, nil
	}
	t.seenVersion = e.Version
	if v, ok := e.Bool(); ok && v {
		rt.Logger.Info("Land request received")
		return supervisor.Promote(StageLand, "land request"), nil
	}
	return nil, nil
}

func (t *listenForLand) OnExit(ctx context.Context) error { return nil }
