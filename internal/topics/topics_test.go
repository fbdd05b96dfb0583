package topics

import (
	"testing"
)

func TestPutVersionStrictlyIncreases(t *testing.T) {
	s := NewStore()

	var last uint64
	for i := 0; i < 10; i++ {
		e := s.Put(KeyBatteryLevel, float64(90-i))
		if e.Version <= last {
			t.Fatalf("version did not increase: %d after %d", e.Version, last)
		}
		last = e.Version
	}

	// Writes to a different key keep increasing the same counter.
	e := s.Put(KeyArmState, true)
	if e.Version <= last {
		t.Fatalf("cross-key version did not increase: %d after %d", e.Version, last)
	}
}

func TestSinceEdgeTrigger(t *testing.T) {
	s := NewStore()

	e := s.Put(KeyEkfFlags, uint32(EkfAttitude|EkfVelocityHoriz))

	got, ok := s.Since(KeyEkfFlags, 0)
	if !ok || got.Version != e.Version {
		t.Fatalf("expected entry at version %d, got ok=%v version=%d", e.Version, ok, got.Version)
	}

	// Same version observed again must not trigger.
	if _, ok := s.Since(KeyEkfFlags, e.Version); ok {
		t.Fatal("Since returned an entry for an already-seen version")
	}

	// A rewrite of identical data still bumps the version.
	e2 := s.Put(KeyEkfFlags, uint32(EkfAttitude|EkfVelocityHoriz))
	if e2.Version <= e.Version {
		t.Fatalf("rewrite did not bump version: %d", e2.Version)
	}
	if _, ok := s.Since(KeyEkfFlags, e.Version); !ok {
		t.Fatal("Since missed a newer write")
	}
}

func TestGetMissingKey(t *testing.T) {
	s := NewStore()
	if _, ok := s.Get(KeyMode); ok {
		t.Fatal("Get returned an entry for an unwritten key")
	}
	if _, ok := s.Since(KeyMode, 0); ok {
		t.Fatal("Since returned an entry for an unwritten key")
	}
}

func TestEntryConversions(t *testing.T) {
	s := NewStore()

	s.Put(KeyArmState, true)
	s.Put(KeyBatteryLevel, float64(75))
	s.Put(KeyMode, "GUIDED")
	s.Put(KeyEkfFlags, uint32(0x1f))

	if e, _ := s.Get(KeyArmState); !mustBool(t, e) {
		t.Error("arm state should be true")
	}
	if e, _ := s.Get(KeyBatteryLevel); mustFloat(t, e) != 75 {
		t.Error("battery should be 75")
	}
	if e, _ := s.Get(KeyMode); mustString(t, e) != "GUIDED" {
		t.Error("mode should be GUIDED")
	}
	if e, _ := s.Get(KeyEkfFlags); mustUint32(t, e) != 0x1f {
		t.Error("flags should be 0x1f")
	}
}

func TestSnapshotSorted(t *testing.T) {
	s := NewStore()
	s.Put(KeyMode, "STABILIZE")
	s.Put(KeyArmState, false)
	s.Put(KeyBatteryLevel, float64(100))

	snap := s.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(snap))
	}
	for i := 1; i < len(snap); i++ {
		if snap[i-1].Key >= snap[i].Key {
			t.Fatalf("snapshot not sorted: %q before %q", snap[i-1].Key, snap[i].Key)
		}
	}
}

func mustBool(t *testing.T, e Entry) bool {
	t.Helper()
	v, ok := e.Bool()
	if !ok {
		t.Fatalf("entry %q is not a bool", e.Key)
	}
	return v
}

func mustFloat(t *testing.T, e Entry) float64 {
	t.Helper()
	v, ok := e.Float64()
	if !ok {
		t.Fatalf("entry %q is not a float", e.Key)
	}
	return v
}

func mustString(t *testing.T, e Entry) string {
	t.Helper()
	v, ok := e.String()
	if !ok {
		t.Fatalf("entry %q is not a string", e.Key)
	}
	return v
}

func mustUint32(t *testing.T, e Entry) uint32 {
	t.Helper()
	v, ok := e.Uint32()
	if !ok {
		t.Fatalf("entry %q is not a uint32", e.Key)
	}
	return v
}
