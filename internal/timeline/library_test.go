package timeline

import (
	"errors"
	"testing"
)

func sampleTimeline() Timeline {
	return Timeline{
		TotalDurationMs: 3600000,
		Lanes: []Lane{
			{Number: 1, Label: "sideline", Clips: []Clip{
				{VideoID: "rec-1", LanePositionMs: 0, DeclaredDurationMs: 600000},
			}},
			{Number: 2, Label: "end zone", Clips: []Clip{
				{VideoID: "rec-2", LanePositionMs: 120000, DeclaredDurationMs: 300000},
			}},
		},
	}
}

func TestLibrary_ReplaceAndSnapshot(t *testing.T) {
	lib := NewLibrary()
	if err := lib.Replace(sampleTimeline()); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got := lib.Snapshot()
	if got.TotalDurationMs != 3600000 || len(got.Lanes) != 2 {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
	if lib.LaneCount() != 2 {
		t.Errorf("expected 2 lanes, got %d", lib.LaneCount())
	}
}

func TestLibrary_Replace_rejectsNoLanes(t *testing.T) {
	lib := NewLibrary()
	if err := lib.Replace(Timeline{TotalDurationMs: 1000}); !errors.Is(err, ErrNoLanes) {
		t.Errorf("expected ErrNoLanes, got %v", err)
	}
}

func TestLibrary_SnapshotIsDeepCopy(t *testing.T) {
	lib := NewLibrary()
	if err := lib.Replace(sampleTimeline()); err != nil {
		t.Fatalf("replace: %v", err)
	}
	snap := lib.Snapshot()
	snap.Lanes[0].Clips[0].VideoID = "mutated"

	if got := lib.Snapshot(); got.Lanes[0].Clips[0].VideoID != "rec-1" {
		t.Errorf("snapshot mutation leaked into the library: %+v", got.Lanes[0].Clips[0])
	}
}

func TestTimeline_LaneFor(t *testing.T) {
	tl := sampleTimeline()
	lane, ok := tl.LaneFor("rec-2")
	if !ok || lane.Number != 2 {
		t.Errorf("expected lane 2, got %+v (ok=%v)", lane, ok)
	}
	if _, ok := tl.LaneFor("rec-404"); ok {
		t.Error("unknown video must not resolve to a lane")
	}
}

func TestTimeline_LaneByNumber(t *testing.T) {
	tl := sampleTimeline()
	lane, ok := tl.LaneByNumber(1)
	if !ok || lane.Label != "sideline" {
		t.Errorf("expected sideline lane, got %+v (ok=%v)", lane, ok)
	}
	if _, ok := tl.LaneByNumber(9); ok {
		t.Error("unknown lane number must not resolve")
	}
}
