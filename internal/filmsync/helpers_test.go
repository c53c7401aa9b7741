package filmsync

import (
	"testing"
	"time"

	"filmsync/internal/timeline"
)

// fakeClock drives every engine timing window deterministically.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 10, 4, 14, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

// newTestEngine builds an engine on mirrored surfaces with a fake clock and
// a virtual tick interval long enough that only explicit virtualStepLocked
// calls advance the synthetic clock.
func newTestEngine(t *testing.T, tl timeline.Timeline) (*Engine, *MirrorProvider, *fakeClock) {
	t.Helper()
	clk := newFakeClock()
	surfaces := NewMirrorProvider()
	eng := NewEngine(tl, surfaces, Options{
		Now:         clk.now,
		VirtualTick: time.Hour,
	})
	t.Cleanup(eng.Close)
	return eng, surfaces, clk
}

// twoLaneTimeline is the fixture from the film-room reference scenarios:
// lane 1 covers [0, 600000) with one sideline clip, lane 2 covers
// [120000, 420000) with one end-zone clip.
func twoLaneTimeline() timeline.Timeline {
	return timeline.Timeline{
		TotalDurationMs: 3600000,
		Lanes: []timeline.Lane{
			{Number: 1, Label: "sideline", Clips: []timeline.Clip{
				{VideoID: "vid-a", LanePositionMs: 0, DeclaredDurationMs: 600000},
			}},
			{Number: 2, Label: "end zone", Clips: []timeline.Clip{
				{VideoID: "vid-b", LanePositionMs: 120000, DeclaredDurationMs: 300000},
			}},
		},
	}
}

// gapLaneTimeline has one lane with two clips and a 50s gap between them:
// clip1 [0, 100000), clip2 [150000, 400000).
func gapLaneTimeline() timeline.Timeline {
	return timeline.Timeline{
		TotalDurationMs: 3600000,
		Lanes: []timeline.Lane{
			{Number: 1, Label: "sideline", Clips: []timeline.Clip{
				{VideoID: "vid-1", LanePositionMs: 0, DeclaredDurationMs: 100000},
				{VideoID: "vid-2", LanePositionMs: 150000, DeclaredDurationMs: 250000},
			}},
		},
	}
}

// activate switches the engine onto videoID at positionMs and completes the
// switch: the mirror is marked ready, metadata is reported, and the fake
// clock is advanced past the debounce and seek-lock windows afterwards.
func activate(t *testing.T, eng *Engine, surfaces *MirrorProvider, clk *fakeClock, videoID timeline.VideoID, positionMs, durationMs int64) {
	t.Helper()
	surfaces.Mirror(videoID).SetReadyState(ReadyMetadata)
	if !eng.RequestSwitch(videoID, positionMs) {
		t.Fatalf("activate: switch to %s not accepted", videoID)
	}
	eng.OnOffsetMetadataAvailable(videoID, 0, durationMs)
	if got := eng.Snapshot(); got.ActiveVideo != videoID {
		t.Fatalf("activate: active video %q, want %q", got.ActiveVideo, videoID)
	}
	surfaces.Mirror(videoID).DrainCommands()
	clk.advance(time.Second)
}

func seekCommands(cmds []SurfaceCommand) []float64 {
	var out []float64
	for _, c := range cmds {
		if c.Op == "seek" {
			out = append(out, c.Seconds)
		}
	}
	return out
}

func hasCommand(cmds []SurfaceCommand, op string) bool {
	for _, c := range cmds {
		if c.Op == op {
			return true
		}
	}
	return false
}
