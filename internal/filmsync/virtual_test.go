package filmsync

import (
	"testing"
	"time"

	"filmsync/internal/timeline"
)

// stepVirtual advances the running virtual session one synthetic tick at the
// fake clock's current time. The test engine's tick interval is effectively
// infinite, so this is the only way the clock moves.
func stepVirtual(eng *Engine, clk *fakeClock) {
	eng.mu.Lock()
	if s := eng.virtual; s != nil {
		eng.virtualStepLocked(s, clk.now())
	}
	eng.mu.Unlock()
}

// Scenario: scrubbing into the gap between two clips while playing starts
// virtual playback at the destination; when the synthetic clock reaches the
// next clip the session hands off to a real switch.
func TestVirtual_gapPlaythroughAndHandoff(t *testing.T) {
	eng, surfaces, clk := newTestEngine(t, gapLaneTimeline())
	activate(t, eng, surfaces, clk, "vid-1", 0, 100000)
	surfaces.Mirror("vid-1").SetPaused(false)
	surfaces.Mirror("vid-2").SetReadyState(ReadyMetadata)
	eng.OnOffsetMetadataAvailable("vid-2", 0, 250000)

	eng.Seek(120000)
	got := eng.Snapshot()
	if !got.VirtualActive || got.Phase != "virtual" || got.PositionMs != 120000 {
		t.Fatalf("expected virtual playback at 120000, got %+v", got)
	}

	// Still in the gap after 10 simulated seconds.
	clk.advance(10 * time.Second)
	stepVirtual(eng, clk)
	got = eng.Snapshot()
	if !got.VirtualActive || got.PositionMs != 130000 {
		t.Fatalf("expected virtual position 130000, got %+v", got)
	}

	// 35s in, the next clip covers the simulated position: handoff.
	clk.advance(25 * time.Second)
	stepVirtual(eng, clk)
	got = eng.Snapshot()
	if got.VirtualActive {
		t.Fatal("session must terminate on handoff")
	}
	if got.ActiveVideo != "vid-2" || got.Phase != "stable" || got.PositionMs != 155000 {
		t.Fatalf("expected handoff to vid-2 at 155000, got %+v", got)
	}
	cmds := surfaces.Mirror("vid-2").DrainCommands()
	seeks := seekCommands(cmds)
	if len(seeks) != 1 || seeks[0] != 5.0 {
		t.Errorf("expected handoff seek 5s into vid-2, got %v", seeks)
	}
	if !hasCommand(cmds, "play") {
		t.Error("playback should continue after handoff")
	}
}

// The published virtual position never decreases, even if the wall clock
// misbehaves.
func TestVirtual_positionMonotonic(t *testing.T) {
	eng, surfaces, clk := newTestEngine(t, gapLaneTimeline())
	activate(t, eng, surfaces, clk, "vid-1", 0, 100000)
	surfaces.Mirror("vid-1").SetPaused(false)

	eng.Seek(120000)
	clk.advance(10 * time.Second)
	stepVirtual(eng, clk)
	if got := eng.Snapshot(); got.PositionMs != 130000 {
		t.Fatalf("expected 130000, got %d", got.PositionMs)
	}

	clk.advance(-5 * time.Second)
	stepVirtual(eng, clk)
	if got := eng.Snapshot(); got.PositionMs != 130000 {
		t.Errorf("position regressed to %d", got.PositionMs)
	}
}

// A finite session that reaches the end of the game clock without finding
// footage terminates into the no-footage state, without handoff.
func TestVirtual_stopAtTimelineEnd(t *testing.T) {
	eng, surfaces, clk := newTestEngine(t, gapLaneTimeline())
	activate(t, eng, surfaces, clk, "vid-1", 0, 100000)
	surfaces.Mirror("vid-1").SetPaused(false)
	eng.Seek(120000)

	// The upcoming clip disappears with a recording list refresh; the
	// session keeps running but now has nothing ahead of it.
	tl := gapLaneTimeline()
	tl.Lanes[0].Clips = tl.Lanes[0].Clips[:1]
	eng.ReplaceTimeline(tl)
	if got := eng.Snapshot(); !got.VirtualActive {
		t.Fatal("session should survive a refresh that keeps its lane")
	}

	clk.advance(2 * time.Hour) // far past TotalDurationMs
	stepVirtual(eng, clk)

	got := eng.Snapshot()
	if got.VirtualActive {
		t.Fatal("session must stop at the end of the game clock")
	}
	if !got.NoFootage {
		t.Errorf("expected no-footage state at the stop, got %+v", got)
	}
	if !hasCommand(surfaces.Mirror("vid-1").DrainCommands(), "pause") {
		t.Error("surface should pause when the session stops")
	}
}

// Scenario: a paused scrub into a gap shows no-footage directly; virtual
// playback only runs while playing.
func TestVirtual_notStartedWhilePaused(t *testing.T) {
	eng, surfaces, clk := newTestEngine(t, gapLaneTimeline())
	activate(t, eng, surfaces, clk, "vid-1", 0, 100000)

	eng.Seek(120000)

	got := eng.Snapshot()
	if got.VirtualActive {
		t.Fatal("paused scrub into a gap must not start virtual playback")
	}
	if !got.NoFootage || got.PositionMs != 120000 {
		t.Errorf("expected no-footage at 120000, got %+v", got)
	}
}

func TestVirtual_cancelledByUserSwitch(t *testing.T) {
	eng, surfaces, clk := newTestEngine(t, gapLaneTimeline())
	activate(t, eng, surfaces, clk, "vid-1", 0, 100000)
	surfaces.Mirror("vid-1").SetPaused(false)
	eng.Seek(120000)
	if got := eng.Snapshot(); !got.VirtualActive {
		t.Fatal("expected virtual playback running")
	}

	clk.advance(time.Second)
	if !eng.RequestSwitch("vid-1", 50000) {
		t.Fatal("switch should be accepted")
	}
	got := eng.Snapshot()
	if got.VirtualActive {
		t.Fatal("user switch must cancel the virtual session")
	}
	if got.PositionMs != 50000 || got.ActiveVideo != "vid-1" {
		t.Errorf("unexpected state after switch: %+v", got)
	}
}

// A tick from a superseded session is discarded by identity and must not
// move the position.
func TestVirtual_staleTickIgnored(t *testing.T) {
	eng, surfaces, clk := newTestEngine(t, gapLaneTimeline())
	activate(t, eng, surfaces, clk, "vid-1", 0, 100000)
	surfaces.Mirror("vid-1").SetPaused(false)
	eng.Seek(120000)

	eng.mu.Lock()
	stale := eng.virtual
	eng.mu.Unlock()

	eng.Seek(50000) // cancels the session, seeks in place

	clk.advance(time.Minute)
	eng.mu.Lock()
	eng.virtualStepLocked(stale, clk.now())
	eng.mu.Unlock()

	got := eng.Snapshot()
	if got.PositionMs != 50000 || got.VirtualActive {
		t.Errorf("stale tick changed state: %+v", got)
	}
}

func TestVirtual_cancelledOnClose(t *testing.T) {
	eng, surfaces, clk := newTestEngine(t, gapLaneTimeline())
	activate(t, eng, surfaces, clk, "vid-1", 0, 100000)
	surfaces.Mirror("vid-1").SetPaused(false)
	eng.Seek(120000)

	eng.Close()

	if got := eng.Snapshot(); got.VirtualActive {
		t.Error("Close must stop the virtual session")
	}
	if eng.RequestSwitch("vid-1", 0) {
		t.Error("closed engine must reject switches")
	}
}

// Scenario: real playback runs off the end of a clip into a gap, the media
// element stops, and the virtual clock carries the position across the gap.
// The handoff switch must resume playback on the next clip even though
// nothing is playing by then.
func TestVirtual_handoffResumesStalledPlayback(t *testing.T) {
	eng, surfaces, clk := newTestEngine(t, gapLaneTimeline())
	activate(t, eng, surfaces, clk, "vid-1", 0, 100000)
	surfaces.Mirror("vid-1").SetPaused(false)
	surfaces.Mirror("vid-2").SetReadyState(ReadyMetadata)
	eng.OnOffsetMetadataAvailable("vid-2", 0, 250000)

	eng.OnTimeUpdate("vid-1", 100.0)
	got := eng.Snapshot()
	if !got.VirtualActive || got.PositionMs != 100000 {
		t.Fatalf("expected virtual playback at the clip boundary, got %+v", got)
	}
	if !surfaces.Mirror("vid-1").Paused() {
		t.Fatal("media should be stopped while the virtual clock runs")
	}

	clk.advance(60 * time.Second)
	stepVirtual(eng, clk)
	got = eng.Snapshot()
	if got.ActiveVideo != "vid-2" || got.Phase != "stable" || got.PositionMs != 160000 {
		t.Fatalf("expected handoff to vid-2 at 160000, got %+v", got)
	}
	cmds := surfaces.Mirror("vid-2").DrainCommands()
	seeks := seekCommands(cmds)
	if len(seeks) != 1 || seeks[0] != 10.0 {
		t.Errorf("expected handoff seek 10s into vid-2, got %v", seeks)
	}
	if !hasCommand(cmds, "play") {
		t.Error("handoff must resume playback that stalled at the boundary")
	}
}

// The virtual clock owns the position during gap traversal; the outgoing
// surface is paused the moment the session starts so no real footage plays
// underneath it.
func TestVirtual_outgoingSurfacePausedOnEntry(t *testing.T) {
	eng, surfaces, clk := newTestEngine(t, gapLaneTimeline())
	activate(t, eng, surfaces, clk, "vid-1", 0, 100000)
	surfaces.Mirror("vid-1").SetPaused(false)

	eng.Seek(120000)
	if got := eng.Snapshot(); !got.VirtualActive {
		t.Fatal("expected virtual playback")
	}
	if !surfaces.Mirror("vid-1").Paused() {
		t.Error("outgoing surface must pause for the traversal")
	}
	if !hasCommand(surfaces.Mirror("vid-1").DrainCommands(), "pause") {
		t.Error("expected a pause command on gap entry")
	}
}

// A session starting past the end of the game clock (clip data hanging past
// TotalDurationMs) stops in place: the published position never drops below
// the session start.
func TestVirtual_stopNeverBehindSessionStart(t *testing.T) {
	tl := gapLaneTimeline()
	tl.TotalDurationMs = 90000
	eng, surfaces, clk := newTestEngine(t, tl)
	activate(t, eng, surfaces, clk, "vid-1", 0, 100000)
	surfaces.Mirror("vid-1").SetPaused(false)

	eng.Seek(120000)
	stepVirtual(eng, clk)

	got := eng.Snapshot()
	if got.VirtualActive {
		t.Fatal("session past the game clock must stop immediately")
	}
	if got.PositionMs != 120000 {
		t.Errorf("position moved backwards to %d", got.PositionMs)
	}
	if !got.NoFootage {
		t.Errorf("expected no-footage state, got %+v", got)
	}
}

// When the handoff target's surface is unusable the switch parks in the
// deferred slot and the engine settles in the stable phase; the retry on the
// next recording list refresh still resumes playback.
func TestVirtual_handoffDefersOnUnavailableSurface(t *testing.T) {
	eng, surfaces, clk := newTestEngine(t, gapLaneTimeline())
	activate(t, eng, surfaces, clk, "vid-1", 0, 100000)
	surfaces.Mirror("vid-1").SetPaused(false)
	surfaces.Mirror("vid-2").SetAvailable(false)

	eng.Seek(120000)
	clk.advance(60 * time.Second)
	stepVirtual(eng, clk)

	got := eng.Snapshot()
	if got.VirtualActive || got.Phase != "stable" {
		t.Fatalf("expected stable phase with the switch parked, got %+v", got)
	}
	if got.PositionMs != 180000 {
		t.Errorf("expected position held at 180000, got %d", got.PositionMs)
	}

	surfaces.Mirror("vid-2").SetAvailable(true)
	surfaces.Mirror("vid-2").SetReadyState(ReadyMetadata)
	eng.ReplaceTimeline(gapLaneTimeline())

	got = eng.Snapshot()
	if got.ActiveVideo != "vid-2" || got.PositionMs != 180000 {
		t.Fatalf("expected deferred handoff to land on vid-2 at 180000, got %+v", got)
	}
	if !hasCommand(surfaces.Mirror("vid-2").DrainCommands(), "play") {
		t.Error("retried handoff must still resume playback")
	}
}

func TestVirtual_sessionStopsWhenLaneRemoved(t *testing.T) {
	eng, surfaces, clk := newTestEngine(t, gapLaneTimeline())
	activate(t, eng, surfaces, clk, "vid-1", 0, 100000)
	surfaces.Mirror("vid-1").SetPaused(false)
	eng.Seek(120000)

	eng.ReplaceTimeline(timeline.Timeline{
		TotalDurationMs: 3600000,
		Lanes: []timeline.Lane{
			{Number: 2, Label: "end zone", Clips: []timeline.Clip{
				{VideoID: "vid-9", LanePositionMs: 0, DeclaredDurationMs: 100000},
			}},
		},
	})

	if got := eng.Snapshot(); got.VirtualActive {
		t.Error("session must stop when its lane disappears")
	}
}
