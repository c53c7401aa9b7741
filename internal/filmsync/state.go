package filmsync

import (
	"time"

	"filmsync/internal/timeline"
)

// Phase is the engine's single tagged control state. The original product
// tracked "mid-switch", "gap fill running" and "seek pending" as independent
// booleans; collapsing them into one tag makes contradictory combinations
// unrepresentable.
type Phase int

const (
	// PhaseStable: a surface is selected and covers the tracked position.
	PhaseStable Phase = iota
	// PhaseSwitching: a pending switch is waiting for readiness or coverage
	// verification.
	PhaseSwitching
	// PhaseNoCoverage: no camera has footage at the tracked position; the
	// host shows a "no footage" overlay.
	PhaseNoCoverage
	// PhaseVirtual: a synthetic clock is advancing through a gap.
	PhaseVirtual
)

// String implements fmt.Stringer.
func (p Phase) String() string {
	switch p {
	case PhaseStable:
		return "stable"
	case PhaseSwitching:
		return "switching"
	case PhaseNoCoverage:
		return "no_coverage"
	case PhaseVirtual:
		return "virtual"
	default:
		return "unknown"
	}
}

// pendingSwitch exists only between "switch requested" and
// "switch resolved or superseded". At most one exists at a time.
type pendingSwitch struct {
	videoID     timeline.VideoID
	targetMs    int64
	requestedAt time.Time

	laneNumber int
	haveLane   bool

	// clip is an owned copy of the resolved clip, nil on the legacy
	// offset-only path.
	clip *timeline.Clip

	// uncertain marks a nearest-clip fallback: the chosen recording was
	// picked for display only and coverage must still be verified.
	uncertain bool

	resumeOnReady bool
	seekSeconds   float64
	seekApplied   bool
}

// deferredSwitch is the depth-1 retry slot for switches whose target video
// is not yet known locally. A newer deferred request replaces an older one;
// the slot is retried when the timeline snapshot refreshes.
type deferredSwitch struct {
	videoID     timeline.VideoID
	requestedMs int64
}

// virtualSession drives the synthetic clock through one gap. At most one
// exists at a time; starting a session cancels any pending switch and vice
// versa.
type virtualSession struct {
	laneNumber int
	startMs    int64
	startedAt  time.Time

	stopAtMs int64
	hasStop  bool

	// lastPublishedMs keeps the published position monotonic even if the
	// wall clock misbehaves between ticks.
	lastPublishedMs int64

	ticker  *time.Ticker
	done    chan struct{}
	stopped bool
}

// surfaceMeta holds the real offset/duration a surface reported for a video.
type surfaceMeta struct {
	offsetMs    int64
	durationMs  int64
	hasDuration bool
}
