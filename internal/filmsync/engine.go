// Package filmsync implements the multi-camera timeline synchronization
// engine behind the game-film review tool. Several unsynchronized cameras
// are presented as one continuous, seekable recording keyed to a single
// logical game clock: the engine resolves which clip covers a position,
// orchestrates camera switches, verifies coverage against actually loaded
// durations, and simulates playback through ranges no camera recorded.
package filmsync

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"filmsync/internal/platform/metrics"
	"filmsync/internal/timeline"
)

// Engine timing defaults. Both windows guard against event storms: the
// debounce window rejects rapid repeated switch clicks, the seek lock keeps
// the surface's own time events from overwriting a just-performed seek.
const (
	DefaultDebounceWindow = 500 * time.Millisecond
	DefaultSeekLockWindow = 500 * time.Millisecond
	DefaultVirtualTick    = 100 * time.Millisecond
)

// Options configures an Engine. Zero values select defaults.
type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics // may be nil to disable metric recording

	DebounceWindow time.Duration
	SeekLockWindow time.Duration
	VirtualTick    time.Duration

	// Now overrides the wall clock, for tests.
	Now func() time.Time

	// OnPositionChanged is invoked whenever the tracked logical position
	// moves. Called with the engine lock held; must not re-enter the engine.
	OnPositionChanged func(positionMs int64)

	// OnNoFootage is invoked when the "no footage" overlay state toggles.
	// Called with the engine lock held; must not re-enter the engine.
	OnNoFootage func(shown bool)
}

// Engine owns all switch/playback state for one film-room session. Every
// entry point — host operations, surface events, virtual ticks — serializes
// through one mutex, so there is never more than one active control path.
type Engine struct {
	mu sync.Mutex

	log      *slog.Logger
	metrics  *metrics.Metrics
	surfaces SurfaceProvider

	tl timeline.Timeline

	activeVideo timeline.VideoID
	activeClip  *timeline.Clip // owned copy, nil on the legacy offset path
	activeLane  int
	haveLane    bool

	logicalPosMs int64
	posKnown     bool

	phase    Phase
	pending  *pendingSwitch
	deferred *deferredSwitch
	virtual  *virtualSession

	meta map[timeline.VideoID]surfaceMeta

	lastAcceptedAt time.Time
	seekLockUntil  time.Time

	// stalled is set whenever the engine itself stopped real playback —
	// off the end of a clip with nothing after it, or into a virtual
	// traversal; the next completed switch resumes playback and clears it.
	stalled bool

	debounce  time.Duration
	seekLock  time.Duration
	tickEvery time.Duration
	now       func() time.Time

	onPosition  func(int64)
	onNoFootage func(bool)

	closed bool
}

// NewEngine returns an engine reading lanes from the given snapshot and
// media from the given provider.
func NewEngine(tl timeline.Timeline, surfaces SurfaceProvider, opts Options) *Engine {
	e := &Engine{
		log:         opts.Logger,
		metrics:     opts.Metrics,
		surfaces:    surfaces,
		tl:          tl,
		meta:        make(map[timeline.VideoID]surfaceMeta),
		debounce:    opts.DebounceWindow,
		seekLock:    opts.SeekLockWindow,
		tickEvery:   opts.VirtualTick,
		now:         opts.Now,
		onPosition:  opts.OnPositionChanged,
		onNoFootage: opts.OnNoFootage,
	}
	if e.log == nil {
		e.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if e.debounce <= 0 {
		e.debounce = DefaultDebounceWindow
	}
	if e.seekLock <= 0 {
		e.seekLock = DefaultSeekLockWindow
	}
	if e.tickEvery <= 0 {
		e.tickEvery = DefaultVirtualTick
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Snapshot is the engine state exposed to the host UI.
type Snapshot struct {
	Phase         string           `json:"phase"`
	ActiveVideo   timeline.VideoID `json:"active_video,omitempty"`
	PositionMs    int64            `json:"position_ms"`
	NoFootage     bool             `json:"no_footage"`
	SwitchPending bool             `json:"switch_pending"`
	PendingVideo  timeline.VideoID `json:"pending_video,omitempty"`
	VirtualActive bool             `json:"virtual_active"`
}

// Snapshot reports the current control state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := Snapshot{
		Phase:         e.phase.String(),
		ActiveVideo:   e.activeVideo,
		PositionMs:    e.logicalPosMs,
		NoFootage:     e.phase == PhaseNoCoverage,
		SwitchPending: e.pending != nil,
		VirtualActive: e.virtual != nil,
	}
	if e.pending != nil {
		s.PendingVideo = e.pending.videoID
	}
	return s
}

// ReplaceTimeline swaps in a new read-only lane snapshot, e.g. after a new
// recording finished uploading. In-flight state referencing clip identities
// that no longer exist is invalidated, and the deferred switch slot is
// retried against the refreshed recording list.
func (e *Engine) ReplaceTimeline(tl timeline.Timeline) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.tl = tl

	// Re-anchor the active surface in the new snapshot.
	if e.activeVideo != "" {
		if lane, ok := tl.LaneFor(e.activeVideo); ok {
			e.activeLane = lane.Number
			e.haveLane = true
			e.activeClip = nil
			for i := range lane.Clips {
				if lane.Clips[i].VideoID == e.activeVideo {
					c := lane.Clips[i]
					e.activeClip = &c
					break
				}
			}
		} else {
			e.haveLane = false
			e.activeClip = nil
		}
	}

	// A pending switch whose clip vanished with the old snapshot is stale;
	// discard it silently.
	if e.pending != nil && e.pending.clip != nil {
		if _, ok := tl.LaneFor(e.pending.videoID); !ok {
			e.pending = nil
			if e.phase == PhaseSwitching {
				e.setPhaseLocked(PhaseStable)
			}
		}
	}

	if e.virtual != nil {
		if _, ok := tl.LaneByNumber(e.virtual.laneNumber); !ok {
			e.stopVirtualLocked(e.virtual)
			e.setPhaseLocked(PhaseStable)
		}
	}

	if d := e.deferred; d != nil {
		e.deferred = nil
		e.log.Debug("retrying deferred switch", "video_id", string(d.videoID))
		e.requestSwitchLocked(d.videoID, d.requestedMs, true)
	}
}

// OnOffsetMetadataAvailable records a surface's real offset and duration,
// reported by the host once the media's metadata has loaded. A duration of
// 0 means "still unknown". Coverage of a completed pending switch is
// (re)verified against the new values.
func (e *Engine) OnOffsetMetadataAvailable(videoID timeline.VideoID, offsetMs, durationMs int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.meta[videoID] = surfaceMeta{
		offsetMs:    offsetMs,
		durationMs:  durationMs,
		hasDuration: durationMs > 0,
	}
	e.log.Debug("offset metadata",
		slog.String("video_id", string(videoID)),
		slog.Int64("offset_ms", offsetMs),
		slog.Int64("duration_ms", durationMs))
	if e.pending != nil && e.pending.videoID == videoID && e.pending.seekApplied {
		e.verifyCoverageLocked()
	}
}

// OnTimeUpdate ingests an ambient "current time changed" event from a
// surface. Updates from anything but the active surface are stale and
// ignored, as is anything inside the seek lock window. While the virtual
// clock runs it owns the position and ambient updates are ignored too.
func (e *Engine) OnTimeUpdate(videoID timeline.VideoID, seconds float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || videoID != e.activeVideo {
		return
	}
	if e.phase == PhaseVirtual {
		return
	}
	if e.now().Before(e.seekLockUntil) {
		return
	}

	localMs := int64(seconds * 1000)
	var pos int64
	switch {
	case e.activeClip != nil:
		pos = e.activeClip.LanePositionMs + localMs
	default:
		m, ok := e.meta[videoID]
		if !ok {
			return
		}
		pos = m.offsetMs + localMs
	}
	e.setPositionLocked(pos)

	// Detect real playback running off the end of the active clip.
	if e.activeClip == nil || e.pending != nil || !e.isPlayingLocked() {
		return
	}
	eff := effectiveDurationMs(*e.activeClip, e.durationOfLocked())
	if eff <= 0 || localMs < eff {
		return
	}
	lane, ok := e.tl.LaneByNumber(e.activeLane)
	if !ok {
		return
	}
	res := ResolveClip(lane, pos, e.durationOfLocked())
	switch {
	case res.Clip != nil && res.Clip.VideoID != e.activeVideo:
		// The next clip starts exactly where this one ends.
		e.requestSwitchLocked(res.Clip.VideoID, pos, true)
	case res.InGap && res.HasNext:
		e.startVirtualLocked(pos)
	case res.InGap:
		// Tail gap: stop at the boundary and surface the overlay.
		if surface := e.currentSurfaceLocked(); surface != nil && !surface.Paused() {
			surface.Pause()
		}
		e.stalled = true
		e.setPhaseLocked(PhaseNoCoverage)
		if e.metrics != nil {
			e.metrics.IncNoFootage()
		}
	}
}

// Close tears the engine down: the virtual ticker is stopped synchronously
// and in-flight switches are dropped so no late seek is ever applied.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.cancelVirtualLocked()
	e.pending = nil
	e.deferred = nil
}

func (e *Engine) setPhaseLocked(p Phase) {
	if e.phase == p {
		return
	}
	was := e.phase
	e.phase = p
	e.log.Debug("phase change", slog.String("from", was.String()), slog.String("to", p.String()))
	if e.onNoFootage != nil {
		if p == PhaseNoCoverage {
			e.onNoFootage(true)
		} else if was == PhaseNoCoverage {
			e.onNoFootage(false)
		}
	}
}

func (e *Engine) setPositionLocked(positionMs int64) {
	e.logicalPosMs = positionMs
	e.posKnown = true
	if e.onPosition != nil {
		e.onPosition(positionMs)
	}
}

func (e *Engine) durationOfLocked() DurationFn {
	return func(id timeline.VideoID) (int64, bool) {
		m, ok := e.meta[id]
		if !ok || !m.hasDuration {
			return 0, false
		}
		return m.durationMs, true
	}
}

func (e *Engine) currentSurfaceLocked() VideoSurface {
	if e.activeVideo == "" {
		return nil
	}
	surface, ok := e.surfaces.SurfaceFor(e.activeVideo)
	if !ok {
		return nil
	}
	return surface
}

func (e *Engine) isPlayingLocked() bool {
	surface := e.currentSurfaceLocked()
	return surface != nil && surface.Available() && !surface.Paused()
}
