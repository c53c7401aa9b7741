package filmsync

import (
	"log/slog"

	"filmsync/internal/timeline"
)

// AtCurrentPosition asks RequestSwitch to keep whatever logical position is
// currently tracked instead of jumping to an explicit target.
const AtCurrentPosition int64 = -1

// RequestSwitch asks the engine to switch the active camera to the lane
// containing videoID, targeting the given logical position (milliseconds) or
// AtCurrentPosition. It returns true if the request was accepted.
//
// Requests arriving within the debounce window of the previously accepted
// request are ignored entirely: no state change, no queueing. A request for
// a video not yet known locally is parked in the depth-1 deferred slot and
// retried when the recording list refreshes. An accepted request supersedes
// any unresolved earlier one (last-request-wins) and cancels a running
// virtual playback session.
func (e *Engine) RequestSwitch(videoID timeline.VideoID, targetMs int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.requestSwitchLocked(videoID, targetMs, false)
}

// requestSwitchLocked is the single switch path. internal marks requests the
// engine generates itself (virtual playback handoff, seek-driven clip
// changes, deferred retries); those bypass the debounce window, which only
// guards user-driven requests.
func (e *Engine) requestSwitchLocked(videoID timeline.VideoID, requestedMs int64, internal bool) bool {
	if e.closed {
		return false
	}
	now := e.now()
	if !internal && now.Sub(e.lastAcceptedAt) < e.debounce {
		e.log.Debug("switch debounced", slog.String("video_id", string(videoID)))
		if e.metrics != nil {
			e.metrics.IncSwitchesDebounced()
		}
		return false
	}

	target := e.resolveTargetLocked(requestedMs)

	lane, haveLane := e.tl.LaneFor(videoID)
	_, haveMeta := e.meta[videoID]
	if !haveLane && !haveMeta {
		// Recording metadata hasn't loaded yet. Park the request; the
		// newest deferred request replaces any older unresolved one.
		e.deferred = &deferredSwitch{videoID: videoID, requestedMs: requestedMs}
		e.log.Info("switch deferred until recording list refresh",
			slog.String("video_id", string(videoID)))
		if e.metrics != nil {
			e.metrics.IncSwitchesDeferred()
		}
		return false
	}

	surface, ok := e.surfaces.SurfaceFor(videoID)
	if !ok || !surface.Available() {
		e.deferred = &deferredSwitch{videoID: videoID, requestedMs: requestedMs}
		e.log.Info("switch deferred, surface unavailable",
			slog.String("video_id", string(videoID)))
		if e.metrics != nil {
			e.metrics.IncSwitchesDeferred()
		}
		return false
	}

	// Accepted. The debounce window is measured from here.
	e.lastAcceptedAt = now
	e.cancelVirtualLocked()

	p := &pendingSwitch{
		videoID:     videoID,
		targetMs:    target,
		requestedAt: now,
		resumeOnReady: e.isPlayingLocked() ||
			e.phase == PhaseNoCoverage ||
			e.stalled,
	}

	if haveLane {
		p.laneNumber = lane.Number
		p.haveLane = true
		res := ResolveClip(lane, target, e.durationOfLocked())
		switch {
		case res.Clip != nil:
			c := *res.Clip
			p.clip = &c
		default:
			// No covering clip: pick the nearest recording purely for
			// display and let the coverage verifier classify the result.
			if c, found := NearestClip(lane, target, e.durationOfLocked()); found {
				cc := *c
				p.clip = &cc
				p.uncertain = true
			}
		}
	}

	switch {
	case p.clip != nil:
		p.seekSeconds = float64(target-p.clip.LanePositionMs) / 1000.0
	default:
		// Legacy single-clip sync model: the recording is only known by its
		// per-recording offset, so translate the current surface time
		// through the old and new offsets.
		p.laneNumber = e.activeLane
		p.haveLane = e.haveLane
		p.uncertain = true
		if cur := e.currentSurfaceLocked(); cur != nil {
			oldOffset := float64(e.meta[e.activeVideo].offsetMs) / 1000.0
			newOffset := float64(e.meta[videoID].offsetMs) / 1000.0
			p.seekSeconds = cur.CurrentTime() + oldOffset - newOffset
		}
	}
	if p.seekSeconds < 0 {
		p.seekSeconds = 0
	}

	e.pending = p
	e.setPhaseLocked(PhaseSwitching)
	if e.metrics != nil {
		e.metrics.IncSwitchesAccepted()
	}
	e.log.Debug("switch accepted",
		slog.String("video_id", string(videoID)),
		slog.Int64("target_ms", target),
		slog.Bool("uncertain", p.uncertain))

	// Seeking is deferred until the surface has metadata; until then the
	// request sits latent and OnSurfaceReady picks it up.
	if surface.ReadyState() >= ReadyMetadata {
		e.completeSwitchLocked(surface)
	}
	return true
}

// OnSurfaceReady notifies the engine that a surface reached readyState >= 1
// (metadata loaded). If a pending switch is latent on that surface, its seek
// is applied now. Ready events with no matching pending switch are stale and
// dropped.
func (e *Engine) OnSurfaceReady(videoID timeline.VideoID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	p := e.pending
	if p == nil || p.videoID != videoID || p.seekApplied {
		return
	}
	surface, ok := e.surfaces.SurfaceFor(videoID)
	if !ok || surface.ReadyState() < ReadyMetadata {
		return
	}
	e.completeSwitchLocked(surface)
}

// completeSwitchLocked applies the pending switch's seek exactly once, makes
// the surface active, and engages the seek lock. The tracked logical
// position comes from the switch target, never recomputed from the surface,
// so the two cannot drift during the handover.
func (e *Engine) completeSwitchLocked(surface VideoSurface) {
	p := e.pending
	if p == nil || p.seekApplied {
		return
	}
	surface.Seek(p.seekSeconds)
	p.seekApplied = true

	e.activeVideo = p.videoID
	e.activeClip = p.clip
	e.activeLane = p.laneNumber
	e.haveLane = p.haveLane
	e.setPositionLocked(p.targetMs)
	e.seekLockUntil = e.now().Add(e.seekLock)

	if p.resumeOnReady && surface.Paused() {
		surface.Play()
	}
	e.stalled = false

	e.log.Debug("switch applied",
		slog.String("video_id", string(p.videoID)),
		slog.Float64("local_seek_s", p.seekSeconds))

	e.verifyCoverageLocked()
}

// Seek moves the logical game clock to positionMs and re-resolves the active
// lane there: an in-place seek if the active clip still covers it, an
// internal switch if another clip does, virtual playback if the position
// falls in a gap with a next clip while playing, and the no-footage state
// otherwise. Seeking elsewhere clears any in-flight pending switch.
func (e *Engine) Seek(positionMs int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	if positionMs < 0 {
		positionMs = 0
	}
	// stalled marks playback the engine itself stopped (clip boundary,
	// virtual traversal); the play intent carries through the scrub.
	playing := e.isPlayingLocked() || e.stalled
	e.cancelVirtualLocked()
	e.pending = nil
	if e.phase == PhaseSwitching {
		e.setPhaseLocked(PhaseStable)
	}
	e.setPositionLocked(positionMs)

	if !e.haveLane {
		return
	}
	lane, ok := e.tl.LaneByNumber(e.activeLane)
	if !ok {
		return
	}
	res := ResolveClip(lane, positionMs, e.durationOfLocked())
	switch {
	case res.Clip != nil && res.Clip.VideoID == e.activeVideo:
		c := *res.Clip
		e.activeClip = &c
		if surface := e.currentSurfaceLocked(); surface != nil {
			surface.Seek(float64(positionMs-c.LanePositionMs) / 1000.0)
			e.seekLockUntil = e.now().Add(e.seekLock)
			if playing && surface.Paused() {
				surface.Play()
			}
		}
		e.stalled = false
		e.setPhaseLocked(PhaseStable)
	case res.Clip != nil:
		e.requestSwitchLocked(res.Clip.VideoID, positionMs, true)
	case res.HasNext && playing:
		e.startVirtualLocked(positionMs)
	default:
		// Tail gap, or mid-gap while paused: nothing can play here.
		if surface := e.currentSurfaceLocked(); surface != nil && !surface.Paused() {
			surface.Pause()
		}
		e.setPhaseLocked(PhaseNoCoverage)
		if e.metrics != nil {
			e.metrics.IncNoFootage()
		}
	}
}

// resolveTargetLocked picks the effective switch target: the explicit
// argument, else the in-flight pending target, else the tracked logical
// position, else the active surface's time translated through its known
// offset, else 0.
func (e *Engine) resolveTargetLocked(requestedMs int64) int64 {
	if requestedMs >= 0 {
		return requestedMs
	}
	if e.pending != nil {
		return e.pending.targetMs
	}
	if e.posKnown {
		return e.logicalPosMs
	}
	if surface := e.currentSurfaceLocked(); surface != nil {
		localMs := int64(surface.CurrentTime() * 1000)
		if e.activeClip != nil {
			return e.activeClip.LanePositionMs + localMs
		}
		if m, ok := e.meta[e.activeVideo]; ok {
			return m.offsetMs + localMs
		}
	}
	return 0
}
