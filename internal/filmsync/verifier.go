package filmsync

import "log/slog"

// verifyCoverageLocked decides whether the pending switch's surface really
// covers the target position. It runs once the switch has been applied
// (surface selected) and the surface has reported its real offset/duration
// metadata; declared clip metadata may be stale, so the actually loaded
// duration caps it. Until an effective duration is known the verdict is
// deferred, not guessed.
func (e *Engine) verifyCoverageLocked() {
	p := e.pending
	if p == nil || !p.seekApplied {
		return
	}
	m, haveMeta := e.meta[p.videoID]
	if !haveMeta {
		return
	}

	var videoStartMs int64
	var declaredMs int64
	if p.clip != nil {
		videoStartMs = p.clip.LanePositionMs
		declaredMs = p.clip.DeclaredDurationMs
	} else {
		// Legacy recordings carry only a per-recording sync offset.
		videoStartMs = m.offsetMs
	}

	var effectiveMs int64
	switch {
	case declaredMs > 0 && m.hasDuration:
		effectiveMs = declaredMs
		if m.durationMs < effectiveMs {
			effectiveMs = m.durationMs
		}
	case declaredMs > 0:
		effectiveMs = declaredMs
	case m.hasDuration:
		effectiveMs = m.durationMs
	}
	if effectiveMs == 0 {
		// Not yet determined — keep waiting, do not decide.
		return
	}

	videoEndMs := videoStartMs + effectiveMs
	surface, _ := e.surfaces.SurfaceFor(p.videoID)

	if p.targetMs >= videoStartMs && p.targetMs < videoEndMs {
		e.pending = nil
		e.setPhaseLocked(PhaseStable)
		if p.resumeOnReady && surface != nil && surface.Paused() {
			surface.Play()
		}
		e.log.Debug("switch covered",
			slog.String("video_id", string(p.videoID)),
			slog.Int64("target_ms", p.targetMs))
		return
	}

	// Uncovered: keep the tracked position, surface the no-footage state,
	// and stop the media so it doesn't play unrelated footage.
	e.pending = nil
	e.setPhaseLocked(PhaseNoCoverage)
	if surface != nil && !surface.Paused() {
		surface.Pause()
	}
	if e.metrics != nil {
		e.metrics.IncNoFootage()
	}
	e.log.Info("no footage at position",
		slog.String("video_id", string(p.videoID)),
		slog.Int64("target_ms", p.targetMs),
		slog.Int64("video_start_ms", videoStartMs),
		slog.Int64("video_end_ms", videoEndMs))
}
