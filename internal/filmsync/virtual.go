package filmsync

import (
	"log/slog"
	"time"
)

// startVirtualLocked opens a virtual playback session at startMs: a
// synthetic clock advancing at wall-clock rate through a range no camera
// recorded. No real media plays during traversal: the outgoing surface is
// paused and the play intent survives as the stalled flag, so the handoff
// switch resumes playback. Starting a session cancels any prior session and
// any pending switch (single-session invariant).
func (e *Engine) startVirtualLocked(startMs int64) {
	resume := e.isPlayingLocked() || e.stalled
	e.cancelVirtualLocked()
	e.pending = nil

	if surface := e.currentSurfaceLocked(); surface != nil && !surface.Paused() {
		surface.Pause()
	}
	e.stalled = resume

	s := &virtualSession{
		laneNumber:      e.activeLane,
		startMs:         startMs,
		startedAt:       e.now(),
		lastPublishedMs: startMs,
		done:            make(chan struct{}),
	}
	if e.tl.TotalDurationMs > 0 {
		// Never simulate past the end of the game clock — and never
		// behind the session start, if clip data sits past that end.
		s.stopAtMs = e.tl.TotalDurationMs
		if s.stopAtMs < startMs {
			s.stopAtMs = startMs
		}
		s.hasStop = true
	}
	s.ticker = time.NewTicker(e.tickEvery)
	e.virtual = s
	e.setPhaseLocked(PhaseVirtual)
	if e.metrics != nil {
		e.metrics.IncVirtualSessions()
	}
	e.log.Debug("virtual playback started",
		slog.Int64("start_ms", startMs),
		slog.Int("lane", s.laneNumber))

	go e.runVirtual(s)
}

func (e *Engine) runVirtual(s *virtualSession) {
	for {
		select {
		case <-s.done:
			return
		case <-s.ticker.C:
			e.mu.Lock()
			e.virtualStepLocked(s, e.now())
			e.mu.Unlock()
		}
	}
}

// virtualStepLocked advances the synthetic clock one tick. Ticks from a
// superseded session are discarded by identity. The published position is
// monotonic non-decreasing. On each tick the lane is re-resolved: the
// session hands off to the switch controller the instant a real clip covers
// the simulated position, and terminates without handoff once the stop
// position is reached.
func (e *Engine) virtualStepLocked(s *virtualSession, now time.Time) {
	if e.closed || e.virtual != s {
		return
	}

	simulatedMs := s.startMs + now.Sub(s.startedAt).Milliseconds()
	if simulatedMs < s.lastPublishedMs {
		simulatedMs = s.lastPublishedMs
	}
	if s.hasStop && simulatedMs > s.stopAtMs {
		simulatedMs = s.stopAtMs
	}
	s.lastPublishedMs = simulatedMs
	e.setPositionLocked(simulatedMs)

	lane, ok := e.tl.LaneByNumber(s.laneNumber)
	if !ok {
		e.stopVirtualLocked(s)
		e.setPhaseLocked(PhaseStable)
		return
	}

	res := ResolveClip(lane, simulatedMs, e.durationOfLocked())
	switch {
	case res.Clip != nil:
		videoID := res.Clip.VideoID
		e.stopVirtualLocked(s)
		e.log.Debug("virtual playback handoff",
			slog.String("video_id", string(videoID)),
			slog.Int64("position_ms", simulatedMs))
		if !e.requestSwitchLocked(videoID, simulatedMs, true) && e.phase == PhaseVirtual {
			// Deferred handoff: the target surface isn't usable yet. The
			// deferred slot holds the switch; the session is already gone.
			e.setPhaseLocked(PhaseStable)
		}
	case s.hasStop && simulatedMs >= s.stopAtMs:
		e.stopVirtualLocked(s)
		if surface := e.currentSurfaceLocked(); surface != nil && !surface.Paused() {
			surface.Pause()
		}
		e.setPhaseLocked(PhaseNoCoverage)
		if e.metrics != nil {
			e.metrics.IncNoFootage()
		}
	}
}

// stopVirtualLocked tears a session down: the ticker is stopped and the
// goroutine released synchronously, so no timer outlives its session.
func (e *Engine) stopVirtualLocked(s *virtualSession) {
	if s.stopped {
		return
	}
	s.stopped = true
	s.ticker.Stop()
	close(s.done)
	if e.virtual == s {
		e.virtual = nil
	}
}

// cancelVirtualLocked stops whatever session is running, if any.
func (e *Engine) cancelVirtualLocked() {
	if e.virtual != nil {
		e.stopVirtualLocked(e.virtual)
	}
}
