package filmsync

import "filmsync/internal/timeline"

// DurationFn reports the actually loaded duration (milliseconds) for a
// video, if the surface has reported one. Declared clip metadata may be
// stale; once a real duration is known the smaller of the two wins.
type DurationFn func(timeline.VideoID) (int64, bool)

// Resolution is the answer to "what does this lane show at this position":
// exactly one of a covering clip, a gap with a known next clip, or a tail
// gap with nothing left in the lane.
type Resolution struct {
	// Clip is the covering clip, nil when the position is in a gap.
	Clip *timeline.Clip

	// InGap is true when no clip covers the position.
	InGap bool

	// NextClipStartMs is the lane position of the earliest clip starting
	// after the queried position. Only meaningful when HasNext is true;
	// it is what permits or forbids virtual playback through the gap.
	NextClipStartMs int64
	HasNext         bool
}

// effectiveDurationMs returns min(declared, actual) once the surface has
// reported a real duration, and the declared duration provisionally before.
func effectiveDurationMs(c timeline.Clip, durationOf DurationFn) int64 {
	if durationOf != nil {
		if actual, ok := durationOf(c.VideoID); ok && actual < c.DeclaredDurationMs {
			return actual
		}
	}
	return c.DeclaredDurationMs
}

// ResolveClip maps a lane and a logical timeline position to either the
// covering clip or a gap descriptor. Clips are expected to be ordered and
// non-overlapping; if the data ever violates that, the first clip in list
// order wins. Overlap is not repaired here.
func ResolveClip(lane timeline.Lane, positionMs int64, durationOf DurationFn) Resolution {
	nextStart := int64(-1)
	for i := range lane.Clips {
		c := &lane.Clips[i]
		if positionMs >= c.LanePositionMs {
			if positionMs < c.LanePositionMs+effectiveDurationMs(*c, durationOf) {
				return Resolution{Clip: c}
			}
			continue
		}
		if nextStart == -1 || c.LanePositionMs < nextStart {
			nextStart = c.LanePositionMs
		}
	}
	if nextStart >= 0 {
		return Resolution{InGap: true, NextClipStartMs: nextStart, HasNext: true}
	}
	return Resolution{InGap: true}
}

// NearestClip returns the clip closest to the given position: distance is 0
// inside a clip, otherwise the distance to the nearest edge, ties broken by
// the earliest lane position. It exists purely as a display fallback when a
// switch target lane has no covering clip; it must never stand in for the
// covered/uncovered classification done by ResolveClip.
func NearestClip(lane timeline.Lane, positionMs int64, durationOf DurationFn) (*timeline.Clip, bool) {
	var best *timeline.Clip
	var bestDist int64
	for i := range lane.Clips {
		c := &lane.Clips[i]
		d := edgeDistance(*c, positionMs, durationOf)
		if best == nil || d < bestDist || (d == bestDist && c.LanePositionMs < best.LanePositionMs) {
			best = c
			bestDist = d
		}
	}
	return best, best != nil
}

func edgeDistance(c timeline.Clip, positionMs int64, durationOf DurationFn) int64 {
	start := c.LanePositionMs
	end := start + effectiveDurationMs(c, durationOf)
	switch {
	case positionMs < start:
		return start - positionMs
	case positionMs < end:
		return 0
	default:
		return positionMs - end + 1
	}
}
