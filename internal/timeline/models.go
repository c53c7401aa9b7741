package timeline

// VideoID references a playable recording source.
type VideoID string

// Clip is one recorded segment positioned on the logical game timeline.
// This also matches the input JSON/YAML payload for timeline uploads.
type Clip struct {
	VideoID            VideoID `json:"video_id" yaml:"video_id"`
	LanePositionMs     int64   `json:"position_ms" yaml:"position_ms"`
	DeclaredDurationMs int64   `json:"declared_duration_ms" yaml:"declared_duration_ms"`
}

// Lane is one camera angle: an ordered list of clips on the shared timeline.
// Clips are ordered by LanePositionMs and must not overlap within a lane;
// overlap is a data-integrity violation owned by the upload pipeline, not
// repaired here.
type Lane struct {
	Number int    `json:"number" yaml:"number"`
	Label  string `json:"label" yaml:"label"`
	Clips  []Clip `json:"clips" yaml:"clips"`
}

// Timeline is a read-only snapshot of every lane for one game, keyed to a
// single logical clock covering [0, TotalDurationMs).
type Timeline struct {
	TotalDurationMs int64  `json:"total_duration_ms" yaml:"total_duration_ms"`
	Lanes           []Lane `json:"lanes" yaml:"lanes"`
}

// LaneFor returns the lane containing the given video, if any.
func (t Timeline) LaneFor(id VideoID) (Lane, bool) {
	for _, lane := range t.Lanes {
		for _, c := range lane.Clips {
			if c.VideoID == id {
				return lane, true
			}
		}
	}
	return Lane{}, false
}

// LaneByNumber returns the lane with the given number, if any.
func (t Timeline) LaneByNumber(n int) (Lane, bool) {
	for _, lane := range t.Lanes {
		if lane.Number == n {
			return lane, true
		}
	}
	return Lane{}, false
}
