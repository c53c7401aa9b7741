package timeline

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// LoadManifest reads a timeline manifest from a YAML file. Manifests are
// produced by the upload pipeline; lanes arrive in arbitrary order and clips
// are sorted by lane position on load.
//
// Example:
//
//	total_duration_ms: 3600000
//	lanes:
//	  - number: 1
//	    label: "end zone"
//	    clips:
//	      - video_id: "rec-17"
//	        position_ms: 0
//	        declared_duration_ms: 600000
func LoadManifest(path string) (Timeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Timeline{}, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes a YAML timeline manifest.
func ParseManifest(data []byte) (Timeline, error) {
	var t Timeline
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Timeline{}, fmt.Errorf("parse manifest: %w", err)
	}
	if err := validate(t); err != nil {
		return Timeline{}, err
	}
	for i := range t.Lanes {
		clips := t.Lanes[i].Clips
		sort.SliceStable(clips, func(a, b int) bool {
			return clips[a].LanePositionMs < clips[b].LanePositionMs
		})
	}
	return t, nil
}

func validate(t Timeline) error {
	if len(t.Lanes) == 0 {
		return ErrNoLanes
	}
	seen := make(map[int]bool, len(t.Lanes))
	for _, lane := range t.Lanes {
		if seen[lane.Number] {
			return fmt.Errorf("duplicate lane number %d", lane.Number)
		}
		seen[lane.Number] = true
		for _, c := range lane.Clips {
			if c.VideoID == "" {
				return fmt.Errorf("lane %d: clip with empty video_id", lane.Number)
			}
			if c.LanePositionMs < 0 {
				return fmt.Errorf("lane %d: clip %q has negative position", lane.Number, c.VideoID)
			}
			if c.DeclaredDurationMs < 0 {
				return fmt.Errorf("lane %d: clip %q has negative duration", lane.Number, c.VideoID)
			}
		}
	}
	return nil
}
