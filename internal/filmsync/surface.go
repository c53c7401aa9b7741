package filmsync

import (
	"sync"

	"filmsync/internal/timeline"
)

// ReadyState mirrors the readiness ordinals of an HTML media element.
type ReadyState int

const (
	ReadyNothing     ReadyState = iota // no metadata yet
	ReadyMetadata                      // duration/dimensions known; seeking is possible
	ReadyCurrentData                   // data for the current position
	ReadyFutureData                    // enough to advance a little
	ReadyEnoughData                    // enough to play through
)

// VideoSurface is the engine's view of one playable media source. It is
// supplied by the host environment; the engine only consumes this contract
// and is the sole component allowed to call Seek/Play/Pause on it.
type VideoSurface interface {
	// Seek moves the playhead to an absolute local time in seconds.
	Seek(seconds float64)
	// CurrentTime reports the playhead's local time in seconds.
	CurrentTime() float64
	// ReadyState reports how much media has loaded.
	ReadyState() ReadyState
	Play()
	Pause()
	Paused() bool
	// Available reports whether the underlying source is usable at all.
	Available() bool
}

// SurfaceProvider hands out the live surface bound to a video.
type SurfaceProvider interface {
	SurfaceFor(id timeline.VideoID) (VideoSurface, bool)
}

// SurfaceCommand is one control operation the engine issued against a
// MirrorSurface. The host drains these and applies them to the real player.
type SurfaceCommand struct {
	Op      string  `json:"op"` // "seek", "play" or "pause"
	Seconds float64 `json:"seconds,omitempty"`
}

// MirrorSurface implements VideoSurface for hosts that run the real player
// remotely (the film-room web client). State flows in through the host's
// event posts; control calls flow out as a journaled command list. The
// mirror applies control calls to its own state immediately so the engine
// reads back what the player will converge to.
type MirrorSurface struct {
	mu          sync.Mutex
	currentTime float64
	readyState  ReadyState
	paused      bool
	available   bool
	commands    []SurfaceCommand
}

// NewMirrorSurface returns a paused, not-yet-loaded mirror.
func NewMirrorSurface() *MirrorSurface {
	return &MirrorSurface{paused: true, available: true}
}

// Seek implements VideoSurface.
func (m *MirrorSurface) Seek(seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentTime = seconds
	m.commands = append(m.commands, SurfaceCommand{Op: "seek", Seconds: seconds})
}

// CurrentTime implements VideoSurface.
func (m *MirrorSurface) CurrentTime() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentTime
}

// ReadyState implements VideoSurface.
func (m *MirrorSurface) ReadyState() ReadyState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readyState
}

// Play implements VideoSurface.
func (m *MirrorSurface) Play() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = false
	m.commands = append(m.commands, SurfaceCommand{Op: "play"})
}

// Pause implements VideoSurface.
func (m *MirrorSurface) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = true
	m.commands = append(m.commands, SurfaceCommand{Op: "pause"})
}

// Paused implements VideoSurface.
func (m *MirrorSurface) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// Available implements VideoSurface.
func (m *MirrorSurface) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available
}

// SetReadyState records a readiness change reported by the host.
func (m *MirrorSurface) SetReadyState(ready ReadyState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readyState = ready
}

// SetCurrentTime records a playhead position reported by the host.
func (m *MirrorSurface) SetCurrentTime(seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentTime = seconds
}

// SetPaused records a play/pause change reported by the host.
func (m *MirrorSurface) SetPaused(paused bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = paused
}

// SetAvailable records source availability reported by the host.
func (m *MirrorSurface) SetAvailable(available bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = available
}

// DrainCommands returns and clears the journaled control operations.
func (m *MirrorSurface) DrainCommands() []SurfaceCommand {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.commands
	m.commands = nil
	return out
}

// MirrorProvider is a SurfaceProvider that creates a MirrorSurface per video
// on demand. One provider serves one film-room session.
type MirrorProvider struct {
	mu       sync.Mutex
	surfaces map[timeline.VideoID]*MirrorSurface
}

// NewMirrorProvider returns an empty provider.
func NewMirrorProvider() *MirrorProvider {
	return &MirrorProvider{surfaces: make(map[timeline.VideoID]*MirrorSurface)}
}

// SurfaceFor implements SurfaceProvider.
func (p *MirrorProvider) SurfaceFor(id timeline.VideoID) (VideoSurface, bool) {
	return p.Mirror(id), true
}

// Mirror returns the mirror for a video, creating it if needed. Hosts use
// this to route player events to the right surface.
func (p *MirrorProvider) Mirror(id timeline.VideoID) *MirrorSurface {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.surfaces[id]
	if !ok {
		m = NewMirrorSurface()
		p.surfaces[id] = m
	}
	return m
}

// DrainAllCommands collects pending commands across every mirror, keyed by
// video. Empty journals are omitted.
func (p *MirrorProvider) DrainAllCommands() map[timeline.VideoID][]SurfaceCommand {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[timeline.VideoID][]SurfaceCommand)
	for id, m := range p.surfaces {
		if cmds := m.DrainCommands(); len(cmds) > 0 {
			out[id] = cmds
		}
	}
	return out
}
