package meetclient

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// TrackKind distinguishes the device tracks the manager owns.
type TrackKind string

const (
	TrackAudio  TrackKind = "audio"
	TrackVideo  TrackKind = "video"
	TrackScreen TrackKind = "screen"
)

var (
	// ErrAcquisition wraps device/permission failures. The caller reverts
	// the toggle and surfaces an alert; nothing else changes.
	ErrAcquisition = errors.New("media acquisition failed")
	// ErrNotConfirmed is returned when the user dismissed the confirm
	// prompt. There is no timeout auto-confirm.
	ErrNotConfirmed = errors.New("toggle not confirmed")
)

// Track is a live device capture. The manager that acquired a track is its
// only owner; no other component may stop it, except the leave/stop-share
// teardown paths which release everything they acquired.
type Track interface {
	Kind() TrackKind
	// Ended reports whether the track silently died (device unplugged,
	// permission revoked). An ended track is re-acquired on next use.
	Ended() bool
	Stop()
}

// TrackSource acquires a device track. Acquisition happens lazily on the
// first unmute or video-on that lacks a live track, because browsers may
// require a user gesture before granting device permission.
type TrackSource func(ctx context.Context, kind TrackKind) (Track, error)

// Confirmer asks the user to approve a mic/camera toggle before any hardware
// side effect runs. Returning false aborts the toggle.
type Confirmer func(kind TrackKind, enable bool) bool

// TrackManager owns the local device tracks for one session.
type TrackManager struct {
	mu      sync.Mutex
	source  TrackSource
	confirm Confirmer
	tracks  map[TrackKind]Track
	logger  *zap.Logger
}

// NewTrackManager creates a manager. A nil confirm treats every toggle as
// approved, for headless callers.
func NewTrackManager(source TrackSource, confirm Confirmer, logger *zap.Logger) *TrackManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrackManager{
		source:  source,
		confirm: confirm,
		tracks:  make(map[TrackKind]Track),
		logger:  logger,
	}
}

// Enable acquires (or re-acquires) the track for kind after the confirm gate.
// Idempotent while the existing track is still live.
func (m *TrackManager) Enable(ctx context.Context, kind TrackKind) error {
	if m.confirm != nil && !m.confirm(kind, true) {
		return ErrNotConfirmed
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tracks[kind]; ok && !t.Ended() {
		return nil
	}
	t, err := m.source(ctx, kind)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrAcquisition, kind, err)
	}
	m.tracks[kind] = t
	m.logger.Debug("track acquired", zap.String("kind", string(kind)))
	return nil
}

// Disable stops and releases the track for kind after the confirm gate.
// No-op when no track is held.
func (m *TrackManager) Disable(kind TrackKind) error {
	if m.confirm != nil && !m.confirm(kind, false) {
		return ErrNotConfirmed
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tracks[kind]; ok {
		t.Stop()
		delete(m.tracks, kind)
	}
	return nil
}

// Live reports whether a non-ended track is held for kind.
func (m *TrackManager) Live(kind TrackKind) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tracks[kind]
	return ok && !t.Ended()
}

// ReleaseAll stops every held track. Teardown path only (leave meeting,
// stop screen share); bypasses the confirm gate.
func (m *TrackManager) ReleaseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for kind, t := range m.tracks {
		t.Stop()
		delete(m.tracks, kind)
	}
}
