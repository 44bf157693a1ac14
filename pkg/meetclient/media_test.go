package meetclient

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTrack struct {
	kind    TrackKind
	ended   bool
	stopped bool
}

func (f *fakeTrack) Kind() TrackKind { return f.kind }
func (f *fakeTrack) Ended() bool     { return f.ended }
func (f *fakeTrack) Stop()           { f.stopped = true }

type fakeSource struct {
	acquired []*fakeTrack
	fail     error
}

func (f *fakeSource) acquire(ctx context.Context, kind TrackKind) (Track, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	t := &fakeTrack{kind: kind}
	f.acquired = append(f.acquired, t)
	return t, nil
}

func TestTrackManagerLazyAcquisition(t *testing.T) {
	src := &fakeSource{}
	m := NewTrackManager(src.acquire, nil, nil)

	assert.False(t, m.Live(TrackAudio))
	require.NoError(t, m.Enable(context.Background(), TrackAudio))
	assert.True(t, m.Live(TrackAudio))
	require.Len(t, src.acquired, 1)

	// A second enable reuses the live track.
	require.NoError(t, m.Enable(context.Background(), TrackAudio))
	assert.Len(t, src.acquired, 1)
}

func TestTrackManagerReacquiresEndedTrack(t *testing.T) {
	src := &fakeSource{}
	m := NewTrackManager(src.acquire, nil, nil)

	require.NoError(t, m.Enable(context.Background(), TrackVideo))
	src.acquired[0].ended = true
	assert.False(t, m.Live(TrackVideo))

	require.NoError(t, m.Enable(context.Background(), TrackVideo))
	assert.Len(t, src.acquired, 2)
	assert.True(t, m.Live(TrackVideo))
}

func TestTrackManagerConfirmGate(t *testing.T) {
	src := &fakeSource{}
	confirmed := false
	m := NewTrackManager(src.acquire, func(kind TrackKind, enable bool) bool { return confirmed }, nil)

	// A dismissed prompt blocks the hardware call entirely; there is no
	// timeout auto-confirm.
	err := m.Enable(context.Background(), TrackAudio)
	assert.ErrorIs(t, err, ErrNotConfirmed)
	assert.Empty(t, src.acquired)

	confirmed = true
	require.NoError(t, m.Enable(context.Background(), TrackAudio))
	require.Len(t, src.acquired, 1)

	confirmed = false
	assert.ErrorIs(t, m.Disable(TrackAudio), ErrNotConfirmed)
	assert.False(t, src.acquired[0].stopped)
}

func TestTrackManagerAcquisitionFailure(t *testing.T) {
	src := &fakeSource{fail: errors.New("permission denied")}
	m := NewTrackManager(src.acquire, nil, nil)

	err := m.Enable(context.Background(), TrackVideo)
	assert.ErrorIs(t, err, ErrAcquisition)
	assert.False(t, m.Live(TrackVideo))
}

func TestTrackManagerReleaseAll(t *testing.T) {
	src := &fakeSource{}
	// ReleaseAll is the teardown path; it bypasses the confirm gate even
	// when the confirmer would say no.
	m := NewTrackManager(src.acquire, func(TrackKind, bool) bool { return true }, nil)

	require.NoError(t, m.Enable(context.Background(), TrackAudio))
	require.NoError(t, m.Enable(context.Background(), TrackVideo))
	require.NoError(t, m.Enable(context.Background(), TrackScreen))

	m.ReleaseAll()
	for _, tr := range src.acquired {
		assert.True(t, tr.stopped)
	}
	assert.False(t, m.Live(TrackAudio))
	assert.False(t, m.Live(TrackVideo))
	assert.False(t, m.Live(TrackScreen))
}
