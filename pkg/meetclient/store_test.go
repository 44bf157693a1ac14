package meetclient

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddle-live/backend/internal/realtime"
)

func rosterOf(states ...realtime.ParticipantState) realtime.RosterPayload {
	return realtime.RosterPayload{Participants: states}
}

func TestStoreSelfOptimisticThenConfirmed(t *testing.T) {
	self := uuid.New()
	store := NewStore(self)
	store.ApplyRoster(rosterOf(realtime.ParticipantState{ID: self, AudioMuted: true}))

	// Optimistic unmute shows immediately, tagged Local.
	store.SetSelfAudioMuted(false)
	row, ok := store.Self()
	require.True(t, ok)
	assert.False(t, row.AudioMuted.Value)
	assert.Equal(t, OriginLocal, row.AudioMuted.Origin)

	// Server confirmation collapses it to Confirmed with the same value.
	store.ApplyUpdated(realtime.ParticipantState{ID: self, AudioMuted: false})
	row, _ = store.Self()
	assert.False(t, row.AudioMuted.Value)
	assert.Equal(t, OriginConfirmed, row.AudioMuted.Origin)
}

func TestStoreModerationOverridesStaleToggle(t *testing.T) {
	self := uuid.New()
	store := NewStore(self)
	store.ApplyRoster(rosterOf(realtime.ParticipantState{ID: self, AudioMuted: true}))

	// In-flight optimistic unmute races a moderation mute: the broadcast,
	// arriving last, wins.
	store.SetSelfAudioMuted(false)
	store.ApplyUpdated(realtime.ParticipantState{ID: self, AudioMuted: true})

	row, _ := store.Self()
	assert.True(t, row.AudioMuted.Value, "last writer wins; no memoized local value survives")
	assert.Equal(t, OriginConfirmed, row.AudioMuted.Origin)
}

func TestStoreOthersAuthoritativeImmediately(t *testing.T) {
	self := uuid.New()
	other := uuid.New()
	store := NewStore(self)
	store.ApplyRoster(rosterOf(
		realtime.ParticipantState{ID: self},
		realtime.ParticipantState{ID: other, AudioMuted: true},
	))

	// Local setters never touch another participant's row.
	store.SetSelfHandRaised(true)
	row, ok := store.Get(other)
	require.True(t, ok)
	assert.False(t, row.HandRaised.Value)

	store.ApplyUpdated(realtime.ParticipantState{ID: other, AudioMuted: false, HandRaised: true})
	row, _ = store.Get(other)
	assert.False(t, row.AudioMuted.Value)
	assert.True(t, row.HandRaised.Value)
	assert.Equal(t, OriginConfirmed, row.HandRaised.Origin)
}

func TestStoreRosterResyncDropsOptimisticState(t *testing.T) {
	self := uuid.New()
	store := NewStore(self)
	store.ApplyRoster(rosterOf(realtime.ParticipantState{ID: self, AudioMuted: true}))
	store.SetSelfAudioMuted(false)

	// Reconnect resync: the fresh snapshot replaces everything.
	store.ApplyRoster(rosterOf(
		realtime.ParticipantState{ID: self, AudioMuted: true},
		realtime.ParticipantState{ID: uuid.New()},
	))
	row, _ := store.Self()
	assert.True(t, row.AudioMuted.Value)
	assert.Equal(t, OriginConfirmed, row.AudioMuted.Origin)
	assert.Equal(t, 2, store.Len())
}

func TestStoreJoinLeaveRole(t *testing.T) {
	self := uuid.New()
	store := NewStore(self)
	store.ApplyRoster(rosterOf(realtime.ParticipantState{ID: self}))

	p := uuid.New()
	store.ApplyJoined(realtime.ParticipantState{ID: p, DisplayName: "p", Role: realtime.RoleParticipant})
	assert.Equal(t, 2, store.Len())

	store.ApplyRoleChanged(p, realtime.RoleCoHost)
	row, _ := store.Get(p)
	assert.Equal(t, realtime.RoleCoHost, row.Role)

	store.ApplyLeft(p)
	_, ok := store.Get(p)
	assert.False(t, ok)
}
