package meetclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddle-live/backend/internal/models"
)

func TestSessionMachineHappyPath(t *testing.T) {
	m := NewSessionMachine(models.PlanFree)
	assert.Equal(t, StateIdle, m.State())

	require.NoError(t, m.EnterPreview())
	require.NoError(t, m.BeginJoin())
	require.NoError(t, m.RosterReceived())
	assert.Equal(t, StateInMeeting, m.State())
	require.NoError(t, m.BeginLeave())
	require.NoError(t, m.Terminate())
	assert.Equal(t, StateEnded, m.State())
}

func TestSessionMachineRejectsBadTransitions(t *testing.T) {
	m := NewSessionMachine(models.PlanFree)

	// Cannot join from idle or receive a roster before joining.
	assert.ErrorIs(t, m.BeginJoin(), ErrBadTransition)
	assert.ErrorIs(t, m.RosterReceived(), ErrBadTransition)

	require.NoError(t, m.EnterPreview())
	require.NoError(t, m.BeginJoin())
	require.NoError(t, m.RosterReceived())
	require.NoError(t, m.BeginLeave())
	require.NoError(t, m.Terminate())

	// Ended is terminal.
	assert.ErrorIs(t, m.EnterPreview(), ErrBadTransition)
	assert.ErrorIs(t, m.Terminate(), ErrBadTransition)
}

func TestSessionMachinePreviewCancel(t *testing.T) {
	m := NewSessionMachine(models.PlanFree)
	require.NoError(t, m.EnterPreview())
	require.NoError(t, m.CancelPreview())
	assert.Equal(t, StateIdle, m.State())
}

func TestSubFeatureGates(t *testing.T) {
	m := NewSessionMachine(models.PlanPro)

	// Every sub-feature errors outside in_meeting; nothing panics.
	assert.ErrorIs(t, m.CanStartRecording(), ErrNotInMeeting)
	assert.ErrorIs(t, m.CanStartTranscription(), ErrNotInMeeting)
	assert.ErrorIs(t, m.CanStartWhiteboard(), ErrNotInMeeting)
	assert.ErrorIs(t, m.CanExtendDuration(), ErrNotInMeeting)

	require.NoError(t, m.EnterPreview())
	require.NoError(t, m.BeginJoin())
	require.NoError(t, m.RosterReceived())

	assert.NoError(t, m.CanStartRecording())
	assert.NoError(t, m.CanStartTranscription())
	assert.NoError(t, m.CanStartWhiteboard())
	assert.NoError(t, m.CanExtendDuration())
}

func TestPlanGatesRecordingAndExtend(t *testing.T) {
	m := NewSessionMachine(models.PlanFree)
	require.NoError(t, m.EnterPreview())
	require.NoError(t, m.BeginJoin())
	require.NoError(t, m.RosterReceived())

	// The plan gate is separate from moderation roles and from the state
	// gate: in_meeting on a free plan still refuses.
	assert.ErrorIs(t, m.CanStartRecording(), ErrPlanRequired)
	assert.ErrorIs(t, m.CanExtendDuration(), ErrPlanRequired)
	assert.NoError(t, m.CanStartTranscription())

	m.SetPlan(models.PlanPro)
	assert.NoError(t, m.CanStartRecording())
	assert.NoError(t, m.CanExtendDuration())
}
