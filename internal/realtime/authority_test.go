package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allActions = []Action{
	ActionMuteOther, ActionAllowUnmute, ActionStopVideo, ActionAllowVideo,
	ActionPromoteRole, ActionRevokeRole, ActionKick, ActionAdmitWaiting,
	ActionMuteAll, ActionStopVideoAll, ActionLockMeeting, ActionSettings,
	ActionEndMeeting, ActionRecording,
}

func TestCapabilityTableTotal(t *testing.T) {
	// Every (role, action) pair must resolve to an explicit allow or deny;
	// Authorize must error exactly when Allowed says no.
	for _, role := range []Role{RoleHost, RoleCoHost, RoleParticipant} {
		for _, action := range allActions {
			err := Authorize(role, action)
			if Allowed(role, action) {
				assert.NoError(t, err, "%s/%s", role, action)
			} else {
				var capErr *CapabilityError
				require.ErrorAs(t, err, &capErr, "%s/%s", role, action)
				assert.Equal(t, role, capErr.Role)
				assert.Equal(t, action, capErr.Action)
			}
		}
	}
}

func TestCapabilityTableRoles(t *testing.T) {
	tests := []struct {
		role    Role
		action  Action
		allowed bool
	}{
		{RoleHost, ActionPromoteRole, true},
		{RoleHost, ActionEndMeeting, true},
		{RoleHost, ActionStopVideoAll, true},
		{RoleHost, ActionRecording, true},
		{RoleCoHost, ActionMuteOther, true},
		{RoleCoHost, ActionKick, true},
		{RoleCoHost, ActionAdmitWaiting, true},
		{RoleCoHost, ActionLockMeeting, true},
		{RoleCoHost, ActionPromoteRole, false},
		{RoleCoHost, ActionRevokeRole, false},
		{RoleCoHost, ActionStopVideoAll, false},
		{RoleCoHost, ActionEndMeeting, false},
		{RoleCoHost, ActionRecording, false},
		{RoleParticipant, ActionMuteOther, false},
		{RoleParticipant, ActionKick, false},
		{RoleParticipant, ActionEndMeeting, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.allowed, Allowed(tt.role, tt.action), "%s/%s", tt.role, tt.action)
	}
}

func TestAuthorizeTargetKickHost(t *testing.T) {
	// A sitting host can not be kicked, even by a host; the role has to be
	// revoked first.
	err := AuthorizeTarget(RoleHost, ActionKick, RoleHost)
	assert.ErrorIs(t, err, ErrTargetIsHost)

	assert.NoError(t, AuthorizeTarget(RoleHost, ActionKick, RoleCoHost))
	assert.NoError(t, AuthorizeTarget(RoleCoHost, ActionKick, RoleParticipant))

	var capErr *CapabilityError
	err = AuthorizeTarget(RoleParticipant, ActionKick, RoleParticipant)
	assert.ErrorAs(t, err, &capErr)
}
