package realtime

import "fmt"

// Action is a moderation action subject to the capability table.
type Action string

const (
	ActionMuteOther    Action = "mute_other"
	ActionAllowUnmute  Action = "allow_unmute"
	ActionStopVideo    Action = "stop_video"
	ActionAllowVideo   Action = "allow_video"
	ActionPromoteRole  Action = "promote_role"
	ActionRevokeRole   Action = "revoke_role"
	ActionKick         Action = "kick"
	ActionAdmitWaiting Action = "admit_waiting"
	ActionMuteAll      Action = "mute_all"
	ActionStopVideoAll Action = "stop_video_all"
	ActionLockMeeting  Action = "lock_meeting"
	ActionSettings     Action = "update_settings"
	ActionEndMeeting   Action = "end_meeting"
	ActionRecording    Action = "recording"
)

// CapabilityError is returned when an actor's current role does not permit an
// action. It is surfaced to the actor only and never silently downgraded to a
// no-op.
type CapabilityError struct {
	Role   Role
	Action Action
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("role %q may not perform %q", e.Role, e.Action)
}

// capabilities is the authoritative role -> permitted actions table. It is
// evaluated server-side against the actor's current role; clients mirror it
// only to disable controls optimistically.
var capabilities = map[Role]map[Action]bool{
	RoleHost: {
		ActionMuteOther:    true,
		ActionAllowUnmute:  true,
		ActionStopVideo:    true,
		ActionAllowVideo:   true,
		ActionPromoteRole:  true,
		ActionRevokeRole:   true,
		ActionKick:         true,
		ActionAdmitWaiting: true,
		ActionMuteAll:      true,
		ActionStopVideoAll: true,
		ActionLockMeeting:  true,
		ActionSettings:     true,
		ActionEndMeeting:   true,
		ActionRecording:    true,
	},
	RoleCoHost: {
		ActionMuteOther:    true,
		ActionAllowUnmute:  true,
		ActionStopVideo:    true,
		ActionAllowVideo:   true,
		ActionKick:         true,
		ActionAdmitWaiting: true,
		ActionMuteAll:      true,
		ActionLockMeeting:  true,
		ActionSettings:     true,
	},
	RoleParticipant: {},
}

// Allowed reports whether a role may perform an action. The table is total:
// any (role, action) pair not present is a deny.
func Allowed(role Role, action Action) bool {
	return capabilities[role][action]
}

// Authorize returns a CapabilityError unless the role permits the action.
func Authorize(role Role, action Action) error {
	if !Allowed(role, action) {
		return &CapabilityError{Role: role, Action: action}
	}
	return nil
}

// AuthorizeTarget applies the table plus the structural rules that depend on
// the target: a sitting host can not be kicked (the role must be revoked
// first), and only the host touches another host's or co-host's role.
func AuthorizeTarget(actorRole Role, action Action, targetRole Role) error {
	if err := Authorize(actorRole, action); err != nil {
		return err
	}
	if action == ActionKick && targetRole == RoleHost {
		return ErrTargetIsHost
	}
	return nil
}
