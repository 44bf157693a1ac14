package realtime

import (
	"time"

	"github.com/google/uuid"

	"github.com/huddle-live/backend/internal/models"
)

// Client -> server events.
const (
	EventJoinMeeting          = "join_meeting"
	EventLeaveMeeting         = "leave_meeting"
	EventSendMessage          = "send_message"
	EventTypingStart          = "typing_start"
	EventTypingStop           = "typing_stop"
	EventMediaState           = "media_state"
	EventHandRaise            = "hand_raise"
	EventReaction             = "reaction"
	EventVideoRequest         = "video_request"
	EventVideoRequestResponse = "video_request_response"
	EventAudioChunk           = "audio_chunk"
	EventMuteParticipant      = "mute_participant"
	EventAllowUnmute          = "allow_unmute"
	EventStopVideo            = "stop_video"
	EventAllowVideo           = "allow_video"
	EventPromoteRole          = "promote_role"
	EventRevokeRole           = "revoke_role"
	EventKickParticipant      = "kick_participant"
	EventAdmitWaiting         = "admit_waiting"
	EventDenyWaiting          = "deny_waiting"
	EventMuteAll              = "mute_all"
	EventStopVideoAll         = "stop_video_all"
	EventLockMeeting          = "lock_meeting"
	EventUpdateSettings       = "update_settings"
	EventRecordingState       = "recording_state"
	EventEndMeeting           = "end_meeting"
	// EventTranscriptResult is published into the room by the external
	// transcription collaborator over its own connection.
	EventTranscriptResult = "transcript_result"
)

// Server -> client events.
const (
	EventRoster              = "roster"
	EventParticipantJoined   = "participant_joined"
	EventParticipantLeft     = "participant_left"
	EventParticipantUpdated  = "participant_updated"
	EventReceiveMessage      = "receive_message"
	EventRoleChanged         = "role_changed"
	EventWaitingJoin         = "waiting_join"
	EventWaitingAdmitted     = "waiting_admitted"
	EventWaitingDenied       = "waiting_denied"
	EventKicked              = "kicked"
	EventMeetingLocked       = "meeting_locked"
	EventSettingsUpdated     = "settings_updated"
	EventMeetingEnded        = "meeting_ended"
	EventTranscriptionResult = "transcription_received"
	EventError               = "error"
)

// Error codes carried in ErrorPayload.
const (
	ErrCodeCapability  = "capability_denied"
	ErrCodePersistence = "persistence_failed"
	ErrCodeLocked      = "meeting_locked"
	ErrCodeBadPassword = "invalid_password"
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
)

// JoinPayload is sent by a client to enter a meeting room.
type JoinPayload struct {
	MeetingID uuid.UUID `json:"meeting_id"`
	Password  string    `json:"password,omitempty"`
}

// ChatPayload is the client half of send_message; the broker fills sender,
// meeting, id and timestamp from the connection and persists before fanout.
type ChatPayload struct {
	Content     string                `json:"content"`
	Channel     models.MessageChannel `json:"channel"`
	RecipientID *uuid.UUID            `json:"recipient_id,omitempty"`
}

// TypingPayload identifies who is typing in which meeting.
type TypingPayload struct {
	MeetingID uuid.UUID `json:"meeting_id"`
	UserID    uuid.UUID `json:"user_id"`
	UserName  string    `json:"user_name"`
}

// MediaStatePayload reports the sender's own device state. Nil fields are
// left untouched; the broker relays the booleans without validating hardware.
type MediaStatePayload struct {
	AudioMuted    *bool `json:"audio_muted,omitempty"`
	VideoOff      *bool `json:"video_off,omitempty"`
	ScreenSharing *bool `json:"screen_sharing,omitempty"`
}

// HandRaisePayload toggles the sender's raised hand.
type HandRaisePayload struct {
	Raised bool `json:"raised"`
}

// ReactionPayload is a transient emoji reaction, relayed and never stored.
type ReactionPayload struct {
	UserID   uuid.UUID `json:"user_id"`
	UserName string    `json:"user_name"`
	Emoji    string    `json:"emoji"`
}

// TargetPayload addresses a moderation action at one participant.
type TargetPayload struct {
	TargetID uuid.UUID `json:"target_id"`
}

// RolePayload promotes or revokes a role on a target participant.
type RolePayload struct {
	TargetID uuid.UUID `json:"target_id"`
	Role     Role      `json:"role"`
}

// VideoRequestPayload asks a participant to start their video. The request
// auto-resolves to denied client-side after 30 seconds.
type VideoRequestPayload struct {
	TargetID uuid.UUID `json:"target_id"`
	FromID   uuid.UUID `json:"from_id,omitempty"`
	FromName string    `json:"from_name,omitempty"`
}

// VideoRequestResponsePayload answers a video request.
type VideoRequestResponsePayload struct {
	RequesterID uuid.UUID `json:"requester_id"`
	Accepted    bool      `json:"accepted"`
}

// AudioChunkPayload carries an opaque audio sample toward the transcription
// subscriber. The broker never inspects Audio.
type AudioChunkPayload struct {
	Audio      []byte    `json:"audio"`
	MeetingID  uuid.UUID `json:"meeting_id"`
	UserID     uuid.UUID `json:"user_id"`
	SenderName string    `json:"sender_name"`
}

// TranscriptPayload is a caption segment published back into the room by the
// transcription collaborator.
type TranscriptPayload struct {
	Text       string    `json:"text"`
	UserID     uuid.UUID `json:"user_id"`
	SenderName string    `json:"sender_name"`
	Timestamp  time.Time `json:"timestamp"`
}

// LockPayload locks or unlocks the meeting against new joins.
type LockPayload struct {
	Locked bool `json:"locked"`
}

// RecordingStatePayload toggles the session recording flag.
type RecordingStatePayload struct {
	Recording bool `json:"recording"`
}

// SettingsPatch is a partial update of meeting settings; nil fields keep
// their current value.
type SettingsPatch struct {
	WaitingRoomEnabled *bool               `json:"waiting_room_enabled,omitempty"`
	AllowSelfUnmute    *bool               `json:"allow_self_unmute,omitempty"`
	ScreenSharePolicy  *models.SharePolicy `json:"screen_share_policy,omitempty"`
	WhiteboardPolicy   *models.SharePolicy `json:"whiteboard_policy,omitempty"`
}

// ParticipantState is the wire form of a roster entry.
type ParticipantState struct {
	ID            uuid.UUID `json:"id"`
	DisplayName   string    `json:"display_name"`
	Role          Role      `json:"role"`
	AudioMuted    bool      `json:"audio_muted"`
	VideoOff      bool      `json:"video_off"`
	HandRaised    bool      `json:"hand_raised"`
	VideoAllowed  bool      `json:"video_allowed"`
	ScreenSharing bool      `json:"screen_sharing"`
	JoinedAt      time.Time `json:"joined_at"`
}

// RosterPayload is the snapshot sent to a connection when it completes a join.
type RosterPayload struct {
	MeetingID    uuid.UUID              `json:"meeting_id"`
	HostID       uuid.UUID              `json:"host_id"`
	Locked       bool                   `json:"locked"`
	Recording    bool                   `json:"recording"`
	Settings     models.MeetingSettings `json:"settings"`
	Participants []ParticipantState     `json:"participants"`
}

// WaitingPayload announces or resolves a waiting-room entry.
type WaitingPayload struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	ArrivedAt   time.Time `json:"arrived_at"`
}

// RoleChangedPayload announces an authoritative role transition.
type RoleChangedPayload struct {
	UserID uuid.UUID `json:"user_id"`
	Role   Role      `json:"role"`
}

// ErrorPayload is surfaced to the acting client only.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
