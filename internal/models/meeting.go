package models

import (
	"time"

	"github.com/google/uuid"
)

// MeetingStatus is the lifecycle status of a meeting.
type MeetingStatus string

const (
	MeetingScheduled MeetingStatus = "scheduled"
	MeetingLive      MeetingStatus = "live"
	MeetingEnded     MeetingStatus = "ended"
)

// SharePolicy controls who may use a shared surface (screen share, whiteboard).
type SharePolicy string

const (
	PolicyHostOnly SharePolicy = "host_only"
	PolicyCoHost   SharePolicy = "co_host"
	PolicyEveryone SharePolicy = "everyone"
)

// MeetingSettings are the host-controlled settings of a meeting, stored as
// JSONB and patched live over the realtime channel.
type MeetingSettings struct {
	WaitingRoomEnabled bool        `json:"waiting_room_enabled"`
	AllowSelfUnmute    bool        `json:"allow_self_unmute"`
	ScreenSharePolicy  SharePolicy `json:"screen_share_policy"`
	WhiteboardPolicy   SharePolicy `json:"whiteboard_policy"`
}

// DefaultMeetingSettings returns settings applied to a freshly created meeting.
func DefaultMeetingSettings() MeetingSettings {
	return MeetingSettings{
		WaitingRoomEnabled: false,
		AllowSelfUnmute:    true,
		ScreenSharePolicy:  PolicyEveryone,
		WhiteboardPolicy:   PolicyEveryone,
	}
}

// Meeting represents a meeting row. The realtime session state (roster,
// waiting room, lock) lives in memory; this is the durable part.
type Meeting struct {
	ID             uuid.UUID       `json:"id"`
	Title          string          `json:"title"`
	HostID         uuid.UUID       `json:"host_id"`
	OriginalHostID uuid.UUID       `json:"original_host_id"`
	Status         MeetingStatus   `json:"status"`
	Password       string          `json:"-"`
	Settings       MeetingSettings `json:"settings"`
	StartedAt      *time.Time      `json:"started_at,omitempty"`
	EndedAt        *time.Time      `json:"ended_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// AttendanceEntry is one join/leave record for a meeting, used for the
// attendee list and the recap participant roster.
type AttendanceEntry struct {
	MeetingID   uuid.UUID  `json:"meeting_id"`
	UserID      uuid.UUID  `json:"user_id"`
	DisplayName string     `json:"display_name"`
	JoinedAt    time.Time  `json:"joined_at"`
	LeftAt      *time.Time `json:"left_at,omitempty"`
}
