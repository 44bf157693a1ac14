package models

import (
	"time"

	"github.com/google/uuid"
)

// UserSettings are per-user preferences. Plan is the cached subscription
// flag the client gates recording and meeting extension on.
type UserSettings struct {
	UserID          uuid.UUID `json:"user_id"`
	JoinMuted       bool      `json:"join_muted"`
	JoinVideoOff    bool      `json:"join_video_off"`
	CaptionLanguage string    `json:"caption_language"`
	Theme           string    `json:"theme"`
	Plan            Plan      `json:"plan"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// DefaultUserSettings returns settings for a user without a stored row.
func DefaultUserSettings(userID uuid.UUID) UserSettings {
	return UserSettings{
		UserID:          userID,
		JoinMuted:       true,
		JoinVideoOff:    false,
		CaptionLanguage: "en",
		Theme:           "system",
		Plan:            PlanFree,
	}
}
