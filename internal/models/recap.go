package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TranscriptSegment is one captioned utterance. Segments are ephemeral in the
// live session except for the tail retained for the post-meeting recap.
type TranscriptSegment struct {
	UserID      uuid.UUID `json:"user_id"`
	SenderName  string    `json:"sender_name"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
}

// Recap is the post-meeting summary generated by the recap worker.
// Participants, Summary, ActionItems and Transcript are stored as JSONB;
// older rows may hold them as JSON-encoded strings (see StringOrList).
type Recap struct {
	ID           uuid.UUID           `json:"id"`
	MeetingID    uuid.UUID           `json:"meeting_id"`
	Title        string              `json:"title"`
	Participants []string            `json:"participants"`
	Summary      []string            `json:"summary"`
	ActionItems  []string            `json:"action_items"`
	Transcript   []TranscriptSegment `json:"transcript"`
	ArchiveKey   string              `json:"archive_key,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
}

// StringOrList decodes a JSONB column that holds either a JSON array or a
// JSON-encoded string containing an array (legacy double-encoded rows).
func StringOrList(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	if s == "" {
		return nil, nil
	}
	if err := json.Unmarshal([]byte(s), &list); err != nil {
		return nil, err
	}
	return list, nil
}
