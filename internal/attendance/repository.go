package attendance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/huddle-live/backend/internal/models"
)

// Repository records join/leave events per meeting. It backs the attendee
// list endpoint and the recap worker's participant roster.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an attendance repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// LogJoin records a participant joining a meeting.
func (r *Repository) LogJoin(ctx context.Context, meetingID, userID uuid.UUID, displayName string) error {
	const q = `INSERT INTO attendance (meeting_id, user_id, display_name, joined_at)
		VALUES ($1, $2, $3, NOW())`
	_, err := r.pool.Exec(ctx, q, meetingID, userID, displayName)
	return err
}

// LogLeave closes the most recent open attendance row for the participant.
func (r *Repository) LogLeave(ctx context.Context, meetingID, userID uuid.UUID, leftAt time.Time) error {
	const q = `UPDATE attendance SET left_at = $1
		WHERE id = (
			SELECT id FROM attendance
			WHERE meeting_id = $2 AND user_id = $3 AND left_at IS NULL
			ORDER BY joined_at DESC LIMIT 1
		)`
	_, err := r.pool.Exec(ctx, q, leftAt, meetingID, userID)
	return err
}

// ListByMeeting returns the attendance log for a meeting.
func (r *Repository) ListByMeeting(ctx context.Context, meetingID uuid.UUID) ([]models.AttendanceEntry, error) {
	const q = `SELECT meeting_id, user_id, display_name, joined_at, left_at
		FROM attendance WHERE meeting_id = $1 ORDER BY joined_at ASC`
	rows, err := r.pool.Query(ctx, q, meetingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.AttendanceEntry
	for rows.Next() {
		var e models.AttendanceEntry
		if err := rows.Scan(&e.MeetingID, &e.UserID, &e.DisplayName, &e.JoinedAt, &e.LeftAt); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// ParticipantNames returns the distinct display names that attended a
// meeting, for the recap roster.
func (r *Repository) ParticipantNames(ctx context.Context, meetingID uuid.UUID) ([]string, error) {
	const q = `SELECT DISTINCT display_name FROM attendance WHERE meeting_id = $1 ORDER BY display_name`
	rows, err := r.pool.Query(ctx, q, meetingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}
