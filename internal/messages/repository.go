package messages

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/huddle-live/backend/internal/models"
)

// Repository handles chat message persistence. Save is on the broker's hot
// path: a message is durable before any client sees it.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a message repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Save inserts a message with its server-assigned id and timestamp.
func (r *Repository) Save(ctx context.Context, m *models.Message) error {
	const q = `INSERT INTO messages (id, meeting_id, sender_id, sender_name, content, channel, recipient_id, recipient_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8,''), $9)`
	_, err := r.pool.Exec(ctx, q, m.ID, m.MeetingID, m.SenderID, m.SenderName, m.Content,
		string(m.Channel), m.RecipientID, m.RecipientName, m.CreatedAt)
	return err
}

// ListByMeeting returns a meeting's messages oldest-first. Private messages
// are included only when the caller sent or received them.
func (r *Repository) ListByMeeting(ctx context.Context, meetingID, callerID uuid.UUID, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	const q = `SELECT id, meeting_id, sender_id, sender_name, content, channel, recipient_id, COALESCE(recipient_name,''), created_at
		FROM messages
		WHERE meeting_id = $1 AND (channel = 'public' OR sender_id = $2 OR recipient_id = $2)
		ORDER BY created_at ASC LIMIT $3`
	rows, err := r.pool.Query(ctx, q, meetingID, callerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.MeetingID, &m.SenderID, &m.SenderName, &m.Content,
			&m.Channel, &m.RecipientID, &m.RecipientName, &m.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}
