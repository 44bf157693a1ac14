package recaps

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/huddle-live/backend/internal/models"
)

// Repository handles recap persistence. List columns are JSONB; legacy rows
// may hold JSON-encoded strings instead of arrays, so reads go through
// models.StringOrList.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a recap repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a recap generated by the worker.
func (r *Repository) Create(ctx context.Context, rec *models.Recap) error {
	participants, err := json.Marshal(rec.Participants)
	if err != nil {
		return err
	}
	summary, err := json.Marshal(rec.Summary)
	if err != nil {
		return err
	}
	actionItems, err := json.Marshal(rec.ActionItems)
	if err != nil {
		return err
	}
	transcript, err := json.Marshal(rec.Transcript)
	if err != nil {
		return err
	}
	const q = `INSERT INTO recaps (id, meeting_id, title, participants, summary, action_items, transcript, archive_key)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, NULLIF($7,''))
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, rec.MeetingID, rec.Title, participants, summary, actionItems, transcript, rec.ArchiveKey).
		Scan(&rec.ID, &rec.CreatedAt)
}

// SetArchiveKey records the S3 key of the archived transcript.
func (r *Repository) SetArchiveKey(ctx context.Context, id uuid.UUID, key string) error {
	const q = `UPDATE recaps SET archive_key = $1 WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, key, id)
	return err
}

// GetByID returns one recap with decoded list columns.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Recap, error) {
	const q = `SELECT id, meeting_id, title, participants, summary, action_items, transcript, COALESCE(archive_key,''), created_at
		FROM recaps WHERE id = $1`
	row := r.pool.QueryRow(ctx, q, id)
	return scanRecap(row.Scan)
}

// ListByUser returns recaps of meetings the user attended, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Recap, error) {
	const q = `SELECT DISTINCT r.id, r.meeting_id, r.title, r.participants, r.summary, r.action_items, r.transcript,
		COALESCE(r.archive_key,''), r.created_at
		FROM recaps r
		JOIN attendance a ON a.meeting_id = r.meeting_id
		WHERE a.user_id = $1
		ORDER BY r.created_at DESC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Recap
	for rows.Next() {
		rec, err := scanRecap(rows.Scan)
		if err != nil {
			return nil, err
		}
		list = append(list, *rec)
	}
	return list, rows.Err()
}

func scanRecap(scan func(dest ...interface{}) error) (*models.Recap, error) {
	var rec models.Recap
	var participants, summary, actionItems, transcript []byte
	if err := scan(&rec.ID, &rec.MeetingID, &rec.Title, &participants, &summary, &actionItems,
		&transcript, &rec.ArchiveKey, &rec.CreatedAt); err != nil {
		return nil, err
	}
	var err error
	if rec.Participants, err = models.StringOrList(participants); err != nil {
		rec.Participants = nil
	}
	if rec.Summary, err = models.StringOrList(summary); err != nil {
		rec.Summary = nil
	}
	if rec.ActionItems, err = models.StringOrList(actionItems); err != nil {
		rec.ActionItems = nil
	}
	if err := json.Unmarshal(transcript, &rec.Transcript); err != nil {
		// Double-encoded legacy shape: a JSON string holding the array.
		var s string
		if json.Unmarshal(transcript, &s) == nil && s != "" {
			_ = json.Unmarshal([]byte(s), &rec.Transcript)
		}
	}
	return &rec, nil
}
