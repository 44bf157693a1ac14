package meetings

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/huddle-live/backend/internal/models"
)

// Repository handles meeting persistence. It backs both the HTTP handlers
// and the realtime registry's MeetingStore.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a meeting repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new meeting with default settings.
func (r *Repository) Create(ctx context.Context, m *models.Meeting) error {
	settings, err := json.Marshal(m.Settings)
	if err != nil {
		return err
	}
	const q = `INSERT INTO meetings (id, title, host_id, original_host_id, status, password, settings)
		VALUES (gen_random_uuid(), $1, $2, $2, $3, NULLIF($4,''), $5)
		RETURNING id, original_host_id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, m.Title, m.HostID, string(models.MeetingScheduled), m.Password, settings).
		Scan(&m.ID, &m.OriginalHostID, &m.CreatedAt, &m.UpdatedAt)
}

// GetByID returns a meeting by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Meeting, error) {
	const q = `SELECT id, title, host_id, original_host_id, status, COALESCE(password,''), settings,
		started_at, ended_at, created_at, updated_at FROM meetings WHERE id = $1`
	var m models.Meeting
	var settings []byte
	err := r.pool.QueryRow(ctx, q, id).Scan(&m.ID, &m.Title, &m.HostID, &m.OriginalHostID, &m.Status,
		&m.Password, &settings, &m.StartedAt, &m.EndedAt, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(settings, &m.Settings); err != nil {
		m.Settings = models.DefaultMeetingSettings()
	}
	return &m, nil
}

// ListByHost returns meetings created by a user, newest first.
func (r *Repository) ListByHost(ctx context.Context, hostID uuid.UUID) ([]models.Meeting, error) {
	const q = `SELECT id, title, host_id, original_host_id, status, COALESCE(password,''), settings,
		started_at, ended_at, created_at, updated_at FROM meetings
		WHERE original_host_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, hostID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Meeting
	for rows.Next() {
		var m models.Meeting
		var settings []byte
		if err := rows.Scan(&m.ID, &m.Title, &m.HostID, &m.OriginalHostID, &m.Status,
			&m.Password, &settings, &m.StartedAt, &m.EndedAt, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(settings, &m.Settings); err != nil {
			m.Settings = models.DefaultMeetingSettings()
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// Update patches title and password.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, title, password *string) error {
	const q = `UPDATE meetings SET title = COALESCE($1, title),
		password = COALESCE(NULLIF($2,''), password), updated_at = NOW() WHERE id = $3`
	var t, p interface{}
	if title != nil {
		t = *title
	}
	if password != nil {
		p = *password
	}
	_, err := r.pool.Exec(ctx, q, t, p, id)
	return err
}

// UpdateSettings persists the live settings of a meeting.
func (r *Repository) UpdateSettings(ctx context.Context, id uuid.UUID, settings models.MeetingSettings) error {
	body, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	const q = `UPDATE meetings SET settings = $1, updated_at = NOW() WHERE id = $2`
	_, err = r.pool.Exec(ctx, q, body, id)
	return err
}

// MarkLive flips a meeting to live on first join.
func (r *Repository) MarkLive(ctx context.Context, id uuid.UUID, startedAt time.Time) error {
	const q = `UPDATE meetings SET status = $1, started_at = COALESCE(started_at, $2), updated_at = NOW() WHERE id = $3`
	_, err := r.pool.Exec(ctx, q, string(models.MeetingLive), startedAt, id)
	return err
}

// MarkEnded flips a meeting to ended.
func (r *Repository) MarkEnded(ctx context.Context, id uuid.UUID, endedAt time.Time) error {
	const q = `UPDATE meetings SET status = $1, ended_at = $2, updated_at = NOW() WHERE id = $3`
	_, err := r.pool.Exec(ctx, q, string(models.MeetingEnded), endedAt, id)
	return err
}
