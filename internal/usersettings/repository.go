package usersettings

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/huddle-live/backend/internal/models"
)

// Repository handles per-user settings persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a user settings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns a user's settings, falling back to defaults when no row exists.
func (r *Repository) Get(ctx context.Context, userID uuid.UUID) (*models.UserSettings, error) {
	const q = `SELECT user_id, join_muted, join_video_off, caption_language, theme, plan, updated_at
		FROM user_settings WHERE user_id = $1`
	var s models.UserSettings
	err := r.pool.QueryRow(ctx, q, userID).Scan(&s.UserID, &s.JoinMuted, &s.JoinVideoOff,
		&s.CaptionLanguage, &s.Theme, &s.Plan, &s.UpdatedAt)
	if err == pgx.ErrNoRows {
		defaults := models.DefaultUserSettings(userID)
		return &defaults, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Put upserts a user's settings.
func (r *Repository) Put(ctx context.Context, s *models.UserSettings) error {
	const q = `INSERT INTO user_settings (user_id, join_muted, join_video_off, caption_language, theme, plan)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			join_muted = EXCLUDED.join_muted,
			join_video_off = EXCLUDED.join_video_off,
			caption_language = EXCLUDED.caption_language,
			theme = EXCLUDED.theme,
			plan = EXCLUDED.plan,
			updated_at = NOW()
		RETURNING updated_at`
	return r.pool.QueryRow(ctx, q, s.UserID, s.JoinMuted, s.JoinVideoOff, s.CaptionLanguage,
		s.Theme, string(s.Plan)).Scan(&s.UpdatedAt)
}
