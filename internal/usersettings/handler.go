package usersettings

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/huddle-live/backend/internal/middleware"
	"github.com/huddle-live/backend/internal/models"
	"github.com/huddle-live/backend/pkg/response"
)

// PutRequest is the body for PUT /settings. Plan is accepted here because
// the demo flow lets a user flip their own subscription flag; a billing
// integration would own it instead.
type PutRequest struct {
	JoinMuted       *bool   `json:"join_muted,omitempty"`
	JoinVideoOff    *bool   `json:"join_video_off,omitempty"`
	CaptionLanguage *string `json:"caption_language,omitempty"`
	Theme           *string `json:"theme,omitempty"`
	Plan            *string `json:"plan,omitempty"`
}

// Handler serves user settings.
type Handler struct {
	repo *Repository
}

// NewHandler creates a settings handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// Get handles GET /settings.
func (h *Handler) Get(c *gin.Context) {
	s, err := h.repo.Get(c.Request.Context(), currentUser(c))
	if err != nil {
		response.Internal(c, "failed to load settings")
		return
	}
	response.OK(c, s)
}

// Put handles PUT /settings.
func (h *Handler) Put(c *gin.Context) {
	var req PutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := currentUser(c)
	s, err := h.repo.Get(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to load settings")
		return
	}
	if req.JoinMuted != nil {
		s.JoinMuted = *req.JoinMuted
	}
	if req.JoinVideoOff != nil {
		s.JoinVideoOff = *req.JoinVideoOff
	}
	if req.CaptionLanguage != nil {
		s.CaptionLanguage = *req.CaptionLanguage
	}
	if req.Theme != nil {
		s.Theme = *req.Theme
	}
	if req.Plan != nil {
		switch models.Plan(*req.Plan) {
		case models.PlanFree, models.PlanPro:
			s.Plan = models.Plan(*req.Plan)
		default:
			response.BadRequest(c, "invalid plan")
			return
		}
	}
	if err := h.repo.Put(c.Request.Context(), s); err != nil {
		response.Internal(c, "failed to save settings")
		return
	}
	response.OK(c, s)
}

func currentUser(c *gin.Context) uuid.UUID {
	idVal, _ := c.Get(middleware.ContextUserID)
	id, _ := idVal.(uuid.UUID)
	return id
}
