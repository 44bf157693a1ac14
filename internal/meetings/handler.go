package meetings

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/huddle-live/backend/internal/middleware"
	"github.com/huddle-live/backend/internal/models"
	"github.com/huddle-live/backend/internal/realtime"
	"github.com/huddle-live/backend/pkg/response"
)

// CreateRequest is the body for POST /meetings.
type CreateRequest struct {
	Title    string `json:"title" binding:"required"`
	Password string `json:"password"`
}

// PatchRequest is the body for PATCH /meetings/:id.
type PatchRequest struct {
	Title    *string                 `json:"title,omitempty"`
	Password *string                 `json:"password,omitempty"`
	Settings *realtime.SettingsPatch `json:"settings,omitempty"`
}

// MeetingResponse is the meeting lookup contract the clients rely on.
type MeetingResponse struct {
	ID       uuid.UUID              `json:"id"`
	Title    string                 `json:"title"`
	HostID   uuid.UUID              `json:"host_id"`
	Status   models.MeetingStatus   `json:"status"`
	Settings models.MeetingSettings `json:"settings"`
	HasPass  bool                   `json:"has_password"`
}

// Handler handles meeting HTTP endpoints.
type Handler struct {
	repo     *Repository
	registry *realtime.Registry
}

// NewHandler creates a meeting handler.
func NewHandler(repo *Repository, registry *realtime.Registry) *Handler {
	return &Handler{repo: repo, registry: registry}
}

// Create handles POST /meetings. The creator becomes the meeting host.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	hostID := currentUser(c)
	m := &models.Meeting{
		Title:    req.Title,
		HostID:   hostID,
		Password: req.Password,
		Settings: models.DefaultMeetingSettings(),
	}
	if err := h.repo.Create(c.Request.Context(), m); err != nil {
		response.Internal(c, "failed to create meeting")
		return
	}
	m.Status = models.MeetingScheduled
	response.Created(c, toResponse(m))
}

// GetByID handles GET /meetings/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid meeting id")
		return
	}
	m, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "meeting not found")
		return
	}
	response.OK(c, toResponse(m))
}

// List handles GET /meetings (meetings created by the caller).
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.ListByHost(c.Request.Context(), currentUser(c))
	if err != nil {
		response.Internal(c, "failed to list meetings")
		return
	}
	out := make([]MeetingResponse, 0, len(list))
	for i := range list {
		out = append(out, toResponse(&list[i]))
	}
	response.OK(c, out)
}

// Patch handles PATCH /meetings/:id. Only the original host may patch over
// HTTP; live settings changes also fan out through the realtime channel when
// the session is running.
func (h *Handler) Patch(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid meeting id")
		return
	}
	m, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "meeting not found")
		return
	}
	if m.OriginalHostID != currentUser(c) {
		response.Forbidden(c, "only the meeting host may update it")
		return
	}

	var req PatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Title != nil || req.Password != nil {
		if err := h.repo.Update(c.Request.Context(), id, req.Title, req.Password); err != nil {
			response.Internal(c, "failed to update meeting")
			return
		}
	}
	if req.Settings != nil {
		if sess := h.registry.Session(id); sess != nil {
			// Live session: route through the session so connected clients see
			// the change; the broker path persists it.
			settings := sess.ApplySettings(*req.Settings)
			if err := h.repo.UpdateSettings(c.Request.Context(), id, settings); err != nil {
				response.Internal(c, "failed to update settings")
				return
			}
			h.registry.PublishSettings(sess)
		} else {
			settings := applyPatch(m.Settings, *req.Settings)
			if err := h.repo.UpdateSettings(c.Request.Context(), id, settings); err != nil {
				response.Internal(c, "failed to update settings")
				return
			}
		}
	}
	updated, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to reload meeting")
		return
	}
	response.OK(c, toResponse(updated))
}

// Participants handles GET /meetings/:id/participants, the live roster.
func (h *Handler) Participants(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid meeting id")
		return
	}
	sess := h.registry.Session(id)
	if sess == nil {
		response.OK(c, []realtime.ParticipantState{})
		return
	}
	response.OK(c, sess.Roster())
}

func toResponse(m *models.Meeting) MeetingResponse {
	return MeetingResponse{
		ID:       m.ID,
		Title:    m.Title,
		HostID:   m.HostID,
		Status:   m.Status,
		Settings: m.Settings,
		HasPass:  m.Password != "",
	}
}

func applyPatch(s models.MeetingSettings, patch realtime.SettingsPatch) models.MeetingSettings {
	if patch.WaitingRoomEnabled != nil {
		s.WaitingRoomEnabled = *patch.WaitingRoomEnabled
	}
	if patch.AllowSelfUnmute != nil {
		s.AllowSelfUnmute = *patch.AllowSelfUnmute
	}
	if patch.ScreenSharePolicy != nil {
		s.ScreenSharePolicy = *patch.ScreenSharePolicy
	}
	if patch.WhiteboardPolicy != nil {
		s.WhiteboardPolicy = *patch.WhiteboardPolicy
	}
	return s
}

func currentUser(c *gin.Context) uuid.UUID {
	idVal, _ := c.Get(middleware.ContextUserID)
	id, _ := idVal.(uuid.UUID)
	return id
}
