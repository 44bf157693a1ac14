package messages

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/huddle-live/backend/internal/middleware"
	"github.com/huddle-live/backend/pkg/response"
)

// Handler serves chat history.
type Handler struct {
	repo *Repository
}

// NewHandler creates a message handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// ListByMeeting handles GET /meetings/:id/messages.
func (h *Handler) ListByMeeting(c *gin.Context) {
	meetingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid meeting id")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "200"))

	idVal, _ := c.Get(middleware.ContextUserID)
	callerID, _ := idVal.(uuid.UUID)

	list, err := h.repo.ListByMeeting(c.Request.Context(), meetingID, callerID, limit)
	if err != nil {
		response.Internal(c, "failed to load messages")
		return
	}
	response.OK(c, list)
}
