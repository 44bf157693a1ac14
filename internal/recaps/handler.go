package recaps

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/huddle-live/backend/internal/middleware"
	"github.com/huddle-live/backend/pkg/response"
	"github.com/huddle-live/backend/pkg/storage"
)

// Handler serves recap list/detail and archive download URLs.
type Handler struct {
	repo   *Repository
	s3     *storage.S3
	logger *zap.Logger
}

// NewHandler creates a recap handler. s3 may be nil when archiving is
// disabled.
func NewHandler(repo *Repository, s3 *storage.S3, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, s3: s3, logger: logger}
}

// List handles GET /recaps, returning recaps of meetings the caller attended.
func (h *Handler) List(c *gin.Context) {
	idVal, _ := c.Get(middleware.ContextUserID)
	userID, _ := idVal.(uuid.UUID)
	list, err := h.repo.ListByUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list recaps", zap.Error(err))
		response.Internal(c, "failed to list recaps")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /recaps/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid recap id")
		return
	}
	rec, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "recap not found")
		return
	}
	response.OK(c, rec)
}

// ArchiveURL handles GET /recaps/:id/archive-url. It returns a presigned
// download URL for the archived full transcript, when one exists.
func (h *Handler) ArchiveURL(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid recap id")
		return
	}
	rec, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "recap not found")
		return
	}
	if rec.ArchiveKey == "" || h.s3 == nil {
		response.NotFound(c, "no archive for this recap")
		return
	}
	url, err := h.s3.PresignArchiveDownload(c.Request.Context(), rec.ArchiveKey)
	if err != nil {
		h.logger.Error("presign archive url", zap.Error(err))
		response.Internal(c, "failed to generate download url")
		return
	}
	response.OK(c, gin.H{"url": url})
}
