package story

import (
	"net/http"

	"failboard/internal/gamify"
	"failboard/internal/models"
	"failboard/internal/utils"
	"failboard/internal/validators"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CreateStory accepts anonymous and authenticated posts. Logged-in authors
// get the story linked to their account for notifications and points.
func (h *StoryHandler) CreateStory(c *gin.Context) {
	var req validators.CreateStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusUnprocessableEntity, "invalid story")
		return
	}

	authorID := utils.OptionalUserID(c)
	s, err := h.repo.Create(c.Request.Context(), NewStory{
		Text:             req.Text,
		Category:         models.Category(req.Category),
		Author:           displayName(c, req.Author),
		AuthorID:         authorID,
		IsSupportRequest: req.IsSupportRequest,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	zap.L().Info("story created", zap.String("story_id", s.ID), zap.String("category", string(s.Category)))

	if authorID != nil {
		h.award(*authorID, gamify.ShareStory)
	}
	h.assistant.IndexAsync(s)
	if s.IsSupportRequest {
		h.sendAITask(c.Request.Context(), s.ID, TaskSupport)
	}

	utils.Created(c, s)
}
