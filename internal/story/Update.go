package story

import (
	"fmt"
	"net/http"

	"failboard/internal/models"
	"failboard/internal/utils"
	"failboard/internal/validators"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ownedStory loads the story and checks the caller wrote it.
func (h *StoryHandler) ownedStory(c *gin.Context) (models.Story, bool) {
	userID, err := utils.GetUserID(c)
	if err != nil {
		utils.Error(c, http.StatusUnauthorized, err.Error())
		return models.Story{}, false
	}
	s, err := h.repo.Get(c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return models.Story{}, false
	}
	if s.AuthorID == nil || *s.AuthorID != userID {
		utils.RespondError(c, fmt.Errorf("%w: only the author can change this story", models.ErrForbidden))
		return models.Story{}, false
	}
	return s, true
}

func (h *StoryHandler) UpdateStory(c *gin.Context) {
	s, ok := h.ownedStory(c)
	if !ok {
		return
	}
	var req validators.UpdateStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusUnprocessableEntity, "invalid story")
		return
	}
	updated, err := h.repo.Edit(c.Request.Context(), s.ID, req.Text)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	h.assistant.IndexAsync(updated)
	utils.Success(c, updated)
}

func (h *StoryHandler) DeleteStory(c *gin.Context) {
	if !utils.Confirmed(c) {
		return
	}
	s, ok := h.ownedStory(c)
	if !ok {
		return
	}
	if _, err := h.repo.Delete(c.Request.Context(), s.ID); err != nil {
		utils.RespondError(c, err)
		return
	}
	h.assistant.Forget(c.Request.Context(), s.ID)
	zap.L().Info("story deleted by author", zap.String("story_id", s.ID))
	utils.Success(c, gin.H{"id": s.ID, "deleted": true})
}
