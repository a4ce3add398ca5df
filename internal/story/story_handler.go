package story

import (
	"context"
	"encoding/json"
	"strings"

	"failboard/internal/bookmark"
	"failboard/internal/gamify"
	"failboard/internal/infra/mq"
	"failboard/internal/models"
	"failboard/internal/notify"
	"failboard/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Publisher interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

type StoryHandler struct {
	repo      *Repository
	bookmarks *bookmark.Store
	notifier  *notify.Engine
	points    *gamify.Service
	assistant *Assistant
	tasks     Publisher
}

// NewStoryHandler wires the story endpoints. points, assistant and tasks may
// be nil; the related side effects are then skipped.
func NewStoryHandler(repo *Repository, bookmarks *bookmark.Store, notifier *notify.Engine,
	points *gamify.Service, assistant *Assistant, tasks Publisher) *StoryHandler {
	return &StoryHandler{
		repo:      repo,
		bookmarks: bookmarks,
		notifier:  notifier,
		points:    points,
		assistant: assistant,
		tasks:     tasks,
	}
}

func (h *StoryHandler) award(userID string, action gamify.Action) {
	if h.points == nil || userID == "" {
		return
	}
	h.points.RecordAsync(userID, action)
}

// notified logs trigger failures; the mutation itself already succeeded.
func notified(trigger string, _ *models.Notification, err error) {
	if err != nil {
		zap.L().Warn("notification failed", zap.String("trigger", trigger), zap.Error(err))
	}
}

func (h *StoryHandler) sendAITask(ctx context.Context, storyID, task string) {
	if h.tasks == nil {
		return
	}
	body, _ := json.Marshal(models.AITaskMsg{StoryID: storyID, Task: task})
	if err := h.tasks.Publish(context.WithoutCancel(ctx), mq.AIQueue, body); err != nil {
		zap.L().Warn("publish ai task failed", zap.String("story_id", storyID), zap.Error(err))
	}
}

// displayName picks the name shown on new content: the submitted one, then
// the logged-in user's, then the repository default.
func displayName(c *gin.Context, submitted string) string {
	if submitted = strings.TrimSpace(submitted); submitted != "" {
		return submitted
	}
	return utils.GetUsername(c)
}

// actorName is the name notifications carry: the account name when logged
// in, never a name typed into the form.
func actorName(c *gin.Context, fallback string) string {
	if name := utils.GetUsername(c); name != "" {
		return name
	}
	return fallback
}
