package moderation

import (
	"context"
	"errors"
	"net/http"

	"failboard/internal/feed"
	"failboard/internal/models"
	"failboard/internal/utils"
	"failboard/internal/validators"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// StoryLister adds the snapshot accessor the admin dashboard needs.
type StoryLister interface {
	Get(id string) (models.Story, error)
	Delete(ctx context.Context, id string) (models.Story, error)
	Restore(ctx context.Context, s models.Story) error
	Stories() []models.Story
}

type Handler struct {
	queue   *Queue
	stories StoryLister
	db      *gorm.DB
}

func NewHandler(queue *Queue, stories StoryLister, db *gorm.DB) *Handler {
	return &Handler{queue: queue, stories: stories, db: db}
}

// Report is the public endpoint; anonymous reporters are allowed.
func (h *Handler) Report(c *gin.Context) {
	var req validators.ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid report")
		return
	}
	r, err := h.queue.Submit(c.Request.Context(), SubmitInput{
		StoryID:    c.Param("id"),
		ReporterID: utils.OptionalUserID(c),
		Reason:     req.Reason,
		Detail:     req.Detail,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, gin.H{"id": r.ID, "status": r.Status})
}

func (h *Handler) ListReports(c *gin.Context) {
	reports, err := h.queue.List(c.Request.Context(), models.ReportStatus(c.Query("status")))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, reports)
}

func (h *Handler) Resolve(c *gin.Context) {
	h.finish(c, h.queue.Resolve)
}

func (h *Handler) Dismiss(c *gin.Context) {
	h.finish(c, h.queue.Dismiss)
}

// DeleteStory resolves the report and removes the reported story.
func (h *Handler) DeleteStory(c *gin.Context) {
	if !utils.Confirmed(c) {
		return
	}
	h.finish(c, func(ctx context.Context, id string) (Result, error) {
		return h.queue.ResolveWithDeletion(ctx, id, c.Query("story_id"))
	})
}

func (h *Handler) finish(c *gin.Context, fn func(context.Context, string) (Result, error)) {
	res, err := fn(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, res)
}

func (h *Handler) Bulk(c *gin.Context) {
	var req validators.BulkReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid bulk request")
		return
	}
	if BulkAction(req.Action) == BulkDelete && !utils.Confirmed(c) {
		return
	}
	res, err := h.queue.Bulk(c.Request.Context(), req.IDs, BulkAction(req.Action))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, res)
}

// RemoveStory is the admin delete outside the report workflow.
func (h *Handler) RemoveStory(c *gin.Context) {
	if !utils.Confirmed(c) {
		return
	}
	removed, err := h.stories.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	adminID, _ := utils.GetUserID(c)
	zap.L().Info("story removed by admin", zap.String("story_id", removed.ID), zap.String("admin_id", adminID))
	utils.Success(c, gin.H{"id": removed.ID, "deleted": true})
}

// ToggleBan flips is_banned. Admins cannot ban themselves.
func (h *Handler) ToggleBan(c *gin.Context) {
	if !utils.Confirmed(c) {
		return
	}
	targetID := c.Param("id")
	if adminID, _ := utils.GetUserID(c); adminID == targetID {
		utils.Error(c, http.StatusBadRequest, "cannot ban yourself")
		return
	}

	var p models.Profile
	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", targetID).First(&p).Error; err != nil {
			return err
		}
		p.IsBanned = !p.IsBanned
		return tx.Model(&p).Update("is_banned", p.IsBanned).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.Error(c, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		zap.L().Error("toggle ban failed", zap.String("user_id", targetID), zap.Error(err))
		utils.Error(c, http.StatusInternalServerError, "failed to update user")
		return
	}
	utils.Success(c, gin.H{"id": p.ID, "is_banned": p.IsBanned})
}

type DashboardStats struct {
	TotalStories   int   `json:"total_stories"`
	TotalUsers     int64 `json:"total_users"`
	BannedUsers    int64 `json:"banned_users"`
	PendingReports int64 `json:"pending_reports"`
	TotalVotes     int   `json:"total_votes"`
	TotalComments  int   `json:"total_comments"`
}

func (h *Handler) Stats(c *gin.Context) {
	ctx := c.Request.Context()
	var st DashboardStats

	stories := h.stories.Stories()
	community := feed.CommunityStats(stories, h.queue.now().AddDate(0, 0, -7))
	st.TotalStories = community.TotalStories
	st.TotalComments = community.TotalComments
	for _, s := range stories {
		st.TotalVotes += s.Votes
	}

	// reads degrade to zero rather than failing the dashboard
	if err := h.db.WithContext(ctx).Model(&models.Profile{}).Count(&st.TotalUsers).Error; err != nil {
		zap.L().Warn("count users failed", zap.Error(err))
	}
	if err := h.db.WithContext(ctx).Model(&models.Profile{}).Where("is_banned = ?", true).Count(&st.BannedUsers).Error; err != nil {
		zap.L().Warn("count banned users failed", zap.Error(err))
	}
	if n, err := h.queue.PendingCount(ctx); err == nil {
		st.PendingReports = n
	} else {
		zap.L().Warn("count pending reports failed", zap.Error(err))
	}
	utils.Success(c, st)
}
