package user

import (
	"errors"
	"net/http"
	"strconv"

	"failboard/internal/models"
	"failboard/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (h *UserHandler) FollowUser(c *gin.Context) {
	me, err := utils.GetUserID(c)
	if err != nil {
		utils.Error(c, http.StatusUnauthorized, err.Error())
		return
	}
	targetID := c.Param("id")
	ctx := c.Request.Context()

	already, err := h.graph.IsFollowing(ctx, me, targetID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	if err := h.graph.Follow(ctx, me, targetID); err != nil {
		zap.L().Error("follow user failed", zap.Error(err), zap.String("me", me), zap.String("target", targetID))
		utils.RespondError(c, err)
		return
	}

	if !already && h.notifier != nil {
		if _, err := h.notifier.OnFollow(ctx, me, utils.GetUsername(c), targetID); err != nil {
			zap.L().Warn("follow notification failed", zap.Error(err))
		}
	}
	utils.Success(c, gin.H{"following": me != targetID})
}

func (h *UserHandler) UnfollowUser(c *gin.Context) {
	me, err := utils.GetUserID(c)
	if err != nil {
		utils.Error(c, http.StatusUnauthorized, err.Error())
		return
	}
	if err := h.graph.Unfollow(c.Request.Context(), me, c.Param("id")); err != nil {
		zap.L().Error("unfollow user failed", zap.Error(err))
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, gin.H{"following": false})
}

func (h *UserHandler) GetFollowingList(c *gin.Context) {
	h.listEdges(c, func(p models.Profile) []string { return p.Following })
}

func (h *UserHandler) GetFollowersList(c *gin.Context) {
	h.listEdges(c, func(p models.Profile) []string { return p.Followers })
}

func (h *UserHandler) listEdges(c *gin.Context, side func(models.Profile) []string) {
	viewerID, _ := utils.GetUserID(c)
	targetID := resolveTarget(c, viewerID)
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}

	ctx := c.Request.Context()
	var target models.Profile
	if err := h.db.WithContext(ctx).Select("id", "following", "followers").First(&target, "id = ?", targetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(c, http.StatusNotFound, "user not found")
			return
		}
		utils.Error(c, http.StatusInternalServerError, "failed to load list")
		return
	}

	ids := side(target)
	start := (page - 1) * size
	if start >= len(ids) {
		utils.Success(c, []models.UserBrief{})
		return
	}
	end := min(start+size, len(ids))
	ids = ids[start:end]

	var profiles []models.Profile
	if err := h.db.WithContext(ctx).Select("id", "display_name", "photo_url", "bio", "followers").
		Where("id IN ?", ids).Find(&profiles).Error; err != nil {
		zap.L().Error("get follow list failed", zap.Error(err))
		utils.Error(c, http.StatusInternalServerError, "failed to load list")
		return
	}

	byID := make(map[string]models.Profile, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}
	out := make([]models.UserBrief, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, brief(p, viewerID))
		}
	}
	utils.Success(c, out)
}
