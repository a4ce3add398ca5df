package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"failboard/internal/feed"
	"failboard/internal/gamify"
	"failboard/internal/models"
	"failboard/internal/utils"
	"failboard/internal/validators"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxAvatarSize    = 2 << 20
	searchLimit      = 10
	leaderboardLimit = 10

	leaderboardKey = "leaderboard"
	leaderboardTTL = time.Minute
)

type ProfilePage struct {
	models.Profile
	FollowingCount int                `json:"followingCount"`
	FollowersCount int                `json:"followersCount"`
	IsFollowing    bool               `json:"isFollowing"`
	IsOwner        bool               `json:"isOwner"`
	Stats          feed.AuthorSummary `json:"stats"`
	Progress       gamify.Progress    `json:"progress"`
}

// resolveTarget maps ":id" to a user id, "me" being the caller.
func resolveTarget(c *gin.Context, viewerID string) string {
	if id := c.Param("id"); id != "me" {
		return id
	}
	return viewerID
}

func (h *UserHandler) PersonalPage(c *gin.Context) {
	viewerID, err := utils.GetUserID(c)
	if err != nil {
		utils.Error(c, http.StatusUnauthorized, err.Error())
		return
	}
	targetID := resolveTarget(c, viewerID)
	ctx := c.Request.Context()

	// only the owner's own visit repairs their edges; other viewers read as is
	if targetID == viewerID {
		if _, err := h.graph.Reconcile(ctx, targetID); err != nil && !errors.Is(err, models.ErrNotFound) {
			zap.L().Warn("reconcile follow graph failed", zap.String("user_id", targetID), zap.Error(err))
		}
	}

	var target models.Profile
	if err := h.db.WithContext(ctx).First(&target, "id = ?", targetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(c, http.StatusNotFound, "user not found")
		} else {
			zap.L().Error("db query user failed", zap.Error(err))
			utils.Error(c, http.StatusInternalServerError, "failed to load user")
		}
		return
	}

	page := ProfilePage{
		Profile:        target,
		FollowingCount: len(target.Following),
		FollowersCount: len(target.Followers),
		IsOwner:        viewerID == target.ID,
		Progress:       gamify.ProgressFor(target.Points, target.Streak),
	}
	if !page.IsOwner {
		page.Email = ""
		page.IsFollowing = contains(target.Followers, viewerID)
	}
	if h.stories != nil {
		page.Stats = feed.AuthorStats(h.stories.Stories(), target.ID, time.Now())
	}

	utils.Success(c, page)
}

func (h *UserHandler) UpdateMyProfile(c *gin.Context) {
	userID, err := utils.GetUserID(c)
	if err != nil {
		utils.Error(c, http.StatusUnauthorized, err.Error())
		return
	}

	var req validators.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid request body")
		return
	}

	updates := make(map[string]interface{})
	if req.DisplayName != nil {
		name := strings.TrimSpace(*req.DisplayName)
		if name == "" {
			utils.Error(c, http.StatusBadRequest, "display name cannot be empty")
			return
		}
		updates["display_name"] = name
		updates["display_name_lower"] = strings.ToLower(name)
	}
	if req.Bio != nil {
		updates["bio"] = strings.TrimSpace(*req.Bio)
	}
	if req.EmailNotifications != nil {
		updates["email_notifications"] = *req.EmailNotifications
	}
	if req.DigestEmails != nil {
		updates["digest_emails"] = *req.DigestEmails
	}

	if len(updates) == 0 {
		utils.Error(c, http.StatusBadRequest, "nothing to update")
		return
	}

	ctx := c.Request.Context()
	result := h.db.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", userID).Updates(updates)
	if result.Error != nil {
		zap.L().Error("update profile db error", zap.Error(result.Error))
		utils.Error(c, http.StatusInternalServerError, "update failed")
		return
	}

	if _, ok := updates["display_name"]; ok {
		h.invalidateLeaderboard(ctx)
	}

	var updated models.Profile
	if err := h.db.WithContext(ctx).First(&updated, "id = ?", userID).Error; err != nil {
		utils.Error(c, http.StatusNotFound, "user not found")
		return
	}
	utils.Success(c, updated)
}

func (h *UserHandler) UploadAvatar(c *gin.Context) {
	userID, err := utils.GetUserID(c)
	if err != nil {
		utils.Error(c, http.StatusUnauthorized, err.Error())
		return
	}
	if h.avatars == nil {
		utils.Error(c, http.StatusServiceUnavailable, "file storage unavailable")
		return
	}

	file, err := c.FormFile("avatar")
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "avatar file required")
		return
	}
	if file.Size > maxAvatarSize {
		utils.Error(c, http.StatusRequestEntityTooLarge, "avatar must be 2MB or smaller")
		return
	}
	contentType := file.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		utils.Error(c, http.StatusUnsupportedMediaType, "avatar must be an image")
		return
	}

	src, err := file.Open()
	if err != nil {
		utils.Error(c, http.StatusInternalServerError, "failed to read file")
		return
	}
	defer src.Close()

	objectName := fmt.Sprintf("%s/%s%s", userID, uuid.NewString(), strings.ToLower(filepath.Ext(file.Filename)))
	url, err := h.avatars.UploadImage(c.Request.Context(), objectName, file.Size, src, contentType)
	if err != nil {
		zap.L().Error("upload avatar failed", zap.String("user_id", userID), zap.Error(err))
		utils.Error(c, http.StatusServiceUnavailable, "upload failed")
		return
	}

	if err := h.db.WithContext(c.Request.Context()).Model(&models.Profile{}).Where("id = ?", userID).
		Update("photo_url", url).Error; err != nil {
		zap.L().Error("save avatar url failed", zap.Error(err))
		utils.Error(c, http.StatusInternalServerError, "failed to save avatar")
		return
	}
	utils.Success(c, gin.H{"photoURL": url})
}

// SearchUsers is a display-name prefix search, used for @mentions.
func (h *UserHandler) SearchUsers(c *gin.Context) {
	viewerID, _ := utils.GetUserID(c)
	q := strings.ToLower(strings.TrimSpace(c.Query("q")))
	if q == "" {
		utils.Success(c, []models.UserBrief{})
		return
	}

	escaped := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(q)
	var profiles []models.Profile
	err := h.db.WithContext(c.Request.Context()).
		Select("id", "display_name", "photo_url", "bio", "followers").
		Where("display_name_lower LIKE ? ESCAPE '!'", escaped+"%").
		Where("is_banned = ?", false).
		Order("display_name_lower").
		Limit(searchLimit).
		Find(&profiles).Error
	if err != nil {
		zap.L().Error("search users failed", zap.Error(err))
		utils.Error(c, http.StatusInternalServerError, "search failed")
		return
	}

	out := make([]models.UserBrief, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, brief(p, viewerID))
	}
	utils.Success(c, out)
}

type LeaderboardPage struct {
	TopSupported    []models.LeaderboardEntry `json:"topSupported"`
	TopStorytellers []models.LeaderboardEntry `json:"topStorytellers"`
}

// Leaderboard is served from the cache when one is configured; entries expire
// after about a minute and are dropped when a profile changes.
func (h *UserHandler) Leaderboard(c *gin.Context) {
	ctx := c.Request.Context()
	if board, ok := h.cachedLeaderboard(ctx); ok {
		utils.Success(c, board)
		return
	}

	var board LeaderboardPage
	var err error
	if board.TopSupported, err = h.rank(c, "votes_received DESC"); err != nil {
		utils.Error(c, http.StatusInternalServerError, "failed to load leaderboard")
		return
	}
	if board.TopStorytellers, err = h.rank(c, "story_count DESC"); err != nil {
		utils.Error(c, http.StatusInternalServerError, "failed to load leaderboard")
		return
	}

	if h.cache != nil {
		if data, err := json.Marshal(board); err == nil {
			if err := h.cache.SetWithRandomTTL(ctx, leaderboardKey, string(data), leaderboardTTL); err != nil {
				zap.L().Warn("cache leaderboard failed", zap.Error(err))
			}
		}
	}
	utils.Success(c, board)
}

func (h *UserHandler) cachedLeaderboard(ctx context.Context) (LeaderboardPage, bool) {
	var board LeaderboardPage
	if h.cache == nil {
		return board, false
	}
	raw, ok, err := h.cache.Load(ctx, leaderboardKey)
	if err != nil {
		zap.L().Warn("load cached leaderboard failed", zap.Error(err))
		return board, false
	}
	if !ok || json.Unmarshal([]byte(raw), &board) != nil {
		return board, false
	}
	return board, true
}

func (h *UserHandler) invalidateLeaderboard(ctx context.Context) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Del(ctx, leaderboardKey); err != nil {
		zap.L().Warn("invalidate leaderboard failed", zap.Error(err))
	}
}

func (h *UserHandler) rank(c *gin.Context, order string) ([]models.LeaderboardEntry, error) {
	var profiles []models.Profile
	err := h.db.WithContext(c.Request.Context()).
		Select("id", "display_name", "votes_received", "story_count").
		Where("is_banned = ?", false).
		Order(order).Order("id").
		Limit(leaderboardLimit).
		Find(&profiles).Error
	if err != nil {
		zap.L().Error("leaderboard query failed", zap.String("order", order), zap.Error(err))
		return nil, err
	}
	out := make([]models.LeaderboardEntry, len(profiles))
	for i, p := range profiles {
		out[i] = models.LeaderboardEntry{
			Rank:          i + 1,
			ID:            p.ID,
			DisplayName:   p.DisplayName,
			VotesReceived: p.VotesReceived,
			StoryCount:    p.StoryCount,
		}
	}
	return out, nil
}

func brief(p models.Profile, viewerID string) models.UserBrief {
	return models.UserBrief{
		ID:          p.ID,
		DisplayName: p.DisplayName,
		PhotoURL:    p.PhotoURL,
		Bio:         p.Bio,
		IsFollowing: viewerID != "" && contains(p.Followers, viewerID),
	}
}

func contains(set []string, id string) bool {
	for _, v := range set {
		if v == id {
			return true
		}
	}
	return false
}
