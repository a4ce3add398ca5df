package user

import (
	"net/http"
	"strings"

	"failboard/internal/gamify"
	"failboard/internal/models"
	"failboard/internal/utils"
	"failboard/internal/validators"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func (h *UserHandler) Login(c *gin.Context) {
	var req validators.LoginUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid request")
		return
	}

	var profile models.Profile
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if h.db.WithContext(c.Request.Context()).Where("email = ?", email).First(&profile).RowsAffected == 0 {
		utils.Error(c, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(req.Password)); err != nil {
		utils.Error(c, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if profile.IsBanned {
		utils.Error(c, http.StatusForbidden, "account suspended")
		return
	}

	token, err := utils.GenerateToken(h.cfg, profile.ID, profile.DisplayName)
	if err != nil {
		utils.Error(c, http.StatusInternalServerError, "failed to generate token")
		return
	}

	progress := gamify.ProgressFor(profile.Points, profile.Streak)
	if h.points != nil {
		if p, err := h.points.CheckDailyLogin(c.Request.Context(), profile.ID); err != nil {
			zap.L().Warn("daily login check failed", zap.String("user_id", profile.ID), zap.Error(err))
		} else {
			progress = p
		}
	}

	utils.Success(c, gin.H{
		"token":    token,
		"user":     models.Identity{ID: profile.ID, DisplayName: profile.DisplayName, Email: profile.Email},
		"progress": progress,
	})
}
