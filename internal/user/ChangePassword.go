package user

import (
	"errors"
	"net/http"

	"failboard/internal/models"
	"failboard/internal/utils"
	"failboard/internal/validators"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func (h *UserHandler) ModifyPassword(c *gin.Context) {
	userID, err := utils.GetUserID(c)
	if err != nil {
		utils.Error(c, http.StatusUnauthorized, "user not authenticated")
		return
	}

	var req validators.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid request")
		return
	}

	var profile models.Profile
	if err := h.db.WithContext(c.Request.Context()).Select("id", "password_hash").First(&profile, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(c, http.StatusUnauthorized, "user not found")
		} else {
			zap.L().Error("db query failed", zap.Error(err))
			utils.Error(c, http.StatusInternalServerError, "database error")
		}
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(req.OldPassword)); err != nil {
		utils.Error(c, http.StatusUnauthorized, "old password is incorrect")
		return
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		zap.L().Error("hash password failed", zap.Error(err))
		utils.Error(c, http.StatusInternalServerError, "failed to hash new password")
		return
	}

	if err := h.db.WithContext(c.Request.Context()).Model(&models.Profile{}).Where("id = ?", userID).
		Update("password_hash", string(newHash)).Error; err != nil {
		zap.L().Error("update password failed", zap.Error(err))
		utils.Error(c, http.StatusInternalServerError, "failed to update password")
		return
	}

	utils.Success(c, gin.H{"message": "password changed successfully"})
}
