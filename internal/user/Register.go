package user

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"failboard/internal/models"
	"failboard/internal/utils"
	"failboard/internal/validators"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func (h *UserHandler) Register(c *gin.Context) {
	var req validators.RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid request")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	name := strings.TrimSpace(req.DisplayName)

	var exists models.Profile
	err := h.db.WithContext(c.Request.Context()).Select("id").Where("email = ?", email).First(&exists).Error
	if err == nil {
		utils.Error(c, http.StatusConflict, "email already registered")
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		zap.L().Error("db query failed", zap.Error(err))
		utils.Error(c, http.StatusInternalServerError, "database error")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		zap.L().Error("hash password failed", zap.Error(err))
		utils.Error(c, http.StatusInternalServerError, "failed to register")
		return
	}

	profile := models.Profile{
		ID:                 uuid.Must(uuid.NewV7()).String(),
		DisplayName:        name,
		DisplayNameLower:   strings.ToLower(name),
		Email:              email,
		PasswordHash:       string(hashed),
		Following:          []string{},
		Followers:          []string{},
		Badges:             []string{},
		EmailNotifications: true,
		DigestEmails:       true,
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&profile).Error; err != nil {
		zap.L().Error("create profile failed", zap.Error(err))
		utils.Error(c, http.StatusInternalServerError, "failed to register")
		return
	}

	h.sendWelcome(c.Request.Context(), profile)

	token, err := utils.GenerateToken(h.cfg, profile.ID, profile.DisplayName)
	if err != nil {
		utils.Error(c, http.StatusInternalServerError, "failed to generate token")
		return
	}

	utils.Created(c, gin.H{
		"token": token,
		"user":  models.Identity{ID: profile.ID, DisplayName: profile.DisplayName, Email: profile.Email},
	})
}

func (h *UserHandler) sendWelcome(ctx context.Context, p models.Profile) {
	if h.mailer == nil {
		return
	}
	err := h.mailer.Dispatch(ctx, models.EmailMsg{
		Template: models.TemplateWelcome,
		To:       p.Email,
		Vars:     map[string]any{"name": p.DisplayName},
	})
	if err != nil {
		zap.L().Warn("welcome email not queued", zap.String("user_id", p.ID), zap.Error(err))
	}
}
