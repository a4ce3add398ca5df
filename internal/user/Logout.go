package user

import (
	"net/http"
	"strings"

	"failboard/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Logout revokes the presented token until it would have expired anyway.
func (h *UserHandler) Logout(c *gin.Context) {
	authHeader := c.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		utils.Error(c, http.StatusBadRequest, "invalid token format")
		return
	}
	tokenString := parts[1]

	token, err := utils.ValidateToken(h.cfg, tokenString)
	if err != nil {
		utils.Error(c, http.StatusUnauthorized, "invalid token")
		return
	}
	claims, err := utils.ExtractClaims(token)
	if err != nil {
		utils.Error(c, http.StatusUnauthorized, "invalid token")
		return
	}
	jti, _ := claims["jti"].(string)
	if jti == "" {
		utils.Error(c, http.StatusBadRequest, "token cannot be revoked")
		return
	}

	if h.tokens != nil {
		if err := h.tokens.BlacklistToken(c.Request.Context(), jti, utils.TokenRemaining(claims)); err != nil {
			zap.L().Error("failed to add token to blacklist", zap.Error(err), zap.String("token_part", utils.GetTokenHash(tokenString)))
			utils.Error(c, http.StatusServiceUnavailable, "failed to logout")
			return
		}
	}

	utils.Success(c, gin.H{"message": "logged out successfully"})
}
