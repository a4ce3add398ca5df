package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"failboard/config"
	"failboard/internal/models"
	"failboard/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Blacklist interface {
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

var errMissingToken = errors.New("missing token")

// bearerToken reads the Authorization header. WebSocket handshakes from a
// browser cannot set headers, so they may pass ?token= instead.
func bearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if t := c.Query("token"); t != "" && c.IsWebsocket() {
			return t, nil
		}
		return "", errMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errors.New("invalid token format")
	}
	return parts[1], nil
}

// authenticate validates the bearer token and stores the identity in the
// gin context. A revoked token is rejected even if its signature is valid.
func authenticate(c *gin.Context, cfg *config.Config, bl Blacklist) error {
	tokenString, err := bearerToken(c)
	if err != nil {
		return err
	}

	if bl != nil {
		if jti, ok := utils.TokenID(tokenString); ok {
			revoked, err := bl.IsBlacklisted(c.Request.Context(), jti)
			if err != nil {
				// an unreachable blacklist fails open
				zap.L().Warn("blacklist check failed", zap.Error(err))
			} else if revoked {
				return errors.New("token revoked")
			}
		}
	}

	token, err := utils.ValidateToken(cfg, tokenString)
	if err != nil {
		return errors.New("invalid or expired token")
	}
	claims, err := utils.ExtractClaims(token)
	if err != nil {
		return err
	}
	userID, _ := claims["user_id"].(string)
	if userID == "" {
		return errors.New("invalid token claims")
	}
	username, _ := claims["username"].(string)

	c.Set(utils.CtxUserID, userID)
	c.Set(utils.CtxUsername, username)
	return nil
}

func JWTAuthMiddleware(cfg *config.Config, bl Blacklist) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := authenticate(c, cfg, bl); err != nil {
			utils.Error(c, http.StatusUnauthorized, err.Error())
			return
		}
		c.Next()
	}
}

// OptionalAuthMiddleware lets anonymous requests through but still rejects
// a token that is present and invalid.
func OptionalAuthMiddleware(cfg *config.Config, bl Blacklist) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := authenticate(c, cfg, bl); err != nil && !errors.Is(err, errMissingToken) {
			utils.Error(c, http.StatusUnauthorized, err.Error())
			return
		}
		c.Next()
	}
}

// AdminOnly must run after JWTAuthMiddleware. The flag is read from the
// database on every request so revoking admin rights takes effect at once.
func AdminOnly(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := utils.GetUserID(c)
		if err != nil {
			utils.Error(c, http.StatusUnauthorized, err.Error())
			return
		}

		var p models.Profile
		if err := db.WithContext(c.Request.Context()).Select("id", "is_admin", "is_banned").
			Where("id = ?", userID).First(&p).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				utils.Error(c, http.StatusForbidden, "admin access required")
			} else {
				utils.Error(c, http.StatusInternalServerError, "database error")
			}
			return
		}
		if !p.IsAdmin || p.IsBanned {
			utils.Error(c, http.StatusForbidden, "admin access required")
			return
		}

		c.Set(utils.CtxIsAdmin, true)
		c.Next()
	}
}
