package utils

import (
	"errors"
	"net/http"

	"failboard/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: 0, Message: "success", Data: data})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Code: 0, Message: "success", Data: data})
}

func Error(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, Response{Code: status, Message: msg})
}

// RespondError maps domain sentinels to HTTP statuses. Unknown errors are logged and hidden.
func RespondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		Error(c, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrValidation):
		Error(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, models.ErrForbidden):
		Error(c, http.StatusForbidden, err.Error())
	case errors.Is(err, models.ErrPartialGraphUpdate):
		Error(c, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrRemoteUnavailable):
		c.Header("Retry-After", "5")
		Error(c, http.StatusServiceUnavailable, err.Error())
	default:
		zap.L().Error("unhandled error", zap.String("path", c.FullPath()), zap.Error(err))
		Error(c, http.StatusInternalServerError, "internal error")
	}
}

// Confirmed rejects destructive requests that lack confirm=true with 428.
func Confirmed(c *gin.Context) bool {
	if c.Query("confirm") == "true" {
		return true
	}
	Error(c, http.StatusPreconditionRequired, "confirmation required: repeat with confirm=true")
	return false
}
