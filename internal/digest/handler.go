package digest

import (
	"net/http"

	"failboard/internal/utils"
	"failboard/internal/validators"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	runner *Runner
}

func NewHandler(runner *Runner) *Handler {
	return &Handler{runner: runner}
}

// Send runs the digest synchronously and reports the outcome counts.
func (h *Handler) Send(c *gin.Context) {
	if !utils.Confirmed(c) {
		return
	}
	var req validators.DigestRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.Error(c, http.StatusBadRequest, err.Error())
			return
		}
	}
	res, err := h.runner.Run(c.Request.Context(), req.Recipients)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, res)
}
