package notify

import (
	"net/http"

	"failboard/internal/pubsub"
	"failboard/internal/utils"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

func (h *Handler) List(c *gin.Context) {
	userID, err := utils.GetUserID(c)
	if err != nil {
		utils.Error(c, http.StatusUnauthorized, err.Error())
		return
	}
	snap, err := h.engine.Snapshot(c.Request.Context(), userID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, snap)
}

func (h *Handler) MarkRead(c *gin.Context) {
	userID, err := utils.GetUserID(c)
	if err != nil {
		utils.Error(c, http.StatusUnauthorized, err.Error())
		return
	}
	if err := h.engine.MarkRead(c.Request.Context(), userID, c.Param("id")); err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, gin.H{"id": c.Param("id"), "read": true})
}

func (h *Handler) MarkAllRead(c *gin.Context) {
	userID, err := utils.GetUserID(c)
	if err != nil {
		utils.Error(c, http.StatusUnauthorized, err.Error())
		return
	}
	n, err := h.engine.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, gin.H{"updated": n})
}

// Stream pushes the caller's notification snapshot over a websocket, first
// the current one and then one per change.
func (h *Handler) Stream(c *gin.Context) {
	userID, err := utils.GetUserID(c)
	if err != nil {
		utils.Error(c, http.StatusUnauthorized, err.Error())
		return
	}
	snap, err := h.engine.Snapshot(c.Request.Context(), userID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	ch, cancel := h.engine.Subscribe(userID)
	pubsub.ServeWS(c.Writer, c.Request, ch, cancel, snap)
}
