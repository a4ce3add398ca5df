package message

import (
	"errors"
	"net/http"

	"failboard/internal/models"
	"failboard/internal/pubsub"
	"failboard/internal/utils"
	"failboard/internal/validators"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type Handler struct {
	svc *Service
	db  *gorm.DB
}

func NewHandler(svc *Service, db *gorm.DB) *Handler {
	return &Handler{svc: svc, db: db}
}

func (h *Handler) List(c *gin.Context) {
	userID, err := utils.GetUserID(c)
	if err != nil {
		utils.Error(c, http.StatusUnauthorized, err.Error())
		return
	}
	convs, err := h.svc.List(c.Request.Context(), userID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, convs)
}

func (h *Handler) Start(c *gin.Context) {
	userID, err := utils.GetUserID(c)
	if err != nil {
		utils.Error(c, http.StatusUnauthorized, err.Error())
		return
	}
	var req validators.StartConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	var partner models.Profile
	if err := h.db.WithContext(c.Request.Context()).Select("id", "display_name").
		First(&partner, "id = ?", req.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(c, http.StatusNotFound, "user not found")
			return
		}
		utils.Error(c, http.StatusInternalServerError, "failed to load user")
		return
	}

	from := Participant{ID: userID, Name: utils.GetUsername(c)}
	conv, err := h.svc.Start(c.Request.Context(), from, Participant{ID: partner.ID, Name: partner.DisplayName})
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, conv)
}

func (h *Handler) Messages(c *gin.Context) {
	userID, err := utils.GetUserID(c)
	if err != nil {
		utils.Error(c, http.StatusUnauthorized, err.Error())
		return
	}
	msgs, err := h.svc.Messages(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, msgs)
}

func (h *Handler) Send(c *gin.Context) {
	userID, err := utils.GetUserID(c)
	if err != nil {
		utils.Error(c, http.StatusUnauthorized, err.Error())
		return
	}
	var req validators.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	msg, err := h.svc.Send(c.Request.Context(), Participant{ID: userID, Name: utils.GetUsername(c)}, c.Param("id"), req.Text)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, msg)
}

func (h *Handler) Stream(c *gin.Context) {
	userID, err := utils.GetUserID(c)
	if err != nil {
		utils.Error(c, http.StatusUnauthorized, err.Error())
		return
	}
	ch, cancel, err := h.svc.Subscribe(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	pubsub.ServeWS(c.Writer, c.Request, ch, cancel)
}
