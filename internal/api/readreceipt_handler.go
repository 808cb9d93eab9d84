package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pccr10001/smsfleet/internal/model"
	"github.com/pccr10001/smsfleet/internal/repository"
	"gorm.io/gorm"
)

type ReadReceiptHandler struct {
	db       *gorm.DB
	sms      *repository.SMSRepository
	hangups  *repository.HangupRepository
	receipts *repository.ReceiptRepository
}

func NewReadReceiptHandler(db *gorm.DB, sms *repository.SMSRepository, hangups *repository.HangupRepository, receipts *repository.ReceiptRepository) *ReadReceiptHandler {
	return &ReadReceiptHandler{db: db, sms: sms, hangups: hangups, receipts: receipts}
}

func validMessageType(t string) bool {
	return t == model.MessageTypeSms || t == model.MessageTypeHangup
}

func (h *ReadReceiptHandler) MarkRead(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req struct {
		MessageType string `json:"messageType"`
		SourceID    uint   `json:"sourceId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	if !validMessageType(req.MessageType) || req.SourceID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "messageType and sourceId are required"})
		return
	}

	if err := h.receipts.MarkRead(user.ID, req.MessageType, req.SourceID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *ReadReceiptHandler) MarkAllRead(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req struct {
		MessageType string `json:"messageType"`
		DeviceID    string `json:"deviceId"`
		ComPort     string `json:"comPort"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	if !validMessageType(req.MessageType) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "messageType is required"})
		return
	}

	vis, err := repository.LoadVisibility(h.db, user.ID, isAdmin(user))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	var ids []uint
	if req.MessageType == model.MessageTypeSms {
		ids, err = h.sms.VisibleIDs(vis, req.DeviceID, req.ComPort)
	} else {
		ids, err = h.hangups.VisibleIDs(vis, req.DeviceID, req.ComPort)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	marked, err := h.receipts.MarkAllRead(user.ID, req.MessageType, ids)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": marked})
}

func (h *ReadReceiptHandler) UnreadCounts(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	vis, err := repository.LoadVisibility(h.db, user.ID, isAdmin(user))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	smsCount, err := h.sms.CountUnread(vis, user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	hangupCount, err := h.hangups.CountUnread(vis, user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sms": smsCount, "hangup": hangupCount})
}
