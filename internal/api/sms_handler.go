package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pccr10001/smsfleet/internal/model"
	"github.com/pccr10001/smsfleet/internal/repository"
	"gorm.io/gorm"
)

type SMSHandler struct {
	db       *gorm.DB
	sms      *repository.SMSRepository
	receipts *repository.ReceiptRepository
}

func NewSMSHandler(db *gorm.DB, sms *repository.SMSRepository, receipts *repository.ReceiptRepository) *SMSHandler {
	return &SMSHandler{db: db, sms: sms, receipts: receipts}
}

func parsePaging(c *gin.Context) (int, int) {
	pageNumber, _ := strconv.Atoi(c.DefaultQuery("pageNumber", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	return pageNumber, pageSize
}

func parseTimeParam(c *gin.Context, name string) *time.Time {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		u := t.UTC()
		return &u
	}
	return nil
}

type smsRow struct {
	model.SmsMessage
	IsRead bool `json:"isRead"`
}

func (h *SMSHandler) list(c *gin.Context, adminAll bool) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	if adminAll && !isAdmin(user) {
		c.JSON(http.StatusForbidden, gin.H{"message": "Admin access required"})
		return
	}

	vis, err := repository.LoadVisibility(h.db, user.ID, isAdmin(user))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	pageNumber, pageSize := parsePaging(c)
	query := repository.SmsQuery{
		DeviceID:       c.Query("deviceId"),
		ComPort:        c.Query("comPort"),
		SenderNumber:   c.Query("senderNumber"),
		StartTime:      parseTimeParam(c, "startTime"),
		EndTime:        parseTimeParam(c, "endTime"),
		IncludeDeleted: adminAll && c.Query("includeDeleted") == "true",
		PageNumber:     pageNumber,
		PageSize:       pageSize,
	}

	page, rows, err := h.sms.ListVisible(vis, query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	ids := make([]uint, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}
	readSet, err := h.receipts.ReadSet(user.ID, model.MessageTypeSms, ids)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	enriched := make([]smsRow, len(rows))
	for i := range rows {
		enriched[i] = smsRow{SmsMessage: rows[i], IsRead: readSet[rows[i].ID]}
	}
	page.Data = enriched
	c.JSON(http.StatusOK, page)
}

func (h *SMSHandler) ListSms(c *gin.Context) {
	h.list(c, false)
}

func (h *SMSHandler) ListAllAdmin(c *gin.Context) {
	h.list(c, true)
}

func (h *SMSHandler) SoftDelete(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid id"})
		return
	}
	if err := h.sms.SoftDelete(uint(id)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *SMSHandler) HardDelete(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid id"})
		return
	}
	if err := h.sms.HardDelete(uint(id)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
