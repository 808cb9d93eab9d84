package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pccr10001/smsfleet/internal/model"
	"github.com/pccr10001/smsfleet/internal/repository"
	"gorm.io/gorm"
)

type HangupHandler struct {
	db       *gorm.DB
	hangups  *repository.HangupRepository
	receipts *repository.ReceiptRepository
}

func NewHangupHandler(db *gorm.DB, hangups *repository.HangupRepository, receipts *repository.ReceiptRepository) *HangupHandler {
	return &HangupHandler{db: db, hangups: hangups, receipts: receipts}
}

type hangupRow struct {
	model.CallHangupRecord
	IsRead bool `json:"isRead"`
}

func (h *HangupHandler) list(c *gin.Context, adminAll bool) {
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
	query := repository.HangupQuery{
		DeviceID:       c.Query("deviceId"),
		ComPort:        c.Query("comPort"),
		CallerNumber:   c.Query("callerNumber"),
		StartTime:      parseTimeParam(c, "startTime"),
		EndTime:        parseTimeParam(c, "endTime"),
		IncludeDeleted: adminAll && c.Query("includeDeleted") == "true",
		PageNumber:     pageNumber,
		PageSize:       pageSize,
	}

	page, rows, err := h.hangups.ListVisible(vis, query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	ids := make([]uint, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}
	readSet, err := h.receipts.ReadSet(user.ID, model.MessageTypeHangup, ids)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	enriched := make([]hangupRow, len(rows))
	for i := range rows {
		enriched[i] = hangupRow{CallHangupRecord: rows[i], IsRead: readSet[rows[i].ID]}
	}
	page.Data = enriched
	c.JSON(http.StatusOK, page)
}

func (h *HangupHandler) ListRecords(c *gin.Context) {
	h.list(c, false)
}

func (h *HangupHandler) ListAllAdmin(c *gin.Context) {
	h.list(c, true)
}

func (h *HangupHandler) SoftDelete(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid id"})
		return
	}
	if err := h.hangups.SoftDelete(uint(id)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *HangupHandler) HardDelete(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid id"})
		return
	}
	if err := h.hangups.HardDelete(uint(id)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
