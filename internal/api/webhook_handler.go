package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pccr10001/smsfleet/internal/model"
	"github.com/pccr10001/smsfleet/internal/repository"
)

type WebhookHandler struct {
	webhooks *repository.WebhookRepository
}

func NewWebhookHandler(webhooks *repository.WebhookRepository) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks}
}

func (h *WebhookHandler) List(c *gin.Context) {
	list, err := h.webhooks.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *WebhookHandler) Create(c *gin.Context) {
	var req struct {
		DeviceID string `json:"deviceId"`
		ComPort  string `json:"comPort"`
		URL      string `json:"url"`
		Template string `json:"template"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	if req.DeviceID == "" || req.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "deviceId and url are required"})
		return
	}
	webhook := model.Webhook{
		DeviceID: req.DeviceID,
		ComPort:  req.ComPort,
		URL:      req.URL,
		Template: req.Template,
		Enabled:  true,
	}
	if err := h.webhooks.Create(&webhook); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, webhook)
}

func (h *WebhookHandler) Delete(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid id"})
		return
	}
	if err := h.webhooks.Delete(uint(id)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
