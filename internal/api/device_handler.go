package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pccr10001/smsfleet/internal/hub"
	"github.com/pccr10001/smsfleet/internal/model"
	"github.com/pccr10001/smsfleet/internal/modem"
	"github.com/pccr10001/smsfleet/internal/repository"
	"github.com/pccr10001/smsfleet/pkg/logger"
	"gorm.io/gorm"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type DeviceHandler struct {
	hub       *hub.Hub
	snapshots *repository.SnapshotRepository
	sends     *repository.SendRecordRepository
}

func NewDeviceHandler(h *hub.Hub, snapshots *repository.SnapshotRepository, sends *repository.SendRecordRepository) *DeviceHandler {
	return &DeviceHandler{hub: h, snapshots: snapshots, sends: sends}
}

// AgentWS upgrades an agent's persistent connection. Agents
// authenticate implicitly by network placement; browser clients use
// the authenticated ClientWS endpoint instead.
func (h *DeviceHandler) AgentWS(c *gin.Context) {
	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Errorf("Agent websocket upgrade failed: %v", err)
		return
	}
	h.hub.HandleAgentConn(conn)
}

func (h *DeviceHandler) ClientWS(c *gin.Context) {
	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Errorf("Client websocket upgrade failed: %v", err)
		return
	}
	h.hub.HandleClientConn(conn)
}

func (h *DeviceHandler) ConnectedDevices(c *gin.Context) {
	c.JSON(http.StatusOK, h.hub.GetConnectedDeviceIdsSnapshot())
}

func (h *DeviceHandler) ScanComPorts(c *gin.Context) {
	deviceID := c.Param("deviceId")
	if err := h.hub.RequestComPortScan(deviceID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "scan requested"})
}

func (h *DeviceHandler) StartSmsReceiver(c *gin.Context) {
	deviceID := c.Param("deviceId")
	var req struct {
		Ports []hub.ReceiverPortPayload `json:"ports"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	if err := h.hub.RequestStartSmsReceiver(deviceID, req.Ports); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "receiver start requested"})
}

func (h *DeviceHandler) StopSmsReceiver(c *gin.Context) {
	deviceID := c.Param("deviceId")
	if err := h.hub.RequestStopSmsReceiver(deviceID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "receiver stop requested"})
}

func (h *DeviceHandler) GetSnapshot(c *gin.Context) {
	deviceID := c.Param("deviceId")
	ports, err := h.snapshots.Ports(deviceID)
	if err == gorm.ErrRecordNotFound {
		c.JSON(http.StatusNotFound, gin.H{"message": "No snapshot for device"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deviceId": deviceID, "ports": ports})
}

// UpsertSnapshot overwrites the device snapshot with the posted port
// list. The path deviceId wins over any deviceId inside the body.
func (h *DeviceHandler) UpsertSnapshot(c *gin.Context) {
	deviceID := c.Param("deviceId")
	var req struct {
		Ports []modem.PortInfo `json:"ports"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	if err := h.snapshots.Upsert(deviceID, req.Ports); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "snapshot updated"})
}

// SendSms creates a pending send record and dispatches the transaction
// to the owning agent. The record is updated when the agent reports
// the outcome.
func (h *DeviceHandler) SendSms(c *gin.Context) {
	var req struct {
		DeviceID       string `json:"deviceId"`
		ComPort        string `json:"comPort"`
		TargetNumber   string `json:"targetNumber"`
		MessageContent string `json:"messageContent"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	if req.DeviceID == "" || req.ComPort == "" || req.TargetNumber == "" || req.MessageContent == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "deviceId, comPort, targetNumber and messageContent are required"})
		return
	}

	record := model.SmsSendRecord{
		DeviceID:       req.DeviceID,
		ComPort:        req.ComPort,
		TargetNumber:   req.TargetNumber,
		MessageContent: req.MessageContent,
		Status:         model.SendStatusPending,
	}
	if err := h.sends.Create(&record); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	err := h.hub.RequestSendSms(hub.SendSmsPayload{
		DeviceID:       req.DeviceID,
		ComPort:        req.ComPort,
		TargetNumber:   req.TargetNumber,
		MessageContent: req.MessageContent,
		RecordID:       record.ID,
	})
	if err != nil {
		_ = h.sends.UpdateStatus(record.ID, model.SendStatusFailed, err.Error())
		c.JSON(http.StatusNotFound, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *DeviceHandler) ListSendRecords(c *gin.Context) {
	pageNumber, pageSize := parsePaging(c)
	page, err := h.sends.List(pageNumber, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, page)
}
