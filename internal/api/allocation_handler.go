package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pccr10001/smsfleet/internal/model"
	"github.com/pccr10001/smsfleet/internal/repository"
)

type AllocationHandler struct {
	allocations *repository.AllocationRepository
}

func NewAllocationHandler(allocations *repository.AllocationRepository) *AllocationHandler {
	return &AllocationHandler{allocations: allocations}
}

type allocationView struct {
	model.ComAllocation
	ComPorts []string `json:"comPorts"`
}

func toView(a model.ComAllocation) allocationView {
	return allocationView{ComAllocation: a, ComPorts: repository.ComPorts(&a)}
}

func (h *AllocationHandler) List(c *gin.Context) {
	list, err := h.allocations.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	views := make([]allocationView, len(list))
	for i, a := range list {
		views[i] = toView(a)
	}
	c.JSON(http.StatusOK, views)
}

func (h *AllocationHandler) Create(c *gin.Context) {
	var req struct {
		UserID   uint     `json:"userId"`
		DeviceID string   `json:"deviceId"`
		ComPorts []string `json:"comPorts"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	if req.UserID == 0 || req.DeviceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "userId and deviceId are required"})
		return
	}

	allocation := model.ComAllocation{
		UserID:       req.UserID,
		DeviceID:     req.DeviceID,
		ComPortsJson: repository.EncodeComPorts(req.ComPorts),
	}
	if err := h.allocations.Create(&allocation); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toView(allocation))
}

func (h *AllocationHandler) Update(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid id"})
		return
	}
	allocation, err := h.allocations.FindByID(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Allocation not found"})
		return
	}

	var req struct {
		DeviceID *string   `json:"deviceId"`
		ComPorts *[]string `json:"comPorts"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	if req.DeviceID != nil && *req.DeviceID != "" {
		allocation.DeviceID = *req.DeviceID
	}
	if req.ComPorts != nil {
		allocation.ComPortsJson = repository.EncodeComPorts(*req.ComPorts)
	}
	if err := h.allocations.Update(allocation); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toView(*allocation))
}

func (h *AllocationHandler) Delete(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid id"})
		return
	}
	if err := h.allocations.SoftDelete(uint(id)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
