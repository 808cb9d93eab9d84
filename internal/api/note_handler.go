package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pccr10001/smsfleet/internal/model"
	"github.com/pccr10001/smsfleet/internal/repository"
)

type NoteHandler struct {
	notes *repository.NoteRepository
}

func NewNoteHandler(notes *repository.NoteRepository) *NoteHandler {
	return &NoteHandler{notes: notes}
}

func (h *NoteHandler) List(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	pageNumber, pageSize := parsePaging(c)
	page, err := h.notes.ListByUser(user.ID, pageNumber, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *NoteHandler) Create(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req struct {
		Title       string `json:"title"`
		ContentHtml string `json:"contentHtml"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	note := model.Note{UserID: user.ID, Title: req.Title, ContentHtml: req.ContentHtml}
	if err := h.notes.Create(&note); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, note)
}

func (h *NoteHandler) Update(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid id"})
		return
	}
	note, err := h.notes.FindByID(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Note not found"})
		return
	}
	if note.UserID != user.ID && !isAdmin(user) {
		c.JSON(http.StatusForbidden, gin.H{"message": "Not your note"})
		return
	}

	var req struct {
		Title       *string `json:"title"`
		ContentHtml *string `json:"contentHtml"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	if req.Title != nil {
		note.Title = *req.Title
	}
	if req.ContentHtml != nil {
		note.ContentHtml = *req.ContentHtml
	}
	if err := h.notes.Update(note); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, note)
}

func (h *NoteHandler) Delete(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid id"})
		return
	}
	note, err := h.notes.FindByID(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Note not found"})
		return
	}
	if note.UserID != user.ID && !isAdmin(user) {
		c.JSON(http.StatusForbidden, gin.H{"message": "Not your note"})
		return
	}
	if err := h.notes.SoftDelete(note.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
