package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"nuestra-historia/internal/memories"

	"github.com/gin-gonic/gin"
)

// MemoryStore is the part of memories.Store the HTTP API uses.
type MemoryStore interface {
	List(ctx context.Context) ([]memories.Memory, error)
	Create(ctx context.Context, f memories.Fields) (string, error)
	Remove(ctx context.Context, id string) error
}

type MemoryHandler struct {
	Store MemoryStore
}

func NewMemoryHandler(store MemoryStore) *MemoryHandler {
	return &MemoryHandler{Store: store}
}

// GetMemories returns the gallery, newest first.
func (h *MemoryHandler) GetMemories(c *gin.Context) {
	list, err := h.Store.List(c.Request.Context())
	if err != nil {
		log.Printf("Error listing memories: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, list)
}

type CreateMemoryRequest struct {
	Title string `json:"title"`
	Date  string `json:"date" binding:"omitempty,datetime=2006-01-02"`
	URL   string `json:"url" binding:"required"`
	Type  string `json:"type" binding:"omitempty,oneof=image video"`
}

func (h *MemoryHandler) CreateMemory(c *gin.Context) {
	var req CreateMemoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if strings.TrimSpace(req.Title) == "" {
		err := &memories.ValidationError{Field: "title", Reason: "add a title to your memory"}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "field": err.Field})
		return
	}

	id, err := h.Store.Create(c.Request.Context(), memories.Fields{
		Title: strings.TrimSpace(req.Title),
		Date:  strings.TrimSpace(req.Date),
		URL:   req.URL,
		Kind:  memories.ParseKind(req.Type),
	})
	if err != nil {
		writeStoreError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// DeleteMemory removes a memory. Deleting an id that is already gone
// succeeds.
func (h *MemoryHandler) DeleteMemory(c *gin.Context) {
	id := c.Param("id")
	if err := h.Store.Remove(c.Request.Context(), id); err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Memory deleted"})
}

func writeStoreError(c *gin.Context, err error) {
	var writeErr *memories.RemoteWriteError
	if errors.As(err, &writeErr) {
		log.Printf("Memory %s failed: %v", writeErr.Op, writeErr.Err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
