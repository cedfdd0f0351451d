package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ClientCounter reports how many live gallery sessions exist.
type ClientCounter interface {
	Count() int
}

type HealthHandler struct {
	DB      *gorm.DB
	Clients ClientCounter
}

func NewHealthHandler(db *gorm.DB, clients ClientCounter) *HealthHandler {
	return &HealthHandler{DB: db, Clients: clients}
}

func (h *HealthHandler) Health(c *gin.Context) {
	sqlDB, err := h.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}

	resp := gin.H{"status": "ok"}
	if h.Clients != nil {
		resp["clients"] = h.Clients.Count()
	}
	c.JSON(http.StatusOK, resp)
}
