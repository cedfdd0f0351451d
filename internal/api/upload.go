package api

import (
	"errors"
	"io"
	"net/http"

	"nuestra-historia/internal/upload"

	"github.com/gin-gonic/gin"
)

type UploadHandler struct {
	Client *upload.Client
	Config upload.Config
}

func NewUploadHandler(client *upload.Client, cfg upload.Config) *UploadHandler {
	return &UploadHandler{Client: client, Config: cfg}
}

// GetConfig returns the settings the browser upload widget is opened with.
func (h *UploadHandler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.Client.Settings(h.Config))
}

// UploadMedia forwards a multipart file to the media host and returns its
// hosted URL. The memory itself is not created.
func (h *UploadHandler) UploadMedia(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open file"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file"})
		return
	}

	res := <-h.Client.Open(c.Request.Context(), h.Config, upload.File{
		Name:   fileHeader.Filename,
		Source: c.PostForm("source"),
		Data:   data,
	})
	if res.Err != nil {
		status := http.StatusBadGateway
		if rejected(res.Err) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": res.Err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"secure_url":    res.SecureURL,
		"resource_type": res.ResourceType,
		"format":        res.Format,
	})
}

func rejected(err error) bool {
	return errors.Is(err, upload.ErrFormatNotAllowed) ||
		errors.Is(err, upload.ErrTooLarge) ||
		errors.Is(err, upload.ErrSourceNotAllowed) ||
		errors.Is(err, upload.ErrEmptyFile)
}
