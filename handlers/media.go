package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"spark/media"

	"github.com/gin-gonic/gin"
)

const (
	maxUploadBytes = 10 << 20
	uploadTimeout  = 30 * time.Second
)

// UploadImage handles POST /api/media/images. The returned url and publicId
// go into an image message's content.
func (h *Handler) UploadImage(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	if err := c.Request.ParseMultipartForm(maxUploadBytes); err != nil {
		badRequest(c, "Failed to parse form data")
		return
	}
	file, _, err := c.Request.FormFile("image")
	if err != nil {
		badRequest(c, "No image file provided")
		return
	}
	defer file.Close()

	ctx, cancel := context.WithTimeout(c.Request.Context(), max(h.timeout, uploadTimeout))
	defer cancel()

	up, err := h.uploader.UploadImage(ctx, userID, file)
	if err != nil {
		if errors.Is(err, media.ErrNotConfigured) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "StorageUnavailable", "message": "Image uploads are not configured"})
			return
		}
		log.Printf("[Media] upload for %s failed: %v", userID.Hex(), err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "UploadFailed", "message": "Failed to upload image"})
		return
	}
	c.JSON(http.StatusOK, up)
}
