package handlers

import (
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
)

type subscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
	Keys     struct {
		P256dh string `json:"p256dh" binding:"required"`
		Auth   string `json:"auth" binding:"required"`
	} `json:"keys" binding:"required"`
}

// GetVapidPublicKey handles GET /api/vapid-public-key.
func (h *Handler) GetVapidPublicKey(c *gin.Context) {
	if h.push == nil || !h.push.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "StorageUnavailable",
			"message": "VAPID public key not configured",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"publicKey": h.push.PublicKey()})
}

// SubscribePush handles POST /api/subscribe.
func (h *Handler) SubscribePush(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if h.push == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "StorageUnavailable", "message": "Push notifications are disabled"})
		return
	}

	ctx, cancel := h.reqContext(c)
	defer cancel()

	sub := webpush.Subscription{
		Endpoint: req.Endpoint,
		Keys:     webpush.Keys{P256dh: req.Keys.P256dh, Auth: req.Keys.Auth},
	}
	if err := h.push.Subscribe(ctx, userID, sub); err != nil {
		respondError(c, "Push", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Subscribed"})
}
