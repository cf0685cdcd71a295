package handlers

import (
	"net/http"

	"spark/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type swipeRequest struct {
	TargetID string          `json:"targetId" binding:"required"`
	Decision models.Decision `json:"decision" binding:"required"`
}

// RecordSwipe handles POST /api/swipes.
func (h *Handler) RecordSwipe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req swipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	target, err := primitive.ObjectIDFromHex(req.TargetID)
	if err != nil {
		badRequest(c, "Invalid targetId")
		return
	}

	ctx, cancel := h.reqContext(c)
	defer cancel()

	res, err := h.swipes.RecordSwipe(ctx, userID, target, req.Decision)
	if err != nil {
		respondError(c, "Swipe", err)
		return
	}

	c.JSON(http.StatusOK, res)
}
