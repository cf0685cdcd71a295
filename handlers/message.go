package handlers

import (
	"context"
	"net/http"

	"spark/models"
	"spark/services"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type sendMessageRequest struct {
	MessageType models.MessageType `json:"messageType"`
	Content     models.Content     `json:"content"`
	ReplyTo     string             `json:"replyTo"`
	TempID      string             `json:"tempId"`
}

type editMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

type reactionRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": string(services.KindInvalidInput), "message": message})
}

// SendMessage handles POST /api/matches/:id/messages.
func (h *Handler) SendMessage(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	matchID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	in := services.SendInput{
		Type:    req.MessageType,
		Content: req.Content,
		TempID:  req.TempID,
	}
	if req.ReplyTo != "" {
		replyTo, err := primitive.ObjectIDFromHex(req.ReplyTo)
		if err != nil {
			badRequest(c, "Invalid replyTo")
			return
		}
		in.ReplyTo = &replyTo
	}

	ctx, cancel := h.reqContext(c)
	defer cancel()

	msg, err := h.messages.Send(ctx, matchID, userID, in)
	if err != nil {
		respondError(c, "Message", err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// ListMessages handles GET /api/matches/:id/messages.
func (h *Handler) ListMessages(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	matchID, ok := pathID(c, "id")
	if !ok {
		return
	}
	page, limit, ok := pageParams(c)
	if !ok {
		return
	}

	ctx, cancel := h.reqContext(c)
	defer cancel()

	res, err := h.messages.ListMessages(ctx, matchID, userID, page, limit)
	if err != nil {
		respondError(c, "Message", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"messages": res.Items,
		"page":     res.Page,
		"pageSize": res.PageSize,
		"hasMore":  res.HasMore,
	})
}

// MarkMatchRead handles POST /api/matches/:id/read.
func (h *Handler) MarkMatchRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	matchID, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := h.reqContext(c)
	defer cancel()

	n, err := h.messages.MarkAllReadForMatch(ctx, matchID, userID)
	if err != nil {
		respondError(c, "Message", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

// MarkDelivered handles POST /api/messages/:id/delivered.
func (h *Handler) MarkDelivered(c *gin.Context) {
	h.messageAction(c, h.messages.MarkDelivered)
}

// MarkRead handles POST /api/messages/:id/read.
func (h *Handler) MarkRead(c *gin.Context) {
	h.messageAction(c, h.messages.MarkRead)
}

// EditMessage handles PUT /api/messages/:id.
func (h *Handler) EditMessage(c *gin.Context) {
	var req editMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	h.messageAction(c, func(ctx context.Context, msgID, userID primitive.ObjectID) (models.Message, error) {
		return h.messages.Edit(ctx, msgID, userID, req.Text)
	})
}

// React handles PUT /api/messages/:id/reaction.
func (h *Handler) React(c *gin.Context) {
	var req reactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	h.messageAction(c, func(ctx context.Context, msgID, userID primitive.ObjectID) (models.Message, error) {
		return h.messages.React(ctx, msgID, userID, req.Emoji)
	})
}

// Unreact handles DELETE /api/messages/:id/reaction.
func (h *Handler) Unreact(c *gin.Context) {
	h.messageAction(c, h.messages.Unreact)
}

func (h *Handler) messageAction(c *gin.Context, fn func(ctx context.Context, msgID, userID primitive.ObjectID) (models.Message, error)) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	msgID, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := h.reqContext(c)
	defer cancel()

	msg, err := fn(ctx, msgID, userID)
	if err != nil {
		respondError(c, "Message", err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// UnreadTotal handles GET /api/messages/unread.
func (h *Handler) UnreadTotal(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	ctx, cancel := h.reqContext(c)
	defer cancel()

	n, err := h.messages.UnreadTotal(ctx, userID)
	if err != nil {
		respondError(c, "Message", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": n})
}
