package handlers

import (
	"context"
	"net/http"
	"time"

	"spark/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// matchView is a match as seen by one of its members.
type matchView struct {
	ID                    primitive.ObjectID   `json:"id"`
	Users                 []primitive.ObjectID `json:"users"`
	PartnerID             primitive.ObjectID   `json:"partnerId"`
	Status                models.MatchStatus   `json:"status"`
	MatchedBy             primitive.ObjectID   `json:"matchedBy"`
	LastMessage           *models.LastMessage  `json:"lastMessage,omitempty"`
	MessageCount          int64                `json:"messageCount"`
	UnreadCount           int                  `json:"unreadCount"`
	IsConversationStarted bool                 `json:"isConversationStarted"`
	IsSuperLike           bool                 `json:"isSuperLike"`
	CreatedAt             time.Time            `json:"createdAt"`
}

func newMatchView(m models.Match, viewer primitive.ObjectID) matchView {
	partner, _ := models.Partner(m, viewer)
	return matchView{
		ID:                    m.ID,
		Users:                 m.Users,
		PartnerID:             partner,
		Status:                m.Status,
		MatchedBy:             m.MatchedBy,
		LastMessage:           m.LastMessage,
		MessageCount:          m.MessageCount,
		UnreadCount:           models.UnreadFor(m, viewer),
		IsConversationStarted: m.IsConversationStarted,
		IsSuperLike:           m.IsSuperLike,
		CreatedAt:             m.CreatedAt,
	}
}

// ListMatches handles GET /api/matches.
func (h *Handler) ListMatches(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	page, limit, ok := pageParams(c)
	if !ok {
		return
	}

	ctx, cancel := h.reqContext(c)
	defer cancel()

	res, err := h.matches.ListForUser(ctx, userID, page, limit)
	if err != nil {
		respondError(c, "Matches", err)
		return
	}

	views := make([]matchView, 0, len(res.Items))
	for _, m := range res.Items {
		views = append(views, newMatchView(m, userID))
	}
	c.JSON(http.StatusOK, gin.H{
		"matches":  views,
		"page":     res.Page,
		"pageSize": res.PageSize,
		"hasMore":  res.HasMore,
	})
}

// GetMatch handles GET /api/matches/:id.
func (h *Handler) GetMatch(c *gin.Context) {
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

	m, err := h.matches.Get(ctx, matchID, userID)
	if err != nil {
		respondError(c, "Matches", err)
		return
	}
	c.JSON(http.StatusOK, newMatchView(m, userID))
}

// Unmatch handles POST /api/matches/:id/unmatch.
func (h *Handler) Unmatch(c *gin.Context) {
	h.transition(c, "Unmatch", h.matches.Unmatch)
}

// Block handles POST /api/matches/:id/block.
func (h *Handler) Block(c *gin.Context) {
	h.transition(c, "Block", h.matches.Block)
}

func (h *Handler) transition(c *gin.Context, op string, apply func(ctx context.Context, matchID, user primitive.ObjectID) (models.Match, error)) {
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

	m, err := apply(ctx, matchID, userID)
	if err != nil {
		respondError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, newMatchView(m, userID))
}
