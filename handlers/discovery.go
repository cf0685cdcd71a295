package handlers

import (
	"math"
	"net/http"

	"spark/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type candidateView struct {
	ID           primitive.ObjectID `json:"id"`
	Name         string             `json:"name"`
	Age          int                `json:"age"`
	Gender       models.Gender      `json:"gender"`
	Bio          string             `json:"bio"`
	Photos       []models.Photo     `json:"photos"`
	PrimaryPhoto string             `json:"primaryPhoto"`
	DistanceKm   float64            `json:"distanceKm"`
}

func newCandidateView(c models.Candidate) candidateView {
	photos := c.User.Photos
	if photos == nil {
		photos = []models.Photo{}
	}
	return candidateView{
		ID:           c.User.ID,
		Name:         c.User.Name,
		Age:          c.User.Age,
		Gender:       c.User.Gender,
		Bio:          c.User.Bio,
		Photos:       photos,
		PrimaryPhoto: models.PrimaryPhoto(c.User),
		DistanceKm:   math.Round(c.DistanceMeters/100) / 10,
	}
}

// ListCandidates handles GET /api/candidates.
func (h *Handler) ListCandidates(c *gin.Context) {
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

	res, err := h.discovery.ListCandidates(ctx, userID, page, limit)
	if err != nil {
		respondError(c, "Discovery", err)
		return
	}

	views := make([]candidateView, 0, len(res.Items))
	for _, cand := range res.Items {
		views = append(views, newCandidateView(cand))
	}
	c.JSON(http.StatusOK, gin.H{
		"candidates": views,
		"page":       res.Page,
		"pageSize":   res.PageSize,
		"hasMore":    res.HasMore,
	})
}
