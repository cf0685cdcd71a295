// Package handlers exposes the match engine over HTTP with gin.
package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"spark/media"
	"spark/notify"
	"spark/services"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Deps struct {
	Discovery *services.DiscoveryService
	Swipes    *services.SwipeService
	Matches   *services.MatchService
	Messages  *services.MessageService
	Uploader  media.Uploader
	Push      *notify.Push
	Timeout   time.Duration
}

type Handler struct {
	discovery *services.DiscoveryService
	swipes    *services.SwipeService
	matches   *services.MatchService
	messages  *services.MessageService
	uploader  media.Uploader
	push      *notify.Push
	timeout   time.Duration
}

func New(d Deps) *Handler {
	if d.Timeout <= 0 {
		d.Timeout = 10 * time.Second
	}
	return &Handler{
		discovery: d.Discovery,
		swipes:    d.Swipes,
		matches:   d.Matches,
		messages:  d.Messages,
		uploader:  d.Uploader,
		push:      d.Push,
		timeout:   d.Timeout,
	}
}

func (h *Handler) reqContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

// currentUser reads the id set by the auth middleware, answering 401 when
// it is missing or malformed.
func currentUser(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.GetString("userId"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "message": "Invalid user ID"})
		return primitive.NilObjectID, false
	}
	return id, true
}

func pathID(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": string(services.KindInvalidInput), "message": "Invalid " + name})
		return primitive.NilObjectID, false
	}
	return id, true
}

// pageParams parses ?page and ?limit. Missing values become 0 and are
// defaulted by the services.
func pageParams(c *gin.Context) (page, limit int, ok bool) {
	for _, p := range []struct {
		name string
		dst  *int
	}{{"page", &page}, {"limit", &limit}} {
		raw := c.Query(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": string(services.KindInvalidInput), "message": "Invalid " + p.name})
			return 0, 0, false
		}
		*p.dst = n
	}
	return page, limit, true
}

var statusByKind = map[services.Kind]int{
	services.KindInvalidInput:       http.StatusBadRequest,
	services.KindNotFound:           http.StatusNotFound,
	services.KindNotAMember:         http.StatusForbidden,
	services.KindForbidden:          http.StatusForbidden,
	services.KindMatchNotActive:     http.StatusConflict,
	services.KindPreconditionFailed: http.StatusPreconditionFailed,
	services.KindConflict:           http.StatusConflict,
	services.KindStorageUnavailable: http.StatusServiceUnavailable,
}

// respondError writes the error kind and message. Storage causes are logged,
// not returned.
func respondError(c *gin.Context, op string, err error) {
	kind := services.KindOf(err)
	status, ok := statusByKind[kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	message := err.Error()
	var se *services.Error
	if errors.As(err, &se) && se.Message != "" {
		message = se.Message
	}
	if kind == services.KindStorageUnavailable {
		log.Printf("[%s] request %s: %v", op, c.GetString("requestId"), err)
		message = "Storage temporarily unavailable"
	}

	c.JSON(status, gin.H{"error": string(kind), "message": message})
}
