package routes

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"spark/handlers"
	"spark/middleware"
	"spark/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Options struct {
	JWTSecret      string
	AllowedOrigins []string
}

// SetupRouter builds the engine. hub may be nil, in which case /ws is not
// registered.
func SetupRouter(opts Options, h *handlers.Handler, hub *websocket.Manager) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), middleware.RequestID())

	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Type", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(opts.AllowedOrigins) == 0 || slices.Contains(opts.AllowedOrigins, "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = opts.AllowedOrigins
	}
	router.Use(cors.New(corsConfig))

	var connected func() int
	if hub != nil {
		connected = hub.ConnectedUsers
	}
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": "spark", "status": "running"})
	})
	router.GET("/health", handlers.Health(connected))
	router.GET("/api/health", handlers.Health(connected))
	router.GET("/api/vapid-public-key", h.GetVapidPublicKey)

	auth := middleware.JWTAuthMiddleware(opts.JWTSecret)

	if hub != nil {
		router.GET("/ws", auth, websocket.Handler(hub))
	}

	protected := router.Group("/api")
	protected.Use(auth)

	// Discovery
	protected.GET("/candidates", h.ListCandidates)

	// Swipes
	protected.POST("/swipes", h.RecordSwipe)

	// Matches
	protected.GET("/matches", h.ListMatches)
	protected.GET("/matches/:id", h.GetMatch)
	protected.POST("/matches/:id/unmatch", h.Unmatch)
	protected.POST("/matches/:id/block", h.Block)

	// Messages
	protected.GET("/matches/:id/messages", h.ListMessages)
	protected.POST("/matches/:id/messages", h.SendMessage)
	protected.POST("/matches/:id/read", h.MarkMatchRead)
	protected.GET("/messages/unread", h.UnreadTotal)
	protected.POST("/messages/:id/delivered", h.MarkDelivered)
	protected.POST("/messages/:id/read", h.MarkRead)
	protected.PUT("/messages/:id", h.EditMessage)
	protected.PUT("/messages/:id/reaction", h.React)
	protected.DELETE("/messages/:id/reaction", h.Unreact)

	// Media
	protected.POST("/media/images", h.UploadImage)

	// Push subscriptions
	protected.POST("/subscribe", h.SubscribePush)

	router.NoRoute(func(c *gin.Context) {
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/api") || path == "/ws" {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "NotFound",
				"path":    path,
				"message": "Endpoint not found",
			})
			return
		}
		c.Status(http.StatusNotFound)
	})

	return router
}
