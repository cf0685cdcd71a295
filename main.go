package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spark/config"
	"spark/database"
	"spark/handlers"
	"spark/media"
	"spark/memstore"
	"spark/notify"
	"spark/routes"
	"spark/services"
	"spark/websocket"

	"github.com/gin-gonic/gin"
)

// store is what both backends provide.
type store interface {
	services.UserStore
	services.MatchStore
	services.MessageStore
	notify.SubscriptionStore
}

func main() {
	log.Println("🚀 Starting Spark match engine...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("❌ Invalid configuration: ", err)
	}

	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
		log.Println("⚙️ Running in RELEASE mode")
	} else {
		gin.SetMode(gin.DebugMode)
		log.Println("⚙️ Running in DEBUG mode")
	}

	st, err := openStore(cfg)
	if err != nil {
		log.Fatal("❌ Failed to open store: ", err)
	}

	// ===== ENGINE =====
	hub := websocket.NewManager(cfg.AllowedOrigins)
	push := notify.NewPush(st, hub, notify.VAPIDConfig{
		PublicKey:  cfg.VAPIDPublicKey,
		PrivateKey: cfg.VAPIDPrivateKey,
		Subject:    cfg.VAPIDSubject,
	})
	if !push.Enabled() {
		log.Println("⚠️  VAPID keys not set, web push disabled (run tools/vapid to create them)")
	}
	notifier := notify.Fanout{hub, push}

	matchSvc := services.NewMatchService(st, notifier)
	swipeSvc := services.NewSwipeService(st, matchSvc, notifier)
	discoverySvc := services.NewDiscoveryService(st, cfg.SymmetricPreferences)
	messageSvc := services.NewMessageService(st, st, matchSvc, notifier)

	hub.Use(messageSvc, matchSvc)
	go hub.Start()
	log.Println("✅ WebSocket endpoint: /ws")

	uploader, err := media.NewCloudinary(cfg.CloudinaryURL, cfg.CloudinaryFolder)
	if err != nil {
		log.Fatal("❌ Cloudinary configuration error: ", err)
	}

	h := handlers.New(handlers.Deps{
		Discovery: discoverySvc,
		Swipes:    swipeSvc,
		Matches:   matchSvc,
		Messages:  messageSvc,
		Uploader:  uploader,
		Push:      push,
		Timeout:   cfg.RequestTimeout,
	})
	router := routes.SetupRouter(routes.Options{
		JWTSecret:      cfg.JWTSecret,
		AllowedOrigins: cfg.AllowedOrigins,
	}, h, hub)

	// ===== SERVER =====
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("🌐 Server running on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("❌ Server error: ", err)
		}
	}()

	// ===== GRACEFUL SHUTDOWN =====
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Println("❌ Forced shutdown:", err)
	}
	hub.Stop()
	if err := database.DisconnectMongo(); err != nil {
		log.Println("❌ MongoDB disconnect:", err)
	}

	log.Println("👋 Server stopped gracefully")
}

func openStore(cfg config.Config) (store, error) {
	if cfg.StoreBackend == config.BackendMemory {
		log.Println("⚠️  Using the in-memory store, data is lost on restart")
		return memstore.New(), nil
	}

	log.Println("🔌 Connecting to MongoDB...")
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client, err := database.ConnectMongo(ctx, cfg.MongoURI)
	if err != nil {
		return nil, err
	}
	log.Println("✅ MongoDB connected successfully")

	st := database.NewStore(client.Database(cfg.MongoDB))
	if err := st.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	return st, nil
}
