package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nuestra-historia/internal/api"
	"nuestra-historia/internal/config"
	"nuestra-historia/internal/database"
	"nuestra-historia/internal/memories"
	"nuestra-historia/internal/realtime"
	"nuestra-historia/internal/upload"
	"nuestra-historia/internal/ws"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.LoadConfig()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	db := database.InitGorm(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collection := realtime.NewGormCollection(db,
		realtime.WithLogger(logger),
		realtime.WithPollInterval(cfg.PollInterval),
	)
	defer collection.Close()

	store := memories.NewStore(collection, cfg.Collection, memories.WithLogger(logger))
	uploadClient := upload.NewClient(cfg)
	widgetCfg := upload.WidgetConfig(cfg)

	hub := ws.NewHub(store, uploadClient, widgetCfg, logger)
	go hub.Run(ctx)

	r := gin.Default()

	// CORS Middleware
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	memoryHandler := api.NewMemoryHandler(store)
	uploadHandler := api.NewUploadHandler(uploadClient, widgetCfg)
	healthHandler := api.NewHealthHandler(db, hub)

	r.GET("/healthz", healthHandler.Health)

	// Live gallery sessions
	r.GET("/ws", func(c *gin.Context) {
		hub.ServeWs(c.Writer, c.Request)
	})

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/memories", memoryHandler.GetMemories)
		apiGroup.POST("/memories", memoryHandler.CreateMemory)
		apiGroup.DELETE("/memories/:id", memoryHandler.DeleteMemory)

		apiGroup.GET("/upload/config", uploadHandler.GetConfig)
		apiGroup.POST("/upload", uploadHandler.UploadMedia)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Printf("Server starting on port %s (collection %q, %s)", cfg.Port, cfg.Collection, cfg.DBDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to run server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
}
