package main

import (
	"bytes"
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"attendboard/internal/broker"
	"attendboard/internal/config"
	"attendboard/internal/dashboard"
	"attendboard/internal/feed"
	"attendboard/internal/httpmiddleware"
	"attendboard/internal/store"
)

func main() {
	cfg := config.Load()

	// Set Gin mode based on environment
	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("dashboard failed: %v", err)
	}
}

func run(cfg config.App) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	att := store.New(cfg.AttendanceFile, cfg.CacheTTL)
	buf := feed.NewBuffer(cfg.BufferCapacity)

	var redisClient *store.Redis
	var q feed.Queue
	if cfg.QueueBackend == "redis" {
		redisClient = store.NewRedis(cfg.RedisAddr)
		defer redisClient.Close()
		q = feed.NewRedisQueue(redisClient.Client, cfg.RedisQueueKey)
	} else {
		q = feed.NewMemory(cfg.QueueSize)
	}

	// Client id is fixed for the lifetime of the session.
	clientID := cfg.ClientIDPrefix + "-" + uuid.NewString()[:8]
	mq := broker.New(broker.Config{
		Host:     cfg.BrokerHost,
		Port:     cfg.BrokerPort,
		Topic:    cfg.BrokerTopic,
		ClientID: clientID,
	}, q)
	defer mq.Close()

	if err := mq.Setup(); err != nil {
		// Dashboard still serves file history; the UI shows disconnected.
		log.Printf("warning: %v", err)
	}

	ctrl := dashboard.New(att, buf, func() string { return mq.State().String() }, cfg.RecentLimit, cfg.RefreshInterval)
	if err := ctrl.RunCollector(ctx, q); err != nil {
		return err
	}
	go ctrl.Run(ctx)

	r := gin.New()

	// Recovery middleware
	r.Use(gin.Recovery())

	// Custom logger
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))

	// CORS middleware
	r.Use(corsMiddleware())

	// Security headers
	r.Use(securityHeaders())

	// Rate limiting
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		resp := gin.H{"status": "ok", "broker": mq.State().String()}
		if reason := mq.LastError(); reason != "" {
			resp["broker_reason"] = reason
		}
		if redisClient != nil {
			resp["redis"] = redisClient.Healthy(c.Request.Context())
		}
		c.JSON(http.StatusOK, resp)
	})

	v1 := r.Group("/v1")

	v1.GET("/summary", func(c *gin.Context) {
		view := ctrl.View()
		c.JSON(http.StatusOK, gin.H{
			"summary":     view.Summary,
			"rendered_at": view.RenderedAt,
		})
	})

	v1.GET("/records/recent", func(c *gin.Context) {
		view := ctrl.View()
		recent := view.Recent
		if v := c.Query("limit"); v != "" {
			if limit, err := strconv.Atoi(v); err == nil && limit >= 0 && limit < len(recent) {
				recent = recent[:limit]
			}
		}
		c.JSON(http.StatusOK, gin.H{"records": recent})
	})

	v1.GET("/records", func(c *gin.Context) {
		recs, dates, err := ctrl.History(c.Query("name"), c.Query("date"))
		resp := gin.H{"records": recs, "dates": dates}
		if err != nil {
			resp["warning"] = err.Error()
		}
		c.JSON(http.StatusOK, resp)
	})

	v1.GET("/records/export", func(c *gin.Context) {
		var out bytes.Buffer
		filename, err := ctrl.ExportCSV(&out, c.Query("name"), c.Query("date"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Header("Content-Disposition", "attachment; filename="+filename)
		c.Data(http.StatusOK, "text/csv; charset=utf-8", out.Bytes())
	})

	v1.GET("/live", func(c *gin.Context) {
		view := ctrl.View()
		c.JSON(http.StatusOK, gin.H{
			"connection": view.Summary.Connection,
			"events":     view.Live,
		})
	})

	v1.GET("/stats", func(c *gin.Context) {
		view := ctrl.View()
		c.JSON(http.StatusOK, gin.H{
			"by_student": view.ByStudent,
			"by_date":    view.ByDate,
			"top":        view.Top,
		})
	})

	v1.POST("/refresh", func(c *gin.Context) {
		view := ctrl.ForceRender()
		c.JSON(http.StatusOK, gin.H{
			"summary":     view.Summary,
			"rendered_at": view.RenderedAt,
		})
	})

	r.StaticFile("/", "web/index.html")

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting dashboard on :%s (broker %s:%d topic %s client %s)",
			cfg.HTTPPort, cfg.BrokerHost, cfg.BrokerPort, cfg.BrokerTopic, clientID)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down dashboard...")
	cancel()

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Dashboard exited")
	return nil
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
