package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"facetrack/internal/attendance"
	"facetrack/internal/auth"
	"facetrack/internal/config"
	"facetrack/internal/httpmiddleware"
	"facetrack/internal/identity"
	"facetrack/internal/queue"
	"facetrack/internal/recognizer"
	"facetrack/internal/store"
)

func main() {
	cfg := config.Load()

	// Set Gin mode based on environment
	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	ctx := context.Background()

	var db *store.DB
	var ledger attendance.Store
	if cfg.StoreBackend == "postgres" {
		var err error
		db, err = store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		repo, err := attendance.NewRepository(ctx, db.Client)
		if err != nil {
			return err
		}
		ledger = repo
	} else {
		csv, err := attendance.NewCSVStore(cfg.AttendanceFile)
		if err != nil {
			return err
		}
		ledger = csv
	}

	registry, err := identity.NewRegistry(cfg.IdentityFile)
	if err != nil {
		return err
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "")
	}

	face := recognizer.New(cfg.FaceServiceURL, cfg.FaceSkip)
	svc := attendance.NewService(ledger, cfg.Cooldown)
	policy := attendance.ReportPolicy{
		MaxSession: cfg.MaxSession,
		Late:       cfg.LateThreshold,
		Early:      cfg.EarlyThreshold,
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewDeviceRateLimit(cfg.RateLimitBurst, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		status := http.StatusOK
		redisHealthy := true
		if cfg.QueueBackend != "memory" {
			redisHealthy = redisClient.Healthy(c.Request.Context())
		}
		faceHealthy := face.Health(c.Request.Context()) == nil
		if !redisHealthy || !faceHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "face": faceHealthy})
	})

	r.POST("/v1/devices/register", func(c *gin.Context) {
		var req struct {
			DeviceID string `json:"device_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		tokens, err := auth.Issue(req.DeviceID, auth.RoleDevice, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
		})
	})

	authGroup := r.Group("/v1", auth.DeviceAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	// Capture devices publish raw detections; the worker turns them into
	// ledger events after recognition.
	authGroup.POST("/detections", func(c *gin.Context) {
		var req struct {
			DeviceID  string `json:"device_id" binding:"required"`
			ImageRef  string `json:"image_ref" binding:"required"`
			CheckType string `json:"check_type" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if _, err := attendance.ParseCheckType(req.CheckType); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if claims, ok := auth.FromContext(c); ok && claims.DeviceID != req.DeviceID {
			c.JSON(http.StatusForbidden, gin.H{"error": "device mismatch"})
			return
		}

		msg, err := queue.NewDetectionMessage(queue.Detection{
			DeviceID:   req.DeviceID,
			ImageRef:   req.ImageRef,
			CheckType:  req.CheckType,
			ObservedAt: time.Now(),
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "encode failed"})
			return
		}
		if err := q.Publish(c.Request.Context(), msg); err != nil {
			log.Printf("queue publish failed: %v", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue unavailable"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
	})

	// Manual event entry for kiosks without a recognizer path.
	authGroup.POST("/events", func(c *gin.Context) {
		var req struct {
			UserID    string `json:"user_id" binding:"required"`
			CheckType string `json:"check_type" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		ct, err := attendance.ParseCheckType(req.CheckType)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		name, _ := registry.Name(req.UserID)
		res, err := svc.Record(c.Request.Context(), req.UserID, name, ct)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, res)
	})

	authGroup.GET("/attendance", func(c *gin.Context) {
		var events []attendance.Event
		var err error
		switch {
		case c.Query("date") != "":
			var day time.Time
			day, err = time.ParseInLocation(attendance.DateLayout, c.Query("date"), time.Local)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
				return
			}
			events, err = ledger.LoadByDate(c.Request.Context(), day)
		case c.Query("user") != "":
			events, err = ledger.LoadByUser(c.Request.Context(), c.Query("user"))
		default:
			events, err = ledger.LoadAll(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": events})
	})

	authGroup.GET("/attendance/latest", func(c *gin.Context) {
		events, err := ledger.LoadAll(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"latest": attendance.LatestAttendance(events)})
	})

	authGroup.GET("/summary", func(c *gin.Context) {
		events, err := ledger.LoadAll(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"summary": attendance.Summarize(events, cfg.MaxSession)})
	})

	authGroup.GET("/report", func(c *gin.Context) {
		events, err := ledger.LoadAll(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		rpt, err := attendance.DailyReport(events, c.Query("month"), policy)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, rpt)
	})

	authGroup.DELETE("/attendance", func(c *gin.Context) {
		if err := ledger.Clear(c.Request.Context()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "cleared"})
	})

	authGroup.DELETE("/attendance/rows", func(c *gin.Context) {
		userID := c.Query("user_id")
		ts, err := time.ParseInLocation(attendance.TimeLayout, c.Query("ts"), time.Local)
		if userID == "" || err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id and ts (YYYY-MM-DD HH:MM:SS) required"})
			return
		}
		ok, err := ledger.Delete(c.Request.Context(), userID, ts)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "row not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	})

	authGroup.GET("/users", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"users": registry.List()})
	})

	authGroup.POST("/users", func(c *gin.Context) {
		var req struct {
			UserID string `json:"user_id" binding:"required"`
			Name   string `json:"name" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := registry.Enroll(req.UserID, req.Name); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"status": "enrolled"})
	})

	authGroup.PUT("/users/:id", func(c *gin.Context) {
		var req struct {
			Name string `json:"name" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		userID := c.Param("id")
		if err := registry.Rename(userID, req.Name); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		touched, err := ledger.RenameUser(c.Request.Context(), userID, req.Name)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "renamed", "rows_updated": touched})
	})

	authGroup.DELETE("/users/:id", func(c *gin.Context) {
		userID := c.Param("id")
		if err := registry.Remove(userID); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		removed, err := ledger.DeleteUser(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "removed", "rows_removed": removed})
	})

	authGroup.POST("/train", func(c *gin.Context) {
		res, err := face.Train(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		if err := registry.Retrain(); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, res)
	})

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
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
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
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
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
