package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/orderstack/pos-ledger/internal/cloud"
	"github.com/orderstack/pos-ledger/internal/cloudingest"
	"github.com/orderstack/pos-ledger/pkg/db"
	"github.com/orderstack/pos-ledger/pkg/redis"
)

// Handler exposes the ingest endpoint the device sync engines push to, plus a
// per-tenant summary for back-office dashboards.
type Handler struct {
	svc   *cloudingest.Service
	store *db.DB
}

func NewHandler(svc *cloudingest.Service, store *db.DB) *Handler {
	return &Handler{svc: svc, store: store}
}

// SyncSales ingests a batch of ledger rows for one tenant. Replays of rows
// already ingested count as accepted, so devices can resend the same batch
// after a lost response without double-counting.
func (h *Handler) SyncSales(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenant_id is required"})
		return
	}

	var req cloud.SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	log.Info().
		Str("tenant_id", tenantID).
		Int("submitted", len(req.Transactions)).
		Msg("Received sync batch")

	resp := h.svc.Ingest(c.Request.Context(), tenantID, req.Transactions)

	statusCode := http.StatusOK
	if !resp.Success {
		statusCode = http.StatusAccepted // 202: batch processed, part of it rejected
	}
	c.JSON(statusCode, resp)
}

// GetSummary returns the ingested-sales rollup for one tenant and day.
func (h *Handler) GetSummary(c *gin.Context) {
	tenantID := c.Param("tenant_id")

	day := time.Now().UTC()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, expected YYYY-MM-DD"})
			return
		}
		day = parsed
	}
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	summary, err := h.svc.Summary(c.Request.Context(), tenantID, from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// HealthCheck reports whether the ingest store is reachable.
func (h *Handler) HealthCheck(c *gin.Context) {
	conn, err := h.store.Conn(c.Request.Context()).DB()
	if err == nil {
		err = conn.Ping()
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
	})
}

// SetupRouter configures all routes
func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.Default()

	// Add request logging middleware
	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Msg("Request processed")
	})

	// API routes
	api := router.Group("/api")
	{
		api.POST("/sales/:tenant_id/sync", handler.SyncSales)
		api.GET("/sales/:tenant_id/summary", handler.GetSummary)
	}

	// Root health check
	router.GET("/health", handler.HealthCheck)

	return router
}

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Get configuration from environment
	port := getEnv("PORT", "8081")
	pgConf := db.PostgresConfig{
		Host:     getEnv("POSTGRES_WRITE_HOST", "localhost"),
		Port:     getEnv("POSTGRES_WRITE_PORT", "5432"),
		User:     getEnv("POSTGRES_WRITE_USER", "postgres"),
		Password: getEnv("POSTGRES_WRITE_PASSWORD", ""),
		Database: getEnv("POSTGRES_WRITE_DBNAME", "pos_cloud"),
	}

	log.Info().
		Str("port", port).
		Str("db_host", pgConf.Host).
		Str("db_name", pgConf.Database).
		Msg("Starting cloud ingest server")

	store, err := db.OpenPostgres(pgConf, getEnv("APP_ENV", "dev") == "dev")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to postgres")
	}

	// The dedupe cache is optional. Without redis every replay still lands on
	// the unique (tenant_id, invoice_number) key, just without the fast path.
	var dedupe *cloudingest.DedupeCache
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		adapter, err := redis.NewRedisAdapter("cloud-ingest", getEnv("REDIS_UNIVERSAL_KEY_PREFIX", ""), &redis.Options{
			Addrs:      []string{addr},
			ClientName: "cloud-ingest",
			Username:   os.Getenv("REDIS_USER"),
			Password:   os.Getenv("REDIS_PASS"),
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to redis")
		}
		dedupe = cloudingest.NewDedupeCache(adapter)
	}

	ingestStore := cloudingest.NewStore(store)
	svc := cloudingest.NewService(ingestStore, dedupe)
	handler := NewHandler(svc, store)
	router := SetupRouter(handler)

	// Setup HTTP server
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
