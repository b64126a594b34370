package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stockroom/inventory_backend/config"
	"github.com/stockroom/inventory_backend/middlewares"
	"github.com/stockroom/inventory_backend/models"
	"github.com/stockroom/inventory_backend/models/reports"
	"github.com/stockroom/inventory_backend/utils"
	"github.com/stockroom/inventory_backend/workflow"
)

const defaultPort = "8080"

type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func respond(c *gin.Context, result any, err error) {
	resp := utils.NewResponse(result, err)
	if err != nil {
		_ = c.Error(err)
	}
	c.JSON(resp.StatusCode, resp)
}

func referenceParams(c *gin.Context) (models.InventoryReferenceType, int, error) {
	refType := models.InventoryReferenceType(strings.ToUpper(c.Param("type")))
	if !refType.IsValid() {
		return "", 0, utils.NewFieldValidationError("type", "unknown reference type %s", c.Param("type"))
	}
	refId, err := strconv.Atoi(c.Param("id"))
	if err != nil || refId <= 0 {
		return "", 0, utils.NewFieldValidationError("id", "invalid id %s", c.Param("id"))
	}
	return refType, refId, nil
}

func outboxStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		refType, refId, err := referenceParams(c)
		if err != nil {
			respond(c, nil, err)
			return
		}
		status, err := models.GetOutboxStatus(c.Request.Context(), refType, refId)
		respond(c, status, err)
	}
}

// outboxReprocessHandler requeues FAILED/DEAD outbox rows of one entity.
func outboxReprocessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		refType, refId, err := referenceParams(c)
		if err != nil {
			respond(c, nil, err)
			return
		}
		status, err := models.ReprocessOutbox(c.Request.Context(), refType, refId)
		respond(c, status, err)
	}
}

func reconciliationHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		repair := strings.EqualFold(c.Query("repair"), "true")
		summary, err := workflow.RunReconciliationChecks(c.Request.Context(), logger, repair)
		respond(c, summary, err)
	}
}

func stockReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		categoryId := 0
		if v := c.Query("category_id"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				respond(c, nil, utils.NewFieldValidationError("category_id", "invalid category id %s", v))
				return
			}
			categoryId = n
		}
		rows, err := reports.GetStockReport(c.Request.Context(), categoryId)
		if err != nil || c.Query("format") != "xlsx" {
			respond(c, rows, err)
			return
		}

		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename=stock.xlsx")
		if err := reports.WriteStockReportXlsx(c.Writer, rows); err != nil {
			_ = c.Error(err)
			c.Status(http.StatusInternalServerError)
		}
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func newRouter(logger *logrus.Logger) *gin.Engine {
	r := gin.New()
	// Correlation IDs: one per request, carried onto outbox rows.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Header("x-correlation-id", cid)
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		switch c.Request.URL.Path {
		case "/healthz":
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		case "/metrics":
			c.Next()
			return
		}
		// redis is optional; the database is not
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization", "x-correlation-id")
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition")
	r.Use(cors.New(corsConfig))

	// Env: RATE_LIMIT_ENABLED=true, RATE_LIMIT_WINDOW_SECONDS=60, RATE_LIMIT_MAX_REQUESTS=600
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") && config.GetRedisDB() != nil {
		limit := int64(config.IntFromEnv("RATE_LIMIT_MAX_REQUESTS", 600))
		window := time.Duration(config.IntFromEnv("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second
		r.Use(NewRateLimiter(config.GetRedisDB(), limit, window).RateLimitMiddleware)
	}

	r.Use(middlewares.AuthMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	ops := r.Group("/internal", middlewares.AdminOnly())
	ops.GET("/ops/outbox/:type/:id", outboxStatusHandler())
	ops.POST("/ops/outbox/:type/:id/reprocess", outboxReprocessHandler())
	ops.POST("/ops/reconciliation", reconciliationHandler(logger))
	ops.GET("/reports/stock", stockReportHandler())

	r.NoRoute(customNotFoundHandler)
	return r
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect dependencies before the router reads the redis client for rate limiting.
	config.ConnectDatabaseWithRetry()
	if config.RedisAddress() != "" {
		config.ConnectRedisWithRetry()
	} else {
		logger.WithFields(logrus.Fields{"field": "redis"}).Warn("REDIS_ADDRESS not set; cache and stock lock disabled")
	}

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate runs DDL; allow running it as a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	for attempt := 1; ; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			break
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
		time.Sleep(sleep)
	}

	// Outbox dispatcher publishes committed inventory events.
	dispatcherCtx, cancelDispatcher := context.WithCancel(context.Background())
	defer cancelDispatcher()
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("OUTBOX_DISPATCHER_DISABLED")), "true") {
		go workflow.NewOutboxDispatcher(db, logger).Run(dispatcherCtx)
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: newRouter(logger),
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()
	log.Println("Server started on port " + port)

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop the dispatcher before draining requests.
	cancelDispatcher()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger logs only requests that ended with errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		entry := logger.WithFields(logrus.Fields{
			"path":           c.FullPath(),
			"status":         c.Writer.Status(),
			"correlation_id": cid,
		})
		// expected rejections are not server errors
		if c.Writer.Status() < http.StatusInternalServerError {
			entry.Debug(c.Errors.String())
			return
		}
		entry.Error(c.Errors.String())
	}
}

func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// RateLimitMiddleware counts requests per client IP in a fixed redis window.
func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	key := "ratelimit:" + c.ClientIP()

	count, err := rl.client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	if count == 1 {
		if err := rl.client.Expire(c.Request.Context(), key, rl.window).Err(); err != nil {
			_ = c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
	}

	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}

	c.Next()
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
