package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/mmdatafocus/dq_backend/config"
	"bitbucket.org/mmdatafocus/dq_backend/dqapi"
	"bitbucket.org/mmdatafocus/dq_backend/middlewares"
	"bitbucket.org/mmdatafocus/dq_backend/models"
	"bitbucket.org/mmdatafocus/dq_backend/utils"
	"bitbucket.org/mmdatafocus/dq_backend/workflow"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

func main() {
	port := os.Getenv("DQ_SERVICE_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	settings, err := config.LoadPipelineSettings()
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "settings"}).Fatal(err)
	}

	config.ConnectDatabaseWithRetry()
	if config.RedisConfigured() {
		config.ConnectRedisWithRetry()
	}

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()

	orchestrator, store, err := workflow.NewFromSettings(db, settings, logger)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "bootstrap"}).Fatal(err)
	}

	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		if err := models.MigrateTable(db, store.CheckTables(), envBool("DQ_MIGRATE_SOURCES")); err != nil {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Fatal(err)
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(cors.New(corsConfig()))
	r.Use(middlewares.RequestLogger(logger))
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/readyz", readinessHandler())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	dqapi.RegisterRoutes(r, dqapi.Deps{
		Processor:    orchestrator,
		Queries:      store,
		Publisher:    entityPublisher(settings),
		Uploader:     utils.UploadReportToGCS,
		ReportBucket: settings.ReportBucket,
		QueryLimit:   settings.QueryLimit,
		JWTSecret:    []byte(settings.JWTSecret),
		Logger:       logger,
	})

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()
	logger.WithFields(logrus.Fields{"field": "server", "port": port}).Info("dq service listening")

	select {
	case <-sigCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	case err := <-serverErrCh:
		if err != nil && err != http.ErrServerClosed {
			logger.WithFields(logrus.Fields{"field": "server"}).Error(err)
		}
	}
}

// entityPublisher returns nil when no topic or project is configured, which
// makes /enqueue answer 503.
func entityPublisher(settings config.PipelineSettings) dqapi.Publisher {
	if settings.EntityTopic == "" || config.PubSubProjectID() == "" {
		return nil
	}
	return dqapi.PubSubPublisher{Topic: settings.EntityTopic, CreateTopic: settings.CreateTopic}
}

func readinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		sqlDB, err := config.GetDB().DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"database": "down"})
			return
		}
		if config.RedisConfigured() {
			rdb := config.GetRedisDB()
			if rdb == nil || rdb.Ping(ctx).Err() != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"redis": "down"})
				return
			}
		}
		c.Status(http.StatusNoContent)
	}
}

func corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		cfg.AllowOrigins = splitAndTrim(allowedOrigins)
		if len(cfg.AllowOrigins) == 0 {
			// cors rejects a config with no origin source at all.
			cfg.AllowOriginFunc = func(string) bool { return false }
		}
	} else {
		cfg.AllowAllOrigins = true
	}
	cfg.AddAllowMethods("GET", "POST", "OPTIONS")
	cfg.AddAllowHeaders("Origin", "Content-Type", "Authorization", middlewares.CorrelationHeader)
	cfg.AddExposeHeaders("Content-Length", "Content-Disposition", "X-Report-Location", middlewares.CorrelationHeader)
	cfg.AllowCredentials = true
	return cfg
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

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes"
}
