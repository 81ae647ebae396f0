package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/frete360/frete_backend/config"
	"github.com/frete360/frete_backend/erpsync"
	"github.com/frete360/frete_backend/fare"
	"github.com/frete360/frete_backend/imports"
	"github.com/frete360/frete_backend/middlewares"
	"github.com/frete360/frete_backend/models"
	"github.com/frete360/frete_backend/registry"
	"github.com/frete360/frete_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const defaultPort = "8080"

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		gin.SetMode(gin.ReleaseMode)
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Until the database is up only /healthz answers; everything else is 503.
	var handler atomic.Value
	boot := gin.New()
	boot.Use(middlewares.ReadinessMiddleware(config.GetDB))
	handler.Store(http.Handler(boot))

	srv := &http.Server{
		Addr: ":" + port,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handler.Load().(http.Handler).ServeHTTP(w, r)
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	sqlDB := sqlHandle(logger, db)
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()

	if !utils.EnvBoolDefault("SKIP_MIGRATIONS", false) {
		if err := models.MigrateTable(db); err != nil {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Fatal(err)
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	if config.RedisConfigured() {
		config.ConnectRedisWithRetry(sigCtx)
	}

	store := models.NewStore(db)
	router := newRouter(sigCtx, logger, store)
	handler.Store(http.Handler(router))
	logger.WithFields(logrus.Fields{"field": "server", "port": port, "mode": config.BackendMode()}).Info("frete360 api ready")

	select {
	case <-sigCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "server"}).Error(err)
		}
	}
}

func newRouter(ctx context.Context, logger *logrus.Logger, store *models.Store) *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = 32 << 20
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(middlewares.ReadinessMiddleware(config.GetDB))
	r.Use(middlewares.CORS())
	r.Use(middlewares.SessionMiddleware(config.GetRedisDB()))
	r.Use(middlewares.RequestLogger(logger))
	r.Use(gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	erp := newERPService(ctx, logger, store)
	reg := registry.NewService(store)
	fares := fare.NewService(store)

	api := r.Group("/api")

	erpRoutes := api.Group("")
	if limiter := erpRateLimiter(); limiter != nil {
		erpRoutes.Use(limiter.Middleware())
	}
	erpRoutes.GET("/veiculos-erp/check", erpsync.CheckVehiclesHandler(erp))
	erpRoutes.POST("/veiculos-erp/sync", erpsync.SyncVehiclesHandler(erp))
	erpRoutes.POST("/cargas-erp/check", erpsync.CheckCargoHandler(erp))
	erpRoutes.POST("/cargas-erp/sync", erpsync.SyncCargoHandler(erp))
	api.GET("/erp/sync-runs", erpsync.SyncHistoryHandler(store))

	registry.RegisterRoutes(api, reg)
	imports.RegisterRoutes(api, imports.NewImporter(reg, logger))

	api.POST("/fretes/calcular", fare.CalculateHandler(fares))
	api.POST("/fretes", fare.CreateFreightEntryHandler(fares))
	api.GET("/fretes", fare.ListFreightEntriesHandler(fares))
	api.PUT("/fretes/:id/delete", fare.DeleteFreightEntryHandler(fares))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
	return r
}

// newERPService picks the ERP backend once: the mock dataset or the SQL
// Server connection. Lock and event backends follow the environment.
func newERPService(ctx context.Context, logger *logrus.Logger, store *models.Store) *erpsync.Service {
	var source erpsync.Source
	switch config.BackendMode() {
	case config.ModeMock:
		logger.WithFields(logrus.Fields{"field": "erp"}).Warn("APP_MODE=MOCK; serving the built-in ERP dataset")
		source = erpsync.NewMockSource()
	default:
		if err := config.ConnectERPDatabase(); err != nil {
			config.LogError(logger, "main", "newERPService", "connect ERP database", nil, err)
		}
		source = erpsync.NewSQLServerSource(config.GetERPDB())
	}

	opts := []erpsync.Option{
		erpsync.WithLogger(logger),
		erpsync.WithMaxRangeDays(config.ERPMaxRangeDays()),
	}
	if lock := config.GetRedisLock(); lock != nil {
		ttl := time.Duration(utils.IntFromEnv("ERP_SYNC_LOCK_TTL_SECONDS", 60)) * time.Second
		opts = append(opts, erpsync.WithLocker(erpsync.NewRedisLocker(lock, ttl, logger)))
	}
	if config.SyncEventsEnabled() {
		pub, err := erpsync.NewPubSubPublisher(ctx)
		if err != nil {
			config.LogError(logger, "main", "newERPService", "init sync event publisher", nil, err)
		} else {
			opts = append(opts, erpsync.WithPublisher(pub))
		}
	}
	return erpsync.NewService(source, store, opts...)
}

// sqlHandle returns the pool behind db, or nil when gorm cannot expose one.
func sqlHandle(logger *logrus.Logger, db *gorm.DB) *sql.DB {
	sqlDB, err := db.DB()
	if err != nil {
		config.LogError(logger, "main", "sqlHandle", "get database handle", nil, err)
		return nil
	}
	return sqlDB
}

// erpRateLimiter is nil unless RATE_LIMIT_ENABLED=true and Redis is connected.
// RATE_LIMIT_MAX_REQUESTS (default 30) per RATE_LIMIT_WINDOW_SECONDS (default 60).
func erpRateLimiter() *middlewares.RateLimiter {
	client := config.GetRedisDB()
	if !utils.EnvBoolDefault("RATE_LIMIT_ENABLED", false) || client == nil {
		return nil
	}
	limit := utils.IntFromEnv("RATE_LIMIT_MAX_REQUESTS", 30)
	window := utils.IntFromEnv("RATE_LIMIT_WINDOW_SECONDS", 60)
	if limit <= 0 || window <= 0 {
		return nil
	}
	return middlewares.NewRateLimiter(middlewares.NewRedisCounter(client), "erp", int64(limit), time.Duration(window)*time.Second)
}
