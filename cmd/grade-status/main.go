package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"autograde/internal/common/cache"
	commonmw "autograde/internal/common/http/middleware"
	"autograde/internal/grading/controller"
	"autograde/internal/grading/repository"
	"autograde/internal/grading/service"
	"autograde/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/autograde.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	redisCache, err := appCfg.NewCache()
	if err != nil {
		logger.Error(context.Background(), "init redis failed", zap.Error(err))
		return
	}
	if redisCache != nil {
		defer func() {
			_ = redisCache.Close()
		}()
	}

	reports, err := buildReportService(appCfg, redisCache)
	if err != nil {
		logger.Error(context.Background(), "init report service failed", zap.Error(err))
		return
	}

	httpServer := buildHTTPServer(appCfg.Server, reports, redisCache)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Error(context.Background(), "init http listener failed", zap.Error(err))
		return
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "grade status server started", zap.String("addr", appCfg.Server.Addr))
		errCh <- httpServer.Serve(listener)
	}()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error(context.Background(), "http server shutdown failed", zap.Error(err))
	}
}

func buildReportService(appCfg *AppConfig, redisCache cache.Cache) (*service.ReportService, error) {
	inspector, err := appCfg.NewLock(redisCache)
	if err != nil {
		return nil, err
	}
	queue := repository.NewQueue(appCfg.Paths.Submitted)
	cfg := service.ReportConfig{
		Inspector: inspector,
		Queue:     queue,
		Reader:    repository.NewGradedReader(appCfg.AssignmentStore(), queue, appCfg.Grading.ResultExt),
		Policies:  appCfg.LatePolicies,
		Settings:  appCfg.Settings(),
	}
	if redisCache != nil {
		cfg.Progress = repository.NewProgressRepository(redisCache, appCfg.Progress.TTL)
		cfg.Cache = redisCache
		cfg.CacheTTL = appCfg.Report.CacheTTL
	}
	return service.NewReportService(cfg)
}

func buildHTTPServer(cfg ServerConfig, reports *service.ReportService, redisCache cache.Cache) *http.Server {
	router := gin.New()
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(commonmw.Recovery())
	router.Use(commonmw.RequestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	router.GET("/readyz", func(c *gin.Context) {
		if redisCache != nil {
			if err := redisCache.Ping(c.Request.Context()); err != nil {
				c.String(http.StatusServiceUnavailable, "redis unavailable")
				return
			}
		}
		c.String(http.StatusOK, "ok")
	})

	controller.NewGradingController(reports).RegisterRoutes(router)
	router.NoRoute(commonmw.NoRoute)

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}
