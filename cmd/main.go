package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fyerfyer/delta-render-service/api"
	"github.com/fyerfyer/delta-render-service/api/handler"
	"github.com/fyerfyer/delta-render-service/api/middleware"
	rsconfig "github.com/fyerfyer/delta-render-service/config"
	"github.com/fyerfyer/delta-render-service/internal/cache"
	"github.com/fyerfyer/delta-render-service/internal/database"
	"github.com/fyerfyer/delta-render-service/internal/repository"
	"github.com/fyerfyer/delta-render-service/internal/services"
	"github.com/fyerfyer/delta-render-service/pkg/storage"
	"github.com/fyerfyer/delta-render-service/pkg/taskqueue"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	// 加载.env文件(如果存在)
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env file")
	}

	configFile := flag.String("config", "", "Path to config file")
	port := flag.Int("port", 0, "Server port (overrides config)")
	flag.Parse()

	cfg, err := rsconfig.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	gin.SetMode(cfg.Server.Mode)

	logger := setupLogger(cfg.Log)
	logger.Info("Starting delta render service...")

	if err := setupDatabase(cfg, logger); err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	cacheService, err := setupCache(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize cache: %v", err)
	}

	artifactStorage, err := setupStorage(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	var queue taskqueue.Queue
	if cfg.Queue.Enable {
		queue, err = setupTaskQueue(cfg, logger)
		if err != nil {
			logger.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer queue.Close()
		logger.Info("Task queue initialized successfully")
	}

	repo := repository.NewDocumentRepository()

	documentServiceOptions := []services.DocumentOption{
		services.WithCache(cacheService),
		services.WithStorage(artifactStorage),
		services.WithCacheTTL(time.Duration(cfg.Cache.TTL) * time.Second),
		services.WithTimeout(time.Duration(cfg.Render.Timeout) * time.Second),
		services.WithLogger(logger),
	}
	if queue != nil {
		documentServiceOptions = append(documentServiceOptions,
			services.WithTaskQueue(queue),
			services.WithAsyncRendering(true),
		)
	}

	documentService := services.NewDocumentService(repo, documentServiceOptions...)

	// 启动任务队列worker，渲染和导出执行器直接委托给文档服务
	var worker taskqueue.Worker
	if queue != nil {
		worker, err = setupWorker(queue, documentService, cfg, logger)
		if err != nil {
			logger.Fatalf("Failed to start task worker: %v", err)
		}
		defer worker.Stop()
	}

	r := api.SetupRouter(
		handler.NewDocumentHandler(documentService),
		handler.NewRenderHandler(documentService),
		handler.NewTaskHandler(documentService),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Infof("Server is running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 等待终止信号后优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// setupLogger 设置日志系统
// 配置了日志文件时通过lumberjack做轮转
func setupLogger(cfg rsconfig.LogConfig) *logrus.Logger {
	logger := middleware.GetLogger()

	switch cfg.Level {
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "info":
		logger.SetLevel(logrus.InfoLevel)
	case "warn":
		logger.SetLevel(logrus.WarnLevel)
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		logger.SetOutput(io.MultiWriter(os.Stdout, rotator))
	}

	return logger
}

// setupDatabase 设置数据库
func setupDatabase(cfg *rsconfig.Config, logger *logrus.Logger) error {
	return database.Setup(&database.Config{
		Type: cfg.Database.Type,
		DSN:  cfg.Database.DSN,
	}, logger)
}

// setupCache 设置渲染缓存
func setupCache(cfg *rsconfig.Config) (cache.Cache, error) {
	cacheConfig := cache.Config{
		Type:            cfg.Cache.Type,
		DefaultTTL:      time.Duration(cfg.Cache.TTL) * time.Second,
		CleanupInterval: 10 * time.Minute,
	}

	if cfg.Cache.Type == "redis" {
		cacheConfig.RedisAddr = cfg.Cache.Address
		cacheConfig.RedisPassword = cfg.Cache.Password
		cacheConfig.RedisDB = cfg.Cache.DB
	}

	return cache.NewCache(cacheConfig)
}

// setupStorage 设置产物存储
func setupStorage(cfg *rsconfig.Config) (storage.Storage, error) {
	if cfg.Storage.Type == "minio" {
		return storage.NewMinioStorage(storage.MinioConfig{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			UseSSL:    cfg.Storage.UseSSL,
			Bucket:    cfg.Storage.Bucket,
		})
	}

	if err := os.MkdirAll(cfg.Storage.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %v", err)
	}
	return storage.NewLocalStorage(storage.LocalConfig{Path: cfg.Storage.Path})
}

// setupTaskQueue 设置任务队列
func setupTaskQueue(cfg *rsconfig.Config, logger *logrus.Logger) (taskqueue.Queue, error) {
	queueConfig := taskqueue.DefaultConfig()
	queueConfig.RedisAddr = cfg.Queue.RedisAddr
	queueConfig.RedisPassword = cfg.Queue.RedisPassword
	queueConfig.RedisDB = cfg.Queue.RedisDB
	queueConfig.Concurrency = cfg.Queue.Concurrency
	queueConfig.RetryLimit = cfg.Queue.RetryLimit
	queueConfig.RetryDelay = time.Duration(cfg.Queue.RetryDelay) * time.Second

	logger.WithFields(logrus.Fields{
		"type":        cfg.Queue.Type,
		"redis_addr":  cfg.Queue.RedisAddr,
		"concurrency": cfg.Queue.Concurrency,
	}).Info("Setting up task queue")

	return taskqueue.NewQueue(cfg.Queue.Type, queueConfig)
}

// setupWorker 启动任务worker
// 渲染执行器走同步渲染路径，导出执行器复用存储导出
func setupWorker(queue taskqueue.Queue, svc *services.DocumentService, cfg *rsconfig.Config, logger *logrus.Logger) (taskqueue.Worker, error) {
	redisQueue, ok := queue.(*taskqueue.RedisQueue)
	if !ok {
		return nil, fmt.Errorf("worker requires a redis-backed queue")
	}

	renderExec := func(ctx context.Context, documentID string, force bool) (*taskqueue.RenderResult, error) {
		start := time.Now()
		html, fromCache, err := svc.RenderDocument(ctx, documentID, force)
		if err != nil {
			return nil, err
		}
		return &taskqueue.RenderResult{
			DocumentID: documentID,
			OutputSize: len(html),
			FromCache:  fromCache,
			Duration:   time.Since(start).Milliseconds(),
		}, nil
	}

	exportExec := func(ctx context.Context, documentID string, format string) (*taskqueue.ExportResult, error) {
		artifact, err := svc.ExportDocument(ctx, documentID, format)
		if err != nil {
			return nil, err
		}
		return &taskqueue.ExportResult{
			DocumentID: documentID,
			ArtifactID: artifact.ID,
			Size:       artifact.Size,
			Format:     format,
		}, nil
	}

	taskHandler := taskqueue.NewDocumentTaskHandler(queue, renderExec, exportExec, logger)

	worker := taskqueue.NewRedisWorker(redisQueue, nil)
	for _, taskType := range taskHandler.GetTaskTypes() {
		worker.RegisterHandler(taskType, taskHandler)
	}

	if err := worker.Start(); err != nil {
		return nil, fmt.Errorf("failed to start worker: %v", err)
	}

	return worker, nil
}
