package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fiftycompanies/waide-sub001/api"
	"github.com/fiftycompanies/waide-sub001/internal/config"
	"github.com/fiftycompanies/waide-sub001/internal/infra"
	"github.com/fiftycompanies/waide-sub001/internal/logger"
	"github.com/fiftycompanies/waide-sub001/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// version 构建时通过 -ldflags "-X main.version=..." 注入
var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	if path, err := config.LoadEnvFile(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	} else if path != "" {
		fmt.Printf("已加载环境变量文件: %s\n", path)
	}

	env := config.Env()
	cfg, err := config.Load(env, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		OutputPath: cfg.Log.OutputPath,
		Service:    api.ServiceName,
		Version:    version,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, env, cfg)
	stop()
	if err != nil {
		logger.Error("服务异常退出", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

// run 组装依赖并阻塞到 ctx 结束或 HTTP 服务失败
func run(ctx context.Context, env string, cfg *config.Config) error {
	logger.Info("应用启动中",
		zap.String("env", env),
		zap.String("mode", cfg.Server.Mode),
	)
	metrics.RecordBuildInfo(version, runtime.Version())

	db, err := infra.InitDatabase(&cfg.Database, cfg.Server.Mode)
	if err != nil {
		return fmt.Errorf("初始化数据库失败: %w", err)
	}
	defer func() {
		if err := infra.CloseDatabase(); err != nil {
			logger.Error("数据库关闭异常", zap.Error(err))
		}
	}()

	if cfg.Database.AutoMigrate {
		if err := infra.AutoMigrate(db, api.Models()...); err != nil {
			return fmt.Errorf("数据库迁移失败: %w", err)
		}
	}

	// Redis 不可用时以同步模式运行
	cfg.Redis = api.NormalizeRedisConfig(cfg.Redis)
	var rdb redis.UniversalClient
	if client, err := infra.InitRedis(&cfg.Redis); err != nil {
		logger.Warn("Redis 不可用，后台队列与定时扫描将关闭", zap.Error(err))
	} else {
		rdb = client
		defer infra.CloseRedis()
	}

	container, err := api.InitContainer(db, rdb, cfg, nil, logger.Get())
	if err != nil {
		return fmt.Errorf("初始化服务失败: %w", err)
	}

	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	if err := container.Start(bgCtx); err != nil {
		return fmt.Errorf("启动后台组件失败: %w", err)
	}
	defer container.Shutdown()

	gin.SetMode(cfg.Server.Mode)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.SetupRouter(container),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP 服务器启动", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("HTTP 服务器启动失败: %w", err)
	case <-ctx.Done():
	}

	logger.Info("正在关闭服务器")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// 先停止接收新请求，再由 defer 依次停止后台组件、Redis 与数据库
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}
	stopBackground()
	logger.Info("HTTP 服务器已关闭")
	return nil
}
