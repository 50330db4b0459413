package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Gopher0727/MessageBoard/config"
	"github.com/Gopher0727/MessageBoard/internal/api"
	"github.com/Gopher0727/MessageBoard/internal/handlers"
	"github.com/Gopher0727/MessageBoard/internal/repositories"
	"github.com/Gopher0727/MessageBoard/internal/routers"
	"github.com/Gopher0727/MessageBoard/internal/services"
	"github.com/Gopher0727/MessageBoard/internal/storage"
	logger "github.com/Gopher0727/MessageBoard/middleware/log"
	"github.com/Gopher0727/MessageBoard/utils/ratelimit"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the TOML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "启动失败: %v\n", err)
		os.Exit(1)
	}
}

// run 初始化所有组件并阻塞到收到退出信号；返回前关闭所有资源
func run(configPath string) (err error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("配置初始化失败: %w", err)
	}

	log, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("日志初始化失败: %w", err)
	}
	defer func() { err = multierr.Append(err, log.Close()) }()

	// 初始化存储（建表），失败即退出
	db, err := storage.InitDatabase(&cfg.Storage)
	if err != nil {
		return fmt.Errorf("存储初始化失败: %w", err)
	}
	defer func() {
		log.Info("closing message store")
		err = multierr.Append(err, storage.Close(db))
	}()

	// 限流依赖 Redis，只在开启时连接
	var limiter *ratelimit.FixedWindowLimiter
	if cfg.RateLimit.Enabled {
		redisClient, redisErr := storage.InitRedis(&cfg.Redis)
		if redisErr != nil {
			return fmt.Errorf("redis 初始化失败: %w", redisErr)
		}
		defer func() { err = multierr.Append(err, redisClient.Close()) }()
		limiter = ratelimit.NewFixedWindowLimiter(redisClient, log.Logger, cfg.RateLimit.FailOpen)
	}

	// 依赖注入：仓储 -> 服务 -> 处理器
	messageRepo := repositories.NewMessageRepository(db)
	messageService := services.NewMessageService(messageRepo, log)
	errorRenderer := handlers.NewErrorRenderer(log, cfg.Server.RedactErrors)
	messageHandler := handlers.NewMessageHandler(messageService, errorRenderer)
	staticHandler, err := handlers.NewStaticHandler(cfg.Static.Dir)
	if err != nil {
		return fmt.Errorf("静态目录无效: %w", err)
	}
	if info, statErr := os.Stat(cfg.Static.Dir); statErr != nil || !info.IsDir() {
		log.Warn("static directory is not readable, fallback route will answer 404",
			zap.String("static_dir", cfg.Static.Dir))
	}
	middleware := api.NewMiddlewareManager(limiter, log, &cfg.RateLimit)

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	if err := routers.SetupRoutes(r, cfg, middleware, messageHandler, staticHandler); err != nil {
		return fmt.Errorf("路由初始化失败: %w", err)
	}

	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		log.Info("starting http server",
			zap.String("addr", srv.Addr),
			zap.String("static_dir", cfg.Static.Dir),
			zap.String("storage_driver", cfg.Storage.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down gracefully")
	case err, ok := <-errChan:
		if ok {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	log.Info("server stopped cleanly")
	return nil
}
