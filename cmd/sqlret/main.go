// file: cmd/sqlret/main.go

package main

import (
	"SQLRet/internal/adapter/database"
	"SQLRet/internal/adapter/llmchain"
	"SQLRet/internal/config"
	"SQLRet/internal/observe"
	"SQLRet/internal/service/workbench"
	"SQLRet/internal/transport/http/middleware"
	"SQLRet/internal/transport/http/router"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const version = "v0.3.0"

// defaultConfigPath 可通过 SQLRET_CONFIG 覆盖；文件不存在时只使用默认值与环境变量
const defaultConfigPath = "configs/config.yaml"

func main() {
	// 在日志系统完全初始化前，使用标准 log
	log.Printf("SQLRet %s 正在启动...", version)

	configPath := os.Getenv("SQLRET_CONFIG")
	if configPath == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			configPath = defaultConfigPath
		}
	}

	cfg, v, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("CRITICAL: 加载配置失败: %v", err)
	}

	observe.InitLogger(cfg.Server.LogLevel)
	slog.Info("SQLRet starting up", "version", version, "config", configPath)

	config.Watch(v, func(next *config.Config) {
		level := observe.SetLogLevel(next.Server.LogLevel)
		slog.Info("日志级别已更新", "level", level.String())
	})

	if cfg.Server.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	secret := []byte(cfg.Server.SessionSecret)
	if len(secret) == 0 {
		secret = genSecret()
		slog.Warn("未配置 server.session_secret，已生成临时密钥，重启后已有会话将失效")
	}

	builder := database.NewBuilder(database.Options{
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectTimeout:  cfg.Database.ConnectTimeout,
	})
	inspector := database.NewInspector()
	agents := llmchain.NewFactory(llmchain.Options{
		AllowedModels: cfg.LLM.AllowedModels,
		TopK:          cfg.LLM.TopK,
		InvokeTimeout: cfg.LLM.InvokeTimeout,
		IgnoreTables:  cfg.LLM.IgnoreTables,
	})
	svc := workbench.NewService(builder, inspector, agents, workbench.LLMDefaults{
		Provider:    cfg.LLM.Provider,
		ModelID:     cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
	})
	slog.Info("服务层: 工作台初始化完成", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)

	store := workbench.NewStore(cfg.Session.MaxSessions, cfg.Session.IdleTTL)
	defer func() {
		slog.Info("正在释放所有会话持有的数据库连接...")
		store.Purge()
	}()

	if cfg.Observability.MetricsEnabled {
		observe.Register()
		slog.Info("监控: metrics 已注册。")
	}
	observe.EnablePprof(cfg.Observability.PprofAddr)

	httpRouter := router.New(router.Dependencies{
		Service:        svc,
		Store:          store,
		Cookies:        middleware.NewCookieStore(secret, cfg.Server.SecureCookie),
		CookieName:     cfg.Session.CookieName,
		QueryLimiter:   middleware.NewQueryLimiter(cfg.Limits.QueryRate, cfg.Limits.QueryBurst),
		SetupLock:      middleware.NewSetupFailureLock(cfg.Limits.SetupMaxFailures, cfg.Limits.SetupWindow, cfg.Limits.SetupLockout),
		CORSOrigins:    cfg.Server.CORSOrigins,
		MetricsEnabled: cfg.Observability.MetricsEnabled,
	})
	slog.Info("传输层: HTTP 路由器创建完成。")

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      httpRouter,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("SQLRet 启动成功，开始监听HTTP请求...", "address", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP服务启动失败: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("收到停机信号，准备优雅关闭...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP服务优雅关闭失败: %w", err)
		}
		slog.Info("HTTP服务已成功关闭。")
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("程序异常退出", "error", err)
		store.Purge()
		os.Exit(1)
	}
	slog.Info("程序即将退出。")
}

// genSecret 生成进程级的临时 Cookie 签名密钥
func genSecret() []byte {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		log.Fatalf("CRITICAL: 生成会话密钥失败: %v", err)
	}
	return b
}
