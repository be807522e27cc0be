package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/api/router"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/pkg/config"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/pkg/database"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/pkg/logger"
	pkgredis "github.com/mghassanj/cbahi-clinical-privileges-sub001/pkg/redis"
)

// StartServer 启动 HTTP 服务器并阻塞到收到退出信号
func StartServer(a *App) {
	cfg := a.Config

	r := router.Setup(
		a.Handlers.Auth,
		a.Handlers.Request,
		a.Handlers.Approval,
		a.Handlers.Escalation,
		a.Handlers.Privilege,
		a.Handlers.Setting,
		a.Services.Auth,
		cfg.Server.Mode,
	)

	// 内置巡检定时器（可选，配置了间隔才启动）
	if a.SweepScheduler != nil {
		go func() {
			// 等待数据库连接完全就绪
			time.Sleep(3 * time.Second)
			a.SweepScheduler.Start()
		}()
	}

	// Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.APIPort)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	printStartupBanner(cfg)

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Infof("\nShutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// 1. Shutdown HTTP server
	logger.Infof("  → Stopping HTTP server...")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Infof("  Warning: HTTP server shutdown error: %v", err)
	} else {
		logger.Infof("  ✓ HTTP server stopped")
	}

	// 2. Stop internal sweep scheduler
	if a.SweepScheduler != nil {
		logger.Infof("  → Stopping sweep scheduler...")
		a.SweepScheduler.Stop()
		logger.Infof("  ✓ Sweep scheduler stopped")
	}

	// 3. Close database
	logger.Infof("  → Closing database...")
	database.Close()
	logger.Infof("  ✓ Database closed")

	// 4. Close Redis if enabled
	if cfg.Redis.Enabled {
		logger.Infof("  → Closing Redis...")
		pkgredis.Close()
		logger.Infof("  ✓ Redis closed")
	}

	logger.Infof("")
	logger.Infof("Shutdown complete")
	logger.Sync()
}

// printStartupBanner 打印启动横幅
func printStartupBanner(cfg *config.Config) {
	logger.Infof("")
	logger.Infof("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	logger.Infof("CBAHI Clinical Privileges - Approval Workflow Server")
	logger.Infof("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	logger.Infof("")
	logger.Infof("Features:")
	logger.Infof("   • Multi-level approval chain (section → department → committee → director)")
	logger.Infof("   • Time-based escalation (3 tiers: reminder / manager / HR)")
	logger.Infof("   • Cron-triggered escalation sweep with shared-secret auth")
	logger.Infof("   • Full audit trail for every workflow transition")
	logger.Infof("")
	logger.Infof("Listening on :%d (mode: %s)", cfg.Server.APIPort, cfg.Server.Mode)
	if cfg.Escalation.InternalIntervalMinutes > 0 {
		logger.Infof("Internal sweep scheduler enabled (interval: %d minutes)", cfg.Escalation.InternalIntervalMinutes)
	} else {
		logger.Infof("Sweep trigger: external cron → GET/POST /api/escalations/sweep")
	}
	logger.Infof("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	logger.Infof("")
}
