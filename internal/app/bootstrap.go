package app

import (
	"log"
	"os"

	casbinpkg "github.com/mghassanj/cbahi-clinical-privileges-sub001/pkg/casbin"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/pkg/config"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/pkg/database"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/pkg/logger"
	pkgredis "github.com/mghassanj/cbahi-clinical-privileges-sub001/pkg/redis"
)

// Bootstrap 初始化基础设施（logger, database, redis, casbin）
func Bootstrap(cfgPath string) (*config.Config, error) {
	// 支持通过环境变量指定配置文件路径
	if cfgPath == "" {
		cfgPath = os.Getenv("CBAHI_CONFIG")
		if cfgPath == "" {
			cfgPath = "config/config.yaml"
		}
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	// Initialize logger
	if err := logger.Init(&cfg.Logging); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// Initialize database
	if err := database.Init(&cfg.Database); err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	logger.Infof("Database initialized successfully")

	// Initialize Redis (optional, for distributed features)
	if err := pkgredis.Init(&cfg.Redis); err != nil {
		logger.Warnf("⚠️  Redis initialization failed: %v", err)
		logger.Info("   → System will use database mode (single-server deployment)")
		logger.Info("   → Sweep mutual exclusion will be skipped (single instance assumed)")
	} else if cfg.Redis.Enabled {
		logger.Infof("✅ Redis initialized successfully - distributed features enabled")
	} else {
		logger.Info("ℹ️  Redis is disabled in config - using database mode")
	}

	// Initialize Casbin permission manager (after Redis, so Watcher can be configured)
	if err := casbinpkg.Init(); err != nil {
		logger.Fatalf("Failed to initialize Casbin: %v", err)
	}
	logger.Infof("Casbin permission manager initialized successfully")

	return cfg, nil
}
