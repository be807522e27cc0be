package app

import (
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/audit"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/notification"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/scheduler"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/pkg/config"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/pkg/database"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/pkg/logger"
)

// App 应用程序上下文
type App struct {
	Config              *config.Config
	Repos               *Repositories
	Services            *Services
	Handlers            *Handlers
	Auditor             audit.Auditor
	NotificationManager *notification.Manager
	SweepScheduler      *scheduler.EscalationScheduler
}

// Initialize 初始化应用程序
func Initialize(cfgPath string) (*App, error) {
	// 1. Bootstrap (logger, database, redis, casbin)
	cfg, err := Bootstrap(cfgPath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			database.Close()
		}
	}()

	// 2. Initialize repositories
	repos := InitializeRepositories()
	logger.Infof("Repositories initialized")

	// 3. Initialize audit + notification collaborators
	auditor := audit.NewDatabaseAuditor(database.DB)
	notificationMgr := notification.InitFromSettings(database.DB)
	logger.Infof("Audit and notification collaborators initialized")

	// 4. Initialize services
	services := InitializeServices(repos, cfg, notificationMgr, auditor)
	logger.Infof("Services initialized")

	// 5. Initialize handlers
	handlers := InitializeHandlers(repos, services)
	logger.Infof("Handlers initialized")

	// 6. Optional internal sweep scheduler
	// （默认禁用：巡检由外部cron调用 /api/escalations/sweep 触发）
	var sweepScheduler *scheduler.EscalationScheduler
	if cfg.Escalation.InternalIntervalMinutes > 0 {
		sweepScheduler = scheduler.NewEscalationScheduler(func() error {
			_, err := services.Escalation.RunSweep()
			return err
		}, cfg.Escalation.InternalIntervalMinutes)
	}

	return &App{
		Config:              cfg,
		Repos:               repos,
		Services:            services,
		Handlers:            handlers,
		Auditor:             auditor,
		NotificationManager: notificationMgr,
		SweepScheduler:      sweepScheduler,
	}, nil
}
