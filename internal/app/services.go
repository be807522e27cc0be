package app

import (
	"time"

	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/audit"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/notification"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/service/auth"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/service/privilege"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/pkg/config"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/pkg/database"
	pkgredis "github.com/mghassanj/cbahi-clinical-privileges-sub001/pkg/redis"
)

// Services 包含所有业务服务实例
type Services struct {
	Auth       *auth.AuthService
	Request    *privilege.RequestService
	Approval   *privilege.ApprovalService
	Escalation *privilege.EscalationService
}

// InitializeServices 初始化所有业务服务
func InitializeServices(
	repos *Repositories,
	cfg *config.Config,
	notifier *notification.Manager,
	auditor audit.Auditor,
) *Services {
	db := database.DB

	chainBuilder := privilege.NewChainBuilder(repos.User, repos.Privilege)

	authService := auth.NewAuthService(repos.User, cfg.Security.JWTSecret)

	requestService := privilege.NewRequestService(
		db, repos.Request, repos.Step, repos.Privilege, repos.User,
		chainBuilder, notifier, auditor,
	)

	approvalService := privilege.NewApprovalService(
		db, repos.Step, repos.Request, notifier, auditor,
	)

	escalationService := privilege.NewEscalationService(
		db, repos.Escalation, repos.Setting, repos.User,
		notifier, auditor,
		pkgredis.GetClient(),
		time.Duration(cfg.Escalation.LockTTLSeconds)*time.Second,
	)

	return &Services{
		Auth:       authService,
		Request:    requestService,
		Approval:   approvalService,
		Escalation: escalationService,
	}
}
