package app

import (
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/api/handler"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/pkg/database"
)

// Handlers 包含所有 HTTP Handler 实例
type Handlers struct {
	Auth       *handler.AuthHandler
	Request    *handler.RequestHandler
	Approval   *handler.ApprovalHandler
	Escalation *handler.EscalationHandler
	Privilege  *handler.PrivilegeHandler
	Setting    *handler.SettingHandler
}

// InitializeHandlers 初始化所有 Handler
func InitializeHandlers(repos *Repositories, services *Services) *Handlers {
	return &Handlers{
		Auth:       handler.NewAuthHandler(services.Auth, repos.User),
		Request:    handler.NewRequestHandler(services.Request, repos.User),
		Approval:   handler.NewApprovalHandler(services.Approval, repos.Step, repos.User),
		Escalation: handler.NewEscalationHandler(database.DB, services.Escalation, repos.Setting, repos.User),
		Privilege:  handler.NewPrivilegeHandler(repos.Privilege, repos.User),
		Setting:    handler.NewSettingHandler(repos.Setting, repos.User),
	}
}
