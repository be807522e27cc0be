package app

import (
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/repository"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/pkg/database"
)

// Repositories 包含所有 Repository 实例
type Repositories struct {
	User       *repository.UserRepository
	Setting    *repository.SettingRepository
	Request    *repository.RequestRepository
	Step       *repository.ApprovalStepRepository
	Escalation *repository.EscalationRepository
	Privilege  *repository.PrivilegeRepository
}

// InitializeRepositories 初始化所有 Repository
func InitializeRepositories() *Repositories {
	db := database.DB
	return &Repositories{
		User:       repository.NewUserRepository(db),
		Setting:    repository.NewSettingRepository(db),
		Request:    repository.NewRequestRepository(db),
		Step:       repository.NewApprovalStepRepository(db),
		Escalation: repository.NewEscalationRepository(db),
		Privilege:  repository.NewPrivilegeRepository(db),
	}
}
