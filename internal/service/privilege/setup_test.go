package privilege

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/model"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// newTestDB 每个测试一个独立的内存数据库
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}

	if err := db.AutoMigrate(
		&model.Department{},
		&model.User{},
		&model.Privilege{},
		&model.PrivilegeRequest{},
		&model.RequestPrivilege{},
		&model.ApprovalStep{},
		&model.Escalation{},
		&model.ApprovalRequirement{},
		&model.Setting{},
		&model.SweepRun{},
	); err != nil {
		t.Fatalf("迁移测试表失败: %v", err)
	}

	return db
}

// testEnv 组装好的被测服务与常用数据
type testEnv struct {
	db *gorm.DB

	userRepo       *repository.UserRepository
	requestRepo    *repository.RequestRepository
	stepRepo       *repository.ApprovalStepRepository
	privRepo       *repository.PrivilegeRepository
	escalationRepo *repository.EscalationRepository
	settingRepo    *repository.SettingRepository

	chainBuilder *ChainBuilder
	requests     *RequestService
	approvals    *ApprovalService
	escalations  *EscalationService

	dept        *model.Department
	applicant   *model.User
	sectionHead *model.User
	deptHead    *model.User
	committee   *model.User
	director    *model.User
}

// newTestEnv 建库、组装服务并播种一套标准组织关系：
// 申请人的直属上级是在职科室组长，同科室有科室主任，
// 系统中各有一名委员会成员和医疗总监
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newTestDB(t)
	env := &testEnv{
		db:             db,
		userRepo:       repository.NewUserRepository(db),
		requestRepo:    repository.NewRequestRepository(db),
		stepRepo:       repository.NewApprovalStepRepository(db),
		privRepo:       repository.NewPrivilegeRepository(db),
		escalationRepo: repository.NewEscalationRepository(db),
		settingRepo:    repository.NewSettingRepository(db),
	}

	env.chainBuilder = NewChainBuilder(env.userRepo, env.privRepo)
	env.requests = NewRequestService(db, env.requestRepo, env.stepRepo, env.privRepo,
		env.userRepo, env.chainBuilder, nil, nil)
	env.approvals = NewApprovalService(db, env.stepRepo, env.requestRepo, nil, nil)
	env.escalations = NewEscalationService(db, env.escalationRepo, env.settingRepo,
		env.userRepo, nil, nil, nil, 0)

	env.dept = &model.Department{
		ID:   uuid.New().String(),
		Code: "SURG",
		Name: "外科",
	}
	if err := db.Create(env.dept).Error; err != nil {
		t.Fatalf("创建测试科室失败: %v", err)
	}

	env.sectionHead = env.createUser(t, "section_head", model.RoleHeadOfSection, "")
	env.applicant = env.createUser(t, "applicant", model.RoleStaff, env.sectionHead.ID)
	env.deptHead = env.createUser(t, "dept_head", model.RoleHeadOfDept, "")
	env.committee = env.createUser(t, "committee", model.RoleCommitteeMember, "")
	env.director = env.createUser(t, "director", model.RoleMedicalDirector, "")

	return env
}

func (env *testEnv) createUser(t *testing.T, username string, role model.UserRole, managerID string) *model.User {
	t.Helper()

	user := &model.User{
		ID:               uuid.New().String(),
		EmployeeNo:       "EMP-" + uuid.New().String(),
		Username:         username,
		Password:         "x",
		Email:            username + "@hospital.test",
		FullName:         username,
		Role:             role,
		DepartmentID:     env.dept.ID,
		ManagerID:        managerID,
		PractitionerType: "physician",
		Specialty:        "general_surgery",
		Status:           "active",
	}
	if err := env.db.Create(user).Error; err != nil {
		t.Fatalf("创建测试用户 %s 失败: %v", username, err)
	}
	return user
}

func (env *testEnv) createPrivilege(t *testing.T, code, category, specialty string) *model.Privilege {
	t.Helper()

	p := &model.Privilege{
		ID:            uuid.New().String(),
		Code:          code,
		Name:          code,
		Category:      category,
		PrivilegeType: "physician",
		Specialty:     specialty,
		IsActive:      true,
	}
	if err := env.db.Create(p).Error; err != nil {
		t.Fatalf("创建测试授权项失败: %v", err)
	}
	return p
}

// createDraft 为申请人创建一条带单个授权项的草稿申请
func (env *testEnv) createDraft(t *testing.T, kind model.RequestKind, privilegeType string) *model.PrivilegeRequest {
	t.Helper()

	p := env.createPrivilege(t, "PRIV-"+uuid.New().String()[:8], privilegeType, "")
	request, err := env.requests.Create(env.applicant, &model.CreatePrivilegeRequestInput{
		Kind:          kind,
		PrivilegeType: privilegeType,
		PrivilegeIDs:  []string{p.ID},
	})
	if err != nil {
		t.Fatalf("创建草稿申请失败: %v", err)
	}
	return request
}

// submitNewRequest 创建并提交一条申请，返回提交后的最新状态
func (env *testEnv) submitNewRequest(t *testing.T) *model.PrivilegeRequest {
	t.Helper()

	draft := env.createDraft(t, model.RequestKindNew, "non_core")
	request, err := env.requests.Submit(draft.ID, env.applicant)
	if err != nil {
		t.Fatalf("提交申请失败: %v", err)
	}
	return request
}

// currentStep 当前步骤（序号最小的pending步骤）
func (env *testEnv) currentStep(t *testing.T, requestID string) *model.ApprovalStep {
	t.Helper()

	step, err := env.requestRepo.CurrentStep(requestID)
	if err != nil {
		t.Fatalf("查询当前步骤失败: %v", err)
	}
	if step == nil {
		t.Fatalf("申请 %s 没有当前步骤", requestID)
	}
	return step
}

// reloadRequest 重新加载申请（带授权项和审批链）
func (env *testEnv) reloadRequest(t *testing.T, requestID string) *model.PrivilegeRequest {
	t.Helper()

	request, err := env.requestRepo.FindByID(requestID)
	if err != nil {
		t.Fatalf("重新加载申请失败: %v", err)
	}
	return request
}

// setSetting 写入一条系统设置
func (env *testEnv) setSetting(t *testing.T, key, value string) {
	t.Helper()

	if err := env.settingRepo.Set(key, value, model.CategoryEscalation, "string"); err != nil {
		t.Fatalf("写入设置 %s 失败: %v", key, err)
	}
}

// backdateEscalation 把某步骤的活跃升级记录回拨到days天前
func (env *testEnv) backdateEscalation(t *testing.T, stepID string, days int) *model.Escalation {
	t.Helper()

	receivedAt := time.Now().Add(-time.Duration(days) * 24 * time.Hour)
	if err := env.db.Model(&model.Escalation{}).
		Where("step_id = ? AND status = ?", stepID, model.EscalationStatusActive).
		Update("received_at", receivedAt).Error; err != nil {
		t.Fatalf("回拨升级记录失败: %v", err)
	}

	esc, err := env.escalationRepo.FindActiveByStep(stepID)
	if err != nil {
		t.Fatalf("查询升级记录失败: %v", err)
	}
	if esc == nil {
		t.Fatalf("步骤 %s 没有活跃升级记录", stepID)
	}
	return esc
}
