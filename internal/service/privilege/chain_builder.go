package privilege

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/model"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/repository"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/pkg/logger"
)

// ChainBuilder 审批链构建器
// 在申请提交的时刻根据申请人的组织关系和审批要求配置，
// 计算需要哪些审批级别并为每个级别指定审批人
type ChainBuilder struct {
	userRepo *repository.UserRepository
	privRepo *repository.PrivilegeRepository
}

// NewChainBuilder 创建审批链构建器
func NewChainBuilder(userRepo *repository.UserRepository, privRepo *repository.PrivilegeRepository) *ChainBuilder {
	return &ChainBuilder{
		userRepo: userRepo,
		privRepo: privRepo,
	}
}

// ChainPlan 构建结果
// AutoApprove 为true时不生成步骤，提交即批准（核心授权且专业匹配的免审路径）
type ChainPlan struct {
	AutoApprove bool
	Steps       []model.ApprovalStep
}

// BuildChain 构建审批链（每次提交调用一次）
// 按固定级别顺序构建：科室组长 → 科室主任 → 授权委员会 → 医疗总监；
// 某个级别找不到在职审批人时跳过该级别。只负责计算，不做持久化
func (b *ChainBuilder) BuildChain(request *model.PrivilegeRequest, applicant *model.User) (*ChainPlan, error) {
	requirement, err := b.lookupRequirement(request, applicant)
	if err != nil {
		return nil, err
	}

	if requirement != nil && requirement.AutoApprove {
		logger.Infof("Request %s qualifies for auto-approval (practitioner_type=%s privilege_type=%s)",
			request.ID, applicant.PractitionerType, request.PrivilegeType)
		return &ChainPlan{AutoApprove: true}, nil
	}

	allowed, err := allowedLevels(requirement)
	if err != nil {
		return nil, err
	}

	var steps []model.ApprovalStep

	// 1. 科室组长：仅当申请人的直属上级恰好是在职组长时加入
	if allowed[model.LevelHeadOfSection] {
		manager, err := b.userRepo.FindManager(applicant)
		if err != nil {
			return nil, fmt.Errorf("查找直属上级失败: %w", err)
		}
		if manager != nil && manager.Role == model.RoleHeadOfSection && manager.IsActive() {
			steps = append(steps, newStep(request.ID, model.LevelHeadOfSection, manager))
		}
	}

	// 2. 科室主任：按申请人所在科室查找，且不能是申请人自己
	if allowed[model.LevelHeadOfDept] {
		head, err := b.userRepo.FindActiveUserByRoleAndDepartment(model.RoleHeadOfDept, applicant.DepartmentID)
		if err != nil {
			return nil, fmt.Errorf("查找科室主任失败: %w", err)
		}
		if head != nil && head.ID != applicant.ID {
			steps = append(steps, newStep(request.ID, model.LevelHeadOfDept, head))
		}
	}

	// 3. 授权委员会成员：取最早创建的在职成员
	if allowed[model.LevelCommittee] {
		member, err := b.userRepo.FindFirstActiveUserByRole(model.RoleCommitteeMember)
		if err != nil {
			return nil, fmt.Errorf("查找授权委员会成员失败: %w", err)
		}
		if member != nil {
			steps = append(steps, newStep(request.ID, model.LevelCommittee, member))
		}
	}

	// 4. 医疗总监：最后一级
	if allowed[model.LevelMedicalDirector] {
		director, err := b.userRepo.FindFirstActiveUserByRole(model.RoleMedicalDirector)
		if err != nil {
			return nil, fmt.Errorf("查找医疗总监失败: %w", err)
		}
		if director != nil {
			steps = append(steps, newStep(request.ID, model.LevelMedicalDirector, director))
		}
	}

	if len(steps) == 0 {
		return nil, ErrNoApproversConfigured
	}

	return &ChainPlan{Steps: steps}, nil
}

// lookupRequirement 查询审批要求配置，没有匹配配置时返回 (nil, nil)（按默认全链构建）
func (b *ChainBuilder) lookupRequirement(request *model.PrivilegeRequest, applicant *model.User) (*model.ApprovalRequirement, error) {
	if applicant.PractitionerType == "" || request.PrivilegeType == "" {
		return nil, nil
	}
	match := specialtyMatches(request, applicant)
	requirement, err := b.privRepo.FindRequirement(applicant.PractitionerType, request.PrivilegeType, match)
	if err != nil {
		return nil, fmt.Errorf("查询审批要求配置失败: %w", err)
	}
	return requirement, nil
}

// specialtyMatches 申请的全部授权项是否都落在申请人的专业范围内
// 授权项未限定专业的视为匹配
func specialtyMatches(request *model.PrivilegeRequest, applicant *model.User) bool {
	if len(request.Privileges) == 0 {
		return false
	}
	for _, rp := range request.Privileges {
		if rp.Privilege == nil {
			return false
		}
		if rp.Privilege.Specialty != "" && rp.Privilege.Specialty != applicant.Specialty {
			return false
		}
	}
	return true
}

// allowedLevels 解析配置要求的审批级别集合；无配置或配置为空时允许全部级别
func allowedLevels(requirement *model.ApprovalRequirement) (map[model.ApprovalLevel]bool, error) {
	allowed := make(map[model.ApprovalLevel]bool, len(model.ApprovalLevelOrder))

	if requirement == nil || len(requirement.RequiredLevels) == 0 {
		for _, level := range model.ApprovalLevelOrder {
			allowed[level] = true
		}
		return allowed, nil
	}

	var levels []model.ApprovalLevel
	if err := json.Unmarshal(requirement.RequiredLevels, &levels); err != nil {
		return nil, fmt.Errorf("解析审批要求级别配置失败: %w", err)
	}
	for _, level := range levels {
		if !level.Valid() {
			return nil, fmt.Errorf("审批要求配置包含未知级别: %s", level)
		}
		allowed[level] = true
	}
	return allowed, nil
}

// newStep 构造一个待审批的步骤
func newStep(requestID string, level model.ApprovalLevel, approver *model.User) model.ApprovalStep {
	return model.ApprovalStep{
		ID:            uuid.New().String(),
		RequestID:     requestID,
		Level:         level,
		LevelOrder:    level.Ordinal(),
		ApproverID:    approver.ID,
		ApproverName:  approver.FullName,
		ApproverEmail: approver.Email,
		Status:        model.StepStatusPending,
	}
}

// newEscalation 为刚成为当前步骤的审批步骤创建升级跟踪记录
// 在链构建和推进到下一步时各调用一次，与状态变更同一事务内持久化
func newEscalation(step *model.ApprovalStep, receivedAt time.Time) *model.Escalation {
	return &model.Escalation{
		ID:         uuid.New().String(),
		RequestID:  step.RequestID,
		StepID:     step.ID,
		ApproverID: step.ApproverID,
		ReceivedAt: receivedAt,
		Status:     model.EscalationStatusActive,
	}
}
