package privilege

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/audit"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/model"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/notification"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/repository"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/pkg/logger"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/pkg/metrics"
	"gorm.io/gorm"
)

// RequestService 授权申请服务
// 负责申请的创建/编辑/提交/取消；提交时通过 ChainBuilder 构建审批链
type RequestService struct {
	db           *gorm.DB
	requestRepo  *repository.RequestRepository
	stepRepo     *repository.ApprovalStepRepository
	privRepo     *repository.PrivilegeRepository
	userRepo     *repository.UserRepository
	chainBuilder *ChainBuilder
	notifier     *notification.Manager
	auditor      audit.Auditor
}

// NewRequestService 创建授权申请服务
func NewRequestService(
	db *gorm.DB,
	requestRepo *repository.RequestRepository,
	stepRepo *repository.ApprovalStepRepository,
	privRepo *repository.PrivilegeRepository,
	userRepo *repository.UserRepository,
	chainBuilder *ChainBuilder,
	notifier *notification.Manager,
	auditor audit.Auditor,
) *RequestService {
	return &RequestService{
		db:           db,
		requestRepo:  requestRepo,
		stepRepo:     stepRepo,
		privRepo:     privRepo,
		userRepo:     userRepo,
		chainBuilder: chainBuilder,
		notifier:     notifier,
		auditor:      auditor,
	}
}

// Create 创建草稿申请
// 每个申请人同一时刻至多一个流转中的申请（draft/pending/in_review）
func (s *RequestService) Create(applicant *model.User, input *model.CreatePrivilegeRequestInput) (*model.PrivilegeRequest, error) {
	if input.Kind.JustificationRequired() && strings.TrimSpace(input.Justification) == "" {
		return nil, ErrJustificationRequired
	}

	hasActive, err := s.requestRepo.HasActiveRequest(applicant.ID)
	if err != nil {
		return nil, fmt.Errorf("检查流转中申请失败: %w", err)
	}
	if hasActive {
		return nil, ErrActiveRequestExists
	}

	privileges, err := s.privRepo.FindByIDs(input.PrivilegeIDs)
	if err != nil {
		return nil, fmt.Errorf("查询授权项失败: %w", err)
	}
	if len(privileges) != len(input.PrivilegeIDs) {
		return nil, errors.New("部分授权项不存在或已停用")
	}

	request := &model.PrivilegeRequest{
		ID:             uuid.New().String(),
		RequestNumber:  generateRequestNumber(),
		Kind:           input.Kind,
		PrivilegeType:  input.PrivilegeType,
		Status:         model.RequestStatusDraft,
		Justification:  input.Justification,
		ApplicantID:    applicant.ID,
		ApplicantName:  applicant.FullName,
		ApplicantEmail: applicant.Email,
		DepartmentID:   applicant.DepartmentID,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(request).Error; err != nil {
			return fmt.Errorf("创建申请失败: %w", err)
		}
		for _, p := range privileges {
			rp := &model.RequestPrivilege{
				ID:          uuid.New().String(),
				RequestID:   request.ID,
				PrivilegeID: p.ID,
				Decision:    model.PrivilegeDecisionPending,
			}
			if err := tx.Create(rp).Error; err != nil {
				return fmt.Errorf("创建申请授权项失败: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.requestRepo.FindByID(request.ID)
}

// Update 编辑申请，仅申请人本人，且仅限草稿或已拒绝状态
func (s *RequestService) Update(requestID string, actor *model.User, input *model.UpdatePrivilegeRequestInput) (*model.PrivilegeRequest, error) {
	request, err := s.requestRepo.FindByID(requestID)
	if err != nil {
		return nil, err
	}
	if request.ApplicantID != actor.ID {
		return nil, ErrForbidden
	}
	if request.Status != model.RequestStatusDraft && request.Status != model.RequestStatusRejected {
		return nil, ErrInvalidStatus
	}

	if input.Kind != "" {
		request.Kind = input.Kind
	}
	if input.PrivilegeType != "" {
		request.PrivilegeType = input.PrivilegeType
	}
	if input.Justification != "" {
		request.Justification = input.Justification
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(request).Error; err != nil {
			return fmt.Errorf("更新申请失败: %w", err)
		}
		// 替换授权项列表（仅当请求携带了新列表）
		if len(input.PrivilegeIDs) > 0 {
			privileges, err := s.privRepo.FindByIDs(input.PrivilegeIDs)
			if err != nil {
				return fmt.Errorf("查询授权项失败: %w", err)
			}
			if len(privileges) != len(input.PrivilegeIDs) {
				return errors.New("部分授权项不存在或已停用")
			}
			if err := tx.Where("request_id = ?", request.ID).Delete(&model.RequestPrivilege{}).Error; err != nil {
				return fmt.Errorf("清理旧授权项失败: %w", err)
			}
			for _, p := range privileges {
				rp := &model.RequestPrivilege{
					ID:          uuid.New().String(),
					RequestID:   request.ID,
					PrivilegeID: p.ID,
					Decision:    model.PrivilegeDecisionPending,
				}
				if err := tx.Create(rp).Error; err != nil {
					return fmt.Errorf("创建申请授权项失败: %w", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.requestRepo.FindByID(request.ID)
}

// Submit 提交申请，触发审批链构建
// 首次提交构建全新审批链；退回修改后的重新提交复用已有审批链
// （保留已通过步骤的审计价值，当前步骤重新计时）
func (s *RequestService) Submit(requestID string, actor *model.User) (*model.PrivilegeRequest, error) {
	request, err := s.requestRepo.FindByID(requestID)
	if err != nil {
		return nil, err
	}
	if request.ApplicantID != actor.ID && actor.Role != model.RoleAdmin {
		return nil, ErrForbidden
	}
	if request.Status != model.RequestStatusDraft {
		return nil, ErrInvalidStatus
	}
	if request.Kind.JustificationRequired() && strings.TrimSpace(request.Justification) == "" {
		return nil, ErrJustificationRequired
	}

	applicant := actor
	if request.ApplicantID != actor.ID {
		if applicant, err = s.userRepo.FindUserByID(request.ApplicantID); err != nil {
			return nil, fmt.Errorf("查询申请人失败: %w", err)
		}
	}

	// 已有审批链说明是退回修改后的重新提交
	if currentStep := firstPendingStep(request.Steps); currentStep != nil {
		return s.resubmit(request, actor, currentStep)
	}

	plan, err := s.chainBuilder.BuildChain(request, applicant)
	if err != nil {
		return nil, err
	}

	now := time.Now()

	if plan.AutoApprove {
		return s.autoApprove(request, actor, now)
	}

	firstStep := &plan.Steps[0]
	escalation := newEscalation(firstStep, now)

	// 所有步骤 + 首个升级记录 + 状态变更要么全部成功要么全部失败，
	// 保证不会留下半构建的审批链
	err = s.db.Transaction(func(tx *gorm.DB) error {
		for i := range plan.Steps {
			if err := tx.Create(&plan.Steps[i]).Error; err != nil {
				return fmt.Errorf("创建审批步骤失败: %w", err)
			}
		}
		if err := tx.Create(escalation).Error; err != nil {
			return fmt.Errorf("创建升级跟踪记录失败: %w", err)
		}
		result := tx.Model(&model.PrivilegeRequest{}).
			Where("id = ? AND status = ?", request.ID, model.RequestStatusDraft).
			Updates(map[string]interface{}{
				"status":       model.RequestStatusPending,
				"submitted_at": now,
			})
		if result.Error != nil {
			return fmt.Errorf("更新申请状态失败: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrInvalidStatus
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RequestsSubmittedTotal.Inc()
	metrics.ActiveEscalations.Inc()
	s.recordAudit(actor, audit.ActionSubmit, audit.EntityRequest, request.ID,
		map[string]interface{}{"status": model.RequestStatusDraft},
		map[string]interface{}{"status": model.RequestStatusPending, "steps": len(plan.Steps)})

	s.notifyApprover(firstStep, request)
	logger.Infof("Request %s submitted, approval chain built with %d steps, first level: %s",
		request.RequestNumber, len(plan.Steps), firstStep.Level)

	return s.requestRepo.FindByID(request.ID)
}

// resubmit 退回修改后的重新提交：复用已有审批链，当前步骤重新计时
func (s *RequestService) resubmit(request *model.PrivilegeRequest, actor *model.User, currentStep *model.ApprovalStep) (*model.PrivilegeRequest, error) {
	now := time.Now()

	// 链上已有通过的步骤则回到审批中，否则回到待首审
	status := model.RequestStatusPending
	for _, step := range request.Steps {
		if step.Status == model.StepStatusApproved {
			status = model.RequestStatusInReview
			break
		}
	}

	escalation := newEscalation(currentStep, now)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(escalation).Error; err != nil {
			return fmt.Errorf("创建升级跟踪记录失败: %w", err)
		}
		result := tx.Model(&model.PrivilegeRequest{}).
			Where("id = ? AND status = ?", request.ID, model.RequestStatusDraft).
			Updates(map[string]interface{}{
				"status":       status,
				"submitted_at": now,
			})
		if result.Error != nil {
			return fmt.Errorf("更新申请状态失败: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrInvalidStatus
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RequestsSubmittedTotal.Inc()
	metrics.ActiveEscalations.Inc()
	s.recordAudit(actor, audit.ActionResubmit, audit.EntityRequest, request.ID,
		map[string]interface{}{"status": model.RequestStatusDraft},
		map[string]interface{}{"status": status, "current_level": currentStep.Level})

	s.notifyApprover(currentStep, request)
	logger.Infof("Request %s resubmitted, resuming at level %s", request.RequestNumber, currentStep.Level)

	return s.requestRepo.FindByID(request.ID)
}

// autoApprove 免审路径：核心授权且专业匹配时提交即批准
func (s *RequestService) autoApprove(request *model.PrivilegeRequest, actor *model.User, now time.Time) (*model.PrivilegeRequest, error) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.PrivilegeRequest{}).
			Where("id = ? AND status = ?", request.ID, model.RequestStatusDraft).
			Updates(map[string]interface{}{
				"status":       model.RequestStatusApproved,
				"submitted_at": now,
				"completed_at": now,
			})
		if result.Error != nil {
			return fmt.Errorf("更新申请状态失败: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrInvalidStatus
		}
		if err := tx.Model(&model.RequestPrivilege{}).
			Where("request_id = ? AND decision = ?", request.ID, model.PrivilegeDecisionPending).
			Updates(map[string]interface{}{
				"decision":   model.PrivilegeDecisionGranted,
				"decided_at": now,
			}).Error; err != nil {
			return fmt.Errorf("更新授权项裁定失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RequestsSubmittedTotal.Inc()
	metrics.RequestsCompletedTotal.WithLabelValues(string(model.RequestStatusApproved)).Inc()
	s.recordAudit(actor, audit.ActionAutoApprove, audit.EntityRequest, request.ID,
		map[string]interface{}{"status": model.RequestStatusDraft},
		map[string]interface{}{"status": model.RequestStatusApproved})

	s.enqueueNotification(model.NotificationRequestApproved, request.ApplicantEmail, request.ApplicantName,
		fmt.Sprintf("您的授权申请 %s 已自动批准", request.RequestNumber),
		"核心授权且专业匹配，按审批要求配置免审批准。",
		map[string]interface{}{"request_id": request.ID})

	logger.Infof("Request %s auto-approved", request.RequestNumber)
	return s.requestRepo.FindByID(request.ID)
}

// Cancel 取消申请，仅申请人本人或管理员，且仅限流转中的申请
func (s *RequestService) Cancel(requestID string, actor *model.User) error {
	request, err := s.requestRepo.FindByID(requestID)
	if err != nil {
		return err
	}
	if request.ApplicantID != actor.ID && actor.Role != model.RoleAdmin {
		return ErrForbidden
	}
	if !request.Status.IsActive() {
		return ErrInvalidStatus
	}

	oldStatus := request.Status
	err = s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.PrivilegeRequest{}).
			Where("id = ? AND status IN ?", request.ID,
				[]model.RequestStatus{model.RequestStatusDraft, model.RequestStatusPending, model.RequestStatusInReview}).
			Update("status", model.RequestStatusCancelled)
		if result.Error != nil {
			return fmt.Errorf("更新申请状态失败: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrInvalidStatus
		}
		if err := tx.Model(&model.ApprovalStep{}).
			Where("request_id = ? AND status = ?", request.ID, model.StepStatusPending).
			Update("status", model.StepStatusSkipped).Error; err != nil {
			return fmt.Errorf("跳过未处理步骤失败: %w", err)
		}
		if err := tx.Model(&model.Escalation{}).
			Where("request_id = ? AND status = ?", request.ID, model.EscalationStatusActive).
			Updates(map[string]interface{}{
				"status": model.EscalationStatusCancelled,
				"note":   "申请已取消",
			}).Error; err != nil {
			return fmt.Errorf("取消升级跟踪记录失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	metrics.RequestsCompletedTotal.WithLabelValues(string(model.RequestStatusCancelled)).Inc()
	s.recordAudit(actor, audit.ActionCancel, audit.EntityRequest, request.ID,
		map[string]interface{}{"status": oldStatus},
		map[string]interface{}{"status": model.RequestStatusCancelled})

	logger.Infof("Request %s cancelled by %s", request.RequestNumber, actor.Username)
	return nil
}

// Get 查询申请详情，申请人本人、链上审批人、人事和管理员可见
func (s *RequestService) Get(requestID string, actor *model.User) (*model.PrivilegeRequest, error) {
	request, err := s.requestRepo.FindByID(requestID)
	if err != nil {
		return nil, err
	}
	if request.ApplicantID == actor.ID || actor.Role == model.RoleAdmin || actor.Role == model.RoleHR {
		return request, nil
	}
	for _, step := range request.Steps {
		if step.ApproverID == actor.ID {
			return request, nil
		}
	}
	return nil, ErrForbidden
}

// ListMine 申请人的申请列表
func (s *RequestService) ListMine(applicantID, status string) ([]model.PrivilegeRequest, error) {
	return s.requestRepo.ListByApplicant(applicantID, status)
}

// ListPendingApprovals 待某审批人处理的当前步骤列表
func (s *RequestService) ListPendingApprovals(approverID string) ([]model.ApprovalStep, error) {
	return s.stepRepo.ListPendingByApprover(approverID)
}

func (s *RequestService) notifyApprover(step *model.ApprovalStep, request *model.PrivilegeRequest) {
	s.enqueueNotification(model.NotificationApprovalRequired, step.ApproverEmail, step.ApproverName,
		fmt.Sprintf("授权申请 %s 等待您审批", request.RequestNumber),
		fmt.Sprintf("申请人 %s 的授权申请已流转到您（%s 级别），请及时处理。", request.ApplicantName, step.Level),
		map[string]interface{}{
			"request_id": request.ID,
			"step_id":    step.ID,
			"level":      step.Level,
		})
}

func (s *RequestService) enqueueNotification(notifType model.NotificationType, email, name, subject, body string, metadata map[string]interface{}) {
	if s.notifier == nil || email == "" {
		return
	}
	if err := s.notifier.Enqueue(notifType, email, name, subject, body, metadata); err != nil {
		logger.Errorf("Failed to enqueue %s notification: %v", notifType, err)
	}
}

func (s *RequestService) recordAudit(actor *model.User, action, entityType, entityID string, oldValues, newValues map[string]interface{}) {
	if s.auditor == nil {
		return
	}
	entry := &audit.Entry{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		OldValues:  oldValues,
		NewValues:  newValues,
	}
	if actor != nil {
		entry.ActorID = actor.ID
		entry.ActorName = actor.FullName
	}
	if err := s.auditor.Record(entry); err != nil {
		logger.Errorf("Failed to record audit entry: %v", err)
	}
}

// firstPendingStep 当前步骤：序号最小的pending步骤
func firstPendingStep(steps []model.ApprovalStep) *model.ApprovalStep {
	var current *model.ApprovalStep
	for i := range steps {
		if steps[i].Status != model.StepStatusPending {
			continue
		}
		if current == nil || steps[i].LevelOrder < current.LevelOrder {
			current = &steps[i]
		}
	}
	return current
}

// generateRequestNumber 生成申请编号，如 PR-20260826-4F2A81C3
func generateRequestNumber() string {
	return fmt.Sprintf("PR-%s-%s",
		time.Now().Format("20060102"),
		strings.ToUpper(uuid.New().String()[:8]))
}
