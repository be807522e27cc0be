package privilege

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/audit"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/model"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/notification"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/repository"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/pkg/logger"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/pkg/metrics"
	"gorm.io/gorm"
)

// ApprovalService 审批状态机
// 负责单个审批步骤的生命周期（pending → approved/rejected）
// 和所属申请的聚合状态流转（pending → in_review → approved/rejected）
type ApprovalService struct {
	db          *gorm.DB
	stepRepo    *repository.ApprovalStepRepository
	requestRepo *repository.RequestRepository
	notifier    *notification.Manager
	auditor     audit.Auditor
}

// NewApprovalService 创建审批服务
func NewApprovalService(
	db *gorm.DB,
	stepRepo *repository.ApprovalStepRepository,
	requestRepo *repository.RequestRepository,
	notifier *notification.Manager,
	auditor audit.Auditor,
) *ApprovalService {
	return &ApprovalService{
		db:          db,
		stepRepo:    stepRepo,
		requestRepo: requestRepo,
		notifier:    notifier,
		auditor:     auditor,
	}
}

// Process 处理一次审批动作
// 前置条件：操作人必须是步骤的指定审批人（或管理员）；步骤必须处于pending。
// 步骤状态更新以"status必须仍为pending"为条件（CAS），两个并发的重复提交
// 只会有一个成功，另一个得到 ErrAlreadyProcessed
func (s *ApprovalService) Process(stepID string, actor *model.User, input *model.ProcessApprovalInput) (*model.ProcessApprovalResult, error) {
	step, err := s.stepRepo.FindByID(stepID)
	if err != nil {
		return nil, err
	}
	if step.Request == nil {
		return nil, errors.New("审批步骤缺少所属申请")
	}

	if step.ApproverID != actor.ID && actor.Role != model.RoleAdmin {
		return nil, ErrForbidden
	}
	if step.Status != model.StepStatusPending {
		return nil, ErrAlreadyProcessed
	}

	// 只有当前步骤（序号最小的pending步骤）可以被处理，
	// 否则后级审批人可以越过前级直接终结流程
	hasEarlier, err := s.stepRepo.HasPendingBefore(step)
	if err != nil {
		return nil, fmt.Errorf("校验步骤顺序失败: %w", err)
	}
	if hasEarlier {
		return nil, ErrNotCurrentStep
	}

	switch input.Action {
	case model.ActionApprove:
		return s.approve(step, actor, input)
	case model.ActionReject:
		if strings.TrimSpace(input.Comments) == "" {
			return nil, ErrCommentsRequired
		}
		return s.reject(step, actor, input)
	case model.ActionRequestModifications:
		if strings.TrimSpace(input.Comments) == "" {
			return nil, ErrCommentsRequired
		}
		return s.requestModifications(step, actor, input)
	default:
		return nil, ErrInvalidAction
	}
}

// approve 通过当前步骤并推进工作流
func (s *ApprovalService) approve(step *model.ApprovalStep, actor *model.User, input *model.ProcessApprovalInput) (*model.ProcessApprovalResult, error) {
	request := step.Request
	now := time.Now()

	var nextStep *model.ApprovalStep
	isComplete := false

	err := s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.ApprovalStep{}).
			Where("id = ? AND status = ?", step.ID, model.StepStatusPending).
			Updates(map[string]interface{}{
				"status":     model.StepStatusApproved,
				"comments":   input.Comments,
				"signature":  input.Signature,
				"decided_at": now,
			})
		if result.Error != nil {
			return fmt.Errorf("更新审批步骤失败: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrAlreadyProcessed
		}

		if err := s.applyPrivilegeDecisions(tx, request.ID, actor.ID, input.PrivilegeDecisions, now); err != nil {
			return err
		}

		// 步骤已审批，升级记录正常结束
		if err := tx.Model(&model.Escalation{}).
			Where("step_id = ? AND status = ?", step.ID, model.EscalationStatusActive).
			Update("status", model.EscalationStatusResolved).Error; err != nil {
			return fmt.Errorf("结束升级跟踪记录失败: %w", err)
		}

		// 推进到下一个更高级别的pending步骤
		var next model.ApprovalStep
		err := tx.Where("request_id = ? AND status = ? AND level_order > ?",
			request.ID, model.StepStatusPending, step.LevelOrder).
			Order("level_order ASC").
			First(&next).Error
		switch {
		case err == nil:
			nextStep = &next
			escalation := newEscalation(nextStep, now)
			if err := tx.Create(escalation).Error; err != nil {
				return fmt.Errorf("创建升级跟踪记录失败: %w", err)
			}
			result := tx.Model(&model.PrivilegeRequest{}).
				Where("id = ? AND status IN ?", request.ID,
					[]model.RequestStatus{model.RequestStatusPending, model.RequestStatusInReview}).
				Update("status", model.RequestStatusInReview)
			if result.Error != nil {
				return fmt.Errorf("更新申请状态失败: %w", result.Error)
			}
			if result.RowsAffected == 0 {
				return ErrInvalidStatus
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			// 这是最后一级，申请批准
			isComplete = true
			result := tx.Model(&model.PrivilegeRequest{}).
				Where("id = ? AND status IN ?", request.ID,
					[]model.RequestStatus{model.RequestStatusPending, model.RequestStatusInReview}).
				Updates(map[string]interface{}{
					"status":       model.RequestStatusApproved,
					"completed_at": now,
				})
			if result.Error != nil {
				return fmt.Errorf("更新申请状态失败: %w", result.Error)
			}
			if result.RowsAffected == 0 {
				return ErrInvalidStatus
			}
			// 未裁定的授权项随最终批准一并授予
			if err := tx.Model(&model.RequestPrivilege{}).
				Where("request_id = ? AND decision = ?", request.ID, model.PrivilegeDecisionPending).
				Updates(map[string]interface{}{
					"decision":   model.PrivilegeDecisionGranted,
					"decided_by": actor.ID,
					"decided_at": now,
				}).Error; err != nil {
				return fmt.Errorf("更新授权项裁定失败: %w", err)
			}
		default:
			return fmt.Errorf("查询下一审批步骤失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ApprovalsProcessedTotal.WithLabelValues(string(model.ActionApprove), string(step.Level)).Inc()
	s.recordAudit(actor, audit.ActionApprove, step,
		map[string]interface{}{"status": model.StepStatusPending},
		map[string]interface{}{"status": model.StepStatusApproved, "comments": input.Comments})

	result := &model.ProcessApprovalResult{IsComplete: isComplete}
	if nextStep != nil {
		result.Message = fmt.Sprintf("审批通过，流转到下一级：%s", nextStep.Level)
		result.NextLevel = &nextStep.Level
		s.enqueueNotification(model.NotificationApprovalRequired, nextStep.ApproverEmail, nextStep.ApproverName,
			fmt.Sprintf("授权申请 %s 等待您审批", request.RequestNumber),
			fmt.Sprintf("申请人 %s 的授权申请已流转到您（%s 级别），请及时处理。", request.ApplicantName, nextStep.Level),
			map[string]interface{}{"request_id": request.ID, "step_id": nextStep.ID, "level": nextStep.Level})
		logger.Infof("Step %s approved by %s, request %s advanced to level %s",
			step.ID, actor.Username, request.RequestNumber, nextStep.Level)
	} else {
		metrics.RequestsCompletedTotal.WithLabelValues(string(model.RequestStatusApproved)).Inc()
		metrics.ActiveEscalations.Dec()
		result.Message = "审批通过，申请已全部批准"
		s.enqueueNotification(model.NotificationRequestApproved, request.ApplicantEmail, request.ApplicantName,
			fmt.Sprintf("您的授权申请 %s 已批准", request.RequestNumber),
			"全部审批级别均已通过。",
			map[string]interface{}{"request_id": request.ID})
		logger.Infof("Step %s approved by %s, request %s fully approved",
			step.ID, actor.Username, request.RequestNumber)
	}

	return result, nil
}

// reject 拒绝当前步骤并立即终止整个工作流
// 其余未处理步骤标记为skipped（不删除），后续级别不再有机会审批
func (s *ApprovalService) reject(step *model.ApprovalStep, actor *model.User, input *model.ProcessApprovalInput) (*model.ProcessApprovalResult, error) {
	request := step.Request
	now := time.Now()

	err := s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.ApprovalStep{}).
			Where("id = ? AND status = ?", step.ID, model.StepStatusPending).
			Updates(map[string]interface{}{
				"status":     model.StepStatusRejected,
				"comments":   input.Comments,
				"signature":  input.Signature,
				"decided_at": now,
			})
		if result.Error != nil {
			return fmt.Errorf("更新审批步骤失败: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrAlreadyProcessed
		}

		if err := tx.Model(&model.ApprovalStep{}).
			Where("request_id = ? AND status = ? AND id <> ?", request.ID, model.StepStatusPending, step.ID).
			Update("status", model.StepStatusSkipped).Error; err != nil {
			return fmt.Errorf("跳过未处理步骤失败: %w", err)
		}

		if err := tx.Model(&model.RequestPrivilege{}).
			Where("request_id = ? AND decision = ?", request.ID, model.PrivilegeDecisionPending).
			Updates(map[string]interface{}{
				"decision":   model.PrivilegeDecisionDenied,
				"decided_by": actor.ID,
				"decided_at": now,
			}).Error; err != nil {
			return fmt.Errorf("更新授权项裁定失败: %w", err)
		}

		if err := tx.Model(&model.Escalation{}).
			Where("request_id = ? AND status = ?", request.ID, model.EscalationStatusActive).
			Updates(map[string]interface{}{
				"status": model.EscalationStatusCancelled,
				"note":   "申请被拒绝，流程终止",
			}).Error; err != nil {
			return fmt.Errorf("取消升级跟踪记录失败: %w", err)
		}

		result = tx.Model(&model.PrivilegeRequest{}).
			Where("id = ? AND status IN ?", request.ID,
				[]model.RequestStatus{model.RequestStatusPending, model.RequestStatusInReview}).
			Updates(map[string]interface{}{
				"status":       model.RequestStatusRejected,
				"completed_at": now,
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

	metrics.ApprovalsProcessedTotal.WithLabelValues(string(model.ActionReject), string(step.Level)).Inc()
	metrics.RequestsCompletedTotal.WithLabelValues(string(model.RequestStatusRejected)).Inc()
	metrics.ActiveEscalations.Dec()
	s.recordAudit(actor, audit.ActionReject, step,
		map[string]interface{}{"status": model.StepStatusPending},
		map[string]interface{}{"status": model.StepStatusRejected, "comments": input.Comments})

	s.enqueueNotification(model.NotificationRequestRejected, request.ApplicantEmail, request.ApplicantName,
		fmt.Sprintf("您的授权申请 %s 已被拒绝", request.RequestNumber),
		fmt.Sprintf("审批意见：%s", input.Comments),
		map[string]interface{}{"request_id": request.ID, "rejected_level": step.Level})

	logger.Infof("Step %s rejected by %s, request %s terminated", step.ID, actor.Username, request.RequestNumber)

	return &model.ProcessApprovalResult{
		Message:    "已拒绝，申请流程终止",
		IsComplete: true,
	}, nil
}

// requestModifications 退回修改
// 步骤保持pending（申请人修改后重新提交时由同一审批人重新审阅），
// 申请回到draft，升级跟踪记录取消
func (s *ApprovalService) requestModifications(step *model.ApprovalStep, actor *model.User, input *model.ProcessApprovalInput) (*model.ProcessApprovalResult, error) {
	request := step.Request

	err := s.db.Transaction(func(tx *gorm.DB) error {
		// 申请状态的CAS是这里的唯一赢家保证：重复退回只有一次生效
		result := tx.Model(&model.PrivilegeRequest{}).
			Where("id = ? AND status IN ?", request.ID,
				[]model.RequestStatus{model.RequestStatusPending, model.RequestStatusInReview}).
			Update("status", model.RequestStatusDraft)
		if result.Error != nil {
			return fmt.Errorf("更新申请状态失败: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrInvalidStatus
		}

		// 意见记录在步骤上，状态不变
		if err := tx.Model(&model.ApprovalStep{}).
			Where("id = ? AND status = ?", step.ID, model.StepStatusPending).
			Update("comments", input.Comments).Error; err != nil {
			return fmt.Errorf("记录审批意见失败: %w", err)
		}

		if err := tx.Model(&model.Escalation{}).
			Where("step_id = ? AND status = ?", step.ID, model.EscalationStatusActive).
			Updates(map[string]interface{}{
				"status": model.EscalationStatusCancelled,
				"note":   "退回修改，等待申请人重新提交",
			}).Error; err != nil {
			return fmt.Errorf("取消升级跟踪记录失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ApprovalsProcessedTotal.WithLabelValues(string(model.ActionRequestModifications), string(step.Level)).Inc()
	metrics.ActiveEscalations.Dec()
	s.recordAudit(actor, audit.ActionRequestModifications, step,
		map[string]interface{}{"request_status": request.Status},
		map[string]interface{}{"request_status": model.RequestStatusDraft, "comments": input.Comments})

	s.enqueueNotification(model.NotificationModificationRequired, request.ApplicantEmail, request.ApplicantName,
		fmt.Sprintf("您的授权申请 %s 需要修改", request.RequestNumber),
		fmt.Sprintf("审批人（%s 级别）请您修改后重新提交。意见：%s", step.Level, input.Comments),
		map[string]interface{}{"request_id": request.ID, "step_id": step.ID})

	logger.Infof("Step %s returned for modifications by %s, request %s back to draft",
		step.ID, actor.Username, request.RequestNumber)

	return &model.ProcessApprovalResult{
		Message:    "已退回修改，等待申请人重新提交",
		IsComplete: false,
	}, nil
}

// applyPrivilegeDecisions 套用审批人对各授权项的逐项裁定
func (s *ApprovalService) applyPrivilegeDecisions(tx *gorm.DB, requestID, actorID string, decisions []model.PrivilegeDecisionInput, now time.Time) error {
	for _, d := range decisions {
		if d.Decision != model.PrivilegeDecisionGranted && d.Decision != model.PrivilegeDecisionDenied {
			return fmt.Errorf("授权项裁定值无效: %s", d.Decision)
		}
		if err := tx.Model(&model.RequestPrivilege{}).
			Where("id = ? AND request_id = ?", d.RequestPrivilegeID, requestID).
			Updates(map[string]interface{}{
				"decision":   d.Decision,
				"decided_by": actorID,
				"decided_at": now,
			}).Error; err != nil {
			return fmt.Errorf("更新授权项裁定失败: %w", err)
		}
	}
	return nil
}

func (s *ApprovalService) enqueueNotification(notifType model.NotificationType, email, name, subject, body string, metadata map[string]interface{}) {
	if s.notifier == nil || email == "" {
		return
	}
	if err := s.notifier.Enqueue(notifType, email, name, subject, body, metadata); err != nil {
		logger.Errorf("Failed to enqueue %s notification: %v", notifType, err)
	}
}

func (s *ApprovalService) recordAudit(actor *model.User, action string, step *model.ApprovalStep, oldValues, newValues map[string]interface{}) {
	if s.auditor == nil {
		return
	}
	entry := &audit.Entry{
		ActorID:    actor.ID,
		ActorName:  actor.FullName,
		Action:     action,
		EntityType: audit.EntityStep,
		EntityID:   step.ID,
		OldValues:  oldValues,
		NewValues:  newValues,
	}
	if err := s.auditor.Record(entry); err != nil {
		logger.Errorf("Failed to record audit entry: %v", err)
	}
}
