package repository

import (
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/model"
	"gorm.io/gorm"
)

type ApprovalStepRepository struct {
	db *gorm.DB
}

func NewApprovalStepRepository(db *gorm.DB) *ApprovalStepRepository {
	return &ApprovalStepRepository{db: db}
}

func (r *ApprovalStepRepository) FindByID(id string) (*model.ApprovalStep, error) {
	var step model.ApprovalStep
	if err := r.db.Preload("Request").Where("id = ?", id).First(&step).Error; err != nil {
		return nil, err
	}
	return &step, nil
}

// ListByRequest 申请的全部步骤，按级别序号排序
func (r *ApprovalStepRepository) ListByRequest(requestID string) ([]model.ApprovalStep, error) {
	var steps []model.ApprovalStep
	err := r.db.Where("request_id = ?", requestID).
		Order("level_order ASC").
		Find(&steps).Error
	if err != nil {
		return nil, err
	}
	return steps, nil
}

// HasPendingBefore 同一申请中是否还有序号更小的pending步骤
// （为true说明给定步骤还不是当前步骤）
func (r *ApprovalStepRepository) HasPendingBefore(step *model.ApprovalStep) (bool, error) {
	var count int64
	err := r.db.Model(&model.ApprovalStep{}).
		Where("request_id = ? AND status = ? AND level_order < ?",
			step.RequestID, model.StepStatusPending, step.LevelOrder).
		Count(&count).Error
	return count > 0, err
}

// ListPendingByApprover 待某审批人处理的步骤：
// 分配给该审批人、状态为pending、且是所属申请的当前步骤（没有更小序号的pending步骤），
// 申请仍在流转中（pending/in_review）
func (r *ApprovalStepRepository) ListPendingByApprover(approverID string) ([]model.ApprovalStep, error) {
	var steps []model.ApprovalStep
	err := r.db.
		Joins("JOIN privilege_requests ON privilege_requests.id = approval_steps.request_id").
		Where("approval_steps.approver_id = ? AND approval_steps.status = ?", approverID, model.StepStatusPending).
		Where("privilege_requests.status IN ?",
			[]model.RequestStatus{model.RequestStatusPending, model.RequestStatusInReview}).
		Where("NOT EXISTS (SELECT 1 FROM approval_steps s2 WHERE s2.request_id = approval_steps.request_id AND s2.status = ? AND s2.level_order < approval_steps.level_order)",
			model.StepStatusPending).
		Order("approval_steps.created_at ASC").
		Preload("Request").
		Find(&steps).Error
	if err != nil {
		return nil, err
	}
	return steps, nil
}
