package repository

import (
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/model"
	"gorm.io/gorm"
)

type EscalationRepository struct {
	db *gorm.DB
}

func NewEscalationRepository(db *gorm.DB) *EscalationRepository {
	return &EscalationRepository{db: db}
}

// ListActive 全部活跃的升级记录（巡检的输入），带步骤和申请用于状态校正
func (r *EscalationRepository) ListActive() ([]model.Escalation, error) {
	var escalations []model.Escalation
	err := r.db.
		Preload("Step").
		Preload("Request").
		Where("status = ?", model.EscalationStatusActive).
		Order("received_at ASC").
		Find(&escalations).Error
	if err != nil {
		return nil, err
	}
	return escalations, nil
}

func (r *EscalationRepository) FindByID(id string) (*model.Escalation, error) {
	var escalation model.Escalation
	if err := r.db.Preload("Step").Preload("Request").Where("id = ?", id).First(&escalation).Error; err != nil {
		return nil, err
	}
	return &escalation, nil
}

// FindActiveByStep 某步骤的活跃升级记录；没有时返回 (nil, nil)
func (r *EscalationRepository) FindActiveByStep(stepID string) (*model.Escalation, error) {
	var escalation model.Escalation
	err := r.db.Where("step_id = ? AND status = ?", stepID, model.EscalationStatusActive).
		First(&escalation).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &escalation, nil
}

// CountActive 活跃升级记录数（供指标上报）
func (r *EscalationRepository) CountActive() (int64, error) {
	var count int64
	err := r.db.Model(&model.Escalation{}).
		Where("status = ?", model.EscalationStatusActive).
		Count(&count).Error
	return count, err
}

// List 升级记录列表（管理端查询）
func (r *EscalationRepository) List(status string, requestID string) ([]model.Escalation, error) {
	query := r.db.Model(&model.Escalation{}).Preload("Step").Preload("Request")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if requestID != "" {
		query = query.Where("request_id = ?", requestID)
	}
	var escalations []model.Escalation
	if err := query.Order("created_at DESC").Find(&escalations).Error; err != nil {
		return nil, err
	}
	return escalations, nil
}
