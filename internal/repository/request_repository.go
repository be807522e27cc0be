package repository

import (
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/model"
	"gorm.io/gorm"
)

type RequestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

func (r *RequestRepository) Create(request *model.PrivilegeRequest) error {
	return r.db.Create(request).Error
}

// FindByID 查询申请详情（带授权项和审批链）
func (r *RequestRepository) FindByID(id string) (*model.PrivilegeRequest, error) {
	var request model.PrivilegeRequest
	err := r.db.
		Preload("Privileges").
		Preload("Privileges.Privilege").
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("level_order ASC")
		}).
		Where("id = ?", id).
		First(&request).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// HasActiveRequest 申请人是否已有流转中的申请（draft/pending/in_review）
func (r *RequestRepository) HasActiveRequest(applicantID string) (bool, error) {
	var count int64
	err := r.db.Model(&model.PrivilegeRequest{}).
		Where("applicant_id = ? AND status IN ?", applicantID,
			[]model.RequestStatus{model.RequestStatusDraft, model.RequestStatusPending, model.RequestStatusInReview}).
		Count(&count).Error
	return count > 0, err
}

// ListByApplicant 申请人的全部申请（含已结束的）
func (r *RequestRepository) ListByApplicant(applicantID string, status string) ([]model.PrivilegeRequest, error) {
	query := r.db.Model(&model.PrivilegeRequest{}).Where("applicant_id = ?", applicantID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var requests []model.PrivilegeRequest
	if err := query.Order("created_at DESC").Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *RequestRepository) Update(request *model.PrivilegeRequest) error {
	return r.db.Save(request).Error
}

// CurrentStep 当前步骤：序号最小的pending步骤（计算属性，不存储指针）
func (r *RequestRepository) CurrentStep(requestID string) (*model.ApprovalStep, error) {
	var step model.ApprovalStep
	err := r.db.Where("request_id = ? AND status = ?", requestID, model.StepStatusPending).
		Order("level_order ASC").
		First(&step).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &step, nil
}
