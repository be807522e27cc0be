package repository

import (
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/model"
	"gorm.io/gorm"
)

type PrivilegeRepository struct {
	db *gorm.DB
}

func NewPrivilegeRepository(db *gorm.DB) *PrivilegeRepository {
	return &PrivilegeRepository{db: db}
}

// FindByIDs 按ID批量查询授权项（仅在用的）
func (r *PrivilegeRepository) FindByIDs(ids []string) ([]model.Privilege, error) {
	var privileges []model.Privilege
	err := r.db.Where("id IN ? AND is_active = ?", ids, true).Find(&privileges).Error
	if err != nil {
		return nil, err
	}
	return privileges, nil
}

// List 授权项目录
func (r *PrivilegeRepository) List(category, privilegeType string) ([]model.Privilege, error) {
	query := r.db.Model(&model.Privilege{}).Where("is_active = ?", true)
	if category != "" {
		query = query.Where("category = ?", category)
	}
	if privilegeType != "" {
		query = query.Where("privilege_type = ?", privilegeType)
	}
	var privileges []model.Privilege
	if err := query.Order("code ASC").Find(&privileges).Error; err != nil {
		return nil, err
	}
	return privileges, nil
}

// FindRequirement 查询审批要求配置；没有匹配项时返回 (nil, nil)
func (r *PrivilegeRepository) FindRequirement(practitionerType, privilegeType string, specialtyMatch bool) (*model.ApprovalRequirement, error) {
	var requirement model.ApprovalRequirement
	err := r.db.Where(
		"practitioner_type = ? AND privilege_type = ? AND specialty_match = ? AND is_active = ?",
		practitionerType, privilegeType, specialtyMatch, true,
	).First(&requirement).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &requirement, nil
}
