package model

import (
	"time"

	"gorm.io/datatypes"
)

// ApprovalRequirement 审批要求配置表（参考数据，工作流只读）
// 决定某一执业类别 + 授权类别（+专业是否匹配）组合需要哪些审批级别，
// 或者是否可以免审自动批准（核心授权且专业匹配时常见）
type ApprovalRequirement struct {
	ID               string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	PractitionerType string `json:"practitioner_type" gorm:"type:varchar(50);not null;index:idx_req_lookup"`
	PrivilegeType    string `json:"privilege_type" gorm:"type:varchar(50);not null;index:idx_req_lookup"` // core, non_core, extra
	SpecialtyMatch   bool   `json:"specialty_match" gorm:"type:boolean;default:false;index:idx_req_lookup"`

	// AutoApprove 为true时跳过审批链，提交即批准
	AutoApprove bool `json:"auto_approve" gorm:"type:boolean;default:false"`

	// RequiredLevels 需要的审批级别列表（JSON数组，如 ["head_of_section","committee"]）
	// 为空表示按默认全链构建
	RequiredLevels datatypes.JSON `json:"required_levels" gorm:"type:json"`

	IsActive  bool      `json:"is_active" gorm:"type:boolean;default:true;index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ApprovalRequirement) TableName() string {
	return "approval_requirements"
}
