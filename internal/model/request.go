package model

import (
	"time"
)

// RequestStatus 授权申请状态
type RequestStatus string

const (
	RequestStatusDraft     RequestStatus = "draft"     // 草稿
	RequestStatusPending   RequestStatus = "pending"   // 已提交，等待首级审批
	RequestStatusInReview  RequestStatus = "in_review" // 审批中（至少一级已通过）
	RequestStatusApproved  RequestStatus = "approved"  // 已批准
	RequestStatusRejected  RequestStatus = "rejected"  // 已拒绝
	RequestStatusCancelled RequestStatus = "cancelled" // 已取消
)

// IsActive 申请是否仍在流转中（每个申请人同一时刻至多一个）
func (s RequestStatus) IsActive() bool {
	return s == RequestStatusDraft || s == RequestStatusPending || s == RequestStatusInReview
}

// RequestKind 申请类型
type RequestKind string

const (
	RequestKindNew       RequestKind = "new"       // 首次授权
	RequestKindRenewal   RequestKind = "renewal"   // 续期
	RequestKindAddition  RequestKind = "addition"  // 追加授权项
	RequestKindTemporary RequestKind = "temporary" // 临时授权
)

// JustificationRequired 该申请类型是否必须填写申请理由
func (k RequestKind) JustificationRequired() bool {
	return k == RequestKindAddition || k == RequestKindTemporary
}

// PrivilegeRequest 临床授权申请
type PrivilegeRequest struct {
	ID            string        `json:"id" gorm:"primaryKey;type:varchar(36)"`
	RequestNumber string        `json:"request_number" gorm:"type:varchar(50);uniqueIndex"`
	Kind          RequestKind   `json:"kind" gorm:"type:varchar(20);not null;index"`
	PrivilegeType string        `json:"privilege_type" gorm:"type:varchar(50);index"` // core, non_core, extra
	Status        RequestStatus `json:"status" gorm:"type:varchar(20);default:draft;index"`
	Justification string        `json:"justification" gorm:"type:text"`

	// 申请人信息
	ApplicantID    string `json:"applicant_id" gorm:"type:varchar(36);not null;index"`
	ApplicantName  string `json:"applicant_name" gorm:"type:varchar(100)"`
	ApplicantEmail string `json:"applicant_email" gorm:"type:varchar(100)"`
	DepartmentID   string `json:"department_id" gorm:"type:varchar(36);index"`

	// 时间信息
	SubmittedAt *time.Time `json:"submitted_at"` // 提交时间（构建审批链的时刻）
	CompletedAt *time.Time `json:"completed_at"` // 终态时间（批准/拒绝）
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// 关联
	Applicant  *User              `json:"applicant,omitempty" gorm:"foreignKey:ApplicantID"`
	Privileges []RequestPrivilege `json:"privileges,omitempty" gorm:"foreignKey:RequestID"`
	Steps      []ApprovalStep     `json:"steps,omitempty" gorm:"foreignKey:RequestID"`
}

func (PrivilegeRequest) TableName() string {
	return "privilege_requests"
}

// PrivilegeDecision 单个授权项的审批决定
type PrivilegeDecision string

const (
	PrivilegeDecisionPending PrivilegeDecision = "pending" // 待定
	PrivilegeDecisionGranted PrivilegeDecision = "granted" // 授予
	PrivilegeDecisionDenied  PrivilegeDecision = "denied"  // 拒绝
)

// RequestPrivilege 申请中的单个授权项
type RequestPrivilege struct {
	ID          string            `json:"id" gorm:"primaryKey;type:varchar(36)"`
	RequestID   string            `json:"request_id" gorm:"type:varchar(36);not null;index"`
	PrivilegeID string            `json:"privilege_id" gorm:"type:varchar(36);not null;index"`
	Decision    PrivilegeDecision `json:"decision" gorm:"type:varchar(20);default:pending;index"`
	DecidedBy   string            `json:"decided_by" gorm:"type:varchar(36)"`
	DecidedAt   *time.Time        `json:"decided_at"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`

	// 关联
	Privilege *Privilege `json:"privilege,omitempty" gorm:"foreignKey:PrivilegeID"`
}

func (RequestPrivilege) TableName() string {
	return "request_privileges"
}

// Privilege 授权项目录（医院授权清单）
type Privilege struct {
	ID            string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Code          string    `json:"code" gorm:"type:varchar(50);uniqueIndex;not null"`
	Name          string    `json:"name" gorm:"type:varchar(255);not null"`
	Category      string    `json:"category" gorm:"type:varchar(20);not null;index"` // core, non_core, extra
	PrivilegeType string    `json:"privilege_type" gorm:"type:varchar(50);index"`    // 适用的执业类别
	Specialty     string    `json:"specialty" gorm:"type:varchar(100);index"`        // 适用专业
	IsActive      bool      `json:"is_active" gorm:"type:boolean;default:true;index"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Privilege) TableName() string {
	return "privileges"
}
