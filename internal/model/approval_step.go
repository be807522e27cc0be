package model

import (
	"time"
)

// ApprovalLevel 审批级别（封闭枚举，按固定顺序流转）
type ApprovalLevel string

const (
	LevelHeadOfSection   ApprovalLevel = "head_of_section"
	LevelHeadOfDept      ApprovalLevel = "head_of_department"
	LevelCommittee       ApprovalLevel = "committee"
	LevelMedicalDirector ApprovalLevel = "medical_director"
)

// ApprovalLevelOrder 审批级别的全序，链上的步骤严格按此顺序推进
var ApprovalLevelOrder = []ApprovalLevel{
	LevelHeadOfSection,
	LevelHeadOfDept,
	LevelCommittee,
	LevelMedicalDirector,
}

// Ordinal 返回级别序号（从1开始），未知级别返回0
func (l ApprovalLevel) Ordinal() int {
	for i, level := range ApprovalLevelOrder {
		if level == l {
			return i + 1
		}
	}
	return 0
}

// Valid 是否为已知级别
func (l ApprovalLevel) Valid() bool {
	return l.Ordinal() > 0
}

// StepStatus 审批步骤状态
type StepStatus string

const (
	StepStatusPending  StepStatus = "pending"  // 待审批
	StepStatusApproved StepStatus = "approved" // 已通过
	StepStatusRejected StepStatus = "rejected" // 已拒绝
	StepStatusSkipped  StepStatus = "skipped"  // 已跳过（上游拒绝导致流程终止）
)

// ApprovalAction 审批动作
type ApprovalAction string

const (
	ActionApprove              ApprovalAction = "approve"
	ActionReject               ApprovalAction = "reject"
	ActionRequestModifications ApprovalAction = "request_modifications"
)

// ApprovalStep 审批链中的一个审批步骤
// 同一申请的步骤按 LevelOrder 严格有序；任一时刻至多一个步骤是"当前步骤"
// （序号最小的pending步骤，由查询推导，不单独存储指针）
type ApprovalStep struct {
	ID         string        `json:"id" gorm:"primaryKey;type:varchar(36)"`
	RequestID  string        `json:"request_id" gorm:"type:varchar(36);not null;index:idx_request_level"`
	Level      ApprovalLevel `json:"level" gorm:"type:varchar(30);not null"`
	LevelOrder int           `json:"level_order" gorm:"type:int;not null;index:idx_request_level"` // 持久化的级别序号，用于SQL排序

	// 审批人信息
	ApproverID    string `json:"approver_id" gorm:"type:varchar(36);not null;index"`
	ApproverName  string `json:"approver_name" gorm:"type:varchar(100)"`
	ApproverEmail string `json:"approver_email" gorm:"type:varchar(100)"`

	// 审批结果
	Status    StepStatus `json:"status" gorm:"type:varchar(20);default:pending;index"`
	Comments  string     `json:"comments" gorm:"type:text"`
	Signature string     `json:"signature" gorm:"type:varchar(255)"` // 电子签名令牌
	DecidedAt *time.Time `json:"decided_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 关联
	Request  *PrivilegeRequest `json:"request,omitempty" gorm:"foreignKey:RequestID"`
	Approver *User             `json:"approver,omitempty" gorm:"foreignKey:ApproverID"`
}

func (ApprovalStep) TableName() string {
	return "approval_steps"
}
