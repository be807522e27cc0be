package model

import (
	"time"

	"gorm.io/datatypes"
)

// EscalationStatus 升级记录状态
type EscalationStatus string

const (
	EscalationStatusActive    EscalationStatus = "active"    // 活跃，参与巡检
	EscalationStatusResolved  EscalationStatus = "resolved"  // 步骤已审批，正常结束
	EscalationStatusCancelled EscalationStatus = "cancelled" // 流程被拒绝/退回/取消
)

// EscalationTier 升级级别（超时提醒的严重程度）
type EscalationTier int

const (
	TierReminder EscalationTier = 1 // 提醒审批人本人
	TierManager  EscalationTier = 2 // 通知审批人的直属上级
	TierHR       EscalationTier = 3 // 通报人事
)

// Escalation 审批超时升级记录
// 每个处于pending的当前审批步骤有且仅有一条active的升级记录；
// 步骤被审批或被上游终止后转为resolved/cancelled，只改状态不删除，留作审计
type Escalation struct {
	ID         string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	RequestID  string `json:"request_id" gorm:"type:varchar(36);not null;index"`
	StepID     string `json:"step_id" gorm:"type:varchar(36);not null;index"`
	ApproverID string `json:"approver_id" gorm:"type:varchar(36);not null;index"`

	// ReceivedAt 步骤成为"当前步骤"的时刻，超时天数从此刻计算
	ReceivedAt time.Time `json:"received_at" gorm:"not null"`

	// 三级升级，各级发送标记只置位一次
	Tier1Sent   bool       `json:"tier1_sent" gorm:"type:boolean;default:false"`
	Tier1SentAt *time.Time `json:"tier1_sent_at"`
	Tier2Sent   bool       `json:"tier2_sent" gorm:"type:boolean;default:false"`
	Tier2SentAt *time.Time `json:"tier2_sent_at"`
	Tier3Sent   bool       `json:"tier3_sent" gorm:"type:boolean;default:false"`
	Tier3SentAt *time.Time `json:"tier3_sent_at"`

	// 二级升级需要的直属上级信息（惰性解析，查不到也要记录结论避免重复查询）
	ManagerID    string `json:"manager_id" gorm:"type:varchar(36)"`
	ManagerEmail string `json:"manager_email" gorm:"type:varchar(100)"`

	Status EscalationStatus `json:"status" gorm:"type:varchar(20);default:active;index"`
	Note   string           `json:"note" gorm:"type:text"` // 取消原因 / 二级无上级等说明

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 关联
	Request *PrivilegeRequest `json:"request,omitempty" gorm:"foreignKey:RequestID"`
	Step    *ApprovalStep     `json:"step,omitempty" gorm:"foreignKey:StepID"`
}

func (Escalation) TableName() string {
	return "escalations"
}

// DaysSinceReceived 距接收时刻的整天数（向下取整）
func (e *Escalation) DaysSinceReceived(now time.Time) int {
	return int(now.Sub(e.ReceivedAt).Hours() / 24)
}

// SweepRun 一次巡检运行的汇总审计记录
type SweepRun struct {
	ID         string         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	StartedAt  time.Time      `json:"started_at" gorm:"not null"`
	FinishedAt time.Time      `json:"finished_at"`
	Processed  int            `json:"processed" gorm:"type:int;default:0"`
	Tier1Sent  int            `json:"tier1_sent" gorm:"type:int;default:0"`
	Tier2Sent  int            `json:"tier2_sent" gorm:"type:int;default:0"`
	Tier3Sent  int            `json:"tier3_sent" gorm:"type:int;default:0"`
	Resolved   int            `json:"resolved" gorm:"type:int;default:0"` // 巡检中顺手校正的过期active记录数
	Skipped    int            `json:"skipped" gorm:"type:int;default:0"`
	Errors     int            `json:"errors" gorm:"type:int;default:0"`
	Detail     datatypes.JSON `json:"detail" gorm:"type:json"` // 逐条处理结果
	CreatedAt  time.Time      `json:"created_at"`
}

func (SweepRun) TableName() string {
	return "escalation_sweep_runs"
}
