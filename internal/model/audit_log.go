package model

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog 业务审计日志
// 每次有意义的状态变更记录一条（提交、审批、拒绝、退回、升级、巡检）
type AuditLog struct {
	ID         string         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ActorID    string         `json:"actor_id" gorm:"type:varchar(36);index"` // 系统动作（如巡检）时为空
	ActorName  string         `json:"actor_name" gorm:"type:varchar(100)"`
	Action     string         `json:"action" gorm:"type:varchar(50);not null;index"` // submit/approve/reject/request_modifications/escalate/sweep/...
	EntityType string         `json:"entity_type" gorm:"type:varchar(50);not null;index"`
	EntityID   string         `json:"entity_id" gorm:"type:varchar(36);index"`
	OldValues  datatypes.JSON `json:"old_values" gorm:"type:json"`
	NewValues  datatypes.JSON `json:"new_values" gorm:"type:json"`
	ClientIP   string         `json:"client_ip" gorm:"type:varchar(45)"`
	CreatedAt  time.Time      `json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

// OperationLog HTTP操作日志（访问审计，由中间件写入）
type OperationLog struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username  string    `gorm:"type:varchar(100);not null" json:"username"`
	IP        string    `gorm:"type:varchar(50);not null" json:"ip"`
	Method    string    `gorm:"type:varchar(10);not null" json:"method"`
	Path      string    `gorm:"type:varchar(255);not null" json:"path"`
	Status    int       `gorm:"not null" json:"status"`
	StartTime time.Time `gorm:"not null" json:"start_time"`
	TimeCost  int64     `gorm:"type:bigint" json:"time_cost"`
	UserAgent string    `gorm:"type:varchar(500)" json:"user_agent"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (OperationLog) TableName() string {
	return "operation_logs"
}
