package model

import (
	"time"

	"gorm.io/datatypes"
)

// NotificationType 通知类型
type NotificationType string

const (
	NotificationApprovalRequired     NotificationType = "approval_required"     // 轮到你审批
	NotificationRequestApproved      NotificationType = "request_approved"      // 申请已批准
	NotificationRequestRejected      NotificationType = "request_rejected"      // 申请已拒绝
	NotificationModificationRequired NotificationType = "modification_required" // 需要修改后重新提交
	NotificationEscalationReminder   NotificationType = "escalation_reminder"   // 一级升级：提醒审批人
	NotificationEscalationManager    NotificationType = "escalation_manager"    // 二级升级：通知直属上级
	NotificationEscalationHR         NotificationType = "escalation_hr"         // 三级升级：通报人事
)

// NotificationStatus 通知投递状态
type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
)

// Notification 出站通知队列
// 工作流只负责入队（fire-and-forget），投递与重试由通知投递方负责
type Notification struct {
	ID             string             `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Type           NotificationType   `json:"type" gorm:"type:varchar(40);not null;index"`
	RecipientEmail string             `json:"recipient_email" gorm:"type:varchar(100);not null"`
	RecipientName  string             `json:"recipient_name" gorm:"type:varchar(100)"`
	Subject        string             `json:"subject" gorm:"type:varchar(255);not null"`
	Body           string             `json:"body" gorm:"type:text"`
	Metadata       datatypes.JSON     `json:"metadata" gorm:"type:json"` // 申请ID、步骤ID等上下文
	Status         NotificationStatus `json:"status" gorm:"type:varchar(20);default:pending;index"`
	Attempts       int                `json:"attempts" gorm:"type:int;default:0"`
	SentAt         *time.Time         `json:"sent_at"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

func (Notification) TableName() string {
	return "notifications"
}
