package model

import (
	"time"
)

// Setting 系统设置表
type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"uniqueIndex;size:100;not null" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	Category  string    `gorm:"size:50;index" json:"category"` // system, security, escalation, notification
	Type      string    `gorm:"size:20" json:"type"`           // string, number, boolean, json
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Setting) TableName() string {
	return "settings"
}

// SettingResponse 设置响应
type SettingResponse struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Category string `json:"category"`
	Type     string `json:"type"`
}

// 设置分类
const (
	CategorySystem       = "system"
	CategorySecurity     = "security"
	CategoryEscalation   = "escalation"
	CategoryNotification = "notification"
)

// 升级巡检相关设置键
const (
	SettingEscalationEnabled    = "escalation_enabled"
	SettingEscalationLevel1Days = "escalation_level1_days"
	SettingEscalationLevel2Days = "escalation_level2_days"
	SettingEscalationLevel3Days = "escalation_level3_days"
	SettingHRContactEmail       = "escalation_hr_contact_email"
	SettingHRContactName        = "escalation_hr_contact_name"
	SettingEscalationCronSecret = "escalation_cron_secret"
)
