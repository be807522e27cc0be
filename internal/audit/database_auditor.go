package audit

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DatabaseAuditor 数据库审计器，把业务审计写入 audit_logs 表
type DatabaseAuditor struct {
	db *gorm.DB
}

// NewDatabaseAuditor 创建数据库审计器
func NewDatabaseAuditor(db *gorm.DB) Auditor {
	return &DatabaseAuditor{db: db}
}

// Record 记录一条业务审计
// 审计失败只记日志不阻断主流程（工作流状态变更本身已在事务内完成）
func (a *DatabaseAuditor) Record(entry *Entry) error {
	record := &model.AuditLog{
		ID:         uuid.New().String(),
		ActorID:    entry.ActorID,
		ActorName:  entry.ActorName,
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		ClientIP:   entry.ClientIP,
	}

	if entry.OldValues != nil {
		data, err := json.Marshal(entry.OldValues)
		if err != nil {
			return fmt.Errorf("failed to marshal old values: %w", err)
		}
		record.OldValues = datatypes.JSON(data)
	}
	if entry.NewValues != nil {
		data, err := json.Marshal(entry.NewValues)
		if err != nil {
			return fmt.Errorf("failed to marshal new values: %w", err)
		}
		record.NewValues = datatypes.JSON(data)
	}

	if err := a.db.Create(record).Error; err != nil {
		log.Printf("[Audit] Failed to create audit record: action=%s entity=%s/%s: %v",
			entry.Action, entry.EntityType, entry.EntityID, err)
		return fmt.Errorf("failed to create audit record: %w", err)
	}

	return nil
}
