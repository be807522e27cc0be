package privilege

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/audit"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/model"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/notification"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/repository"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/pkg/distributed"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/pkg/logger"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/pkg/metrics"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 巡检中单条升级记录的处理结果
const (
	OutcomeTier1    = "tier1"
	OutcomeTier2    = "tier2"
	OutcomeTier3    = "tier3"
	OutcomeResolved = "resolved" // 步骤已在别处决定，顺手校正过期的active记录
	OutcomeSkipped  = "skipped"  // 未到阈值 / 该发的级别已发 / 配置缺失
	OutcomeError    = "error"
)

// EscalationResult 单条升级记录的巡检结果
type EscalationResult struct {
	EscalationID string `json:"escalation_id"`
	RequestID    string `json:"request_id"`
	StepID       string `json:"step_id"`
	Days         int    `json:"days"`
	Outcome      string `json:"outcome"`
	Error        string `json:"error,omitempty"`
}

// SweepResult 一次巡检的汇总结果
type SweepResult struct {
	Enabled   bool               `json:"enabled"`
	Locked    bool               `json:"locked,omitempty"` // 其他实例正在巡检，本次跳过
	Processed int                `json:"processed"`
	Tier1Sent int                `json:"tier1_sent"`
	Tier2Sent int                `json:"tier2_sent"`
	Tier3Sent int                `json:"tier3_sent"`
	Resolved  int                `json:"resolved"`
	Skipped   int                `json:"skipped"`
	Errors    int                `json:"errors"`
	Details   []EscalationResult `json:"details"`
}

// tierThresholds 三级升级的天数阈值
type tierThresholds struct {
	level1Days int
	level2Days int
	level3Days int
}

// EscalationService 审批超时升级巡检
// 由外部调度器周期触发，扫描全部active升级记录，按已等待天数
// 发送对应级别的升级通知，每级每条记录只发一次
type EscalationService struct {
	db             *gorm.DB
	escalationRepo *repository.EscalationRepository
	settingRepo    *repository.SettingRepository
	userRepo       *repository.UserRepository
	notifier       *notification.Manager
	auditor        audit.Auditor
	redisClient    *redis.Client
	lockTTL        time.Duration
}

// NewEscalationService 创建升级巡检服务
// redisClient 可以为nil（单机部署时不需要分布式互斥）
func NewEscalationService(
	db *gorm.DB,
	escalationRepo *repository.EscalationRepository,
	settingRepo *repository.SettingRepository,
	userRepo *repository.UserRepository,
	notifier *notification.Manager,
	auditor audit.Auditor,
	redisClient *redis.Client,
	lockTTL time.Duration,
) *EscalationService {
	if lockTTL <= 0 {
		lockTTL = 5 * time.Minute
	}
	return &EscalationService{
		db:             db,
		escalationRepo: escalationRepo,
		settingRepo:    settingRepo,
		userRepo:       userRepo,
		notifier:       notifier,
		auditor:        auditor,
		redisClient:    redisClient,
		lockTTL:        lockTTL,
	}
}

// RunSweep 执行一次升级巡检
// 升级功能未启用时直接返回零处理结果，不做任何写入。
// 每条升级记录独立处理：单条失败只记入该条的结果，不中断其余记录
func (s *EscalationService) RunSweep() (*SweepResult, error) {
	startedAt := time.Now()

	if !s.settingRepo.GetBool(model.SettingEscalationEnabled, true) {
		logger.Infof("Escalation sweep skipped: feature disabled")
		metrics.EscalationSweepRunsTotal.WithLabelValues("disabled").Inc()
		return &SweepResult{Enabled: false, Details: []EscalationResult{}}, nil
	}

	// 多实例部署时同一时刻只允许一个实例巡检
	lock := distributed.NewRedisLock(s.redisClient, "cbahi:escalation:sweep:lock", s.lockTTL)
	acquired, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("获取巡检锁失败: %w", err)
	}
	if !acquired {
		logger.Infof("Escalation sweep skipped: another instance holds the lock")
		metrics.EscalationSweepRunsTotal.WithLabelValues("locked").Inc()
		return &SweepResult{Enabled: true, Locked: true, Details: []EscalationResult{}}, nil
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warnf("Failed to release sweep lock: %v", err)
		}
	}()

	// 阈值每次巡检只读一次
	thresholds := tierThresholds{
		level1Days: s.settingRepo.GetInt(model.SettingEscalationLevel1Days, 3),
		level2Days: s.settingRepo.GetInt(model.SettingEscalationLevel2Days, 5),
		level3Days: s.settingRepo.GetInt(model.SettingEscalationLevel3Days, 7),
	}
	hrEmail, _ := s.settingRepo.Get(model.SettingHRContactEmail)
	hrName, _ := s.settingRepo.Get(model.SettingHRContactName)

	escalations, err := s.escalationRepo.ListActive()
	if err != nil {
		metrics.EscalationSweepRunsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("加载活跃升级记录失败: %w", err)
	}

	now := time.Now()
	result := &SweepResult{Enabled: true, Details: make([]EscalationResult, 0, len(escalations))}

	for i := range escalations {
		esc := &escalations[i]
		detail := EscalationResult{
			EscalationID: esc.ID,
			RequestID:    esc.RequestID,
			StepID:       esc.StepID,
			Days:         esc.DaysSinceReceived(now),
		}

		outcome, err := s.processOne(esc, now, thresholds, hrEmail, hrName)
		detail.Outcome = outcome
		if err != nil {
			detail.Outcome = OutcomeError
			detail.Error = err.Error()
			result.Errors++
			metrics.EscalationSweepErrorsTotal.Inc()
			logger.Errorf("Escalation %s sweep failed: %v", esc.ID, err)
		} else {
			switch outcome {
			case OutcomeTier1:
				result.Tier1Sent++
			case OutcomeTier2:
				result.Tier2Sent++
			case OutcomeTier3:
				result.Tier3Sent++
			case OutcomeResolved:
				result.Resolved++
			case OutcomeSkipped:
				result.Skipped++
			}
		}
		result.Processed++
		result.Details = append(result.Details, detail)
	}

	if active, err := s.escalationRepo.CountActive(); err == nil {
		metrics.ActiveEscalations.Set(float64(active))
	}

	s.recordSweepRun(startedAt, time.Now(), result)
	metrics.EscalationSweepRunsTotal.WithLabelValues("completed").Inc()
	metrics.EscalationSweepDuration.Observe(time.Since(startedAt).Seconds())

	logger.Infof("Escalation sweep completed: processed=%d tier1=%d tier2=%d tier3=%d resolved=%d skipped=%d errors=%d",
		result.Processed, result.Tier1Sent, result.Tier2Sent, result.Tier3Sent,
		result.Resolved, result.Skipped, result.Errors)

	return result, nil
}

// processOne 处理单条升级记录
func (s *EscalationService) processOne(esc *model.Escalation, now time.Time, th tierThresholds, hrEmail, hrName string) (string, error) {
	// 校正漂移：步骤已在别处决定或申请已终止，升级记录转为resolved
	if stale, reason := s.isStale(esc); stale {
		err := s.db.Model(&model.Escalation{}).
			Where("id = ? AND status = ?", esc.ID, model.EscalationStatusActive).
			Updates(map[string]interface{}{
				"status": model.EscalationStatusResolved,
				"note":   reason,
			}).Error
		if err != nil {
			return "", fmt.Errorf("校正过期升级记录失败: %w", err)
		}
		return OutcomeResolved, nil
	}

	days := esc.DaysSinceReceived(now)

	// 从最高级别往下选：长期未处理的记录直接发最高适用级别，
	// 不为永远不会补发的低级别等待；每次巡检每条记录至多发一级
	switch {
	case days >= th.level3Days && !esc.Tier3Sent && hrEmail != "":
		return s.sendTier3(esc, now, days, hrEmail, hrName)
	case days >= th.level2Days && !esc.Tier2Sent:
		return s.sendTier2(esc, now, days)
	case days >= th.level1Days && !esc.Tier1Sent:
		return s.sendTier1(esc, now, days)
	default:
		return OutcomeSkipped, nil
	}
}

// isStale 升级记录是否已经过期（步骤或申请在别处被决定）
func (s *EscalationService) isStale(esc *model.Escalation) (bool, string) {
	if esc.Step == nil || esc.Step.Status != model.StepStatusPending {
		return true, "审批步骤已决定，巡检校正"
	}
	if esc.Request == nil ||
		(esc.Request.Status != model.RequestStatusPending && esc.Request.Status != model.RequestStatusInReview) {
		return true, "申请已终止，巡检校正"
	}
	return false, ""
}

// sendTier1 一级升级：提醒审批人本人
func (s *EscalationService) sendTier1(esc *model.Escalation, now time.Time, days int) (string, error) {
	updated, err := s.markTierSent(esc.ID, "tier1_sent", "tier1_sent_at", now, nil)
	if err != nil {
		return "", err
	}
	if !updated {
		return OutcomeSkipped, nil
	}

	metrics.EscalationTiersSentTotal.WithLabelValues("1").Inc()
	s.enqueueNotification(model.NotificationEscalationReminder,
		esc.Step.ApproverEmail, esc.Step.ApproverName,
		fmt.Sprintf("提醒：授权申请 %s 已等待您审批 %d 天", requestNumber(esc), days),
		fmt.Sprintf("申请人 %s 的授权申请已在您处等待 %d 天，请尽快处理。", applicantName(esc), days),
		map[string]interface{}{"escalation_id": esc.ID, "request_id": esc.RequestID, "tier": 1, "days": days})
	return OutcomeTier1, nil
}

// sendTier2 二级升级：通知审批人的直属上级
// 直属上级不存在时仍标记已发送并记录说明，避免后续巡检重复查询
func (s *EscalationService) sendTier2(esc *model.Escalation, now time.Time, days int) (string, error) {
	managerEmail := esc.ManagerEmail
	extra := map[string]interface{}{}
	var managerName string

	if esc.ManagerID == "" && managerEmail == "" {
		approver, err := s.userRepo.FindUserByID(esc.ApproverID)
		if err != nil {
			return "", fmt.Errorf("查询审批人失败: %w", err)
		}
		manager, err := s.userRepo.FindManager(approver)
		if err != nil {
			return "", fmt.Errorf("查询直属上级失败: %w", err)
		}
		if manager == nil {
			extra["note"] = "审批人无直属上级，二级升级未发送通知"
		} else {
			extra["manager_id"] = manager.ID
			extra["manager_email"] = manager.Email
			managerEmail = manager.Email
			managerName = manager.FullName
		}
	}

	updated, err := s.markTierSent(esc.ID, "tier2_sent", "tier2_sent_at", now, extra)
	if err != nil {
		return "", err
	}
	if !updated {
		return OutcomeSkipped, nil
	}

	metrics.EscalationTiersSentTotal.WithLabelValues("2").Inc()
	if managerEmail != "" {
		s.enqueueNotification(model.NotificationEscalationManager,
			managerEmail, managerName,
			fmt.Sprintf("下属审批超时：授权申请 %s 已等待 %d 天", requestNumber(esc), days),
			fmt.Sprintf("您的下属 %s 名下有一条授权审批已等待 %d 天未处理，请跟进。", approverName(esc), days),
			map[string]interface{}{"escalation_id": esc.ID, "request_id": esc.RequestID, "tier": 2, "days": days})
	}
	return OutcomeTier2, nil
}

// sendTier3 三级升级：通报人事联系人
func (s *EscalationService) sendTier3(esc *model.Escalation, now time.Time, days int, hrEmail, hrName string) (string, error) {
	updated, err := s.markTierSent(esc.ID, "tier3_sent", "tier3_sent_at", now, nil)
	if err != nil {
		return "", err
	}
	if !updated {
		return OutcomeSkipped, nil
	}

	metrics.EscalationTiersSentTotal.WithLabelValues("3").Inc()
	s.enqueueNotification(model.NotificationEscalationHR,
		hrEmail, hrName,
		fmt.Sprintf("严重超时：授权申请 %s 已等待 %d 天", requestNumber(esc), days),
		fmt.Sprintf("审批人 %s 名下的授权申请已等待 %d 天未处理，已达人事通报阈值。", approverName(esc), days),
		map[string]interface{}{"escalation_id": esc.ID, "request_id": esc.RequestID, "tier": 3, "days": days})
	return OutcomeTier3, nil
}

// markTierSent 以"该级别尚未发送"为条件置位发送标记（CAS）
// 返回false表示并发巡检已经置位，本次不再发送
func (s *EscalationService) markTierSent(escalationID, sentColumn, sentAtColumn string, now time.Time, extra map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{
		sentColumn:   true,
		sentAtColumn: now,
	}
	for k, v := range extra {
		updates[k] = v
	}
	result := s.db.Model(&model.Escalation{}).
		Where("id = ? AND status = ? AND "+sentColumn+" = ?",
			escalationID, model.EscalationStatusActive, false).
		Updates(updates)
	if result.Error != nil {
		return false, fmt.Errorf("置位升级发送标记失败: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// recordSweepRun 持久化巡检汇总并写一条审计
func (s *EscalationService) recordSweepRun(startedAt, finishedAt time.Time, result *SweepResult) {
	run := &model.SweepRun{
		ID:         uuid.New().String(),
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Processed:  result.Processed,
		Tier1Sent:  result.Tier1Sent,
		Tier2Sent:  result.Tier2Sent,
		Tier3Sent:  result.Tier3Sent,
		Resolved:   result.Resolved,
		Skipped:    result.Skipped,
		Errors:     result.Errors,
	}
	if data, err := json.Marshal(result.Details); err == nil {
		run.Detail = datatypes.JSON(data)
	}
	if err := s.db.Create(run).Error; err != nil {
		logger.Errorf("Failed to persist sweep run record: %v", err)
		return
	}

	if s.auditor != nil {
		entry := &audit.Entry{
			Action:     audit.ActionSweep,
			EntityType: audit.EntitySweepRun,
			EntityID:   run.ID,
			NewValues: map[string]interface{}{
				"processed":  result.Processed,
				"tier1_sent": result.Tier1Sent,
				"tier2_sent": result.Tier2Sent,
				"tier3_sent": result.Tier3Sent,
				"resolved":   result.Resolved,
				"skipped":    result.Skipped,
				"errors":     result.Errors,
			},
		}
		if err := s.auditor.Record(entry); err != nil {
			logger.Errorf("Failed to record sweep audit entry: %v", err)
		}
	}
}

// List 升级记录列表（人事/管理员视图）
func (s *EscalationService) List(status, requestID string) ([]model.Escalation, error) {
	return s.escalationRepo.List(status, requestID)
}

// CountActive 当前活跃升级记录数
func (s *EscalationService) CountActive() (int64, error) {
	return s.escalationRepo.CountActive()
}

func (s *EscalationService) enqueueNotification(notifType model.NotificationType, email, name, subject, body string, metadata map[string]interface{}) {
	if s.notifier == nil || email == "" {
		return
	}
	if err := s.notifier.Enqueue(notifType, email, name, subject, body, metadata); err != nil {
		logger.Errorf("Failed to enqueue %s notification: %v", notifType, err)
	}
}

func requestNumber(esc *model.Escalation) string {
	if esc.Request != nil {
		return esc.Request.RequestNumber
	}
	return esc.RequestID
}

func applicantName(esc *model.Escalation) string {
	if esc.Request != nil {
		return esc.Request.ApplicantName
	}
	return ""
}

func approverName(esc *model.Escalation) string {
	if esc.Step != nil {
		return esc.Step.ApproverName
	}
	return esc.ApproverID
}
