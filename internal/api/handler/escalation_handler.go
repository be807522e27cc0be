package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/model"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/repository"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/service/privilege"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/pkg/config"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/pkg/logger"
	"gorm.io/gorm"
)

// EscalationHandler 升级巡检处理器
type EscalationHandler struct {
	db                *gorm.DB
	escalationService *privilege.EscalationService
	settingRepo       *repository.SettingRepository
	userRepo          *repository.UserRepository
}

// NewEscalationHandler 创建升级巡检处理器
func NewEscalationHandler(
	db *gorm.DB,
	escalationService *privilege.EscalationService,
	settingRepo *repository.SettingRepository,
	userRepo *repository.UserRepository,
) *EscalationHandler {
	return &EscalationHandler{
		db:                db,
		escalationService: escalationService,
		settingRepo:       settingRepo,
		userRepo:          userRepo,
	}
}

// Sweep 执行一次升级巡检
// 由外部cron服务触发，不走用户认证，使用共享密钥鉴权；
// GET和POST行为完全一致，方便各种cron客户端
func (h *EscalationHandler) Sweep(c *gin.Context) {
	if !h.authorizeSweep(c) {
		return
	}

	result, err := h.escalationService.RunSweep()
	if err != nil {
		model.HandleError(c, http.StatusInternalServerError, err, "升级巡检失败")
		return
	}

	c.JSON(http.StatusOK, model.Success(result))
}

// authorizeSweep 校验cron共享密钥
// 依次接受 X-Cron-Secret / X-Scheduler-Secret / Authorization: Bearer 三种携带方式
func (h *EscalationHandler) authorizeSweep(c *gin.Context) bool {
	expected := config.GlobalConfig.Security.CronSecret
	if expected == "" {
		// 配置文件未设置时回退到设置表
		expected, _ = h.settingRepo.Get(model.SettingEscalationCronSecret)
	}
	if expected == "" {
		logger.Warnf("Sweep endpoint called but no cron secret configured")
		c.JSON(http.StatusServiceUnavailable, model.Error(503, "未配置巡检密钥，接口不可用"))
		return false
	}

	provided := c.GetHeader("X-Cron-Secret")
	if provided == "" {
		provided = c.GetHeader("X-Scheduler-Secret")
	}
	if provided == "" {
		provided = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	}

	if subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
		logger.Warnf("Sweep endpoint called with invalid secret from %s", c.ClientIP())
		c.JSON(http.StatusUnauthorized, model.Error(401, "巡检密钥无效"))
		return false
	}
	return true
}

// List 升级记录列表（人事/管理员视图）
func (h *EscalationHandler) List(c *gin.Context) {
	if _, ok := currentUser(c, h.userRepo); !ok {
		return
	}

	escalations, err := h.escalationService.List(c.Query("status"), c.Query("request_id"))
	if err != nil {
		respondWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.Success(gin.H{
		"escalations": escalations,
		"total":       len(escalations),
	}))
}

// ListSweepRuns 历次巡检的汇总记录
func (h *EscalationHandler) ListSweepRuns(c *gin.Context) {
	if _, ok := currentUser(c, h.userRepo); !ok {
		return
	}

	var runs []model.SweepRun
	if err := h.db.Order("started_at DESC").Limit(50).Find(&runs).Error; err != nil {
		model.HandleError(c, http.StatusInternalServerError, err, "查询巡检记录失败")
		return
	}

	c.JSON(http.StatusOK, model.Success(gin.H{
		"runs":  runs,
		"total": len(runs),
	}))
}
