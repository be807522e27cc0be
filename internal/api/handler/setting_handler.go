package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/model"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/repository"
)

// SettingHandler 系统设置处理器（升级阈值、人事联系人等）
type SettingHandler struct {
	settingRepo *repository.SettingRepository
	userRepo    *repository.UserRepository
}

// NewSettingHandler 创建系统设置处理器
func NewSettingHandler(settingRepo *repository.SettingRepository, userRepo *repository.UserRepository) *SettingHandler {
	return &SettingHandler{
		settingRepo: settingRepo,
		userRepo:    userRepo,
	}
}

// List 按分类列出设置
func (h *SettingHandler) List(c *gin.Context) {
	if _, ok := currentUser(c, h.userRepo); !ok {
		return
	}

	category := c.DefaultQuery("category", model.CategoryEscalation)
	settings, err := h.settingRepo.ListByCategory(category)
	if err != nil {
		model.HandleError(c, http.StatusInternalServerError, err, "查询设置失败")
		return
	}

	// 密钥类设置不回显值
	responses := make([]model.SettingResponse, 0, len(settings))
	for _, s := range settings {
		value := s.Value
		if s.Key == model.SettingEscalationCronSecret {
			value = "******"
		}
		responses = append(responses, model.SettingResponse{
			Key:      s.Key,
			Value:    value,
			Category: s.Category,
			Type:     s.Type,
		})
	}

	c.JSON(http.StatusOK, model.Success(gin.H{
		"settings": responses,
		"total":    len(responses),
	}))
}

// UpdateSettingInput 更新设置请求体
type UpdateSettingInput struct {
	Value    string `json:"value" binding:"required"`
	Category string `json:"category"`
	Type     string `json:"type"`
}

// Update 更新单个设置
func (h *SettingHandler) Update(c *gin.Context) {
	if _, ok := currentUser(c, h.userRepo); !ok {
		return
	}

	var input UpdateSettingInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, model.Error(400, "请求参数错误: "+err.Error()))
		return
	}

	category := input.Category
	if category == "" {
		category = model.CategoryEscalation
	}
	valueType := input.Type
	if valueType == "" {
		valueType = "string"
	}

	if err := h.settingRepo.Set(c.Param("key"), input.Value, category, valueType); err != nil {
		model.HandleError(c, http.StatusInternalServerError, err, "更新设置失败")
		return
	}

	c.JSON(http.StatusOK, model.Success(nil))
}
