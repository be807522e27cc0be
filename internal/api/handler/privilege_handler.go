package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/model"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/repository"
)

// PrivilegeHandler 授权项目录处理器
type PrivilegeHandler struct {
	privRepo *repository.PrivilegeRepository
	userRepo *repository.UserRepository
}

// NewPrivilegeHandler 创建授权项目录处理器
func NewPrivilegeHandler(privRepo *repository.PrivilegeRepository, userRepo *repository.UserRepository) *PrivilegeHandler {
	return &PrivilegeHandler{
		privRepo: privRepo,
		userRepo: userRepo,
	}
}

// List 授权项目录（按类别/执业类别过滤）
func (h *PrivilegeHandler) List(c *gin.Context) {
	if _, ok := currentUser(c, h.userRepo); !ok {
		return
	}

	privileges, err := h.privRepo.List(c.Query("category"), c.Query("privilege_type"))
	if err != nil {
		model.HandleError(c, http.StatusInternalServerError, err, "查询授权项目录失败")
		return
	}

	c.JSON(http.StatusOK, model.Success(gin.H{
		"privileges": privileges,
		"total":      len(privileges),
	}))
}
