package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/model"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/repository"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/service/privilege"
)

// ApprovalHandler 审批处理器
type ApprovalHandler struct {
	approvalService *privilege.ApprovalService
	stepRepo        *repository.ApprovalStepRepository
	userRepo        *repository.UserRepository
}

// NewApprovalHandler 创建审批处理器
func NewApprovalHandler(
	approvalService *privilege.ApprovalService,
	stepRepo *repository.ApprovalStepRepository,
	userRepo *repository.UserRepository,
) *ApprovalHandler {
	return &ApprovalHandler{
		approvalService: approvalService,
		stepRepo:        stepRepo,
		userRepo:        userRepo,
	}
}

// Process 处理审批动作（approve / reject / request_modifications）
func (h *ApprovalHandler) Process(c *gin.Context) {
	user, ok := currentUser(c, h.userRepo)
	if !ok {
		return
	}

	var input model.ProcessApprovalInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, model.Error(400, "请求参数错误: "+err.Error()))
		return
	}

	result, err := h.approvalService.Process(c.Param("id"), user, &input)
	if err != nil {
		respondWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.Success(result))
}

// ListSteps 申请的审批链（按级别排序）
func (h *ApprovalHandler) ListSteps(c *gin.Context) {
	if _, ok := currentUser(c, h.userRepo); !ok {
		return
	}

	steps, err := h.stepRepo.ListByRequest(c.Param("id"))
	if err != nil {
		respondWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.Success(gin.H{
		"steps": steps,
		"total": len(steps),
	}))
}
