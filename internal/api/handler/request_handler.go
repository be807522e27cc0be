package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/model"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/repository"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/service/privilege"
)

// RequestHandler 授权申请处理器
type RequestHandler struct {
	requestService *privilege.RequestService
	userRepo       *repository.UserRepository
}

// NewRequestHandler 创建授权申请处理器
func NewRequestHandler(requestService *privilege.RequestService, userRepo *repository.UserRepository) *RequestHandler {
	return &RequestHandler{
		requestService: requestService,
		userRepo:       userRepo,
	}
}

// Create 创建草稿申请
func (h *RequestHandler) Create(c *gin.Context) {
	user, ok := currentUser(c, h.userRepo)
	if !ok {
		return
	}

	var input model.CreatePrivilegeRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, model.Error(400, "请求参数错误: "+err.Error()))
		return
	}

	request, err := h.requestService.Create(user, &input)
	if err != nil {
		respondWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.Success(request))
}

// Update 编辑草稿/被退回的申请
func (h *RequestHandler) Update(c *gin.Context) {
	user, ok := currentUser(c, h.userRepo)
	if !ok {
		return
	}

	var input model.UpdatePrivilegeRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, model.Error(400, "请求参数错误: "+err.Error()))
		return
	}

	request, err := h.requestService.Update(c.Param("id"), user, &input)
	if err != nil {
		respondWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.Success(request))
}

// Submit 提交申请，触发审批链构建
func (h *RequestHandler) Submit(c *gin.Context) {
	user, ok := currentUser(c, h.userRepo)
	if !ok {
		return
	}

	request, err := h.requestService.Submit(c.Param("id"), user)
	if err != nil {
		respondWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.Success(request))
}

// Cancel 取消申请
func (h *RequestHandler) Cancel(c *gin.Context) {
	user, ok := currentUser(c, h.userRepo)
	if !ok {
		return
	}

	if err := h.requestService.Cancel(c.Param("id"), user); err != nil {
		respondWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.Success(nil))
}

// Get 申请详情（含授权项和审批链）
func (h *RequestHandler) Get(c *gin.Context) {
	user, ok := currentUser(c, h.userRepo)
	if !ok {
		return
	}

	request, err := h.requestService.Get(c.Param("id"), user)
	if err != nil {
		respondWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.Success(request))
}

// ListMine 我的申请列表
func (h *RequestHandler) ListMine(c *gin.Context) {
	user, ok := currentUser(c, h.userRepo)
	if !ok {
		return
	}

	requests, err := h.requestService.ListMine(user.ID, c.Query("status"))
	if err != nil {
		respondWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.Success(gin.H{
		"requests": requests,
		"total":    len(requests),
	}))
}

// ListPendingApprovals 待我审批的步骤列表
func (h *RequestHandler) ListPendingApprovals(c *gin.Context) {
	user, ok := currentUser(c, h.userRepo)
	if !ok {
		return
	}

	steps, err := h.requestService.ListPendingApprovals(user.ID)
	if err != nil {
		respondWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.Success(gin.H{
		"steps": steps,
		"total": len(steps),
	}))
}
