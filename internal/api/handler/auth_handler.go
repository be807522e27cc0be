package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/model"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/repository"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/service/auth"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	authService *auth.AuthService
	userRepo    *repository.UserRepository
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(authService *auth.AuthService, userRepo *repository.UserRepository) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		userRepo:    userRepo,
	}
}

// Login 用户登录
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.Error(400, "请求参数错误: "+err.Error()))
		return
	}

	resp, err := h.authService.Login(&req, c.ClientIP())
	if err != nil {
		c.JSON(http.StatusUnauthorized, model.Error(401, err.Error()))
		return
	}

	c.JSON(http.StatusOK, model.Success(resp))
}

// Register 用户注册（管理员创建用户）
func (h *AuthHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.Error(400, "请求参数错误: "+err.Error()))
		return
	}

	user, err := h.authService.Register(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, model.Error(400, err.Error()))
		return
	}

	c.JSON(http.StatusOK, model.Success(user))
}

// GetProfile 获取当前用户信息
func (h *AuthHandler) GetProfile(c *gin.Context) {
	user, ok := currentUser(c, h.userRepo)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, model.Success(user))
}
