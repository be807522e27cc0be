package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/model"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/repository"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/service/privilege"
	"gorm.io/gorm"
)

// currentUser 从上下文取出已认证用户并加载完整记录
func currentUser(c *gin.Context, userRepo *repository.UserRepository) (*model.User, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, model.Error(401, "未找到用户信息"))
		return nil, false
	}
	userIDStr, ok := userID.(string)
	if !ok {
		c.JSON(http.StatusUnauthorized, model.Error(401, "用户ID格式错误"))
		return nil, false
	}
	user, err := userRepo.FindUserByID(userIDStr)
	if err != nil {
		c.JSON(http.StatusUnauthorized, model.Error(401, "用户不存在或已删除"))
		return nil, false
	}
	return user, true
}

// respondWorkflowError 把工作流的前置条件错误映射为对应的HTTP状态码
func respondWorkflowError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, privilege.ErrForbidden):
		c.JSON(http.StatusForbidden, model.Error(403, err.Error()))
	case errors.Is(err, privilege.ErrAlreadyProcessed),
		errors.Is(err, privilege.ErrNotCurrentStep):
		c.JSON(http.StatusConflict, model.Error(409, err.Error()))
	case errors.Is(err, privilege.ErrActiveRequestExists),
		errors.Is(err, privilege.ErrInvalidStatus):
		c.JSON(http.StatusConflict, model.Error(409, err.Error()))
	case errors.Is(err, privilege.ErrCommentsRequired),
		errors.Is(err, privilege.ErrJustificationRequired),
		errors.Is(err, privilege.ErrInvalidAction):
		c.JSON(http.StatusBadRequest, model.Error(400, err.Error()))
	case errors.Is(err, privilege.ErrNoApproversConfigured):
		c.JSON(http.StatusUnprocessableEntity, model.Error(422, err.Error()))
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, model.Error(404, "记录不存在"))
	default:
		model.HandleError(c, http.StatusInternalServerError, err)
	}
}
