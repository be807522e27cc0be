package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/model"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/pkg/casbin"
)

// PermissionMiddleware Casbin权限中间件
// 按"角色 → 路径 → 方法"检查策略；管理员角色默认放行。
// 只挂在受限制的路由组上（升级记录、系统设置等），
// 普通业务接口的授权语义在服务层按审批人/申请人校验
func PermissionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get("role")
		if !exists {
			c.JSON(http.StatusUnauthorized, model.Error(401, "未找到用户信息"))
			c.Abort()
			return
		}

		roleStr, ok := role.(string)
		if !ok {
			c.JSON(http.StatusUnauthorized, model.Error(401, "用户角色格式错误"))
			c.Abort()
			return
		}

		// 管理员默认拥有所有权限
		if roleStr == string(model.RoleAdmin) {
			c.Next()
			return
		}

		path := c.Request.URL.Path
		method := c.Request.Method

		hasPermission, err := casbin.Enforce(roleStr, path, method)
		if err == nil && hasPermission {
			c.Next()
			return
		}

		c.JSON(http.StatusForbidden, model.Error(403, "权限不足"))
		c.Abort()
	}
}
