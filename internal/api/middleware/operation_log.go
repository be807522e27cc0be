package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/model"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/pkg/database"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/pkg/logger"
)

// OperationLogMiddleware 操作日志中间件
// 只记录会改变状态的请求（非GET），访问审计与业务审计（audit_logs）分开
func OperationLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		c.Next()

		if c.Request.Method == "GET" {
			return
		}

		username := ""
		if uname, exists := c.Get("username"); exists {
			if s, ok := uname.(string); ok {
				username = s
			}
		}

		operationLog := model.OperationLog{
			Username:  username,
			IP:        c.ClientIP(),
			Method:    c.Request.Method,
			Path:      c.FullPath(),
			Status:    c.Writer.Status(),
			StartTime: startTime,
			TimeCost:  time.Since(startTime).Milliseconds(),
			UserAgent: c.Request.UserAgent(),
		}

		// 异步保存，不阻塞响应
		go func() {
			if err := database.DB.Create(&operationLog).Error; err != nil {
				logger.Warnf("Failed to save operation log: %v", err)
			}
		}()
	}
}
