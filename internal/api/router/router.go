package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/api/handler"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/api/middleware"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/service/auth"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Setup 组装路由
func Setup(
	authHandler *handler.AuthHandler,
	requestHandler *handler.RequestHandler,
	approvalHandler *handler.ApprovalHandler,
	escalationHandler *handler.EscalationHandler,
	privilegeHandler *handler.PrivilegeHandler,
	settingHandler *handler.SettingHandler,
	authService *auth.AuthService,
	mode string,
) *gin.Engine {
	gin.SetMode(mode)
	r := gin.New()

	// 使用自定义的 recovery 中间件（打印详细错误信息）
	r.Use(middleware.RecoveryMiddleware())
	r.Use(gin.Logger())
	r.Use(middleware.CORS())
	r.Use(middleware.MetricsMiddleware())

	api := r.Group("/api")

	// 公开接口
	api.POST("/auth/login", authHandler.Login)

	// 巡检触发接口：外部cron用共享密钥鉴权，不走用户认证；
	// GET和POST行为完全一致
	api.GET("/escalations/sweep", escalationHandler.Sweep)
	api.POST("/escalations/sweep", escalationHandler.Sweep)

	// 需要认证的接口
	authorized := api.Group("")
	authorized.Use(middleware.AuthMiddleware(authService))
	authorized.Use(middleware.OperationLogMiddleware())
	{
		authorized.GET("/auth/profile", authHandler.GetProfile)

		// 授权申请
		requests := authorized.Group("/requests")
		{
			requests.POST("", requestHandler.Create)
			requests.GET("", requestHandler.ListMine)
			requests.GET("/:id", requestHandler.Get)
			requests.PUT("/:id", requestHandler.Update)
			requests.POST("/:id/submit", requestHandler.Submit)
			// 退回修改后的重新提交走同一处理逻辑
			requests.POST("/:id/resubmit", requestHandler.Submit)
			requests.POST("/:id/cancel", requestHandler.Cancel)
			requests.GET("/:id/steps", approvalHandler.ListSteps)
		}

		// 审批
		approvals := authorized.Group("/approvals")
		{
			approvals.GET("/pending", requestHandler.ListPendingApprovals)
			approvals.POST("/:id/process", approvalHandler.Process)
		}

		// 授权项目录
		authorized.GET("/privileges", privilegeHandler.List)

		// 升级记录（人事/管理员，Casbin策略控制）
		escalations := authorized.Group("/escalations")
		escalations.Use(middleware.PermissionMiddleware())
		{
			escalations.GET("", escalationHandler.List)
			escalations.GET("/sweep-runs", escalationHandler.ListSweepRuns)
		}

		// 系统管理（仅管理员）
		admin := authorized.Group("")
		admin.Use(middleware.AdminMiddleware())
		{
			admin.POST("/auth/register", authHandler.Register)
			admin.GET("/settings", settingHandler.List)
			admin.PUT("/settings/:key", settingHandler.Update)
		}
	}

	// Prometheus Metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check (支持 GET 和 HEAD 方法)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
			"type":   "api-server",
		})
	})
	r.HEAD("/health", func(c *gin.Context) {
		c.Status(200)
	})

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Not Found",
			"message": "The requested resource was not found.",
		})
	})

	return r
}
