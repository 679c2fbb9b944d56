package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"reefkh-http-service/config"
	"reefkh-http-service/controllers"
	_ "reefkh-http-service/docs"
	"reefkh-http-service/middleware"
	"reefkh-http-service/services/container"
)

// SetupRouter 初始化并返回配置好的路由
func SetupRouter(db *gorm.DB, cfg *config.Config) (*gin.Engine, *container.ServiceContainer) {
	// 初始化 Gin
	r := gin.Default()

	// 添加 CORS 中间件
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, Accept, Origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PATCH")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})
	// 创建服务容器
	serviceContainer := container.NewServiceContainer(db, cfg)
	// 初始化中间件
	middleware.InitAuthMiddleware(cfg)
	// 添加 Swagger 文档路由
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 注册路由
	registerRoutes(r, serviceContainer)
	return r, serviceContainer
}

// registerRoutes 配置所有API路由
func registerRoutes(
	r *gin.Engine,
	container *container.ServiceContainer,
) {
	// 无版本前缀的探活与状态端点，固件和监控直接打这里
	health := controllers.NewHealthCheckController()
	r.GET("/api/ping", health.Ping)
	r.GET("/api/status", controllers.HandleStatusFunc(container))

	// API 路由根路径
	api := r.Group("/api/v1")
	// 注册公共路由
	registerPublicRoutes(api, container)
	// 注册设备侧路由
	registerDeviceRoutes(api, container)
	// 注册显示屏路由
	registerDisplayRoutes(api, container)
	// 注册用户侧路由
	registerUserRoutes(api, container)
}

// registerPublicRoutes 注册公共路由
func registerPublicRoutes(
	api *gin.RouterGroup,
	container *container.ServiceContainer,
) {
	// 健康检查
	health := controllers.NewHealthCheckController()
	api.GET("/ping", health.Ping)

	// 用户认证路由
	api.POST("/auth/register", controllers.HandleAuthFunc(container, "register"))
	api.POST("/auth/login", controllers.HandleAuthFunc(container, "login"))
	api.POST("/auth/verify-code", controllers.HandleAuthFunc(container, "verifyCode"))
	api.POST("/auth/resend-code", controllers.HandleAuthFunc(container, "resendCode"))
	api.POST("/auth/forgot-password", controllers.HandleAuthFunc(container, "forgotPassword"))
	api.POST("/auth/reset-password", controllers.HandleAuthFunc(container, "resetPassword"))

	// 设备激活与令牌刷新
	api.POST("/device/register", controllers.HandleDeviceFunc(container, "register"))
	api.POST("/device/refresh-token", controllers.HandleDeviceFunc(container, "refreshToken"))

	// 显示屏绑定与令牌刷新
	api.POST("/display/register", controllers.HandleDisplayFunc(container, "register"))
	api.POST("/display/refresh-token", controllers.HandleDisplayFunc(container, "refreshToken"))
}

// registerDeviceRoutes 注册设备令牌保护的路由
func registerDeviceRoutes(
	api *gin.RouterGroup,
	container *container.ServiceContainer,
) {
	device := api.Group("/device")
	device.Use(middleware.AuthenticateDevice())

	device.POST("/sync", controllers.HandleDeviceFunc(container, "sync"))
	device.POST("/health", controllers.HandleDeviceFunc(container, "health"))
	device.GET("/commands/poll", controllers.HandleDeviceFunc(container, "pollCommands"))
	device.POST("/commands/complete", controllers.HandleDeviceFunc(container, "completeCommand"))
	device.GET("/kh-reference", controllers.HandleDeviceFunc(container, "khReference"))
}

// registerDisplayRoutes 注册显示屏令牌保护的路由
func registerDisplayRoutes(
	api *gin.RouterGroup,
	container *container.ServiceContainer,
) {
	display := api.Group("/display")
	display.Use(middleware.AuthenticateDisplay())

	display.GET("/ping", controllers.HandleDisplayFunc(container, "ping"))
}

// registerUserRoutes 注册用户令牌保护的路由
func registerUserRoutes(
	api *gin.RouterGroup,
	container *container.ServiceContainer,
) {
	auth := api.Group("/")
	auth.Use(middleware.AuthenticateUser())

	// 用户信息
	auth.GET("/users/me", controllers.HandleUserFunc(container, "me"))
	auth.PUT("/users/me", controllers.HandleUserFunc(container, "updateSettings"))

	// 设备列表与配置
	auth.GET("/devices", controllers.HandleUserFunc(container, "listDevices"))
	auth.PUT("/devices/:deviceId/kh-reference", controllers.HandleUserFunc(container, "setKhReference"))
	auth.PUT("/devices/:deviceId/kh-target", controllers.HandleUserFunc(container, "setKhTarget"))

	// 测量历史，短缓存挡住dashboard的重复刷新
	auth.GET("/devices/:deviceId/measurements",
		middleware.Cache(middleware.CacheConfig{Expiration: 30 * time.Second}),
		controllers.HandleUserFunc(container, "measurements"))

	// 命令下发与管理
	auth.POST("/devices/:deviceId/commands", controllers.HandleCommandFunc(container, "enqueue"))
	auth.GET("/devices/:deviceId/commands", controllers.HandleCommandFunc(container, "history"))
	auth.DELETE("/devices/:deviceId/commands/:id", controllers.HandleCommandFunc(container, "cancel"))
	auth.POST("/devices/:deviceId/command/pump", controllers.HandleCommandFunc(container, "pump"))
	auth.POST("/devices/:deviceId/command/kh-correction", controllers.HandleCommandFunc(container, "khCorrection"))
}
