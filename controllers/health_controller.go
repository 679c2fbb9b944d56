package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"reefkh-http-service/config"
	"reefkh-http-service/services"
	"reefkh-http-service/services/container"
)

const serviceVersion = "1.0"

// 进程启动时间，status端点用它报运行时长
var serviceStartTime = time.Now()

// HealthCheckController 健康检查控制器
type HealthCheckController struct{}

// NewHealthCheckController 创建健康检查控制器实例
func NewHealthCheckController() *HealthCheckController {
	return &HealthCheckController{}
}

// Ping 健康检查端点
func (h *HealthCheckController) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
		"status":  "healthy",
		"service": "reefkh-http-service",
	})
}

// HandleStatusFunc 返回服务状态端点的处理函数，报告版本、运行时长
// 与各外部依赖的连接状态
func HandleStatusFunc(container *container.ServiceContainer) gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg := container.GetService("config").(*config.Config)
		mqttService := container.GetService("mqtt").(services.InterfaceMQTTService)
		redisService := container.GetService("redis").(*services.RedisService)

		c.JSON(http.StatusOK, gin.H{
			"service":   "reefkh-http-service",
			"version":   serviceVersion,
			"status":    "ok",
			"env":       cfg.EnvType,
			"uptime":    int64(time.Since(serviceStartTime).Seconds()),
			"mqtt":      mqttService.Connected(),
			"redis":     redisService != nil,
			"timestamp": time.Now().UnixMilli(),
		})
	}
}
