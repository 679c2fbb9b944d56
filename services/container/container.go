package container

import (
	"context"
	"log"
	"sync"
	"time"

	"gorm.io/gorm"

	"reefkh-http-service/config"
	"reefkh-http-service/services"
)

// ServiceContainer 管理所有服务的依赖注入
type ServiceContainer struct {
	db     *gorm.DB
	config *config.Config

	// 基础服务
	jwtService services.InterfaceJWTService

	// 数据存储服务
	redisService *services.RedisService

	// MQTT推送服务
	mqttService services.InterfaceMQTTService

	// 通知服务
	notifierService services.InterfaceNotifierService

	// 业务服务
	deviceService    services.InterfaceDeviceService
	userService      services.InterfaceUserService
	commandService   services.InterfaceCommandService
	telemetryService services.InterfaceTelemetryService
	sentinelService  services.InterfaceSentinelService

	mu sync.RWMutex
}

// NewServiceContainer 创建新的服务容器
func NewServiceContainer(db *gorm.DB, cfg *config.Config) *ServiceContainer {
	if db == nil {
		panic("数据库连接为空")
	}

	if cfg == nil {
		panic("配置为空")
	}

	container := &ServiceContainer{
		db:     db,
		config: cfg,
	}
	container.initializeServices()
	return container
}

// initializeServices 初始化所有服务
func (c *ServiceContainer) initializeServices() {
	c.mu.Lock()
	defer c.mu.Unlock()

	// 初始化基础服务
	c.jwtService = services.NewJWTService(c.config)

	// 初始化Redis服务，连接不上时降级为直接走库
	redisService := services.NewRedisService(c.config)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisService.Client.Ping(ctx).Err(); err != nil {
		log.Printf("Redis连接测试失败: %v，将不使用Redis缓存", err)
		redisService = nil
	}
	c.redisService = redisService

	// 初始化MQTT推送服务，未配置broker时保持离线
	c.mqttService = services.NewMQTTService(c.config)
	if c.config.MQTTBroker != "" {
		if err := c.mqttService.Connect(); err != nil {
			log.Printf("MQTT服务连接失败: %v，命令提醒推送不可用", err)
		}
	}

	// 初始化通知服务
	c.notifierService = services.NewNotifierService(c.config)

	// 初始化业务服务
	c.deviceService = services.NewDeviceService(c.db, c.config, c.redisService)
	c.userService = services.NewUserService(c.db, c.config, c.jwtService, c.notifierService)
	c.commandService = services.NewCommandService(c.db, c.config, c.deviceService, c.mqttService)
	c.telemetryService = services.NewTelemetryService(c.db, c.config, c.deviceService, c.redisService)
	c.sentinelService = services.NewSentinelService(c.db, c.config, c.notifierService)
}

// StartBackgroundTasks 启动后台任务（离线扫描），并向系统主题广播上线消息
func (c *ServiceContainer) StartBackgroundTasks() {
	c.mu.RLock()
	defer c.mu.RUnlock()
	c.sentinelService.Start()

	if c.mqttService.Connected() {
		if err := c.mqttService.PublishSystemMessage("info", "reefkh backend online"); err != nil {
			log.Printf("系统上线消息发布失败: %v", err)
		}
	}
}

// StopBackgroundTasks 停止后台任务
func (c *ServiceContainer) StopBackgroundTasks() {
	c.mu.RLock()
	sentinel := c.sentinelService
	mqtt := c.mqttService
	c.mu.RUnlock()

	sentinel.Stop()

	if mqtt.Connected() {
		if err := mqtt.PublishSystemMessage("info", "reefkh backend shutting down"); err != nil {
			log.Printf("系统下线消息发布失败: %v", err)
		}
	}
	mqtt.Disconnect()
}

// GetService 获取指定名称的服务
func (c *ServiceContainer) GetService(name string) interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch name {
	case "config":
		return c.config
	case "db":
		return c.db
	case "jwt":
		return c.jwtService
	case "redis":
		return c.redisService
	case "mqtt":
		return c.mqttService
	case "notifier":
		return c.notifierService
	case "device":
		return c.deviceService
	case "user":
		return c.userService
	case "command":
		return c.commandService
	case "telemetry":
		return c.telemetryService
	case "sentinel":
		return c.sentinelService
	default:
		return nil
	}
}

// GetDB 获取数据库连接
func (c *ServiceContainer) GetDB() *gorm.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}
