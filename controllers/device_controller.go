package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"reefkh-http-service/config"
	"reefkh-http-service/models"
	"reefkh-http-service/services"
	"reefkh-http-service/services/container"
)

// InterfaceDeviceController 定义设备控制器接口
type InterfaceDeviceController interface {
	Register()
	RefreshToken()
	Sync()
	Health()
	PollCommands()
	CompleteCommand()
	KhReference()
}

// DeviceController 处理设备侧请求（注册、遥测、命令轮询）
type DeviceController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewDeviceController 创建一个新的设备控制器
func NewDeviceController(ctx *gin.Context, container *container.ServiceContainer) *DeviceController {
	return &DeviceController{
		Ctx:       ctx,
		Container: container,
	}
}

// DeviceRegisterRequest 设备激活请求。设备端持有用户凭据，
// 首次上电时用它换取自己的令牌对。
type DeviceRegisterRequest struct {
	Email    string `json:"email" binding:"required,email" example:"reefer@example.com"`
	Password string `json:"password" binding:"required" example:"secret-password"`
	DeviceID string `json:"deviceId" binding:"required" example:"reefkh-a1b2c3d4e5"`
	Name     string `json:"name" example:"Main Tank KH Monitor"`
	LocalIP  string `json:"localIp" example:"192.168.1.42"`
}

// RefreshTokenRequest 刷新令牌请求
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// SyncRequest 遥测批量上报请求
type SyncRequest struct {
	Measurements []services.MeasurementEntry `json:"measurements"`
	LocalIP      string                      `json:"localIp" example:"192.168.1.42"`
}

// HealthReportRequest 设备健康上报请求
type HealthReportRequest struct {
	CpuUsage      float64  `json:"cpu_usage" example:"12.5"`
	MemUsage      float64  `json:"memory_usage" example:"48.1"`
	StorageUsage  *float64 `json:"storage_usage,omitempty" example:"61.0"`
	WifiRssi      *int     `json:"wifi_rssi,omitempty" example:"-58"`
	UptimeSeconds int64    `json:"uptime" example:"86400"`
}

// CompleteCommandRequest 命令结果回报请求
type CompleteCommandRequest struct {
	CommandID uint   `json:"commandId" binding:"required" example:"42"`
	Success   *bool  `json:"success" binding:"required" example:"true"`
	Result    string `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
}

// HandleDeviceFunc 返回一个处理设备请求的Gin处理函数
func HandleDeviceFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewDeviceController(ctx, container)

		switch method {
		case "register":
			controller.Register()
		case "refreshToken":
			controller.RefreshToken()
		case "sync":
			controller.Sync()
		case "health":
			controller.Health()
		case "pollCommands":
			controller.PollCommands()
		case "completeCommand":
			controller.CompleteCommand()
		case "khReference":
			controller.KhReference()
		default:
			ctx.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "无效的方法",
				"data":    nil,
			})
		}
	}
}

// deviceID 从认证中间件注入的上下文中取设备ID
func (c *DeviceController) deviceID() string {
	return c.Ctx.GetString("deviceID")
}

// Register 设备激活
// @Summary      Device Registration
// @Description  Activate a device with user credentials and issue a device token pair
// @Tags         Device
// @Accept       json
// @Produce      json
// @Param        request body DeviceRegisterRequest true "Activation parameters"
// @Success      200  {object}  map[string]interface{}  "Token pair"
// @Failure      400  {object}  ErrorResponse  "Invalid device id"
// @Failure      401  {object}  ErrorResponse  "Invalid credentials"
// @Failure      403  {object}  ErrorResponse  "Not verified or owned by another user"
// @Router       /device/register [post]
func (c *DeviceController) Register() {
	var req DeviceRegisterRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "Invalid request parameters",
			"data":    nil,
		})
		return
	}

	deviceService := c.Container.GetService("device").(services.InterfaceDeviceService)
	jwtService := c.Container.GetService("jwt").(services.InterfaceJWTService)
	cfg := c.Container.GetService("config").(*config.Config)

	device, user, err := deviceService.RegisterDevice(req.Email, req.Password, req.DeviceID, req.Name, req.LocalIP)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrDeviceIDInvalid):
			c.Ctx.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "Invalid device id",
				"data":    nil,
			})
		case errors.Is(err, services.ErrCredentialsIncorrect):
			c.Ctx.JSON(http.StatusUnauthorized, gin.H{
				"code":    401,
				"message": "Invalid email or password",
				"data":    nil,
			})
		case errors.Is(err, services.ErrUserNotVerified):
			c.Ctx.JSON(http.StatusForbidden, gin.H{
				"code":    403,
				"message": "Email not verified",
				"data":    nil,
			})
		case errors.Is(err, services.ErrDeviceOwnedByOther):
			c.Ctx.JSON(http.StatusForbidden, gin.H{
				"code":    403,
				"message": "Device is registered to another account",
				"data":    nil,
			})
		default:
			c.Ctx.JSON(http.StatusInternalServerError, gin.H{
				"code":    500,
				"message": "Registration failed: " + err.Error(),
				"data":    nil,
			})
		}
		return
	}

	accessToken, refreshToken, err := jwtService.GenerateDeviceTokenPair(user.ID, device.DeviceID)
	if err != nil {
		c.Ctx.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "Failed to generate tokens",
			"data":    nil,
		})
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "Device registered",
		"data": gin.H{
			"token":        accessToken,
			"refreshToken": refreshToken,
			"expiresIn":    3600,
			"syncInterval": cfg.SyncIntervalSeconds,
			"deviceId":     device.DeviceID,
		},
	})
}

// RefreshToken 刷新设备访问令牌
// @Summary      Refresh Device Token
// @Tags         Device
// @Accept       json
// @Produce      json
// @Param        request body RefreshTokenRequest true "Refresh token"
// @Success      200  {object}  map[string]interface{}  "New access token"
// @Failure      401  {object}  ErrorResponse  "Invalid refresh token"
// @Router       /device/refresh-token [post]
func (c *DeviceController) RefreshToken() {
	var req RefreshTokenRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "Invalid request parameters",
			"data":    nil,
		})
		return
	}

	jwtService := c.Container.GetService("jwt").(services.InterfaceJWTService)

	claims, err := jwtService.ValidateRefreshToken(req.RefreshToken)
	if err != nil || claims.Kind != services.TokenKindDevice || claims.DeviceID == nil {
		c.Ctx.JSON(http.StatusUnauthorized, gin.H{
			"code":    401,
			"message": "Invalid refresh token",
			"data":    nil,
		})
		return
	}

	accessToken, refreshToken, err := jwtService.GenerateDeviceTokenPair(claims.UserID, *claims.DeviceID)
	if err != nil {
		c.Ctx.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "Failed to generate tokens",
			"data":    nil,
		})
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "Token refreshed",
		"data": gin.H{
			"token":        accessToken,
			"refreshToken": refreshToken,
			"expiresIn":    3600,
		},
	})
}

// Sync 设备批量上报测量
// @Summary      Sync Measurements
// @Description  Batch upload of KH measurements; bad rows are counted, not rejected
// @Tags         Device
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body SyncRequest true "Measurement batch"
// @Success      200  {object}  map[string]interface{}  "synced/failed counts"
// @Failure      400  {object}  ErrorResponse  "Empty or malformed batch"
// @Router       /device/sync [post]
func (c *DeviceController) Sync() {
	var req SyncRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "Invalid request parameters",
			"data":    nil,
		})
		return
	}

	// 空批次直接拒绝，设备不应该发空包
	if len(req.Measurements) == 0 {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "measurements must be a non-empty array",
			"data":    nil,
		})
		return
	}

	telemetryService := c.Container.GetService("telemetry").(services.InterfaceTelemetryService)
	cfg := c.Container.GetService("config").(*config.Config)

	synced, failed, err := telemetryService.SyncMeasurements(c.deviceID(), req.LocalIP, req.Measurements)
	if err != nil {
		c.Ctx.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "Sync failed: " + err.Error(),
			"data":    nil,
		})
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data": gin.H{
			"synced":       synced,
			"failed":       failed,
			"nextSyncTime": time.Now().Add(time.Duration(cfg.SyncIntervalSeconds) * time.Second).UnixMilli(),
		},
	})
}

// Health 设备健康上报
// @Summary      Report Device Health
// @Tags         Device
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body HealthReportRequest true "Health metrics"
// @Success      200  {object}  map[string]interface{}
// @Router       /device/health [post]
func (c *DeviceController) Health() {
	var req HealthReportRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "Invalid request parameters",
			"data":    nil,
		})
		return
	}

	deviceService := c.Container.GetService("device").(services.InterfaceDeviceService)

	var userID *uint
	if id := c.Ctx.GetUint("userID"); id != 0 {
		userID = &id
	}

	health := &models.DeviceHealth{
		CpuUsage:      req.CpuUsage,
		MemUsage:      req.MemUsage,
		StorageUsage:  req.StorageUsage,
		WifiRssi:      req.WifiRssi,
		UptimeSeconds: req.UptimeSeconds,
	}
	if err := deviceService.RecordHealth(c.deviceID(), userID, health); err != nil {
		c.Ctx.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "Failed to record health report: " + err.Error(),
			"data":    nil,
		})
		return
	}

	if err := deviceService.UpdateLastSeen(c.deviceID(), ""); err != nil {
		c.Ctx.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "Failed to update device: " + err.Error(),
			"data":    nil,
		})
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    nil,
	})
}

// PollCommands 设备轮询待执行命令
// @Summary      Poll Commands
// @Description  Atomically claim up to 5 of the oldest pending commands; empty array when the queue is empty
// @Tags         Device
// @Produce      json
// @Security     BearerAuth
// @Param        limit query int false "Max commands to claim (default 5, max 5)"
// @Success      200  {object}  map[string]interface{}  "Oldest-first command batch"
// @Router       /device/commands/poll [get]
func (c *DeviceController) PollCommands() {
	limit, _ := strconv.Atoi(c.Ctx.DefaultQuery("limit", "5"))

	commandService := c.Container.GetService("command").(services.InterfaceCommandService)
	deviceService := c.Container.GetService("device").(services.InterfaceDeviceService)

	commands, err := commandService.Poll(c.deviceID(), limit)
	if err != nil {
		c.Ctx.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "Poll failed: " + err.Error(),
			"data":    nil,
		})
		return
	}

	// 轮询也算一次心跳
	if err := deviceService.UpdateLastSeen(c.deviceID(), ""); err != nil {
		c.Ctx.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "Failed to update device: " + err.Error(),
			"data":    nil,
		})
		return
	}

	items := make([]gin.H, 0, len(commands))
	for i := range commands {
		items = append(items, gin.H{
			"id":      commands[i].ID,
			"type":    commands[i].Type,
			"payload": commands[i].DecodePayload(),
		})
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    gin.H{"commands": items},
	})
}

// CompleteCommand 设备回报命令结果
// @Summary      Complete Command
// @Description  Report execution result for a command previously claimed by poll
// @Tags         Device
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body CompleteCommandRequest true "Execution result"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  ErrorResponse  "Unknown command"
// @Failure      409  {object}  ErrorResponse  "Command not in progress"
// @Router       /device/commands/complete [post]
func (c *DeviceController) CompleteCommand() {
	var req CompleteCommandRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil || req.Success == nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "Invalid request parameters",
			"data":    nil,
		})
		return
	}

	commandService := c.Container.GetService("command").(services.InterfaceCommandService)
	deviceService := c.Container.GetService("device").(services.InterfaceDeviceService)

	command, err := commandService.Complete(c.deviceID(), req.CommandID, *req.Success, req.Result, req.Error)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCommandNotFound):
			c.Ctx.JSON(http.StatusNotFound, gin.H{
				"code":    404,
				"message": "Command not found",
				"data":    nil,
			})
		case errors.Is(err, services.ErrCommandConflict):
			c.Ctx.JSON(http.StatusConflict, gin.H{
				"code":    409,
				"message": "Command is not in progress",
				"data":    nil,
			})
		default:
			c.Ctx.JSON(http.StatusInternalServerError, gin.H{
				"code":    500,
				"message": "Complete failed: " + err.Error(),
				"data":    nil,
			})
		}
		return
	}

	if err := deviceService.UpdateLastSeen(c.deviceID(), ""); err != nil {
		c.Ctx.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "Failed to update device: " + err.Error(),
			"data":    nil,
		})
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    gin.H{"status": command.Status},
	})
}

// KhReference 设备读取KH参考配置
// @Summary      Get KH Reference
// @Tags         Device
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}  "khReference value"
// @Router       /device/kh-reference [get]
func (c *DeviceController) KhReference() {
	deviceService := c.Container.GetService("device").(services.InterfaceDeviceService)

	value, err := deviceService.GetKhReference(c.deviceID())
	if err != nil {
		c.Ctx.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "Failed to read kh reference: " + err.Error(),
			"data":    nil,
		})
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    gin.H{"khReference": value},
	})
}
