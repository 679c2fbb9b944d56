package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"reefkh-http-service/config"
	"reefkh-http-service/internal/error/code"
	"reefkh-http-service/internal/error/response"
	"reefkh-http-service/services"
	"reefkh-http-service/services/container"
)

// InterfaceUserController 定义用户控制器接口
type InterfaceUserController interface {
	Me()
	UpdateSettings()
	ListDevices()
	Measurements()
	SetKhReference()
	SetKhTarget()
}

// UserController 处理dashboard侧的用户与设备查询请求
type UserController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewUserController 创建一个新的用户控制器
func NewUserController(ctx *gin.Context, container *container.ServiceContainer) *UserController {
	return &UserController{
		Ctx:       ctx,
		Container: container,
	}
}

// UpdateSettingsRequest 用户设置更新请求
type UpdateSettingsRequest struct {
	EmailEnabled     *bool   `json:"email_enabled,omitempty"`
	TelegramEnabled  *bool   `json:"telegram_enabled,omitempty"`
	TelegramBotToken *string `json:"telegram_bot_token,omitempty"`
	TelegramChatID   *string `json:"telegram_chat_id,omitempty"`
	Timezone         *string `json:"timezone,omitempty" example:"America/Sao_Paulo"`
}

// KhValueRequest KH配置值请求
type KhValueRequest struct {
	Value *float64 `json:"value" binding:"required" example:"8.2"`
}

// DeviceSummary 设备列表项，带推导出的在线状态
type DeviceSummary struct {
	DeviceID    string      `json:"device_id"`
	Name        string      `json:"name"`
	Status      string      `json:"status"`
	LastSeen    interface{} `json:"last_seen"`
	LocalIP     interface{} `json:"local_ip"`
	KhReference interface{} `json:"kh_reference"`
	KhTarget    interface{} `json:"kh_target"`
}

// HandleUserFunc 返回一个处理用户请求的Gin处理函数
func HandleUserFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewUserController(ctx, container)

		switch method {
		case "me":
			controller.Me()
		case "updateSettings":
			controller.UpdateSettings()
		case "listDevices":
			controller.ListDevices()
		case "measurements":
			controller.Measurements()
		case "setKhReference":
			controller.SetKhReference()
		case "setKhTarget":
			controller.SetKhTarget()
		default:
			ctx.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "无效的方法",
				"data":    nil,
			})
		}
	}
}

// Me 获取当前用户信息
// @Summary      Current User
// @Tags         User
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  models.User
// @Failure      404  {object}  ErrorResponse
// @Router       /users/me [get]
func (c *UserController) Me() {
	userService := c.Container.GetService("user").(services.InterfaceUserService)

	user, err := userService.GetUserByID(c.Ctx.GetUint("userID"))
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			response.NotFound(c.Ctx, "用户不存在")
			return
		}
		response.ServerError(c.Ctx)
		return
	}

	response.Success(c.Ctx, user)
}

// UpdateSettings 更新当前用户设置
// @Summary      Update Settings
// @Description  Update notification channels and timezone for the current user
// @Tags         User
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body UpdateSettingsRequest true "Settings"
// @Success      200  {object}  models.User
// @Router       /users/me [put]
func (c *UserController) UpdateSettings() {
	var req UpdateSettingsRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		response.ParamError(c.Ctx, "请求参数无效")
		return
	}

	updates := make(map[string]interface{})
	if req.EmailEnabled != nil {
		updates["email_enabled"] = *req.EmailEnabled
	}
	if req.TelegramEnabled != nil {
		updates["telegram_enabled"] = *req.TelegramEnabled
	}
	if req.TelegramBotToken != nil {
		updates["telegram_bot_token"] = *req.TelegramBotToken
	}
	if req.TelegramChatID != nil {
		updates["telegram_chat_id"] = *req.TelegramChatID
	}
	if req.Timezone != nil {
		updates["timezone"] = *req.Timezone
	}

	userService := c.Container.GetService("user").(services.InterfaceUserService)

	user, err := userService.UpdateSettings(c.Ctx.GetUint("userID"), updates)
	if err != nil {
		response.ServerError(c.Ctx)
		return
	}

	response.Success(c.Ctx, user)
}

// ListDevices 列出当前用户的所有设备
// @Summary      List Devices
// @Description  List the user's devices with derived online status
// @Tags         User
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}  DeviceSummary
// @Router       /devices [get]
func (c *UserController) ListDevices() {
	deviceService := c.Container.GetService("device").(services.InterfaceDeviceService)
	cfg := c.Container.GetService("config").(*config.Config)

	devices, err := deviceService.GetUserDevices(c.Ctx.GetUint("userID"))
	if err != nil {
		response.ServerError(c.Ctx)
		return
	}

	threshold := cfg.OfflineThreshold()
	summaries := make([]DeviceSummary, 0, len(devices))
	for i := range devices {
		d := &devices[i]
		summaries = append(summaries, DeviceSummary{
			DeviceID:    d.DeviceID,
			Name:        d.Name,
			Status:      string(d.Status(threshold)),
			LastSeen:    d.LastSeen,
			LocalIP:     d.LocalIP,
			KhReference: d.KhReference,
			KhTarget:    d.KhTarget,
		})
	}

	response.Success(c.Ctx, summaries)
}

// Measurements 查询设备测量历史
// @Summary      Measurement History
// @Description  Most recent measurements for the device, newest first; from/to narrow the timestamp window
// @Tags         User
// @Produce      json
// @Security     BearerAuth
// @Param        deviceId path string true "Device ID"
// @Param        limit query int false "Max rows (default 500)"
// @Param        from query int false "Earliest timestamp, epoch ms inclusive"
// @Param        to query int false "Latest timestamp, epoch ms inclusive"
// @Success      200  {array}  models.Measurement
// @Failure      404  {object}  ErrorResponse
// @Router       /devices/{deviceId}/measurements [get]
func (c *UserController) Measurements() {
	limit, _ := strconv.Atoi(c.Ctx.DefaultQuery("limit", "500"))
	from, _ := strconv.ParseInt(c.Ctx.DefaultQuery("from", "0"), 10, 64)
	to, _ := strconv.ParseInt(c.Ctx.DefaultQuery("to", "0"), 10, 64)

	telemetryService := c.Container.GetService("telemetry").(services.InterfaceTelemetryService)

	measurements, err := telemetryService.History(c.Ctx.GetUint("userID"), c.Ctx.Param("deviceId"), limit, from, to)
	if err != nil {
		if errors.Is(err, services.ErrDeviceNotFound) {
			response.Fail(c.Ctx, code.ErrDeviceNotFound, nil)
			return
		}
		response.ServerError(c.Ctx)
		return
	}

	response.Success(c.Ctx, measurements)
}

// SetKhReference 设置设备KH参考值
// @Summary      Set KH Reference
// @Tags         User
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        deviceId path string true "Device ID"
// @Param        request body KhValueRequest true "Reference value"
// @Success      200  {object}  models.Device
// @Failure      404  {object}  ErrorResponse
// @Router       /devices/{deviceId}/kh-reference [put]
func (c *UserController) SetKhReference() {
	var req KhValueRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil || *req.Value < 0 {
		response.ParamError(c.Ctx, "请求参数无效")
		return
	}

	deviceService := c.Container.GetService("device").(services.InterfaceDeviceService)

	device, err := deviceService.SetKhReference(c.Ctx.GetUint("userID"), c.Ctx.Param("deviceId"), *req.Value)
	if err != nil {
		if errors.Is(err, services.ErrDeviceNotFound) {
			response.Fail(c.Ctx, code.ErrDeviceNotFound, nil)
			return
		}
		response.ServerError(c.Ctx)
		return
	}

	response.Success(c.Ctx, device)
}

// SetKhTarget 设置设备KH目标值
// @Summary      Set KH Target
// @Tags         User
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        deviceId path string true "Device ID"
// @Param        request body KhValueRequest true "Target value"
// @Success      200  {object}  models.Device
// @Failure      404  {object}  ErrorResponse
// @Router       /devices/{deviceId}/kh-target [put]
func (c *UserController) SetKhTarget() {
	var req KhValueRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil || *req.Value < 0 {
		response.ParamError(c.Ctx, "请求参数无效")
		return
	}

	deviceService := c.Container.GetService("device").(services.InterfaceDeviceService)

	device, err := deviceService.SetKhTarget(c.Ctx.GetUint("userID"), c.Ctx.Param("deviceId"), *req.Value)
	if err != nil {
		if errors.Is(err, services.ErrDeviceNotFound) {
			response.Fail(c.Ctx, code.ErrDeviceNotFound, nil)
			return
		}
		response.ServerError(c.Ctx)
		return
	}

	response.Success(c.Ctx, device)
}
