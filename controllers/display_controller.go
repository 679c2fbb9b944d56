package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"reefkh-http-service/services"
	"reefkh-http-service/services/container"
)

// InterfaceDisplayController 定义显示屏控制器接口
type InterfaceDisplayController interface {
	Register()
	RefreshToken()
	Ping()
}

// DisplayController 处理伴侣显示屏请求。显示屏是只读设备，
// 只绑定主设备并拉取最新读数。
type DisplayController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewDisplayController 创建一个新的显示屏控制器
func NewDisplayController(ctx *gin.Context, container *container.ServiceContainer) *DisplayController {
	return &DisplayController{
		Ctx:       ctx,
		Container: container,
	}
}

// DisplayRegisterRequest 显示屏激活请求。显示屏和主设备一样持有
// 用户凭据，绑定前必须证明自己属于主设备的主人。
type DisplayRegisterRequest struct {
	Email        string `json:"email" binding:"required,email" example:"reefer@example.com"`
	Password     string `json:"password" binding:"required" example:"secret-password"`
	DisplayID    string `json:"displayId" binding:"required" example:"reefkh-disp-f6e5d4c3"`
	DeviceType   string `json:"deviceType" example:"display"`
	MainDeviceID string `json:"mainDeviceId" binding:"required" example:"reefkh-a1b2c3d4e5"`
}

// HandleDisplayFunc 返回一个处理显示屏请求的Gin处理函数
func HandleDisplayFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewDisplayController(ctx, container)

		switch method {
		case "register":
			controller.Register()
		case "refreshToken":
			controller.RefreshToken()
		case "ping":
			controller.Ping()
		default:
			ctx.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "无效的方法",
				"data":    nil,
			})
		}
	}
}

// Register 显示屏激活：校验用户凭据后绑定主设备并领取令牌对
// @Summary      Display Registration
// @Description  Activate a companion display with user credentials and issue a long-lived token pair
// @Tags         Display
// @Accept       json
// @Produce      json
// @Param        request body DisplayRegisterRequest true "Activation parameters"
// @Success      200  {object}  map[string]interface{}  "Token pair"
// @Failure      400  {object}  ErrorResponse  "Invalid display id"
// @Failure      401  {object}  ErrorResponse  "Invalid credentials"
// @Failure      403  {object}  ErrorResponse  "Email not verified"
// @Failure      404  {object}  ErrorResponse  "Device not found or not owned by this user"
// @Router       /display/register [post]
func (c *DisplayController) Register() {
	var req DisplayRegisterRequest
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

	if _, err := deviceService.RegisterDisplay(req.Email, req.Password, req.DisplayID, req.MainDeviceID); err != nil {
		switch {
		case errors.Is(err, services.ErrDeviceIDInvalid):
			c.Ctx.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "Invalid display id",
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
		case errors.Is(err, services.ErrDeviceNotFound):
			c.Ctx.JSON(http.StatusNotFound, gin.H{
				"code":    404,
				"message": "Device not found",
				"data":    nil,
			})
		default:
			c.Ctx.JSON(http.StatusInternalServerError, gin.H{
				"code":    500,
				"message": "Failed to bind display: " + err.Error(),
				"data":    nil,
			})
		}
		return
	}

	accessToken, refreshToken, err := jwtService.GenerateDisplayTokenPair(req.DisplayID)
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
		"message": "Display registered",
		"data": gin.H{
			"token":        accessToken,
			"refreshToken": refreshToken,
			"expiresIn":    int(services.DisplayAccessTokenTTL.Seconds()),
			"displayId":    req.DisplayID,
		},
	})
}

// RefreshToken 刷新显示屏访问令牌
// @Summary      Refresh Display Token
// @Tags         Display
// @Accept       json
// @Produce      json
// @Param        request body RefreshTokenRequest true "Refresh token"
// @Success      200  {object}  map[string]interface{}  "New token pair"
// @Failure      401  {object}  ErrorResponse  "Invalid refresh token"
// @Router       /display/refresh-token [post]
func (c *DisplayController) RefreshToken() {
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
	if err != nil || claims.Kind != services.TokenKindDisplay || claims.DisplayID == nil {
		c.Ctx.JSON(http.StatusUnauthorized, gin.H{
			"code":    401,
			"message": "Invalid refresh token",
			"data":    nil,
		})
		return
	}

	accessToken, refreshToken, err := jwtService.GenerateDisplayTokenPair(*claims.DisplayID)
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
		},
	})
}

// Ping 显示屏心跳并拉取最新读数
// @Summary      Display Ping
// @Description  Heartbeat that returns the latest measurement and KH targets of the bound device
// @Tags         Display
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}  "Latest reading"
// @Failure      404  {object}  ErrorResponse  "Display not bound"
// @Router       /display/ping [get]
func (c *DisplayController) Ping() {
	displayID := c.Ctx.GetString("displayID")

	deviceService := c.Container.GetService("device").(services.InterfaceDeviceService)
	telemetryService := c.Container.GetService("telemetry").(services.InterfaceTelemetryService)

	device, err := deviceService.GetDeviceByDisplayID(displayID)
	if err != nil {
		if errors.Is(err, services.ErrDeviceNotFound) {
			c.Ctx.JSON(http.StatusNotFound, gin.H{
				"code":    404,
				"message": "Display is not bound to any device",
				"data":    nil,
			})
			return
		}
		c.Ctx.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "Ping failed: " + err.Error(),
			"data":    nil,
		})
		return
	}

	if err := deviceService.UpdateDisplayLastSeen(displayID); err != nil {
		c.Ctx.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "Ping failed: " + err.Error(),
			"data":    nil,
		})
		return
	}

	latest, err := telemetryService.Latest(device.DeviceID)
	if err != nil {
		c.Ctx.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "Ping failed: " + err.Error(),
			"data":    nil,
		})
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data": gin.H{
			"deviceId":    device.DeviceID,
			"deviceName":  device.Name,
			"khReference": device.KhReference,
			"khTarget":    device.KhTarget,
			"latest":      latest,
		},
	})
}
