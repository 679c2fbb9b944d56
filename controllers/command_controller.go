package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"reefkh-http-service/models"
	"reefkh-http-service/services"
	"reefkh-http-service/services/container"
)

// InterfaceCommandController 定义命令控制器接口
type InterfaceCommandController interface {
	Enqueue()
	Pump()
	KhCorrection()
	History()
	Cancel()
}

// CommandController 处理用户侧的命令下发与管理请求
type CommandController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewCommandController 创建一个新的命令控制器
func NewCommandController(ctx *gin.Context, container *container.ServiceContainer) *CommandController {
	return &CommandController{
		Ctx:       ctx,
		Container: container,
	}
}

// EnqueueCommandRequest 通用命令下发请求
type EnqueueCommandRequest struct {
	Command string      `json:"command" binding:"required" example:"calibration"`
	Value   interface{} `json:"value,omitempty"`
}

// PumpCommandRequest 手动泵命令请求
type PumpCommandRequest struct {
	PumpID    int    `json:"pump_id" binding:"required" example:"2"`
	Direction string `json:"direction" example:"forward"`
	Seconds   int    `json:"seconds" binding:"required" example:"10"`
}

// KhCorrectionRequest KH修正命令请求
type KhCorrectionRequest struct {
	Volume float64 `json:"volume" binding:"required" example:"12.5"`
}

// HandleCommandFunc 返回一个处理命令请求的Gin处理函数
func HandleCommandFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewCommandController(ctx, container)

		switch method {
		case "enqueue":
			controller.Enqueue()
		case "pump":
			controller.Pump()
		case "khCorrection":
			controller.KhCorrection()
		case "history":
			controller.History()
		case "cancel":
			controller.Cancel()
		default:
			ctx.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "无效的方法",
				"data":    nil,
			})
		}
	}
}

// respondCommandError 把命令服务错误映射为HTTP响应
func (c *CommandController) respondCommandError(err error) {
	switch {
	case errors.Is(err, services.ErrDeviceNotFound):
		c.Ctx.JSON(http.StatusNotFound, gin.H{
			"code":    404,
			"message": "Device not found",
			"data":    nil,
		})
	case errors.Is(err, services.ErrCommandNotFound):
		c.Ctx.JSON(http.StatusNotFound, gin.H{
			"code":    404,
			"message": "Command not found",
			"data":    nil,
		})
	case errors.Is(err, services.ErrCommandConflict):
		c.Ctx.JSON(http.StatusConflict, gin.H{
			"code":    409,
			"message": "Command state does not allow this operation",
			"data":    nil,
		})
	case errors.Is(err, models.ErrInvalidCommandType), errors.Is(err, models.ErrInvalidCommandPayload):
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": err.Error(),
			"data":    nil,
		})
	default:
		c.Ctx.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "Command operation failed: " + err.Error(),
			"data":    nil,
		})
	}
}

// Enqueue 向设备下发命令
// @Summary      Enqueue Command
// @Description  Queue a typed command for the device; the device picks it up on next poll
// @Tags         Command
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        deviceId path string true "Device ID"
// @Param        request body EnqueueCommandRequest true "Command parameters"
// @Success      200  {object}  map[string]interface{}  "Queued command"
// @Failure      400  {object}  ErrorResponse  "Invalid command type or payload"
// @Failure      404  {object}  ErrorResponse  "Device not found"
// @Router       /devices/{deviceId}/commands [post]
func (c *CommandController) Enqueue() {
	var req EnqueueCommandRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "Invalid request parameters",
			"data":    nil,
		})
		return
	}

	commandService := c.Container.GetService("command").(services.InterfaceCommandService)

	command, err := commandService.Enqueue(
		c.Ctx.GetUint("userID"),
		c.Ctx.Param("deviceId"),
		models.CommandType(req.Command),
		req.Value,
	)
	if err != nil {
		c.respondCommandError(err)
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "Command queued",
		"data":    command,
	})
}

// Pump 手动泵命令捷径
// @Summary      Manual Pump
// @Description  Queue a manual pump run for the device
// @Tags         Command
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        deviceId path string true "Device ID"
// @Param        request body PumpCommandRequest true "Pump parameters"
// @Success      200  {object}  map[string]interface{}  "Queued command"
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /devices/{deviceId}/command/pump [post]
func (c *CommandController) Pump() {
	var req PumpCommandRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "Invalid request parameters",
			"data":    nil,
		})
		return
	}

	commandService := c.Container.GetService("command").(services.InterfaceCommandService)

	command, err := commandService.Enqueue(
		c.Ctx.GetUint("userID"),
		c.Ctx.Param("deviceId"),
		models.CommandTypePump,
		map[string]interface{}{
			"pump_id":   req.PumpID,
			"direction": req.Direction,
			"seconds":   req.Seconds,
		},
	)
	if err != nil {
		c.respondCommandError(err)
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "Command queued",
		"data":    command,
	})
}

// KhCorrection KH修正命令捷径
// @Summary      KH Correction
// @Description  Queue a one-off KH correction dose for the device
// @Tags         Command
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        deviceId path string true "Device ID"
// @Param        request body KhCorrectionRequest true "Correction parameters"
// @Success      200  {object}  map[string]interface{}  "Queued command"
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /devices/{deviceId}/command/kh-correction [post]
func (c *CommandController) KhCorrection() {
	var req KhCorrectionRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "Invalid request parameters",
			"data":    nil,
		})
		return
	}

	commandService := c.Container.GetService("command").(services.InterfaceCommandService)

	command, err := commandService.Enqueue(
		c.Ctx.GetUint("userID"),
		c.Ctx.Param("deviceId"),
		models.CommandTypeKhCorrection,
		req.Volume,
	)
	if err != nil {
		c.respondCommandError(err)
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "Command queued",
		"data":    command,
	})
}

// History 查询设备命令历史
// @Summary      Command History
// @Tags         Command
// @Produce      json
// @Security     BearerAuth
// @Param        deviceId path string true "Device ID"
// @Param        limit query int false "Page size (default 50, max 100)"
// @Param        offset query int false "Offset"
// @Success      200  {object}  map[string]interface{}  "Commands with total"
// @Failure      404  {object}  ErrorResponse
// @Router       /devices/{deviceId}/commands [get]
func (c *CommandController) History() {
	limit, _ := strconv.Atoi(c.Ctx.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.Ctx.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	commandService := c.Container.GetService("command").(services.InterfaceCommandService)

	commands, total, err := commandService.History(
		c.Ctx.GetUint("userID"),
		c.Ctx.Param("deviceId"),
		limit,
		offset,
	)
	if err != nil {
		c.respondCommandError(err)
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data": gin.H{
			"commands": commands,
			"total":    total,
			"page":     models.NewPage(total, limit, offset),
		},
	})
}

// Cancel 取消活跃命令
// @Summary      Cancel Command
// @Description  Cancel a pending or in-progress command; finished commands cannot be cancelled
// @Tags         Command
// @Produce      json
// @Security     BearerAuth
// @Param        deviceId path string true "Device ID"
// @Param        id path int true "Command ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse  "Command already terminal"
// @Router       /devices/{deviceId}/commands/{id} [delete]
func (c *CommandController) Cancel() {
	commandID, err := strconv.Atoi(c.Ctx.Param("id"))
	if err != nil || commandID <= 0 {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的命令ID",
			"data":    nil,
		})
		return
	}

	commandService := c.Container.GetService("command").(services.InterfaceCommandService)

	command, err := commandService.Cancel(
		c.Ctx.GetUint("userID"),
		c.Ctx.Param("deviceId"),
		uint(commandID),
	)
	if err != nil {
		c.respondCommandError(err)
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "Command cancelled",
		"data":    gin.H{"status": command.Status},
	})
}
