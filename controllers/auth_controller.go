package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"reefkh-http-service/services"
	"reefkh-http-service/services/container"
)

// InterfaceAuthController 定义用户认证控制器接口
type InterfaceAuthController interface {
	Register()
	Login()
	VerifyCode()
	ResendCode()
	ForgotPassword()
	ResetPassword()
}

// AuthController 处理用户注册登录与验证请求
type AuthController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewAuthController 创建一个新的认证控制器
func NewAuthController(ctx *gin.Context, container *container.ServiceContainer) *AuthController {
	return &AuthController{
		Ctx:       ctx,
		Container: container,
	}
}

// RegisterRequest 表示注册请求
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email" example:"reefer@example.com"`
	Password string `json:"password" binding:"required,min=8" example:"secret-password"`
}

// LoginRequest 表示登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email" example:"reefer@example.com"`
	Password string `json:"password" binding:"required" example:"secret-password"`
}

// VerifyCodeRequest 表示验证码校验请求
type VerifyCodeRequest struct {
	Email string `json:"email" binding:"required,email" example:"reefer@example.com"`
	Code  string `json:"code" binding:"required" example:"482913"`
}

// EmailRequest 只带邮箱的请求（重发验证码、忘记密码）
type EmailRequest struct {
	Email string `json:"email" binding:"required,email" example:"reefer@example.com"`
}

// ResetPasswordRequest 表示密码重置请求
type ResetPasswordRequest struct {
	Email       string `json:"email" binding:"required,email" example:"reefer@example.com"`
	Code        string `json:"code" binding:"required" example:"482913"`
	NewPassword string `json:"new_password" binding:"required,min=8" example:"new-secret-password"`
}

// LoginData 表示登录成功后返回的数据
type LoginData struct {
	Token  string `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	UserID uint   `json:"user_id" example:"1"`
	Email  string `json:"email" example:"reefer@example.com"`
}

// ErrorResponse 表示错误响应
type ErrorResponse struct {
	Code    int         `json:"code" example:"401"`
	Message string      `json:"message" example:"Invalid email or password"`
	Data    interface{} `json:"data"`
}

// HandleAuthFunc 返回一个处理用户认证请求的Gin处理函数
func HandleAuthFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewAuthController(ctx, container)

		switch method {
		case "register":
			controller.Register()
		case "login":
			controller.Login()
		case "verifyCode":
			controller.VerifyCode()
		case "resendCode":
			controller.ResendCode()
		case "forgotPassword":
			controller.ForgotPassword()
		case "resetPassword":
			controller.ResetPassword()
		default:
			ctx.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "无效的方法",
				"data":    nil,
			})
		}
	}
}

// Register 用户注册
// @Summary      User Registration
// @Description  Create a new user account and send a verification code by email
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        request body RegisterRequest true "Registration parameters"
// @Success      200  {object}  map[string]interface{}  "User created"
// @Failure      400  {object}  ErrorResponse  "Bad request"
// @Failure      500  {object}  ErrorResponse  "Internal server error"
// @Router       /auth/register [post]
func (c *AuthController) Register() {
	var req RegisterRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "Invalid request parameters",
			"data":    nil,
		})
		return
	}

	userService := c.Container.GetService("user").(services.InterfaceUserService)

	user, err := userService.Register(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrUserAlreadyExist) {
			c.Ctx.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "Email already registered",
				"data":    nil,
			})
			return
		}
		c.Ctx.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "Failed to create user: " + err.Error(),
			"data":    nil,
		})
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "Verification code sent",
		"data": gin.H{
			"user_id": user.ID,
			"email":   user.Email,
		},
	})
}

// Login 用户登录
// @Summary      User Login
// @Description  Process user login and return a JWT access token
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Login parameters"
// @Success      200  {object}  map[string]interface{}  "Success response with token"
// @Failure      400  {object}  ErrorResponse  "Bad request"
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      403  {object}  ErrorResponse  "Email not verified"
// @Router       /auth/login [post]
func (c *AuthController) Login() {
	var req LoginRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "Invalid request parameters",
			"data":    nil,
		})
		return
	}

	userService := c.Container.GetService("user").(services.InterfaceUserService)

	user, token, err := userService.Login(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrUserNotVerified) {
			c.Ctx.JSON(http.StatusForbidden, gin.H{
				"code":    403,
				"message": "Email not verified",
				"data":    nil,
			})
			return
		}
		c.Ctx.JSON(http.StatusUnauthorized, gin.H{
			"code":    401,
			"message": "Invalid email or password",
			"data":    nil,
		})
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "Login successful",
		"data": LoginData{
			Token:  token,
			UserID: user.ID,
			Email:  user.Email,
		},
	})
}

// VerifyCode 校验邮箱验证码，成功后直接返回访问令牌
// @Summary      Verify Email
// @Description  Exchange the emailed verification code for a verified account and an access token
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        request body VerifyCodeRequest true "Verification parameters"
// @Success      200  {object}  map[string]interface{}  "Verified account with token"
// @Failure      400  {object}  ErrorResponse  "Invalid or expired code"
// @Router       /auth/verify-code [post]
func (c *AuthController) VerifyCode() {
	var req VerifyCodeRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "Invalid request parameters",
			"data":    nil,
		})
		return
	}

	userService := c.Container.GetService("user").(services.InterfaceUserService)

	user, token, err := userService.VerifyEmail(req.Email, req.Code)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, services.ErrUserNotFound) {
			status = http.StatusNotFound
		}
		c.Ctx.JSON(status, gin.H{
			"code":    status,
			"message": err.Error(),
			"data":    nil,
		})
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "Email verified",
		"data": LoginData{
			Token:  token,
			UserID: user.ID,
			Email:  user.Email,
		},
	})
}

// ResendCode 重发验证码
// @Summary      Resend Verification Code
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        request body EmailRequest true "Email"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  ErrorResponse
// @Router       /auth/resend-code [post]
func (c *AuthController) ResendCode() {
	var req EmailRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "Invalid request parameters",
			"data":    nil,
		})
		return
	}

	userService := c.Container.GetService("user").(services.InterfaceUserService)

	if err := userService.ResendVerificationCode(req.Email); err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			c.Ctx.JSON(http.StatusNotFound, gin.H{
				"code":    404,
				"message": "User not found",
				"data":    nil,
			})
			return
		}
		c.Ctx.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "Failed to send verification code: " + err.Error(),
			"data":    nil,
		})
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "Verification code sent",
		"data":    nil,
	})
}

// ForgotPassword 发起密码重置
// @Summary      Forgot Password
// @Description  Send a password reset code to the given email if it is registered
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        request body EmailRequest true "Email"
// @Success      200  {object}  map[string]interface{}
// @Router       /auth/forgot-password [post]
func (c *AuthController) ForgotPassword() {
	var req EmailRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "Invalid request parameters",
			"data":    nil,
		})
		return
	}

	userService := c.Container.GetService("user").(services.InterfaceUserService)

	if err := userService.ForgotPassword(req.Email); err != nil {
		c.Ctx.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "Failed to send reset code: " + err.Error(),
			"data":    nil,
		})
		return
	}

	// 无论邮箱是否注册都返回同样的响应
	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "If the email is registered, a reset code has been sent",
		"data":    nil,
	})
}

// ResetPassword 用验证码重置密码
// @Summary      Reset Password
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        request body ResetPasswordRequest true "Reset parameters"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  ErrorResponse  "Invalid or expired code"
// @Router       /auth/reset-password [post]
func (c *AuthController) ResetPassword() {
	var req ResetPasswordRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "Invalid request parameters",
			"data":    nil,
		})
		return
	}

	userService := c.Container.GetService("user").(services.InterfaceUserService)

	if err := userService.ResetPassword(req.Email, req.Code, req.NewPassword); err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": err.Error(),
			"data":    nil,
		})
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "Password updated",
		"data":    nil,
	})
}
