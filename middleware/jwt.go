package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"reefkh-http-service/config"
	"reefkh-http-service/services"
)

var jwtService services.InterfaceJWTService

// InitAuthMiddleware 初始化认证中间件
func InitAuthMiddleware(cfg *config.Config) {
	jwtService = services.NewJWTService(cfg)
}

// extractToken 从授权头中提取token
func extractToken(authHeader string) string {
	// 检查并移除 "Bearer " 前缀
	if len(authHeader) > 7 && strings.HasPrefix(authHeader, "Bearer ") {
		return authHeader[7:]
	}
	return authHeader
}

// authenticate 校验访问令牌并返回claims；失败时已写好响应
func authenticate(c *gin.Context) (*services.JWTClaims, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    401,
			"message": "Authorization header is required",
			"data":    nil,
		})
		c.Abort()
		return nil, false
	}

	tokenString := extractToken(authHeader)
	claims, err := jwtService.ValidateAccessToken(tokenString)
	if err != nil {
		// 签发时间异常与普通无效令牌区分开
		if errors.Is(err, services.ErrTokenReplay) {
			c.JSON(http.StatusForbidden, gin.H{
				"code":    403,
				"message": "Token issued-at time is invalid",
				"data":    nil,
			})
		} else {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    401,
				"message": "Invalid token: " + err.Error(),
				"data":    nil,
			})
		}
		c.Abort()
		return nil, false
	}

	return claims, true
}

// AuthenticateUser 验证用户令牌（dashboard接口）
func AuthenticateUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := authenticate(c)
		if !ok {
			return
		}

		if claims.Kind != services.TokenKindUser {
			c.JSON(http.StatusForbidden, gin.H{
				"code":    403,
				"message": "Insufficient permissions: requires user token",
				"data":    nil,
			})
			c.Abort()
			return
		}

		c.Set("userID", claims.UserID)
		c.Set("claims", claims)
		c.Next()
	}
}

// AuthenticateDevice 验证设备令牌（遥测与命令接口）
func AuthenticateDevice() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := authenticate(c)
		if !ok {
			return
		}

		if claims.Kind != services.TokenKindDevice || claims.DeviceID == nil {
			c.JSON(http.StatusForbidden, gin.H{
				"code":    403,
				"message": "Insufficient permissions: requires device token",
				"data":    nil,
			})
			c.Abort()
			return
		}

		c.Set("userID", claims.UserID)
		c.Set("deviceID", *claims.DeviceID)
		c.Set("claims", claims)
		c.Next()
	}
}

// AuthenticateDisplay 验证显示屏令牌（只读伴侣设备）
func AuthenticateDisplay() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := authenticate(c)
		if !ok {
			return
		}

		if claims.Kind != services.TokenKindDisplay || claims.DisplayID == nil {
			c.JSON(http.StatusForbidden, gin.H{
				"code":    403,
				"message": "Insufficient permissions: requires display token",
				"data":    nil,
			})
			c.Abort()
			return
		}

		c.Set("displayID", *claims.DisplayID)
		c.Set("claims", claims)
		c.Next()
	}
}
