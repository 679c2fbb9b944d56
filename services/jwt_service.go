package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"reefkh-http-service/config"
)

// 令牌有效期
const (
	UserAccessTokenTTL     = time.Hour
	DeviceAccessTokenTTL   = time.Hour
	DeviceRefreshTokenTTL  = 30 * 24 * time.Hour
	DisplayAccessTokenTTL  = 30 * 24 * time.Hour
	DisplayRefreshTokenTTL = 90 * 24 * time.Hour

	// 签发时间允许的未来偏移，超过即判定为时钟异常或重放
	issuedAtFutureSkew = 60 * time.Second
)

// 令牌主体类型
const (
	TokenKindUser    = "user"
	TokenKindDevice  = "device"
	TokenKindDisplay = "display"
)

var (
	// ErrTokenInvalid 令牌无效或签名不通过
	ErrTokenInvalid = errors.New("无效的令牌")
	// ErrTokenReplay 令牌签发时间在未来，超过允许偏移
	ErrTokenReplay = errors.New("令牌签发时间异常")
	// ErrTokenKindMismatch 令牌主体类型与接口不匹配
	ErrTokenKindMismatch = errors.New("令牌类型不匹配")
)

// JWTClaims 定义JWT令牌的声明结构。user令牌只带user_id；
// device/display令牌额外携带外部设备ID。refresh标志区分刷新令牌。
type JWTClaims struct {
	UserID    uint    `json:"user_id,omitempty"`
	DeviceID  *string `json:"device_id,omitempty"`
	DisplayID *string `json:"display_id,omitempty"`
	Kind      string  `json:"kind"`
	Refresh   bool    `json:"refresh,omitempty"`
	jwt.RegisteredClaims
}

// Valid 只校验exp/nbf。iat的未来偏移校验由服务层显式执行，
// 以便区分"过期"与"签发时间异常"两种失败。
func (c *JWTClaims) Valid() error {
	now := time.Now()
	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Time) {
		return jwt.ErrTokenExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return jwt.ErrTokenNotValidYet
	}
	return nil
}

// InterfaceJWTService 定义JWT服务接口
type InterfaceJWTService interface {
	GenerateUserToken(userID uint) (string, error)
	GenerateDeviceTokenPair(userID uint, deviceID string) (access, refresh string, err error)
	GenerateDisplayTokenPair(displayID string) (access, refresh string, err error)
	ValidateAccessToken(tokenString string) (*JWTClaims, error)
	ValidateRefreshToken(tokenString string) (*JWTClaims, error)
}

// JWTService 提供JWT相关服务
type JWTService struct {
	secretKey        string
	refreshSecretKey string
	issuer           string
}

// NewJWTService 创建一个新的JWT服务
func NewJWTService(cfg *config.Config) InterfaceJWTService {
	return &JWTService{
		secretKey:        cfg.JWTSecretKey,
		refreshSecretKey: cfg.JWTRefreshSecretKey,
		issuer:           "reefkh-http-service",
	}
}

func (s *JWTService) sign(claims *JWTClaims, refresh bool) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if refresh {
		return token.SignedString([]byte(s.refreshSecretKey))
	}
	return token.SignedString([]byte(s.secretKey))
}

func (s *JWTService) registeredClaims(ttl time.Duration) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		Issuer:    s.issuer,
	}
}

// GenerateUserToken 生成用户访问令牌
func (s *JWTService) GenerateUserToken(userID uint) (string, error) {
	claims := &JWTClaims{
		UserID:           userID,
		Kind:             TokenKindUser,
		RegisteredClaims: s.registeredClaims(UserAccessTokenTTL),
	}
	return s.sign(claims, false)
}

// GenerateDeviceTokenPair 生成设备访问/刷新令牌对
func (s *JWTService) GenerateDeviceTokenPair(userID uint, deviceID string) (string, string, error) {
	access := &JWTClaims{
		UserID:           userID,
		DeviceID:         &deviceID,
		Kind:             TokenKindDevice,
		RegisteredClaims: s.registeredClaims(DeviceAccessTokenTTL),
	}
	accessToken, err := s.sign(access, false)
	if err != nil {
		return "", "", err
	}

	refresh := &JWTClaims{
		UserID:           userID,
		DeviceID:         &deviceID,
		Kind:             TokenKindDevice,
		Refresh:          true,
		RegisteredClaims: s.registeredClaims(DeviceRefreshTokenTTL),
	}
	refreshToken, err := s.sign(refresh, true)
	if err != nil {
		return "", "", err
	}

	return accessToken, refreshToken, nil
}

// GenerateDisplayTokenPair 生成显示屏访问/刷新令牌对。
// 显示屏为只读伴侣设备，访问令牌给足30天以减少刷新频率。
func (s *JWTService) GenerateDisplayTokenPair(displayID string) (string, string, error) {
	access := &JWTClaims{
		DisplayID:        &displayID,
		Kind:             TokenKindDisplay,
		RegisteredClaims: s.registeredClaims(DisplayAccessTokenTTL),
	}
	accessToken, err := s.sign(access, false)
	if err != nil {
		return "", "", err
	}

	refresh := &JWTClaims{
		DisplayID:        &displayID,
		Kind:             TokenKindDisplay,
		Refresh:          true,
		RegisteredClaims: s.registeredClaims(DisplayRefreshTokenTTL),
	}
	refreshToken, err := s.sign(refresh, true)
	if err != nil {
		return "", "", err
	}

	return accessToken, refreshToken, nil
}

func (s *JWTService) parse(tokenString, secret string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// 验证签名算法
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}

	// 签发时间在未来超过允许偏移的令牌一律拒绝
	if claims.IssuedAt != nil && claims.IssuedAt.Time.After(time.Now().Add(issuedAtFutureSkew)) {
		return nil, ErrTokenReplay
	}

	return claims, nil
}

// ValidateAccessToken 验证访问令牌
func (s *JWTService) ValidateAccessToken(tokenString string) (*JWTClaims, error) {
	claims, err := s.parse(tokenString, s.secretKey)
	if err != nil {
		return nil, err
	}
	if claims.Refresh {
		return nil, ErrTokenKindMismatch
	}
	return claims, nil
}

// ValidateRefreshToken 验证刷新令牌
func (s *JWTService) ValidateRefreshToken(tokenString string) (*JWTClaims, error) {
	claims, err := s.parse(tokenString, s.refreshSecretKey)
	if err != nil {
		return nil, err
	}
	if !claims.Refresh {
		return nil, ErrTokenKindMismatch
	}
	return claims, nil
}
