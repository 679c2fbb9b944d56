package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService() InterfaceJWTService {
	return NewJWTService(newTestConfig())
}

func TestUserToken(t *testing.T) {
	svc := newTestJWTService()

	token, err := svc.GenerateUserToken(42)
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, TokenKindUser, claims.Kind)
	assert.False(t, claims.Refresh)
	assert.Nil(t, claims.DeviceID)
}

func TestDeviceTokenPair(t *testing.T) {
	svc := newTestJWTService()

	access, refresh, err := svc.GenerateDeviceTokenPair(7, "reefkh-a1b2c3d4e5")
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(access)
	require.NoError(t, err)
	assert.Equal(t, TokenKindDevice, claims.Kind)
	require.NotNil(t, claims.DeviceID)
	assert.Equal(t, "reefkh-a1b2c3d4e5", *claims.DeviceID)

	refreshClaims, err := svc.ValidateRefreshToken(refresh)
	require.NoError(t, err)
	assert.True(t, refreshClaims.Refresh)
	assert.Equal(t, uint(7), refreshClaims.UserID)

	// 刷新令牌不能当访问令牌用，反之亦然
	_, err = svc.ValidateAccessToken(refresh)
	assert.Error(t, err)
	_, err = svc.ValidateRefreshToken(access)
	assert.Error(t, err)
}

func TestDisplayTokenPair(t *testing.T) {
	svc := newTestJWTService()

	access, refresh, err := svc.GenerateDisplayTokenPair("reefkh-disp-f6e5d4c3")
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(access)
	require.NoError(t, err)
	assert.Equal(t, TokenKindDisplay, claims.Kind)
	require.NotNil(t, claims.DisplayID)
	assert.Equal(t, "reefkh-disp-f6e5d4c3", *claims.DisplayID)

	refreshClaims, err := svc.ValidateRefreshToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, TokenKindDisplay, refreshClaims.Kind)
}

func TestRejectsWrongSecret(t *testing.T) {
	svc := newTestJWTService()

	otherCfg := newTestConfig()
	otherCfg.JWTSecretKey = "another-secret"
	other := NewJWTService(otherCfg)

	token, err := other.GenerateUserToken(1)
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestRejectsFutureIssuedAt(t *testing.T) {
	cfg := newTestConfig()
	svc := NewJWTService(cfg)

	// 手工签一个iat在未来10分钟的令牌
	claims := &JWTClaims{
		UserID: 1,
		Kind:   TokenKindUser,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(10 * time.Minute)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecretKey))
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrTokenReplay)
}

func TestAllowsSmallClockSkew(t *testing.T) {
	cfg := newTestConfig()
	svc := NewJWTService(cfg)

	// iat在未来30秒以内属于允许的时钟偏移
	claims := &JWTClaims{
		UserID: 1,
		Kind:   TokenKindUser,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(30 * time.Second)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecretKey))
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(token)
	assert.NoError(t, err)
}

func TestRejectsExpiredToken(t *testing.T) {
	cfg := newTestConfig()
	svc := NewJWTService(cfg)

	claims := &JWTClaims{
		UserID: 1,
		Kind:   TokenKindUser,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecretKey))
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(token)
	assert.Error(t, err)
}
