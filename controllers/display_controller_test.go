package controllers_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisplayRegisterAndPing(t *testing.T) {
	r, db := newTestServer(t)

	signupUser(t, r, db, "reefer@example.com", "secret-password")
	deviceToken := registerDevice(t, r, "reefer@example.com", "secret-password", "reefkh-a1b2c3d4e5")

	// 主设备先上报一条测量
	now := time.Now().UnixMilli()
	status, _ := doJSON(t, r, http.MethodPost, "/api/v1/device/sync", deviceToken, gin.H{
		"measurements": []gin.H{
			{"kh": 8.2, "timestamp": now},
		},
	})
	require.Equal(t, http.StatusOK, status)

	// 用主人的凭据绑定显示屏
	status, resp := doJSON(t, r, http.MethodPost, "/api/v1/display/register", "", gin.H{
		"email":        "reefer@example.com",
		"password":     "secret-password",
		"displayId":    "reefkh-disp-f6e5d4c3",
		"deviceType":   "display",
		"mainDeviceId": "reefkh-a1b2c3d4e5",
	})
	require.Equal(t, http.StatusOK, status)
	d := data(t, resp)
	assert.Equal(t, float64(30*24*3600), d["expiresIn"])
	displayToken, _ := d["token"].(string)
	require.NotEmpty(t, displayToken)

	// 心跳返回主设备的最新读数
	status, resp = doJSON(t, r, http.MethodGet, "/api/v1/display/ping", displayToken, nil)
	require.Equal(t, http.StatusOK, status)
	d = data(t, resp)
	assert.Equal(t, "reefkh-a1b2c3d4e5", d["deviceId"])
	latest, ok := d["latest"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 8.2, latest["kh"])
}

func TestDisplayRegisterErrors(t *testing.T) {
	r, db := newTestServer(t)

	signupUser(t, r, db, "reefer@example.com", "secret-password")
	deviceToken := registerDevice(t, r, "reefer@example.com", "secret-password", "reefkh-a1b2c3d4e5")

	// 不带凭据拿不到令牌
	status, _ := doJSON(t, r, http.MethodPost, "/api/v1/display/register", "", gin.H{
		"displayId":    "reefkh-disp-f6e5d4c3",
		"mainDeviceId": "reefkh-a1b2c3d4e5",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	// 密码错误
	status, _ = doJSON(t, r, http.MethodPost, "/api/v1/display/register", "", gin.H{
		"email":        "reefer@example.com",
		"password":     "wrong-password",
		"displayId":    "reefkh-disp-f6e5d4c3",
		"mainDeviceId": "reefkh-a1b2c3d4e5",
	})
	assert.Equal(t, http.StatusUnauthorized, status)

	// 别人的设备不能被绑上显示屏
	signupUser(t, r, db, "other@example.com", "secret-password")
	status, _ = doJSON(t, r, http.MethodPost, "/api/v1/display/register", "", gin.H{
		"email":        "other@example.com",
		"password":     "secret-password",
		"displayId":    "reefkh-disp-f6e5d4c3",
		"mainDeviceId": "reefkh-a1b2c3d4e5",
	})
	assert.Equal(t, http.StatusNotFound, status)

	// 非法显示屏ID
	status, _ = doJSON(t, r, http.MethodPost, "/api/v1/display/register", "", gin.H{
		"email":        "reefer@example.com",
		"password":     "secret-password",
		"displayId":    "bad id",
		"mainDeviceId": "reefkh-a1b2c3d4e5",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	// 主设备不存在
	status, _ = doJSON(t, r, http.MethodPost, "/api/v1/display/register", "", gin.H{
		"email":        "reefer@example.com",
		"password":     "secret-password",
		"displayId":    "reefkh-disp-f6e5d4c3",
		"mainDeviceId": "reefkh-nosuchdev01",
	})
	assert.Equal(t, http.StatusNotFound, status)

	// 设备令牌不能访问显示屏接口
	status, _ = doJSON(t, r, http.MethodGet, "/api/v1/display/ping", deviceToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
}
