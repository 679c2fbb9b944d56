package controllers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"reefkh-http-service/config"
	"reefkh-http-service/models"
	"reefkh-http-service/routes"
)

// newTestServer 搭一个完整的路由栈，外部依赖（redis/mqtt/smtp）全部降级
func newTestServer(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Device{},
		&models.Measurement{},
		&models.Command{},
		&models.DeviceHealth{},
	))

	cfg := &config.Config{
		EnvType:                 "LOCAL",
		JWTSecretKey:            "test-secret",
		JWTRefreshSecretKey:     "test-refresh-secret",
		OfflineThresholdMinutes: 5,
		SweepIntervalSeconds:    30,
		SyncIntervalSeconds:     300,
	}

	r, _ := routes.SetupRouter(db, cfg)
	return r, db
}

// doJSON 发起一次请求并解析响应体
func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w.Code, resp
}

func data(t *testing.T, resp map[string]interface{}) map[string]interface{} {
	t.Helper()
	d, ok := resp["data"].(map[string]interface{})
	require.True(t, ok, "响应缺少data对象: %v", resp)
	return d
}

// signupUser 注册并验证一个用户，返回登录令牌。验证码邮件在
// 测试环境发不出去，直接从库里读。
func signupUser(t *testing.T, r *gin.Engine, db *gorm.DB, email, password string) string {
	t.Helper()

	status, _ := doJSON(t, r, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusOK, status)

	var user models.User
	require.NoError(t, db.Where("email = ?", email).First(&user).Error)
	require.NotNil(t, user.VerificationCode)

	status, resp := doJSON(t, r, http.MethodPost, "/api/v1/auth/verify-code", "", gin.H{
		"email": email,
		"code":  *user.VerificationCode,
	})
	require.Equal(t, http.StatusOK, status)

	// 验证成功直接带回访问令牌
	verifiedToken, _ := data(t, resp)["token"].(string)
	require.NotEmpty(t, verifiedToken)

	status, resp = doJSON(t, r, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusOK, status)

	token, _ := data(t, resp)["token"].(string)
	require.NotEmpty(t, token)
	return token
}

// registerDevice 激活设备并返回设备访问令牌
func registerDevice(t *testing.T, r *gin.Engine, email, password, deviceID string) string {
	t.Helper()

	status, resp := doJSON(t, r, http.MethodPost, "/api/v1/device/register", "", gin.H{
		"email":    email,
		"password": password,
		"deviceId": deviceID,
		"name":     "Main Tank",
		"localIp":  "192.168.1.42",
	})
	require.Equal(t, http.StatusOK, status)

	d := data(t, resp)
	assert.Equal(t, deviceID, d["deviceId"])
	assert.Equal(t, float64(3600), d["expiresIn"])
	assert.Equal(t, float64(300), d["syncInterval"])

	token, _ := d["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestDeviceLifecycle(t *testing.T) {
	r, db := newTestServer(t)

	userToken := signupUser(t, r, db, "reefer@example.com", "secret-password")
	deviceToken := registerDevice(t, r, "reefer@example.com", "secret-password", "reefkh-a1b2c3d4e5")

	// 遥测上报：一条好数据一条坏数据，整批不被拒
	now := time.Now().UnixMilli()
	status, resp := doJSON(t, r, http.MethodPost, "/api/v1/device/sync", deviceToken, gin.H{
		"localIp": "192.168.1.42",
		"measurements": []gin.H{
			{"kh": 7.9, "timestamp": now, "temperature": 25.3},
			{"timestamp": now + 1000},
		},
	})
	require.Equal(t, http.StatusOK, status)
	d := data(t, resp)
	assert.Equal(t, float64(1), d["synced"])
	assert.Equal(t, float64(1), d["failed"])

	// 队列为空时返回空数组
	status, resp = doJSON(t, r, http.MethodGet, "/api/v1/device/commands/poll", deviceToken, nil)
	require.Equal(t, http.StatusOK, status)
	empty, ok := data(t, resp)["commands"].([]interface{})
	require.True(t, ok)
	assert.Empty(t, empty)

	// 用户下发重启命令
	status, _ = doJSON(t, r, http.MethodPost, "/api/v1/devices/reefkh-a1b2c3d4e5/commands", userToken, gin.H{
		"command": "restart",
	})
	require.Equal(t, http.StatusOK, status)

	// 设备领取命令
	status, resp = doJSON(t, r, http.MethodGet, "/api/v1/device/commands/poll", deviceToken, nil)
	require.Equal(t, http.StatusOK, status)
	commands, ok := data(t, resp)["commands"].([]interface{})
	require.True(t, ok)
	require.Len(t, commands, 1)
	cmd := commands[0].(map[string]interface{})
	assert.Equal(t, "restart", cmd["type"])
	commandID := uint(cmd["id"].(float64))

	// 回报执行结果
	status, resp = doJSON(t, r, http.MethodPost, "/api/v1/device/commands/complete", deviceToken, gin.H{
		"commandId": commandID,
		"success":   true,
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "completed", data(t, resp)["status"])

	// 重复回报是冲突
	status, _ = doJSON(t, r, http.MethodPost, "/api/v1/device/commands/complete", deviceToken, gin.H{
		"commandId": commandID,
		"success":   false,
		"error":     "late duplicate",
	})
	assert.Equal(t, http.StatusConflict, status)

	// 用户侧命令历史能看到终态记录
	status, resp = doJSON(t, r, http.MethodGet, "/api/v1/devices/reefkh-a1b2c3d4e5/commands", userToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), data(t, resp)["total"])
}

func TestPollDeliversCommandBatch(t *testing.T) {
	r, db := newTestServer(t)

	userToken := signupUser(t, r, db, "reefer@example.com", "secret-password")
	deviceToken := registerDevice(t, r, "reefer@example.com", "secret-password", "reefkh-a1b2c3d4e5")

	for _, cmd := range []string{"restart", "test", "restart"} {
		status, _ := doJSON(t, r, http.MethodPost, "/api/v1/devices/reefkh-a1b2c3d4e5/commands", userToken, gin.H{
			"command": cmd,
		})
		require.Equal(t, http.StatusOK, status)
	}

	// 一次poll拿到整批，最旧的在前
	status, resp := doJSON(t, r, http.MethodGet, "/api/v1/device/commands/poll", deviceToken, nil)
	require.Equal(t, http.StatusOK, status)
	commands, ok := data(t, resp)["commands"].([]interface{})
	require.True(t, ok)
	require.Len(t, commands, 3)
	assert.Equal(t, "restart", commands[0].(map[string]interface{})["type"])
	assert.Equal(t, "test", commands[1].(map[string]interface{})["type"])

	// 已投递的不会再出现
	status, resp = doJSON(t, r, http.MethodGet, "/api/v1/device/commands/poll", deviceToken, nil)
	require.Equal(t, http.StatusOK, status)
	commands, ok = data(t, resp)["commands"].([]interface{})
	require.True(t, ok)
	assert.Empty(t, commands)

	// limit参数限制单批数量
	for _, cmd := range []string{"test", "test"} {
		status, _ := doJSON(t, r, http.MethodPost, "/api/v1/devices/reefkh-a1b2c3d4e5/commands", userToken, gin.H{
			"command": cmd,
		})
		require.Equal(t, http.StatusOK, status)
	}
	status, resp = doJSON(t, r, http.MethodGet, "/api/v1/device/commands/poll?limit=1", deviceToken, nil)
	require.Equal(t, http.StatusOK, status)
	commands, ok = data(t, resp)["commands"].([]interface{})
	require.True(t, ok)
	assert.Len(t, commands, 1)
}

func TestSyncRejectsEmptyBatch(t *testing.T) {
	r, db := newTestServer(t)

	signupUser(t, r, db, "reefer@example.com", "secret-password")
	deviceToken := registerDevice(t, r, "reefer@example.com", "secret-password", "reefkh-a1b2c3d4e5")

	status, resp := doJSON(t, r, http.MethodPost, "/api/v1/device/sync", deviceToken, gin.H{
		"measurements": []gin.H{},
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "measurements must be a non-empty array", resp["message"])
}

func TestDeviceRoutesRequireDeviceToken(t *testing.T) {
	r, db := newTestServer(t)

	userToken := signupUser(t, r, db, "reefer@example.com", "secret-password")

	// 无令牌
	status, _ := doJSON(t, r, http.MethodGet, "/api/v1/device/commands/poll", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	// 用户令牌不能访问设备接口
	status, _ = doJSON(t, r, http.MethodGet, "/api/v1/device/commands/poll", userToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestDeviceRegisterErrors(t *testing.T) {
	r, db := newTestServer(t)

	signupUser(t, r, db, "reefer@example.com", "secret-password")

	// 非法设备ID
	status, _ := doJSON(t, r, http.MethodPost, "/api/v1/device/register", "", gin.H{
		"email":    "reefer@example.com",
		"password": "secret-password",
		"deviceId": "bad id",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	// 密码错误
	status, _ = doJSON(t, r, http.MethodPost, "/api/v1/device/register", "", gin.H{
		"email":    "reefer@example.com",
		"password": "wrong-password",
		"deviceId": "reefkh-a1b2c3d4e5",
	})
	assert.Equal(t, http.StatusUnauthorized, status)

	// 设备已绑定到别的账号
	registerDevice(t, r, "reefer@example.com", "secret-password", "reefkh-a1b2c3d4e5")
	signupUser(t, r, db, "other@example.com", "secret-password")
	status, _ = doJSON(t, r, http.MethodPost, "/api/v1/device/register", "", gin.H{
		"email":    "other@example.com",
		"password": "secret-password",
		"deviceId": "reefkh-a1b2c3d4e5",
	})
	assert.Equal(t, http.StatusForbidden, status)
}

func TestDeviceTokenRefresh(t *testing.T) {
	r, db := newTestServer(t)

	signupUser(t, r, db, "reefer@example.com", "secret-password")

	status, resp := doJSON(t, r, http.MethodPost, "/api/v1/device/register", "", gin.H{
		"email":    "reefer@example.com",
		"password": "secret-password",
		"deviceId": "reefkh-a1b2c3d4e5",
	})
	require.Equal(t, http.StatusOK, status)
	refreshToken, _ := data(t, resp)["refreshToken"].(string)
	require.NotEmpty(t, refreshToken)

	status, resp = doJSON(t, r, http.MethodPost, "/api/v1/device/refresh-token", "", gin.H{
		"refreshToken": refreshToken,
	})
	require.Equal(t, http.StatusOK, status)
	newToken, _ := data(t, resp)["token"].(string)
	require.NotEmpty(t, newToken)

	// 新令牌可用
	status, _ = doJSON(t, r, http.MethodGet, "/api/v1/device/commands/poll", newToken, nil)
	assert.Equal(t, http.StatusOK, status)

	// 访问令牌不能冒充刷新令牌
	status, _ = doJSON(t, r, http.MethodPost, "/api/v1/device/refresh-token", "", gin.H{
		"refreshToken": newToken,
	})
	assert.Equal(t, http.StatusUnauthorized, status)
}
