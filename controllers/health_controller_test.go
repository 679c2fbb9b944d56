package controllers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPingEndpoints(t *testing.T) {
	r, _ := newTestServer(t)

	// 带版本前缀和不带版本前缀的探活路径都可用
	for _, path := range []string{"/api/ping", "/api/v1/ping"} {
		status, resp := doJSON(t, r, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "pong", resp["message"])
		assert.Equal(t, "reefkh-http-service", resp["service"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	r, _ := newTestServer(t)

	status, resp := doJSON(t, r, http.MethodGet, "/api/status", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "reefkh-http-service", resp["service"])
	assert.Equal(t, "ok", resp["status"])
	assert.NotEmpty(t, resp["version"])
	assert.GreaterOrEqual(t, resp["uptime"].(float64), float64(0))

	// 测试环境外部依赖全部降级
	assert.Equal(t, false, resp["mqtt"])
	assert.Equal(t, false, resp["redis"])
}
