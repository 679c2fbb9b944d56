package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCachedRouter(hits *int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/data", Cache(CacheConfig{Expiration: time.Minute}), func(c *gin.Context) {
		*hits++
		c.JSON(http.StatusOK, gin.H{"hits": *hits})
	})
	return r
}

func get(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCacheServesRepeatedRequests(t *testing.T) {
	PurgeCache()
	hits := 0
	r := newCachedRouter(&hits)

	first := get(r, "/data", "token-a")
	require.Equal(t, http.StatusOK, first.Code)
	second := get(r, "/data", "token-a")
	require.Equal(t, http.StatusOK, second.Code)

	assert.Equal(t, 1, hits)
	assert.Equal(t, first.Body.String(), second.Body.String())
}

func TestCacheIsolatesCallers(t *testing.T) {
	PurgeCache()
	hits := 0
	r := newCachedRouter(&hits)

	get(r, "/data", "token-a")
	get(r, "/data", "token-b")

	// 不同令牌各自回源，互不串缓存
	assert.Equal(t, 2, hits)
}

func TestPurgeCache(t *testing.T) {
	PurgeCache()
	hits := 0
	r := newCachedRouter(&hits)

	get(r, "/data", "token-a")
	PurgeCache()
	get(r, "/data", "token-a")

	assert.Equal(t, 2, hits)
}
