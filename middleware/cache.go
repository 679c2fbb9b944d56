package middleware

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// 缓存条目
type cacheEntry struct {
	Content    []byte
	Expiration time.Time
}

// 内存缓存
type memoryCache struct {
	sync.RWMutex
	items map[string]cacheEntry
}

// 全局缓存实例
var cache = &memoryCache{
	items: make(map[string]cacheEntry),
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Expiration time.Duration             // 缓存过期时间
	Methods    []string                  // 需要缓存的HTTP方法
	KeyFunc    func(*gin.Context) string // 自定义缓存键生成函数
}

// DefaultCacheConfig 默认缓存配置
var DefaultCacheConfig = CacheConfig{
	Expiration: time.Minute,
	Methods:    []string{http.MethodGet},
	KeyFunc:    defaultKeyFunc,
}

// 默认缓存键生成函数：调用方令牌+路径+排序后的查询参数。
// 令牌必须进键，否则一个用户的缓存响应会泄露给另一个用户。
func defaultKeyFunc(c *gin.Context) string {
	path := c.Request.URL.Path

	queryParams := c.Request.URL.Query()
	var queryKeys []string
	for key := range queryParams {
		queryKeys = append(queryKeys, key)
	}
	sort.Strings(queryKeys)

	var queryString string
	for _, key := range queryKeys {
		values := queryParams[key]
		sort.Strings(values)
		for _, value := range values {
			queryString += key + "=" + value + "&"
		}
	}

	key := c.GetHeader("Authorization") + "|" + path + "?" + queryString

	hasher := md5.New()
	hasher.Write([]byte(key))
	return hex.EncodeToString(hasher.Sum(nil))
}

// Cache 创建缓存中间件。测量历史这类读多写少的GET接口用它挡住
// 重复查询，写入方通过PurgeCacheByPrefix让对应条目失效。
func Cache(config ...CacheConfig) gin.HandlerFunc {
	var cfg CacheConfig
	if len(config) > 0 {
		cfg = config[0]
	} else {
		cfg = DefaultCacheConfig
	}

	if cfg.Expiration <= 0 {
		cfg.Expiration = DefaultCacheConfig.Expiration
	}
	if len(cfg.Methods) == 0 {
		cfg.Methods = DefaultCacheConfig.Methods
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = DefaultCacheConfig.KeyFunc
	}

	return func(c *gin.Context) {
		methodAllowed := false
		for _, method := range cfg.Methods {
			if c.Request.Method == method {
				methodAllowed = true
				break
			}
		}

		if !methodAllowed {
			c.Next()
			return
		}

		key := cfg.KeyFunc(c)

		cache.RLock()
		entry, found := cache.items[key]
		cache.RUnlock()

		if found && entry.Expiration.After(time.Now()) {
			// 缓存命中，直接返回缓存的响应
			c.Data(http.StatusOK, "application/json; charset=utf-8", entry.Content)
			c.Abort()
			return
		}

		// 缓存未命中，捕获响应
		writer := &responseWriter{
			ResponseWriter: c.Writer,
			body:           &bytes.Buffer{},
		}
		c.Writer = writer

		c.Next()

		// 只缓存成功响应
		if c.Writer.Status() == http.StatusOK {
			content := writer.body.Bytes()
			cache.Lock()
			cache.items[key] = cacheEntry{
				Content:    content,
				Expiration: time.Now().Add(cfg.Expiration),
			}
			cache.Unlock()
		}
	}
}

// PurgeCache 清除所有缓存
func PurgeCache() {
	cache.Lock()
	cache.items = make(map[string]cacheEntry)
	cache.Unlock()
}

// PurgeCacheByPrefix 根据前缀清除缓存
func PurgeCacheByPrefix(prefix string) {
	cache.Lock()
	defer cache.Unlock()

	for key := range cache.items {
		if strings.HasPrefix(key, prefix) {
			delete(cache.items, key)
		}
	}
}

// 自定义响应写入器，用于捕获响应内容
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

// Write 重写Write方法，同时写入原始响应和缓冲区
func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// WriteString 重写WriteString方法，同时写入原始响应和缓冲区
func (w *responseWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// 定期清理过期缓存
func init() {
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()

		for range ticker.C {
			cleanExpiredCache()
		}
	}()
}

// cleanExpiredCache 清理过期缓存
func cleanExpiredCache() {
	now := time.Now()

	cache.Lock()
	defer cache.Unlock()

	for key, entry := range cache.items {
		if entry.Expiration.Before(now) {
			delete(cache.items, key)
		}
	}
}
