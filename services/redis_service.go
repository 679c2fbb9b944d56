package services

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"reefkh-http-service/config"
)

// RedisService handles Redis operations
type RedisService struct {
	Client *redis.Client
	Ctx    context.Context
}

// NewRedisService creates a new Redis service
func NewRedisService(cfg *config.Config) *RedisService {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.GetRedisAddr(),
		Password: "", // No password set
		DB:       cfg.RedisDB,
	})

	ctx := context.Background()

	return &RedisService{
		Client: client,
		Ctx:    ctx,
	}
}

// Set sets a key-value pair in Redis with expiration
func (s *RedisService) Set(key string, value interface{}, expiration time.Duration) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return s.Client.Set(s.Ctx, key, jsonValue, expiration).Err()
}

// Get gets a value from Redis by key
func (s *RedisService) Get(key string, dest interface{}) error {
	val, err := s.Client.Get(s.Ctx, key).Result()
	if err != nil {
		return err
	}

	return json.Unmarshal([]byte(val), dest)
}

// Delete deletes a key from Redis
func (s *RedisService) Delete(key string) error {
	return s.Client.Del(s.Ctx, key).Err()
}

// CacheLatestMeasurement 缓存设备最近一次测量，供显示屏ping快速读取
func (s *RedisService) CacheLatestMeasurement(deviceID string, measurement interface{}) error {
	key := "latest_measurement:" + deviceID
	return s.Set(key, measurement, time.Hour)
}

// GetLatestMeasurement 读取设备最近一次测量缓存
func (s *RedisService) GetLatestMeasurement(deviceID string, dest interface{}) error {
	key := "latest_measurement:" + deviceID
	return s.Get(key, dest)
}

// CacheKhReference 缓存设备的KH参考配置
func (s *RedisService) CacheKhReference(deviceID string, value float64) error {
	key := "kh_reference:" + deviceID
	return s.Client.Set(s.Ctx, key, strconv.FormatFloat(value, 'f', -1, 64), time.Hour).Err()
}

// GetKhReference 读取设备KH参考配置缓存
func (s *RedisService) GetKhReference(deviceID string) (float64, error) {
	key := "kh_reference:" + deviceID
	val, err := s.Client.Get(s.Ctx, key).Result()
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(val, 64)
}

// InvalidateDevice 设备配置变更后清除相关缓存
func (s *RedisService) InvalidateDevice(deviceID string) error {
	return s.Client.Del(s.Ctx,
		"latest_measurement:"+deviceID,
		"kh_reference:"+deviceID,
	).Err()
}
