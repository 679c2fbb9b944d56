package services

import (
	"errors"

	"gorm.io/gorm"

	"reefkh-http-service/config"
	"reefkh-http-service/models"
)

// MeasurementEntry 设备sync上报的单条测量
type MeasurementEntry struct {
	Kh          *float64 `json:"kh"`
	PhRef       *float64 `json:"phref,omitempty"`
	PhSample    *float64 `json:"phsample,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Timestamp   int64    `json:"timestamp"`
	Status      *string  `json:"status,omitempty"`
	Confidence  *float64 `json:"confidence,omitempty"`
}

// InterfaceTelemetryService defines the telemetry ingest service interface
type InterfaceTelemetryService interface {
	SyncMeasurements(deviceID, localIP string, entries []MeasurementEntry) (synced, failed int, err error)
	History(userID uint, deviceID string, limit int, from, to int64) ([]models.Measurement, error)
	Latest(deviceID string) (*models.Measurement, error)
}

// TelemetryService 遥测入库服务。批量上报逐行容错：坏行计入failed，
// 好行照常入库，整批不因个别脏数据被拒。
type TelemetryService struct {
	DB            *gorm.DB
	Config        *config.Config
	DeviceService InterfaceDeviceService
	Redis         *RedisService // 可为nil
}

// NewTelemetryService 创建一个新的遥测服务
func NewTelemetryService(db *gorm.DB, cfg *config.Config, deviceService InterfaceDeviceService, redis *RedisService) InterfaceTelemetryService {
	return &TelemetryService{
		DB:            db,
		Config:        cfg,
		DeviceService: deviceService,
		Redis:         redis,
	}
}

// validateEntry 单条测量的最低要求：kh存在且为正数，时间戳为正
func validateEntry(entry *MeasurementEntry) bool {
	if entry.Kh == nil || *entry.Kh <= 0 {
		return false
	}
	return entry.Timestamp > 0
}

// SyncMeasurements 设备批量上报测量。设备不存在时自动建档，
// 上报完成后刷新last_seen与最新测量缓存。
func (s *TelemetryService) SyncMeasurements(deviceID, localIP string, entries []MeasurementEntry) (int, int, error) {
	if _, err := s.DeviceService.EnsureDevice(deviceID); err != nil {
		return 0, 0, err
	}

	synced := 0
	failed := 0
	var latest *models.Measurement

	for i := range entries {
		entry := &entries[i]
		if !validateEntry(entry) {
			failed++
			continue
		}

		m := models.Measurement{
			DeviceID:    deviceID,
			Kh:          *entry.Kh,
			PhRef:       entry.PhRef,
			PhSample:    entry.PhSample,
			Temperature: entry.Temperature,
			Timestamp:   entry.Timestamp,
			Status:      entry.Status,
			Confidence:  entry.Confidence,
		}
		if err := s.DB.Create(&m).Error; err != nil {
			config.Warning("测量入库失败: device=%s, timestamp=%d, err=%v", deviceID, entry.Timestamp, err)
			failed++
			continue
		}

		synced++
		if latest == nil || m.Timestamp > latest.Timestamp {
			latest = &m
		}
	}

	if err := s.DeviceService.UpdateLastSeen(deviceID, localIP); err != nil {
		config.Warning("更新last_seen失败: device=%s, err=%v", deviceID, err)
	}

	if latest != nil && s.Redis != nil {
		if err := s.Redis.CacheLatestMeasurement(deviceID, latest); err != nil {
			config.Warning("刷新最新测量缓存失败: device=%s, err=%v", deviceID, err)
		}
	}

	return synced, failed, nil
}

// History 用户查询设备测量历史，按设备时间戳倒序。
// from/to为设备时间戳（毫秒）的闭区间过滤，0表示不限。
func (s *TelemetryService) History(userID uint, deviceID string, limit int, from, to int64) ([]models.Measurement, error) {
	if _, err := s.DeviceService.GetDeviceForUser(userID, deviceID); err != nil {
		return nil, err
	}

	if limit <= 0 || limit > 500 {
		limit = 500
	}

	query := s.DB.Where("device_id = ?", deviceID)
	if from > 0 {
		query = query.Where("timestamp >= ?", from)
	}
	if to > 0 {
		query = query.Where("timestamp <= ?", to)
	}

	var measurements []models.Measurement
	if err := query.
		Order("timestamp DESC").
		Limit(limit).
		Find(&measurements).Error; err != nil {
		return nil, err
	}

	return measurements, nil
}

// Latest 读取设备最近一条测量，优先走缓存。显示屏ping用它
// 拿当前KH读数。
func (s *TelemetryService) Latest(deviceID string) (*models.Measurement, error) {
	if s.Redis != nil {
		var cached models.Measurement
		if err := s.Redis.GetLatestMeasurement(deviceID, &cached); err == nil && cached.DeviceID == deviceID {
			return &cached, nil
		}
	}

	var m models.Measurement
	err := s.DB.Where("device_id = ?", deviceID).
		Order("timestamp DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if s.Redis != nil {
		if err := s.Redis.CacheLatestMeasurement(deviceID, &m); err != nil {
			config.Warning("刷新最新测量缓存失败: device=%s, err=%v", deviceID, err)
		}
	}

	return &m, nil
}
