package models

import (
	"regexp"
	"time"
)

// DeviceStatus 设备在线状态（由last_seen推导，不落库）
type DeviceStatus string

const (
	DeviceStatusOnline  DeviceStatus = "online"
	DeviceStatusOffline DeviceStatus = "offline"
	DeviceStatusNever   DeviceStatus = "never"
)

// deviceIDPattern 设备ID格式：字母数字加连字符，10-50位
var deviceIDPattern = regexp.MustCompile(`^[a-zA-Z0-9-]{10,50}$`)

// ValidateDeviceID 校验外部deviceId格式
func ValidateDeviceID(deviceID string) bool {
	return deviceIDPattern.MatchString(deviceID)
}

// Device KH监测/补液设备。外部deviceId为稳定标识，与内部自增ID区分。
// 首次注册或首次遥测同步时隐式创建（auto-register），正常流程中不做硬删除。
type Device struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	DeviceID string `gorm:"type:varchar(50);unique;not null" json:"device_id"`
	UserID   *uint  `gorm:"index" json:"user_id,omitempty"`
	Name     string `gorm:"type:varchar(100)" json:"name"`

	// 最近一次通信信息
	LocalIP  *string    `gorm:"type:varchar(45)" json:"local_ip,omitempty"`
	LastSeen *time.Time `json:"last_seen,omitempty"`

	// 离线告警标志：每个离线周期只发一次告警；设备恢复通信时清零
	OfflineAlertSent bool `gorm:"default:false" json:"offline_alert_sent"`

	// KH配置
	KhReference *float64 `gorm:"type:decimal(5,2)" json:"kh_reference,omitempty"`
	KhTarget    *float64 `gorm:"type:decimal(5,2)" json:"kh_target,omitempty"`

	// 伴侣显示屏
	DisplayID       *string    `gorm:"type:varchar(50)" json:"display_id,omitempty"`
	DisplayLastSeen *time.Time `json:"display_last_seen,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	User         *User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Commands     []Command      `gorm:"foreignKey:DeviceID;references:DeviceID" json:"commands,omitempty"`
	Measurements []Measurement  `gorm:"foreignKey:DeviceID;references:DeviceID" json:"measurements,omitempty"`
	HealthLogs   []DeviceHealth `gorm:"foreignKey:DeviceID;references:DeviceID" json:"health_logs,omitempty"`
}

// Status 根据last_seen与阈值推导设备在线状态
func (d *Device) Status(threshold time.Duration) DeviceStatus {
	if d.LastSeen == nil {
		return DeviceStatusNever
	}
	if time.Since(*d.LastSeen) > threshold {
		return DeviceStatusOffline
	}
	return DeviceStatusOnline
}
