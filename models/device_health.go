package models

import (
	"time"
)

// DeviceHealth 设备健康上报，按report追加的时间序列，从不修改。
type DeviceHealth struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	UserID   *uint  `gorm:"index" json:"user_id,omitempty"`
	DeviceID string `gorm:"type:varchar(50);index;not null" json:"device_id"`

	CpuUsage      float64  `json:"cpu_usage"`
	MemUsage      float64  `json:"mem_usage"`
	StorageUsage  *float64 `json:"storage_usage,omitempty"`
	WifiRssi      *int     `json:"wifi_rssi,omitempty"`
	UptimeSeconds int64    `json:"uptime_seconds"`

	CreatedAt time.Time `json:"created_at"`
}
