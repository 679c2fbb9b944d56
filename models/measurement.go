package models

import (
	"time"
)

// Measurement 一次KH测量。只通过设备sync批量写入，入库后不可变。
// Timestamp为设备侧的epoch毫秒时间戳。
type Measurement struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	DeviceID string `gorm:"type:varchar(50);index;not null" json:"device_id"`

	Kh          float64  `gorm:"not null" json:"kh"`
	PhRef       *float64 `json:"phref,omitempty"`
	PhSample    *float64 `json:"phsample,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`

	Timestamp  int64    `gorm:"not null;index" json:"timestamp"`
	Status     *string  `gorm:"type:varchar(20)" json:"status,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
