package models

import (
	"time"
)

// UserRole 用户角色
type UserRole string

const (
	UserRoleUser UserRole = "user"
	UserRoleDev  UserRole = "dev"
)

// User 平台用户（通过dashboard登录，拥有若干KH监测设备）
type User struct {
	ID           uint     `gorm:"primaryKey" json:"id"`
	Email        string   `gorm:"type:varchar(100);unique;not null" json:"email"`
	PasswordHash string   `gorm:"type:varchar(100);not null" json:"-"`
	Role         UserRole `gorm:"type:varchar(20);default:'user'" json:"role"`

	// 邮箱验证状态：注册后未验证，通过验证码交换后变为已验证
	IsVerified          bool       `gorm:"default:false" json:"is_verified"`
	VerificationCode    *string    `gorm:"type:varchar(10)" json:"-"`
	VerificationExpires *time.Time `json:"-"`

	// 告警通知配置
	EmailEnabled     bool    `gorm:"default:true" json:"email_enabled"`
	TelegramEnabled  bool    `gorm:"default:false" json:"telegram_enabled"`
	TelegramBotToken *string `gorm:"type:varchar(100)" json:"-"`
	TelegramChatID   *string `gorm:"type:varchar(50)" json:"-"`

	Timezone string `gorm:"type:varchar(50);default:'America/Sao_Paulo'" json:"timezone"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Devices []Device `gorm:"foreignKey:UserID" json:"devices,omitempty"`
}
