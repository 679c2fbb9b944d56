package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"reefkh-http-service/config"
	"reefkh-http-service/models"
	"reefkh-http-service/utils"
)

var (
	// ErrDeviceNotFound 设备不存在
	ErrDeviceNotFound = errors.New("设备不存在")
	// ErrDeviceIDInvalid 设备ID格式不合法
	ErrDeviceIDInvalid = errors.New("设备ID格式不合法")
	// ErrDeviceOwnedByOther 设备已绑定其他用户
	ErrDeviceOwnedByOther = errors.New("设备已绑定其他用户")
	// ErrUserNotVerified 用户邮箱未验证
	ErrUserNotVerified = errors.New("邮箱尚未验证")
	// ErrCredentialsIncorrect 邮箱或密码错误
	ErrCredentialsIncorrect = errors.New("邮箱或密码错误")
)

// InterfaceDeviceService defines the device service interface
type InterfaceDeviceService interface {
	RegisterDevice(email, password, deviceID, name, localIP string) (*models.Device, *models.User, error)
	RegisterDisplay(email, password, displayID, mainDeviceID string) (*models.Device, error)
	EnsureDevice(deviceID string) (*models.Device, error)
	GetDeviceByDeviceID(deviceID string) (*models.Device, error)
	GetDeviceForUser(userID uint, deviceID string) (*models.Device, error)
	GetUserDevices(userID uint) ([]models.Device, error)
	UpdateLastSeen(deviceID, localIP string) error
	SetKhReference(userID uint, deviceID string, value float64) (*models.Device, error)
	SetKhTarget(userID uint, deviceID string, value float64) (*models.Device, error)
	GetKhReference(deviceID string) (float64, error)
	AttachDisplay(deviceID, displayID string) (*models.Device, error)
	GetDeviceByDisplayID(displayID string) (*models.Device, error)
	UpdateDisplayLastSeen(displayID string) error
	RecordHealth(deviceID string, userID *uint, health *models.DeviceHealth) error
}

// DeviceService 提供设备相关的服务
type DeviceService struct {
	DB     *gorm.DB
	Config *config.Config
	Redis  *RedisService // 可为nil，缓存层缺席时直接走库
}

// NewDeviceService 创建一个新的设备服务
func NewDeviceService(db *gorm.DB, cfg *config.Config, redis *RedisService) InterfaceDeviceService {
	return &DeviceService{
		DB:     db,
		Config: cfg,
		Redis:  redis,
	}
}

// authenticateUser 校验邮箱密码与验证状态。设备与显示屏激活共用。
func (s *DeviceService) authenticateUser(email, password string) (*models.User, error) {
	var user models.User
	if err := s.DB.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCredentialsIncorrect
		}
		return nil, err
	}

	if !utils.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrCredentialsIncorrect
	}
	if !user.IsVerified {
		return nil, ErrUserNotVerified
	}

	return &user, nil
}

// RegisterDevice 设备首次激活：校验用户凭据后把设备绑定到用户名下。
// 设备已绑定其他用户时拒绝，不做静默改绑。
func (s *DeviceService) RegisterDevice(email, password, deviceID, name, localIP string) (*models.Device, *models.User, error) {
	if !models.ValidateDeviceID(deviceID) {
		return nil, nil, ErrDeviceIDInvalid
	}

	user, err := s.authenticateUser(email, password)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()

	var device models.Device
	err = s.DB.Where("device_id = ?", deviceID).First(&device).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		device = models.Device{
			DeviceID: deviceID,
			UserID:   &user.ID,
			Name:     name,
			LocalIP:  &localIP,
			LastSeen: &now,
		}
		if device.Name == "" {
			device.Name = "KH Monitor"
		}
		if err := s.DB.Create(&device).Error; err != nil {
			return nil, nil, err
		}
		return &device, user, nil
	}
	if err != nil {
		return nil, nil, err
	}

	if device.UserID != nil && *device.UserID != user.ID {
		return nil, nil, ErrDeviceOwnedByOther
	}

	updates := map[string]interface{}{
		"user_id":            user.ID,
		"local_ip":           localIP,
		"last_seen":          now,
		"offline_alert_sent": false,
	}
	if name != "" {
		updates["name"] = name
	}
	if err := s.DB.Model(&device).Updates(updates).Error; err != nil {
		return nil, nil, err
	}

	return &device, user, nil
}

// EnsureDevice 按deviceId取设备，不存在时自动建档。
// 遥测先于注册到达时走这条路，设备归属留空等注册时补。
func (s *DeviceService) EnsureDevice(deviceID string) (*models.Device, error) {
	if !models.ValidateDeviceID(deviceID) {
		return nil, ErrDeviceIDInvalid
	}

	var device models.Device
	err := s.DB.Where("device_id = ?", deviceID).First(&device).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		device = models.Device{
			DeviceID: deviceID,
			Name:     "KH Auto-Register",
		}
		if err := s.DB.Create(&device).Error; err != nil {
			return nil, err
		}
		return &device, nil
	}
	if err != nil {
		return nil, err
	}

	return &device, nil
}

// GetDeviceByDeviceID 根据外部deviceId获取设备
func (s *DeviceService) GetDeviceByDeviceID(deviceID string) (*models.Device, error) {
	var device models.Device
	if err := s.DB.Where("device_id = ?", deviceID).First(&device).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}

	return &device, nil
}

// GetDeviceForUser 获取设备并校验归属
func (s *DeviceService) GetDeviceForUser(userID uint, deviceID string) (*models.Device, error) {
	device, err := s.GetDeviceByDeviceID(deviceID)
	if err != nil {
		return nil, err
	}
	if device.UserID == nil || *device.UserID != userID {
		return nil, ErrDeviceNotFound
	}

	return device, nil
}

// GetUserDevices 获取用户名下所有设备
func (s *DeviceService) GetUserDevices(userID uint) ([]models.Device, error) {
	var devices []models.Device
	if err := s.DB.Where("user_id = ?", userID).Order("created_at ASC").Find(&devices).Error; err != nil {
		return nil, err
	}

	return devices, nil
}

// UpdateLastSeen 记录设备通信时间。任何已认证的设备请求都会触发，
// 同时清除离线告警标志，让下一个离线周期可以重新告警。
func (s *DeviceService) UpdateLastSeen(deviceID, localIP string) error {
	updates := map[string]interface{}{
		"last_seen":          time.Now(),
		"offline_alert_sent": false,
	}
	if localIP != "" {
		updates["local_ip"] = localIP
	}

	return s.DB.Model(&models.Device{}).Where("device_id = ?", deviceID).Updates(updates).Error
}

// SetKhReference 设置设备KH参考值并刷新缓存
func (s *DeviceService) SetKhReference(userID uint, deviceID string, value float64) (*models.Device, error) {
	device, err := s.GetDeviceForUser(userID, deviceID)
	if err != nil {
		return nil, err
	}

	if err := s.DB.Model(device).Update("kh_reference", value).Error; err != nil {
		return nil, err
	}
	device.KhReference = &value

	if s.Redis != nil {
		if err := s.Redis.CacheKhReference(deviceID, value); err != nil {
			// 缓存失败不阻塞主流程
			config.Warning("刷新KH参考缓存失败: device=%s, err=%v", deviceID, err)
		}
	}

	return device, nil
}

// SetKhTarget 设置设备KH目标值
func (s *DeviceService) SetKhTarget(userID uint, deviceID string, value float64) (*models.Device, error) {
	device, err := s.GetDeviceForUser(userID, deviceID)
	if err != nil {
		return nil, err
	}

	if err := s.DB.Model(device).Update("kh_target", value).Error; err != nil {
		return nil, err
	}
	device.KhTarget = &value

	return device, nil
}

// GetKhReference 设备侧读取KH参考值，优先走缓存。
// 未配置时返回默认值8.0。
func (s *DeviceService) GetKhReference(deviceID string) (float64, error) {
	if s.Redis != nil {
		if value, err := s.Redis.GetKhReference(deviceID); err == nil {
			return value, nil
		}
	}

	device, err := s.GetDeviceByDeviceID(deviceID)
	if err != nil {
		return 0, err
	}

	value := 8.0
	if device.KhReference != nil {
		value = *device.KhReference
	}

	if s.Redis != nil {
		if err := s.Redis.CacheKhReference(deviceID, value); err != nil {
			config.Warning("写入KH参考缓存失败: device=%s, err=%v", deviceID, err)
		}
	}

	return value, nil
}

// RegisterDisplay 显示屏激活：校验用户凭据与主设备归属后写入绑定。
// 非本人的主设备和不存在的设备一样返回不存在，不泄露设备信息。
func (s *DeviceService) RegisterDisplay(email, password, displayID, mainDeviceID string) (*models.Device, error) {
	if !models.ValidateDeviceID(displayID) {
		return nil, ErrDeviceIDInvalid
	}

	user, err := s.authenticateUser(email, password)
	if err != nil {
		return nil, err
	}

	if _, err := s.GetDeviceForUser(user.ID, mainDeviceID); err != nil {
		return nil, err
	}

	return s.AttachDisplay(mainDeviceID, displayID)
}

// AttachDisplay 把显示屏绑定到主设备
func (s *DeviceService) AttachDisplay(deviceID, displayID string) (*models.Device, error) {
	device, err := s.GetDeviceByDeviceID(deviceID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	updates := map[string]interface{}{
		"display_id":        displayID,
		"display_last_seen": now,
	}
	if err := s.DB.Model(device).Updates(updates).Error; err != nil {
		return nil, err
	}
	device.DisplayID = &displayID
	device.DisplayLastSeen = &now

	return device, nil
}

// GetDeviceByDisplayID 根据显示屏ID查主设备
func (s *DeviceService) GetDeviceByDisplayID(displayID string) (*models.Device, error) {
	var device models.Device
	if err := s.DB.Where("display_id = ?", displayID).First(&device).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}

	return &device, nil
}

// UpdateDisplayLastSeen 记录显示屏心跳时间
func (s *DeviceService) UpdateDisplayLastSeen(displayID string) error {
	return s.DB.Model(&models.Device{}).
		Where("display_id = ?", displayID).
		Update("display_last_seen", time.Now()).Error
}

// RecordHealth 记录设备健康上报
func (s *DeviceService) RecordHealth(deviceID string, userID *uint, health *models.DeviceHealth) error {
	health.DeviceID = deviceID
	health.UserID = userID
	return s.DB.Create(health).Error
}
