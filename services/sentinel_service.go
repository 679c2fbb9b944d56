package services

import (
	"sync"
	"time"

	"gorm.io/gorm"

	"reefkh-http-service/config"
	"reefkh-http-service/models"
)

// InterfaceSentinelService defines the offline sweep service interface
type InterfaceSentinelService interface {
	Start()
	Stop()
	Sweep() (alerted int, err error)
}

// SentinelService 离线哨兵。定期扫描静默超过阈值的设备，
// 每个离线周期只发一次告警；设备恢复通信后标志清零，
// 下一个离线周期可以重新告警。
type SentinelService struct {
	DB       *gorm.DB
	Config   *config.Config
	Notifier InterfaceNotifierService

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSentinelService 创建一个新的离线哨兵服务
func NewSentinelService(db *gorm.DB, cfg *config.Config, notifier InterfaceNotifierService) InterfaceSentinelService {
	return &SentinelService{
		DB:       db,
		Config:   cfg,
		Notifier: notifier,
		stopCh:   make(chan struct{}),
	}
}

// Start 启动后台扫描循环
func (s *SentinelService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.Config.SweepInterval())
		defer ticker.Stop()

		config.Info("离线哨兵已启动: 阈值=%v, 扫描周期=%v", s.Config.OfflineThreshold(), s.Config.SweepInterval())

		for {
			select {
			case <-ticker.C:
				if _, err := s.Sweep(); err != nil {
					config.Error("离线扫描失败: %v", err)
				}
			case <-s.stopCh:
				return
			}
		}
	}()
}

// Stop 停止扫描循环并等待退出
func (s *SentinelService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
}

// Sweep 执行一轮离线扫描。告警标志只在通知成功后置位，
// 通知失败的设备留到下一轮重试；单个设备的失败不影响其余设备。
func (s *SentinelService) Sweep() (int, error) {
	cutoff := time.Now().Add(-s.Config.OfflineThreshold())

	var devices []models.Device
	if err := s.DB.Where("last_seen IS NOT NULL AND last_seen < ? AND offline_alert_sent = ? AND user_id IS NOT NULL",
		cutoff, false).Find(&devices).Error; err != nil {
		return 0, err
	}

	alerted := 0
	for i := range devices {
		device := &devices[i]

		var user models.User
		if err := s.DB.First(&user, *device.UserID).Error; err != nil {
			config.Warning("离线告警查用户失败: device=%s, err=%v", device.DeviceID, err)
			continue
		}

		if err := s.Notifier.SendOfflineAlert(&user, device); err != nil {
			config.Warning("离线告警发送失败: device=%s, err=%v", device.DeviceID, err)
			continue
		}

		if err := s.DB.Model(device).Update("offline_alert_sent", true).Error; err != nil {
			config.Warning("更新离线告警标志失败: device=%s, err=%v", device.DeviceID, err)
			continue
		}

		config.Info("已发送离线告警: device=%s, last_seen=%v", device.DeviceID, device.LastSeen)
		alerted++
	}

	return alerted, nil
}
