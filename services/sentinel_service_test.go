package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"reefkh-http-service/models"
)

func newSentinelFixture(t *testing.T) (InterfaceSentinelService, *fakeNotifier, *gorm.DB) {
	t.Helper()

	db := newTestDB(t)
	notifier := newFakeNotifier()
	return NewSentinelService(db, newTestConfig(), notifier), notifier, db
}

func seedOfflineDevice(t *testing.T, db *gorm.DB, deviceID string, userID uint, silentFor time.Duration) {
	t.Helper()

	lastSeen := time.Now().Add(-silentFor)
	device := &models.Device{
		DeviceID: deviceID,
		Name:     "Tank",
		UserID:   &userID,
		LastSeen: &lastSeen,
	}
	require.NoError(t, db.Create(device).Error)
}

func TestSweepAlertsOncePerEpisode(t *testing.T) {
	svc, notifier, db := newSentinelFixture(t)

	user, _ := createVerifiedUser(t, db, "owner@example.com")
	seedOfflineDevice(t, db, "reefkh-silent0001", user.ID, time.Hour)

	alerted, err := svc.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 1, alerted)
	assert.Equal(t, []string{"reefkh-silent0001"}, notifier.offlineAlerts)

	// 标志已置位，同一离线周期不再重复告警
	alerted, err = svc.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 0, alerted)
	assert.Len(t, notifier.offlineAlerts, 1)
}

func TestSweepSkipsRecentAndUnclaimedDevices(t *testing.T) {
	svc, notifier, db := newSentinelFixture(t)

	user, _ := createVerifiedUser(t, db, "owner@example.com")

	// 最近活跃的设备不告警
	seedOfflineDevice(t, db, "reefkh-active0001", user.ID, time.Minute)

	// 无主设备不告警
	lastSeen := time.Now().Add(-time.Hour)
	require.NoError(t, db.Create(&models.Device{
		DeviceID: "reefkh-orphan0001",
		Name:     "KH Auto-Register",
		LastSeen: &lastSeen,
	}).Error)

	// 从未上线的设备没有离线可言
	require.NoError(t, db.Create(&models.Device{
		DeviceID: "reefkh-nevers0001",
		Name:     "Tank",
		UserID:   &user.ID,
	}).Error)

	alerted, err := svc.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 0, alerted)
	assert.Empty(t, notifier.offlineAlerts)
}

func TestSweepRetriesAfterNotifyFailure(t *testing.T) {
	svc, notifier, db := newSentinelFixture(t)

	user, _ := createVerifiedUser(t, db, "owner@example.com")
	seedOfflineDevice(t, db, "reefkh-flaky00001", user.ID, time.Hour)

	// 通知失败时不置位标志，下一轮重试
	notifier.failOffline = true
	alerted, err := svc.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 0, alerted)

	var device models.Device
	require.NoError(t, db.Where("device_id = ?", "reefkh-flaky00001").First(&device).Error)
	assert.False(t, device.OfflineAlertSent)

	notifier.failOffline = false
	alerted, err = svc.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 1, alerted)
}

func TestRecoveryRearmsAlert(t *testing.T) {
	svc, notifier, db := newSentinelFixture(t)

	cfg := newTestConfig()
	deviceService := NewDeviceService(db, cfg, nil)

	user, _ := createVerifiedUser(t, db, "owner@example.com")
	seedOfflineDevice(t, db, "reefkh-cycle00001", user.ID, time.Hour)

	_, err := svc.Sweep()
	require.NoError(t, err)
	require.Len(t, notifier.offlineAlerts, 1)

	// 设备恢复通信，标志清零
	require.NoError(t, deviceService.UpdateLastSeen("reefkh-cycle00001", ""))

	var device models.Device
	require.NoError(t, db.Where("device_id = ?", "reefkh-cycle00001").First(&device).Error)
	assert.False(t, device.OfflineAlertSent)

	// 再次静默超阈值后可以重新告警
	silentAgain := time.Now().Add(-time.Hour)
	require.NoError(t, db.Model(&device).Update("last_seen", silentAgain).Error)

	alerted, err := svc.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 1, alerted)
	assert.Len(t, notifier.offlineAlerts, 2)
}

func TestStartStop(t *testing.T) {
	svc, _, _ := newSentinelFixture(t)

	svc.Start()
	svc.Stop()
	// 重复Stop安全
	svc.Stop()
}
