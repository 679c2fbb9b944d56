package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"reefkh-http-service/models"
)

func newTelemetryFixture(t *testing.T) (InterfaceTelemetryService, InterfaceDeviceService, *gorm.DB) {
	t.Helper()

	db := newTestDB(t)
	cfg := newTestConfig()
	deviceService := NewDeviceService(db, cfg, nil)
	return NewTelemetryService(db, cfg, deviceService, nil), deviceService, db
}

func floatPtr(v float64) *float64 { return &v }

func TestSyncAutoRegistersDevice(t *testing.T) {
	svc, _, db := newTelemetryFixture(t)

	synced, failed, err := svc.SyncMeasurements("reefkh-unknown01", "192.168.1.50", []MeasurementEntry{
		{Kh: floatPtr(7.8), Timestamp: time.Now().UnixMilli()},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, synced)
	assert.Equal(t, 0, failed)

	var device models.Device
	require.NoError(t, db.Where("device_id = ?", "reefkh-unknown01").First(&device).Error)
	assert.Equal(t, "KH Auto-Register", device.Name)
	assert.Nil(t, device.UserID)
	require.NotNil(t, device.LastSeen)
}

func TestSyncTolerantRowByRow(t *testing.T) {
	svc, _, db := newTelemetryFixture(t)

	now := time.Now().UnixMilli()
	synced, failed, err := svc.SyncMeasurements("reefkh-unknown01", "", []MeasurementEntry{
		{Kh: floatPtr(8.1), Timestamp: now},
		{Kh: nil, Timestamp: now + 1},          // 缺kh
		{Kh: floatPtr(-1), Timestamp: now + 2}, // kh非正
		{Kh: floatPtr(8.2), Timestamp: 0},      // 缺时间戳
		{Kh: floatPtr(8.3), Timestamp: now + 3},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, synced)
	assert.Equal(t, 3, failed)

	var count int64
	require.NoError(t, db.Model(&models.Measurement{}).Where("device_id = ?", "reefkh-unknown01").Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestSyncClearsOfflineFlag(t *testing.T) {
	svc, _, db := newTelemetryFixture(t)

	past := time.Now().Add(-time.Hour)
	device := &models.Device{
		DeviceID:         "reefkh-flagged001",
		Name:             "Tank",
		LastSeen:         &past,
		OfflineAlertSent: true,
	}
	require.NoError(t, db.Create(device).Error)

	_, _, err := svc.SyncMeasurements("reefkh-flagged001", "", []MeasurementEntry{
		{Kh: floatPtr(8.0), Timestamp: time.Now().UnixMilli()},
	})
	require.NoError(t, err)

	var reloaded models.Device
	require.NoError(t, db.Where("device_id = ?", "reefkh-flagged001").First(&reloaded).Error)
	assert.False(t, reloaded.OfflineAlertSent)
	require.NotNil(t, reloaded.LastSeen)
	assert.True(t, reloaded.LastSeen.After(past))
}

func TestHistoryRequiresOwnership(t *testing.T) {
	svc, _, db := newTelemetryFixture(t)

	owner, _ := createVerifiedUser(t, db, "owner@example.com")
	stranger, _ := createVerifiedUser(t, db, "stranger@example.com")
	device := &models.Device{DeviceID: "reefkh-owned00001", UserID: &owner.ID, Name: "Tank"}
	require.NoError(t, db.Create(device).Error)

	now := time.Now().UnixMilli()
	_, _, err := svc.SyncMeasurements("reefkh-owned00001", "", []MeasurementEntry{
		{Kh: floatPtr(7.9), Timestamp: now},
		{Kh: floatPtr(8.0), Timestamp: now + 1000},
	})
	require.NoError(t, err)

	measurements, err := svc.History(owner.ID, "reefkh-owned00001", 10, 0, 0)
	require.NoError(t, err)
	require.Len(t, measurements, 2)
	// 时间戳倒序
	assert.Equal(t, now+1000, measurements[0].Timestamp)

	_, err = svc.History(stranger.ID, "reefkh-owned00001", 10, 0, 0)
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestHistoryTimeRange(t *testing.T) {
	svc, _, db := newTelemetryFixture(t)

	owner, _ := createVerifiedUser(t, db, "owner@example.com")
	device := &models.Device{DeviceID: "reefkh-ranged0001", UserID: &owner.ID, Name: "Tank"}
	require.NoError(t, db.Create(device).Error)

	base := int64(1_700_000_000_000)
	_, _, err := svc.SyncMeasurements("reefkh-ranged0001", "", []MeasurementEntry{
		{Kh: floatPtr(7.8), Timestamp: base},
		{Kh: floatPtr(7.9), Timestamp: base + 1000},
		{Kh: floatPtr(8.0), Timestamp: base + 2000},
		{Kh: floatPtr(8.1), Timestamp: base + 3000},
	})
	require.NoError(t, err)

	// from/to为闭区间
	window, err := svc.History(owner.ID, "reefkh-ranged0001", 10, base+1000, base+2000)
	require.NoError(t, err)
	require.Len(t, window, 2)
	assert.Equal(t, base+2000, window[0].Timestamp)
	assert.Equal(t, base+1000, window[1].Timestamp)

	// 只给下界
	tail, err := svc.History(owner.ID, "reefkh-ranged0001", 10, base+3000, 0)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, base+3000, tail[0].Timestamp)

	// 只给上界
	head, err := svc.History(owner.ID, "reefkh-ranged0001", 10, 0, base)
	require.NoError(t, err)
	require.Len(t, head, 1)
	assert.Equal(t, base, head[0].Timestamp)
}

func TestLatest(t *testing.T) {
	svc, _, _ := newTelemetryFixture(t)

	// 无数据时返回nil而不是错误
	latest, err := svc.Latest("reefkh-empty00001")
	require.NoError(t, err)
	assert.Nil(t, latest)

	now := time.Now().UnixMilli()
	_, _, err = svc.SyncMeasurements("reefkh-empty00001", "", []MeasurementEntry{
		{Kh: floatPtr(7.5), Timestamp: now - 1000},
		{Kh: floatPtr(7.7), Timestamp: now},
	})
	require.NoError(t, err)

	latest, err = svc.Latest("reefkh-empty00001")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 7.7, latest.Kh)
}
