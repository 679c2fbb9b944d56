package services

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"reefkh-http-service/config"
	"reefkh-http-service/models"
	"reefkh-http-service/utils"
)

// newTestDB 每个测试一个独立的内存数据库
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Device{},
		&models.Measurement{},
		&models.Command{},
		&models.DeviceHealth{},
	))

	return db
}

// newTestConfig 测试配置，外部依赖全部留空
func newTestConfig() *config.Config {
	return &config.Config{
		EnvType:                 "LOCAL",
		JWTSecretKey:            "test-secret",
		JWTRefreshSecretKey:     "test-refresh-secret",
		OfflineThresholdMinutes: 5,
		SweepIntervalSeconds:    30,
		SyncIntervalSeconds:     300,
	}
}

// fakeNotifier 记录通知调用的测试替身
type fakeNotifier struct {
	mu sync.Mutex

	verificationCodes map[string]string
	resetCodes        map[string]string
	offlineAlerts     []string

	failOffline bool
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		verificationCodes: make(map[string]string),
		resetCodes:        make(map[string]string),
	}
}

func (f *fakeNotifier) SendVerificationEmail(email, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verificationCodes[email] = code
	return nil
}

func (f *fakeNotifier) SendPasswordResetEmail(email, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetCodes[email] = code
	return nil
}

func (f *fakeNotifier) SendOfflineAlert(user *models.User, device *models.Device) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOffline {
		return fmt.Errorf("notify failed")
	}
	f.offlineAlerts = append(f.offlineAlerts, device.DeviceID)
	return nil
}

// createVerifiedUser 建一个已验证用户，返回用户与明文密码
func createVerifiedUser(t *testing.T, db *gorm.DB, email string) (*models.User, string) {
	t.Helper()

	password := "correct-horse-battery"
	hash, err := utils.HashPassword(password)
	require.NoError(t, err)

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		IsVerified:   true,
	}
	require.NoError(t, db.Create(user).Error)
	return user, password
}
