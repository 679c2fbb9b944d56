package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"reefkh-http-service/models"
)

func newUserFixture(t *testing.T) (InterfaceUserService, *fakeNotifier, *gorm.DB) {
	t.Helper()

	db := newTestDB(t)
	cfg := newTestConfig()
	notifier := newFakeNotifier()
	return NewUserService(db, cfg, NewJWTService(cfg), notifier), notifier, db
}

// verifyUser 用fakeNotifier捕获的验证码完成验证
func verifyUser(t *testing.T, svc InterfaceUserService, email, code string) {
	t.Helper()
	_, _, err := svc.VerifyEmail(email, code)
	require.NoError(t, err)
}

func TestRegisterVerifyLogin(t *testing.T) {
	svc, notifier, db := newUserFixture(t)

	user, err := svc.Register("new@example.com", "hunter2hunter2")
	require.NoError(t, err)
	assert.False(t, user.IsVerified)

	code := notifier.verificationCodes["new@example.com"]
	require.Len(t, code, 6)

	// 验证码有效期为10分钟
	var stored models.User
	require.NoError(t, db.Where("email = ?", "new@example.com").First(&stored).Error)
	require.NotNil(t, stored.VerificationExpires)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), *stored.VerificationExpires, time.Minute)

	// 未验证前不能登录
	_, _, err = svc.Login("new@example.com", "hunter2hunter2")
	assert.ErrorIs(t, err, ErrUserNotVerified)

	// 错误验证码被拒
	_, _, err = svc.VerifyEmail("new@example.com", "000000")
	if code == "000000" {
		t.Skip("随机验证码恰好撞上占位值")
	}
	assert.ErrorIs(t, err, ErrVerificationCodeInvalid)

	// 验证成功直接拿到访问令牌
	verified, token, err := svc.VerifyEmail("new@example.com", code)
	require.NoError(t, err)
	assert.True(t, verified.IsVerified)
	assert.NotEmpty(t, token)

	// 重复验证是幂等的，同样返回令牌
	_, token2, err := svc.VerifyEmail("new@example.com", code)
	require.NoError(t, err)
	assert.NotEmpty(t, token2)

	logged, token, err := svc.Login("new@example.com", "hunter2hunter2")
	require.NoError(t, err)
	assert.Equal(t, user.ID, logged.ID)
	assert.NotEmpty(t, token)

	// 密码错误
	_, _, err = svc.Login("new@example.com", "wrong")
	assert.ErrorIs(t, err, ErrCredentialsIncorrect)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, _ := newUserFixture(t)

	_, err := svc.Register("dup@example.com", "hunter2hunter2")
	require.NoError(t, err)

	_, err = svc.Register("dup@example.com", "hunter2hunter2")
	assert.ErrorIs(t, err, ErrUserAlreadyExist)
}

func TestResendVerificationCode(t *testing.T) {
	svc, notifier, _ := newUserFixture(t)

	_, err := svc.Register("new@example.com", "hunter2hunter2")
	require.NoError(t, err)
	first := notifier.verificationCodes["new@example.com"]

	require.NoError(t, svc.ResendVerificationCode("new@example.com"))
	second := notifier.verificationCodes["new@example.com"]
	require.Len(t, second, 6)

	// 新验证码生效，旧的作废
	if first != second {
		_, _, err := svc.VerifyEmail("new@example.com", first)
		assert.ErrorIs(t, err, ErrVerificationCodeInvalid)
	}
	verifyUser(t, svc, "new@example.com", second)

	assert.ErrorIs(t, svc.ResendVerificationCode("nobody@example.com"), ErrUserNotFound)
}

func TestPasswordResetFlow(t *testing.T) {
	svc, notifier, _ := newUserFixture(t)

	_, err := svc.Register("new@example.com", "hunter2hunter2")
	require.NoError(t, err)
	verifyUser(t, svc, "new@example.com", notifier.verificationCodes["new@example.com"])

	require.NoError(t, svc.ForgotPassword("new@example.com"))
	code := notifier.resetCodes["new@example.com"]
	require.Len(t, code, 6)

	require.NoError(t, svc.ResetPassword("new@example.com", code, "new-password-123"))

	// 旧密码失效，新密码可登录
	_, _, err = svc.Login("new@example.com", "hunter2hunter2")
	assert.ErrorIs(t, err, ErrCredentialsIncorrect)
	_, _, err = svc.Login("new@example.com", "new-password-123")
	require.NoError(t, err)

	// 验证码一次性，不能重放
	assert.ErrorIs(t, svc.ResetPassword("new@example.com", code, "another-pass"), ErrVerificationCodeInvalid)
}

func TestForgotPasswordSilentOnUnknownEmail(t *testing.T) {
	svc, notifier, _ := newUserFixture(t)

	require.NoError(t, svc.ForgotPassword("nobody@example.com"))
	assert.Empty(t, notifier.resetCodes)
}

func TestUpdateSettingsAllowlist(t *testing.T) {
	svc, notifier, _ := newUserFixture(t)

	user, err := svc.Register("new@example.com", "hunter2hunter2")
	require.NoError(t, err)
	verifyUser(t, svc, "new@example.com", notifier.verificationCodes["new@example.com"])

	updated, err := svc.UpdateSettings(user.ID, map[string]interface{}{
		"telegram_enabled":   true,
		"telegram_bot_token": "123:abc",
		"telegram_chat_id":   "42",
		"timezone":           "UTC",
		"is_verified":        false, // 不在白名单内，应被忽略
		"role":               models.UserRoleDev,
	})
	require.NoError(t, err)
	assert.True(t, updated.TelegramEnabled)
	require.NotNil(t, updated.TelegramBotToken)
	assert.Equal(t, "123:abc", *updated.TelegramBotToken)
	assert.Equal(t, "UTC", updated.Timezone)
	assert.True(t, updated.IsVerified)
	assert.Equal(t, models.UserRoleUser, updated.Role)
}
