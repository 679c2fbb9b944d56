package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"reefkh-http-service/config"
	"reefkh-http-service/models"
	"reefkh-http-service/utils"
)

// 验证码有效期
const verificationCodeTTL = 10 * time.Minute

var (
	// ErrUserNotFound 用户不存在
	ErrUserNotFound = errors.New("用户不存在")
	// ErrUserAlreadyExist 邮箱已注册
	ErrUserAlreadyExist = errors.New("用户已存在")
	// ErrVerificationCodeInvalid 验证码无效或已过期
	ErrVerificationCodeInvalid = errors.New("验证码无效或已过期")
)

// InterfaceUserService defines the user service interface
type InterfaceUserService interface {
	Register(email, password string) (*models.User, error)
	Login(email, password string) (*models.User, string, error)
	VerifyEmail(email, code string) (*models.User, string, error)
	ResendVerificationCode(email string) error
	ForgotPassword(email string) error
	ResetPassword(email, code, newPassword string) error
	GetUserByID(id uint) (*models.User, error)
	UpdateSettings(id uint, updates map[string]interface{}) (*models.User, error)
}

// UserService 提供用户注册登录与验证相关的服务
type UserService struct {
	DB         *gorm.DB
	Config     *config.Config
	JWTService InterfaceJWTService
	Notifier   InterfaceNotifierService
}

// NewUserService 创建一个新的用户服务
func NewUserService(db *gorm.DB, cfg *config.Config, jwtService InterfaceJWTService, notifier InterfaceNotifierService) InterfaceUserService {
	return &UserService{
		DB:         db,
		Config:     cfg,
		JWTService: jwtService,
		Notifier:   notifier,
	}
}

// issueVerificationCode 生成验证码并写入用户记录
func (s *UserService) issueVerificationCode(user *models.User) (string, error) {
	code := utils.RandomVerificationCode()
	expires := time.Now().Add(verificationCodeTTL)

	if err := s.DB.Model(user).Updates(map[string]interface{}{
		"verification_code":    code,
		"verification_expires": expires,
	}).Error; err != nil {
		return "", err
	}

	return code, nil
}

// checkVerificationCode 校验验证码与有效期
func (s *UserService) checkVerificationCode(user *models.User, code string) bool {
	if user.VerificationCode == nil || user.VerificationExpires == nil {
		return false
	}
	if *user.VerificationCode != code {
		return false
	}
	return user.VerificationExpires.After(time.Now())
}

// Register 注册新用户并发送验证码邮件
func (s *UserService) Register(email, password string) (*models.User, error) {
	var count int64
	if err := s.DB.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrUserAlreadyExist
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		Role:         models.UserRoleUser,
	}
	if err := s.DB.Create(user).Error; err != nil {
		return nil, err
	}

	code, err := s.issueVerificationCode(user)
	if err != nil {
		return nil, err
	}

	if err := s.Notifier.SendVerificationEmail(email, code); err != nil {
		// 邮件失败不回滚注册，用户可以请求重发
		config.Warning("验证码邮件发送失败: email=%s, err=%v", email, err)
	}

	return user, nil
}

// Login 用户登录，校验密码与验证状态后签发访问令牌
func (s *UserService) Login(email, password string) (*models.User, string, error) {
	var user models.User
	if err := s.DB.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrCredentialsIncorrect
		}
		return nil, "", err
	}

	if !utils.CheckPasswordHash(password, user.PasswordHash) {
		return nil, "", ErrCredentialsIncorrect
	}
	if !user.IsVerified {
		return nil, "", ErrUserNotVerified
	}

	token, err := s.JWTService.GenerateUserToken(user.ID)
	if err != nil {
		return nil, "", err
	}

	return &user, token, nil
}

// VerifyEmail 用验证码完成邮箱验证，成功后直接签发访问令牌，
// 让客户端免去一次登录往返。重复验证是幂等的，同样返回令牌。
func (s *UserService) VerifyEmail(email, code string) (*models.User, string, error) {
	var user models.User
	if err := s.DB.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrUserNotFound
		}
		return nil, "", err
	}

	if !user.IsVerified {
		if !s.checkVerificationCode(&user, code) {
			return nil, "", ErrVerificationCodeInvalid
		}

		if err := s.DB.Model(&user).Updates(map[string]interface{}{
			"is_verified":          true,
			"verification_code":    nil,
			"verification_expires": nil,
		}).Error; err != nil {
			return nil, "", err
		}
		user.IsVerified = true
	}

	token, err := s.JWTService.GenerateUserToken(user.ID)
	if err != nil {
		return nil, "", err
	}

	return &user, token, nil
}

// ResendVerificationCode 重发验证码
func (s *UserService) ResendVerificationCode(email string) error {
	var user models.User
	if err := s.DB.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if user.IsVerified {
		return nil
	}

	code, err := s.issueVerificationCode(&user)
	if err != nil {
		return err
	}

	return s.Notifier.SendVerificationEmail(email, code)
}

// ForgotPassword 发送密码重置验证码。用户不存在时静默成功，
// 不给外部探测注册邮箱的机会。
func (s *UserService) ForgotPassword(email string) error {
	var user models.User
	if err := s.DB.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	code, err := s.issueVerificationCode(&user)
	if err != nil {
		return err
	}

	return s.Notifier.SendPasswordResetEmail(email, code)
}

// ResetPassword 用验证码重置密码
func (s *UserService) ResetPassword(email, code, newPassword string) error {
	var user models.User
	if err := s.DB.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrVerificationCodeInvalid
		}
		return err
	}

	if !s.checkVerificationCode(&user, code) {
		return ErrVerificationCodeInvalid
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return err
	}

	return s.DB.Model(&user).Updates(map[string]interface{}{
		"password_hash":        hash,
		"verification_code":    nil,
		"verification_expires": nil,
	}).Error
}

// GetUserByID 根据ID获取用户
func (s *UserService) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	if err := s.DB.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return &user, nil
}

// UpdateSettings 更新用户的通知与时区设置
func (s *UserService) UpdateSettings(id uint, updates map[string]interface{}) (*models.User, error) {
	user, err := s.GetUserByID(id)
	if err != nil {
		return nil, err
	}

	allowed := map[string]bool{
		"email_enabled":      true,
		"telegram_enabled":   true,
		"telegram_bot_token": true,
		"telegram_chat_id":   true,
		"timezone":           true,
	}
	filtered := make(map[string]interface{})
	for k, v := range updates {
		if allowed[k] {
			filtered[k] = v
		}
	}
	if len(filtered) == 0 {
		return user, nil
	}

	if err := s.DB.Model(user).Updates(filtered).Error; err != nil {
		return nil, err
	}

	return s.GetUserByID(id)
}
