package services

import (
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"reefkh-http-service/config"
	"reefkh-http-service/models"
)

// InterfaceNotifierService 定义告警与邮件通知接口
type InterfaceNotifierService interface {
	SendVerificationEmail(email, code string) error
	SendPasswordResetEmail(email, code string) error
	SendOfflineAlert(user *models.User, device *models.Device) error
}

// NotifierService 邮件与Telegram通知实现。
// SMTP用标准库发送，Telegram走Bot API。
type NotifierService struct {
	Config *config.Config
	client *resty.Client
}

// NewNotifierService 创建一个新的通知服务
func NewNotifierService(cfg *config.Config) InterfaceNotifierService {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(2 * time.Second)

	return &NotifierService{
		Config: cfg,
		client: client,
	}
}

// sendMail 通过SMTP发送一封纯文本邮件
func (s *NotifierService) sendMail(to, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", s.Config.EmailHost, s.Config.EmailPort)

	msg := strings.Join([]string{
		"From: " + s.Config.EmailFrom,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	var auth smtp.Auth
	if s.Config.EmailUser != "" {
		auth = smtp.PlainAuth("", s.Config.EmailUser, s.Config.EmailPass, s.Config.EmailHost)
	}

	return smtp.SendMail(addr, auth, s.Config.EmailFrom, []string{to}, []byte(msg))
}

// SendVerificationEmail 发送注册验证码邮件
func (s *NotifierService) SendVerificationEmail(email, code string) error {
	body := fmt.Sprintf("Your verification code is: %s\n\nThe code expires in 10 minutes.", code)
	return s.sendMail(email, "ReefKH - Email Verification", body)
}

// SendPasswordResetEmail 发送密码重置验证码邮件
func (s *NotifierService) SendPasswordResetEmail(email, code string) error {
	body := fmt.Sprintf("Your password reset code is: %s\n\nThe code expires in 10 minutes.", code)
	return s.sendMail(email, "ReefKH - Password Reset", body)
}

// sendTelegram 通过Bot API发送Telegram消息
func (s *NotifierService) sendTelegram(botToken, chatID, text string) error {
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", botToken)

	resp, err := s.client.R().
		SetBody(map[string]interface{}{
			"chat_id": chatID,
			"text":    text,
		}).
		Post(url)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("telegram API返回错误: %s", resp.Status())
	}

	return nil
}

// SendOfflineAlert 发送设备离线告警。按用户配置走邮件和/或Telegram，
// 任一渠道成功即视为告警送达。
func (s *NotifierService) SendOfflineAlert(user *models.User, device *models.Device) error {
	lastSeen := "never"
	if device.LastSeen != nil {
		loc, err := time.LoadLocation(user.Timezone)
		if err != nil {
			loc = time.UTC
		}
		lastSeen = device.LastSeen.In(loc).Format("2006-01-02 15:04:05")
	}

	text := fmt.Sprintf("Device %q (%s) went offline.\nLast seen: %s", device.Name, device.DeviceID, lastSeen)

	telegramConfigured := user.TelegramEnabled && user.TelegramBotToken != nil && user.TelegramChatID != nil
	if !user.EmailEnabled && !telegramConfigured {
		// 没有启用任何渠道，视为送达，避免每轮扫描反复尝试
		return nil
	}

	var delivered bool
	var lastErr error

	if user.EmailEnabled {
		if err := s.sendMail(user.Email, "ReefKH - Device Offline", text); err != nil {
			lastErr = err
			config.Warning("离线告警邮件发送失败: device=%s, err=%v", device.DeviceID, err)
		} else {
			delivered = true
		}
	}

	if telegramConfigured {
		if err := s.sendTelegram(*user.TelegramBotToken, *user.TelegramChatID, text); err != nil {
			lastErr = err
			config.Warning("离线告警Telegram发送失败: device=%s, err=%v", device.DeviceID, err)
		} else {
			delivered = true
		}
	}

	if !delivered {
		return lastErr
	}

	return nil
}
