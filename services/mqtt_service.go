package services

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"reefkh-http-service/config"
)

// 主题常量
const (
	// 命令提醒主题前缀，完整主题为 reefkh/device/{deviceID}/commands
	TopicCommandPrefix = "reefkh/device/"

	// 系统消息主题
	TopicSystemMessage = "reefkh/system"
)

// InterfaceMQTTService 定义MQTT推送服务接口。
// 推送只是提醒，命令的权威通道始终是HTTP轮询；
// 发布失败不影响命令入队。
type InterfaceMQTTService interface {
	Connect() error
	Disconnect()
	Connected() bool
	NotifyNewCommand(deviceID string, commandID uint, commandType string) error
	PublishSystemMessage(level, message string) error
}

// MQTTService MQTT命令提醒推送服务
type MQTTService struct {
	Config         *config.Config
	Client         mqtt.Client
	IsConnected    bool
	connectedMutex sync.RWMutex // 保护IsConnected字段的读写
	PublishMutex   sync.Mutex   // 保护MQTT消息发布
}

// CommandNotification 命令提醒消息
type CommandNotification struct {
	Type      string `json:"type"`
	CommandID uint   `json:"command_id"`
	Command   string `json:"command"`
	Timestamp int64  `json:"timestamp"`
}

// SystemMessage 系统消息
type SystemMessage struct {
	Level     string `json:"level"` // info/warning/error
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// NewMQTTService 创建一个新的MQTT推送服务
func NewMQTTService(cfg *config.Config) InterfaceMQTTService {
	service := &MQTTService{
		Config:      cfg,
		IsConnected: false,
	}

	service.setupMQTTClient()

	return service
}

// setupMQTTClient 设置MQTT客户端
func (s *MQTTService) setupMQTTClient() {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.Config.MQTTBroker)
	// 使用唯一的客户端ID，避免同一服务多实例冲突
	opts.SetClientID(fmt.Sprintf("reefkh-server-%s-%d", uuid.New().String()[:8], time.Now().UnixNano()))
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(time.Second * 30)
	opts.SetKeepAlive(time.Second * 60)
	opts.SetPingTimeout(time.Second * 10)
	opts.SetCleanSession(true)

	// 设置连接丢失回调
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Printf("[MQTT] 连接丢失: %v", err)
		s.connectedMutex.Lock()
		s.IsConnected = false
		s.connectedMutex.Unlock()
	})

	// 设置连接建立回调
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Println("[MQTT] 成功连接到", s.Config.MQTTBroker)
		s.connectedMutex.Lock()
		s.IsConnected = true
		s.connectedMutex.Unlock()
	})

	// 设置重连回调
	opts.SetReconnectingHandler(func(client mqtt.Client, opts *mqtt.ClientOptions) {
		log.Println("[MQTT] 正在尝试重连...")
	})

	s.Client = mqtt.NewClient(opts)
}

// Connect 连接到MQTT服务器
func (s *MQTTService) Connect() error {
	log.Printf("[MQTT] 正在连接到 %s...", s.Config.MQTTBroker)

	s.connectedMutex.RLock()
	isConnected := s.IsConnected && s.Client.IsConnected()
	s.connectedMutex.RUnlock()
	if isConnected {
		return nil
	}

	token := s.Client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("MQTT连接超时")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("MQTT连接失败: %w", err)
	}

	return nil
}

// Disconnect 断开MQTT连接
func (s *MQTTService) Disconnect() {
	if s.Client != nil && s.Client.IsConnected() {
		s.Client.Disconnect(250)
	}

	s.connectedMutex.Lock()
	s.IsConnected = false
	s.connectedMutex.Unlock()
}

// Connected 返回当前MQTT连接状态
func (s *MQTTService) Connected() bool {
	s.connectedMutex.RLock()
	defer s.connectedMutex.RUnlock()
	return s.IsConnected && s.Client != nil && s.Client.IsConnected()
}

// publish 发布JSON消息，QoS 1
func (s *MQTTService) publish(topic string, payload interface{}) error {
	s.connectedMutex.RLock()
	isConnected := s.IsConnected && s.Client != nil && s.Client.IsConnected()
	s.connectedMutex.RUnlock()
	if !isConnected {
		return fmt.Errorf("MQTT未连接")
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	s.PublishMutex.Lock()
	defer s.PublishMutex.Unlock()

	token := s.Client.Publish(topic, 1, false, raw)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("MQTT发布超时: topic=%s", topic)
	}
	return token.Error()
}

// NotifyNewCommand 向设备主题推送新命令提醒
func (s *MQTTService) NotifyNewCommand(deviceID string, commandID uint, commandType string) error {
	topic := TopicCommandPrefix + deviceID + "/commands"
	return s.publish(topic, CommandNotification{
		Type:      "new_command",
		CommandID: commandID,
		Command:   commandType,
		Timestamp: time.Now().UnixMilli(),
	})
}

// PublishSystemMessage 发布系统级消息
func (s *MQTTService) PublishSystemMessage(level, message string) error {
	return s.publish(TopicSystemMessage, SystemMessage{
		Level:     level,
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
	})
}
