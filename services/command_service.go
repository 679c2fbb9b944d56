package services

import (
	"errors"

	"gorm.io/gorm"

	"reefkh-http-service/config"
	"reefkh-http-service/models"
)

// 单次poll最多投递的命令数
const maxPollBatch = 5

var (
	// ErrCommandNotFound 命令不存在或不属于该设备
	ErrCommandNotFound = errors.New("命令不存在")
	// ErrCommandConflict 命令当前状态不允许该操作
	ErrCommandConflict = errors.New("命令状态不允许该操作")
)

// InterfaceCommandService defines the command queue service interface
type InterfaceCommandService interface {
	Enqueue(userID uint, deviceID string, cmdType models.CommandType, value interface{}) (*models.Command, error)
	Poll(deviceID string, limit int) ([]models.Command, error)
	Complete(deviceID string, commandID uint, success bool, result, errorMessage string) (*models.Command, error)
	Cancel(userID uint, deviceID string, commandID uint) (*models.Command, error)
	History(userID uint, deviceID string, limit, offset int) ([]models.Command, int64, error)
}

// CommandService 命令队列服务。命令只在pending/inprogress两个活跃
// 状态间流转，终态记录保留作为审计历史。
type CommandService struct {
	DB            *gorm.DB
	Config        *config.Config
	DeviceService InterfaceDeviceService
	MQTTService   InterfaceMQTTService // 可为nil，推送只是轮询的加速提示
}

// NewCommandService 创建一个新的命令队列服务
func NewCommandService(db *gorm.DB, cfg *config.Config, deviceService InterfaceDeviceService, mqttService InterfaceMQTTService) InterfaceCommandService {
	return &CommandService{
		DB:            db,
		Config:        cfg,
		DeviceService: deviceService,
		MQTTService:   mqttService,
	}
}

// Enqueue 用户向自己的设备下发命令。payload按类型校验后入队，
// 入队成功后尽力推送MQTT提醒。
func (s *CommandService) Enqueue(userID uint, deviceID string, cmdType models.CommandType, value interface{}) (*models.Command, error) {
	if _, err := s.DeviceService.GetDeviceForUser(userID, deviceID); err != nil {
		return nil, err
	}

	payload, err := models.BuildCommandPayload(cmdType, value)
	if err != nil {
		return nil, err
	}

	command := &models.Command{
		DeviceID: deviceID,
		Type:     cmdType,
		Payload:  payload,
		Status:   models.CommandStatusPending,
	}
	if err := s.DB.Create(command).Error; err != nil {
		return nil, err
	}

	if s.MQTTService != nil {
		if err := s.MQTTService.NotifyNewCommand(deviceID, command.ID, string(cmdType)); err != nil {
			config.Warning("命令MQTT提醒推送失败: device=%s, command=%d, err=%v", deviceID, command.ID, err)
		}
	}

	return command, nil
}

// Poll 设备取一批待执行命令，最旧的在前，最多limit条（上限5）。
// 每条命令原子地置为inprogress，同一条命令不会被投递两次；
// 没有待执行命令时返回空列表。
func (s *CommandService) Poll(deviceID string, limit int) ([]models.Command, error) {
	if limit <= 0 || limit > maxPollBatch {
		limit = maxPollBatch
	}

	claimed := make([]models.Command, 0, limit)
	for len(claimed) < limit {
		var command models.Command
		err := s.DB.Where("device_id = ? AND status = ?", deviceID, models.CommandStatusPending).
			Order("created_at ASC, id ASC").
			First(&command).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}

		// 条件更新保证单次投递：只有仍处于pending的那次更新会生效，
		// 并发poll抢输后这条命令在下一轮查询里已不可见
		res := s.DB.Model(&models.Command{}).
			Where("id = ? AND status = ?", command.ID, models.CommandStatusPending).
			Update("status", models.CommandStatusInProgress)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			continue
		}

		command.Status = models.CommandStatusInProgress
		claimed = append(claimed, command)
	}

	return claimed, nil
}

// Complete 设备回报命令执行结果。只有本设备处于inprogress的命令
// 可以被终结；重复回报返回冲突。
func (s *CommandService) Complete(deviceID string, commandID uint, success bool, result, errorMessage string) (*models.Command, error) {
	var command models.Command
	if err := s.DB.Where("id = ? AND device_id = ?", commandID, deviceID).First(&command).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCommandNotFound
		}
		return nil, err
	}

	status := models.CommandStatusCompleted
	if !success {
		status = models.CommandStatusFailed
	}

	updates := map[string]interface{}{"status": status}
	if result != "" {
		updates["result"] = result
	}
	if errorMessage != "" {
		updates["error_message"] = errorMessage
	}

	res := s.DB.Model(&models.Command{}).
		Where("id = ? AND status = ?", commandID, models.CommandStatusInProgress).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrCommandConflict
	}

	if err := s.DB.First(&command, commandID).Error; err != nil {
		return nil, err
	}

	return &command, nil
}

// Cancel 用户取消自己设备上的活跃命令。pending和inprogress都可取消，
// 终态命令不可取消。
func (s *CommandService) Cancel(userID uint, deviceID string, commandID uint) (*models.Command, error) {
	if _, err := s.DeviceService.GetDeviceForUser(userID, deviceID); err != nil {
		return nil, err
	}

	var command models.Command
	if err := s.DB.Where("id = ? AND device_id = ?", commandID, deviceID).First(&command).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCommandNotFound
		}
		return nil, err
	}

	res := s.DB.Model(&models.Command{}).
		Where("id = ? AND status IN ?", commandID, []models.CommandStatus{models.CommandStatusPending, models.CommandStatusInProgress}).
		Update("status", models.CommandStatusCancelled)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrCommandConflict
	}

	command.Status = models.CommandStatusCancelled
	return &command, nil
}

// History 用户查询设备命令历史，按创建时间倒序分页
func (s *CommandService) History(userID uint, deviceID string, limit, offset int) ([]models.Command, int64, error) {
	if _, err := s.DeviceService.GetDeviceForUser(userID, deviceID); err != nil {
		return nil, 0, err
	}

	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := s.DB.Model(&models.Command{}).Where("device_id = ?", deviceID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var commands []models.Command
	if err := s.DB.Where("device_id = ?", deviceID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&commands).Error; err != nil {
		return nil, 0, err
	}

	return commands, total, nil
}
