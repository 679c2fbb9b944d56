package models

import (
	"encoding/json"
	"errors"
	"time"
)

// CommandStatus 命令状态机：pending → {inprogress, cancelled}；
// inprogress → {completed, failed}。终态不可再迁移。
type CommandStatus string

const (
	CommandStatusPending    CommandStatus = "pending"
	CommandStatusInProgress CommandStatus = "inprogress"
	CommandStatusCompleted  CommandStatus = "completed"
	CommandStatusFailed     CommandStatus = "failed"
	CommandStatusCancelled  CommandStatus = "cancelled"
)

// IsTerminal 判断状态是否为终态
func (s CommandStatus) IsTerminal() bool {
	switch s {
	case CommandStatusCompleted, CommandStatusFailed, CommandStatusCancelled:
		return true
	}
	return false
}

// CommandType 命令类型枚举
type CommandType string

const (
	CommandTypePump           CommandType = "pump"
	CommandTypeKhCorrection   CommandType = "kh_correction"
	CommandTypeCalibration    CommandType = "calibration"
	CommandTypeTest           CommandType = "test"
	CommandTypeRestart        CommandType = "restart"
	CommandTypeFactoryReset   CommandType = "factory_reset"
	CommandTypeSetKhReference CommandType = "set_kh_reference"
	CommandTypeSetKhTarget    CommandType = "set_kh_target"
	CommandTypeSetInterval    CommandType = "set_interval"
	CommandTypeAbort          CommandType = "abort"
	CommandTypeGeneric        CommandType = "generic"
)

// ErrInvalidCommandType 不认识的命令类型
var ErrInvalidCommandType = errors.New("无效的命令类型")

// ErrInvalidCommandPayload 命令参数不合法
var ErrInvalidCommandPayload = errors.New("无效的命令参数")

// Command 用户下发给设备的指令。由用户创建，仅由所属设备的poll/complete
// 或用户的显式取消改变状态；完成后保留作为审计记录，不删除。
type Command struct {
	ID       uint          `gorm:"primaryKey" json:"id"`
	DeviceID string        `gorm:"type:varchar(50);index;not null" json:"device_id"`
	Type     CommandType   `gorm:"type:varchar(30);not null" json:"type"`
	Payload  *string       `gorm:"type:text" json:"payload,omitempty"`
	Status   CommandStatus `gorm:"type:varchar(20);default:'pending';index" json:"status"`

	Result       *string `gorm:"type:text" json:"result,omitempty"`
	ErrorMessage *string `gorm:"type:text" json:"error_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// 各命令类型的参数结构。payload按类型区分，只有在存储/传输边界才做
// 通用JSON序列化。

// PumpPayload 手动泵命令参数
type PumpPayload struct {
	PumpID    int    `json:"pump_id"`
	Direction string `json:"direction"` // forward | reverse
	Seconds   int    `json:"seconds"`
}

// KhCorrectionPayload KH修正命令参数
type KhCorrectionPayload struct {
	Volume float64 `json:"volume"` // 补液体积(ml)
}

// CalibrationPayload 校准命令参数
type CalibrationPayload struct {
	Point float64 `json:"point"` // 校准参考点(dKH)
}

// SetKhReferencePayload 设置KH参考值
type SetKhReferencePayload struct {
	Value float64 `json:"value"`
}

// SetKhTargetPayload 设置KH目标值
type SetKhTargetPayload struct {
	Value float64 `json:"value"`
}

// SetIntervalPayload 设置测量间隔
type SetIntervalPayload struct {
	Minutes int `json:"minutes"`
}

// BuildCommandPayload 按命令类型校验并序列化payload。
// 无参数的命令类型允许value为空；generic类型原样透传。
func BuildCommandPayload(cmdType CommandType, value interface{}) (*string, error) {
	var payload interface{}

	switch cmdType {
	case CommandTypeTest, CommandTypeRestart, CommandTypeFactoryReset, CommandTypeAbort:
		// 无参数命令
		return nil, nil

	case CommandTypePump:
		m, ok := value.(map[string]interface{})
		if !ok {
			return nil, ErrInvalidCommandPayload
		}
		pumpID, okID := toInt(m["pump_id"])
		seconds, okSec := toInt(m["seconds"])
		if !okID || !okSec || pumpID <= 0 || seconds <= 0 {
			return nil, ErrInvalidCommandPayload
		}
		direction := "forward"
		if d, ok := m["direction"].(string); ok && d == "reverse" {
			direction = "reverse"
		}
		payload = PumpPayload{PumpID: pumpID, Direction: direction, Seconds: seconds}

	case CommandTypeKhCorrection:
		volume, ok := toFloat(value)
		if !ok || volume <= 0 {
			return nil, ErrInvalidCommandPayload
		}
		payload = KhCorrectionPayload{Volume: volume}

	case CommandTypeCalibration:
		point, ok := toFloat(value)
		if !ok || point <= 0 {
			return nil, ErrInvalidCommandPayload
		}
		payload = CalibrationPayload{Point: point}

	case CommandTypeSetKhReference:
		v, ok := toFloat(value)
		if !ok || v < 0 {
			return nil, ErrInvalidCommandPayload
		}
		payload = SetKhReferencePayload{Value: v}

	case CommandTypeSetKhTarget:
		v, ok := toFloat(value)
		if !ok || v < 0 {
			return nil, ErrInvalidCommandPayload
		}
		payload = SetKhTargetPayload{Value: v}

	case CommandTypeSetInterval:
		minutes, ok := toInt(value)
		if !ok || minutes <= 0 {
			return nil, ErrInvalidCommandPayload
		}
		payload = SetIntervalPayload{Minutes: minutes}

	case CommandTypeGeneric:
		// 通用类型：value原样透传，允许为空
		if value == nil {
			return nil, nil
		}
		payload = value

	default:
		return nil, ErrInvalidCommandType
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, ErrInvalidCommandPayload
	}
	s := string(raw)
	return &s, nil
}

// DecodePayload 反序列化payload。解析失败时返回nil而不是报错，
// 保证poll不会因为一条脏数据而失败。
func (c *Command) DecodePayload() map[string]interface{} {
	if c.Payload == nil {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(*c.Payload), &out); err != nil {
		return nil
	}
	return out
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
