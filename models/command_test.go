package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandStatusIsTerminal(t *testing.T) {
	assert.False(t, CommandStatusPending.IsTerminal())
	assert.False(t, CommandStatusInProgress.IsTerminal())
	assert.True(t, CommandStatusCompleted.IsTerminal())
	assert.True(t, CommandStatusFailed.IsTerminal())
	assert.True(t, CommandStatusCancelled.IsTerminal())
}

func TestBuildCommandPayload(t *testing.T) {
	// 未知类型
	_, err := BuildCommandPayload(CommandType("warp"), nil)
	assert.ErrorIs(t, err, ErrInvalidCommandType)

	// 无参数命令不产生payload
	payload, err := BuildCommandPayload(CommandTypeRestart, nil)
	require.NoError(t, err)
	assert.Nil(t, payload)

	// 泵命令：方向缺省为forward
	payload, err = BuildCommandPayload(CommandTypePump, map[string]interface{}{
		"pump_id": float64(2),
		"seconds": float64(15),
	})
	require.NoError(t, err)
	require.NotNil(t, payload)
	assert.JSONEq(t, `{"pump_id":2,"direction":"forward","seconds":15}`, *payload)

	// 泵命令：非法方向回落到forward，reverse保留
	payload, err = BuildCommandPayload(CommandTypePump, map[string]interface{}{
		"pump_id":   1,
		"seconds":   5,
		"direction": "reverse",
	})
	require.NoError(t, err)
	assert.Contains(t, *payload, `"direction":"reverse"`)

	// 泵命令：秒数必须为正
	_, err = BuildCommandPayload(CommandTypePump, map[string]interface{}{
		"pump_id": 1,
		"seconds": 0,
	})
	assert.ErrorIs(t, err, ErrInvalidCommandPayload)

	// KH修正：体积必须为正
	_, err = BuildCommandPayload(CommandTypeKhCorrection, -1.0)
	assert.ErrorIs(t, err, ErrInvalidCommandPayload)
	payload, err = BuildCommandPayload(CommandTypeKhCorrection, 12.5)
	require.NoError(t, err)
	assert.JSONEq(t, `{"volume":12.5}`, *payload)

	// 测量间隔：JSON解码出来的数字是float64
	payload, err = BuildCommandPayload(CommandTypeSetInterval, float64(30))
	require.NoError(t, err)
	assert.JSONEq(t, `{"minutes":30}`, *payload)

	// generic类型原样透传
	payload, err = BuildCommandPayload(CommandTypeGeneric, map[string]interface{}{"anything": true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"anything":true}`, *payload)
	payload, err = BuildCommandPayload(CommandTypeGeneric, nil)
	require.NoError(t, err)
	assert.Nil(t, payload)
}

func TestDecodePayloadToleratesBadData(t *testing.T) {
	cmd := &Command{}
	assert.Nil(t, cmd.DecodePayload())

	bad := "{not json"
	cmd.Payload = &bad
	assert.Nil(t, cmd.DecodePayload())

	good := `{"volume":12.5}`
	cmd.Payload = &good
	decoded := cmd.DecodePayload()
	require.NotNil(t, decoded)
	assert.Equal(t, 12.5, decoded["volume"])
}
