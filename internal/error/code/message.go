package code

// 错误码消息映射
var codeMessageMap = map[int]string{
	// 通用错误码
	ErrSuccess:      "成功",
	ErrUnknown:      "未知错误",
	ErrBind:         "请求参数绑定错误",
	ErrValidation:   "请求参数验证错误",
	ErrTokenInvalid: "无效的认证令牌",
	ErrTokenReplay:  "令牌签发时间异常",
	ErrForbidden:    "无权访问该资源",

	// 用户相关错误码
	ErrUserNotFound:            "用户不存在",
	ErrUserAlreadyExist:        "用户已存在",
	ErrUserPasswordIncorrect:   "用户密码错误",
	ErrUserNotVerified:         "邮箱尚未验证",
	ErrVerificationCodeInvalid: "验证码无效或已过期",

	// 设备相关错误码
	ErrDeviceNotFound:     "设备不存在",
	ErrDeviceIDInvalid:    "设备ID格式不合法",
	ErrDeviceOwnedByOther: "设备已绑定其他用户",

	// 命令相关错误码
	ErrCommandNotFound:       "命令不存在",
	ErrCommandTypeInvalid:    "命令类型不合法",
	ErrCommandPayloadInvalid: "命令参数不合法",
	ErrCommandConflict:       "命令状态不允许该操作",

	// 遥测相关错误码
	ErrTelemetryEnvelopeInvalid: "遥测数据格式不合法",

	// 数据库相关错误码
	ErrDatabase:            "数据库错误",
	ErrRecordNotFound:      "记录不存在",
	ErrDatabaseUnavailable: "数据库暂不可用，请稍后重试",
}

// 错误码HTTP状态码映射
var codeStatusMap = map[int]int{
	// 通用错误码
	ErrSuccess:      StatusOK,
	ErrUnknown:      StatusInternalServerError,
	ErrBind:         StatusBadRequest,
	ErrValidation:   StatusBadRequest,
	ErrTokenInvalid: StatusUnauthorized,
	ErrTokenReplay:  StatusForbidden,
	ErrForbidden:    StatusForbidden,

	// 用户相关错误码
	ErrUserNotFound:            StatusNotFound,
	ErrUserAlreadyExist:        StatusBadRequest,
	ErrUserPasswordIncorrect:   StatusUnauthorized,
	ErrUserNotVerified:         StatusForbidden,
	ErrVerificationCodeInvalid: StatusBadRequest,

	// 设备相关错误码
	ErrDeviceNotFound:     StatusNotFound,
	ErrDeviceIDInvalid:    StatusBadRequest,
	ErrDeviceOwnedByOther: StatusForbidden,

	// 命令相关错误码
	ErrCommandNotFound:       StatusNotFound,
	ErrCommandTypeInvalid:    StatusBadRequest,
	ErrCommandPayloadInvalid: StatusBadRequest,
	ErrCommandConflict:       StatusConflict,

	// 遥测相关错误码
	ErrTelemetryEnvelopeInvalid: StatusBadRequest,

	// 数据库相关错误码
	ErrDatabase:            StatusInternalServerError,
	ErrRecordNotFound:      StatusNotFound,
	ErrDatabaseUnavailable: StatusServiceUnavailable,
}

// GetMessage 获取错误码对应的消息
func GetMessage(code int) string {
	if msg, ok := codeMessageMap[code]; ok {
		return msg
	}
	return "未知错误"
}

// GetStatus 获取错误码对应的HTTP状态码
func GetStatus(code int) int {
	if status, ok := codeStatusMap[code]; ok {
		return status
	}
	return StatusInternalServerError
}
