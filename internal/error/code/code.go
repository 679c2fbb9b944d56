package code

// HTTP状态码.
const (
	// StatusOK - 200: 成功.
	StatusOK = 200
	// StatusBadRequest - 400: 请求参数错误.
	StatusBadRequest = 400
	// StatusUnauthorized - 401: 未授权.
	StatusUnauthorized = 401
	// StatusForbidden - 403: 禁止访问.
	StatusForbidden = 403
	// StatusNotFound - 404: 资源不存在.
	StatusNotFound = 404
	// StatusConflict - 409: 状态冲突.
	StatusConflict = 409
	// StatusInternalServerError - 500: 服务器内部错误.
	StatusInternalServerError = 500
	// StatusServiceUnavailable - 503: 服务暂不可用.
	StatusServiceUnavailable = 503
)

// 通用错误码 (100xxx).
const (
	// ErrSuccess - 200: 成功.
	ErrSuccess int = iota + 100000
	// ErrUnknown - 500: 未知错误.
	ErrUnknown
	// ErrBind - 400: 请求参数绑定错误.
	ErrBind
	// ErrValidation - 400: 请求参数验证错误.
	ErrValidation
	// ErrTokenInvalid - 401: 令牌无效.
	ErrTokenInvalid
	// ErrTokenReplay - 403: 令牌签发时间异常.
	ErrTokenReplay
	// ErrForbidden - 403: 无权访问该资源.
	ErrForbidden
)

// 用户相关错误码 (101xxx).
const (
	// ErrUserNotFound - 404: 用户不存在.
	ErrUserNotFound int = iota + 101000
	// ErrUserAlreadyExist - 400: 用户已存在.
	ErrUserAlreadyExist
	// ErrUserPasswordIncorrect - 401: 用户密码错误.
	ErrUserPasswordIncorrect
	// ErrUserNotVerified - 403: 用户邮箱未验证.
	ErrUserNotVerified
	// ErrVerificationCodeInvalid - 400: 验证码无效或已过期.
	ErrVerificationCodeInvalid
)

// 设备相关错误码 (102xxx).
const (
	// ErrDeviceNotFound - 404: 设备不存在.
	ErrDeviceNotFound int = iota + 102000
	// ErrDeviceIDInvalid - 400: 设备ID格式不合法.
	ErrDeviceIDInvalid
	// ErrDeviceOwnedByOther - 403: 设备已绑定其他用户.
	ErrDeviceOwnedByOther
)

// 命令相关错误码 (103xxx).
const (
	// ErrCommandNotFound - 404: 命令不存在.
	ErrCommandNotFound int = iota + 103000
	// ErrCommandTypeInvalid - 400: 命令类型不合法.
	ErrCommandTypeInvalid
	// ErrCommandPayloadInvalid - 400: 命令参数不合法.
	ErrCommandPayloadInvalid
	// ErrCommandConflict - 409: 命令状态不允许该操作.
	ErrCommandConflict
)

// 遥测相关错误码 (104xxx).
const (
	// ErrTelemetryEnvelopeInvalid - 400: 遥测数据格式不合法.
	ErrTelemetryEnvelopeInvalid int = iota + 104000
)

// 数据库相关错误码 (105xxx).
const (
	// ErrDatabase - 500: 数据库错误.
	ErrDatabase int = iota + 105000
	// ErrRecordNotFound - 404: 记录不存在.
	ErrRecordNotFound
	// ErrDatabaseUnavailable - 503: 数据库暂不可用.
	ErrDatabaseUnavailable
)
