package request

// RegisterTokenReq 注册推送令牌请求参数
type RegisterTokenReq struct {
	Email    string `json:"email" binding:"required"`
	DeviceID string `json:"deviceId"` // 设备槽位，默认 default
	Token    string `json:"token" binding:"required"`
}

// UnregisterTokenReq 注销推送令牌请求参数，deviceId 与 token 二选一
type UnregisterTokenReq struct {
	Email    string `json:"email" binding:"required"`
	DeviceID string `json:"deviceId"`
	Token    string `json:"token"`
}

// RemoveAllTokensReq 移除用户所有推送令牌请求参数
type RemoveAllTokensReq struct {
	Email string `json:"email" binding:"required"`
}

// GetTokensListReq 获取令牌列表请求参数（分页）
type GetTokensListReq struct {
	Page     int `form:"page"`
	PageSize int `form:"pageSize"`
}

// SendNotificationReq 发送通知请求参数，email 与 tokens 二选一，同时给出时以 email 为准
type SendNotificationReq struct {
	Email  string            `json:"email"`
	Tokens []string          `json:"tokens"`
	Title  string            `json:"title" binding:"required"`
	Body   string            `json:"body" binding:"required"`
	Data   map[string]string `json:"data"`
}
