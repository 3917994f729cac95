package request

// FcmTokenReq /api/savetoken、/api/notifications-register、/api/delete-token 以及
// POST/DELETE /api/notifications 共用的请求体
type FcmTokenReq struct {
	FcmToken string `json:"fcmToken"`
	Token    string `json:"token"`
	Email    string `json:"email"`
	DeviceID string `json:"deviceId"`
}

// TokenValue returns fcmToken, falling back to token.
func (r *FcmTokenReq) TokenValue() string {
	if r.FcmToken != "" {
		return r.FcmToken
	}
	return r.Token
}

// NotificationBody 通知内容
type NotificationBody struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// LegacySendReq /api/send-notification 请求体
type LegacySendReq struct {
	Email        string            `json:"email"`
	Token        string            `json:"token"`
	Notification *NotificationBody `json:"notification"`
	Data         map[string]string `json:"data"`
}
