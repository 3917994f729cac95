package controller

import (
	"fleet-push-service/controller/request"
	"fleet-push-service/controller/respond"
	"fleet-push-service/models"
	"fleet-push-service/service/push_service"
	"fleet-push-service/tool"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// /api 下的入口沿用已发布客户端使用的请求和响应格式（无统一响应包装）

func (pc *PushController) compatFail(c *gin.Context, err error, extra ...gin.H) {
	status := respond.StatusOf(err)
	if status >= http.StatusInternalServerError {
		pc.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	body := gin.H{"error": err.Error()}
	for _, fields := range extra {
		for k, v := range fields {
			body[k] = v
		}
	}
	c.JSON(status, body)
}

func bindFcmTokenReq(c *gin.Context) (*request.FcmTokenReq, error) {
	var requestModel request.FcmTokenReq
	if err := c.ShouldBindJSON(&requestModel); err != nil {
		return nil, bindError(err)
	}
	return &requestModel, nil
}

func registrationMessage(outcome models.RegistrationOutcome) string {
	switch outcome {
	case models.RegistrationUnchanged:
		return "Token was already registered for this email."
	case models.RegistrationReplaced:
		return "Token replaced for this device."
	default:
		return "Token registered for this email."
	}
}

// SaveToken POST /api/savetoken
func (pc *PushController) SaveToken(c *gin.Context) {
	requestModel, err := bindFcmTokenReq(c)
	if err != nil {
		pc.compatFail(c, err, gin.H{"registered": false})
		return
	}
	token := requestModel.TokenValue()
	if token == "" || requestModel.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "FCM token or email missing from request.",
			"registered": false,
			"details": gin.H{
				"hasToken": token != "",
				"hasEmail": requestModel.Email != "",
			},
		})
		return
	}

	result, err := pc.manager.RegisterToken(c.Request.Context(), requestModel.Email, requestModel.DeviceID, token)
	if err != nil {
		pc.compatFail(c, err, gin.H{"registered": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":     registrationMessage(result.Outcome),
		"registered":  true,
		"email":       result.Identity,
		"tokenPrefix": tool.MaskToken(token),
	})
}

// RegisterBackgroundToken POST /api/notifications-register
func (pc *PushController) RegisterBackgroundToken(c *gin.Context) {
	requestModel, err := bindFcmTokenReq(c)
	if err != nil {
		pc.compatFail(c, err, gin.H{"registered": false})
		return
	}
	if requestModel.TokenValue() == "" || requestModel.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "FCM token and email are required", "registered": false})
		return
	}

	if _, err := pc.manager.RegisterToken(c.Request.Context(), requestModel.Email, requestModel.DeviceID, requestModel.TokenValue()); err != nil {
		pc.compatFail(c, err, gin.H{"registered": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"registered": true,
		"message":    "Token registered for background notifications",
	})
}

// RegisterDeviceToken POST /api/notifications
func (pc *PushController) RegisterDeviceToken(c *gin.Context) {
	requestModel, err := bindFcmTokenReq(c)
	if err != nil {
		pc.compatFail(c, err)
		return
	}
	if requestModel.TokenValue() == "" || requestModel.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token, email and deviceId are required"})
		return
	}

	if _, err := pc.manager.RegisterToken(c.Request.Context(), requestModel.Email, requestModel.DeviceID, requestModel.TokenValue()); err != nil {
		pc.compatFail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeleteToken POST /api/delete-token，按令牌值注销
func (pc *PushController) DeleteToken(c *gin.Context) {
	requestModel, err := bindFcmTokenReq(c)
	if err != nil {
		pc.compatFail(c, err)
		return
	}
	token := requestModel.TokenValue()
	if token == "" {
		pc.compatFail(c, push_service.NewValidationError("invalid FCM token or email"))
		return
	}

	result, err := pc.manager.Registry().Unregister(c.Request.Context(), requestModel.Email, push_service.Selector{Token: token})
	if err != nil {
		pc.compatFail(c, err)
		return
	}
	if result.Removed {
		c.JSON(http.StatusOK, gin.H{"message": "Token unregistered."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Token or email not found, nothing to do."})
}

// DeleteDeviceToken DELETE /api/notifications，令牌优先，其次设备槽位
func (pc *PushController) DeleteDeviceToken(c *gin.Context) {
	requestModel, err := bindFcmTokenReq(c)
	if err != nil {
		pc.compatFail(c, err)
		return
	}
	if requestModel.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return
	}

	selector := push_service.Selector{Token: requestModel.TokenValue()}
	if selector.Token == "" {
		selector.DeviceSlot = requestModel.DeviceID
	}
	if selector.Token == "" && selector.DeviceSlot == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token or deviceId is required for removal"})
		return
	}

	if _, err := pc.manager.Registry().Unregister(c.Request.Context(), requestModel.Email, selector); err != nil {
		pc.compatFail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// CheckUserToken GET /api/check-user-token
func (pc *PushController) CheckUserToken(c *gin.Context) {
	email := c.Query("email")
	if len(email) < 3 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email query parameter is missing or invalid"})
		return
	}

	tokens, err := pc.manager.Registry().Lookup(c.Request.Context(), email, "")
	if err != nil {
		pc.compatFail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": tokens})
}

// CheckDeviceToken GET /api/notifications，返回第一个令牌或指定槽位的令牌
func (pc *PushController) CheckDeviceToken(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return
	}

	tokens, err := pc.manager.Registry().Lookup(c.Request.Context(), email, c.Query("deviceId"))
	if err != nil {
		pc.compatFail(c, err)
		return
	}
	var token interface{}
	if len(tokens) > 0 {
		token = tokens[0]
	}
	c.JSON(http.StatusOK, gin.H{
		"hasValidToken": len(tokens) > 0,
		"token":         token,
	})
}

// LegacySendNotification POST /api/send-notification
func (pc *PushController) LegacySendNotification(c *gin.Context) {
	var requestModel request.LegacySendReq
	if err := c.ShouldBindJSON(&requestModel); err != nil {
		pc.compatFail(c, bindError(err))
		return
	}
	if requestModel.Notification == nil || requestModel.Notification.Title == "" || requestModel.Notification.Body == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'notification': 'title' and 'body' are required."})
		return
	}
	if requestModel.Email == "" && requestModel.Token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "either 'email' or 'token' must be given in the body."})
		return
	}

	var tokens []string
	if requestModel.Token != "" {
		tokens = []string{requestModel.Token}
	}
	report, err := pc.send(c, requestModel.Email, tokens,
		requestModel.Notification.Title, requestModel.Notification.Body, requestModel.Data)
	if err != nil {
		pc.compatFail(c, err)
		return
	}

	if report.TransientTotalFailure() {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "notification failed for every target token.",
			"details": report.Results,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("Sent to %d of %d tokens. Failures: %d.", report.Sent, len(report.Results), report.Failed),
		"results": report.Results,
	})
}
