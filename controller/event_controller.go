package controller

import (
	"fleet-push-service/controller/respond"
	"fleet-push-service/models"
	pushcenter "fleet-push-service/service/push_center"
	"fleet-push-service/tool"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// EventResponse 事件处理结果
type EventResponse struct {
	Success        bool             `json:"success"`
	Delivered      bool             `json:"delivered"`
	EventType      models.EventType `json:"eventType"`
	Sent           int              `json:"sent"`
	Failed         int              `json:"failed"`
	InvalidRemoved int              `json:"invalidRemoved"`
	Message        string           `json:"message,omitempty"`
}

func newEventResponse(result *pushcenter.EventResult) *EventResponse {
	resp := &EventResponse{
		Success:   true,
		Delivered: result.Delivered,
		EventType: result.EventType,
	}
	if result.Report == nil {
		resp.Message = "event received, but no user with an e-mail is linked to the device"
		return resp
	}
	resp.Sent = result.Report.Sent
	resp.Failed = result.Report.Failed
	resp.InvalidRemoved = result.Report.InvalidRemoved
	resp.Message = "notifications processed"
	return resp
}

// handleEvent 解析并处理一个 Traccar 事件，返回状态码与响应体
func (pc *PushController) handleEvent(c *gin.Context) (int, *EventResponse, error) {
	var payload *models.TraccarPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		return 0, nil, bindError(err)
	}

	result, err := pc.center.HandleEvent(c.Request.Context(), payload)
	if err != nil {
		return 0, nil, err
	}

	resp := newEventResponse(result)
	if result.Report != nil && result.Report.TransientTotalFailure() {
		pc.log.Warn("event delivery failed for every token",
			zap.Int64("deviceId", payload.Event.DeviceID), zap.String("type", payload.Event.Type))
		resp.Success = false
		resp.Message = "notification failed for every target token"
		return http.StatusInternalServerError, resp, nil
	}
	return http.StatusOK, resp, nil
}

// DispatchEvent godoc
// @Summary 处理 Traccar 事件
// @Description 接收 Traccar 事件转发，查找设备所属用户并推送到该用户的所有设备。设备没有可解析的用户时返回 200 且 delivered=false，避免 Traccar 重试。
// @Tags Event API
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body models.TraccarPayload true "Traccar 事件"
// @Success 200 {object} respond.Response{data=EventResponse} "成功响应"
// @Failure 400 {object} respond.Response "参数错误"
// @Failure 401 {object} respond.Response "认证失败"
// @Failure 404 {object} respond.Response "用户没有登记令牌"
// @Failure 500 {object} respond.Response "服务器内部错误"
// @Router /v1/push/events [post]
func (pc *PushController) DispatchEvent(c *gin.Context) {
	var t int64 = tool.MakeTimestamp()

	status, resp, err := pc.handleEvent(c)
	if err != nil {
		pc.fail(c, t, err)
		return
	}
	if status != http.StatusOK {
		c.JSONP(status, respond.Message{
			Code:           status,
			Message:        resp.Message,
			ProcessingTime: tool.MakeTimestamp() - t,
			Data:           resp,
		})
		return
	}
	c.JSONP(http.StatusOK, respond.RespSuccess(resp, tool.MakeTimestamp()-t))
}

// TraccarEvent /api/traccar-event 兼容入口，返回原有的扁平响应
func (pc *PushController) TraccarEvent(c *gin.Context) {
	status, resp, err := pc.handleEvent(c)
	if err != nil {
		pc.compatFail(c, err)
		return
	}
	if status != http.StatusOK {
		c.JSON(status, gin.H{"error": resp.Message, "details": resp})
		return
	}
	c.JSON(http.StatusOK, resp)
}
