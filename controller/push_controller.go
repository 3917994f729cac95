package controller

import (
	"errors"
	"fleet-push-service/controller/request"
	"fleet-push-service/controller/respond"
	pushcenter "fleet-push-service/service/push_center"
	"fleet-push-service/service/push_service"
	"fleet-push-service/tool"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PushController 推送 API 处理器，所有入口共享同一个推送中心
type PushController struct {
	center  *pushcenter.PushCenter
	manager *push_service.Manager
	log     *zap.Logger
}

// NewPushController 创建推送 API 处理器
func NewPushController(center *pushcenter.PushCenter, log *zap.Logger) *PushController {
	if log == nil {
		log = zap.NewNop()
	}
	return &PushController{
		center:  center,
		manager: center.GetPushManager(),
		log:     log.Named("controller"),
	}
}

// 参数绑定失败统一按校验错误处理
func bindError(err error) error {
	return push_service.NewValidationError("invalid request body: %v", err)
}

func (pc *PushController) fail(c *gin.Context, t int64, err error) {
	status := respond.StatusOf(err)
	if status >= http.StatusInternalServerError {
		pc.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSONP(status, respond.RespErr(err, tool.MakeTimestamp()-t, status))
}

// RegisterToken godoc
// @Summary 注册推送令牌
// @Description 为用户的某个设备槽位登记推送令牌。同一槽位重复登记相同令牌不会写库，换令牌时保留原创建时间。
// @Tags Push API
// @Accept json
// @Produce json
// @Param request body request.RegisterTokenReq true "请求参数（email、deviceId、token）"
// @Success 200 {object} respond.Response{data=push_service.RegistrationResult} "成功响应"
// @Failure 400 {object} respond.Response "参数错误"
// @Failure 500 {object} respond.Response "服务器内部错误"
// @Router /v1/push/register [post]
func (pc *PushController) RegisterToken(c *gin.Context) {
	var (
		t            int64 = tool.MakeTimestamp()
		requestModel *request.RegisterTokenReq
	)

	if err := c.ShouldBindJSON(&requestModel); err != nil {
		pc.fail(c, t, bindError(err))
		return
	}

	result, err := pc.manager.RegisterToken(c.Request.Context(), requestModel.Email, requestModel.DeviceID, requestModel.Token)
	if err != nil {
		pc.fail(c, t, err)
		return
	}
	c.JSONP(http.StatusOK, respond.RespSuccess(result, tool.MakeTimestamp()-t))
}

// UnregisterToken godoc
// @Summary 注销推送令牌
// @Description 按设备槽位或令牌值移除用户的推送令牌，二者必须且只能给出一个。记录清空后会被删除。
// @Tags Push API
// @Accept json
// @Produce json
// @Param request body request.UnregisterTokenReq true "请求参数"
// @Success 200 {object} respond.Response{data=push_service.UnregisterResult} "成功响应"
// @Failure 400 {object} respond.Response "参数错误"
// @Failure 500 {object} respond.Response "服务器内部错误"
// @Router /v1/push/unregister [post]
func (pc *PushController) UnregisterToken(c *gin.Context) {
	var (
		t            int64 = tool.MakeTimestamp()
		requestModel *request.UnregisterTokenReq
	)

	if err := c.ShouldBindJSON(&requestModel); err != nil {
		pc.fail(c, t, bindError(err))
		return
	}

	result, err := pc.manager.Registry().Unregister(c.Request.Context(), requestModel.Email,
		push_service.Selector{DeviceSlot: requestModel.DeviceID, Token: requestModel.Token})
	if err != nil {
		pc.fail(c, t, err)
		return
	}
	c.JSONP(http.StatusOK, respond.RespSuccess(result, tool.MakeTimestamp()-t))
}

// RemoveAllTokens godoc
// @Summary 移除用户所有推送令牌
// @Description 删除用户的令牌记录（所有设备退出登录）
// @Tags Push API
// @Accept json
// @Produce json
// @Param request body request.RemoveAllTokensReq true "请求参数"
// @Success 200 {object} respond.Response "成功响应"
// @Failure 400 {object} respond.Response "参数错误"
// @Failure 500 {object} respond.Response "服务器内部错误"
// @Router /v1/push/remove_all [post]
func (pc *PushController) RemoveAllTokens(c *gin.Context) {
	var (
		t            int64 = tool.MakeTimestamp()
		requestModel *request.RemoveAllTokensReq
	)

	if err := c.ShouldBindJSON(&requestModel); err != nil {
		pc.fail(c, t, bindError(err))
		return
	}

	count, err := pc.manager.Registry().RemoveAll(c.Request.Context(), requestModel.Email)
	if err != nil {
		pc.fail(c, t, err)
		return
	}

	responseData := map[string]interface{}{
		"removed": count > 0,
		"count":   count,
	}
	c.JSONP(http.StatusOK, respond.RespSuccess(responseData, tool.MakeTimestamp()-t))
}

// LookupTokens godoc
// @Summary 查询用户推送令牌
// @Description 返回用户所有令牌（按登记顺序），给出 deviceId 时最多返回该槽位的一个令牌
// @Tags Push API
// @Produce json
// @Param email query string true "用户邮箱"
// @Param deviceId query string false "设备槽位"
// @Success 200 {object} respond.Response "成功响应"
// @Failure 400 {object} respond.Response "参数错误"
// @Failure 500 {object} respond.Response "服务器内部错误"
// @Router /v1/push/tokens [get]
func (pc *PushController) LookupTokens(c *gin.Context) {
	var t int64 = tool.MakeTimestamp()

	email := c.Query("email")
	if email == "" {
		pc.fail(c, t, push_service.NewValidationError("email query parameter is required"))
		return
	}

	tokens, err := pc.manager.Registry().Lookup(c.Request.Context(), email, c.Query("deviceId"))
	if err != nil {
		pc.fail(c, t, err)
		return
	}

	responseData := map[string]interface{}{
		"email":  push_service.NormalizeIdentity(email),
		"tokens": tokens,
	}
	c.JSONP(http.StatusOK, respond.RespSuccess(responseData, tool.MakeTimestamp()-t))
}

// GetTokensList godoc
// @Summary 获取令牌记录列表（分页）
// @Description 分页列出所有用户的令牌记录，存储不支持遍历时返回 501
// @Tags Push API
// @Produce json
// @Security ApiKeyAuth
// @Param page query int false "页码，默认为1" default(1)
// @Param pageSize query int false "每页大小，默认为10" default(10)
// @Success 200 {object} respond.Response{data=push_service.RecordPage} "成功响应"
// @Failure 401 {object} respond.Response "认证失败"
// @Failure 500 {object} respond.Response "服务器内部错误"
// @Failure 501 {object} respond.Response "存储不支持"
// @Router /v1/push/tokens_list [get]
func (pc *PushController) GetTokensList(c *gin.Context) {
	var (
		t            int64 = tool.MakeTimestamp()
		requestModel request.GetTokensListReq
	)
	_ = c.ShouldBindQuery(&requestModel)

	result, supported, err := pc.manager.ListRecords(c.Request.Context(), requestModel.Page, requestModel.PageSize)
	if err != nil {
		pc.fail(c, t, err)
		return
	}
	if !supported {
		c.JSONP(http.StatusNotImplemented, respond.RespErr(errors.New("token store does not support listing"),
			tool.MakeTimestamp()-t, http.StatusNotImplemented))
		return
	}
	c.JSONP(http.StatusOK, respond.RespSuccess(result, tool.MakeTimestamp()-t))
}

// SendNotification godoc
// @Summary 发送通知
// @Description 按用户邮箱（同时清理失效令牌）或直接按令牌列表发送通知。全部失败且没有永久失效令牌时返回 500。
// @Tags Push API
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body request.SendNotificationReq true "请求参数"
// @Success 200 {object} respond.Response{data=push_service.DispatchReport} "成功响应"
// @Failure 400 {object} respond.Response "参数错误"
// @Failure 401 {object} respond.Response "认证失败"
// @Failure 404 {object} respond.Response "用户没有登记令牌"
// @Failure 500 {object} respond.Response "服务器内部错误"
// @Router /v1/push/send [post]
func (pc *PushController) SendNotification(c *gin.Context) {
	var (
		t            int64 = tool.MakeTimestamp()
		requestModel *request.SendNotificationReq
	)

	if err := c.ShouldBindJSON(&requestModel); err != nil {
		pc.fail(c, t, bindError(err))
		return
	}

	report, err := pc.send(c, requestModel.Email, requestModel.Tokens, requestModel.Title, requestModel.Body, requestModel.Data)
	if err != nil {
		pc.fail(c, t, err)
		return
	}

	if report.TransientTotalFailure() {
		c.JSONP(http.StatusInternalServerError, respond.Message{
			Code:           http.StatusInternalServerError,
			Message:        "notification failed for every target token",
			ProcessingTime: tool.MakeTimestamp() - t,
			Data:           report,
		})
		return
	}
	c.JSONP(http.StatusOK, respond.RespSuccess(report, tool.MakeTimestamp()-t))
}

// send 优先按邮箱发送，没有邮箱时发送到给定令牌
func (pc *PushController) send(c *gin.Context, email string, tokens []string, title, body string, data map[string]string) (*push_service.DispatchReport, error) {
	switch {
	case email != "":
		return pc.manager.SendToUser(c.Request.Context(), email, title, body, data)
	case len(tokens) > 0:
		return pc.manager.SendToTokens(c.Request.Context(), tokens, title, body, data)
	default:
		return nil, push_service.NewValidationError("either email or token must be given")
	}
}
