package auth

import (
	"crypto/subtle"
	"fleet-push-service/controller/respond"
	"fleet-push-service/tool"
	"net/http"

	"github.com/gin-gonic/gin"
)

const HeaderAPIKey = "X-API-KEY"

// APIKeyMiddleware 校验 X-API-KEY 请求头，apiKey 为空时不校验
func APIKeyMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}
		t := tool.MakeTimestamp()
		provided := c.GetHeader(HeaderAPIKey)
		if provided == "" {
			abort(c, t, "missing "+HeaderAPIKey+" header")
			return
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
			abort(c, t, "invalid api key")
			return
		}
		c.Next()
	}
}

func abort(c *gin.Context, t int64, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized,
		respond.RespErr(respond.NewAuthError(message), tool.MakeTimestamp()-t, http.StatusUnauthorized))
}
