package controller

import (
	"fleet-push-service/controller/auth"
	"fmt"
	"net/http"
	"time"

	_ "fleet-push-service/docs" // 导入生成的 swagger 文档

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

const RequestIDKey = "request_id"

// RouterConfig 路由配置
type RouterConfig struct {
	APIKey   string              // 为空时发送和事件接口不鉴权
	Gatherer prometheus.Gatherer // 为空时使用默认注册表
	Log      *zap.Logger
}

// NewRouter 构建 HTTP 路由
func NewRouter(pc *PushController, config RouterConfig) *gin.Engine {
	log := config.Log
	if log == nil {
		log = zap.NewNop()
	}
	gatherer := config.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	apiKey := auth.APIKeyMiddleware(config.APIKey)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(Cors())
	router.Use(Logger(log.Named("http")))

	// Swagger 文档路由
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	Handle(router, []string{http.MethodGet, http.MethodHead}, "/healthz", pc.Health)

	v1 := router.Group("/v1")
	{
		pushGroup := v1.Group("/push")
		{
			pushGroup.POST("/register", pc.RegisterToken)
			pushGroup.POST("/unregister", pc.UnregisterToken)
			pushGroup.POST("/remove_all", pc.RemoveAllTokens)
			pushGroup.GET("/tokens", pc.LookupTokens)
			pushGroup.GET("/tokens_list", apiKey, pc.GetTokensList)
			pushGroup.POST("/send", apiKey, pc.SendNotification)
			pushGroup.POST("/events", apiKey, pc.DispatchEvent)
		}
	}

	api := router.Group("/api")
	{
		api.POST("/savetoken", pc.SaveToken)
		api.POST("/notifications-register", pc.RegisterBackgroundToken)
		api.POST("/delete-token", pc.DeleteToken)
		api.GET("/check-user-token", pc.CheckUserToken)
		api.GET("/notifications", pc.CheckDeviceToken)
		api.POST("/notifications", pc.RegisterDeviceToken)
		api.DELETE("/notifications", pc.DeleteDeviceToken)
		api.POST("/send-notification", apiKey, pc.LegacySendNotification)
		api.POST("/traccar-event", apiKey, pc.TraccarEvent)
	}

	return router
}

// NewServer 创建 HTTP 服务，由调用方负责启动与优雅关闭
func NewServer(router *gin.Engine, port string) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%s", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Health 健康检查
func (pc *PushController) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"transport": pc.manager.TransportName(),
		"running":   pc.center.IsRunning(),
	})
}

func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		c.Header("Access-Control-Allow-Headers", "Content-Type,AccessToken,X-CSRF-Token, Authorization,X-API-KEY,X-Request-ID")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Set("content-type", "application/json")
		if method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
		}
		c.Next()
	}
}

// RequestID 为每个请求分配 X-Request-ID，已有时沿用
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(RequestIDKey, requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// Logger 请求日志
func Logger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("clientIp", c.ClientIP()),
			zap.String("requestId", c.GetString(RequestIDKey)),
		}
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			log.Error("request", fields...)
		case status >= http.StatusBadRequest:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}

func Handle(r *gin.Engine, httpMethods []string, relativePath string, handlers ...gin.HandlerFunc) gin.IRoutes {
	var routes gin.IRoutes
	for _, httpMethod := range httpMethods {
		routes = r.Handle(httpMethod, relativePath, handlers...)
	}
	return routes
}
