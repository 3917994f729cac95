package socket_client_service

import (
	"context"
	"net/http"
	"time"
)

// Config Traccar WebSocket 客户端配置
type Config struct {
	ServerURL      string        `yaml:"server_url" json:"server_url"`           // Traccar 地址，http(s) 会转换为 ws(s)
	Path           string        `yaml:"path" json:"path"`                       // 默认 "/api/socket"
	Timeout        time.Duration `yaml:"timeout" json:"timeout"`                 // 连接超时
	ReconnectDelay time.Duration `yaml:"reconnect_delay" json:"reconnect_delay"` // 首次重连等待，之后指数增长
	MaxReconnect   time.Duration `yaml:"max_reconnect" json:"max_reconnect"`     // 重连等待上限
}

const (
	DefaultPath           = "/api/socket"
	DefaultTimeout        = 10 * time.Second
	DefaultReconnectDelay = time.Second
	DefaultMaxReconnect   = time.Minute
)

// applyDefaults 设置默认值
func (c *Config) applyDefaults() {
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	if c.MaxReconnect < c.ReconnectDelay {
		c.MaxReconnect = DefaultMaxReconnect
	}
}

// SessionProvider 提供 WebSocket 握手所需的会话 Cookie
type SessionProvider interface {
	CreateSession(ctx context.Context) ([]*http.Cookie, error)
}
