package socket_client_service

import (
	"context"
	"fleet-push-service/models"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Client Traccar /api/socket 订阅客户端
//
// Traccar pushes JSON frames carrying any of devices, positions and events.
// The client reconnects with exponential backoff until its context ends.
type Client struct {
	config   *Config
	session  SessionProvider
	log      *zap.Logger
	mu       sync.RWMutex
	conn     *websocket.Conn
	attempts int

	// 消息处理回调
	OnMessage    func(*models.SocketMessage)
	OnConnect    func()
	OnDisconnect func()
	OnError      func(error)
}

// NewClient 创建新的客户端
func NewClient(config *Config, session SessionProvider, log *zap.Logger) *Client {
	if config == nil {
		config = &Config{}
	}
	config.applyDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		config:  config,
		session: session,
		log:     log.Named("traccar_socket"),
	}
}

// SocketURL 把服务器地址转换为 WebSocket 地址
func SocketURL(serverURL, path string) (string, error) {
	u, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String(), nil
}

// Run 连接并读取消息，断开后重连，直到 ctx 结束
func (c *Client) Run(ctx context.Context) error {
	for {
		err := c.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			c.log.Warn("traccar socket disconnected", zap.Error(err))
			if c.OnError != nil {
				c.OnError(err)
			}
		}

		delay := c.nextDelay()
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *Client) nextDelay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	delay := c.config.ReconnectDelay << c.attempts
	if delay <= 0 || delay > c.config.MaxReconnect {
		delay = c.config.MaxReconnect
	} else {
		c.attempts++
	}
	return delay
}

func (c *Client) connectAndRead(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.conn = conn
	c.attempts = 0
	c.mu.Unlock()

	c.log.Info("traccar socket connected", zap.String("server", c.config.ServerURL))
	if c.OnConnect != nil {
		c.OnConnect()
	}
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "")
		if c.OnDisconnect != nil {
			c.OnDisconnect()
		}
	}()

	for {
		var message models.SocketMessage
		if err := wsjson.Read(ctx, conn, &message); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return err
		}
		if c.OnMessage != nil {
			c.OnMessage(&message)
		}
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	socketURL, err := SocketURL(c.config.ServerURL, c.config.Path)
	if err != nil {
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	header := http.Header{}
	if c.session != nil {
		cookies, err := c.session.CreateSession(dialCtx)
		if err != nil {
			return nil, fmt.Errorf("create traccar session: %w", err)
		}
		parts := make([]string, 0, len(cookies))
		for _, cookie := range cookies {
			parts = append(parts, cookie.Name+"="+cookie.Value)
		}
		header.Set("Cookie", strings.Join(parts, "; "))
	}

	conn, _, err := websocket.Dial(dialCtx, socketURL, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", socketURL, err)
	}
	// Traccar frames carry whole position batches
	conn.SetReadLimit(4 << 20)
	return conn, nil
}

// IsConnected 检查是否已连接
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}
