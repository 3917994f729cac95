package socket_client_service

import (
	"context"
	"errors"
	"fleet-push-service/models"
	"sync"

	"go.uber.org/zap"
)

// Manager 管理 Traccar WebSocket 客户端的生命周期
type Manager struct {
	client *Client
	config *Config
	log    *zap.Logger
	mu     sync.RWMutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager 创建管理器
func NewManager(config *Config, session SessionProvider, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	client := NewClient(config, session, log)
	return &Manager{
		config: client.config,
		client: client,
		log:    log.Named("socket_manager"),
	}
}

// Start 在后台启动客户端
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		return errors.New("socket client already running")
	}
	if m.config.ServerURL == "" {
		return errors.New("socket server url is required")
	}
	if _, err := SocketURL(m.config.ServerURL, m.config.Path); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		if err := m.client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			m.log.Error("socket client exited", zap.Error(err))
		}
	}(m.done)

	m.log.Info("socket client started", zap.String("server", m.config.ServerURL))
	return nil
}

// Stop 停止客户端并等待读取循环退出
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	m.log.Info("socket client stopped")
}

// IsRunning 检查是否运行中
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cancel != nil && m.client.IsConnected()
}

// SetMessageHandler 设置消息处理器，需在 Start 之前调用
func (m *Manager) SetMessageHandler(handler func(*models.SocketMessage)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.client.OnMessage = handler
}

// SetConnectHandler 设置连接处理器
func (m *Manager) SetConnectHandler(handler func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.client.OnConnect = handler
}

// SetDisconnectHandler 设置断开连接处理器
func (m *Manager) SetDisconnectHandler(handler func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.client.OnDisconnect = handler
}

// SetErrorHandler 设置错误处理器
func (m *Manager) SetErrorHandler(handler func(error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.client.OnError = handler
}
