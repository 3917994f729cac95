package push_service

import (
	"context"
	"fleet-push-service/models"
	"time"

	"go.uber.org/zap"
)

// Config 推送核心配置
type Config struct {
	StoreTimeout    time.Duration
	DeliveryTimeout time.Duration
}

// Manager 推送服务管理器，持有注册表和分发器，供所有入口共享
type Manager struct {
	store      TokenDocumentStore
	transport  PushTransport
	registry   *Registry
	dispatcher *Dispatcher
	metrics    *Metrics
}

// NewManager 创建推送服务管理器
func NewManager(store TokenDocumentStore, transport PushTransport, config Config, metrics *Metrics, log *zap.Logger) *Manager {
	registry := NewRegistry(store, config.StoreTimeout, log)
	return &Manager{
		store:      store,
		transport:  transport,
		registry:   registry,
		dispatcher: NewDispatcher(registry, transport, config.DeliveryTimeout, metrics, log),
		metrics:    metrics,
	}
}

// Registry 返回令牌注册表
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Dispatcher 返回推送分发器
func (m *Manager) Dispatcher() *Dispatcher {
	return m.dispatcher
}

// TransportName 返回当前推送通道名称
func (m *Manager) TransportName() string {
	return m.transport.GetName()
}

// RegisterToken 注册令牌并记录指标
func (m *Manager) RegisterToken(ctx context.Context, identity, deviceSlot, token string) (*RegistrationResult, error) {
	result, err := m.registry.Register(ctx, identity, deviceSlot, token)
	if err != nil {
		m.metrics.ObserveRegistration(string(KindOf(err)))
		return nil, err
	}
	m.metrics.ObserveRegistration(string(result.Outcome))
	return result, nil
}

// SendToUser 发送通知给指定用户的所有设备
func (m *Manager) SendToUser(ctx context.Context, identity, title, body string, data map[string]string) (*DispatchReport, error) {
	return m.dispatcher.Dispatch(ctx, identity, models.Notification{Title: title, Body: body}, data)
}

// SendToTokens 直接发送给指定令牌
func (m *Manager) SendToTokens(ctx context.Context, tokens []string, title, body string, data map[string]string) (*DispatchReport, error) {
	return m.dispatcher.SendDirect(ctx, tokens, models.Notification{Title: title, Body: body}, data)
}

// Stop 关闭存储
func (m *Manager) Stop() error {
	return m.store.Close()
}

// ListRecords 分页列出令牌记录，存储不支持枚举时返回 ok=false
func (m *Manager) ListRecords(ctx context.Context, page, pageSize int) (*RecordPage, bool, error) {
	lister, ok := m.store.(RecordLister)
	if !ok {
		return nil, false, nil
	}
	result, err := lister.ListRecords(ctx, page, pageSize)
	if err != nil {
		return nil, true, registryUnavailable("list", err)
	}
	return result, true, nil
}
