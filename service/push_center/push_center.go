package pushcenter

import (
	"context"
	"errors"
	"fleet-push-service/models"
	"fleet-push-service/service/push_service"
	"fleet-push-service/service/socket_client_service"
	"fleet-push-service/tool"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultEventTimeout = 30 * time.Second
	// DefaultMaxConcurrentEvents 同时处理的 WebSocket 事件上限
	DefaultMaxConcurrentEvents = 16
)

// Config 推送中心配置
type Config struct {
	SocketConfig *socket_client_service.Config `yaml:"socket" json:"socket"` // 为空时不订阅 Traccar WebSocket
	EventTimeout time.Duration                 `yaml:"event_timeout" json:"event_timeout"`
	// MaxConcurrentEvents 限制并发处理的事件数，满时 WebSocket 读取等待
	MaxConcurrentEvents int `yaml:"max_concurrent_events" json:"max_concurrent_events"`
}

// IdentityInvalidator 由带缓存的解析器实现，丢弃设备的缓存归属
type IdentityInvalidator interface {
	Invalidate(ctx context.Context, deviceID int64) error
}

// DeviceDirectory 按 id 查询设备，用于补全 WebSocket 事件缺少的设备名称
type DeviceDirectory interface {
	Device(ctx context.Context, deviceID int64) (*models.TraccarDevice, error)
}

// EventResult 单个跟踪事件的处理结果
type EventResult struct {
	Delivered bool                         `json:"delivered"`
	EventType models.EventType             `json:"eventType"`
	Identity  string                       `json:"-"`
	Report    *push_service.DispatchReport `json:"-"`
}

// PushCenter 推送中心：把 Traccar 事件（Webhook 或 WebSocket）转换为推送
type PushCenter struct {
	socketManager *socket_client_service.Manager
	pushManager   *push_service.Manager
	resolver      push_service.IdentityResolver
	directory     DeviceDirectory
	config        *Config
	log           *zap.Logger

	running bool
	mu      sync.RWMutex

	// device names learnt from socket frames, used when an event carries no device section
	devices   map[int64]string
	devicesMu sync.RWMutex

	inflight sync.WaitGroup
	slots    chan struct{}
}

// NewPushCenter 创建推送中心实例。session 只在启用 WebSocket 订阅时使用
func NewPushCenter(config *Config, pushManager *push_service.Manager, resolver push_service.IdentityResolver,
	session socket_client_service.SessionProvider, log *zap.Logger) *PushCenter {
	if config == nil {
		config = &Config{}
	}
	if config.EventTimeout <= 0 {
		config.EventTimeout = DefaultEventTimeout
	}
	if config.MaxConcurrentEvents <= 0 {
		config.MaxConcurrentEvents = DefaultMaxConcurrentEvents
	}
	if log == nil {
		log = zap.NewNop()
	}
	pc := &PushCenter{
		pushManager: pushManager,
		resolver:    resolver,
		config:      config,
		log:         log.Named("push_center"),
		devices:     make(map[int64]string),
		slots:       make(chan struct{}, config.MaxConcurrentEvents),
	}
	if config.SocketConfig != nil {
		pc.socketManager = socket_client_service.NewManager(config.SocketConfig, session, log)
	}
	return pc
}

// Initialize 初始化推送中心
func (pc *PushCenter) Initialize() error {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if pc.pushManager == nil {
		return errors.New("push manager is required")
	}
	if pc.resolver == nil {
		return errors.New("identity resolver is required")
	}
	if pc.socketManager == nil {
		pc.log.Info("push center initialized without socket subscription")
		return nil
	}

	pc.socketManager.SetConnectHandler(func() {
		pc.log.Info("traccar socket connected")
	})
	pc.socketManager.SetDisconnectHandler(func() {
		pc.log.Warn("traccar socket disconnected")
	})
	pc.socketManager.SetErrorHandler(func(err error) {
		pc.log.Error("traccar socket error", zap.Error(err))
	})
	pc.socketManager.SetMessageHandler(pc.handleSocketMessage)

	pc.log.Info("push center initialized")
	return nil
}

// Run 运行推送中心
func (pc *PushCenter) Run() error {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if pc.running {
		return fmt.Errorf("push center is already running")
	}
	if pc.socketManager != nil {
		if err := pc.socketManager.Start(); err != nil {
			return fmt.Errorf("start socket client: %w", err)
		}
	}
	pc.running = true
	pc.log.Info("push center started", zap.String("transport", pc.pushManager.TransportName()))
	return nil
}

// Stop 停止推送中心，等待进行中的事件处理完成后关闭存储。
// 等待期间不持有 mu，进行中的事件仍可读取配置
func (pc *PushCenter) Stop() error {
	pc.mu.Lock()
	pc.running = false
	socketManager := pc.socketManager
	pc.mu.Unlock()

	if socketManager != nil {
		socketManager.Stop()
	}
	pc.inflight.Wait()

	if err := pc.pushManager.Stop(); err != nil {
		pc.log.Warn("closing token store failed", zap.Error(err))
		return err
	}
	pc.log.Info("push center stopped")
	return nil
}

// IsRunning 检查推送中心是否正在运行
func (pc *PushCenter) IsRunning() bool {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	if pc.socketManager == nil {
		return pc.running
	}
	return pc.running && pc.socketManager.IsRunning()
}

// SetDeviceDirectory 设置设备查询，需在 Run 之前调用
func (pc *PushCenter) SetDeviceDirectory(directory DeviceDirectory) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.directory = directory
}

// GetPushManager 获取推送服务管理器
func (pc *PushCenter) GetPushManager() *push_service.Manager {
	return pc.pushManager
}

// HandleEvent resolves the device owner, translates the event and fans it out
// to every token of that user. A device without a resolvable user is not an
// error: the result reports Delivered=false.
func (pc *PushCenter) HandleEvent(ctx context.Context, payload *models.TraccarPayload) (*EventResult, error) {
	if payload == nil || payload.Event == nil || payload.Device == nil || payload.Event.DeviceID == 0 {
		return nil, push_service.NewValidationError("invalid request body: missing event or device data")
	}
	event := payload.Event
	eventType := push_service.ParseEventType(event.Type)
	result := &EventResult{EventType: eventType}

	identity, err := pc.resolver.ResolveIdentity(ctx, event.DeviceID)
	if err != nil {
		if !errors.Is(err, push_service.ErrIdentityNotFound) {
			pc.log.Warn("identity lookup failed", zap.Int64("deviceId", event.DeviceID), zap.Error(err))
		}
		pc.log.Info("event has no recipient", zap.Int64("deviceId", event.DeviceID), zap.String("type", event.Type))
		return result, nil
	}
	result.Identity = identity

	deviceKey := models.DeviceKey(event.DeviceID)
	name := payload.Device.Name
	if name == "" {
		name = pc.deviceName(event.DeviceID)
	}
	notificationEvent := models.NotificationEvent{
		Type:        eventType,
		RawType:     event.Type,
		DeviceID:    deviceKey,
		DeviceLabel: push_service.DeviceLabel(name, deviceKey),
		Attributes:  event.Attributes,
	}

	report, err := pc.pushManager.Dispatcher().Dispatch(ctx, identity,
		push_service.Translate(notificationEvent), push_service.EventData(notificationEvent))
	if err != nil {
		if errors.Is(err, push_service.ErrNoRecipient) {
			pc.invalidateIdentity(ctx, event.DeviceID)
		}
		return nil, err
	}
	result.Report = report
	result.Delivered = report.Sent > 0
	pc.log.Info("event dispatched", zap.String("identity", tool.MaskIdentity(identity)),
		zap.String("type", event.Type), zap.Int("sent", report.Sent), zap.Int("failed", report.Failed),
		zap.Int("invalidRemoved", report.InvalidRemoved))
	return result, nil
}

// invalidateIdentity 归属用户没有令牌时丢弃缓存，下一次事件重新向 Traccar 查询
func (pc *PushCenter) invalidateIdentity(ctx context.Context, deviceID int64) {
	invalidator, ok := pc.resolver.(IdentityInvalidator)
	if !ok {
		return
	}
	if err := invalidator.Invalidate(ctx, deviceID); err != nil {
		pc.log.Warn("identity cache invalidation failed", zap.Int64("deviceId", deviceID), zap.Error(err))
	}
}

func (pc *PushCenter) deviceName(id int64) string {
	pc.devicesMu.RLock()
	defer pc.devicesMu.RUnlock()
	return pc.devices[id]
}

// lookupDeviceName 先查已知设备，找不到时询问 Traccar
func (pc *PushCenter) lookupDeviceName(ctx context.Context, id int64) string {
	if name := pc.deviceName(id); name != "" {
		return name
	}
	pc.mu.RLock()
	directory := pc.directory
	pc.mu.RUnlock()
	if directory == nil {
		return ""
	}
	device, err := directory.Device(ctx, id)
	if err != nil {
		pc.log.Debug("device lookup failed", zap.Int64("deviceId", id), zap.Error(err))
		return ""
	}
	pc.rememberDevices([]models.TraccarDevice{*device})
	return device.Name
}

func (pc *PushCenter) rememberDevices(devices []models.TraccarDevice) {
	if len(devices) == 0 {
		return
	}
	pc.devicesMu.Lock()
	defer pc.devicesMu.Unlock()
	for _, device := range devices {
		if device.Name != "" {
			pc.devices[device.ID] = device.Name
		}
	}
}

// handleSocketMessage 处理 WebSocket 帧，每个事件单独处理，并发数受 slots 限制
func (pc *PushCenter) handleSocketMessage(message *models.SocketMessage) {
	if message == nil {
		return
	}
	pc.rememberDevices(message.Devices)

	for i := range message.Events {
		event := message.Events[i]
		pc.slots <- struct{}{}
		pc.inflight.Add(1)
		go func() {
			defer func() {
				<-pc.slots
				pc.inflight.Done()
			}()
			pc.processSocketEvent(&event)
		}()
	}
}

func (pc *PushCenter) processSocketEvent(event *models.TraccarEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), pc.config.EventTimeout)
	defer cancel()

	payload := &models.TraccarPayload{
		Event:  event,
		Device: &models.TraccarDevice{ID: event.DeviceID, Name: pc.lookupDeviceName(ctx, event.DeviceID)},
	}
	if _, err := pc.HandleEvent(ctx, payload); err != nil {
		if errors.Is(err, push_service.ErrNoRecipient) {
			pc.log.Info("socket event has no registered tokens", zap.Int64("deviceId", event.DeviceID))
			return
		}
		pc.log.Error("socket event dispatch failed", zap.Int64("deviceId", event.DeviceID),
			zap.String("type", event.Type), zap.Error(err))
	}
}
