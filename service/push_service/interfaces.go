package push_service

import (
	"context"
	"errors"
	"fleet-push-service/models"
)

// TokenDocumentStore 令牌记录存储接口，每个身份一条记录
type TokenDocumentStore interface {
	// Get 获取身份对应的记录，不存在时返回 models.ErrRecordNotFound
	Get(ctx context.Context, identity string) (*models.UserTokenRecord, error)

	// Set 整体覆盖写入记录
	Set(ctx context.Context, record *models.UserTokenRecord) error

	// AddEntries 原子地把条目并入令牌数组，记录不存在时创建
	AddEntries(ctx context.Context, identity string, entries ...models.TokenEntry) error

	// RemoveEntries 原子地从令牌数组移除与存储值完全相同的条目
	RemoveEntries(ctx context.Context, identity string, entries ...models.TokenEntry) error

	// DeleteIfEmpty 令牌数组为空时删除记录，返回是否删除
	DeleteIfEmpty(ctx context.Context, identity string) (bool, error)

	// Delete 删除记录
	Delete(ctx context.Context, identity string) error

	// Close 释放存储资源
	Close() error
}

// PushTransport 多播推送通道。返回的结果切片与 tokens 等长且顺序一致
type PushTransport interface {
	// GetName 返回通道名称
	GetName() string

	// SendMulticast 一次请求发送给整批令牌
	SendMulticast(ctx context.Context, tokens []string, notification models.Notification, data map[string]string) ([]models.DeliveryOutcome, error)
}

// ErrIdentityNotFound 设备没有可解析的用户身份
var ErrIdentityNotFound = errors.New("identity not found")

// IdentityResolver 通过设备ID查找用户身份（外部目录服务）
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, deviceID int64) (string, error)
}

// TokenPruner is the registry capability the reconciler depends on.
type TokenPruner interface {
	Prune(ctx context.Context, identity string, tokens map[string]struct{}) error
}

// 常量定义
const (
	ProviderTypeExpo = "expo"
	ProviderTypeFCM  = "fcm"
)
