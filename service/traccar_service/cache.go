package traccar_service

import (
	"context"
	"errors"
	"fleet-push-service/service/push_service"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	DefaultIdentityTTL = 10 * time.Minute

	identityKeyPrefix = "fleet-push:identity:"
	// notFoundMarker caches a device without a user for a shorter time
	notFoundMarker = "-"
)

// CachedResolver Redis 读穿缓存，缓存设备到身份的映射
type CachedResolver struct {
	next push_service.IdentityResolver
	rdb  redis.Cmdable
	ttl  time.Duration
	log  *zap.Logger
}

var _ push_service.IdentityResolver = (*CachedResolver)(nil)

// NewCachedResolver 包装解析器；ttl<=0 时使用默认值
func NewCachedResolver(next push_service.IdentityResolver, rdb redis.Cmdable, ttl time.Duration, log *zap.Logger) *CachedResolver {
	if ttl <= 0 {
		ttl = DefaultIdentityTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedResolver{next: next, rdb: rdb, ttl: ttl, log: log.Named("identity_cache")}
}

func identityKey(deviceID int64) string {
	return fmt.Sprintf("%s%d", identityKeyPrefix, deviceID)
}

// ResolveIdentity 先查缓存，未命中时调用下游并写回。缓存故障不影响解析
func (r *CachedResolver) ResolveIdentity(ctx context.Context, deviceID int64) (string, error) {
	key := identityKey(deviceID)
	cached, err := r.rdb.Get(ctx, key).Result()
	switch {
	case err == nil && cached == notFoundMarker:
		return "", push_service.ErrIdentityNotFound
	case err == nil:
		return cached, nil
	case !errors.Is(err, redis.Nil):
		r.log.Warn("identity cache read failed", zap.Int64("deviceId", deviceID), zap.Error(err))
	}

	identity, err := r.next.ResolveIdentity(ctx, deviceID)
	if errors.Is(err, push_service.ErrIdentityNotFound) {
		r.store(ctx, key, notFoundMarker, r.ttl/10)
		return "", err
	}
	if err != nil {
		return "", err
	}
	r.store(ctx, key, identity, r.ttl)
	return identity, nil
}

// Invalidate 删除设备的缓存项
func (r *CachedResolver) Invalidate(ctx context.Context, deviceID int64) error {
	return r.rdb.Del(ctx, identityKey(deviceID)).Err()
}

func (r *CachedResolver) store(ctx context.Context, key, value string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	if err := r.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		r.log.Warn("identity cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// NewRedisClient 根据配置创建 Redis 客户端并检查连通性
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}
