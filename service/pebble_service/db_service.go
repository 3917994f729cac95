package pebble_service

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// 全局服务实例
var (
	globalService *PebbleService
	globalMu      sync.Mutex
)

// GetGlobalService 获取全局 Pebble 服务实例，未初始化时返回 nil
func GetGlobalService() *PebbleService {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalService
}

// InitializeGlobalService 初始化全局服务，重复调用返回已有实例
func InitializeGlobalService(config *Config, log *zap.Logger) (*PebbleService, error) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalService != nil {
		return globalService, nil
	}
	service, err := NewPebbleService(config, log)
	if err != nil {
		return nil, fmt.Errorf("initialize pebble service: %w", err)
	}
	globalService = service
	return service, nil
}

// CloseGlobalService 关闭全局服务
func CloseGlobalService() error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalService == nil {
		return nil
	}
	err := globalService.Close()
	globalService = nil
	return err
}
