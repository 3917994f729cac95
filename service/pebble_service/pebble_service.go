package pebble_service

import (
	"context"
	"encoding/json"
	"errors"
	"fleet-push-service/models"
	"fleet-push-service/service/push_service"
	"fmt"
	"hash/fnv"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"
)

const lockStripes = 64

// Config Pebble 配置
type Config struct {
	DBPath     string `yaml:"db_path" json:"db_path"`       // 数据库文件路径
	Collection string `yaml:"collection" json:"collection"` // 令牌记录集合名称
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		DBPath:     "./data/pebble",
		Collection: models.CollectionUserTokens,
	}
}

// CollectionManager 集合管理器，每个集合一个独立的 Pebble 实例
type CollectionManager struct {
	mu          sync.RWMutex
	collections map[string]*pebble.DB
	basePath    string
	log         *zap.Logger
}

// NewCollectionManager 创建集合管理器
func NewCollectionManager(basePath string, log *zap.Logger) *CollectionManager {
	return &CollectionManager{
		collections: make(map[string]*pebble.DB),
		basePath:    basePath,
		log:         log,
	}
}

// GetCollection 获取指定集合的数据库实例
func (cm *CollectionManager) GetCollection(collectionName string) (*pebble.DB, error) {
	cm.mu.RLock()
	if db, exists := cm.collections[collectionName]; exists {
		cm.mu.RUnlock()
		return db, nil
	}
	cm.mu.RUnlock()

	cm.mu.Lock()
	defer cm.mu.Unlock()

	// 双重检查，防止并发创建
	if db, exists := cm.collections[collectionName]; exists {
		return db, nil
	}

	dbPath := filepath.Join(cm.basePath, collectionName)
	opts := &pebble.Options{
		Cache:                       pebble.NewCache(16 << 20), // 16MB 缓存
		FormatMajorVersion:          pebble.FormatNewest,
		L0CompactionThreshold:       2,
		L0StopWritesThreshold:       1000,
		LBaseMaxBytes:               16 << 20,
		MaxOpenFiles:                4096,
		MemTableSize:                16 << 20, // 16MB 内存表
		MemTableStopWritesThreshold: 4,
	}

	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("open collection %s: %w", collectionName, err)
	}

	cm.collections[collectionName] = db
	cm.log.Info("collection opened", zap.String("collection", collectionName), zap.String("path", dbPath))
	return db, nil
}

// CloseAll 关闭所有集合的数据库
func (cm *CollectionManager) CloseAll() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	var failures []string
	for collectionName, db := range cm.collections {
		if err := db.Close(); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", collectionName, err))
		}
	}
	cm.collections = make(map[string]*pebble.DB)

	if len(failures) > 0 {
		return fmt.Errorf("close collections: %s", strings.Join(failures, "; "))
	}
	return nil
}

// PebbleService 基于 Pebble 的令牌记录存储
//
// Pebble has no field-level array operations, so every mutation is a
// read-modify-write of one JSON value under a per-identity lock stripe.
// Concurrent writers in this process never lose each other's updates.
type PebbleService struct {
	collectionMgr *CollectionManager
	collection    string
	stripes       [lockStripes]sync.Mutex
	log           *zap.Logger
}

var _ push_service.TokenDocumentStore = (*PebbleService)(nil)
var _ push_service.RecordLister = (*PebbleService)(nil)

// NewPebbleService 创建 Pebble 存储并打开令牌集合
func NewPebbleService(config *Config, log *zap.Logger) (*PebbleService, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Collection == "" {
		config.Collection = models.CollectionUserTokens
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("pebble")

	ps := &PebbleService{
		collectionMgr: NewCollectionManager(config.DBPath, log),
		collection:    config.Collection,
		log:           log,
	}
	if _, err := ps.db(); err != nil {
		return nil, err
	}
	return ps, nil
}

func (ps *PebbleService) db() (*pebble.DB, error) {
	return ps.collectionMgr.GetCollection(ps.collection)
}

func (ps *PebbleService) lock(identity string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(identity))
	mu := &ps.stripes[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}

// getUserTokensKey 生成用户令牌的键
func getUserTokensKey(identity string) []byte {
	return []byte(identity)
}

func (ps *PebbleService) read(db *pebble.DB, identity string) (*models.UserTokenRecord, error) {
	value, closer, err := db.Get(getUserTokensKey(identity))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, models.ErrRecordNotFound
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	defer closer.Close()

	var record models.UserTokenRecord
	if err := json.Unmarshal(value, &record); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	record.Identity = identity
	return &record, nil
}

func (ps *PebbleService) write(db *pebble.DB, record *models.UserTokenRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := db.Set(getUserTokensKey(record.Identity), data, pebble.Sync); err != nil {
		return fmt.Errorf("set record: %w", err)
	}
	return nil
}

// Get 获取身份对应的记录
func (ps *PebbleService) Get(ctx context.Context, identity string) (*models.UserTokenRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	db, err := ps.db()
	if err != nil {
		return nil, err
	}
	return ps.read(db, identity)
}

// Set 整体覆盖写入记录
func (ps *PebbleService) Set(ctx context.Context, record *models.UserTokenRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db, err := ps.db()
	if err != nil {
		return err
	}
	unlock := ps.lock(record.Identity)
	defer unlock()
	return ps.write(db, record)
}

// AddEntries 把条目并入令牌数组，相同条目不重复写入
func (ps *PebbleService) AddEntries(ctx context.Context, identity string, entries ...models.TokenEntry) error {
	return ps.update(ctx, identity, true, func(record *models.UserTokenRecord) bool {
		changed := false
		for _, entry := range entries {
			if containsEntry(record.Tokens, entry) {
				continue
			}
			entry.Raw = nil
			record.Tokens = append(record.Tokens, entry)
			changed = true
		}
		return changed
	})
}

// RemoveEntries 移除与存储值完全相同的条目
func (ps *PebbleService) RemoveEntries(ctx context.Context, identity string, entries ...models.TokenEntry) error {
	return ps.update(ctx, identity, false, func(record *models.UserTokenRecord) bool {
		kept := record.Tokens[:0]
		for _, existing := range record.Tokens {
			if !containsEntry(entries, existing) {
				kept = append(kept, existing)
			}
		}
		changed := len(kept) != len(record.Tokens)
		record.Tokens = kept
		return changed
	})
}

// DeleteIfEmpty 令牌数组为空时删除记录
func (ps *PebbleService) DeleteIfEmpty(ctx context.Context, identity string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	db, err := ps.db()
	if err != nil {
		return false, err
	}
	unlock := ps.lock(identity)
	defer unlock()

	record, err := ps.read(db, identity)
	if errors.Is(err, models.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(record.Tokens) > 0 {
		return false, nil
	}
	if err := db.Delete(getUserTokensKey(identity), pebble.Sync); err != nil {
		return false, fmt.Errorf("delete record: %w", err)
	}
	return true, nil
}

// Delete 删除记录
func (ps *PebbleService) Delete(ctx context.Context, identity string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db, err := ps.db()
	if err != nil {
		return err
	}
	unlock := ps.lock(identity)
	defer unlock()
	if err := db.Delete(getUserTokensKey(identity), pebble.Sync); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// Close 关闭数据库
func (ps *PebbleService) Close() error {
	if err := ps.collectionMgr.CloseAll(); err != nil {
		ps.log.Error("closing pebble failed", zap.Error(err))
		return err
	}
	ps.log.Info("pebble closed")
	return nil
}

func (ps *PebbleService) update(ctx context.Context, identity string, create bool, mutate func(*models.UserTokenRecord) bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db, err := ps.db()
	if err != nil {
		return err
	}
	unlock := ps.lock(identity)
	defer unlock()

	record, err := ps.read(db, identity)
	if errors.Is(err, models.ErrRecordNotFound) {
		if !create {
			return nil
		}
		record = &models.UserTokenRecord{Identity: identity, Tokens: []models.TokenEntry{}}
	} else if err != nil {
		return err
	}
	if !mutate(record) {
		return nil
	}
	return ps.write(db, record)
}

// ListRecords 分页列出令牌记录
func (ps *PebbleService) ListRecords(ctx context.Context, page, pageSize int) (*push_service.RecordPage, error) {
	page, pageSize = push_service.NormalizePage(page, pageSize)
	db, err := ps.db()
	if err != nil {
		return nil, err
	}

	iter, err := db.NewIter(nil)
	if err != nil {
		return nil, fmt.Errorf("create iterator: %w", err)
	}
	defer iter.Close()

	start := (page - 1) * pageSize
	records := make([]*models.UserTokenRecord, 0, pageSize)
	total := 0
	for iter.First(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if total >= start && len(records) < pageSize {
			var record models.UserTokenRecord
			if err := json.Unmarshal(iter.Value(), &record); err != nil {
				ps.log.Warn("skipping undecodable record", zap.ByteString("key", iter.Key()), zap.Error(err))
				total++
				continue
			}
			record.Identity = string(iter.Key())
			records = append(records, &record)
		}
		total++
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return push_service.NewRecordPage(records, total, page, pageSize), nil
}

func containsEntry(entries []models.TokenEntry, entry models.TokenEntry) bool {
	for _, existing := range entries {
		if models.SameEntry(existing, entry) {
			return true
		}
	}
	return false
}
