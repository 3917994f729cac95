package push_service

import (
	"context"
	"fleet-push-service/models"
	"sort"
	"sync"
)

// MemoryTokenStore 内存存储实现（用于测试和简单场景）
type MemoryTokenStore struct {
	mu      sync.Mutex
	records map[string]*models.UserTokenRecord
}

// NewMemoryTokenStore 创建内存存储
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{
		records: make(map[string]*models.UserTokenRecord),
	}
}

// Get 获取记录的副本
func (m *MemoryTokenStore) Get(ctx context.Context, identity string) (*models.UserTokenRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, exists := m.records[identity]
	if !exists {
		return nil, models.ErrRecordNotFound
	}
	return cloneRecord(record), nil
}

// Set 覆盖写入记录
func (m *MemoryTokenStore) Set(ctx context.Context, record *models.UserTokenRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[record.Identity] = cloneRecord(record)
	return nil
}

// AddEntries 并入条目，已存在的相同条目不重复添加
func (m *MemoryTokenStore) AddEntries(ctx context.Context, identity string, entries ...models.TokenEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, exists := m.records[identity]
	if !exists {
		record = &models.UserTokenRecord{Identity: identity}
		m.records[identity] = record
	}
	for _, entry := range entries {
		duplicate := false
		for _, existing := range record.Tokens {
			if models.SameEntry(existing, entry) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			entry.Raw = nil
			record.Tokens = append(record.Tokens, entry)
		}
	}
	return nil
}

// RemoveEntries 移除完全相同的条目
func (m *MemoryTokenStore) RemoveEntries(ctx context.Context, identity string, entries ...models.TokenEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, exists := m.records[identity]
	if !exists {
		return nil
	}
	kept := record.Tokens[:0]
	for _, existing := range record.Tokens {
		remove := false
		for _, entry := range entries {
			if models.SameEntry(existing, entry) {
				remove = true
				break
			}
		}
		if !remove {
			kept = append(kept, existing)
		}
	}
	record.Tokens = kept
	return nil
}

// DeleteIfEmpty 删除空记录
func (m *MemoryTokenStore) DeleteIfEmpty(ctx context.Context, identity string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, exists := m.records[identity]
	if !exists || len(record.Tokens) > 0 {
		return false, nil
	}
	delete(m.records, identity)
	return true, nil
}

// Delete 删除记录
func (m *MemoryTokenStore) Delete(ctx context.Context, identity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, identity)
	return nil
}

// Close 内存存储无需释放
func (m *MemoryTokenStore) Close() error {
	return nil
}

// Len 返回记录数
func (m *MemoryTokenStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// ListRecords 按身份排序分页列出记录
func (m *MemoryTokenStore) ListRecords(ctx context.Context, page, pageSize int) (*RecordPage, error) {
	page, pageSize = NormalizePage(page, pageSize)

	m.mu.Lock()
	defer m.mu.Unlock()

	identities := make([]string, 0, len(m.records))
	for identity := range m.records {
		identities = append(identities, identity)
	}
	sort.Strings(identities)

	records := make([]*models.UserTokenRecord, 0, pageSize)
	for i := (page - 1) * pageSize; i < len(identities) && len(records) < pageSize; i++ {
		records = append(records, cloneRecord(m.records[identities[i]]))
	}
	return NewRecordPage(records, len(identities), page, pageSize), nil
}

func cloneRecord(record *models.UserTokenRecord) *models.UserTokenRecord {
	clone := *record
	clone.Tokens = make([]models.TokenEntry, len(record.Tokens))
	copy(clone.Tokens, record.Tokens)
	return &clone
}
