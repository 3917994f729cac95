package sql_service

import (
	"context"
	"fleet-push-service/models"
	"fleet-push-service/service/push_service"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TokenRow 每个 (identity, device_slot) 一行
type TokenRow struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	Identity   string    `gorm:"size:255;not null;uniqueIndex:idx_identity_slot,priority:1"`
	DeviceSlot string    `gorm:"size:128;not null;uniqueIndex:idx_identity_slot,priority:2"`
	Token      string    `gorm:"size:4096;not null"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

func (TokenRow) TableName() string {
	return "fcm_token_entries"
}

func rowFromEntry(identity string, entry models.TokenEntry) TokenRow {
	return TokenRow{
		Identity:   identity,
		DeviceSlot: entry.DeviceSlot,
		Token:      entry.Token,
		CreatedAt:  entry.CreatedAt.UTC(),
		UpdatedAt:  entry.UpdatedAt.UTC(),
	}
}

func (r TokenRow) entry() models.TokenEntry {
	return models.TokenEntry{
		DeviceSlot: r.DeviceSlot,
		Token:      r.Token,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
}

// SqlService MySQL 令牌存储
//
// A record is the set of rows sharing an identity, so a record with no
// entries does not exist and DeleteIfEmpty has nothing to remove.
type SqlService struct {
	db  *gorm.DB
	log *zap.Logger
}

var _ push_service.TokenDocumentStore = (*SqlService)(nil)
var _ push_service.RecordLister = (*SqlService)(nil)

// NewSqlService 使用已初始化的 gorm 连接创建存储
func NewSqlService(db *gorm.DB, log *zap.Logger) *SqlService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SqlService{
		db:  db.Session(&gorm.Session{SkipDefaultTransaction: true}),
		log: log.Named("sql"),
	}
}

// Migrate 创建或更新令牌表
func (s *SqlService) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&TokenRow{}); err != nil {
		return fmt.Errorf("migrate token table: %w", err)
	}
	return nil
}

// Get 获取身份对应的记录
func (s *SqlService) Get(ctx context.Context, identity string) (*models.UserTokenRecord, error) {
	var rows []TokenRow
	if err := s.db.WithContext(ctx).Where("identity = ?", identity).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query tokens: %w", err)
	}
	if len(rows) == 0 {
		return nil, models.ErrRecordNotFound
	}
	record := &models.UserTokenRecord{Identity: identity, Tokens: make([]models.TokenEntry, 0, len(rows))}
	for _, row := range rows {
		record.Tokens = append(record.Tokens, row.entry())
	}
	return record, nil
}

// Set 在事务中替换身份的全部行
func (s *SqlService) Set(ctx context.Context, record *models.UserTokenRecord) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("identity = ?", record.Identity).Delete(&TokenRow{}).Error; err != nil {
			return fmt.Errorf("clear tokens: %w", err)
		}
		if len(record.Tokens) == 0 {
			return nil
		}
		rows := make([]TokenRow, 0, len(record.Tokens))
		for _, entry := range record.Tokens {
			rows = append(rows, rowFromEntry(record.Identity, entry))
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("insert tokens: %w", err)
		}
		return nil
	})
}

// AddEntries 插入条目。槽位已被并发写入占用时覆盖其令牌，后写者生效
func (s *SqlService) AddEntries(ctx context.Context, identity string, entries ...models.TokenEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]TokenRow, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, rowFromEntry(identity, entry))
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "identity"}, {Name: "device_slot"}},
		DoUpdates: clause.AssignmentColumns([]string{"token", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("insert tokens: %w", err)
	}
	return nil
}

// RemoveEntries 删除槽位与令牌都匹配的行
func (s *SqlService) RemoveEntries(ctx context.Context, identity string, entries ...models.TokenEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, entry := range entries {
			err := tx.Where("identity = ? AND device_slot = ? AND token = ?", identity, entry.DeviceSlot, entry.Token).
				Delete(&TokenRow{}).Error
			if err != nil {
				return fmt.Errorf("delete token: %w", err)
			}
		}
		return nil
	})
}

// DeleteIfEmpty 行存储中空记录不存在
func (s *SqlService) DeleteIfEmpty(ctx context.Context, identity string) (bool, error) {
	return false, ctx.Err()
}

// Delete 删除身份的全部行
func (s *SqlService) Delete(ctx context.Context, identity string) error {
	if err := s.db.WithContext(ctx).Where("identity = ?", identity).Delete(&TokenRow{}).Error; err != nil {
		return fmt.Errorf("delete tokens: %w", err)
	}
	return nil
}

// ListRecords 按身份分页列出记录
func (s *SqlService) ListRecords(ctx context.Context, page, pageSize int) (*push_service.RecordPage, error) {
	page, pageSize = push_service.NormalizePage(page, pageSize)
	db := s.db.WithContext(ctx)

	var total int64
	if err := db.Model(&TokenRow{}).Distinct("identity").Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count identities: %w", err)
	}

	var identities []string
	err := db.Model(&TokenRow{}).Distinct("identity").Order("identity").
		Limit(pageSize).Offset((page-1)*pageSize).Pluck("identity", &identities).Error
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}

	records := make([]*models.UserTokenRecord, 0, len(identities))
	if len(identities) > 0 {
		var rows []TokenRow
		if err := db.Where("identity IN ?", identities).Order("id").Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("query tokens: %w", err)
		}
		byIdentity := make(map[string]*models.UserTokenRecord, len(identities))
		for _, identity := range identities {
			record := &models.UserTokenRecord{Identity: identity, Tokens: []models.TokenEntry{}}
			byIdentity[identity] = record
			records = append(records, record)
		}
		for _, row := range rows {
			if record, ok := byIdentity[row.Identity]; ok {
				record.Tokens = append(record.Tokens, row.entry())
			}
		}
	}
	return push_service.NewRecordPage(records, int(total), page, pageSize), nil
}

// Close 关闭底层连接
func (s *SqlService) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	s.log.Info("sql store closed")
	return sqlDB.Close()
}
