package sql_service

import (
	"context"
	"errors"
	"fleet-push-service/models"
	"fleet-push-service/service/push_service"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var tokenColumns = []string{"id", "identity", "device_slot", "token", "created_at", "updated_at"}

func newMockService(t *testing.T) (*SqlService, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	return NewSqlService(db, nil), mock
}

func TestSqlGetBuildsRecordInInsertionOrder(t *testing.T) {
	store, mock := newMockService(t)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `fcm_token_entries` WHERE identity = ? ORDER BY id")).
		WithArgs("a@b.com").
		WillReturnRows(sqlmock.NewRows(tokenColumns).
			AddRow(1, "a@b.com", "phone", "tok-1234567890", at, at).
			AddRow(2, "a@b.com", "tablet", "tok-abcdefghij", at, at))

	record, err := store.Get(context.Background(), "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", record.Identity)
	assert.Equal(t, []string{"tok-1234567890", "tok-abcdefghij"}, record.TokenValues())
	assert.Equal(t, "tablet", record.Tokens[1].DeviceSlot)
	assert.True(t, record.Tokens[0].CreatedAt.Equal(at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSqlGetMissingRecord(t *testing.T) {
	store, mock := newMockService(t)
	mock.ExpectQuery("SELECT (.+) FROM `fcm_token_entries`").
		WillReturnRows(sqlmock.NewRows(tokenColumns))

	_, err := store.Get(context.Background(), "nobody@b.com")
	assert.ErrorIs(t, err, models.ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSqlRegisterInsertsRow(t *testing.T) {
	store, mock := newMockService(t)
	registry := push_service.NewRegistry(store, time.Second, nil)

	mock.ExpectQuery("SELECT (.+) FROM `fcm_token_entries`").
		WillReturnRows(sqlmock.NewRows(tokenColumns))
	mock.ExpectExec("INSERT INTO `fcm_token_entries` (.+) ON DUPLICATE KEY UPDATE .*`token`=.*`updated_at`=").
		WillReturnResult(sqlmock.NewResult(1, 1))

	result, err := registry.Register(context.Background(), "a@b.com", "", "tok-1234567890")
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationInserted, result.Outcome)
	assert.Equal(t, models.DefaultDeviceSlot, result.DeviceSlot)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSqlAddEntriesOverwritesRacingSlot(t *testing.T) {
	store, mock := newMockService(t)
	now := time.Now().UTC()

	// a concurrent writer already took the slot, the upsert keeps the later token
	mock.ExpectExec("INSERT INTO `fcm_token_entries` (.+) ON DUPLICATE KEY UPDATE .*`token`=.*`updated_at`=").
		WithArgs("a@b.com", "phone", "tok-abcdefghij", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := store.AddEntries(context.Background(), "a@b.com",
		models.TokenEntry{DeviceSlot: "phone", Token: "tok-abcdefghij", CreatedAt: now, UpdatedAt: now})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSqlRemoveEntriesInTransaction(t *testing.T) {
	store, mock := newMockService(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `fcm_token_entries` WHERE identity = ? AND device_slot = ? AND token = ?")).
		WithArgs("a@b.com", "phone", "tok-1234567890").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `fcm_token_entries` WHERE identity = ? AND device_slot = ? AND token = ?")).
		WithArgs("a@b.com", "tablet", "tok-abcdefghij").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.RemoveEntries(context.Background(), "a@b.com",
		models.TokenEntry{DeviceSlot: "phone", Token: "tok-1234567890", CreatedAt: now, UpdatedAt: now},
		models.TokenEntry{DeviceSlot: "tablet", Token: "tok-abcdefghij", CreatedAt: now, UpdatedAt: now},
	)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSqlSetReplacesRows(t *testing.T) {
	store, mock := newMockService(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `fcm_token_entries` WHERE identity = ?")).
		WithArgs("a@b.com").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO `fcm_token_entries`").
		WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectCommit()

	err := store.Set(context.Background(), &models.UserTokenRecord{
		Identity: "a@b.com",
		Tokens:   []models.TokenEntry{{DeviceSlot: "default", Token: "tok-1234567890", CreatedAt: now, UpdatedAt: now}},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSqlSetRollsBackOnInsertFailure(t *testing.T) {
	store, mock := newMockService(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `fcm_token_entries`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `fcm_token_entries`").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := store.Set(context.Background(), &models.UserTokenRecord{
		Identity: "a@b.com",
		Tokens:   []models.TokenEntry{{DeviceSlot: "default", Token: "tok-1234567890", CreatedAt: now, UpdatedAt: now}},
	})
	assert.ErrorContains(t, err, "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSqlQueryFailureIsRegistryUnavailable(t *testing.T) {
	store, mock := newMockService(t)
	registry := push_service.NewRegistry(store, time.Second, nil)

	mock.ExpectQuery("SELECT (.+) FROM `fcm_token_entries`").WillReturnError(errors.New("connection refused"))

	_, err := registry.Lookup(context.Background(), "a@b.com", "")
	assert.ErrorIs(t, err, push_service.ErrRegistryUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSqlDeleteAndDeleteIfEmpty(t *testing.T) {
	store, mock := newMockService(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `fcm_token_entries` WHERE identity = ?")).
		WithArgs("a@b.com").
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, store.Delete(context.Background(), "a@b.com"))
	deleted, err := store.DeleteIfEmpty(context.Background(), "a@b.com")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
