package major

import (
	"database/sql"
	"fleet-push-service/conf"
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	db    *gorm.DB
	sqlDB *sql.DB
)

func InitSqlConfig() error {
	gdb, err := gorm.Open(mysql.Open(conf.RdsDsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return fmt.Errorf("DB init error %w", err)
	}
	sqlDB, err = gdb.DB()
	if err != nil {
		return fmt.Errorf("sqlDB error %w", err)
	}
	if conf.RdsMaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(conf.RdsMaxOpenConns)
	}
	if conf.RdsMaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(conf.RdsMaxIdleConns)
	}
	db = gdb
	return nil
}

func GetSqlDB() *gorm.DB {
	return db
}
