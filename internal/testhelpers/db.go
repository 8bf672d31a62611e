// Package testhelpers 提供测试用的内存数据库
package testhelpers

import (
	"fmt"
	"testing"

	"FactoryTrust/internal/model"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenTestDB 打开一个独立的内存 SQLite 库并迁移全部表。
// 每个测试用不同的库名，避免 cache=shared 时数据串用。
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(model.Tables()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}
