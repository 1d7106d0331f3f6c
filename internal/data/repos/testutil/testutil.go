package testutil

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/pathfinder-backend/internal/data/db"
	types "github.com/yungbote/pathfinder-backend/internal/domain"
	"github.com/yungbote/pathfinder-backend/internal/platform/logger"
)

var (
	logOnce sync.Once
	logg    *logger.Logger

	dbSeq atomic.Int64
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg = logger.Nop()
	})
	return logg
}

// DB returns a freshly migrated database. By default each call gets its own
// in-memory SQLite database; set TEST_POSTGRES_DSN to run against Postgres.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	cfg := &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
		TranslateError: true,
	}

	var (
		conn *gorm.DB
		err  error
	)
	if dsn := os.Getenv("TEST_POSTGRES_DSN"); dsn != "" {
		conn, err = gorm.Open(postgres.Open(dsn), cfg)
	} else {
		name := fmt.Sprintf("file:pathfinder_test_%d?mode=memory&cache=shared&_fk=1", dbSeq.Add(1))
		conn, err = gorm.Open(sqlite.Open(name), cfg)
	}
	if err != nil {
		tb.Fatalf("failed to open test db: %v", err)
	}
	if sqlDB, err := conn.DB(); err == nil {
		if conn.Dialector.Name() == db.DriverSQLite {
			sqlDB.SetMaxOpenConns(1)
		}
		tb.Cleanup(func() { _ = sqlDB.Close() })
	}
	if err := db.AutoMigrateAll(conn); err != nil {
		tb.Fatalf("failed to migrate test db: %v", err)
	}
	if conn.Dialector.Name() == db.DriverPostgres {
		truncateAll(tb, conn)
	}
	return conn
}

func truncateAll(tb testing.TB, conn *gorm.DB) {
	tb.Helper()
	for _, model := range types.Models() {
		stmt := &gorm.Statement{DB: conn}
		if err := stmt.Parse(model); err != nil {
			tb.Fatalf("parse model: %v", err)
		}
		if err := conn.Exec(fmt.Sprintf(`TRUNCATE TABLE %q CASCADE`, stmt.Schema.Table)).Error; err != nil {
			tb.Fatalf("truncate %s: %v", stmt.Schema.Table, err)
		}
	}
}

func Tx(tb testing.TB, db *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := db.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}
