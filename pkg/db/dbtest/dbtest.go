// Package dbtest opens isolated in-memory SQLite databases carrying the
// application schema.
package dbtest

import (
	"context"
	"fmt"
	"testing"

	"github.com/angelmondragon/clausewise-backend/pkg/db"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// New returns a client backed by a fresh named in-memory database.
func New(t testing.TB) *db.Client {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.EnsureSQLiteSchema(context.Background(), conn); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	client := db.NewFromConn(conn)
	t.Cleanup(func() { _ = client.Close() })
	return client
}
