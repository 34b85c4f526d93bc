// Package dbtest opens throwaway SQLite databases carrying the service schema.
package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/easyrecs-backend/pkg/db"
)

// SQLite has no TIMESTAMPTZ/JSONB; the column types below keep the same
// names and semantics the repositories rely on.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS shops (
  id TEXT PRIMARY KEY,
  plan TEXT NOT NULL DEFAULT 'Free',
  recommendations_used INTEGER NOT NULL DEFAULT 0,
  billing_cycle_start DATETIME NOT NULL,
  access_token TEXT,
  created_at DATETIME NOT NULL,
  updated_at DATETIME NOT NULL
);`,
	`CREATE TABLE IF NOT EXISTS recommendation_overrides (
  id TEXT PRIMARY KEY,
  shop_domain TEXT NOT NULL,
  handle TEXT NOT NULL,
  source_product TEXT NOT NULL,
  source_title TEXT NOT NULL DEFAULT '',
  source_handle TEXT NOT NULL DEFAULT '',
  recommended_products TEXT NOT NULL DEFAULT '[]',
  priority INTEGER NOT NULL DEFAULT 0,
  is_active BOOLEAN NOT NULL DEFAULT 1,
  created_at DATETIME NOT NULL,
  updated_at DATETIME NOT NULL
);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_recommendation_overrides_shop_handle ON recommendation_overrides (shop_domain, handle);`,
	`CREATE TABLE IF NOT EXISTS analytics_counters (
  id TEXT PRIMARY KEY,
  handle TEXT NOT NULL,
  shop_domain TEXT NOT NULL,
  source_product_id TEXT NOT NULL,
  recommended_product_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  event_date TEXT NOT NULL,
  count INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME NOT NULL,
  updated_at DATETIME NOT NULL
);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_analytics_counters_handle ON analytics_counters (handle);`,
}

// Open returns a private in-memory database with the schema applied. The
// pool is pinned to one connection so concurrent callers serialize on it.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), db.GormConfig())
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}
