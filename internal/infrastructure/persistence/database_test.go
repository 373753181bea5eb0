package persistence

import (
	"context"
	"testing"

	"github.com/disposisi/backend/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestNewDatabase(t *testing.T) {
	t.Run("opens and migrates sqlite", func(t *testing.T) {
		db := newSQLiteDatabase(t)

		assert.NoError(t, db.Ping(context.Background()))
		for _, table := range []string{"routing_nodes", "actors", "documents", "outbox_events"} {
			assert.True(t, db.DB.Migrator().HasTable(table), table)
		}
	})

	t.Run("rejects unknown driver", func(t *testing.T) {
		_, err := NewDatabase(&config.DatabaseConfig{Driver: "mysql"}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported database driver")
	})

	t.Run("rejects memory driver", func(t *testing.T) {
		_, err := NewDatabase(&config.DatabaseConfig{Driver: config.DriverMemory}, nil)
		assert.Error(t, err)
	})
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, ":memory:", sqliteDSN(":memory:"))
	assert.Equal(t, "data/disposisi.db?_busy_timeout=5000", sqliteDSN("data/disposisi.db"))
}

func TestDatabase_Close(t *testing.T) {
	db, err := NewDatabase(&config.DatabaseConfig{Driver: config.DriverSQLite, SQLitePath: ":memory:"}, nil)
	require.NoError(t, err)

	require.NoError(t, db.Close())
	assert.Error(t, db.Ping(context.Background()))
}

func TestTenantScope(t *testing.T) {
	db := newSQLiteDatabase(t)
	tenantID := uuid.New()

	stmt := db.DB.Session(&gorm.Session{DryRun: true}).Scopes(tenantScope(tenantID)).Table("routing_nodes").Find(&[]map[string]any{}).Statement
	assert.Contains(t, stmt.SQL.String(), "tenant_id = ?")
	assert.Equal(t, []any{tenantID}, stmt.Vars)
}
