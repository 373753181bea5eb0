package migration

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/disposisi/backend/internal/domain/routing"
	"github.com/disposisi/backend/internal/infrastructure/config"
	"github.com/disposisi/backend/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const migrationsRoot = "../../../migrations"

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenDB(&config.DatabaseConfig{
		Driver:     config.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "disposisi.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func tableNames(t *testing.T, db *sql.DB) []string {
	t.Helper()
	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'schema_%' ORDER BY name`)
	require.NoError(t, err)
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	return names
}

func TestMigrator_SQLiteUpDown(t *testing.T) {
	db := openSQLite(t)
	m, err := New(db, config.DriverSQLite, migrationsRoot, zap.NewNop())
	require.NoError(t, err)

	version, _, err := m.Version()
	require.NoError(t, err)
	assert.Zero(t, version)

	require.NoError(t, m.Up())
	assert.Equal(t, []string{"actors", "documents", "outbox_events", "routing_nodes"}, tableNames(t, db))

	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	require.NoError(t, m.Up(), "a second up is a no-op")

	require.NoError(t, m.Down())
	assert.Empty(t, tableNames(t, db))
}

func TestMigrator_SchemaServesRepository(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	m, err := New(db, config.DriverSQLite, migrationsRoot, nil)
	require.NoError(t, err)
	require.NoError(t, m.Up())

	gormDB, err := gorm.Open(sqlite.Dialector{Conn: db}, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	repo := persistence.NewGormRoutingNodeRepository(gormDB)

	root, err := routing.NewRootNode(uuid.New(), uuid.New(), uuid.New(), uuid.New(), routing.InstructionCirculate, "")
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, root))

	expected := root.Expected()
	child, err := root.Forward(root.ToActorID, uuid.New(), routing.InstructionRoutine, "", false)
	require.NoError(t, err)
	require.NoError(t, repo.Forward(ctx, root, expected, child))

	chain, err := repo.FindByDocument(ctx, root.TenantID, root.DocumentID)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, routing.NodeStatusForwarded, chain[0].Status)
	assert.Equal(t, 1, chain[1].Level)
}

func TestNew_UnsupportedDriver(t *testing.T) {
	_, err := New(nil, config.DriverMemory, migrationsRoot, nil)
	require.Error(t, err)

	_, err = OpenDB(&config.DatabaseConfig{Driver: config.DriverMemory})
	require.Error(t, err)
}

func TestMigrator_Drop(t *testing.T) {
	db := openSQLite(t)
	m, err := New(db, config.DriverSQLite, migrationsRoot, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Up())

	require.NoError(t, m.Drop())
	assert.Empty(t, tableNames(t, db))
}
