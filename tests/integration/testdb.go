// Package integration runs the routing engine against a real PostgreSQL
// database started with testcontainers.
package integration

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/disposisi/backend/internal/infrastructure/config"
	"github.com/disposisi/backend/internal/infrastructure/migration"
	"github.com/disposisi/backend/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB represents a test database connection
type TestDB struct {
	DB        *gorm.DB
	SqlDB     *sql.DB
	Container testcontainers.Container
	DSN       string
	t         *testing.T
}

// NewTestDB starts a fresh PostgreSQL container and applies the postgres
// migrations to it
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("disposisi_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("admin123"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "Failed to get connection string")

	db, sqlDB := connectToDatabase(t, dsn)
	runMigrations(t, sqlDB)

	testDB := &TestDB{
		DB:        db,
		SqlDB:     sqlDB,
		Container: container,
		DSN:       dsn,
		t:         t,
	}
	t.Cleanup(testDB.Close)
	return testDB
}

// Close closes the database connection and terminates the container
func (tdb *TestDB) Close() {
	if tdb.SqlDB != nil {
		tdb.SqlDB.Close()
	}
	if tdb.Container != nil {
		if err := tdb.Container.Terminate(context.Background()); err != nil {
			tdb.t.Logf("Warning: Failed to terminate container: %v", err)
		}
	}
}

// SeedActors registers directory entries with the given role and returns
// their IDs in order
func (tdb *TestDB) SeedActors(role string, names ...string) []uuid.UUID {
	tdb.t.Helper()

	seed := &persistence.Seed{}
	ids := make([]uuid.UUID, len(names))
	for i, name := range names {
		ids[i] = uuid.New()
		seed.Actors = append(seed.Actors, persistence.SeedActor{
			ID:          ids[i],
			DisplayName: name,
			Role:        role,
			OrgUnit:     "Sekretariat",
		})
	}
	require.NoError(tdb.t, seed.Apply(context.Background(), tdb.DB), "Failed to seed actors")
	return ids
}

// SeedDocument registers an incoming letter and returns its ID
func (tdb *TestDB) SeedDocument(subject string) uuid.UUID {
	tdb.t.Helper()

	id := uuid.New()
	seed := &persistence.Seed{Documents: []persistence.SeedDocument{{
		ID:         id,
		Subject:    subject,
		Sender:     "Dinas Pendidikan Provinsi",
		ReceivedAt: time.Now().UTC().Truncate(time.Second),
	}}}
	require.NoError(tdb.t, seed.Apply(context.Background(), tdb.DB), "Failed to seed document")
	return id
}

// connectToDatabase opens gorm the same way the server does; TranslateError
// is required for the parent index to surface as a lost race
func connectToDatabase(t *testing.T, dsn string) (*gorm.DB, *sql.DB) {
	t.Helper()

	gormConfig := &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	}
	if os.Getenv("TEST_DB_DEBUG") != "" {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(gormpostgres.Open(dsn), gormConfig)
	require.NoError(t, err, "Failed to connect to database")

	sqlDB, err := db.DB()
	require.NoError(t, err, "Failed to get underlying SQL DB")

	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	return db, sqlDB
}

func runMigrations(t *testing.T, sqlDB *sql.DB) {
	t.Helper()

	root := findMigrationsRoot()
	require.NotEmpty(t, root, "Could not find migrations directory")

	m, err := migration.New(sqlDB, config.DriverPostgres, root, nil)
	require.NoError(t, err, "Failed to create migrator")
	require.NoError(t, m.Up(), "Failed to run migrations")
}

// findMigrationsRoot walks up from this file to the repository's migrations
func findMigrationsRoot() string {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return ""
	}

	dir := filepath.Dir(filename)
	for i := 0; i < 5; i++ {
		root := filepath.Join(dir, "migrations")
		if _, err := os.Stat(filepath.Join(root, config.DriverPostgres)); err == nil {
			return root
		}
		dir = filepath.Dir(dir)
	}
	return ""
}
