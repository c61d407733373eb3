package database

import (
	"context"
	"path/filepath"
	"testing"

	"sparkclean/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewDB_DirectoryCreation(t *testing.T) {
	tempDir := t.TempDir()

	dbPath := filepath.Join(tempDir, "nested", "dir", "test.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, dbPath)
	assert.Equal(t, DriverSQLite, db.Driver())
}

func TestNewDB_SchemaIsIdempotent(t *testing.T) {
	db := setupTestDB(t)

	err := db.createTables(context.Background())
	require.NoError(t, err)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	logger := zerolog.Nop()
	_, err := Open(config.DatabaseConfig{Driver: "oracle"}, &logger)
	assert.Error(t, err)
}

func TestOpen_SQLiteDefault(t *testing.T) {
	logger := zerolog.Nop()
	db, err := Open(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "app.db")}, &logger)
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, DriverSQLite, db.Driver())
}

func TestRebind(t *testing.T) {
	q := `SELECT * FROM bookings WHERE id = ? AND version = ?`

	assert.Equal(t, q, rebind(DriverSQLite, q))
	assert.Equal(t, `SELECT * FROM bookings WHERE id = $1 AND version = $2`, rebind(DriverPostgres, q))
}

func TestDB_Ping(t *testing.T) {
	db := setupTestDB(t)

	err := db.PingContext(context.Background())
	assert.NoError(t, err)
}

func TestMissingTables(t *testing.T) {
	db := setupTestDB(t)

	missing := db.MissingTables(context.Background(), "users", "bookings", "no_such_table")
	assert.Equal(t, []string{"no_such_table"}, missing)
}
