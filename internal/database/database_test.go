package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpen_SQLiteMemory(t *testing.T) {
	db, err := Open(context.Background(), DriverSQLite, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	var one int
	require.NoError(t, db.QueryRow("SELECT 1").Scan(&one))
	require.Equal(t, 1, one)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "x")
	require.Error(t, err)
}

func TestLoadDatabaseURL_FromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "  postgres://u@h/db  ")
	got, err := LoadDatabaseURL()
	require.NoError(t, err)
	require.Equal(t, "postgres://u@h/db", got)
}

func TestLoadDatabaseURL_FromDotEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env"),
		[]byte("# comment\nOTHER=1\nDATABASE_URL=\"postgres://dotenv/db\"\n"), 0o644))
	t.Chdir(nested)

	got, err := LoadDatabaseURL()
	require.NoError(t, err)
	require.Equal(t, "postgres://dotenv/db", got)
}
