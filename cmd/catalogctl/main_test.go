package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func useSQLite(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("LIBRARY_DATABASE_DRIVER", "sqlite")
	t.Setenv("LIBRARY_DATABASE_PATH", filepath.Join(dir, "library.db"))
	t.Setenv("LIBRARY_LOG_LEVEL", "error")
	t.Setenv("LIBRARY_STORAGE_BUCKET", "")
	return dir
}

func TestSeedAndBackupRoundTrip(t *testing.T) {
	dir := useSQLite(t)

	out, err := run(t, "seed")
	require.NoError(t, err)
	assert.Equal(t, "seeded 5 authors, 7 books, 0 users\n", out)

	out, err = run(t, "seed", "--with-users")
	require.NoError(t, err)
	assert.Equal(t, "seeded 5 authors, 7 books, 2 users\n", out)

	snapshot := filepath.Join(dir, "snapshot.json")
	_, err = run(t, "backup", "export", "--out", snapshot)
	require.NoError(t, err)

	out, err = run(t, "backup", "import", "--in", snapshot)
	require.NoError(t, err)
	assert.Equal(t, "restored 5 authors, 7 books, 2 users\n", out)
}

func TestBackupListNeedsBucket(t *testing.T) {
	useSQLite(t)

	_, err := run(t, "backup", "list")
	assert.ErrorIs(t, err, errNoBucket)
}

func TestSeedFromMissingFile(t *testing.T) {
	useSQLite(t)

	_, err := run(t, "seed", "--file", "does-not-exist.yaml")
	assert.Error(t, err)
}
