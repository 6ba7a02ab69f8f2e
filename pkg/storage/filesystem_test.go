package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageSave(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	path, err := store.Save("fp-1/optimal.csv", []byte("Period,MONDAY\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "fp-1", "optimal.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Period,MONDAY\n", string(data))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestLocalStorageRejectsEscapingNames(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"../x.csv", "/etc/passwd", "", "a/../../b.pdf"} {
		_, err := store.Save(name, []byte("x"))
		assert.Error(t, err, name)
	}
}
