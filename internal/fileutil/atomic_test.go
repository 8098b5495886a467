package fileutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "test.txt")

	require.NoError(t, WriteFileAtomic(testFile, []byte("hello world"), 0644))

	data, err := os.ReadFile(testFile)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	info, err := os.Stat(testFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())

	// No temp files remain
	entries, err := os.ReadDir(tmpDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "test.txt", entries[0].Name())
}

func TestWriteFileAtomicOverwrite(t *testing.T) {
	t.Parallel()

	testFile := filepath.Join(t.TempDir(), "test.txt")
	require.NoError(t, WriteFileAtomic(testFile, []byte("initial"), 0644))
	require.NoError(t, WriteFileAtomic(testFile, []byte("updated content"), 0644))

	data, err := os.ReadFile(testFile)
	require.NoError(t, err)
	assert.Equal(t, "updated content", string(data))
}

func TestWriteFileAtomicInvalidDir(t *testing.T) {
	t.Parallel()

	err := WriteFileAtomic("/nonexistent/dir/test.txt", []byte("data"), 0644)
	assert.Error(t, err)
}

func TestWriteJSONAtomic(t *testing.T) {
	t.Parallel()

	testFile := filepath.Join(t.TempDir(), "record.json")
	require.NoError(t, WriteJSONAtomic(testFile, map[string]int{"turn": 3}, 0600))

	data, err := os.ReadFile(testFile)
	require.NoError(t, err)

	var got map[string]int
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 3, got["turn"])
}

func TestWriteJSONAtomicUnencodable(t *testing.T) {
	t.Parallel()

	err := WriteJSONAtomic(filepath.Join(t.TempDir(), "bad.json"), func() {}, 0600)
	assert.Error(t, err)
}

func TestSafeName(t *testing.T) {
	tests := map[string]string{
		"game-42":        "game-42",
		"a/b\\c":         "a_b_c",
		"../../etc":      ".._.._etc",
		"":               "unknown",
		"..":             "unknown",
		"with spaces ok": "with_spaces_ok",
	}
	for in, want := range tests {
		assert.Equal(t, want, SafeName(in), in)
	}
}
