package file

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{ after int }

func (r *failingReader) Read(p []byte) (int, error) {
	if r.after <= 0 {
		return 0, errors.New("connection reset")
	}
	n := copy(p, strings.Repeat("x", r.after))
	r.after -= n
	return n, nil
}

func TestWriteStreamAtomic_WritesAndOverwrites(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a.gcode")
	fs := NewFileService()

	n, err := fs.WriteStreamAtomic(target, strings.NewReader("G28\n"))
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)

	_, err = fs.WriteStreamAtomic(target, strings.NewReader("G1 X10\n"))
	require.NoError(t, err)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "G1 X10\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestWriteStreamAtomic_FailedCopyKeepsOriginal(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a.gcode")
	require.NoError(t, os.WriteFile(target, []byte("original"), 0644))
	fs := NewFileService()

	_, err := fs.WriteStreamAtomic(target, &failingReader{after: 10})
	assert.Error(t, err)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteStreamAtomic_NoPartialFileOnFailure(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "new.gcode")

	_, err := NewFileService().WriteStreamAtomic(target, &failingReader{after: 3})
	assert.Error(t, err)

	exists, err := NewFileService().IsFileExists(target)
	assert.NoError(t, err)
	assert.False(t, exists)
}

func TestListRegularFiles_SkipsDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.gcode"), []byte("a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "meta.json"), []byte("{}"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0755))

	files, err := NewFileService().ListRegularFiles(dir)
	require.NoError(t, err)

	var names []string
	for _, f := range files {
		names = append(names, f.Name())
	}
	assert.ElementsMatch(t, []string{"a.gcode", "meta.json"}, names)
}

func TestWriteJsonFile(t *testing.T) {
	target := filepath.Join(t.TempDir(), "state.json")

	require.NoError(t, NewFileService().WriteJsonFile(target, map[string]string{"state": "Operational"}))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":"Operational"}`, string(data))
}

func TestLocalStorage_EnsureAndResolve(t *testing.T) {
	root := t.TempDir()
	storage := NewLocalStorage(root)

	require.NoError(t, storage.EnsureDirectory("_printq_"))
	// Second call is a no-op
	require.NoError(t, storage.EnsureDirectory("_printq_"))

	path, err := storage.ResolvePath("_printq_")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(path))
	assert.Equal(t, filepath.Join(root, "_printq_"), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLocalStorage_RejectsNestedNames(t *testing.T) {
	storage := NewLocalStorage(t.TempDir())

	for _, name := range []string{"", ".", "..", "a/b", `..\x`} {
		_, err := storage.ResolvePath(name)
		assert.Error(t, err, name)
	}
}
