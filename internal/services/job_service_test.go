package services_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gofab/printq-agent/internal/mocks"
	"github.com/gofab/printq-agent/internal/services"
	"github.com/gofab/printq-agent/pkg/file"
	httpUtils "github.com/gofab/printq-agent/pkg/httpUtils"
)

func newJobService(t *testing.T, p *mocks.MockPrinter) (*services.JobService, string) {
	t.Helper()

	root := t.TempDir()
	js := services.NewJobService("_printq_", 1<<20, file.NewLocalStorage(root), file.NewFileService(), http.DefaultClient, p, zerolog.Nop())
	require.NoError(t, js.Start())

	dir, err := js.QueueDir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "_printq_"), dir)
	return js, dir
}

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"a.gcode":              "a.gcode",
		"part 1/../evil.gcode": "part_1_.._evil.gcode",
		"../../etc/passwd":     ".._.._etc_passwd",
		`C:\jobs\cube.gcode`:   "C__jobs_cube.gcode",
		"..":                   "__",
		".":                    "_",
		"":                     "_",
		"ünï code.gcode":       "_n__code.gcode",
		"Benchy_v2.0.gcode":    "Benchy_v2.0.gcode",
	}
	for in, want := range cases {
		assert.Equal(t, want, services.SanitizeFileName(in), "input %q", in)
	}
}

func TestJobService_Start_CreatesQueueFolder(t *testing.T) {
	_, dir := newJobService(t, new(mocks.MockPrinter))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestJobService_FetchAndQueue_Success(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/old.gcode":
			http.Redirect(w, r, "/a.gcode", http.StatusFound)
		case "/a.gcode":
			w.Write([]byte("G28\nG1 X10\n"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	mockPrinter := new(mocks.MockPrinter)
	js, dir := newJobService(t, mockPrinter)
	target := filepath.Join(dir, "a.gcode")
	mockPrinter.On("SelectAndPrint", mock.Anything, target).Return(nil)

	err := js.FetchAndQueue(context.Background(), server.URL+"/old.gcode", "a.gcode")
	require.NoError(t, err)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "G28\nG1 X10\n", string(data))
	assert.Equal(t, int32(2), hits.Load())
	mockPrinter.AssertExpectations(t)
}

func TestJobService_FetchAndQueue_Overwrites(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("new"))
	}))
	defer server.Close()

	mockPrinter := new(mocks.MockPrinter)
	js, dir := newJobService(t, mockPrinter)
	target := filepath.Join(dir, "a.gcode")
	require.NoError(t, os.WriteFile(target, []byte("old contents"), 0644))
	mockPrinter.On("SelectAndPrint", mock.Anything, target).Return(nil)

	require.NoError(t, js.FetchAndQueue(context.Background(), server.URL, "a.gcode"))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestJobService_FetchAndQueue_NotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	mockPrinter := new(mocks.MockPrinter)
	js, dir := newJobService(t, mockPrinter)

	err := js.FetchAndQueue(context.Background(), server.URL+"/missing.gcode", "missing.gcode")

	var dlErr *httpUtils.DownloadError
	require.True(t, errors.As(err, &dlErr))
	assert.Equal(t, http.StatusNotFound, dlErr.StatusCode)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	mockPrinter.AssertNotCalled(t, "SelectAndPrint", mock.Anything, mock.Anything)
}

func TestJobService_FetchAndQueue_StaysInsideQueue(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("payload"))
	}))
	defer server.Close()

	mockPrinter := new(mocks.MockPrinter)
	js, dir := newJobService(t, mockPrinter)
	target := filepath.Join(dir, "part_1_.._evil.gcode")
	mockPrinter.On("SelectAndPrint", mock.Anything, target).Return(nil)

	require.NoError(t, js.FetchAndQueue(context.Background(), server.URL, "part 1/../evil.gcode"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "part_1_.._evil.gcode", entries[0].Name())

	// Nothing was written next to the queue folder
	siblings, err := os.ReadDir(filepath.Dir(dir))
	require.NoError(t, err)
	assert.Len(t, siblings, 1)
	mockPrinter.AssertExpectations(t)
}

func TestJobService_FetchAndQueue_TooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 2<<20))
	}))
	defer server.Close()

	mockPrinter := new(mocks.MockPrinter)
	js, dir := newJobService(t, mockPrinter)

	err := js.FetchAndQueue(context.Background(), server.URL, "big.gcode")
	assert.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	mockPrinter.AssertNotCalled(t, "SelectAndPrint", mock.Anything, mock.Anything)
}

func TestJobService_FetchAndQueue_SelectFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("G28"))
	}))
	defer server.Close()

	mockPrinter := new(mocks.MockPrinter)
	js, _ := newJobService(t, mockPrinter)
	selectErr := errors.New("printer busy")
	mockPrinter.On("SelectAndPrint", mock.Anything, mock.Anything).Return(selectErr)

	err := js.FetchAndQueue(context.Background(), server.URL, "a.gcode")
	assert.ErrorIs(t, err, selectErr)
}
