package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/gofab/printq-agent/internal/printer"
	"github.com/gofab/printq-agent/pkg/file"
	httpUtils "github.com/gofab/printq-agent/pkg/httpUtils"
)

var unsafeFileNameChars = regexp.MustCompile(`[^A-Za-z0-9_.]`)

// SanitizeFileName replaces every character outside [A-Za-z0-9_.] with an underscore. Names that
// would be empty or consist only of dots become underscores, so the result is always a plain file
// name.
func SanitizeFileName(name string) string {
	clean := unsafeFileNameChars.ReplaceAllString(name, "_")
	if strings.Trim(clean, ".") == "" {
		if clean == "" {
			return "_"
		}
		return strings.Repeat("_", len(clean))
	}
	return clean
}

// JobService stores downloaded job files in the queue folder and selects them for printing.
type JobService struct {
	folder      string
	maxFileSize int64

	storage    file.Storage
	fileClient file.FileOperations
	httpClient *http.Client
	printer    printer.Printer
	logger     zerolog.Logger

	mu       sync.Mutex
	queueDir string
}

// NewJobService initializes a new JobService.
func NewJobService(folder string, maxFileSize int64, storage file.Storage, fileClient file.FileOperations,
	httpClient *http.Client, printer printer.Printer, logger zerolog.Logger) *JobService {

	return &JobService{
		folder:      folder,
		maxFileSize: maxFileSize,
		storage:     storage,
		fileClient:  fileClient,
		httpClient:  httpClient,
		printer:     printer,
		logger:      logger,
	}
}

// Start ensures the queue folder exists.
func (js *JobService) Start() error {
	dir, err := js.ensureQueueDir()
	if err != nil {
		js.logger.Error().Err(err).Str("folder", js.folder).Msg("Failed to prepare queue folder")
		return err
	}
	js.logger.Info().Str("path", dir).Msg("JobService started successfully")
	return nil
}

// Stop is a no-op; downloads run on the caller's context.
func (js *JobService) Stop() error {
	js.logger.Info().Msg("JobService stopped successfully")
	return nil
}

// QueueDir returns the absolute queue folder path, ensuring the folder on first use.
func (js *JobService) QueueDir() (string, error) {
	return js.ensureQueueDir()
}

func (js *JobService) ensureQueueDir() (string, error) {
	js.mu.Lock()
	defer js.mu.Unlock()

	if js.queueDir != "" {
		return js.queueDir, nil
	}
	if err := js.storage.EnsureDirectory(js.folder); err != nil {
		return "", err
	}
	dir, err := js.storage.ResolvePath(js.folder)
	if err != nil {
		return "", err
	}
	js.queueDir = filepath.Clean(dir)
	return js.queueDir, nil
}

// FetchAndQueue downloads fileURL into the queue folder under a sanitized fileName and asks the
// printer to select and print it. Selection only happens after the whole file was stored.
func (js *JobService) FetchAndQueue(ctx context.Context, fileURL, fileName string) error {
	dir, err := js.ensureQueueDir()
	if err != nil {
		return err
	}

	name := SanitizeFileName(fileName)
	target := filepath.Join(dir, name)
	if filepath.Dir(target) != dir {
		return fmt.Errorf("file name %q escapes the queue folder", fileName)
	}

	js.logger.Info().Str("url", fileURL).Str("path", target).Msg("Downloading job file")
	n, err := httpUtils.DownloadFile(ctx, js.httpClient, fileURL, target, js.maxFileSize, js.fileClient)
	if err != nil {
		var dlErr *httpUtils.DownloadError
		if errors.As(err, &dlErr) && dlErr.StatusCode != 0 {
			js.logger.Error().Int("status", dlErr.StatusCode).Str("url", fileURL).Msg("Job file download rejected")
		}
		return err
	}
	js.logger.Info().Int64("bytes", n).Str("path", target).Msg("Job file stored")

	if err := js.printer.SelectAndPrint(ctx, target); err != nil {
		return fmt.Errorf("failed to select %s: %w", target, err)
	}
	js.logger.Info().Str("path", target).Msg("Job file selected for printing")
	return nil
}
