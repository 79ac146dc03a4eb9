package services

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gofab/printq-agent/pkg/file"
)

// QueueLocator returns the queue folder path.
type QueueLocator interface {
	QueueDir() (string, error)
}

// CleanupService removes old job files from the queue folder.
type CleanupService struct {
	Interval time.Duration
	MaxAge   time.Duration

	queue      QueueLocator
	fileClient file.FileOperations
	logger     zerolog.Logger
	now        func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCleanupService initializes a new CleanupService.
func NewCleanupService(interval, maxAge time.Duration, queue QueueLocator, fileClient file.FileOperations, logger zerolog.Logger) *CleanupService {
	return &CleanupService{
		Interval:   interval,
		MaxAge:     maxAge,
		queue:      queue,
		fileClient: fileClient,
		logger:     logger,
		now:        time.Now,
	}
}

// Start runs a first pass right away and then one pass per interval.
func (c *CleanupService) Start() error {
	if c.ctx != nil {
		c.logger.Warn().Msg("CleanupService is already running")
		return errors.New("cleanup service is already running")
	}
	if c.Interval <= 0 {
		return errors.New("cleanup interval must be positive")
	}

	c.ctx, c.cancel = context.WithCancel(context.Background())

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.runCleanupLoop()
	}()

	c.logger.Info().Dur("interval", c.Interval).Dur("max_age", c.MaxAge).Msg("CleanupService started successfully")
	return nil
}

// Stop gracefully stops the cleanup service.
func (c *CleanupService) Stop() error {
	if c.ctx == nil {
		c.logger.Warn().Msg("CleanupService is not running")
		return errors.New("cleanup service is not running")
	}

	c.cancel()
	c.wg.Wait()

	c.ctx = nil
	c.cancel = nil

	c.logger.Info().Msg("CleanupService stopped successfully")
	return nil
}

func (c *CleanupService) runCleanupLoop() {
	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()

	c.Cleanup()
	for {
		select {
		case <-ticker.C:
			c.Cleanup()
		case <-c.ctx.Done():
			return
		}
	}
}

// Cleanup removes regular files older than MaxAge. Metadata files ending in .json are kept.
// It returns the number of removed files; errors are logged only.
func (c *CleanupService) Cleanup() int {
	dir, err := c.queue.QueueDir()
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to locate queue folder")
		return 0
	}

	entries, err := c.fileClient.ListRegularFiles(dir)
	if err != nil {
		c.logger.Error().Err(err).Str("path", dir).Msg("Failed to list queue folder")
		return 0
	}

	cutoff := c.now().Add(-c.MaxAge)
	removed := 0
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".json") || !entry.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := c.fileClient.RemoveFile(path); err != nil {
			c.logger.Error().Err(err).Str("path", path).Msg("Failed to remove expired job file")
			continue
		}
		removed++
		c.logger.Info().Str("path", path).Time("modified", entry.ModTime()).Msg("Removed expired job file")
	}
	return removed
}
