package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/gofab/printq-agent/internal/constants"
	"github.com/gofab/printq-agent/internal/models"
	"github.com/gofab/printq-agent/internal/printer"
)

// ErrMissingPrintData is returned for a print command without a file url.
var ErrMissingPrintData = errors.New("print command has no file url")

// JobFetcher downloads a job file and hands it to the printer.
type JobFetcher interface {
	FetchAndQueue(ctx context.Context, fileURL, fileName string) error
}

// CommandService executes the commands returned by the remote service.
type CommandService struct {
	printer printer.Printer
	jobs    JobFetcher
	logger  zerolog.Logger
}

// NewCommandService initializes a new CommandService.
func NewCommandService(printer printer.Printer, jobs JobFetcher, logger zerolog.Logger) *CommandService {
	return &CommandService{
		printer: printer,
		jobs:    jobs,
		logger:  logger,
	}
}

// Dispatch runs cmds in order. Unknown kinds are skipped. The first failing command aborts the
// rest and its error is returned.
func (cs *CommandService) Dispatch(ctx context.Context, cmds []models.Command) error {
	for i, cmd := range cmds {
		if err := ctx.Err(); err != nil {
			return err
		}

		log := cs.logger.With().Str("command", cmd.Kind).Int("index", i).Logger()

		var err error
		switch cmd.Kind {
		case constants.CommandPrint:
			if cmd.Data == nil || cmd.Data.FileURL == "" {
				err = ErrMissingPrintData
				break
			}
			log.Info().Str("file_url", cmd.Data.FileURL).Str("file_name", cmd.Data.FileName).Msg("Executing command")
			err = cs.jobs.FetchAndQueue(ctx, cmd.Data.FileURL, cmd.Data.FileName)
		case constants.CommandCancel:
			log.Info().Msg("Executing command")
			err = cs.printer.Cancel(ctx)
		case constants.CommandPause:
			log.Info().Msg("Executing command")
			err = cs.printer.Pause(ctx)
		case constants.CommandResume:
			log.Info().Msg("Executing command")
			err = cs.printer.Resume(ctx)
		default:
			log.Debug().Msg("Ignoring unknown command")
			continue
		}

		if err != nil {
			log.Error().Err(err).Msg("Command failed")
			return fmt.Errorf("command %d (%s): %w", i, cmd.Kind, err)
		}
	}
	return nil
}
