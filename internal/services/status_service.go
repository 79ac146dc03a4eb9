package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gofab/printq-agent/internal/cloud"
	"github.com/gofab/printq-agent/internal/models"
	"github.com/gofab/printq-agent/internal/printer"
	"github.com/gofab/printq-agent/internal/utils"
	"github.com/gofab/printq-agent/pkg/identity"
	"github.com/gofab/printq-agent/pkg/retry"
)

// SnapshotEnricher adds host metadata to a device snapshot.
type SnapshotEnricher interface {
	Enrich(ctx context.Context, snapshot models.StatusSnapshot) models.StatusSnapshot
}

// CommandDispatcher executes the commands of one report response.
type CommandDispatcher interface {
	Dispatch(ctx context.Context, cmds []models.Command) error
}

// StatusSyncOptions selects the triggers of a StatusService.
type StatusSyncOptions struct {
	TimerEnabled  bool
	EventsEnabled bool
	Interval      time.Duration
	EventPrefix   string
}

// StatusService reports the printer status to the remote service, on a timer and on lifecycle
// events, and executes the commands it gets back. Both triggers share one retry.Supervisor.
type StatusService struct {
	opts StatusSyncOptions

	settings   utils.SettingsProvider
	reporter   cloud.Reporter
	printer    printer.Printer
	events     printer.EventSource
	enricher   SnapshotEnricher
	dispatcher CommandDispatcher
	supervisor *retry.Supervisor
	logger     zerolog.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	subscribeOnce sync.Once
}

// NewStatusService initializes a new StatusService. events and enricher may be nil.
func NewStatusService(opts StatusSyncOptions, settings utils.SettingsProvider, reporter cloud.Reporter,
	printer printer.Printer, events printer.EventSource, enricher SnapshotEnricher, dispatcher CommandDispatcher,
	supervisor *retry.Supervisor, logger zerolog.Logger) *StatusService {

	return &StatusService{
		opts:       opts,
		settings:   settings,
		reporter:   reporter,
		printer:    printer,
		events:     events,
		enricher:   enricher,
		dispatcher: dispatcher,
		supervisor: supervisor,
		logger:     logger,
	}
}

// Start launches the timer loop and subscribes to lifecycle events, depending on the options.
func (s *StatusService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx != nil {
		s.logger.Warn().Msg("StatusService is already running")
		return errors.New("status service is already running")
	}
	if s.opts.TimerEnabled && s.opts.Interval <= 0 {
		return fmt.Errorf("invalid status interval %s", s.opts.Interval)
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())

	if s.opts.EventsEnabled && s.events != nil {
		s.subscribeOnce.Do(func() { s.events.OnEvent(s.HandleEvent) })
	}

	if s.opts.TimerEnabled {
		s.wg.Add(1)
		go func(ctx context.Context) {
			defer s.wg.Done()
			s.runTimerLoop(ctx)
		}(s.ctx)
	}

	s.logger.Info().
		Bool("timer", s.opts.TimerEnabled).
		Bool("events", s.opts.EventsEnabled).
		Dur("interval", s.opts.Interval).
		Msg("StatusService started successfully")
	return nil
}

// Stop cancels the timer loop and waits for the running cycle to return.
func (s *StatusService) Stop() error {
	s.mu.Lock()
	if s.ctx == nil {
		s.mu.Unlock()
		s.logger.Warn().Msg("StatusService is not running")
		return errors.New("status service is not running")
	}
	s.cancel()
	s.ctx = nil
	s.cancel = nil
	s.mu.Unlock()

	s.wg.Wait()

	s.logger.Info().Msg("StatusService stopped successfully")
	return nil
}

// runTimerLoop reports right away and then once per interval. A failed cycle is retried by the
// supervisor before the next interval starts.
func (s *StatusService) runTimerLoop(ctx context.Context) {
	for {
		err := s.supervisor.Run(ctx, "timer report", func(ctx context.Context) error {
			return s.RunCycle(ctx, nil)
		})
		if err != nil {
			s.logger.Info().Msg("StatusService stopping gracefully")
			return
		}

		select {
		case <-time.After(s.opts.Interval):
		case <-ctx.Done():
			s.logger.Info().Msg("StatusService stopping gracefully")
			return
		}
	}
}

// ReportOnce runs one timer-style report cycle under the supervisor and retries it until it
// succeeds or ctx is cancelled.
func (s *StatusService) ReportOnce(ctx context.Context) error {
	return s.supervisor.Run(ctx, "single report", func(ctx context.Context) error {
		return s.RunCycle(ctx, nil)
	})
}

// HandleEvent reports immediately when the event name matches the configured prefix. It runs a
// single supervised attempt; a failure only moves the shared backoff state forward.
func (s *StatusService) HandleEvent(event models.DeviceEvent) {
	if !strings.HasPrefix(event.Name, s.opts.EventPrefix) {
		return
	}

	s.mu.Lock()
	ctx := s.ctx
	if ctx != nil {
		s.wg.Add(1)
	}
	s.mu.Unlock()

	if ctx == nil {
		s.logger.Debug().Str("event", event.Name).Msg("StatusService not running, ignoring event")
		return
	}
	defer s.wg.Done()

	s.logger.Debug().Str("event", event.Name).Msg("Lifecycle event triggers a report")
	_ = s.supervisor.Attempt(ctx, "event report", func(ctx context.Context) error {
		return s.RunCycle(ctx, event.Envelope())
	})
}

// RunCycle performs one report cycle: resolve the credential, send the snapshot and dispatch the
// returned commands. A missing or malformed credential skips the cycle and is not an error.
func (s *StatusService) RunCycle(ctx context.Context, event *models.EventEnvelope) error {
	cred, err := identity.ResolveCredential(s.settings.AuthToken(), s.settings.TokenDelimiter())
	if err != nil {
		s.logger.Warn().Err(err).Msg("Skipping status report")
		return nil
	}

	snapshot, err := s.printer.GetCurrentStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to read printer status: %w", err)
	}
	if s.enricher != nil {
		snapshot = s.enricher.Enrich(ctx, snapshot)
	}
	if snapshot == nil {
		snapshot = models.StatusSnapshot{}
	}

	payload := models.ReportPayload{Data: snapshot, Event: event}
	cmds, err := s.reporter.Report(ctx, s.settings.EndpointPrefix(), cred, payload)
	if err != nil {
		return err
	}

	s.logger.Debug().Int("commands", len(cmds)).Msg("Status reported")
	return s.dispatcher.Dispatch(ctx, cmds)
}
