// Package jobs runs scheduled maintenance for the API process.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"example.com/wellness/internal/domain"
	"example.com/wellness/internal/observability"
)

// DefaultSweepSchedule completes finished sessions every five minutes.
const DefaultSweepSchedule = "*/5 * * * *"

// BookingCompleter closes bookings whose session has ended.
type BookingCompleter interface {
	CompleteDueBookings(ctx context.Context) ([]domain.Booking, error)
}

// Scheduler owns the cron runner.
type Scheduler struct {
	cron    *cron.Cron
	logger  *zap.Logger
	timeout time.Duration
}

// NewScheduler builds a scheduler running in UTC.
func NewScheduler(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := cronLogger{logger: logger.Named("cron")}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC), cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		logger:  logger,
		timeout: time.Minute,
	}
}

// AddBookingSweep registers the booking completion sweep on schedule.
func (s *Scheduler) AddBookingSweep(schedule string, bookings BookingCompleter) error {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	sweep := BookingSweep(bookings, s.logger, s.timeout)
	if _, err := s.cron.AddFunc(schedule, func() { sweep(context.Background()) }); err != nil {
		return fmt.Errorf("schedule booking sweep %q: %w", schedule, err)
	}
	return nil
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out")
	}
}

// BookingSweep returns one run of the sweep, bounded by timeout.
func BookingSweep(bookings BookingCompleter, logger *zap.Logger, timeout time.Duration) func(context.Context) {
	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		completed, err := bookings.CompleteDueBookings(ctx)
		if err != nil {
			logger.Error("booking sweep failed", zap.Error(err))
			return
		}
		observability.RecordBookingsCompleted(len(completed))
		if len(completed) > 0 {
			logger.Info("bookings completed", zap.Int("count", len(completed)))
		}
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
