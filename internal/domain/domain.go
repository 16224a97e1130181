// Package domain defines the business logic of the wellness backend.
package domain

import (
	"errors"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrValidation wraps input errors surfaced to the caller as 400.
	ErrValidation = errors.New("validation failed")
	// ErrConflict signals a concurrent modification.
	ErrConflict = errors.New("resource was modified concurrently")
	// ErrUpstream wraps failures of vendor APIs.
	ErrUpstream = errors.New("upstream service failed")

	ErrGymNotFound           = errors.New("gym not found")
	ErrTrainerNotFound       = errors.New("trainer not found")
	ErrBookingNotFound       = errors.New("booking not found")
	ErrBookingNotCancellable = errors.New("booking cannot be cancelled")
	ErrInsufficientFunds     = errors.New("insufficient wallet balance")
	ErrMealNotFound          = errors.New("meal not found")
	ErrFoodNotFound          = errors.New("food not found")
	ErrWorkoutNotFound       = errors.New("workout not found")
	ErrNotificationNotFound  = errors.New("notification not found")
)

// Cursor models a keyset pagination token.
type Cursor struct {
	At time.Time
	ID string
}

// Option customises a service.
type Option func(*options)

type options struct {
	now    func() time.Time
	logger *zap.Logger
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the logger used for degraded paths.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		now:    func() time.Time { return time.Now().UTC() },
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// DayBounds returns [start, end) of the calendar day containing t in t's location.
func DayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}

// ClampLimit applies a default and an upper bound to page sizes.
func ClampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
