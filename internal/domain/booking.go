package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BookingStatus is the lifecycle state of a trainer session.
type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

// Valid reports whether the status is known.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingConfirmed, BookingCancelled, BookingCompleted:
		return true
	}
	return false
}

const (
	minBookingMinutes  = 30
	maxBookingMinutes  = 180
	bookingSlotMinutes = 15
	maxNotesLength     = 500
)

// Booking is a paid session with a trainer.
type Booking struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	TrainerID   string          `json:"trainer_id"`
	GymID       string          `json:"gym_id"`
	StartsAt    time.Time       `json:"starts_at"`
	DurationMin int             `json:"duration_min"`
	Price       decimal.Decimal `json:"price"`
	Status      BookingStatus   `json:"status"`
	Notes       string          `json:"notes,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// EndsAt is the scheduled end of the session.
func (b Booking) EndsAt() time.Time {
	return b.StartsAt.Add(time.Duration(b.DurationMin) * time.Minute)
}

// SessionPrice charges the hourly rate pro rata, rounded to cents.
func SessionPrice(hourlyRate decimal.Decimal, durationMin int) decimal.Decimal {
	return hourlyRate.Mul(decimal.NewFromInt(int64(durationMin))).Div(decimal.NewFromInt(60)).Round(2)
}

// BookingRepository persists bookings together with their wallet movements.
type BookingRepository interface {
	FindByIdempotency(ctx context.Context, userID, idempotencyKey string) (*Booking, error)
	// CreateWithPayment stores the booking and debits its price in one transaction.
	// It returns ErrInsufficientFunds when the balance does not cover the price.
	CreateWithPayment(ctx context.Context, booking Booking, idempotencyKey string) (*Transaction, error)
	Get(ctx context.Context, userID, id string) (*Booking, error)
	List(ctx context.Context, userID string, status BookingStatus, cursor *Cursor, limit int) ([]Booking, *Cursor, error)
	// CancelWithRefund cancels a confirmed booking and credits its price back.
	// It returns ErrBookingNotCancellable when the booking is no longer confirmed.
	CancelWithRefund(ctx context.Context, booking Booking, reason string, at time.Time) (*Transaction, error)
	// CompleteDue marks confirmed bookings ending at or before now as completed.
	CompleteDue(ctx context.Context, now time.Time) ([]Booking, error)
}

// BookingService orchestrates trainer bookings and their payments.
type BookingService struct {
	bookings BookingRepository
	catalog  CatalogRepository
	opts     options
}

// NewBookingService constructs a BookingService.
func NewBookingService(bookings BookingRepository, catalog CatalogRepository, opts ...Option) *BookingService {
	return &BookingService{bookings: bookings, catalog: catalog, opts: buildOptions(opts)}
}

// CreateBookingInput captures the payload from the API layer.
type CreateBookingInput struct {
	UserID         string
	TrainerID      string
	StartsAt       time.Time
	DurationMin    int
	Notes          string
	IdempotencyKey string
}

// Validate checks the input against the booking rules at now.
func (in CreateBookingInput) Validate(now time.Time) error {
	if strings.TrimSpace(in.TrainerID) == "" {
		return fmt.Errorf("%w: trainer_id is required", ErrValidation)
	}
	if !in.StartsAt.After(now) {
		return fmt.Errorf("%w: starts_at must be in the future", ErrValidation)
	}
	if in.DurationMin < minBookingMinutes || in.DurationMin > maxBookingMinutes {
		return fmt.Errorf("%w: duration_min must be between %d and %d", ErrValidation, minBookingMinutes, maxBookingMinutes)
	}
	if in.DurationMin%bookingSlotMinutes != 0 {
		return fmt.Errorf("%w: duration_min must be a multiple of %d", ErrValidation, bookingSlotMinutes)
	}
	if len(in.Notes) > maxNotesLength {
		return fmt.Errorf("%w: notes must be at most %d characters", ErrValidation, maxNotesLength)
	}
	return nil
}

// CreateBooking books and pays for a session. The bool result reports an idempotent replay.
func (s *BookingService) CreateBooking(ctx context.Context, in CreateBookingInput) (*Booking, bool, error) {
	if existing, err := s.bookings.FindByIdempotency(ctx, in.UserID, in.IdempotencyKey); err == nil && existing != nil {
		return existing, true, nil
	}

	now := s.opts.now()
	if err := in.Validate(now); err != nil {
		return nil, false, err
	}

	trainer, err := s.catalog.GetTrainer(ctx, in.TrainerID)
	if err != nil {
		return nil, false, fmt.Errorf("load trainer: %w", err)
	}
	if trainer == nil {
		return nil, false, ErrTrainerNotFound
	}

	booking := Booking{
		ID:          uuid.NewString(),
		UserID:      in.UserID,
		TrainerID:   trainer.ID,
		GymID:       trainer.GymID,
		StartsAt:    in.StartsAt.UTC(),
		DurationMin: in.DurationMin,
		Price:       SessionPrice(trainer.HourlyRate, in.DurationMin),
		Status:      BookingConfirmed,
		Notes:       strings.TrimSpace(in.Notes),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.bookings.CreateWithPayment(ctx, booking, in.IdempotencyKey); err != nil {
		return nil, false, err
	}
	return &booking, false, nil
}

// GetBooking fetches one of the user's bookings.
func (s *BookingService) GetBooking(ctx context.Context, userID, id string) (*Booking, error) {
	booking, err := s.bookings.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}
	return booking, nil
}

// ListBookings pages through the user's bookings, latest start first.
func (s *BookingService) ListBookings(ctx context.Context, userID string, status BookingStatus, cursor *Cursor, limit int) ([]Booking, *Cursor, error) {
	if status != "" && !status.Valid() {
		return nil, nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	return s.bookings.List(ctx, userID, status, cursor, ClampLimit(limit, 20, 100))
}

// CancelBooking cancels a future confirmed booking and refunds it in full.
func (s *BookingService) CancelBooking(ctx context.Context, userID, id, reason string) (*Booking, error) {
	booking, err := s.GetBooking(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	now := s.opts.now()
	if booking.Status != BookingConfirmed || !booking.StartsAt.After(now) {
		return nil, ErrBookingNotCancellable
	}
	if _, err := s.bookings.CancelWithRefund(ctx, *booking, strings.TrimSpace(reason), now); err != nil {
		return nil, err
	}
	booking.Status = BookingCancelled
	booking.UpdatedAt = now
	return booking, nil
}

// CompleteDueBookings closes sessions whose end has passed.
func (s *BookingService) CompleteDueBookings(ctx context.Context) ([]Booking, error) {
	return s.bookings.CompleteDue(ctx, s.opts.now())
}
