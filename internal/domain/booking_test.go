package domain

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newBookingFixture() (*BookingService, *WalletService, *fakeLedger) {
	catalog := &fakeCatalog{trainers: []Trainer{
		{ID: "tr-1", GymID: "gym-1", Name: "Ana", Rating: 4.9, HourlyRate: decimal.RequireFromString("60.00")},
	}}
	ledger := newFakeLedger()
	return NewBookingService(ledger, catalog, fixedClock()), NewWalletService(ledger, fixedClock()), ledger
}

func TestSessionPriceProRata(t *testing.T) {
	require.Equal(t, "45", SessionPrice(decimal.RequireFromString("60"), 45).String())
	require.Equal(t, "37.08", SessionPrice(decimal.RequireFromString("49.44"), 45).String())
}

func TestCreateBookingDebitsWallet(t *testing.T) {
	ctx := context.Background()
	bookings, wallet, _ := newBookingFixture()

	_, _, err := wallet.TopUp(ctx, "user-1", decimal.NewFromInt(100), "")
	require.NoError(t, err)

	booking, replay, err := bookings.CreateBooking(ctx, CreateBookingInput{
		UserID:         "user-1",
		TrainerID:      "tr-1",
		StartsAt:       testNow.Add(24 * time.Hour),
		DurationMin:    90,
		IdempotencyKey: "key-1",
	})
	require.NoError(t, err)
	require.False(t, replay)
	require.Equal(t, BookingConfirmed, booking.Status)
	require.Equal(t, "gym-1", booking.GymID)
	require.True(t, booking.Price.Equal(decimal.NewFromInt(90)))

	w, err := wallet.GetWallet(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, w.Balance.Equal(decimal.NewFromInt(10)), w.Balance.String())

	again, replay, err := bookings.CreateBooking(ctx, CreateBookingInput{
		UserID:         "user-1",
		TrainerID:      "tr-1",
		StartsAt:       testNow.Add(24 * time.Hour),
		DurationMin:    90,
		IdempotencyKey: "key-1",
	})
	require.NoError(t, err)
	require.True(t, replay)
	require.Equal(t, booking.ID, again.ID)
}

func TestCreateBookingRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	bookings, _, _ := newBookingFixture()

	cases := []CreateBookingInput{
		{UserID: "u", TrainerID: "tr-1", StartsAt: testNow.Add(-time.Hour), DurationMin: 60},
		{UserID: "u", TrainerID: "tr-1", StartsAt: testNow.Add(time.Hour), DurationMin: 20},
		{UserID: "u", TrainerID: "tr-1", StartsAt: testNow.Add(time.Hour), DurationMin: 195},
		{UserID: "u", TrainerID: "tr-1", StartsAt: testNow.Add(time.Hour), DurationMin: 50},
		{UserID: "u", StartsAt: testNow.Add(time.Hour), DurationMin: 60},
	}
	for _, in := range cases {
		_, _, err := bookings.CreateBooking(ctx, in)
		require.ErrorIs(t, err, ErrValidation)
	}

	_, _, err := bookings.CreateBooking(ctx, CreateBookingInput{UserID: "u", TrainerID: "missing", StartsAt: testNow.Add(time.Hour), DurationMin: 60})
	require.ErrorIs(t, err, ErrTrainerNotFound)
}

func TestCreateBookingInsufficientFunds(t *testing.T) {
	bookings, _, _ := newBookingFixture()
	_, _, err := bookings.CreateBooking(context.Background(), CreateBookingInput{
		UserID:      "broke",
		TrainerID:   "tr-1",
		StartsAt:    testNow.Add(time.Hour),
		DurationMin: 60,
	})
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestCancelBookingRefundsOnlyFutureConfirmed(t *testing.T) {
	ctx := context.Background()
	bookings, wallet, ledger := newBookingFixture()
	_, _, err := wallet.TopUp(ctx, "user-1", decimal.NewFromInt(200), "")
	require.NoError(t, err)

	booking, _, err := bookings.CreateBooking(ctx, CreateBookingInput{
		UserID: "user-1", TrainerID: "tr-1", StartsAt: testNow.Add(2 * time.Hour), DurationMin: 60,
	})
	require.NoError(t, err)

	cancelled, err := bookings.CancelBooking(ctx, "user-1", booking.ID, "sick")
	require.NoError(t, err)
	require.Equal(t, BookingCancelled, cancelled.Status)

	w, _ := wallet.GetWallet(ctx, "user-1")
	require.True(t, w.Balance.Equal(decimal.NewFromInt(200)))

	_, err = bookings.CancelBooking(ctx, "user-1", booking.ID, "")
	require.ErrorIs(t, err, ErrBookingNotCancellable)

	_, err = bookings.CancelBooking(ctx, "someone-else", booking.ID, "")
	require.ErrorIs(t, err, ErrBookingNotFound)

	past := Booking{ID: "past", UserID: "user-1", StartsAt: testNow.Add(-time.Hour), DurationMin: 30, Status: BookingConfirmed}
	ledger.bookings[past.ID] = past
	_, err = bookings.CancelBooking(ctx, "user-1", "past", "")
	require.ErrorIs(t, err, ErrBookingNotCancellable)
}

func TestCompleteDueBookings(t *testing.T) {
	bookings, _, ledger := newBookingFixture()
	ledger.bookings["done"] = Booking{ID: "done", UserID: "u", StartsAt: testNow.Add(-2 * time.Hour), DurationMin: 60, Status: BookingConfirmed}
	ledger.bookings["running"] = Booking{ID: "running", UserID: "u", StartsAt: testNow.Add(-30 * time.Minute), DurationMin: 60, Status: BookingConfirmed}

	completed, err := bookings.CompleteDueBookings(context.Background())
	require.NoError(t, err)
	require.Len(t, completed, 1)
	require.Equal(t, "done", completed[0].ID)
	require.Equal(t, BookingConfirmed, ledger.bookings["running"].Status)
}

func TestListBookingsRejectsUnknownStatus(t *testing.T) {
	bookings, _, _ := newBookingFixture()
	_, _, err := bookings.ListBookings(context.Background(), "u", "pending", nil, 10)
	require.ErrorIs(t, err, ErrValidation)
}

func TestTopUpValidation(t *testing.T) {
	ctx := context.Background()
	_, wallet, _ := newBookingFixture()

	for _, raw := range []string{"0", "-5", "10000.01", "1.005"} {
		_, _, err := wallet.TopUp(ctx, "u", decimal.RequireFromString(raw), "")
		require.ErrorIs(t, err, ErrValidation, raw)
	}

	txn, replay, err := wallet.TopUp(ctx, "u", decimal.RequireFromString("10000"), "k")
	require.NoError(t, err)
	require.False(t, replay)
	require.Equal(t, TransactionTopUp, txn.Kind)

	again, replay, err := wallet.TopUp(ctx, "u", decimal.RequireFromString("10000"), "k")
	require.NoError(t, err)
	require.True(t, replay)
	require.Equal(t, txn.ID, again.ID)

	w, _ := wallet.GetWallet(ctx, "u")
	require.True(t, w.Balance.Equal(decimal.NewFromInt(10000)))
}
