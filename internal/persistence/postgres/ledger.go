package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"example.com/wellness/internal/domain"
	"example.com/wellness/internal/observability"
	"example.com/wellness/pkg/events"
)

// LedgerRepository persists wallets and bookings. Both live in one repository because a
// booking and its payment or refund must commit together.
type LedgerRepository struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository constructs a LedgerRepository.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

const transactionColumns = `transaction_id, user_id, kind, amount::text, balance_after::text, reference, description, created_at`

func scanTransaction(row pgx.Row) (domain.Transaction, error) {
	var (
		t               domain.Transaction
		amount, balance string
		reference       *string
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.Kind, &amount, &balance, &reference, &t.Description, &t.CreatedAt); err != nil {
		return domain.Transaction{}, err
	}
	var err error
	if t.Amount, err = parseDecimal(amount); err != nil {
		return domain.Transaction{}, err
	}
	if t.BalanceAfter, err = parseDecimal(balance); err != nil {
		return domain.Transaction{}, err
	}
	t.Reference = stringOrEmpty(reference)
	return t, nil
}

const bookingColumns = `booking_id, user_id, trainer_id, gym_id, starts_at, duration_min, price::text, status, notes, created_at, updated_at`

func scanBooking(row pgx.Row) (domain.Booking, error) {
	var (
		b     domain.Booking
		price string
	)
	if err := row.Scan(&b.ID, &b.UserID, &b.TrainerID, &b.GymID, &b.StartsAt, &b.DurationMin, &price, &b.Status, &b.Notes, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return domain.Booking{}, err
	}
	var err error
	if b.Price, err = parseDecimal(price); err != nil {
		return domain.Booking{}, err
	}
	return b, nil
}

// GetWallet returns the balance; users without a wallet row have a zero balance.
func (r *LedgerRepository) GetWallet(ctx context.Context, userID string) (domain.Wallet, error) {
	wallet := domain.Wallet{UserID: userID, Balance: decimal.Zero}
	err := withUserTx(ctx, r.pool, userID, func(tx pgx.Tx) error {
		var balance string
		err := tx.QueryRow(ctx, `SELECT balance::text, updated_at FROM wallets WHERE user_id=$1`, userID).Scan(&balance, &wallet.UpdatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		wallet.Balance, err = parseDecimal(balance)
		return err
	})
	return wallet, err
}

// FindTopUpByIdempotency returns the top-up recorded with idempotencyKey, if any.
func (r *LedgerRepository) FindTopUpByIdempotency(ctx context.Context, userID, idempotencyKey string) (*domain.Transaction, error) {
	if idempotencyKey == "" {
		return nil, nil
	}
	var found *domain.Transaction
	err := withUserTx(ctx, r.pool, userID, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+transactionColumns+` FROM wallet_transactions
            WHERE user_id=$1 AND idempotency_key=$2 AND kind='topup'`, userID, idempotencyKey)
		t, err := scanTransaction(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = &t
		return nil
	})
	return found, err
}

// Credit applies a top-up. A concurrent request with the same idempotency key loses the
// unique index race and receives the winner's transaction.
func (r *LedgerRepository) Credit(ctx context.Context, txn domain.Transaction, idempotencyKey string) (*domain.Transaction, error) {
	err := withUserTx(ctx, r.pool, txn.UserID, func(tx pgx.Tx) error {
		balance, err := addToBalance(ctx, tx, txn.UserID, txn.Amount, txn.CreatedAt)
		if err != nil {
			return err
		}
		txn.BalanceAfter = balance
		return recordTransaction(ctx, tx, txn, idempotencyKey)
	})
	if isUniqueViolation(err) {
		existing, findErr := r.FindTopUpByIdempotency(ctx, txn.UserID, idempotencyKey)
		if findErr != nil || existing == nil {
			return nil, domain.ErrConflict
		}
		return existing, nil
	}
	if err != nil {
		return nil, err
	}
	observability.RecordPersisted("wallet_transaction", txn.CreatedAt)
	return &txn, nil
}

// ListTransactions pages through the history, newest first.
func (r *LedgerRepository) ListTransactions(ctx context.Context, userID string, cursor *domain.Cursor, limit int) ([]domain.Transaction, *domain.Cursor, error) {
	if err := checkCursor(cursor); err != nil {
		return nil, nil, err
	}
	args := []interface{}{userID, limit}
	query := `SELECT ` + transactionColumns + ` FROM wallet_transactions WHERE user_id=$1`
	if cursor != nil {
		query += ` AND (created_at, transaction_id) < ($3, $4)`
		args = append(args, cursor.At, cursor.ID)
	}
	query += ` ORDER BY created_at DESC, transaction_id DESC LIMIT $2`

	results := make([]domain.Transaction, 0, limit)
	err := withUserTx(ctx, r.pool, userID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			t, err := scanTransaction(rows)
			if err != nil {
				return err
			}
			results = append(results, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, nil, err
	}

	var next *domain.Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		next = &domain.Cursor{At: last.CreatedAt, ID: last.ID}
	}
	return results, next, nil
}

// FindByIdempotency returns the booking created with idempotencyKey, if any.
func (r *LedgerRepository) FindByIdempotency(ctx context.Context, userID, idempotencyKey string) (*domain.Booking, error) {
	if idempotencyKey == "" {
		return nil, nil
	}
	return r.findBooking(ctx, userID, `user_id=$1 AND idempotency_key=$2`, userID, idempotencyKey)
}

// Get retrieves one of the user's bookings.
func (r *LedgerRepository) Get(ctx context.Context, userID, id string) (*domain.Booking, error) {
	if !validID(id) {
		return nil, nil
	}
	return r.findBooking(ctx, userID, `user_id=$1 AND booking_id=$2`, userID, id)
}

func (r *LedgerRepository) findBooking(ctx context.Context, userID, where string, args ...interface{}) (*domain.Booking, error) {
	var found *domain.Booking
	err := withUserTx(ctx, r.pool, userID, func(tx pgx.Tx) error {
		b, err := scanBooking(tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE `+where, args...))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = &b
		return nil
	})
	return found, err
}

// CreateWithPayment stores the booking and debits its price atomically.
func (r *LedgerRepository) CreateWithPayment(ctx context.Context, booking domain.Booking, idempotencyKey string) (*domain.Transaction, error) {
	payment := domain.Transaction{
		ID:          uuid.NewString(),
		UserID:      booking.UserID,
		Kind:        domain.TransactionPayment,
		Amount:      booking.Price,
		Reference:   booking.ID,
		Description: "Trainer session",
		CreatedAt:   booking.CreatedAt,
	}
	err := withUserTx(ctx, r.pool, booking.UserID, func(tx pgx.Tx) error {
		balance, err := debitBalance(ctx, tx, booking.UserID, booking.Price, booking.CreatedAt)
		if err != nil {
			return err
		}
		payment.BalanceAfter = balance

		const insert = `INSERT INTO bookings (booking_id, user_id, trainer_id, gym_id, starts_at, duration_min, price, status, notes, idempotency_key, created_at, updated_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7::numeric,$8,$9,$10,$11,$12)`
		if _, err := tx.Exec(ctx, insert,
			booking.ID,
			booking.UserID,
			booking.TrainerID,
			booking.GymID,
			booking.StartsAt,
			booking.DurationMin,
			booking.Price.String(),
			string(booking.Status),
			booking.Notes,
			nullIfEmpty(idempotencyKey),
			booking.CreatedAt,
			booking.UpdatedAt,
		); err != nil {
			return err
		}
		if err := recordTransaction(ctx, tx, payment, ""); err != nil {
			return err
		}
		return insertOutbox(ctx, tx, outboxEvent{
			UserID:        booking.UserID,
			AggregateType: "booking",
			AggregateID:   booking.ID,
			EventType:     events.TypeBookingCreated,
			Payload: events.BookingCreated{
				BookingID:   booking.ID,
				UserID:      booking.UserID,
				TrainerID:   booking.TrainerID,
				GymID:       booking.GymID,
				StartsAt:    booking.StartsAt,
				DurationMin: booking.DurationMin,
				Price:       booking.Price.StringFixed(2),
			},
		})
	})
	if isUniqueViolation(err) {
		return nil, domain.ErrConflict
	}
	if err != nil {
		return nil, err
	}
	observability.RecordPersisted("booking", booking.CreatedAt)
	return &payment, nil
}

// List pages through bookings, latest start first, optionally filtered by status.
func (r *LedgerRepository) List(ctx context.Context, userID string, status domain.BookingStatus, cursor *domain.Cursor, limit int) ([]domain.Booking, *domain.Cursor, error) {
	if err := checkCursor(cursor); err != nil {
		return nil, nil, err
	}
	args := []interface{}{userID, limit}
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id=$1`
	if status != "" {
		args = append(args, string(status))
		query += fmt.Sprintf(` AND status=$%d`, len(args))
	}
	if cursor != nil {
		args = append(args, cursor.At, cursor.ID)
		query += fmt.Sprintf(` AND (starts_at, booking_id) < ($%d, $%d)`, len(args)-1, len(args))
	}
	query += ` ORDER BY starts_at DESC, booking_id DESC LIMIT $2`

	results := make([]domain.Booking, 0, limit)
	err := withUserTx(ctx, r.pool, userID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			b, err := scanBooking(rows)
			if err != nil {
				return err
			}
			results = append(results, b)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, nil, err
	}

	var next *domain.Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		next = &domain.Cursor{At: last.StartsAt, ID: last.ID}
	}
	return results, next, nil
}

// CancelWithRefund cancels a confirmed booking and credits the price back.
func (r *LedgerRepository) CancelWithRefund(ctx context.Context, booking domain.Booking, reason string, at time.Time) (*domain.Transaction, error) {
	refund := domain.Transaction{
		ID:          uuid.NewString(),
		UserID:      booking.UserID,
		Kind:        domain.TransactionRefund,
		Amount:      booking.Price,
		Reference:   booking.ID,
		Description: "Trainer session refund",
		CreatedAt:   at,
	}
	err := withUserTx(ctx, r.pool, booking.UserID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE bookings SET status='cancelled', cancel_reason=$3, updated_at=$4
            WHERE user_id=$1 AND booking_id=$2 AND status='confirmed'`, booking.UserID, booking.ID, nullIfEmpty(reason), at)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrBookingNotCancellable
		}

		if booking.Price.IsPositive() {
			balance, err := addToBalance(ctx, tx, booking.UserID, booking.Price, at)
			if err != nil {
				return err
			}
			refund.BalanceAfter = balance
			if err := recordTransaction(ctx, tx, refund, ""); err != nil {
				return err
			}
		}
		return insertOutbox(ctx, tx, bookingStateEvent(booking, domain.BookingCancelled, reason, at))
	})
	if err != nil {
		return nil, err
	}
	observability.RecordPersisted("booking", at)
	return &refund, nil
}

// CompleteDue marks every confirmed booking that ended by now as completed, across users.
func (r *LedgerRepository) CompleteDue(ctx context.Context, now time.Time) ([]domain.Booking, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `UPDATE bookings SET status='completed', updated_at=$1
        WHERE status='confirmed' AND starts_at + make_interval(mins => duration_min) <= $1
        RETURNING `+bookingColumns, now)
	if err != nil {
		return nil, err
	}
	completed := make([]domain.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		completed = append(completed, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, b := range completed {
		if err := insertOutbox(ctx, tx, bookingStateEvent(b, domain.BookingCompleted, "", now)); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	if len(completed) > 0 {
		observability.RecordPersisted("booking", now)
	}
	return completed, nil
}

func bookingStateEvent(b domain.Booking, state domain.BookingStatus, reason string, at time.Time) outboxEvent {
	return outboxEvent{
		UserID:        b.UserID,
		AggregateType: "booking",
		AggregateID:   b.ID,
		EventType:     events.TypeBookingStateChanged,
		Payload: events.BookingStateChanged{
			BookingID:  b.ID,
			UserID:     b.UserID,
			TrainerID:  b.TrainerID,
			State:      string(state),
			OccurredAt: at,
			Reason:     reason,
		},
	}
}

func addToBalance(ctx context.Context, tx pgx.Tx, userID string, amount decimal.Decimal, at time.Time) (decimal.Decimal, error) {
	var balance string
	err := tx.QueryRow(ctx, `INSERT INTO wallets (user_id, balance, updated_at) VALUES ($1, $2::numeric, $3)
        ON CONFLICT (user_id) DO UPDATE SET balance = wallets.balance + EXCLUDED.balance, updated_at = EXCLUDED.updated_at
        RETURNING balance::text`, userID, amount.String(), at).Scan(&balance)
	if err != nil {
		return decimal.Zero, err
	}
	return parseDecimal(balance)
}

func debitBalance(ctx context.Context, tx pgx.Tx, userID string, amount decimal.Decimal, at time.Time) (decimal.Decimal, error) {
	if _, err := tx.Exec(ctx, `INSERT INTO wallets (user_id, balance, updated_at) VALUES ($1, 0, $2) ON CONFLICT (user_id) DO NOTHING`, userID, at); err != nil {
		return decimal.Zero, err
	}
	var balance string
	err := tx.QueryRow(ctx, `UPDATE wallets SET balance = balance - $2::numeric, updated_at = $3
        WHERE user_id=$1 AND balance >= $2::numeric RETURNING balance::text`, userID, amount.String(), at).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, domain.ErrInsufficientFunds
	}
	if err != nil {
		return decimal.Zero, err
	}
	return parseDecimal(balance)
}

func recordTransaction(ctx context.Context, tx pgx.Tx, t domain.Transaction, idempotencyKey string) error {
	const insert = `INSERT INTO wallet_transactions (transaction_id, user_id, kind, amount, balance_after, reference, description, idempotency_key, created_at)
        VALUES ($1,$2,$3,$4::numeric,$5::numeric,$6,$7,$8,$9)`
	if _, err := tx.Exec(ctx, insert,
		t.ID,
		t.UserID,
		string(t.Kind),
		t.Amount.String(),
		t.BalanceAfter.String(),
		nullIfEmpty(t.Reference),
		t.Description,
		nullIfEmpty(idempotencyKey),
		t.CreatedAt,
	); err != nil {
		return err
	}
	return insertOutbox(ctx, tx, outboxEvent{
		UserID:        t.UserID,
		AggregateType: "wallet_transaction",
		AggregateID:   t.ID,
		EventType:     events.TypeWalletTransactionRecorded,
		Payload: events.WalletTransactionRecorded{
			TransactionID: t.ID,
			UserID:        t.UserID,
			Kind:          string(t.Kind),
			Amount:        t.Amount.StringFixed(2),
			BalanceAfter:  t.BalanceAfter.StringFixed(2),
			Reference:     t.Reference,
			OccurredAt:    t.CreatedAt,
		},
	})
}
