package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionKind classifies wallet movements.
type TransactionKind string

const (
	TransactionTopUp   TransactionKind = "topup"
	TransactionPayment TransactionKind = "payment"
	TransactionRefund  TransactionKind = "refund"
)

// MaxTopUp bounds a single top-up.
var MaxTopUp = decimal.NewFromInt(10000)

// Wallet is the per-user balance. It is created lazily with a zero balance.
type Wallet struct {
	UserID    string          `json:"user_id"`
	Balance   decimal.Decimal `json:"balance"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Transaction records one balance movement. Amount is always positive; Kind gives the direction.
type Transaction struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	Kind         TransactionKind `json:"kind"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	Reference    string          `json:"reference,omitempty"`
	Description  string          `json:"description,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Signed returns the amount with the sign of its effect on the balance.
func (t Transaction) Signed() decimal.Decimal {
	if t.Kind == TransactionPayment {
		return t.Amount.Neg()
	}
	return t.Amount
}

// WalletRepository persists balances and their transactions.
type WalletRepository interface {
	GetWallet(ctx context.Context, userID string) (Wallet, error)
	FindTopUpByIdempotency(ctx context.Context, userID, idempotencyKey string) (*Transaction, error)
	// Credit applies a top-up and fills in BalanceAfter.
	Credit(ctx context.Context, txn Transaction, idempotencyKey string) (*Transaction, error)
	ListTransactions(ctx context.Context, userID string, cursor *Cursor, limit int) ([]Transaction, *Cursor, error)
}

// WalletService orchestrates wallet workflows.
type WalletService struct {
	repo WalletRepository
	opts options
}

// NewWalletService constructs a WalletService.
func NewWalletService(repo WalletRepository, opts ...Option) *WalletService {
	return &WalletService{repo: repo, opts: buildOptions(opts)}
}

// GetWallet returns the balance, zero for users who never transacted.
func (s *WalletService) GetWallet(ctx context.Context, userID string) (Wallet, error) {
	return s.repo.GetWallet(ctx, userID)
}

// TopUp credits the wallet. A repeated idempotency key replays the original transaction.
func (s *WalletService) TopUp(ctx context.Context, userID string, amount decimal.Decimal, idempotencyKey string) (*Transaction, bool, error) {
	if !amount.IsPositive() {
		return nil, false, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if amount.GreaterThan(MaxTopUp) {
		return nil, false, fmt.Errorf("%w: amount must not exceed %s", ErrValidation, MaxTopUp.String())
	}
	if !amount.Equal(amount.Round(2)) {
		return nil, false, fmt.Errorf("%w: amount supports at most two decimals", ErrValidation)
	}

	if existing, err := s.repo.FindTopUpByIdempotency(ctx, userID, idempotencyKey); err == nil && existing != nil {
		return existing, true, nil
	}

	txn, err := s.repo.Credit(ctx, Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Kind:        TransactionTopUp,
		Amount:      amount,
		Description: "Wallet top-up",
		CreatedAt:   s.opts.now(),
	}, idempotencyKey)
	if err != nil {
		return nil, false, fmt.Errorf("credit wallet: %w", err)
	}
	return txn, false, nil
}

// ListTransactions pages through the wallet history, newest first.
func (s *WalletService) ListTransactions(ctx context.Context, userID string, cursor *Cursor, limit int) ([]Transaction, *Cursor, error) {
	return s.repo.ListTransactions(ctx, userID, cursor, ClampLimit(limit, 20, 100))
}
