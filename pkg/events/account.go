package events

import "time"

// WalletTransactionRecorded is emitted for every wallet balance movement.
type WalletTransactionRecorded struct {
	TransactionID string    `json:"transaction_id"`
	UserID        string    `json:"user_id"`
	Kind          string    `json:"kind"`
	Amount        string    `json:"amount"`
	BalanceAfter  string    `json:"balance_after"`
	Reference     string    `json:"reference,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// AchievementUnlocked is emitted once per user and achievement.
type AchievementUnlocked struct {
	UserID     string    `json:"user_id"`
	Code       string    `json:"code"`
	Title      string    `json:"title"`
	UnlockedAt time.Time `json:"unlocked_at"`
}
