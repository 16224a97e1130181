// Package events defines event payloads exchanged between the wellness binaries over Kafka.
package events

import "time"

// Event types emitted through the outbox.
const (
	TypeMealLogged                = "meal.logged"
	TypeBodyStatsRecorded         = "body_stats.recorded"
	TypeWorkoutCompleted          = "workout.completed"
	TypeBookingCreated            = "booking.created"
	TypeBookingStateChanged       = "booking.state_changed"
	TypeWalletTransactionRecorded = "wallet.transaction_recorded"
	TypeAchievementUnlocked       = "achievement.unlocked"
)

// MealLogged is emitted when a meal is persisted, manually or from photo recognition.
type MealLogged struct {
	MealID   string    `json:"meal_id"`
	UserID   string    `json:"user_id"`
	MealType string    `json:"meal_type"`
	Calories float64   `json:"calories"`
	ProteinG float64   `json:"protein_g"`
	CarbsG   float64   `json:"carbs_g"`
	FatG     float64   `json:"fat_g"`
	Source   string    `json:"source"`
	EatenAt  time.Time `json:"eaten_at"`
}

// BodyStatsRecorded is emitted for each body measurement.
type BodyStatsRecorded struct {
	StatsID    string    `json:"stats_id"`
	UserID     string    `json:"user_id"`
	WeightKg   float64   `json:"weight_kg"`
	HeightCm   float64   `json:"height_cm"`
	BMI        float64   `json:"bmi"`
	RecordedAt time.Time `json:"recorded_at"`
}
