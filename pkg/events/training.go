package events

import "time"

// WorkoutCompleted is emitted when a workout session reaches the completed state.
type WorkoutCompleted struct {
	WorkoutID      string    `json:"workout_id"`
	UserID         string    `json:"user_id"`
	Name           string    `json:"name"`
	SetsCompleted  int       `json:"sets_completed"`
	DurationMin    int       `json:"duration_min"`
	CaloriesBurned float64   `json:"calories_burned"`
	CompletedAt    time.Time `json:"completed_at"`
}

// BookingCreated is emitted when a trainer session is booked and paid.
type BookingCreated struct {
	BookingID   string    `json:"booking_id"`
	UserID      string    `json:"user_id"`
	TrainerID   string    `json:"trainer_id"`
	GymID       string    `json:"gym_id"`
	StartsAt    time.Time `json:"starts_at"`
	DurationMin int       `json:"duration_min"`
	Price       string    `json:"price"`
}

// BookingStateChanged tracks booking transitions (cancelled, completed).
type BookingStateChanged struct {
	BookingID  string    `json:"booking_id"`
	UserID     string    `json:"user_id"`
	TrainerID  string    `json:"trainer_id"`
	State      string    `json:"state"`
	OccurredAt time.Time `json:"occurred_at"`
	Reason     string    `json:"reason,omitempty"`
}
