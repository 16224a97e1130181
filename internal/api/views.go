package api

import (
	"example.com/wellness/internal/domain"
	"example.com/wellness/internal/persistence"
)

// ListResponse packages list results.
type ListResponse[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

func list[T any](items []T, next *domain.Cursor) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items, NextCursor: persistence.EncodeCursor(next)}
}

// TextResponse carries generated assistant content.
type TextResponse struct {
	Text string `json:"text"`
}

// BookingResponse reports a created booking.
type BookingResponse struct {
	domain.Booking
	Replay bool `json:"idempotent_replay"`
}

// TopUpResponse describes a wallet credit.
type TopUpResponse struct {
	Transaction domain.Transaction `json:"transaction"`
	Replay      bool               `json:"idempotent_replay"`
}

// MealResponse describes a logged meal.
type MealResponse struct {
	domain.Meal
	Replay bool `json:"idempotent_replay"`
}

// WorkoutView adds derived progress to a workout.
type WorkoutView struct {
	domain.Workout
	TotalSets       int     `json:"total_sets"`
	CompletedSets   int     `json:"completed_sets"`
	DurationSeconds float64 `json:"duration_seconds"`
}
