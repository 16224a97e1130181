package domain

import (
	"context"
	"fmt"
	"time"

	"example.com/wellness/internal/calc"
)

// Progress counters fed by the event consumer.
const (
	CounterMealsLogged       = "meals_logged"
	CounterWorkoutsCompleted = "workouts_completed"
	CounterCaloriesBurned    = "calories_burned"
	CounterBookingsCreated   = "bookings_created"
	CounterBodyStatsRecorded = "body_stats_recorded"
)

// AchievementDef is a catalog entry unlocked when Counter reaches Threshold.
type AchievementDef struct {
	Code        string  `json:"code"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Counter     string  `json:"counter"`
	Threshold   float64 `json:"threshold"`
}

// AchievementCatalog lists every achievement in display order.
var AchievementCatalog = []AchievementDef{
	{Code: "first_meal", Title: "First Bite", Description: "Log your first meal", Counter: CounterMealsLogged, Threshold: 1},
	{Code: "meal_streak_50", Title: "Mindful Eater", Description: "Log 50 meals", Counter: CounterMealsLogged, Threshold: 50},
	{Code: "first_workout", Title: "Warmed Up", Description: "Complete your first workout", Counter: CounterWorkoutsCompleted, Threshold: 1},
	{Code: "workout_10", Title: "Regular", Description: "Complete 10 workouts", Counter: CounterWorkoutsCompleted, Threshold: 10},
	{Code: "burn_5000", Title: "Furnace", Description: "Burn 5000 kcal in workouts", Counter: CounterCaloriesBurned, Threshold: 5000},
	{Code: "first_booking", Title: "Coached", Description: "Book a session with a trainer", Counter: CounterBookingsCreated, Threshold: 1},
	{Code: "body_tracker", Title: "Body Tracker", Description: "Record body stats 5 times", Counter: CounterBodyStatsRecorded, Threshold: 5},
}

// Achievement is a catalog entry with the user's progress.
type Achievement struct {
	AchievementDef
	Progress   float64    `json:"progress"`
	Percent    float64    `json:"percent"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
}

// Reached reports whether values carries this entry's counter at or above its threshold.
func (d AchievementDef) Reached(values map[string]float64) bool {
	value, ok := values[d.Counter]
	return ok && value >= d.Threshold
}

// CounterDelta is one counter increment carried by an event.
type CounterDelta struct {
	Counter string
	Delta   float64
}

// ProgressUpdate is the counter work of a single event.
type ProgressUpdate struct {
	UserID string
	// EventKey identifies the source event. An update whose key was already applied
	// is ignored; an empty key is never deduplicated.
	EventKey string
	Deltas   []CounterDelta
	At       time.Time
}

// AchievementRepository persists counters and unlocks.
type AchievementRepository interface {
	Counters(ctx context.Context, userID string) (map[string]float64, error)
	Unlocked(ctx context.Context, userID string) (map[string]time.Time, error)
	// ApplyProgress adds every delta and unlocks each catalog entry Reached by the
	// updated counters, all in one transaction. It returns the entries this call unlocked.
	ApplyProgress(ctx context.Context, update ProgressUpdate, catalog []AchievementDef) ([]AchievementDef, error)
}

// AchievementService tracks progress against the catalog.
type AchievementService struct {
	repo AchievementRepository
	opts options
}

// NewAchievementService constructs an AchievementService.
func NewAchievementService(repo AchievementRepository, opts ...Option) *AchievementService {
	return &AchievementService{repo: repo, opts: buildOptions(opts)}
}

// ListAchievements returns every catalog entry with the user's progress.
func (s *AchievementService) ListAchievements(ctx context.Context, userID string) ([]Achievement, error) {
	counters, err := s.repo.Counters(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load counters: %w", err)
	}
	unlocked, err := s.repo.Unlocked(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load unlocks: %w", err)
	}

	out := make([]Achievement, 0, len(AchievementCatalog))
	for _, def := range AchievementCatalog {
		a := Achievement{
			AchievementDef: def,
			Progress:       counters[def.Counter],
			Percent:        calc.Round(calc.PercentOfTarget(counters[def.Counter], def.Threshold), 1),
		}
		if at, ok := unlocked[def.Code]; ok {
			at := at
			a.UnlockedAt = &at
			a.Percent = 100
		}
		out = append(out, a)
	}
	return out, nil
}

// RecordEvent applies the counter deltas of one event and returns the achievements
// it unlocked. Replaying the same eventKey changes nothing.
func (s *AchievementService) RecordEvent(ctx context.Context, userID, eventKey string, deltas []CounterDelta, at time.Time) ([]AchievementDef, error) {
	positive := make([]CounterDelta, 0, len(deltas))
	for _, d := range deltas {
		if d.Delta > 0 {
			positive = append(positive, d)
		}
	}
	if len(positive) == 0 {
		return nil, nil
	}
	if at.IsZero() {
		at = s.opts.now().UTC()
	}
	unlocked, err := s.repo.ApplyProgress(ctx, ProgressUpdate{
		UserID:   userID,
		EventKey: eventKey,
		Deltas:   positive,
		At:       at,
	}, AchievementCatalog)
	if err != nil {
		return nil, fmt.Errorf("apply progress: %w", err)
	}
	return unlocked, nil
}
