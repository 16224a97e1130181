package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"example.com/wellness/internal/workout"
)

// DefaultWeightKg is used for calorie estimates when no body stats exist.
const DefaultWeightKg = 70.0

// Workout is a persisted training session.
type Workout struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	Name           string          `json:"name"`
	Session        workout.Session `json:"session"`
	CaloriesBurned float64         `json:"calories_burned"`
	Version        int             `json:"version"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// WorkoutRepository persists workouts.
type WorkoutRepository interface {
	Create(ctx context.Context, w Workout) error
	Get(ctx context.Context, userID, id string) (*Workout, error)
	// Update stores w if the stored version equals w.Version and bumps it.
	// It returns ErrConflict otherwise.
	Update(ctx context.Context, w Workout) error
	List(ctx context.Context, userID string, cursor *Cursor, limit int) ([]Workout, *Cursor, error)
	CompletedBetween(ctx context.Context, userID string, from, to time.Time) ([]Workout, error)
}

// WorkoutService drives workout sessions.
type WorkoutService struct {
	repo  WorkoutRepository
	stats BodyStatsRepository
	opts  options
}

// NewWorkoutService constructs a WorkoutService.
func NewWorkoutService(repo WorkoutRepository, stats BodyStatsRepository, opts ...Option) *WorkoutService {
	return &WorkoutService{repo: repo, stats: stats, opts: buildOptions(opts)}
}

// StartWorkout opens a session for the given plan.
func (s *WorkoutService) StartWorkout(ctx context.Context, userID, name string, plan []workout.Exercise) (*Workout, error) {
	now := s.opts.now()
	session, err := workout.New(plan, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = plan[0].Name
	}
	w := Workout{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		Session:   *session,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, w); err != nil {
		return nil, err
	}
	return &w, nil
}

// GetWorkout loads a workout with its rest timer evaluated at the current time.
func (s *WorkoutService) GetWorkout(ctx context.Context, userID, id string) (*Workout, error) {
	w, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, ErrWorkoutNotFound
	}
	w.Session.Advance(s.opts.now())
	return w, nil
}

// ListWorkouts pages through workouts, newest first.
func (s *WorkoutService) ListWorkouts(ctx context.Context, userID string, cursor *Cursor, limit int) ([]Workout, *Cursor, error) {
	items, next, err := s.repo.List(ctx, userID, cursor, ClampLimit(limit, 20, 100))
	if err != nil {
		return nil, nil, err
	}
	now := s.opts.now()
	for i := range items {
		items[i].Session.Advance(now)
	}
	return items, next, nil
}

// CompleteSet logs a set of the current exercise.
func (s *WorkoutService) CompleteSet(ctx context.Context, userID, id string, reps int, weightKg float64) (*Workout, error) {
	return s.transition(ctx, userID, id, func(session *workout.Session, now time.Time) error {
		return session.CompleteSet(reps, weightKg, now)
	})
}

// SkipRest ends the current rest period.
func (s *WorkoutService) SkipRest(ctx context.Context, userID, id string) (*Workout, error) {
	return s.transition(ctx, userID, id, func(session *workout.Session, now time.Time) error {
		return session.SkipRest(now)
	})
}

// FinishWorkout completes the session early or confirms completion.
func (s *WorkoutService) FinishWorkout(ctx context.Context, userID, id string) (*Workout, error) {
	return s.transition(ctx, userID, id, func(session *workout.Session, now time.Time) error {
		return session.Finish(now)
	})
}

// AbandonWorkout closes the session without completion.
func (s *WorkoutService) AbandonWorkout(ctx context.Context, userID, id string) (*Workout, error) {
	return s.transition(ctx, userID, id, func(session *workout.Session, now time.Time) error {
		return session.Abandon(now)
	})
}

func (s *WorkoutService) transition(ctx context.Context, userID, id string, apply func(*workout.Session, time.Time) error) (*Workout, error) {
	w, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, ErrWorkoutNotFound
	}

	now := s.opts.now()
	if err := apply(&w.Session, now); err != nil {
		return nil, err
	}
	if w.Session.State == workout.StateCompleted {
		w.CaloriesBurned = w.Session.CaloriesBurned(s.weightFor(ctx, userID))
	}
	w.UpdatedAt = now
	if err := s.repo.Update(ctx, *w); err != nil {
		return nil, err
	}
	w.Version++
	return w, nil
}

func (s *WorkoutService) weightFor(ctx context.Context, userID string) float64 {
	latest, err := s.stats.Latest(ctx, userID)
	if err != nil {
		s.opts.logger.Warn("latest body stats unavailable, using default weight", zap.String("user_id", userID), zap.Error(err))
		return DefaultWeightKg
	}
	if latest == nil || latest.WeightKg <= 0 {
		return DefaultWeightKg
	}
	return latest.WeightKg
}
