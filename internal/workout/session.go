// Package workout implements the set/rest progression of a workout session.
//
// A session walks its plan exercise by exercise. Completing a set starts the
// exercise's rest timer when more sets remain; the timer expires lazily, so
// every read or transition first calls Advance with the current time.
package workout

import (
	"errors"
	"fmt"
	"time"

	"example.com/wellness/internal/calc"
)

// State of a session.
type State string

const (
	StateActive    State = "active"
	StateResting   State = "resting"
	StateCompleted State = "completed"
	StateAbandoned State = "abandoned"
)

var (
	// ErrInvalidPlan is returned for an empty plan or exercises without sets.
	ErrInvalidPlan = errors.New("invalid workout plan")
	// ErrSessionClosed is returned when a completed or abandoned session is modified.
	ErrSessionClosed = errors.New("workout session is closed")
	// ErrResting is returned when a set is logged before the rest timer ends.
	ErrResting = errors.New("rest period still running")
	// ErrNotResting is returned by SkipRest outside a rest period.
	ErrNotResting = errors.New("no rest period to skip")
	// ErrInvalidSet is returned for negative reps or weight.
	ErrInvalidSet = errors.New("reps and weight must not be negative")
)

// Exercise is one entry of the session plan.
type Exercise struct {
	Name        string  `json:"name"`
	Sets        int     `json:"sets"`
	Reps        int     `json:"reps"`
	RestSeconds int     `json:"rest_seconds"`
	MET         float64 `json:"met"`
}

// SetLog records a completed set.
type SetLog struct {
	Exercise    int       `json:"exercise"`
	Set         int       `json:"set"`
	Reps        int       `json:"reps"`
	WeightKg    float64   `json:"weight_kg"`
	CompletedAt time.Time `json:"completed_at"`
}

// Session is the persisted progression state.
type Session struct {
	Plan          []Exercise `json:"plan"`
	State         State      `json:"state"`
	ExerciseIndex int        `json:"exercise_index"`
	SetIndex      int        `json:"set_index"`
	RestEndsAt    *time.Time `json:"rest_ends_at,omitempty"`
	Sets          []SetLog   `json:"sets"`
	StartedAt     time.Time  `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
}

// DefaultMET is applied to exercises that carry no MET value.
const DefaultMET = 5.0

// New starts a session at now.
func New(plan []Exercise, now time.Time) (*Session, error) {
	if len(plan) == 0 {
		return nil, fmt.Errorf("%w: no exercises", ErrInvalidPlan)
	}
	for i, ex := range plan {
		if ex.Name == "" || ex.Sets <= 0 || ex.Reps < 0 || ex.RestSeconds < 0 || ex.MET < 0 {
			return nil, fmt.Errorf("%w: exercise %d", ErrInvalidPlan, i)
		}
	}
	return &Session{
		Plan:      append([]Exercise(nil), plan...),
		State:     StateActive,
		Sets:      []SetLog{},
		StartedAt: now.UTC(),
	}, nil
}

// Advance expires a finished rest period.
func (s *Session) Advance(now time.Time) {
	if s.State == StateResting && s.RestEndsAt != nil && !now.Before(*s.RestEndsAt) {
		s.State = StateActive
		s.RestEndsAt = nil
	}
}

// Closed reports whether the session accepts no further transitions.
func (s *Session) Closed() bool {
	return s.State == StateCompleted || s.State == StateAbandoned
}

// Current returns the exercise being performed, or nil once closed.
func (s *Session) Current() *Exercise {
	if s.Closed() || s.ExerciseIndex >= len(s.Plan) {
		return nil
	}
	return &s.Plan[s.ExerciseIndex]
}

// TotalSets is the number of sets in the plan.
func (s *Session) TotalSets() int {
	total := 0
	for _, ex := range s.Plan {
		total += ex.Sets
	}
	return total
}

// CompleteSet logs the current set and moves to rest, the next exercise or completion.
func (s *Session) CompleteSet(reps int, weightKg float64, now time.Time) error {
	s.Advance(now)
	switch s.State {
	case StateCompleted, StateAbandoned:
		return ErrSessionClosed
	case StateResting:
		return ErrResting
	}
	if reps < 0 || weightKg < 0 {
		return ErrInvalidSet
	}

	ex := s.Plan[s.ExerciseIndex]
	s.Sets = append(s.Sets, SetLog{
		Exercise:    s.ExerciseIndex,
		Set:         s.SetIndex + 1,
		Reps:        reps,
		WeightKg:    weightKg,
		CompletedAt: now.UTC(),
	})

	s.SetIndex++
	if s.SetIndex >= ex.Sets {
		s.ExerciseIndex++
		s.SetIndex = 0
	}
	if s.ExerciseIndex >= len(s.Plan) {
		s.close(StateCompleted, now)
		return nil
	}
	if ex.RestSeconds > 0 {
		ends := now.UTC().Add(time.Duration(ex.RestSeconds) * time.Second)
		s.State = StateResting
		s.RestEndsAt = &ends
	}
	return nil
}

// SkipRest ends the running rest period early.
func (s *Session) SkipRest(now time.Time) error {
	s.Advance(now)
	if s.Closed() {
		return ErrSessionClosed
	}
	if s.State != StateResting {
		return ErrNotResting
	}
	s.State = StateActive
	s.RestEndsAt = nil
	return nil
}

// Finish completes the session regardless of remaining sets.
func (s *Session) Finish(now time.Time) error {
	if s.Closed() {
		return ErrSessionClosed
	}
	s.close(StateCompleted, now)
	return nil
}

// Abandon closes the session without completing it.
func (s *Session) Abandon(now time.Time) error {
	if s.Closed() {
		return ErrSessionClosed
	}
	s.close(StateAbandoned, now)
	return nil
}

func (s *Session) close(state State, now time.Time) {
	ended := now.UTC()
	s.State = state
	s.RestEndsAt = nil
	s.EndedAt = &ended
}

// Duration is the wall time between start and end (or now while open).
func (s *Session) Duration(now time.Time) time.Duration {
	end := now
	if s.EndedAt != nil {
		end = *s.EndedAt
	}
	if end.Before(s.StartedAt) {
		return 0
	}
	return end.Sub(s.StartedAt)
}

// ExerciseMinutes attributes the time between consecutive completed sets to
// the exercise of the later set.
func (s *Session) ExerciseMinutes() []float64 {
	out := make([]float64, len(s.Plan))
	prev := s.StartedAt
	for _, set := range s.Sets {
		if set.Exercise < len(out) && set.CompletedAt.After(prev) {
			out[set.Exercise] += set.CompletedAt.Sub(prev).Minutes()
		}
		prev = set.CompletedAt
	}
	return out
}

// CaloriesBurned estimates energy spent for a person of weightKg.
func (s *Session) CaloriesBurned(weightKg float64) float64 {
	total := 0.0
	for i, minutes := range s.ExerciseMinutes() {
		met := s.Plan[i].MET
		if met == 0 {
			met = DefaultMET
		}
		total += calc.CaloriesBurned(met, weightKg, minutes)
	}
	return calc.Round(total, 1)
}
