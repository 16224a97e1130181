package api

import (
	"context"
	"net/http"

	"example.com/wellness/internal/domain"
	"example.com/wellness/internal/workout"
)

// StartWorkoutRequest is the payload for POST /v1/workouts.
type StartWorkoutRequest struct {
	Name      string             `json:"name"`
	Exercises []workout.Exercise `json:"exercises"`
}

// CompleteSetRequest is the payload for POST /v1/workouts/{id}/sets.
type CompleteSetRequest struct {
	Reps     int     `json:"reps"`
	WeightKg float64 `json:"weight_kg"`
}

func (h *Handler) workoutView(w domain.Workout) WorkoutView {
	return WorkoutView{
		Workout:         w,
		TotalSets:       w.Session.TotalSets(),
		CompletedSets:   len(w.Session.Sets),
		DurationSeconds: w.Session.Duration(h.now()).Seconds(),
	}
}

func (h *Handler) startWorkout(w http.ResponseWriter, r *http.Request, userID string) {
	var req StartWorkoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	started, err := h.svc.Workouts.StartWorkout(r.Context(), userID, req.Name, req.Exercises)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.workoutView(*started))
}

func (h *Handler) listWorkouts(w http.ResponseWriter, r *http.Request, userID string) {
	cursor, limit, ok := pageParams(w, r)
	if !ok {
		return
	}
	items, next, err := h.svc.Workouts.ListWorkouts(r.Context(), userID, cursor, limit)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	views := make([]WorkoutView, 0, len(items))
	for _, item := range items {
		views = append(views, h.workoutView(item))
	}
	writeJSON(w, http.StatusOK, list(views, next))
}

func (h *Handler) getWorkout(w http.ResponseWriter, r *http.Request, userID string) {
	found, err := h.svc.Workouts.GetWorkout(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.workoutView(*found))
}

func (h *Handler) completeSet(w http.ResponseWriter, r *http.Request, userID string) {
	var req CompleteSetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.transition(w, r, func(ctx context.Context, id string) (*domain.Workout, error) {
		return h.svc.Workouts.CompleteSet(ctx, userID, id, req.Reps, req.WeightKg)
	})
}

func (h *Handler) skipRest(w http.ResponseWriter, r *http.Request, userID string) {
	h.transition(w, r, func(ctx context.Context, id string) (*domain.Workout, error) {
		return h.svc.Workouts.SkipRest(ctx, userID, id)
	})
}

func (h *Handler) finishWorkout(w http.ResponseWriter, r *http.Request, userID string) {
	h.transition(w, r, func(ctx context.Context, id string) (*domain.Workout, error) {
		return h.svc.Workouts.FinishWorkout(ctx, userID, id)
	})
}

func (h *Handler) abandonWorkout(w http.ResponseWriter, r *http.Request, userID string) {
	h.transition(w, r, func(ctx context.Context, id string) (*domain.Workout, error) {
		return h.svc.Workouts.AbandonWorkout(ctx, userID, id)
	})
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, apply func(context.Context, string) (*domain.Workout, error)) {
	updated, err := apply(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.workoutView(*updated))
}
