package api

import (
	"net/http"

	"example.com/wellness/internal/domain"
)

// ChatRequest is the payload for POST /v1/assistant/chat.
type ChatRequest struct {
	History []domain.ChatMessage `json:"history"`
	Message string               `json:"message"`
}

// RecipeRequest is the payload for POST /v1/assistant/recipes.
type RecipeRequest struct {
	Ingredients []string `json:"ingredients"`
	Calories    int      `json:"calories"`
}

// WorkoutPlanRequest is the payload for POST /v1/assistant/workout-plans.
type WorkoutPlanRequest struct {
	Goal  string `json:"goal"`
	Level string `json:"level"`
	Days  int    `json:"days"`
}

// MealPlanRequest is the payload for POST /v1/assistant/meal-plans.
type MealPlanRequest struct {
	Calories int    `json:"calories"`
	Diet     string `json:"diet"`
	Days     int    `json:"days"`
}

func (h *Handler) chat(w http.ResponseWriter, r *http.Request, _ string) {
	var req ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.writeText(w, r)(h.svc.Assistant.Chat(r.Context(), req.History, req.Message))
}

func (h *Handler) recipe(w http.ResponseWriter, r *http.Request, _ string) {
	var req RecipeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.writeText(w, r)(h.svc.Assistant.GenerateRecipe(r.Context(), req.Ingredients, req.Calories))
}

func (h *Handler) workoutPlan(w http.ResponseWriter, r *http.Request, _ string) {
	var req WorkoutPlanRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.writeText(w, r)(h.svc.Assistant.GenerateWorkoutPlan(r.Context(), req.Goal, req.Level, req.Days))
}

func (h *Handler) mealPlan(w http.ResponseWriter, r *http.Request, _ string) {
	var req MealPlanRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.writeText(w, r)(h.svc.Assistant.GenerateMealPlan(r.Context(), req.Calories, req.Diet, req.Days))
}

func (h *Handler) writeText(w http.ResponseWriter, r *http.Request) func(string, error) {
	return func(text string, err error) {
		if err != nil {
			h.writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, TextResponse{Text: text})
	}
}
