package domain

import (
	"context"
	"fmt"
	"strings"
)

// ChatMessage is one turn of an assistant conversation.
type ChatMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Chat roles.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// TextGenerator produces text from a prompt and optional prior turns.
type TextGenerator interface {
	GenerateText(ctx context.Context, history []ChatMessage, prompt string) (string, error)
}

const (
	maxChatHistory = 20
	maxMessageLen  = 2000
	maxPlanDays    = 14
)

const coachPersona = "You are a friendly fitness and nutrition coach inside a wellness app. " +
	"Answer concisely, avoid medical diagnoses, and suggest seeing a professional for health concerns."

// AssistantService generates coaching content with a language model.
type AssistantService struct {
	gen TextGenerator
}

// NewAssistantService constructs an AssistantService.
func NewAssistantService(gen TextGenerator) *AssistantService {
	return &AssistantService{gen: gen}
}

// Chat answers message given the previous turns.
func (s *AssistantService) Chat(ctx context.Context, history []ChatMessage, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", fmt.Errorf("%w: message is required", ErrValidation)
	}
	if len(message) > maxMessageLen {
		return "", fmt.Errorf("%w: message exceeds %d characters", ErrValidation, maxMessageLen)
	}
	for _, m := range history {
		if m.Role != RoleUser && m.Role != RoleModel {
			return "", fmt.Errorf("%w: history role must be user or model", ErrValidation)
		}
	}
	if len(history) > maxChatHistory {
		history = history[len(history)-maxChatHistory:]
	}
	turns := append([]ChatMessage{{Role: RoleUser, Text: coachPersona}, {Role: RoleModel, Text: "Understood."}}, history...)
	return s.generate(ctx, turns, message)
}

// GenerateRecipe suggests a recipe from ingredients near a calorie budget.
func (s *AssistantService) GenerateRecipe(ctx context.Context, ingredients []string, calories int) (string, error) {
	cleaned := make([]string, 0, len(ingredients))
	for _, in := range ingredients {
		if trimmed := strings.TrimSpace(in); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	if len(cleaned) == 0 {
		return "", fmt.Errorf("%w: at least one ingredient is required", ErrValidation)
	}
	if calories < 0 {
		return "", fmt.Errorf("%w: calories must not be negative", ErrValidation)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s\nCreate one healthy recipe using: %s.", coachPersona, strings.Join(cleaned, ", "))
	if calories > 0 {
		fmt.Fprintf(&b, " Aim for about %d kcal per serving.", calories)
	}
	b.WriteString(" List ingredients with quantities, numbered steps and estimated macros per serving.")
	return s.generate(ctx, nil, b.String())
}

// GenerateWorkoutPlan drafts a weekly plan for a goal and experience level.
func (s *AssistantService) GenerateWorkoutPlan(ctx context.Context, goal, level string, days int) (string, error) {
	goal, level = strings.TrimSpace(goal), strings.TrimSpace(level)
	if goal == "" {
		return "", fmt.Errorf("%w: goal is required", ErrValidation)
	}
	if level == "" {
		level = "beginner"
	}
	if days < 1 || days > 7 {
		return "", fmt.Errorf("%w: days must be between 1 and 7", ErrValidation)
	}
	prompt := fmt.Sprintf("%s\nDesign a %d-day-per-week workout plan for a %s aiming to %s. "+
		"For each day list exercises with sets, reps and rest in seconds.", coachPersona, days, level, goal)
	return s.generate(ctx, nil, prompt)
}

// GenerateMealPlan drafts a multi-day meal plan for a calorie target and diet.
func (s *AssistantService) GenerateMealPlan(ctx context.Context, calories int, diet string, days int) (string, error) {
	if calories <= 0 {
		return "", fmt.Errorf("%w: calories must be positive", ErrValidation)
	}
	if days < 1 || days > maxPlanDays {
		return "", fmt.Errorf("%w: days must be between 1 and %d", ErrValidation, maxPlanDays)
	}
	diet = strings.TrimSpace(diet)
	if diet == "" {
		diet = "balanced"
	}
	prompt := fmt.Sprintf("%s\nCreate a %d-day %s meal plan of about %d kcal per day. "+
		"For each day give breakfast, lunch, dinner and one snack with approximate calories.", coachPersona, days, diet, calories)
	return s.generate(ctx, nil, prompt)
}

func (s *AssistantService) generate(ctx context.Context, history []ChatMessage, prompt string) (string, error) {
	if s.gen == nil {
		return "", fmt.Errorf("%w: assistant not configured", ErrUpstream)
	}
	text, err := s.gen.GenerateText(ctx, history, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty response", ErrUpstream)
	}
	return text, nil
}
