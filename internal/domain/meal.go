package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"example.com/wellness/internal/calc"
)

// MealType is the slot of the day a meal belongs to.
type MealType string

const (
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealDinner    MealType = "dinner"
	MealSnack     MealType = "snack"
)

// Valid reports whether the meal type is known.
func (t MealType) Valid() bool {
	switch t {
	case MealBreakfast, MealLunch, MealDinner, MealSnack:
		return true
	}
	return false
}

// MealSource records how a meal's nutrients were obtained.
type MealSource string

const (
	SourceManual   MealSource = "manual"
	SourceAI       MealSource = "ai"
	SourceFallback MealSource = "fallback"
)

// Macros are energy and macronutrient amounts.
type Macros struct {
	Calories float64 `json:"calories"`
	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	FatG     float64 `json:"fat_g"`
}

// Add returns the element-wise sum.
func (m Macros) Add(o Macros) Macros {
	return Macros{
		Calories: m.Calories + o.Calories,
		ProteinG: m.ProteinG + o.ProteinG,
		CarbsG:   m.CarbsG + o.CarbsG,
		FatG:     m.FatG + o.FatG,
	}
}

// Scale multiplies every value by f.
func (m Macros) Scale(f float64) Macros {
	return Macros{
		Calories: m.Calories * f,
		ProteinG: m.ProteinG * f,
		CarbsG:   m.CarbsG * f,
		FatG:     m.FatG * f,
	}
}

// Rounded rounds every value to one decimal.
func (m Macros) Rounded() Macros {
	return Macros{
		Calories: calc.Round(m.Calories, 1),
		ProteinG: calc.Round(m.ProteinG, 1),
		CarbsG:   calc.Round(m.CarbsG, 1),
		FatG:     calc.Round(m.FatG, 1),
	}
}

func (m Macros) negative() bool {
	return m.Calories < 0 || m.ProteinG < 0 || m.CarbsG < 0 || m.FatG < 0
}

// MealItem is one food of a meal.
type MealItem struct {
	Name  string  `json:"name"`
	Grams float64 `json:"grams"`
	Macros
	Confidence float64 `json:"confidence,omitempty"`
}

// Meal is a logged eating occasion.
type Meal struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Name      string     `json:"name"`
	MealType  MealType   `json:"meal_type"`
	EatenAt   time.Time  `json:"eaten_at"`
	Items     []MealItem `json:"items"`
	Totals    Macros     `json:"totals"`
	PhotoURL  string     `json:"photo_url,omitempty"`
	Source    MealSource `json:"source"`
	CreatedAt time.Time  `json:"created_at"`
}

// SumItems totals the macros of items.
func SumItems(items []MealItem) Macros {
	var total Macros
	for _, item := range items {
		total = total.Add(item.Macros)
	}
	return total.Rounded()
}

// MealRepository persists meals.
type MealRepository interface {
	FindByIdempotency(ctx context.Context, userID, idempotencyKey string) (*Meal, error)
	Create(ctx context.Context, meal Meal, idempotencyKey string) error
	ListBetween(ctx context.Context, userID string, from, to time.Time) ([]Meal, error)
	Delete(ctx context.Context, userID, id string) (bool, error)
}

// LogMealInput captures the payload from the API layer.
type LogMealInput struct {
	UserID         string
	Name           string
	MealType       MealType
	EatenAt        time.Time
	Items          []MealItem
	PhotoURL       string
	Source         MealSource
	IdempotencyKey string
}

// Validate checks the meal payload.
func (in LogMealInput) Validate() error {
	if !in.MealType.Valid() {
		return fmt.Errorf("%w: meal_type must be breakfast, lunch, dinner or snack", ErrValidation)
	}
	if len(in.Items) == 0 {
		return fmt.Errorf("%w: at least one item is required", ErrValidation)
	}
	for i, item := range in.Items {
		if strings.TrimSpace(item.Name) == "" {
			return fmt.Errorf("%w: item %d has no name", ErrValidation, i)
		}
		if item.Grams < 0 || item.Macros.negative() {
			return fmt.Errorf("%w: item %d has negative values", ErrValidation, i)
		}
	}
	return nil
}

// MealService orchestrates meal logging.
type MealService struct {
	repo MealRepository
	opts options
}

// NewMealService constructs a MealService.
func NewMealService(repo MealRepository, opts ...Option) *MealService {
	return &MealService{repo: repo, opts: buildOptions(opts)}
}

// LogMeal stores a meal with totals derived from its items.
func (s *MealService) LogMeal(ctx context.Context, in LogMealInput) (*Meal, bool, error) {
	if err := in.Validate(); err != nil {
		return nil, false, err
	}
	if existing, err := s.repo.FindByIdempotency(ctx, in.UserID, in.IdempotencyKey); err == nil && existing != nil {
		return existing, true, nil
	}

	now := s.opts.now()
	eatenAt := in.EatenAt
	if eatenAt.IsZero() {
		eatenAt = now
	}
	source := in.Source
	if source == "" {
		source = SourceManual
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = in.Items[0].Name
	}

	meal := Meal{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		Name:      name,
		MealType:  in.MealType,
		EatenAt:   eatenAt.UTC(),
		Items:     in.Items,
		Totals:    SumItems(in.Items),
		PhotoURL:  in.PhotoURL,
		Source:    source,
		CreatedAt: now,
	}
	if err := s.repo.Create(ctx, meal, in.IdempotencyKey); err != nil {
		return nil, false, err
	}
	return &meal, false, nil
}

// ListMeals returns the meals eaten on the calendar day of day, in day's location.
func (s *MealService) ListMeals(ctx context.Context, userID string, day time.Time) ([]Meal, error) {
	from, to := DayBounds(day)
	return s.repo.ListBetween(ctx, userID, from, to)
}

// DeleteMeal removes one of the user's meals.
func (s *MealService) DeleteMeal(ctx context.Context, userID, id string) error {
	deleted, err := s.repo.Delete(ctx, userID, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrMealNotFound
	}
	return nil
}
