package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"example.com/wellness/internal/calc"
	"example.com/wellness/internal/observability"
)

// FallbackMacros is the macro set substituted when food recognition fails.
// Individual foods whose lookup fails use it as their per-100 g values.
var FallbackMacros = Macros{Calories: 250, ProteinG: 12, CarbsG: 30, FatG: 9}

// FallbackItemName names the single item of a fallback recognition.
const FallbackItemName = "Unrecognised meal"

const (
	maxPhotoBytes      = 8 << 20
	lookupConcurrency  = 4
	nutrientCachePrefx = "nutrients:"
)

// RecognizedFood is a food the vision model found in a photo.
type RecognizedFood struct {
	Name       string  `json:"name"`
	Grams      float64 `json:"grams"`
	Confidence float64 `json:"confidence"`
}

// FoodNutrients are the per-100 g values of a food.
type FoodNutrients struct {
	Query       string `json:"query"`
	Description string `json:"description"`
	FdcID       int64  `json:"fdc_id"`
	Per100g     Macros `json:"per_100g"`
}

// FoodRecognizer identifies foods in a meal photo.
type FoodRecognizer interface {
	RecognizeFoods(ctx context.Context, image []byte, mimeType string) ([]RecognizedFood, error)
}

// NutrientSource looks up canonical nutrient values by food name.
// It returns ErrFoodNotFound when the query matches nothing.
type NutrientSource interface {
	LookupFood(ctx context.Context, query string) (*FoodNutrients, error)
}

// PhotoStore keeps meal photos and returns a URL for them.
type PhotoStore interface {
	PutPhoto(ctx context.Context, userID string, image []byte, mimeType string) (string, error)
}

// Cache is a byte-oriented key/value store with expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RecognizeInput captures a recognition request.
type RecognizeInput struct {
	UserID         string
	Image          []byte
	MimeType       string
	MealType       MealType
	EatenAt        time.Time
	Log            bool
	IdempotencyKey string
}

// Recognition is the outcome of the photo pipeline.
type Recognition struct {
	Items    []MealItem `json:"items"`
	Totals   Macros     `json:"totals"`
	Source   MealSource `json:"source"`
	PhotoURL string     `json:"photo_url,omitempty"`
	Meal     *Meal      `json:"meal,omitempty"`
}

// NutritionService runs the recognition pipeline, food lookups and daily summaries.
type NutritionService struct {
	recognizer FoodRecognizer
	foods      NutrientSource
	photos     PhotoStore
	cache      Cache
	cacheTTL   time.Duration
	meals      *MealService
	workouts   WorkoutRepository
	profiles   *ProfileService
	opts       options
}

// NutritionDeps groups the collaborators of NutritionService.
type NutritionDeps struct {
	Recognizer FoodRecognizer
	Foods      NutrientSource
	Photos     PhotoStore
	Cache      Cache
	CacheTTL   time.Duration
	Meals      *MealService
	Workouts   WorkoutRepository
	Profiles   *ProfileService
}

// NewNutritionService constructs a NutritionService.
func NewNutritionService(deps NutritionDeps, opts ...Option) *NutritionService {
	return &NutritionService{
		recognizer: deps.Recognizer,
		foods:      deps.Foods,
		photos:     deps.Photos,
		cache:      deps.Cache,
		cacheTTL:   deps.CacheTTL,
		meals:      deps.Meals,
		workouts:   deps.Workouts,
		profiles:   deps.Profiles,
		opts:       buildOptions(opts),
	}
}

// FallbackRecognition is the result used when foods cannot be recognised.
func FallbackRecognition() Recognition {
	item := MealItem{Name: FallbackItemName, Grams: 100, Macros: FallbackMacros}
	return Recognition{Items: []MealItem{item}, Totals: FallbackMacros, Source: SourceFallback}
}

// RecognizeMeal uploads the photo, asks the vision model for foods and
// resolves their nutrients. Recognition failures degrade to FallbackRecognition.
func (s *NutritionService) RecognizeMeal(ctx context.Context, in RecognizeInput) (*Recognition, error) {
	if len(in.Image) == 0 {
		return nil, fmt.Errorf("%w: photo is required", ErrValidation)
	}
	if len(in.Image) > maxPhotoBytes {
		return nil, fmt.Errorf("%w: photo exceeds %d bytes", ErrValidation, maxPhotoBytes)
	}
	if !strings.HasPrefix(in.MimeType, "image/") {
		return nil, fmt.Errorf("%w: unsupported content type %q", ErrValidation, in.MimeType)
	}
	if in.Log && !in.MealType.Valid() {
		return nil, fmt.Errorf("%w: meal_type is required to log the meal", ErrValidation)
	}
	logger := s.opts.logger.With(zap.String("user_id", in.UserID))

	var photoURL string
	if s.photos != nil {
		url, err := s.photos.PutPhoto(ctx, in.UserID, in.Image, in.MimeType)
		if err != nil {
			logger.Warn("meal photo upload failed", zap.Error(err))
		} else {
			photoURL = url
		}
	}

	result := s.recognize(ctx, logger, in.Image, in.MimeType)
	result.PhotoURL = photoURL
	observability.RecordRecognition(string(result.Source))

	if in.Log {
		meal, _, err := s.meals.LogMeal(ctx, LogMealInput{
			UserID:         in.UserID,
			Name:           mealName(result.Items),
			MealType:       in.MealType,
			EatenAt:        in.EatenAt,
			Items:          result.Items,
			PhotoURL:       photoURL,
			Source:         result.Source,
			IdempotencyKey: in.IdempotencyKey,
		})
		if err != nil {
			return nil, fmt.Errorf("log recognised meal: %w", err)
		}
		result.Meal = meal
	}
	return &result, nil
}

func (s *NutritionService) recognize(ctx context.Context, logger *zap.Logger, image []byte, mimeType string) Recognition {
	if s.recognizer == nil {
		return FallbackRecognition()
	}
	foods, err := s.recognizer.RecognizeFoods(ctx, image, mimeType)
	if err != nil {
		logger.Warn("food recognition failed, using fallback", zap.Error(err))
		return FallbackRecognition()
	}
	foods = usableFoods(foods)
	if len(foods) == 0 {
		logger.Info("no foods recognised, using fallback")
		return FallbackRecognition()
	}

	items := make([]MealItem, len(foods))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupConcurrency)
	for i, food := range foods {
		g.Go(func() error {
			per100 := FallbackMacros
			nutrients, err := s.lookup(gctx, food.Name)
			if err != nil {
				logger.Warn("nutrient lookup failed, using per-100g fallback", zap.String("food", food.Name), zap.Error(err))
			} else {
				per100 = nutrients.Per100g
			}
			items[i] = MealItem{
				Name:       food.Name,
				Grams:      calc.Round(food.Grams, 1),
				Macros:     per100.Scale(food.Grams / 100).Rounded(),
				Confidence: calc.Round(food.Confidence, 2),
			}
			return nil
		})
	}
	_ = g.Wait()

	return Recognition{Items: items, Totals: SumItems(items), Source: SourceAI}
}

func usableFoods(foods []RecognizedFood) []RecognizedFood {
	out := make([]RecognizedFood, 0, len(foods))
	for _, f := range foods {
		f.Name = strings.TrimSpace(f.Name)
		if f.Name == "" || f.Grams <= 0 {
			continue
		}
		out = append(out, f)
	}
	return out
}

// maxMealNameRunes caps names derived from recognised foods.
const maxMealNameRunes = 120

func mealName(items []MealItem) string {
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.Name)
	}
	name := strings.Join(names, ", ")
	if runes := []rune(name); len(runes) > maxMealNameRunes {
		name = string(runes[:maxMealNameRunes])
	}
	return name
}

// LookupFood returns per-100 g nutrients of the best match for query.
func (s *NutritionService) LookupFood(ctx context.Context, query string) (*FoodNutrients, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrValidation)
	}
	return s.lookup(ctx, query)
}

func (s *NutritionService) lookup(ctx context.Context, query string) (*FoodNutrients, error) {
	if s.foods == nil {
		return nil, fmt.Errorf("%w: nutrient source not configured", ErrUpstream)
	}
	key := nutrientCachePrefx + strings.ToLower(strings.TrimSpace(query))
	if s.cache != nil {
		if raw, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			var cached FoodNutrients
			if err := json.Unmarshal(raw, &cached); err == nil {
				observability.RecordNutrientCache(true)
				return &cached, nil
			}
		}
		observability.RecordNutrientCache(false)
	}

	nutrients, err := s.foods.LookupFood(ctx, query)
	if err != nil {
		if errors.Is(err, ErrFoodNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if s.cache != nil {
		if raw, err := json.Marshal(nutrients); err == nil {
			if err := s.cache.Set(ctx, key, raw, s.cacheTTL); err != nil {
				s.opts.logger.Warn("nutrient cache write failed", zap.Error(err))
			}
		}
	}
	return nutrients, nil
}

// MacroPercent is the share of each target reached, clamped to 100.
type MacroPercent struct {
	Calories float64 `json:"calories"`
	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	FatG     float64 `json:"fat_g"`
}

// DailySummary aggregates one day of nutrition and training.
type DailySummary struct {
	Date              string       `json:"date"`
	Consumed          Macros       `json:"consumed"`
	Burned            float64      `json:"burned"`
	NetCalories       float64      `json:"net_calories"`
	Targets           Targets      `json:"targets"`
	Percent           MacroPercent `json:"percent"`
	MealsLogged       int          `json:"meals_logged"`
	WorkoutsCompleted int          `json:"workouts_completed"`
	Score             float64      `json:"score"`
}

// Ring weights of the daily score.
const (
	calorieRingWeight = 2
	proteinRingWeight = 1
	workoutRingWeight = 1
)

// DailySummary computes the summary for the calendar day of day, in day's location.
func (s *NutritionService) DailySummary(ctx context.Context, userID string, day time.Time) (*DailySummary, error) {
	from, to := DayBounds(day)

	meals, err := s.meals.ListMeals(ctx, userID, day)
	if err != nil {
		return nil, fmt.Errorf("list meals: %w", err)
	}
	workouts, err := s.workouts.CompletedBetween(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list workouts: %w", err)
	}
	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	var consumed Macros
	for _, m := range meals {
		consumed = consumed.Add(m.Totals)
	}
	consumed = consumed.Rounded()
	var burned float64
	for _, w := range workouts {
		burned += w.CaloriesBurned
	}
	burned = calc.Round(burned, 1)

	t := profile.Targets
	summary := &DailySummary{
		Date:        from.Format(time.DateOnly),
		Consumed:    consumed,
		Burned:      burned,
		NetCalories: calc.Round(calc.NetCalories(consumed.Calories, burned), 1),
		Targets:     t,
		Percent: MacroPercent{
			Calories: calc.Round(calc.PercentOfTarget(consumed.Calories, t.Calories), 1),
			ProteinG: calc.Round(calc.PercentOfTarget(consumed.ProteinG, t.ProteinG), 1),
			CarbsG:   calc.Round(calc.PercentOfTarget(consumed.CarbsG, t.CarbsG), 1),
			FatG:     calc.Round(calc.PercentOfTarget(consumed.FatG, t.FatG), 1),
		},
		MealsLogged:       len(meals),
		WorkoutsCompleted: len(workouts),
	}
	summary.Score = calc.Round(calc.ProgressRings([]calc.Ring{
		{Value: consumed.Calories, Target: t.Calories, Weight: calorieRingWeight},
		{Value: consumed.ProteinG, Target: t.ProteinG, Weight: proteinRingWeight},
		{Value: float64(len(workouts)), Target: 1, Weight: workoutRingWeight},
	}), 1)
	return summary, nil
}
