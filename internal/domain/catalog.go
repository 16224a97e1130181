package domain

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"example.com/wellness/internal/calc"
)

// Gym is a catalog entry managed outside this service.
type Gym struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Address   string      `json:"address"`
	Location  calc.LatLng `json:"location"`
	Rating    float64     `json:"rating"`
	PriceTier int         `json:"price_tier"`
	Amenities []string    `json:"amenities"`
	OpenHour  int         `json:"open_hour"`
	CloseHour int         `json:"close_hour"`
	ImageURL  string      `json:"image_url,omitempty"`
}

// OpenAt reports whether the gym is open during the given hour (0-23).
// Equal open and close hours mean round the clock; close before open wraps past midnight.
func (g Gym) OpenAt(hour int) bool {
	switch {
	case g.OpenHour == g.CloseHour:
		return true
	case g.OpenHour < g.CloseHour:
		return hour >= g.OpenHour && hour < g.CloseHour
	default:
		return hour >= g.OpenHour || hour < g.CloseHour
	}
}

// HasAmenities reports whether every wanted amenity is offered (case-insensitive).
func (g Gym) HasAmenities(wanted []string) bool {
	for _, w := range wanted {
		found := false
		for _, a := range g.Amenities {
			if strings.EqualFold(a, w) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Trainer is a catalog entry bookable for sessions.
type Trainer struct {
	ID              string          `json:"id"`
	GymID           string          `json:"gym_id"`
	Name            string          `json:"name"`
	Specialties     []string        `json:"specialties"`
	Rating          float64         `json:"rating"`
	HourlyRate      decimal.Decimal `json:"hourly_rate"`
	Bio             string          `json:"bio,omitempty"`
	ImageURL        string          `json:"image_url,omitempty"`
	ExperienceYears int             `json:"experience_years"`
}

// GymFilter holds the conditions a repository can push down.
type GymFilter struct {
	MinRating float64
}

// TrainerFilter narrows the trainer directory.
type TrainerFilter struct {
	GymID     string
	Specialty string
	MinRating float64
	MaxRate   *decimal.Decimal
	Limit     int
}

// CatalogRepository reads gyms and trainers.
type CatalogRepository interface {
	ListGyms(ctx context.Context, filter GymFilter) ([]Gym, error)
	GetGym(ctx context.Context, id string) (*Gym, error)
	ListTrainers(ctx context.Context, filter TrainerFilter) ([]Trainer, error)
	GetTrainer(ctx context.Context, id string) (*Trainer, error)
}

// GymQuery captures gym search parameters.
type GymQuery struct {
	Origin    *calc.LatLng
	RadiusKm  float64
	Text      string
	Amenities []string
	MinRating float64
	OpenAt    *int
	Limit     int
}

// GymResult is a gym annotated with its distance from the search origin.
type GymResult struct {
	Gym
	DistanceKm    *float64 `json:"distance_km,omitempty"`
	DistanceLabel string   `json:"distance_label,omitempty"`
}

const (
	defaultRadiusKm   = 10.0
	defaultGymLimit   = 20
	maxGymLimit       = 100
	defaultTrainerCap = 50
)

// CatalogService serves gym discovery and the trainer directory.
type CatalogService struct {
	repo CatalogRepository
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(repo CatalogRepository) *CatalogService {
	return &CatalogService{repo: repo}
}

// SearchGyms filters and orders gyms around an optional origin.
func (s *CatalogService) SearchGyms(ctx context.Context, q GymQuery) ([]GymResult, error) {
	if q.RadiusKm < 0 {
		return nil, fmt.Errorf("%w: radius must not be negative", ErrValidation)
	}
	if q.OpenAt != nil && (*q.OpenAt < 0 || *q.OpenAt > 23) {
		return nil, fmt.Errorf("%w: open_at must be an hour between 0 and 23", ErrValidation)
	}
	radius := q.RadiusKm
	if radius == 0 {
		radius = defaultRadiusKm
	}
	limit := ClampLimit(q.Limit, defaultGymLimit, maxGymLimit)

	gyms, err := s.repo.ListGyms(ctx, GymFilter{MinRating: q.MinRating})
	if err != nil {
		return nil, fmt.Errorf("list gyms: %w", err)
	}

	text := strings.ToLower(strings.TrimSpace(q.Text))
	results := make([]GymResult, 0, len(gyms))
	for _, g := range gyms {
		if g.Rating < q.MinRating {
			continue
		}
		if text != "" && !strings.Contains(strings.ToLower(g.Name), text) && !strings.Contains(strings.ToLower(g.Address), text) {
			continue
		}
		if !g.HasAmenities(q.Amenities) {
			continue
		}
		if q.OpenAt != nil && !g.OpenAt(*q.OpenAt) {
			continue
		}
		result := GymResult{Gym: g}
		if q.Origin != nil {
			km := calc.Haversine(*q.Origin, g.Location)
			if km > radius {
				continue
			}
			rounded := calc.Round(km, 2)
			result.DistanceKm = &rounded
			result.DistanceLabel = calc.FormatDistance(km)
		}
		results = append(results, result)
	}

	if q.Origin != nil {
		sort.SliceStable(results, func(i, j int) bool {
			return *results[i].DistanceKm < *results[j].DistanceKm
		})
	} else {
		sort.SliceStable(results, func(i, j int) bool {
			if results[i].Rating != results[j].Rating {
				return results[i].Rating > results[j].Rating
			}
			return results[i].Name < results[j].Name
		})
	}

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// GetGym fetches a gym by ID.
func (s *CatalogService) GetGym(ctx context.Context, id string) (*Gym, error) {
	gym, err := s.repo.GetGym(ctx, id)
	if err != nil {
		return nil, err
	}
	if gym == nil {
		return nil, ErrGymNotFound
	}
	return gym, nil
}

// ListTrainers returns trainers ordered by rating, best first.
func (s *CatalogService) ListTrainers(ctx context.Context, filter TrainerFilter) ([]Trainer, error) {
	if filter.MaxRate != nil && filter.MaxRate.IsNegative() {
		return nil, fmt.Errorf("%w: max_rate must not be negative", ErrValidation)
	}
	filter.Limit = ClampLimit(filter.Limit, defaultTrainerCap, maxGymLimit)
	trainers, err := s.repo.ListTrainers(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list trainers: %w", err)
	}
	sort.SliceStable(trainers, func(i, j int) bool {
		if trainers[i].Rating != trainers[j].Rating {
			return trainers[i].Rating > trainers[j].Rating
		}
		return trainers[i].Name < trainers[j].Name
	})
	if len(trainers) > filter.Limit {
		trainers = trainers[:filter.Limit]
	}
	return trainers, nil
}

// GetTrainer fetches a trainer by ID.
func (s *CatalogService) GetTrainer(ctx context.Context, id string) (*Trainer, error) {
	trainer, err := s.repo.GetTrainer(ctx, id)
	if err != nil {
		return nil, err
	}
	if trainer == nil {
		return nil, ErrTrainerNotFound
	}
	return trainer, nil
}
