package catalog

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"example.com/wellness/internal/calc"
	"example.com/wellness/internal/domain"
)

const (
	gymColumns     = "id,name,address,latitude,longitude,rating,price_tier,amenities,open_hour,close_hour,image_url"
	trainerColumns = "id,gym_id,name,specialties,rating,hourly_rate,bio,image_url,experience_years"
)

type gymRow struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Address   string   `json:"address"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Rating    float64  `json:"rating"`
	PriceTier int      `json:"price_tier"`
	Amenities []string `json:"amenities"`
	OpenHour  int      `json:"open_hour"`
	CloseHour int      `json:"close_hour"`
	ImageURL  *string  `json:"image_url"`
}

func (r gymRow) toDomain() domain.Gym {
	g := domain.Gym{
		ID:        r.ID,
		Name:      r.Name,
		Address:   r.Address,
		Location:  calc.LatLng{Lat: r.Latitude, Lng: r.Longitude},
		Rating:    r.Rating,
		PriceTier: r.PriceTier,
		Amenities: r.Amenities,
		OpenHour:  r.OpenHour,
		CloseHour: r.CloseHour,
	}
	if g.Amenities == nil {
		g.Amenities = []string{}
	}
	if r.ImageURL != nil {
		g.ImageURL = *r.ImageURL
	}
	return g
}

type trainerRow struct {
	ID              string          `json:"id"`
	GymID           string          `json:"gym_id"`
	Name            string          `json:"name"`
	Specialties     []string        `json:"specialties"`
	Rating          float64         `json:"rating"`
	HourlyRate      decimal.Decimal `json:"hourly_rate"`
	Bio             *string         `json:"bio"`
	ImageURL        *string         `json:"image_url"`
	ExperienceYears int             `json:"experience_years"`
}

func (r trainerRow) toDomain() domain.Trainer {
	t := domain.Trainer{
		ID:              r.ID,
		GymID:           r.GymID,
		Name:            r.Name,
		Specialties:     r.Specialties,
		Rating:          r.Rating,
		HourlyRate:      r.HourlyRate,
		ExperienceYears: r.ExperienceYears,
	}
	if t.Specialties == nil {
		t.Specialties = []string{}
	}
	if r.Bio != nil {
		t.Bio = *r.Bio
	}
	if r.ImageURL != nil {
		t.ImageURL = *r.ImageURL
	}
	return t
}

// SupabaseRepository implements domain.CatalogRepository over PostgREST.
type SupabaseRepository struct {
	client *Client
}

// NewSupabaseRepository constructs a SupabaseRepository.
func NewSupabaseRepository(client *Client) *SupabaseRepository {
	return &SupabaseRepository{client: client}
}

// ListGyms implements domain.CatalogRepository.
func (r *SupabaseRepository) ListGyms(ctx context.Context, filter domain.GymFilter) ([]domain.Gym, error) {
	q := r.client.From("gyms").Select(gymColumns)
	if filter.MinRating > 0 {
		q = q.Gte("rating", filter.MinRating)
	}
	var rows []gymRow
	if err := q.Order("rating", OrderDesc).ExecuteInto(ctx, &rows); err != nil {
		return nil, err
	}
	out := make([]domain.Gym, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// GetGym implements domain.CatalogRepository.
func (r *SupabaseRepository) GetGym(ctx context.Context, id string) (*domain.Gym, error) {
	var rows []gymRow
	if err := r.client.From("gyms").Select(gymColumns).Eq("id", id).Limit(1).ExecuteInto(ctx, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	gym := rows[0].toDomain()
	return &gym, nil
}

// ListTrainers implements domain.CatalogRepository.
func (r *SupabaseRepository) ListTrainers(ctx context.Context, filter domain.TrainerFilter) ([]domain.Trainer, error) {
	q := r.client.From("trainers").Select(trainerColumns)
	if filter.GymID != "" {
		q = q.Eq("gym_id", filter.GymID)
	}
	if filter.MinRating > 0 {
		q = q.Gte("rating", filter.MinRating)
	}
	if filter.MaxRate != nil {
		q = q.Lte("hourly_rate", filter.MaxRate.String())
	}
	if s := strings.ToLower(strings.TrimSpace(filter.Specialty)); s != "" {
		q = q.Contains("specialties", s)
	}
	q = q.Order("rating", OrderDesc)
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var rows []trainerRow
	if err := q.ExecuteInto(ctx, &rows); err != nil {
		return nil, err
	}
	out := make([]domain.Trainer, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// GetTrainer implements domain.CatalogRepository.
func (r *SupabaseRepository) GetTrainer(ctx context.Context, id string) (*domain.Trainer, error) {
	var rows []trainerRow
	if err := r.client.From("trainers").Select(trainerColumns).Eq("id", id).Limit(1).ExecuteInto(ctx, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	trainer := rows[0].toDomain()
	return &trainer, nil
}
