package catalog

import (
	"context"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"example.com/wellness/internal/calc"
	"example.com/wellness/internal/domain"
)

// InMemoryRepository serves a fixed catalog for local development.
type InMemoryRepository struct {
	mu       sync.RWMutex
	gyms     map[string]domain.Gym
	trainers map[string]domain.Trainer
}

// NewInMemoryRepository constructs a repository populated with a seed catalog.
func NewInMemoryRepository() *InMemoryRepository {
	repo := &InMemoryRepository{
		gyms:     make(map[string]domain.Gym),
		trainers: make(map[string]domain.Trainer),
	}
	repo.seed()
	return repo
}

func (r *InMemoryRepository) seed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	gyms := []domain.Gym{
		{ID: "8d3c0b1e-1f3a-4f7e-9a51-5c2f0f6a1001", Name: "Iron Works Gym", Address: "12 Market St, San Francisco", Location: calc.LatLng{Lat: 37.7936, Lng: -122.3965}, Rating: 4.6, PriceTier: 2, Amenities: []string{"sauna", "parking", "free weights"}, OpenHour: 5, CloseHour: 23},
		{ID: "8d3c0b1e-1f3a-4f7e-9a51-5c2f0f6a1002", Name: "Pulse Yoga Studio", Address: "480 Valencia St, San Francisco", Location: calc.LatLng{Lat: 37.7648, Lng: -122.4219}, Rating: 4.8, PriceTier: 3, Amenities: []string{"showers", "mats"}, OpenHour: 6, CloseHour: 21},
		{ID: "8d3c0b1e-1f3a-4f7e-9a51-5c2f0f6a1003", Name: "Bayfront 24/7 Fitness", Address: "2 Embarcadero Center, San Francisco", Location: calc.LatLng{Lat: 37.7952, Lng: -122.3988}, Rating: 4.2, PriceTier: 1, Amenities: []string{"parking", "pool", "sauna"}, OpenHour: 0, CloseHour: 0},
		{ID: "8d3c0b1e-1f3a-4f7e-9a51-5c2f0f6a1004", Name: "Oakland Strength Lab", Address: "1500 Broadway, Oakland", Location: calc.LatLng{Lat: 37.8044, Lng: -122.2712}, Rating: 4.4, PriceTier: 2, Amenities: []string{"free weights", "showers"}, OpenHour: 6, CloseHour: 22},
	}
	for _, g := range gyms {
		r.gyms[g.ID] = g
	}
	trainers := []domain.Trainer{
		{ID: "5a1e7c44-0d6b-4c52-8f0e-3b9a2e7d2001", GymID: gyms[0].ID, Name: "Maya Chen", Specialties: []string{"strength", "powerlifting"}, Rating: 4.9, HourlyRate: decimal.RequireFromString("65.00"), ExperienceYears: 8},
		{ID: "5a1e7c44-0d6b-4c52-8f0e-3b9a2e7d2002", GymID: gyms[1].ID, Name: "Diego Alvarez", Specialties: []string{"yoga", "mobility"}, Rating: 4.7, HourlyRate: decimal.RequireFromString("50.00"), ExperienceYears: 5},
		{ID: "5a1e7c44-0d6b-4c52-8f0e-3b9a2e7d2003", GymID: gyms[2].ID, Name: "Priya Nair", Specialties: []string{"hiit", "weight loss"}, Rating: 4.5, HourlyRate: decimal.RequireFromString("45.00"), ExperienceYears: 3},
		{ID: "5a1e7c44-0d6b-4c52-8f0e-3b9a2e7d2004", GymID: gyms[3].ID, Name: "Sam Okafor", Specialties: []string{"strength", "rehab"}, Rating: 4.8, HourlyRate: decimal.RequireFromString("70.00"), ExperienceYears: 11},
	}
	for _, t := range trainers {
		r.trainers[t.ID] = t
	}
}

// ListGyms implements domain.CatalogRepository.
func (r *InMemoryRepository) ListGyms(ctx context.Context, filter domain.GymFilter) ([]domain.Gym, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Gym, 0, len(r.gyms))
	for _, g := range r.gyms {
		if g.Rating >= filter.MinRating {
			out = append(out, g)
		}
	}
	return out, nil
}

// GetGym implements domain.CatalogRepository.
func (r *InMemoryRepository) GetGym(ctx context.Context, id string) (*domain.Gym, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.gyms[id]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

// ListTrainers implements domain.CatalogRepository.
func (r *InMemoryRepository) ListTrainers(ctx context.Context, filter domain.TrainerFilter) ([]domain.Trainer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specialty := strings.TrimSpace(filter.Specialty)
	out := make([]domain.Trainer, 0, len(r.trainers))
	for _, t := range r.trainers {
		if filter.GymID != "" && t.GymID != filter.GymID {
			continue
		}
		if t.Rating < filter.MinRating {
			continue
		}
		if filter.MaxRate != nil && t.HourlyRate.GreaterThan(*filter.MaxRate) {
			continue
		}
		if specialty != "" && !containsFold(t.Specialties, specialty) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// GetTrainer implements domain.CatalogRepository.
func (r *InMemoryRepository) GetTrainer(ctx context.Context, id string) (*domain.Trainer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.trainers[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func containsFold(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}
