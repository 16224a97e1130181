package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"example.com/wellness/internal/calc"
)

// BodyStats is one body measurement.
type BodyStats struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	WeightKg    float64   `json:"weight_kg"`
	HeightCm    float64   `json:"height_cm"`
	BodyFatPct  *float64  `json:"body_fat_pct,omitempty"`
	BMI         float64   `json:"bmi"`
	BMICategory string    `json:"bmi_category"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// BodyStatsRepository persists measurements.
type BodyStatsRepository interface {
	Create(ctx context.Context, stats BodyStats) error
	List(ctx context.Context, userID string, limit int) ([]BodyStats, error)
	Latest(ctx context.Context, userID string) (*BodyStats, error)
}

// RecordBodyStatsInput captures the payload from the API layer.
type RecordBodyStatsInput struct {
	UserID     string
	WeightKg   float64
	HeightCm   float64
	BodyFatPct *float64
	RecordedAt time.Time
}

// BodyStatsService records measurements and derives BMI.
type BodyStatsService struct {
	repo BodyStatsRepository
	opts options
}

// NewBodyStatsService constructs a BodyStatsService.
func NewBodyStatsService(repo BodyStatsRepository, opts ...Option) *BodyStatsService {
	return &BodyStatsService{repo: repo, opts: buildOptions(opts)}
}

// RecordBodyStats stores a measurement.
func (s *BodyStatsService) RecordBodyStats(ctx context.Context, in RecordBodyStatsInput) (*BodyStats, error) {
	if in.WeightKg > 500 || in.HeightCm > 300 {
		return nil, fmt.Errorf("%w: measurement out of range", ErrValidation)
	}
	bmi, err := calc.BMI(in.WeightKg, in.HeightCm)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if in.BodyFatPct != nil && (*in.BodyFatPct < 0 || *in.BodyFatPct > 100) {
		return nil, fmt.Errorf("%w: body_fat_pct must be between 0 and 100", ErrValidation)
	}
	recordedAt := in.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = s.opts.now()
	}
	stats := BodyStats{
		ID:          uuid.NewString(),
		UserID:      in.UserID,
		WeightKg:    in.WeightKg,
		HeightCm:    in.HeightCm,
		BodyFatPct:  in.BodyFatPct,
		BMI:         bmi,
		BMICategory: calc.BMICategory(bmi),
		RecordedAt:  recordedAt.UTC(),
	}
	if err := s.repo.Create(ctx, stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// ListBodyStats returns measurements, newest first.
func (s *BodyStatsService) ListBodyStats(ctx context.Context, userID string, limit int) ([]BodyStats, error) {
	return s.repo.List(ctx, userID, ClampLimit(limit, 30, 365))
}

// LatestBodyStats returns the newest measurement or nil.
func (s *BodyStatsService) LatestBodyStats(ctx context.Context, userID string) (*BodyStats, error) {
	return s.repo.Latest(ctx, userID)
}
