package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Goal is the user's weight objective.
type Goal string

const (
	GoalLose     Goal = "lose"
	GoalMaintain Goal = "maintain"
	GoalGain     Goal = "gain"
)

// Targets are the daily nutrition goals.
type Targets struct {
	Calories float64 `json:"calories"`
	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	FatG     float64 `json:"fat_g"`
	WaterMl  float64 `json:"water_ml"`
}

// DefaultTargets apply to users without a stored profile.
var DefaultTargets = Targets{Calories: 2000, ProteinG: 150, CarbsG: 250, FatG: 70, WaterMl: 2000}

// Profile holds user preferences.
type Profile struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Goal        Goal      `json:"goal"`
	Targets     Targets   `json:"targets"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProfileRepository persists profiles.
type ProfileRepository interface {
	Get(ctx context.Context, userID string) (*Profile, error)
	Upsert(ctx context.Context, profile Profile) error
}

// ProfileService manages profiles.
type ProfileService struct {
	repo ProfileRepository
	opts options
}

// NewProfileService constructs a ProfileService.
func NewProfileService(repo ProfileRepository, opts ...Option) *ProfileService {
	return &ProfileService{repo: repo, opts: buildOptions(opts)}
}

// GetProfile returns the stored profile or the defaults.
func (s *ProfileService) GetProfile(ctx context.Context, userID string) (Profile, error) {
	profile, err := s.repo.Get(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	if profile == nil {
		return Profile{UserID: userID, Goal: GoalMaintain, Targets: DefaultTargets}, nil
	}
	return *profile, nil
}

// UpdateProfileInput is a partial update; nil fields keep their value.
type UpdateProfileInput struct {
	DisplayName *string
	Goal        *Goal
	Targets     *Targets
}

// UpdateProfile merges the input into the current profile.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (Profile, error) {
	profile, err := s.GetProfile(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	if in.DisplayName != nil {
		name := strings.TrimSpace(*in.DisplayName)
		if len(name) > 80 {
			return Profile{}, fmt.Errorf("%w: display_name must be at most 80 characters", ErrValidation)
		}
		profile.DisplayName = name
	}
	if in.Goal != nil {
		switch *in.Goal {
		case GoalLose, GoalMaintain, GoalGain:
			profile.Goal = *in.Goal
		default:
			return Profile{}, fmt.Errorf("%w: goal must be lose, maintain or gain", ErrValidation)
		}
	}
	if in.Targets != nil {
		t := *in.Targets
		if t.Calories < 0 || t.ProteinG < 0 || t.CarbsG < 0 || t.FatG < 0 || t.WaterMl < 0 {
			return Profile{}, fmt.Errorf("%w: targets must not be negative", ErrValidation)
		}
		profile.Targets = t
	}
	profile.UpdatedAt = s.opts.now()
	if err := s.repo.Upsert(ctx, profile); err != nil {
		return Profile{}, err
	}
	return profile, nil
}
