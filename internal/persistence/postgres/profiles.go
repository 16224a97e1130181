package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/wellness/internal/domain"
)

// ProfileRepository persists user profiles.
type ProfileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository constructs a ProfileRepository.
func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

// Get returns the stored profile or nil.
func (r *ProfileRepository) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	var found *domain.Profile
	err := withUserTx(ctx, r.pool, userID, func(tx pgx.Tx) error {
		var p domain.Profile
		err := tx.QueryRow(ctx, `SELECT user_id, display_name, goal, target_calories, target_protein_g, target_carbs_g, target_fat_g, target_water_ml, updated_at
            FROM profiles WHERE user_id=$1`, userID).Scan(
			&p.UserID, &p.DisplayName, &p.Goal,
			&p.Targets.Calories, &p.Targets.ProteinG, &p.Targets.CarbsG, &p.Targets.FatG, &p.Targets.WaterMl,
			&p.UpdatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = &p
		return nil
	})
	return found, err
}

// Upsert writes the full profile.
func (r *ProfileRepository) Upsert(ctx context.Context, p domain.Profile) error {
	return withUserTx(ctx, r.pool, p.UserID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO profiles (user_id, display_name, goal, target_calories, target_protein_g, target_carbs_g, target_fat_g, target_water_ml, updated_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
            ON CONFLICT (user_id) DO UPDATE SET display_name=EXCLUDED.display_name, goal=EXCLUDED.goal,
                target_calories=EXCLUDED.target_calories, target_protein_g=EXCLUDED.target_protein_g,
                target_carbs_g=EXCLUDED.target_carbs_g, target_fat_g=EXCLUDED.target_fat_g,
                target_water_ml=EXCLUDED.target_water_ml, updated_at=EXCLUDED.updated_at`,
			p.UserID, p.DisplayName, string(p.Goal),
			p.Targets.Calories, p.Targets.ProteinG, p.Targets.CarbsG, p.Targets.FatG, p.Targets.WaterMl,
			p.UpdatedAt)
		return err
	})
}
