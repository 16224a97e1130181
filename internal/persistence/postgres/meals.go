package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/wellness/internal/domain"
	"example.com/wellness/internal/observability"
	"example.com/wellness/pkg/events"
)

// MealRepository persists meals and emits meal.logged.
type MealRepository struct {
	pool *pgxpool.Pool
}

// NewMealRepository constructs a MealRepository.
func NewMealRepository(pool *pgxpool.Pool) *MealRepository {
	return &MealRepository{pool: pool}
}

const mealColumns = `meal_id, user_id, name, meal_type, eaten_at, items, calories, protein_g, carbs_g, fat_g, photo_url, source, created_at`

func scanMeal(row pgx.Row) (domain.Meal, error) {
	var (
		m        domain.Meal
		items    []byte
		photoURL *string
	)
	if err := row.Scan(&m.ID, &m.UserID, &m.Name, &m.MealType, &m.EatenAt, &items,
		&m.Totals.Calories, &m.Totals.ProteinG, &m.Totals.CarbsG, &m.Totals.FatG,
		&photoURL, &m.Source, &m.CreatedAt); err != nil {
		return domain.Meal{}, err
	}
	if err := json.Unmarshal(items, &m.Items); err != nil {
		return domain.Meal{}, err
	}
	m.PhotoURL = stringOrEmpty(photoURL)
	return m, nil
}

// FindByIdempotency returns the meal created with idempotencyKey, if any.
func (r *MealRepository) FindByIdempotency(ctx context.Context, userID, idempotencyKey string) (*domain.Meal, error) {
	if idempotencyKey == "" {
		return nil, nil
	}
	var found *domain.Meal
	err := withUserTx(ctx, r.pool, userID, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+mealColumns+` FROM meals WHERE user_id=$1 AND idempotency_key=$2`, userID, idempotencyKey)
		m, err := scanMeal(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = &m
		return nil
	})
	return found, err
}

// Create stores the meal and its meal.logged event.
func (r *MealRepository) Create(ctx context.Context, meal domain.Meal, idempotencyKey string) error {
	items, err := json.Marshal(meal.Items)
	if err != nil {
		return err
	}
	err = withUserTx(ctx, r.pool, meal.UserID, func(tx pgx.Tx) error {
		const insert = `INSERT INTO meals (meal_id, user_id, name, meal_type, eaten_at, items, calories, protein_g, carbs_g, fat_g, photo_url, source, idempotency_key, created_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`
		if _, err := tx.Exec(ctx, insert,
			meal.ID,
			meal.UserID,
			meal.Name,
			string(meal.MealType),
			meal.EatenAt,
			items,
			meal.Totals.Calories,
			meal.Totals.ProteinG,
			meal.Totals.CarbsG,
			meal.Totals.FatG,
			nullIfEmpty(meal.PhotoURL),
			string(meal.Source),
			nullIfEmpty(idempotencyKey),
			meal.CreatedAt,
		); err != nil {
			if isUniqueViolation(err) {
				return domain.ErrConflict
			}
			return err
		}
		return insertOutbox(ctx, tx, outboxEvent{
			UserID:        meal.UserID,
			AggregateType: "meal",
			AggregateID:   meal.ID,
			EventType:     events.TypeMealLogged,
			Payload: events.MealLogged{
				MealID:   meal.ID,
				UserID:   meal.UserID,
				MealType: string(meal.MealType),
				Calories: meal.Totals.Calories,
				ProteinG: meal.Totals.ProteinG,
				CarbsG:   meal.Totals.CarbsG,
				FatG:     meal.Totals.FatG,
				Source:   string(meal.Source),
				EatenAt:  meal.EatenAt,
			},
		})
	})
	if err != nil {
		return err
	}
	observability.RecordPersisted("meal", meal.CreatedAt)
	return nil
}

// ListBetween returns meals eaten in [from, to), oldest first.
func (r *MealRepository) ListBetween(ctx context.Context, userID string, from, to time.Time) ([]domain.Meal, error) {
	meals := make([]domain.Meal, 0)
	err := withUserTx(ctx, r.pool, userID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT `+mealColumns+` FROM meals
            WHERE user_id=$1 AND eaten_at >= $2 AND eaten_at < $3 ORDER BY eaten_at, meal_id`, userID, from, to)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			m, err := scanMeal(rows)
			if err != nil {
				return err
			}
			meals = append(meals, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return meals, nil
}

// Delete removes a meal; it reports whether a row was deleted.
func (r *MealRepository) Delete(ctx context.Context, userID, id string) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	var deleted bool
	err := withUserTx(ctx, r.pool, userID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM meals WHERE user_id=$1 AND meal_id=$2`, userID, id)
		if err != nil {
			return err
		}
		deleted = tag.RowsAffected() > 0
		return nil
	})
	return deleted, err
}
