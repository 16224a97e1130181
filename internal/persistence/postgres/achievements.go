package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/wellness/internal/domain"
	"example.com/wellness/pkg/events"
)

// AchievementRepository persists progress counters and unlocks.
type AchievementRepository struct {
	pool *pgxpool.Pool
}

// NewAchievementRepository constructs an AchievementRepository.
func NewAchievementRepository(pool *pgxpool.Pool) *AchievementRepository {
	return &AchievementRepository{pool: pool}
}

// Counters returns every counter of the user.
func (r *AchievementRepository) Counters(ctx context.Context, userID string) (map[string]float64, error) {
	counters := make(map[string]float64)
	err := withUserTx(ctx, r.pool, userID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT counter, value FROM achievement_counters WHERE user_id=$1`, userID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				name  string
				value float64
			)
			if err := rows.Scan(&name, &value); err != nil {
				return err
			}
			counters[name] = value
		}
		return rows.Err()
	})
	return counters, err
}

// Unlocked returns unlock times keyed by achievement code.
func (r *AchievementRepository) Unlocked(ctx context.Context, userID string) (map[string]time.Time, error) {
	unlocked := make(map[string]time.Time)
	err := withUserTx(ctx, r.pool, userID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT code, unlocked_at FROM user_achievements WHERE user_id=$1`, userID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				code string
				at   time.Time
			)
			if err := rows.Scan(&code, &at); err != nil {
				return err
			}
			unlocked[code] = at
		}
		return rows.Err()
	})
	return unlocked, err
}

// ApplyProgress records the event key, bumps every counter and unlocks the catalog
// entries the new values reach, emitting achievement.unlocked through the outbox.
// A replayed event key commits nothing.
func (r *AchievementRepository) ApplyProgress(ctx context.Context, update domain.ProgressUpdate, catalog []domain.AchievementDef) ([]domain.AchievementDef, error) {
	var unlocked []domain.AchievementDef
	err := withUserTx(ctx, r.pool, update.UserID, func(tx pgx.Tx) error {
		if update.EventKey != "" {
			tag, err := tx.Exec(ctx, `INSERT INTO achievement_events (user_id, event_key, applied_at) VALUES ($1, $2, $3)
                ON CONFLICT (user_id, event_key) DO NOTHING`, update.UserID, update.EventKey, update.At)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return nil
			}
		}

		values := make(map[string]float64, len(update.Deltas))
		for _, d := range update.Deltas {
			var value float64
			if err := tx.QueryRow(ctx, `INSERT INTO achievement_counters (user_id, counter, value, updated_at) VALUES ($1, $2, $3, NOW())
                ON CONFLICT (user_id, counter) DO UPDATE SET value = achievement_counters.value + EXCLUDED.value, updated_at = NOW()
                RETURNING value`, update.UserID, d.Counter, d.Delta).Scan(&value); err != nil {
				return err
			}
			values[d.Counter] = value
		}

		for _, def := range catalog {
			if !def.Reached(values) {
				continue
			}
			fresh, err := unlock(ctx, tx, update.UserID, def, update.At)
			if err != nil {
				return err
			}
			if fresh {
				unlocked = append(unlocked, def)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return unlocked, nil
}

func unlock(ctx context.Context, tx pgx.Tx, userID string, def domain.AchievementDef, at time.Time) (bool, error) {
	tag, err := tx.Exec(ctx, `INSERT INTO user_achievements (user_id, code, unlocked_at) VALUES ($1, $2, $3)
        ON CONFLICT (user_id, code) DO NOTHING`, userID, def.Code, at)
	if err != nil || tag.RowsAffected() == 0 {
		return false, err
	}
	if err := insertOutbox(ctx, tx, outboxEvent{
		UserID:        userID,
		AggregateType: "achievement",
		AggregateID:   userID + ":" + def.Code,
		EventType:     events.TypeAchievementUnlocked,
		Payload: events.AchievementUnlocked{
			UserID:     userID,
			Code:       def.Code,
			Title:      def.Title,
			UnlockedAt: at,
		},
	}); err != nil {
		return false, err
	}
	return true, nil
}
