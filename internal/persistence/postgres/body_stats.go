package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/wellness/internal/calc"
	"example.com/wellness/internal/domain"
	"example.com/wellness/internal/observability"
	"example.com/wellness/pkg/events"
)

// BodyStatsRepository persists body measurements.
type BodyStatsRepository struct {
	pool *pgxpool.Pool
}

// NewBodyStatsRepository constructs a BodyStatsRepository.
func NewBodyStatsRepository(pool *pgxpool.Pool) *BodyStatsRepository {
	return &BodyStatsRepository{pool: pool}
}

const bodyStatsColumns = `stats_id, user_id, weight_kg, height_cm, body_fat_pct, bmi, recorded_at`

func scanBodyStats(row pgx.Row) (domain.BodyStats, error) {
	var s domain.BodyStats
	if err := row.Scan(&s.ID, &s.UserID, &s.WeightKg, &s.HeightCm, &s.BodyFatPct, &s.BMI, &s.RecordedAt); err != nil {
		return domain.BodyStats{}, err
	}
	s.BMICategory = calc.BMICategory(s.BMI)
	return s, nil
}

// Create stores a measurement and its body_stats.recorded event.
func (r *BodyStatsRepository) Create(ctx context.Context, stats domain.BodyStats) error {
	err := withUserTx(ctx, r.pool, stats.UserID, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO body_stats (stats_id, user_id, weight_kg, height_cm, body_fat_pct, bmi, recorded_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			stats.ID, stats.UserID, stats.WeightKg, stats.HeightCm, stats.BodyFatPct, stats.BMI, stats.RecordedAt); err != nil {
			return err
		}
		return insertOutbox(ctx, tx, outboxEvent{
			UserID:        stats.UserID,
			AggregateType: "body_stats",
			AggregateID:   stats.ID,
			EventType:     events.TypeBodyStatsRecorded,
			Payload: events.BodyStatsRecorded{
				StatsID:    stats.ID,
				UserID:     stats.UserID,
				WeightKg:   stats.WeightKg,
				HeightCm:   stats.HeightCm,
				BMI:        stats.BMI,
				RecordedAt: stats.RecordedAt,
			},
		})
	})
	if err != nil {
		return err
	}
	observability.RecordPersisted("body_stats", stats.RecordedAt)
	return nil
}

// List returns up to limit measurements, newest first.
func (r *BodyStatsRepository) List(ctx context.Context, userID string, limit int) ([]domain.BodyStats, error) {
	results := make([]domain.BodyStats, 0, limit)
	err := withUserTx(ctx, r.pool, userID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT `+bodyStatsColumns+` FROM body_stats
            WHERE user_id=$1 ORDER BY recorded_at DESC, stats_id DESC LIMIT $2`, userID, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			s, err := scanBodyStats(rows)
			if err != nil {
				return err
			}
			results = append(results, s)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Latest returns the newest measurement or nil.
func (r *BodyStatsRepository) Latest(ctx context.Context, userID string) (*domain.BodyStats, error) {
	var latest *domain.BodyStats
	err := withUserTx(ctx, r.pool, userID, func(tx pgx.Tx) error {
		s, err := scanBodyStats(tx.QueryRow(ctx, `SELECT `+bodyStatsColumns+` FROM body_stats
            WHERE user_id=$1 ORDER BY recorded_at DESC, stats_id DESC LIMIT 1`, userID))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		latest = &s
		return nil
	})
	return latest, err
}
