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
	"example.com/wellness/internal/workout"
	"example.com/wellness/pkg/events"
)

// WorkoutRepository persists workout sessions with optimistic locking on version.
type WorkoutRepository struct {
	pool *pgxpool.Pool
}

// NewWorkoutRepository constructs a WorkoutRepository.
func NewWorkoutRepository(pool *pgxpool.Pool) *WorkoutRepository {
	return &WorkoutRepository{pool: pool}
}

const workoutColumns = `workout_id, user_id, name, session, calories_burned, version, created_at, updated_at`

func scanWorkout(row pgx.Row) (domain.Workout, error) {
	var (
		w       domain.Workout
		session []byte
	)
	if err := row.Scan(&w.ID, &w.UserID, &w.Name, &session, &w.CaloriesBurned, &w.Version, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return domain.Workout{}, err
	}
	if err := json.Unmarshal(session, &w.Session); err != nil {
		return domain.Workout{}, err
	}
	return w, nil
}

// Create stores a new workout.
func (r *WorkoutRepository) Create(ctx context.Context, w domain.Workout) error {
	session, err := json.Marshal(w.Session)
	if err != nil {
		return err
	}
	err = withUserTx(ctx, r.pool, w.UserID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO workouts (workout_id, user_id, name, state, session, calories_burned, version, ended_at, created_at, updated_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			w.ID, w.UserID, w.Name, string(w.Session.State), session, w.CaloriesBurned, w.Version, w.Session.EndedAt, w.CreatedAt, w.UpdatedAt)
		return err
	})
	if err != nil {
		return err
	}
	observability.RecordPersisted("workout", w.UpdatedAt)
	return nil
}

// Get retrieves one of the user's workouts.
func (r *WorkoutRepository) Get(ctx context.Context, userID, id string) (*domain.Workout, error) {
	if !validID(id) {
		return nil, nil
	}
	var found *domain.Workout
	err := withUserTx(ctx, r.pool, userID, func(tx pgx.Tx) error {
		w, err := scanWorkout(tx.QueryRow(ctx, `SELECT `+workoutColumns+` FROM workouts WHERE user_id=$1 AND workout_id=$2`, userID, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = &w
		return nil
	})
	return found, err
}

// Update writes w when the stored version still equals w.Version. Reaching the completed
// state records workout.completed in the same transaction.
func (r *WorkoutRepository) Update(ctx context.Context, w domain.Workout) error {
	session, err := json.Marshal(w.Session)
	if err != nil {
		return err
	}
	err = withUserTx(ctx, r.pool, w.UserID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE workouts SET state=$4, session=$5, calories_burned=$6, ended_at=$7, updated_at=$8, version=version+1
            WHERE user_id=$1 AND workout_id=$2 AND version=$3`,
			w.UserID, w.ID, w.Version, string(w.Session.State), session, w.CaloriesBurned, w.Session.EndedAt, w.UpdatedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrConflict
		}
		if w.Session.State != workout.StateCompleted {
			return nil
		}
		completedAt := w.UpdatedAt
		if w.Session.EndedAt != nil {
			completedAt = *w.Session.EndedAt
		}
		return insertOutbox(ctx, tx, outboxEvent{
			UserID:        w.UserID,
			AggregateType: "workout",
			AggregateID:   w.ID,
			EventType:     events.TypeWorkoutCompleted,
			Payload: events.WorkoutCompleted{
				WorkoutID:      w.ID,
				UserID:         w.UserID,
				Name:           w.Name,
				SetsCompleted:  len(w.Session.Sets),
				DurationMin:    int(w.Session.Duration(completedAt).Minutes()),
				CaloriesBurned: w.CaloriesBurned,
				CompletedAt:    completedAt,
			},
		})
	})
	if err != nil {
		return err
	}
	observability.RecordPersisted("workout", w.UpdatedAt)
	return nil
}

// List pages through workouts, newest first.
func (r *WorkoutRepository) List(ctx context.Context, userID string, cursor *domain.Cursor, limit int) ([]domain.Workout, *domain.Cursor, error) {
	if err := checkCursor(cursor); err != nil {
		return nil, nil, err
	}
	args := []interface{}{userID, limit}
	query := `SELECT ` + workoutColumns + ` FROM workouts WHERE user_id=$1`
	if cursor != nil {
		query += ` AND (created_at, workout_id) < ($3, $4)`
		args = append(args, cursor.At, cursor.ID)
	}
	query += ` ORDER BY created_at DESC, workout_id DESC LIMIT $2`

	results := make([]domain.Workout, 0, limit)
	if err := r.query(ctx, userID, &results, query, args...); err != nil {
		return nil, nil, err
	}

	var next *domain.Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		next = &domain.Cursor{At: last.CreatedAt, ID: last.ID}
	}
	return results, next, nil
}

// CompletedBetween returns workouts completed in [from, to).
func (r *WorkoutRepository) CompletedBetween(ctx context.Context, userID string, from, to time.Time) ([]domain.Workout, error) {
	results := make([]domain.Workout, 0)
	err := r.query(ctx, userID, &results, `SELECT `+workoutColumns+` FROM workouts
        WHERE user_id=$1 AND state='completed' AND ended_at >= $2 AND ended_at < $3 ORDER BY ended_at`, userID, from, to)
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (r *WorkoutRepository) query(ctx context.Context, userID string, out *[]domain.Workout, query string, args ...interface{}) error {
	return withUserTx(ctx, r.pool, userID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			w, err := scanWorkout(rows)
			if err != nil {
				return err
			}
			*out = append(*out, w)
		}
		return rows.Err()
	})
}
