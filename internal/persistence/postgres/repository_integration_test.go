//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/wellness/db/migrations"
	"example.com/wellness/internal/domain"
	"example.com/wellness/internal/workout"
	"example.com/wellness/pkg/events"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pg, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("wellness"),
		postgrescontainer.WithUsername("wellness"),
		postgrescontainer.WithPassword("wellness"),
		postgrescontainer.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, migrations.Up(connStr))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func outboxTypes(t *testing.T, pool *pgxpool.Pool, aggregateID string) []string {
	t.Helper()
	rows, err := pool.Query(context.Background(), `SELECT event_type FROM outbox WHERE aggregate_id=$1 ORDER BY event_id`, aggregateID)
	require.NoError(t, err)
	defer rows.Close()
	var types []string
	for rows.Next() {
		var eventType string
		require.NoError(t, rows.Scan(&eventType))
		types = append(types, eventType)
	}
	require.NoError(t, rows.Err())
	return types
}

func TestLedgerBookingLifecycle(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	ledger := NewLedgerRepository(pool)
	user := uuid.NewString()
	now := time.Now().UTC().Truncate(time.Microsecond)

	topUp, err := ledger.Credit(ctx, domain.Transaction{
		ID: uuid.NewString(), UserID: user, Kind: domain.TransactionTopUp,
		Amount: decimal.RequireFromString("50.00"), Description: "Wallet top-up", CreatedAt: now,
	}, "topup-1")
	require.NoError(t, err)
	require.True(t, topUp.BalanceAfter.Equal(decimal.NewFromInt(50)))

	replay, err := ledger.FindTopUpByIdempotency(ctx, user, "topup-1")
	require.NoError(t, err)
	require.Equal(t, topUp.ID, replay.ID)

	booking := domain.Booking{
		ID: uuid.NewString(), UserID: user, TrainerID: "trainer-1", GymID: "gym-1",
		StartsAt: now.Add(24 * time.Hour), DurationMin: 60, Price: decimal.RequireFromString("45.00"),
		Status: domain.BookingConfirmed, CreatedAt: now, UpdatedAt: now,
	}
	payment, err := ledger.CreateWithPayment(ctx, booking, "book-1")
	require.NoError(t, err)
	require.True(t, payment.BalanceAfter.Equal(decimal.NewFromInt(5)))

	second := booking
	second.ID = uuid.NewString()
	_, err = ledger.CreateWithPayment(ctx, second, "book-2")
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	stored, err := ledger.FindByIdempotency(ctx, user, "book-1")
	require.NoError(t, err)
	require.Equal(t, booking.ID, stored.ID)
	require.True(t, stored.Price.Equal(booking.Price))

	_, err = ledger.CancelWithRefund(ctx, booking, "sick", now.Add(time.Minute))
	require.NoError(t, err)
	_, err = ledger.CancelWithRefund(ctx, booking, "again", now.Add(2*time.Minute))
	require.ErrorIs(t, err, domain.ErrBookingNotCancellable)

	wallet, err := ledger.GetWallet(ctx, user)
	require.NoError(t, err)
	require.True(t, wallet.Balance.Equal(decimal.NewFromInt(50)))

	txns, next, err := ledger.ListTransactions(ctx, user, nil, 2)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	require.NotNil(t, next)
	rest, _, err := ledger.ListTransactions(ctx, user, next, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)

	require.Equal(t, []string{events.TypeBookingCreated, events.TypeBookingStateChanged}, outboxTypes(t, pool, booking.ID))
}

func TestLedgerCompleteDue(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	ledger := NewLedgerRepository(pool)
	user := uuid.NewString()
	now := time.Now().UTC()

	_, err := ledger.Credit(ctx, domain.Transaction{
		ID: uuid.NewString(), UserID: user, Kind: domain.TransactionTopUp,
		Amount: decimal.NewFromInt(100), CreatedAt: now,
	}, "")
	require.NoError(t, err)

	past := domain.Booking{
		ID: uuid.NewString(), UserID: user, TrainerID: "t", GymID: "g",
		StartsAt: now.Add(-2 * time.Hour), DurationMin: 60, Price: decimal.NewFromInt(10),
		Status: domain.BookingConfirmed, CreatedAt: now, UpdatedAt: now,
	}
	future := past
	future.ID = uuid.NewString()
	future.StartsAt = now.Add(time.Hour)
	_, err = ledger.CreateWithPayment(ctx, past, "")
	require.NoError(t, err)
	_, err = ledger.CreateWithPayment(ctx, future, "")
	require.NoError(t, err)

	completed, err := ledger.CompleteDue(ctx, now)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	require.Equal(t, past.ID, completed[0].ID)
	require.Equal(t, domain.BookingCompleted, completed[0].Status)

	listed, _, err := ledger.List(ctx, user, domain.BookingConfirmed, nil, 10)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, future.ID, listed[0].ID)
}

func TestMealsAndUserIsolation(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	meals := NewMealRepository(pool)
	user := uuid.NewString()
	eaten := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	meal := domain.Meal{
		ID: uuid.NewString(), UserID: user, Name: "Oats", MealType: domain.MealBreakfast, EatenAt: eaten,
		Items:  []domain.MealItem{{Name: "Oats", Grams: 80, Macros: domain.Macros{Calories: 300, ProteinG: 10, CarbsG: 54, FatG: 5}}},
		Totals: domain.Macros{Calories: 300, ProteinG: 10, CarbsG: 54, FatG: 5}, Source: domain.SourceManual, CreatedAt: eaten,
	}
	require.NoError(t, meals.Create(ctx, meal, "meal-1"))
	require.ErrorIs(t, meals.Create(ctx, domain.Meal{ID: uuid.NewString(), UserID: user, MealType: domain.MealSnack,
		EatenAt: eaten, Source: domain.SourceManual, CreatedAt: eaten}, "meal-1"), domain.ErrConflict)

	from, to := domain.DayBounds(eaten)
	listed, err := meals.ListBetween(ctx, user, from, to)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, "Oats", listed[0].Items[0].Name)

	other, err := meals.ListBetween(ctx, uuid.NewString(), from, to)
	require.NoError(t, err)
	require.Empty(t, other)

	deleted, err := meals.Delete(ctx, uuid.NewString(), meal.ID)
	require.NoError(t, err)
	require.False(t, deleted)
	deleted, err = meals.Delete(ctx, user, meal.ID)
	require.NoError(t, err)
	require.True(t, deleted)
}

func TestWorkoutOptimisticUpdate(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	repo := NewWorkoutRepository(pool)
	user := uuid.NewString()
	now := time.Now().UTC()

	session, err := workout.New([]workout.Exercise{{Name: "Squat", Sets: 1, Reps: 5}}, now)
	require.NoError(t, err)
	w := domain.Workout{ID: uuid.NewString(), UserID: user, Name: "Legs", Session: *session, Version: 1, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.Create(ctx, w))

	require.NoError(t, w.Session.Finish(now.Add(10*time.Minute)))
	w.CaloriesBurned = 40
	require.NoError(t, repo.Update(ctx, w))
	require.ErrorIs(t, repo.Update(ctx, w), domain.ErrConflict)

	stored, err := repo.Get(ctx, user, w.ID)
	require.NoError(t, err)
	require.Equal(t, 2, stored.Version)
	require.Equal(t, workout.StateCompleted, stored.Session.State)

	done, err := repo.CompletedBetween(ctx, user, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, done, 1)
	require.Equal(t, []string{events.TypeWorkoutCompleted}, outboxTypes(t, pool, w.ID))
}

func TestAchievementsNotificationsProfiles(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	user := uuid.NewString()
	now := time.Now().UTC()

	achievements := NewAchievementRepository(pool)
	update := domain.ProgressUpdate{
		UserID:   user,
		EventKey: "w1:workout.completed",
		Deltas: []domain.CounterDelta{
			{Counter: domain.CounterWorkoutsCompleted, Delta: 1},
			{Counter: domain.CounterCaloriesBurned, Delta: 300},
		},
		At: now,
	}
	unlockedNow, err := achievements.ApplyProgress(ctx, update, domain.AchievementCatalog)
	require.NoError(t, err)
	require.Len(t, unlockedNow, 1)
	require.Equal(t, "first_workout", unlockedNow[0].Code)

	replayed, err := achievements.ApplyProgress(ctx, update, domain.AchievementCatalog)
	require.NoError(t, err)
	require.Empty(t, replayed)

	update.EventKey = "w2:workout.completed"
	again, err := achievements.ApplyProgress(ctx, update, domain.AchievementCatalog)
	require.NoError(t, err)
	require.Empty(t, again)

	counters, err := achievements.Counters(ctx, user)
	require.NoError(t, err)
	require.Equal(t, 2.0, counters[domain.CounterWorkoutsCompleted])
	require.Equal(t, 600.0, counters[domain.CounterCaloriesBurned])

	unlocked, err := achievements.Unlocked(ctx, user)
	require.NoError(t, err)
	require.Contains(t, unlocked, "first_workout")
	require.Equal(t, []string{events.TypeAchievementUnlocked}, outboxTypes(t, pool, user+":first_workout"))

	notifications := NewNotificationRepository(pool)
	n := domain.Notification{ID: uuid.NewString(), UserID: user, Kind: domain.NotificationAchievement, Title: "t", Body: "b", CreatedAt: now}
	require.NoError(t, notifications.Create(ctx, n))
	ok, err := notifications.MarkRead(ctx, user, n.ID, now)
	require.NoError(t, err)
	require.True(t, ok)
	unread, err := notifications.List(ctx, user, true, 10)
	require.NoError(t, err)
	require.Empty(t, unread)

	profiles := NewProfileRepository(pool)
	missing, err := profiles.Get(ctx, user)
	require.NoError(t, err)
	require.Nil(t, missing)
	require.NoError(t, profiles.Upsert(ctx, domain.Profile{UserID: user, DisplayName: "Sam", Goal: domain.GoalLose, Targets: domain.DefaultTargets, UpdatedAt: now}))
	stored, err := profiles.Get(ctx, user)
	require.NoError(t, err)
	require.Equal(t, domain.GoalLose, stored.Goal)

	stats := NewBodyStatsRepository(pool)
	require.NoError(t, stats.Create(ctx, domain.BodyStats{ID: uuid.NewString(), UserID: user, WeightKg: 80, HeightCm: 180, BMI: 24.7, RecordedAt: now}))
	latest, err := stats.Latest(ctx, user)
	require.NoError(t, err)
	require.Equal(t, "normal", latest.BMICategory)
}
