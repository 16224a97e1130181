package api

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"example.com/wellness/internal/domain"
	"example.com/wellness/internal/workout"
)

type fakeLedger struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	bookings map[string]domain.Booking
	keys     map[string]string
	topups   map[string]domain.Transaction
	txns     []domain.Transaction
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		balances: map[string]decimal.Decimal{},
		bookings: map[string]domain.Booking{},
		keys:     map[string]string{},
		topups:   map[string]domain.Transaction{},
	}
}

func (f *fakeLedger) record(userID string, kind domain.TransactionKind, amount decimal.Decimal, ref string, at time.Time) domain.Transaction {
	txn := domain.Transaction{
		ID:           ref + ":" + string(kind),
		UserID:       userID,
		Kind:         kind,
		Amount:       amount,
		BalanceAfter: f.balances[userID],
		Reference:    ref,
		CreatedAt:    at,
	}
	f.txns = append(f.txns, txn)
	return txn
}

func (f *fakeLedger) FindByIdempotency(_ context.Context, userID, key string) (*domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.keys[userID+"|"+key]; ok && key != "" {
		b := f.bookings[id]
		return &b, nil
	}
	return nil, nil
}

func (f *fakeLedger) CreateWithPayment(_ context.Context, b domain.Booking, key string) (*domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balances[b.UserID].LessThan(b.Price) {
		return nil, domain.ErrInsufficientFunds
	}
	f.balances[b.UserID] = f.balances[b.UserID].Sub(b.Price)
	f.bookings[b.ID] = b
	if key != "" {
		f.keys[b.UserID+"|"+key] = b.ID
	}
	txn := f.record(b.UserID, domain.TransactionPayment, b.Price, b.ID, b.CreatedAt)
	return &txn, nil
}

func (f *fakeLedger) Get(_ context.Context, userID, id string) (*domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok || b.UserID != userID {
		return nil, nil
	}
	return &b, nil
}

func (f *fakeLedger) List(_ context.Context, userID string, status domain.BookingStatus, _ *domain.Cursor, limit int) ([]domain.Booking, *domain.Cursor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Booking
	for _, b := range f.bookings {
		if b.UserID == userID && (status == "" || b.Status == status) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.After(out[j].StartsAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil, nil
}

func (f *fakeLedger) CancelWithRefund(_ context.Context, b domain.Booking, _ string, at time.Time) (*domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := f.bookings[b.ID]
	if stored.Status != domain.BookingConfirmed {
		return nil, domain.ErrBookingNotCancellable
	}
	stored.Status = domain.BookingCancelled
	f.bookings[b.ID] = stored
	f.balances[b.UserID] = f.balances[b.UserID].Add(b.Price)
	txn := f.record(b.UserID, domain.TransactionRefund, b.Price, b.ID, at)
	return &txn, nil
}

func (f *fakeLedger) CompleteDue(context.Context, time.Time) ([]domain.Booking, error) {
	return nil, nil
}

func (f *fakeLedger) GetWallet(_ context.Context, userID string) (domain.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return domain.Wallet{UserID: userID, Balance: f.balances[userID]}, nil
}

func (f *fakeLedger) FindTopUpByIdempotency(_ context.Context, userID, key string) (*domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if txn, ok := f.topups[userID+"|"+key]; ok && key != "" {
		return &txn, nil
	}
	return nil, nil
}

func (f *fakeLedger) Credit(_ context.Context, txn domain.Transaction, key string) (*domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[txn.UserID] = f.balances[txn.UserID].Add(txn.Amount)
	txn.BalanceAfter = f.balances[txn.UserID]
	f.txns = append(f.txns, txn)
	if key != "" {
		f.topups[txn.UserID+"|"+key] = txn
	}
	return &txn, nil
}

func (f *fakeLedger) ListTransactions(_ context.Context, userID string, _ *domain.Cursor, limit int) ([]domain.Transaction, *domain.Cursor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Transaction
	for i := len(f.txns) - 1; i >= 0 && len(out) < limit; i-- {
		if f.txns[i].UserID == userID {
			out = append(out, f.txns[i])
		}
	}
	return out, nil, nil
}

type fakeMeals struct {
	mu    sync.Mutex
	meals []domain.Meal
}

func (f *fakeMeals) FindByIdempotency(context.Context, string, string) (*domain.Meal, error) {
	return nil, nil
}

func (f *fakeMeals) Create(_ context.Context, meal domain.Meal, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meals = append(f.meals, meal)
	return nil
}

func (f *fakeMeals) ListBetween(_ context.Context, userID string, from, to time.Time) ([]domain.Meal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Meal
	for _, m := range f.meals {
		if m.UserID == userID && !m.EatenAt.Before(from) && m.EatenAt.Before(to) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMeals) Delete(_ context.Context, userID, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, m := range f.meals {
		if m.ID == id && m.UserID == userID {
			f.meals = append(f.meals[:i], f.meals[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type fakeWorkouts struct {
	mu       sync.Mutex
	workouts map[string]domain.Workout
}

func (f *fakeWorkouts) Create(_ context.Context, w domain.Workout) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.workouts[w.ID] = w
	return nil
}

func (f *fakeWorkouts) Get(_ context.Context, userID, id string) (*domain.Workout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.workouts[id]
	if !ok || w.UserID != userID {
		return nil, nil
	}
	w.Session.Sets = append([]workout.SetLog(nil), w.Session.Sets...)
	return &w, nil
}

func (f *fakeWorkouts) Update(_ context.Context, w domain.Workout) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.workouts[w.ID].Version != w.Version {
		return domain.ErrConflict
	}
	w.Version++
	f.workouts[w.ID] = w
	return nil
}

func (f *fakeWorkouts) List(_ context.Context, userID string, _ *domain.Cursor, _ int) ([]domain.Workout, *domain.Cursor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Workout
	for _, w := range f.workouts {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	return out, nil, nil
}

func (f *fakeWorkouts) CompletedBetween(context.Context, string, time.Time, time.Time) ([]domain.Workout, error) {
	return nil, nil
}

type fakeBodyStats struct{}

func (fakeBodyStats) Create(context.Context, domain.BodyStats) error { return nil }
func (fakeBodyStats) List(context.Context, string, int) ([]domain.BodyStats, error) {
	return nil, nil
}
func (fakeBodyStats) Latest(context.Context, string) (*domain.BodyStats, error) { return nil, nil }

type fakeProfiles struct{}

func (fakeProfiles) Get(context.Context, string) (*domain.Profile, error) { return nil, nil }
func (fakeProfiles) Upsert(context.Context, domain.Profile) error         { return nil }

type fakeNotifications struct{}

func (fakeNotifications) Create(context.Context, domain.Notification) error { return nil }
func (fakeNotifications) List(context.Context, string, bool, int) ([]domain.Notification, error) {
	return nil, nil
}
func (fakeNotifications) MarkRead(context.Context, string, string, time.Time) (bool, error) {
	return false, nil
}

type fakeAchievements struct{}

func (fakeAchievements) Counters(context.Context, string) (map[string]float64, error) {
	return map[string]float64{domain.CounterMealsLogged: 3}, nil
}
func (fakeAchievements) Unlocked(context.Context, string) (map[string]time.Time, error) {
	return map[string]time.Time{}, nil
}
func (fakeAchievements) ApplyProgress(context.Context, domain.ProgressUpdate, []domain.AchievementDef) ([]domain.AchievementDef, error) {
	return nil, nil
}

type fakeGenerator struct {
	text string
	err  error
}

func (g fakeGenerator) GenerateText(context.Context, []domain.ChatMessage, string) (string, error) {
	return g.text, g.err
}

type fakeRecognizer struct {
	foods []domain.RecognizedFood
}

func (r fakeRecognizer) RecognizeFoods(context.Context, []byte, string) ([]domain.RecognizedFood, error) {
	return r.foods, nil
}

type fakeFoods map[string]domain.Macros

func (f fakeFoods) LookupFood(_ context.Context, query string) (*domain.FoodNutrients, error) {
	per100, ok := f[query]
	if !ok {
		return nil, domain.ErrFoodNotFound
	}
	return &domain.FoodNutrients{Query: query, Description: query, Per100g: per100}, nil
}

var errGeneratorDown = errors.New("model overloaded")
