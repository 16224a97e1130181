package domain

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var testNow = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

func fixedClock() Option {
	return WithClock(func() time.Time { return testNow })
}

type fakeCatalog struct {
	gyms     []Gym
	trainers []Trainer
}

func (f *fakeCatalog) ListGyms(_ context.Context, filter GymFilter) ([]Gym, error) {
	out := make([]Gym, 0, len(f.gyms))
	for _, g := range f.gyms {
		if g.Rating >= filter.MinRating {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeCatalog) GetGym(_ context.Context, id string) (*Gym, error) {
	for _, g := range f.gyms {
		if g.ID == id {
			return &g, nil
		}
	}
	return nil, nil
}

func (f *fakeCatalog) ListTrainers(_ context.Context, filter TrainerFilter) ([]Trainer, error) {
	out := make([]Trainer, 0, len(f.trainers))
	for _, t := range f.trainers {
		if filter.GymID != "" && t.GymID != filter.GymID {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeCatalog) GetTrainer(_ context.Context, id string) (*Trainer, error) {
	for _, t := range f.trainers {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, nil
}

// fakeLedger implements both BookingRepository and WalletRepository over one balance map.
type fakeLedger struct {
	mu           sync.Mutex
	balances     map[string]decimal.Decimal
	bookings     map[string]Booking
	idempotency  map[string]string
	transactions []Transaction
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		balances:    map[string]decimal.Decimal{},
		bookings:    map[string]Booking{},
		idempotency: map[string]string{},
	}
}

func (f *fakeLedger) apply(userID string, kind TransactionKind, amount decimal.Decimal, ref string, at time.Time) Transaction {
	txn := Transaction{ID: uuid.NewString(), UserID: userID, Kind: kind, Amount: amount, Reference: ref, CreatedAt: at}
	f.balances[userID] = f.balances[userID].Add(txn.Signed())
	txn.BalanceAfter = f.balances[userID]
	f.transactions = append(f.transactions, txn)
	return txn
}

func (f *fakeLedger) FindByIdempotency(_ context.Context, userID, key string) (*Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.idempotency["booking:"+userID+":"+key]; ok && key != "" {
		b := f.bookings[id]
		return &b, nil
	}
	return nil, nil
}

func (f *fakeLedger) CreateWithPayment(_ context.Context, b Booking, key string) (*Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balances[b.UserID].LessThan(b.Price) {
		return nil, ErrInsufficientFunds
	}
	f.bookings[b.ID] = b
	if key != "" {
		f.idempotency["booking:"+b.UserID+":"+key] = b.ID
	}
	txn := f.apply(b.UserID, TransactionPayment, b.Price, b.ID, b.CreatedAt)
	return &txn, nil
}

func (f *fakeLedger) Get(_ context.Context, userID, id string) (*Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok || b.UserID != userID {
		return nil, nil
	}
	return &b, nil
}

func (f *fakeLedger) List(_ context.Context, userID string, status BookingStatus, _ *Cursor, limit int) ([]Booking, *Cursor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Booking
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

func (f *fakeLedger) CancelWithRefund(_ context.Context, b Booking, _ string, at time.Time) (*Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := f.bookings[b.ID]
	if stored.Status != BookingConfirmed {
		return nil, ErrBookingNotCancellable
	}
	stored.Status = BookingCancelled
	stored.UpdatedAt = at
	f.bookings[b.ID] = stored
	txn := f.apply(b.UserID, TransactionRefund, stored.Price, b.ID, at)
	return &txn, nil
}

func (f *fakeLedger) CompleteDue(_ context.Context, now time.Time) ([]Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Booking
	for id, b := range f.bookings {
		if b.Status == BookingConfirmed && !b.EndsAt().After(now) {
			b.Status = BookingCompleted
			f.bookings[id] = b
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeLedger) GetWallet(_ context.Context, userID string) (Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Wallet{UserID: userID, Balance: f.balances[userID]}, nil
}

func (f *fakeLedger) FindTopUpByIdempotency(_ context.Context, userID, key string) (*Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.idempotency["topup:"+userID+":"+key]
	if !ok || key == "" {
		return nil, nil
	}
	for _, txn := range f.transactions {
		if txn.ID == id {
			return &txn, nil
		}
	}
	return nil, nil
}

func (f *fakeLedger) Credit(_ context.Context, txn Transaction, key string) (*Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[txn.UserID] = f.balances[txn.UserID].Add(txn.Amount)
	txn.BalanceAfter = f.balances[txn.UserID]
	f.transactions = append(f.transactions, txn)
	if key != "" {
		f.idempotency["topup:"+txn.UserID+":"+key] = txn.ID
	}
	return &txn, nil
}

func (f *fakeLedger) ListTransactions(_ context.Context, userID string, _ *Cursor, limit int) ([]Transaction, *Cursor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Transaction
	for i := len(f.transactions) - 1; i >= 0 && len(out) < limit; i-- {
		if f.transactions[i].UserID == userID {
			out = append(out, f.transactions[i])
		}
	}
	return out, nil, nil
}

type fakeMeals struct {
	meals       []Meal
	idempotency map[string]string
}

func (f *fakeMeals) FindByIdempotency(_ context.Context, userID, key string) (*Meal, error) {
	id, ok := f.idempotency[userID+":"+key]
	if !ok || key == "" {
		return nil, nil
	}
	for _, m := range f.meals {
		if m.ID == id {
			return &m, nil
		}
	}
	return nil, nil
}

func (f *fakeMeals) Create(_ context.Context, meal Meal, key string) error {
	f.meals = append(f.meals, meal)
	if key != "" {
		if f.idempotency == nil {
			f.idempotency = map[string]string{}
		}
		f.idempotency[meal.UserID+":"+key] = meal.ID
	}
	return nil
}

func (f *fakeMeals) ListBetween(_ context.Context, userID string, from, to time.Time) ([]Meal, error) {
	var out []Meal
	for _, m := range f.meals {
		if m.UserID == userID && !m.EatenAt.Before(from) && m.EatenAt.Before(to) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMeals) Delete(_ context.Context, userID, id string) (bool, error) {
	for i, m := range f.meals {
		if m.ID == id && m.UserID == userID {
			f.meals = append(f.meals[:i], f.meals[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type fakeWorkouts struct {
	items map[string]Workout
}

func newFakeWorkouts() *fakeWorkouts {
	return &fakeWorkouts{items: map[string]Workout{}}
}

func (f *fakeWorkouts) Create(_ context.Context, w Workout) error {
	f.items[w.ID] = w
	return nil
}

func (f *fakeWorkouts) Get(_ context.Context, userID, id string) (*Workout, error) {
	w, ok := f.items[id]
	if !ok || w.UserID != userID {
		return nil, nil
	}
	return &w, nil
}

func (f *fakeWorkouts) Update(_ context.Context, w Workout) error {
	stored, ok := f.items[w.ID]
	if !ok || stored.Version != w.Version {
		return ErrConflict
	}
	w.Version++
	f.items[w.ID] = w
	return nil
}

func (f *fakeWorkouts) List(_ context.Context, userID string, _ *Cursor, limit int) ([]Workout, *Cursor, error) {
	var out []Workout
	for _, w := range f.items {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	return out, nil, nil
}

func (f *fakeWorkouts) CompletedBetween(_ context.Context, userID string, from, to time.Time) ([]Workout, error) {
	var out []Workout
	for _, w := range f.items {
		if w.UserID != userID || w.Session.EndedAt == nil || w.Session.State != "completed" {
			continue
		}
		if !w.Session.EndedAt.Before(from) && w.Session.EndedAt.Before(to) {
			out = append(out, w)
		}
	}
	return out, nil
}

type fakeBodyStats struct {
	items []BodyStats
}

func (f *fakeBodyStats) Create(_ context.Context, s BodyStats) error {
	f.items = append(f.items, s)
	return nil
}

func (f *fakeBodyStats) List(_ context.Context, userID string, limit int) ([]BodyStats, error) {
	var out []BodyStats
	for i := len(f.items) - 1; i >= 0 && len(out) < limit; i-- {
		if f.items[i].UserID == userID {
			out = append(out, f.items[i])
		}
	}
	return out, nil
}

func (f *fakeBodyStats) Latest(ctx context.Context, userID string) (*BodyStats, error) {
	items, _ := f.List(ctx, userID, 1)
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

type fakeProfiles struct {
	items map[string]Profile
}

func (f *fakeProfiles) Get(_ context.Context, userID string) (*Profile, error) {
	p, ok := f.items[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *fakeProfiles) Upsert(_ context.Context, p Profile) error {
	if f.items == nil {
		f.items = map[string]Profile{}
	}
	f.items[p.UserID] = p
	return nil
}

type fakeAchievements struct {
	counters map[string]float64
	unlocked map[string]time.Time
	applied  map[string]bool
	updates  []ProgressUpdate
}

func newFakeAchievements() *fakeAchievements {
	return &fakeAchievements{counters: map[string]float64{}, unlocked: map[string]time.Time{}, applied: map[string]bool{}}
}

func (f *fakeAchievements) Counters(_ context.Context, userID string) (map[string]float64, error) {
	out := map[string]float64{}
	for k, v := range f.counters {
		out[k] = v
	}
	return out, nil
}

func (f *fakeAchievements) Unlocked(_ context.Context, userID string) (map[string]time.Time, error) {
	out := map[string]time.Time{}
	for k, v := range f.unlocked {
		out[k] = v
	}
	return out, nil
}

func (f *fakeAchievements) ApplyProgress(_ context.Context, update ProgressUpdate, catalog []AchievementDef) ([]AchievementDef, error) {
	f.updates = append(f.updates, update)
	if update.EventKey != "" {
		if f.applied[update.EventKey] {
			return nil, nil
		}
		f.applied[update.EventKey] = true
	}
	values := map[string]float64{}
	for _, d := range update.Deltas {
		f.counters[d.Counter] += d.Delta
		values[d.Counter] = f.counters[d.Counter]
	}
	var unlocked []AchievementDef
	for _, def := range catalog {
		if _, ok := f.unlocked[def.Code]; ok || !def.Reached(values) {
			continue
		}
		f.unlocked[def.Code] = update.At
		unlocked = append(unlocked, def)
	}
	return unlocked, nil
}

type memoryCache struct {
	data map[string][]byte
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	if c.data == nil {
		c.data = map[string][]byte{}
	}
	c.data[key] = value
	return nil
}
