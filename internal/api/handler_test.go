package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"example.com/wellness/internal/catalog"
	"example.com/wellness/internal/domain"
	"example.com/wellness/internal/workout"
	"example.com/wellness/pkg/auth"
)

const (
	mayaID = "5a1e7c44-0d6b-4c52-8f0e-3b9a2e7d2001"
	samID  = "5a1e7c44-0d6b-4c52-8f0e-3b9a2e7d2004"
)

type testEnv struct {
	routes http.Handler
	ledger *fakeLedger
	meals  *fakeMeals
}

func newTestEnv(t *testing.T, limiter *RateLimiter, gen domain.TextGenerator) *testEnv {
	t.Helper()
	catalogRepo := catalog.NewInMemoryRepository()
	ledger := newFakeLedger()
	meals := &fakeMeals{}
	workouts := &fakeWorkouts{workouts: map[string]domain.Workout{}}
	mealSvc := domain.NewMealService(meals)
	profiles := domain.NewProfileService(fakeProfiles{})

	svc := Services{
		Catalog:  domain.NewCatalogService(catalogRepo),
		Bookings: domain.NewBookingService(ledger, catalogRepo),
		Wallet:   domain.NewWalletService(ledger),
		Meals:    mealSvc,
		Nutrition: domain.NewNutritionService(domain.NutritionDeps{
			Recognizer: fakeRecognizer{foods: []domain.RecognizedFood{{Name: "rice", Grams: 200, Confidence: 0.9}}},
			Foods:      fakeFoods{"rice": {Calories: 130, ProteinG: 2.7, CarbsG: 28, FatG: 0.3}},
			Meals:      mealSvc,
			Workouts:   workouts,
			Profiles:   profiles,
		}),
		BodyStats:     domain.NewBodyStatsService(fakeBodyStats{}),
		Profiles:      profiles,
		Workouts:      domain.NewWorkoutService(workouts, fakeBodyStats{}),
		Achievements:  domain.NewAchievementService(fakeAchievements{}),
		Notifications: domain.NewNotificationService(fakeNotifications{}),
		Assistant:     domain.NewAssistantService(gen),
	}

	routes := NewHandler(svc, limiter, zaptest.NewLogger(t)).Routes()
	return &testEnv{routes: routes, ledger: ledger, meals: meals}
}

func userClaims(id string) *auth.Claims {
	return &auth.Claims{Subject: id, Role: auth.DefaultRole, ExpiresAt: time.Now().Add(time.Hour)}
}

func (e *testEnv) do(t *testing.T, method, target string, body any, claims *auth.Claims, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	if claims != nil {
		req = req.WithContext(auth.WithClaims(req.Context(), claims))
	}
	rr := httptest.NewRecorder()
	e.routes.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func errorType(t *testing.T, rr *httptest.ResponseRecorder) string {
	return decode[map[string]string](t, rr)["type"]
}

func TestHealthzAndAuth(t *testing.T) {
	env := newTestEnv(t, nil, fakeGenerator{text: "ok"})

	rr := env.do(t, http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodGet, "/v1/wallet", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "unauthorized", errorType(t, rr))
}

func TestScopesAndServiceRole(t *testing.T) {
	env := newTestEnv(t, nil, fakeGenerator{text: "ok"})

	readOnly := userClaims("user-1")
	readOnly.Scopes = map[string]struct{}{auth.ScopeRead: {}}
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/v1/wallet", nil, readOnly).Code)
	rr := env.do(t, http.MethodPost, "/v1/wallet/topup", map[string]string{"amount": "10"}, readOnly)
	require.Equal(t, http.StatusForbidden, rr.Code)

	service := &auth.Claims{Subject: "svc", Role: "service_role"}
	rr = env.do(t, http.MethodGet, "/v1/wallet", nil, service, HeaderActAs, "user-9")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "user-9", decode[domain.Wallet](t, rr).UserID)

	rr = env.do(t, http.MethodGet, "/v1/wallet", nil, userClaims("user-1"), HeaderActAs, "user-9")
	require.Equal(t, "user-1", decode[domain.Wallet](t, rr).UserID)
}

func TestSearchGyms(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	claims := userClaims("user-1")

	rr := env.do(t, http.MethodGet, "/v1/gyms?lat=37.7936&lng=-122.3965&radius_km=5", nil, claims)
	require.Equal(t, http.StatusOK, rr.Code)
	gyms := decode[ListResponse[domain.GymResult]](t, rr)
	require.NotEmpty(t, gyms.Items)
	require.Equal(t, "Iron Works Gym", gyms.Items[0].Name)
	require.NotNil(t, gyms.Items[0].DistanceKm)
	require.NotEmpty(t, gyms.Items[0].DistanceLabel)

	rr = env.do(t, http.MethodGet, "/v1/gyms?lat=37.7", nil, claims)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodGet, "/v1/gyms/does-not-exist", nil, claims)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do(t, http.MethodGet, "/v1/trainers?specialty=strength", nil, claims)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, decode[ListResponse[domain.Trainer]](t, rr).Items, 2)
}

func TestWalletAndBookingFlow(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	claims := userClaims("user-1")

	rr := env.do(t, http.MethodPost, "/v1/wallet/topup", map[string]string{"amount": "100.00"}, claims, HeaderIdempotencyKey, "k1")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	rr = env.do(t, http.MethodPost, "/v1/wallet/topup", map[string]string{"amount": "100.00"}, claims, HeaderIdempotencyKey, "k1")
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, decode[TopUpResponse](t, rr).Replay)

	rr = env.do(t, http.MethodPost, "/v1/wallet/topup", map[string]string{"amount": "10.005"}, claims)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	startsAt := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Hour)
	rr = env.do(t, http.MethodPost, "/v1/bookings", CreateBookingRequest{TrainerID: mayaID, StartsAt: startsAt, DurationMin: 60}, claims)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	booking := decode[BookingResponse](t, rr)
	require.True(t, decimal.RequireFromString("65").Equal(booking.Price))
	require.Equal(t, domain.BookingConfirmed, booking.Status)

	rr = env.do(t, http.MethodPost, "/v1/bookings", CreateBookingRequest{TrainerID: samID, StartsAt: startsAt, DurationMin: 60}, claims)
	require.Equal(t, http.StatusPaymentRequired, rr.Code)
	require.Equal(t, "payment_required", errorType(t, rr))

	rr = env.do(t, http.MethodPost, "/v1/bookings", CreateBookingRequest{TrainerID: mayaID, StartsAt: startsAt, DurationMin: 50}, claims)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodPost, "/v1/bookings/"+booking.ID+"/cancel", nil, claims)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, domain.BookingCancelled, decode[domain.Booking](t, rr).Status)

	rr = env.do(t, http.MethodPost, "/v1/bookings/"+booking.ID+"/cancel", nil, claims)
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = env.do(t, http.MethodGet, "/v1/bookings/"+booking.ID, nil, userClaims("someone-else"))
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do(t, http.MethodGet, "/v1/wallet", nil, claims)
	require.True(t, decimal.NewFromInt(100).Equal(decode[domain.Wallet](t, rr).Balance))

	rr = env.do(t, http.MethodGet, "/v1/wallet/transactions", nil, claims)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, decode[ListResponse[domain.Transaction]](t, rr).Items, 3)

	rr = env.do(t, http.MethodGet, "/v1/bookings?cursor=Z2FyYmFnZQ", nil, claims)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodGet, "/v1/bookings?status=pending", nil, claims)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMuxErrorsUseJSONBody(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	claims := userClaims("user-1")

	rr := env.do(t, http.MethodDelete, "/v1/wallet", nil, claims)
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	require.Contains(t, rr.Header().Get("Allow"), http.MethodGet)
	require.Equal(t, "method_not_allowed", errorType(t, rr))

	rr = env.do(t, http.MethodGet, "/v1/unknown", nil, claims)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "not_found", errorType(t, rr))

	rr = env.do(t, http.MethodGet, "/v1/gyms/missing", nil, claims)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.NotEqual(t, "no such route", decode[map[string]string](t, rr)["detail"])
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	rr := env.do(t, http.MethodPost, "/v1/wallet/topup", map[string]any{"amount": "5", "currency": "EUR"}, userClaims("user-1"))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "invalid_request", errorType(t, rr))
}

func TestWorkoutFlow(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	claims := userClaims("user-1")

	rr := env.do(t, http.MethodPost, "/v1/workouts", StartWorkoutRequest{
		Name: "Push day",
		Exercises: []workout.Exercise{
			{Name: "Bench press", Sets: 2, Reps: 8, RestSeconds: 90, MET: 6},
		},
	}, claims)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	started := decode[WorkoutView](t, rr)
	require.Equal(t, 2, started.TotalSets)
	require.Equal(t, workout.StateActive, started.Session.State)
	base := "/v1/workouts/" + started.ID

	rr = env.do(t, http.MethodPost, base+"/sets", CompleteSetRequest{Reps: 8, WeightKg: 60}, claims)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, workout.StateResting, decode[WorkoutView](t, rr).Session.State)

	rr = env.do(t, http.MethodPost, base+"/sets", CompleteSetRequest{Reps: 8, WeightKg: 60}, claims)
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = env.do(t, http.MethodPost, base+"/rest/skip", nil, claims)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodPost, base+"/sets", CompleteSetRequest{Reps: -1}, claims)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodPost, base+"/sets", CompleteSetRequest{Reps: 7, WeightKg: 60}, claims)
	require.Equal(t, http.StatusOK, rr.Code)
	done := decode[WorkoutView](t, rr)
	require.Equal(t, workout.StateCompleted, done.Session.State)
	require.Equal(t, 2, done.CompletedSets)

	rr = env.do(t, http.MethodPost, base+"/abandon", nil, claims)
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = env.do(t, http.MethodPost, "/v1/workouts", StartWorkoutRequest{}, claims)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRecognizeMealLogsResult(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="photo"; filename="lunch.jpg"`)
	header.Set("Content-Type", "image/jpeg")
	part, err := form.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte{0xff, 0xd8, 0xff, 0xe0})
	require.NoError(t, err)
	require.NoError(t, form.WriteField("meal_type", "lunch"))
	require.NoError(t, form.WriteField("log", "true"))
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/meals/recognize", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req = req.WithContext(auth.WithClaims(req.Context(), userClaims("user-1")))
	rr := httptest.NewRecorder()
	env.routes.ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	result := decode[domain.Recognition](t, rr)
	require.Equal(t, domain.SourceAI, result.Source)
	require.Equal(t, 260.0, result.Totals.Calories)
	require.NotNil(t, result.Meal)
	require.Len(t, env.meals.meals, 1)
}

func TestRecognizeMealRequiresPhoto(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	rr := env.do(t, http.MethodPost, "/v1/meals/recognize", map[string]string{}, userClaims("user-1"))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMealsAndSummary(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	claims := userClaims("user-1")
	eaten := time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)

	rr := env.do(t, http.MethodPost, "/v1/meals", LogMealRequest{
		MealType: domain.MealType("lunch"),
		EatenAt:  eaten,
		Items:    []domain.MealItem{{Name: "salad", Grams: 200, Macros: domain.Macros{Calories: 300, ProteinG: 10}}},
	}, claims)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	meal := decode[MealResponse](t, rr)

	rr = env.do(t, http.MethodGet, "/v1/meals?date=2026-03-02", nil, claims)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, decode[ListResponse[domain.Meal]](t, rr).Items, 1)

	rr = env.do(t, http.MethodGet, "/v1/nutrition/summary?date=2026-03-02", nil, claims)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	summary := decode[domain.DailySummary](t, rr)
	require.Equal(t, 300.0, summary.Consumed.Calories)
	require.Equal(t, domain.DefaultTargets, summary.Targets)

	rr = env.do(t, http.MethodGet, "/v1/meals?date=03/02/2026", nil, claims)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	rr = env.do(t, http.MethodGet, "/v1/meals?tz=Mars/Olympus", nil, claims)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodDelete, "/v1/meals/"+meal.ID, nil, claims)
	require.Equal(t, http.StatusNoContent, rr.Code)
	rr = env.do(t, http.MethodDelete, "/v1/meals/"+meal.ID, nil, claims)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do(t, http.MethodGet, "/v1/nutrition/lookup?query=rice", nil, claims)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = env.do(t, http.MethodGet, "/v1/nutrition/lookup?query=kale", nil, claims)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestProfileAndAchievements(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	claims := userClaims("user-1")

	rr := env.do(t, http.MethodGet, "/v1/profile", nil, claims)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, domain.GoalMaintain, decode[domain.Profile](t, rr).Goal)

	goal := domain.GoalLose
	rr = env.do(t, http.MethodPut, "/v1/profile", UpdateProfileRequest{Goal: &goal}, claims)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, domain.GoalLose, decode[domain.Profile](t, rr).Goal)

	rr = env.do(t, http.MethodGet, "/v1/achievements", nil, claims)
	require.Equal(t, http.StatusOK, rr.Code)
	achievements := decode[ListResponse[domain.Achievement]](t, rr).Items
	require.Len(t, achievements, len(domain.AchievementCatalog))
	require.Equal(t, 100.0, achievements[0].Percent)

	rr = env.do(t, http.MethodPost, "/v1/notifications/missing/read", nil, claims)
	require.Equal(t, http.StatusNotFound, rr.Code)
	rr = env.do(t, http.MethodGet, "/v1/notifications?unread=maybe", nil, claims)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAssistantRateLimitAndUpstream(t *testing.T) {
	env := newTestEnv(t, NewRateLimiter(1, 1), fakeGenerator{text: "Try overnight oats."})
	claims := userClaims("user-1")

	rr := env.do(t, http.MethodPost, "/v1/assistant/chat", ChatRequest{Message: "breakfast ideas?"}, claims)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, "Try overnight oats.", decode[TextResponse](t, rr).Text)

	rr = env.do(t, http.MethodPost, "/v1/assistant/chat", ChatRequest{Message: "again?"}, claims)
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	require.Equal(t, "rate_limited", errorType(t, rr))
	require.NotEmpty(t, rr.Header().Get("Retry-After"))

	rr = env.do(t, http.MethodPost, "/v1/assistant/chat", ChatRequest{Message: "other user"}, userClaims("user-2"))
	require.Equal(t, http.StatusOK, rr.Code)

	failing := newTestEnv(t, nil, fakeGenerator{err: errGeneratorDown})
	rr = failing.do(t, http.MethodPost, "/v1/assistant/meal-plans", MealPlanRequest{Calories: 1800, Days: 3}, claims)
	require.Equal(t, http.StatusBadGateway, rr.Code)
	require.Equal(t, "upstream_error", errorType(t, rr))

	rr = failing.do(t, http.MethodPost, "/v1/assistant/workout-plans", WorkoutPlanRequest{Goal: "build strength", Days: 9}, claims)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}
