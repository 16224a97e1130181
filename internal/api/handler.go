// Package api exposes the wellness HTTP API.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"example.com/wellness/internal/domain"
	"example.com/wellness/internal/workout"
	"example.com/wellness/pkg/auth"
)

const (
	maxBodyBytes = 1 << 20
	// HeaderIdempotencyKey deduplicates retried writes.
	HeaderIdempotencyKey = "Idempotency-Key"
	// HeaderActAs lets service-role callers act on behalf of a user.
	HeaderActAs = "X-User-ID"
)

// Services groups the domain services behind the API.
type Services struct {
	Catalog       *domain.CatalogService
	Bookings      *domain.BookingService
	Wallet        *domain.WalletService
	Meals         *domain.MealService
	Nutrition     *domain.NutritionService
	BodyStats     *domain.BodyStatsService
	Profiles      *domain.ProfileService
	Workouts      *domain.WorkoutService
	Achievements  *domain.AchievementService
	Notifications *domain.NotificationService
	Assistant     *domain.AssistantService
}

// Handler coordinates HTTP requests with the domain services.
type Handler struct {
	svc     Services
	limiter *RateLimiter
	logger  *zap.Logger
	now     func() time.Time
}

// NewHandler builds a Handler. A nil limiter disables rate limiting of AI routes.
func NewHandler(svc Services, limiter *RateLimiter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, limiter: limiter, logger: logger, now: time.Now}
}

// Routes returns every endpoint on a fresh mux whose own 404 and 405 replies use
// the JSON error body.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux.ServeHTTP(&muxErrorWriter{ResponseWriter: w}, r)
	})
}

// muxErrorWriter rewrites the plain-text errors ServeMux emits for unknown paths
// and method mismatches. Handler responses are JSON already and pass through.
type muxErrorWriter struct {
	http.ResponseWriter
	rewritten bool
}

func (w *muxErrorWriter) WriteHeader(status int) {
	plain := strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain")
	switch {
	case plain && status == http.StatusMethodNotAllowed:
		w.rewrite(status, "method_not_allowed", "unsupported method")
	case plain && status == http.StatusNotFound:
		w.rewrite(status, "not_found", "no such route")
	default:
		w.ResponseWriter.WriteHeader(status)
	}
}

func (w *muxErrorWriter) rewrite(status int, code, detail string) {
	w.rewritten = true
	w.Header().Del("X-Content-Type-Options")
	writeError(w.ResponseWriter, status, code, detail)
}

func (w *muxErrorWriter) Write(b []byte) (int, error) {
	if w.rewritten {
		return len(b), nil
	}
	return w.ResponseWriter.Write(b)
}

func (w *muxErrorWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	read := func(fn userHandler) http.HandlerFunc { return h.authed(auth.ScopeRead, fn) }
	write := func(fn userHandler) http.HandlerFunc { return h.authed(auth.ScopeWrite, fn) }

	mux.HandleFunc("GET /healthz", healthz)

	mux.HandleFunc("GET /v1/gyms", read(h.searchGyms))
	mux.HandleFunc("GET /v1/gyms/{id}", read(h.getGym))
	mux.HandleFunc("GET /v1/trainers", read(h.listTrainers))
	mux.HandleFunc("GET /v1/trainers/{id}", read(h.getTrainer))

	mux.HandleFunc("POST /v1/bookings", write(h.createBooking))
	mux.HandleFunc("GET /v1/bookings", read(h.listBookings))
	mux.HandleFunc("GET /v1/bookings/{id}", read(h.getBooking))
	mux.HandleFunc("POST /v1/bookings/{id}/cancel", write(h.cancelBooking))

	mux.HandleFunc("GET /v1/wallet", read(h.getWallet))
	mux.HandleFunc("POST /v1/wallet/topup", write(h.topUp))
	mux.HandleFunc("GET /v1/wallet/transactions", read(h.listTransactions))

	mux.HandleFunc("POST /v1/meals", write(h.logMeal))
	mux.HandleFunc("GET /v1/meals", read(h.listMeals))
	mux.HandleFunc("DELETE /v1/meals/{id}", write(h.deleteMeal))
	mux.HandleFunc("POST /v1/meals/recognize", write(h.limit("meals_recognize", h.recognizeMeal)))
	mux.HandleFunc("GET /v1/nutrition/lookup", read(h.lookupFood))
	mux.HandleFunc("GET /v1/nutrition/summary", read(h.dailySummary))

	mux.HandleFunc("POST /v1/body-stats", write(h.recordBodyStats))
	mux.HandleFunc("GET /v1/body-stats", read(h.listBodyStats))
	mux.HandleFunc("GET /v1/profile", read(h.getProfile))
	mux.HandleFunc("PUT /v1/profile", write(h.updateProfile))

	mux.HandleFunc("POST /v1/workouts", write(h.startWorkout))
	mux.HandleFunc("GET /v1/workouts", read(h.listWorkouts))
	mux.HandleFunc("GET /v1/workouts/{id}", read(h.getWorkout))
	mux.HandleFunc("POST /v1/workouts/{id}/sets", write(h.completeSet))
	mux.HandleFunc("POST /v1/workouts/{id}/rest/skip", write(h.skipRest))
	mux.HandleFunc("POST /v1/workouts/{id}/finish", write(h.finishWorkout))
	mux.HandleFunc("POST /v1/workouts/{id}/abandon", write(h.abandonWorkout))

	mux.HandleFunc("GET /v1/achievements", read(h.listAchievements))
	mux.HandleFunc("GET /v1/notifications", read(h.listNotifications))
	mux.HandleFunc("POST /v1/notifications/{id}/read", write(h.markNotificationRead))

	mux.HandleFunc("POST /v1/assistant/chat", write(h.limit("assistant_chat", h.chat)))
	mux.HandleFunc("POST /v1/assistant/recipes", write(h.limit("assistant_recipes", h.recipe)))
	mux.HandleFunc("POST /v1/assistant/workout-plans", write(h.limit("assistant_workout_plans", h.workoutPlan)))
	mux.HandleFunc("POST /v1/assistant/meal-plans", write(h.limit("assistant_meal_plans", h.mealPlan)))
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// userHandler serves a request on behalf of an authenticated user.
type userHandler func(w http.ResponseWriter, r *http.Request, userID string)

// authed resolves the acting user and enforces scope. Tokens without a scopes claim
// are treated as full-access user tokens.
func (h *Handler) authed(scope string, next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		if len(claims.Scopes) > 0 && !claims.HasScope(scope) {
			writeError(w, http.StatusForbidden, "forbidden", fmt.Sprintf("scope %s required", scope))
			return
		}
		userID := claims.Subject
		if claims.IsService() {
			if actAs := strings.TrimSpace(r.Header.Get(HeaderActAs)); actAs != "" {
				userID = actAs
			}
		}
		next(w, r, userID)
	}
}

// limit applies the per-user AI rate limit.
func (h *Handler) limit(route string, next userHandler) userHandler {
	return func(w http.ResponseWriter, r *http.Request, userID string) {
		if h.limiter != nil {
			if ok, retryAfter := h.limiter.Allow(userID); !ok {
				h.limiter.reject(w, route, retryAfter)
				return
			}
		}
		next(w, r, userID)
	}
}

// writeDomainError maps domain errors to HTTP responses.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, workout.ErrInvalidPlan),
		errors.Is(err, workout.ErrInvalidSet):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrGymNotFound),
		errors.Is(err, domain.ErrTrainerNotFound),
		errors.Is(err, domain.ErrBookingNotFound),
		errors.Is(err, domain.ErrMealNotFound),
		errors.Is(err, domain.ErrFoodNotFound),
		errors.Is(err, domain.ErrWorkoutNotFound),
		errors.Is(err, domain.ErrNotificationNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrInsufficientFunds):
		writeError(w, http.StatusPaymentRequired, "payment_required", err.Error())
	case errors.Is(err, domain.ErrBookingNotCancellable),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, workout.ErrSessionClosed),
		errors.Is(err, workout.ErrResting),
		errors.Is(err, workout.ErrNotResting):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domain.ErrUpstream):
		h.logger.Warn("upstream failure", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusBadGateway, "upstream_error", "upstream service unavailable")
	default:
		h.logger.Error("request failed", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

// decodeJSON reads a JSON body, rejecting unknown fields and trailing data.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body: "+err.Error())
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, http.StatusBadRequest, "invalid_request", "body must contain a single JSON object")
		return false
	}
	return true
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", domain.ErrValidation, key)
	}
	return v, nil
}

func queryFloat(r *http.Request, key string) (*float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a number", domain.ErrValidation, key)
	}
	return &v, nil
}

// queryDay parses ?date=YYYY-MM-DD in the optional ?tz= location; it defaults to today.
func queryDay(r *http.Request, now time.Time) (time.Time, error) {
	loc := time.UTC
	if tz := strings.TrimSpace(r.URL.Query().Get("tz")); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: unknown time zone %q", domain.ErrValidation, tz)
		}
		loc = l
	}
	raw := strings.TrimSpace(r.URL.Query().Get("date"))
	if raw == "" {
		return now.In(loc), nil
	}
	day, err := time.ParseInLocation(time.DateOnly, raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", domain.ErrValidation)
	}
	return day, nil
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// writeCreated responds 201 for new resources and 200 for idempotent replays.
func writeCreated(w http.ResponseWriter, replay bool, payload any) {
	status := http.StatusCreated
	if replay {
		status = http.StatusOK
		w.Header().Set("Idempotent-Replayed", "true")
	}
	writeJSON(w, status, payload)
}
