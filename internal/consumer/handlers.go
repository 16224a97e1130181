package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"example.com/wellness/internal/domain"
	"example.com/wellness/pkg/events"
)

// Chain runs handlers in order and stops at the first error.
func Chain(handlers ...Handler) Handler {
	return HandlerFunc(func(ctx context.Context, msg Message) error {
		for _, h := range handlers {
			if err := h.Handle(ctx, msg); err != nil {
				return err
			}
		}
		return nil
	})
}

func decodePayload(msg Message, dst any) error {
	if err := json.Unmarshal(msg.Payload, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", msg.EventType, err)
	}
	return nil
}

// AchievementHandler advances achievement counters from domain events. Unlocks are
// published by the repository as achievement.unlocked events.
type AchievementHandler struct {
	achievements *domain.AchievementService
	logger       *zap.Logger
}

// NewAchievementHandler constructs an AchievementHandler.
func NewAchievementHandler(achievements *domain.AchievementService, logger *zap.Logger) *AchievementHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AchievementHandler{achievements: achievements, logger: logger}
}

// Handle records progress for the event's user. All counters of one event are
// applied in a single repository transaction keyed by the event id.
func (h *AchievementHandler) Handle(ctx context.Context, msg Message) error {
	var (
		userID string
		at     = msg.Timestamp
		deltas []domain.CounterDelta
	)

	switch msg.EventType {
	case events.TypeMealLogged:
		var p events.MealLogged
		if err := decodePayload(msg, &p); err != nil {
			return err
		}
		userID = p.UserID
		deltas = []domain.CounterDelta{{Counter: domain.CounterMealsLogged, Delta: 1}}
	case events.TypeWorkoutCompleted:
		var p events.WorkoutCompleted
		if err := decodePayload(msg, &p); err != nil {
			return err
		}
		userID, at = p.UserID, p.CompletedAt
		deltas = []domain.CounterDelta{
			{Counter: domain.CounterWorkoutsCompleted, Delta: 1},
			{Counter: domain.CounterCaloriesBurned, Delta: p.CaloriesBurned},
		}
	case events.TypeBookingCreated:
		var p events.BookingCreated
		if err := decodePayload(msg, &p); err != nil {
			return err
		}
		userID = p.UserID
		deltas = []domain.CounterDelta{{Counter: domain.CounterBookingsCreated, Delta: 1}}
	case events.TypeBodyStatsRecorded:
		var p events.BodyStatsRecorded
		if err := decodePayload(msg, &p); err != nil {
			return err
		}
		userID, at = p.UserID, p.RecordedAt
		deltas = []domain.CounterDelta{{Counter: domain.CounterBodyStatsRecorded, Delta: 1}}
	default:
		return nil
	}

	if userID == "" {
		userID = msg.UserID
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	unlocked, err := h.achievements.RecordEvent(ctx, userID, msg.Key(), deltas, at)
	if err != nil {
		return err
	}
	for _, def := range unlocked {
		h.logger.Info("achievement unlocked", zap.String("user_id", userID), zap.String("code", def.Code))
	}
	return nil
}

// NotificationHandler turns booking and achievement events into inbox entries.
type NotificationHandler struct {
	notifications *domain.NotificationService
}

// NewNotificationHandler constructs a NotificationHandler.
func NewNotificationHandler(notifications *domain.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// Handle creates at most one notification per event.
func (h *NotificationHandler) Handle(ctx context.Context, msg Message) error {
	var userID, kind, title, body string

	switch msg.EventType {
	case events.TypeBookingCreated:
		var p events.BookingCreated
		if err := decodePayload(msg, &p); err != nil {
			return err
		}
		userID, kind = p.UserID, domain.NotificationBooking
		title = "Session booked"
		body = fmt.Sprintf("Your %d minute session on %s is confirmed. %s was charged to your wallet.",
			p.DurationMin, p.StartsAt.UTC().Format("Mon 2 Jan 15:04 MST"), p.Price)
	case events.TypeBookingStateChanged:
		var p events.BookingStateChanged
		if err := decodePayload(msg, &p); err != nil {
			return err
		}
		userID, kind = p.UserID, domain.NotificationBooking
		switch p.State {
		case string(domain.BookingCancelled):
			title = "Booking cancelled"
			body = "Your session was cancelled and the payment was refunded to your wallet."
		case string(domain.BookingCompleted):
			title = "Session completed"
			body = "Nice work! Your trainer session is complete."
		default:
			return nil
		}
	case events.TypeAchievementUnlocked:
		var p events.AchievementUnlocked
		if err := decodePayload(msg, &p); err != nil {
			return err
		}
		userID, kind = p.UserID, domain.NotificationAchievement
		title = "Achievement unlocked"
		body = fmt.Sprintf("You earned %q.", p.Title)
	default:
		return nil
	}

	if userID == "" {
		userID = msg.UserID
	}
	_, err := h.notifications.Notify(ctx, userID, kind, title, body)
	return err
}
