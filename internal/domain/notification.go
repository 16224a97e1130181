package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Notification kinds.
const (
	NotificationAchievement = "achievement"
	NotificationBooking     = "booking"
)

// Notification is an in-app inbox entry.
type Notification struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Kind      string     `json:"kind"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// NotificationRepository persists the inbox.
type NotificationRepository interface {
	Create(ctx context.Context, n Notification) error
	List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]Notification, error)
	MarkRead(ctx context.Context, userID, id string, at time.Time) (bool, error)
}

// NotificationService manages the inbox.
type NotificationService struct {
	repo NotificationRepository
	opts options
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(repo NotificationRepository, opts ...Option) *NotificationService {
	return &NotificationService{repo: repo, opts: buildOptions(opts)}
}

// Notify adds an entry to the user's inbox.
func (s *NotificationService) Notify(ctx context.Context, userID, kind, title, body string) (*Notification, error) {
	n := Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      kind,
		Title:     title,
		Body:      body,
		CreatedAt: s.opts.now(),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}
	return &n, nil
}

// ListNotifications returns the newest entries first.
func (s *NotificationService) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]Notification, error) {
	return s.repo.List(ctx, userID, unreadOnly, ClampLimit(limit, 50, 200))
}

// MarkRead flags an entry as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	found, err := s.repo.MarkRead(ctx, userID, id, s.opts.now())
	if err != nil {
		return err
	}
	if !found {
		return ErrNotificationNotFound
	}
	return nil
}
