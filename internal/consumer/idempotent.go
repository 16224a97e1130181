package consumer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultClaimTTL bounds how long a processed event id is remembered.
const DefaultClaimTTL = 7 * 24 * time.Hour

// Claimer reserves keys for exactly one caller.
type Claimer interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type idempotent struct {
	name    string
	next    Handler
	claimer Claimer
	ttl     time.Duration
	logger  *zap.Logger
}

// Idempotent runs next at most once per event key. The claim is released when next
// fails so the redelivered event is processed again.
func Idempotent(name string, next Handler, claimer Claimer, ttl time.Duration, logger *zap.Logger) Handler {
	if ttl <= 0 {
		ttl = DefaultClaimTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &idempotent{name: name, next: next, claimer: claimer, ttl: ttl, logger: logger}
}

func (h *idempotent) Handle(ctx context.Context, msg Message) error {
	key := fmt.Sprintf("consumer:%s:%s", h.name, msg.Key())
	claimed, err := h.claimer.Claim(ctx, key, h.ttl)
	if err != nil {
		return fmt.Errorf("claim %s: %w", key, err)
	}
	if !claimed {
		recordDuplicate(h.name)
		h.logger.Debug("skipping duplicate event", zap.String("handler", h.name), zap.String("event_id", msg.Key()))
		return nil
	}

	if err := h.next.Handle(ctx, msg); err != nil {
		if releaseErr := h.claimer.Release(ctx, key); releaseErr != nil {
			h.logger.Error("release claim", zap.String("key", key), zap.Error(releaseErr))
		}
		return err
	}
	return nil
}
