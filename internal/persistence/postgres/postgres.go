// Package postgres implements the domain repositories on top of pgx.
//
// Every user-scoped statement runs inside a transaction that sets app.user_id, which the
// row level security policies of the schema key on. Aggregates and the events they emit are
// written in the same transaction through the outbox table.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"example.com/wellness/internal/domain"
	"example.com/wellness/pkg/events"
)

const uniqueViolation = "23505"

func withUserTx(ctx context.Context, pool *pgxpool.Pool, userID string, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.user_id', $1, true)", userID); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

func stringOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

// validID reports whether id can be compared against a UUID column.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func checkCursor(cursor *domain.Cursor) error {
	if cursor != nil && !validID(cursor.ID) {
		return fmt.Errorf("%w: malformed cursor", domain.ErrValidation)
	}
	return nil
}

func parseDecimal(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse numeric %q: %w", raw, err)
	}
	return d, nil
}

// outboxEvent is one event recorded alongside an aggregate write.
type outboxEvent struct {
	UserID        string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       interface{}
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	events.Route
	PartitionKeyFn func(outboxEvent) string
}

func byUser(e outboxEvent) string      { return e.UserID }
func byAggregate(e outboxEvent) string { return e.AggregateID }

var eventCatalog = buildEventCatalog(map[string]func(outboxEvent) string{
	events.TypeMealLogged:                byUser,
	events.TypeWorkoutCompleted:          byUser,
	events.TypeBookingCreated:            byAggregate,
	events.TypeBookingStateChanged:       byAggregate,
	events.TypeWalletTransactionRecorded: byUser,
	events.TypeBodyStatsRecorded:         byUser,
	events.TypeAchievementUnlocked:       byUser,
})

func buildEventCatalog(keys map[string]func(outboxEvent) string) map[string]EventMetadata {
	catalog := make(map[string]EventMetadata, len(keys))
	for eventType, keyFn := range keys {
		route, ok := events.RouteFor(eventType)
		if !ok {
			panic(fmt.Sprintf("no route for event type %s", eventType))
		}
		catalog[eventType] = EventMetadata{Route: route, PartitionKeyFn: keyFn}
	}
	return catalog
}

func insertOutbox(ctx context.Context, tx pgx.Tx, event outboxEvent) error {
	body, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[event.EventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", event.EventType)
	}

	const stmt = `INSERT INTO outbox (user_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err = tx.Exec(ctx, stmt,
		event.UserID,
		event.AggregateType,
		event.AggregateID,
		event.EventType,
		meta.Topic,
		meta.SchemaSubject,
		meta.PartitionKeyFn(event),
		body,
		fmt.Sprintf("%s:%s", event.AggregateID, event.EventType),
	)
	return err
}
