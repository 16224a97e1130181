package consumer

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EventLogHandler writes consumed events into Postgres for auditing.
type EventLogHandler struct {
	pool *pgxpool.Pool
}

// NewEventLogHandler constructs a handler backed by the provided pool.
func NewEventLogHandler(pool *pgxpool.Pool) *EventLogHandler {
	return &EventLogHandler{pool: pool}
}

// Handle stores the event once; redeliveries of the same event are ignored.
func (h *EventLogHandler) Handle(ctx context.Context, msg Message) error {
	received := msg.Timestamp
	if received.IsZero() {
		received = time.Now().UTC()
	}
	_, err := h.pool.Exec(ctx,
		`INSERT INTO event_log (event_key, user_id, event_type, schema_id, schema_subject, topic, partition, record_offset, payload, received_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
         ON CONFLICT (event_key) DO NOTHING`,
		msg.Key(),
		msg.UserID,
		msg.EventType,
		msg.SchemaID,
		msg.SchemaSubject,
		msg.Topic,
		msg.Partition,
		msg.Offset,
		msg.Payload,
		received,
	)
	return err
}
