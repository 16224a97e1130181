package outbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"example.com/wellness/pkg/events"
)

type fakeWriter struct {
	writes map[string][]kafka.Message
	order  []string
	err    error
}

func (f *fakeWriter) WriteMessages(_ context.Context, topic string, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	if f.writes == nil {
		f.writes = make(map[string][]kafka.Message)
	}
	f.order = append(f.order, topic)
	f.writes[topic] = append(f.writes[topic], msgs...)
	return nil
}

type fakeRegistry struct {
	calls int
	err   error
}

func (f *fakeRegistry) EnsureSchema(_ context.Context, subject, schema string) (int, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	if subject == "" || schema == "" {
		return 0, errors.New("empty subject or schema")
	}
	return 42, nil
}

func newTestDispatcher(t *testing.T, w *fakeWriter, r *fakeRegistry) *Dispatcher {
	d := NewDispatcher(nil, w, r, zaptest.NewLogger(t), time.Second, 10)
	d.now = func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }
	return d
}

func message(id int64, eventType, userID string) Message {
	route, _ := events.RouteFor(eventType)
	return Message{
		EventID:       id,
		UserID:        userID,
		AggregateID:   "agg-1",
		EventType:     eventType,
		Topic:         route.Topic,
		SchemaSubject: route.SchemaSubject,
		PartitionKey:  userID,
		Payload:       json.RawMessage(`{"user_id":"` + userID + `"}`),
		DedupeKey:     "agg-1:" + eventType,
	}
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestDeliverGroupsByTopicAndFramesPayload(t *testing.T) {
	w := &fakeWriter{}
	r := &fakeRegistry{}
	d := newTestDispatcher(t, w, r)

	err := d.deliver(context.Background(), []Message{
		message(1, events.TypeBookingCreated, "u1"),
		message(2, events.TypeMealLogged, "u1"),
		message(3, events.TypeBookingStateChanged, "u2"),
	})
	require.NoError(t, err)
	require.Equal(t, []string{events.TopicBookings, events.TopicMeals}, w.order)
	require.Len(t, w.writes[events.TopicBookings], 2)

	record := w.writes[events.TopicMeals][0]
	require.Equal(t, []byte("u1"), record.Key)
	require.Equal(t, byte(0), record.Value[0])
	require.Equal(t, uint32(42), binary.BigEndian.Uint32(record.Value[1:5]))
	require.JSONEq(t, `{"user_id":"u1"}`, string(record.Value[5:]))
	require.Equal(t, "agg-1:"+events.TypeMealLogged, header(record, HeaderEventID))
	require.Equal(t, events.TypeMealLogged, header(record, HeaderEventType))
	require.Equal(t, "u1", header(record, HeaderUserID))
	require.Equal(t, events.TopicMeals+"-"+events.TypeMealLogged, header(record, HeaderSchemaSubject))
}

func TestDeliverCachesSchemaIDs(t *testing.T) {
	r := &fakeRegistry{}
	d := newTestDispatcher(t, &fakeWriter{}, r)

	batch := []Message{message(1, events.TypeMealLogged, "u1"), message(2, events.TypeMealLogged, "u2")}
	require.NoError(t, d.deliver(context.Background(), batch))
	require.NoError(t, d.deliver(context.Background(), batch))
	require.Equal(t, 1, r.calls)
}

func TestDeliverFailures(t *testing.T) {
	d := newTestDispatcher(t, &fakeWriter{}, &fakeRegistry{})
	unknown := message(1, events.TypeMealLogged, "u1")
	unknown.EventType = "activity.created"
	require.ErrorContains(t, d.deliver(context.Background(), []Message{unknown}), "no schema metadata")

	d = newTestDispatcher(t, &fakeWriter{}, &fakeRegistry{err: errors.New("registry down")})
	require.ErrorContains(t, d.deliver(context.Background(), []Message{message(1, events.TypeMealLogged, "u1")}), "registry down")

	d = newTestDispatcher(t, &fakeWriter{err: errors.New("broker down")}, &fakeRegistry{})
	require.ErrorContains(t, d.deliver(context.Background(), []Message{message(1, events.TypeMealLogged, "u1")}), "broker down")
}

func TestSchemaCatalogCoversEveryEvent(t *testing.T) {
	for _, eventType := range events.Types() {
		schema, ok := schemaCatalog[eventType]
		require.True(t, ok, eventType)
		require.True(t, json.Valid([]byte(schema)), eventType)
	}
}

func TestEventKeyFallsBackToOutboxID(t *testing.T) {
	require.Equal(t, "17", Message{EventID: 17}.eventKey())
	require.Equal(t, "a:b", Message{EventID: 17, DedupeKey: "a:b"}.eventKey())
}

func TestBackoffDelay(t *testing.T) {
	m := NewDLQManager(nil, nil, 3, time.Minute)
	require.Equal(t, time.Minute, m.backoffDelay(1))
	require.Equal(t, 4*time.Minute, m.backoffDelay(3))
	require.Equal(t, time.Hour, m.backoffDelay(7))
	require.Equal(t, time.Hour, m.backoffDelay(64))
}

func TestDLQMetricsRecorders(t *testing.T) {
	entry := dlqEntry{Topic: "meal_events", EventType: events.TypeMealLogged}
	quarantined := dlqOutcomeCounter.WithLabelValues(entry.Topic, entry.EventType, dlqOutcomeQuarantined)
	before := testutil.ToFloat64(quarantined)
	recordDLQOutcome(entry, dlqOutcomeQuarantined)
	require.Equal(t, before+1, testutil.ToFloat64(quarantined))

	published := publishedCounter.WithLabelValues("meal_events", "delivered")
	start := testutil.ToFloat64(published)
	recordPublished([]Message{{Topic: "meal_events"}, {Topic: "meal_events"}, {Topic: "body_events"}}, "delivered")
	require.Equal(t, start+2, testutil.ToFloat64(published))
}

func TestSchemaRegistryLooksUpThenRegisters(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.EscapedPath())
		require.Equal(t, "application/vnd.schemaregistry.v1+json", r.Header.Get("Content-Type"))
		if r.URL.Path == "/subjects/meal_events-meal.logged" {
			http.Error(w, `{"error_code":40401}`, http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"id":7}`))
	}))
	defer srv.Close()

	client := NewSchemaRegistryClient(srv.URL + "/")
	id, err := client.EnsureSchema(context.Background(), "meal_events-meal.logged", mealLoggedSchema)
	require.NoError(t, err)
	require.Equal(t, 7, id)
	require.Equal(t, []string{"/subjects/meal_events-meal.logged", "/subjects/meal_events-meal.logged/versions"}, paths)
}
