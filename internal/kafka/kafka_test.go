package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Domenick1991/salonbooking/internal/calendar"
	"github.com/Domenick1991/salonbooking/internal/domain"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestNewReservationEvent(t *testing.T) {
	r := domain.Reservation{
		ID:              "r-1",
		CustomerName:    "Tanaka",
		PhoneNumber:     "090-1234-5678",
		Date:            time.Date(2025, 11, 6, 0, 0, 0, 0, time.UTC),
		StartTime:       calendar.NewTimeOfDay(15, 0),
		StylistName:     "Sato",
		ServiceMenu:     "cut",
		DurationMinutes: 90,
		Status:          domain.ReservationStatusScheduled,
	}

	event := NewReservationEvent(EventReservationCreated, r, time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC))

	assert.Equal(t, "reservation.created", event.Type)
	assert.Equal(t, "2025-11-06", event.ReservationDate)
	assert.Equal(t, "15:00", event.StartTime)
	assert.Equal(t, "16:30", event.EndTime)
	assert.Equal(t, "scheduled", event.Status)
	assert.Equal(t, "reservation.created", eventType(event, "topic"))
	assert.Equal(t, "topic", eventType(CompletionRequest{}, "topic"))
}

func TestTraceHeadersRoundTrip(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	headers := InjectTraceHeaders(ctx, []kafka.Header{{Key: "event_type", Value: []byte("reservation.created")}})
	require.Len(t, headers, 2)
	assert.Equal(t, "reservation.created", HeaderValue(headers, "event_type"))
	assert.Contains(t, HeaderValue(headers, "traceparent"), traceID.String())

	extracted := trace.SpanContextFromContext(ExtractTraceContext(context.Background(), kafka.Message{Headers: headers}))
	assert.Equal(t, traceID, extracted.TraceID())
	assert.True(t, extracted.IsRemote())
}

func TestHeaderCarrier_SetOverwrites(t *testing.T) {
	c := &headerCarrier{}
	c.Set("k", "1")
	c.Set("k", "2")
	assert.Equal(t, []string{"k"}, c.Keys())
	assert.Equal(t, "2", c.Get("k"))
	assert.Equal(t, "", c.Get("missing"))
}

func TestJSONHandler(t *testing.T) {
	var got []CompletionRequest
	handler := JSONHandler(nil, func(_ context.Context, req CompletionRequest) error {
		got = append(got, req)
		return nil
	})

	require.NoError(t, handler(context.Background(), kafka.Message{Value: []byte(`{"reservation_id":"r-1"}`)}))
	require.NoError(t, handler(context.Background(), kafka.Message{Value: []byte(`not json`)}))
	assert.Equal(t, []CompletionRequest{{ReservationID: "r-1"}}, got)

	boom := errors.New("boom")
	failing := JSONHandler(nil, func(context.Context, CompletionRequest) error { return boom })
	assert.ErrorIs(t, failing(context.Background(), kafka.Message{Value: []byte(`{}`)}), boom)
}

func TestProducer_CheckConnectionWithoutBrokers(t *testing.T) {
	p := NewProducer(nil, nil)
	defer p.Close()
	assert.Error(t, p.CheckConnection(context.Background()))
}

func TestRetry(t *testing.T) {
	boom := errors.New("broker unavailable")

	t.Run("succeeds after failures", func(t *testing.T) {
		var attempts []int
		err := retry(context.Background(), 3, time.Millisecond, func(_ context.Context, attempt int) error {
			attempts = append(attempts, attempt)
			if attempt < 3 {
				return boom
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, []int{1, 2, 3}, attempts)
	})

	t.Run("gives up after the last attempt", func(t *testing.T) {
		calls := 0
		err := retry(context.Background(), 2, time.Millisecond, func(context.Context, int) error {
			calls++
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 2, calls)
	})

	t.Run("at least one attempt", func(t *testing.T) {
		calls := 0
		err := retry(context.Background(), 0, time.Millisecond, func(context.Context, int) error {
			calls++
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("stops waiting when context ends", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := retry(ctx, 5, time.Hour, func(context.Context, int) error {
			calls++
			cancel()
			return boom
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}

func TestRetryingProducer_CancelledContext(t *testing.T) {
	p := NewProducer([]string{"127.0.0.1:1"}, nil)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.WithRetries(3).Publish(ctx, "reservation_events", "r-1", ReservationEvent{Type: EventReservationCompleted})
	assert.ErrorIs(t, err, context.Canceled)
}
