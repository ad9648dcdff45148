package observability

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"tubewatch/internal/eventbus"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	t.Parallel()
	m := NewMetrics()

	m.Observe(eventbus.Event{Type: eventbus.TypeItemDetected, Data: eventbus.ProbeEvent{Channel: "A", ItemID: "v1"}})
	m.Observe(eventbus.Event{Type: eventbus.TypeProbeRateLimited, Data: eventbus.ProbeEvent{Channel: "B", Status: 403}})
	m.Observe(eventbus.Event{Type: eventbus.TypeNotifierSent, Data: eventbus.DeliveryEvent{Channel: "A", Took: 20 * time.Millisecond}})
	m.Observe(eventbus.Event{Type: eventbus.TypeNotifierFailed, Data: eventbus.DeliveryEvent{Channel: "A", Error: "x"}})
	m.Observe(eventbus.Event{Type: eventbus.TypeSaveFailed, Data: eventbus.PassEvent{SaveErr: "disk full"}})
	m.Observe(eventbus.Event{Type: eventbus.TypePassCompleted, Time: time.Unix(1700000000, 0), Data: eventbus.PassEvent{Fault: "boom"}})
	m.Observe(eventbus.Event{Type: eventbus.TypeSupervisorFailure, Data: eventbus.TaskFailure{Task: "ops"}})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ItemsDetected.WithLabelValues("A")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProbesTotal.WithLabelValues("B", "rate_limited")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("A", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("A", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SaveFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PassesTotal.WithLabelValues("fault")))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(m.LastPassTimestamp))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TaskFailures.WithLabelValues("ops")))
}

func TestConsumeAndHandler(t *testing.T) {
	t.Parallel()
	m := NewMetrics()
	bus := eventbus.New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Consume(ctx, bus) }()

	require.Eventually(t, func() bool {
		bus.Publish(eventbus.Event{Type: eventbus.TypeSaveFailed, Data: eventbus.PassEvent{}})
		return testutil.ToFloat64(m.SaveFailures) > 0
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "tubewatch_watch_save_failures_total")
	assert.Contains(t, string(body), "go_goroutines")
}
