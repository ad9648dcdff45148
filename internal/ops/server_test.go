package ops

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	logx "tubewatch/pkg/logx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, target string, hdr map[string]string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	b, _ := io.ReadAll(rec.Body)
	return rec.Code, string(b)
}

func TestEndpoints(t *testing.T) {
	t.Parallel()
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("m 1")) })
	s := New(Config{Pprof: true}, Sources{
		Status:  func() any { return map[string]int{"passes": 3} },
		Metrics: metrics,
	}, logx.Nop())
	h := s.Handler()

	code, body := get(t, h, "/healthz", nil)
	assert.Equal(t, 200, code)
	assert.Equal(t, "ok", body)

	code, body = get(t, h, "/status", nil)
	assert.Equal(t, 200, code)
	assert.JSONEq(t, `{"passes":3}`, body)

	code, body = get(t, h, "/metrics", nil)
	assert.Equal(t, 200, code)
	assert.Equal(t, "m 1", body)

	code, _ = get(t, h, "/debug/pprof/", nil)
	assert.Equal(t, 200, code)
}

func TestHealthFailure(t *testing.T) {
	t.Parallel()
	s := New(Config{}, Sources{Health: func() error { return errors.New("no pass yet") }}, logx.Nop())
	code, body := get(t, s.Handler(), "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body, "no pass yet")

	code, _ = get(t, s.Handler(), "/debug/pprof/", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestTokenAuth(t *testing.T) {
	t.Parallel()
	h := New(Config{Token: "s3cret"}, Sources{}, logx.Nop()).Handler()

	code, _ := get(t, h, "/healthz", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = get(t, h, "/healthz?token=wrong", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = get(t, h, "/healthz?token=s3cret", nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = get(t, h, "/healthz", map[string]string{"Authorization": "Bearer s3cret"})
	assert.Equal(t, http.StatusOK, code)
}

func TestCustomPprofPrefix(t *testing.T) {
	t.Parallel()
	h := New(Config{Pprof: true, PprofPrefix: "ops/pprof"}, Sources{}, logx.Nop()).Handler()
	code, body := get(t, h, "/ops/pprof/", nil)
	assert.Equal(t, 200, code)
	assert.Contains(t, body, "goroutine")
}

func TestServeRefusesInsecureBind(t *testing.T) {
	t.Parallel()
	err := New(Config{Addr: "0.0.0.0:0"}, Sources{}, logx.Nop()).Serve(context.Background())
	assert.ErrorIs(t, err, ErrInsecureBind)
}

func TestServeStopsOnCancel(t *testing.T) {
	t.Parallel()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := New(Config{}, Sources{}, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.serveOn(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == 200
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestIsLoopbackAddr(t *testing.T) {
	t.Parallel()
	assert.True(t, isLoopbackAddr("127.0.0.1:9464"))
	assert.True(t, isLoopbackAddr("localhost:1"))
	assert.True(t, isLoopbackAddr("[::1]:1"))
	assert.False(t, isLoopbackAddr(":9464"))
	assert.False(t, isLoopbackAddr("10.0.0.1:9464"))
	assert.False(t, isLoopbackAddr("nonsense"))
}
