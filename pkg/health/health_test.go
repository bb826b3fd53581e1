package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func passing(context.Context) error { return nil }

type probeBody struct {
	status string
	checks map[string]string
}

func decode(t *testing.T, w *httptest.ResponseRecorder) probeBody {
	t.Helper()
	b := probeBody{checks: map[string]string{}}
	err := jx.DecodeBytes(w.Body.Bytes()).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "status":
			v, err := d.Str()
			b.status = v
			return err
		case "checks":
			return d.Obj(func(d *jx.Decoder, name string) error {
				v, err := d.Str()
				b.checks[name] = v
				return err
			})
		default:
			return d.Skip()
		}
	})
	require.NoError(t, err)
	return b
}

func serve(h http.HandlerFunc) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w
}

func onlyState(h *Health, p Probe) *state { return h.checks[p][0] }

func TestLiveEndpoint(t *testing.T) {
	h := New()
	h.Register(Liveness, Check{Name: "goroutines", Func: passing})

	w := serve(h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "ok", decode(t, w).status)
}

func TestFailureThreshold(t *testing.T) {
	h := New()
	h.Register(Liveness, Check{Name: "postgres", Func: failing("connection refused")})
	s := onlyState(h, Liveness)
	ctx := context.Background()

	s.run(ctx)
	s.run(ctx)
	assert.Equal(t, http.StatusOK, serve(h.LiveEndpoint).Code, "below threshold")

	s.run(ctx)
	w := serve(h.LiveEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode(t, w)
	assert.Equal(t, "unhealthy", body.status)
	assert.Equal(t, "connection refused", body.checks["postgres"])
}

func TestRecoveryOnFirstSuccess(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	h := New()
	h.Register(Readiness, Check{Name: "redis", FailureThreshold: 1, Func: func(context.Context) error {
		if fail.Load() {
			return errors.New("down")
		}
		return nil
	}})
	h.SetReady(true)
	s := onlyState(h, Readiness)

	s.run(context.Background())
	assert.False(t, h.IsReady())

	fail.Store(false)
	s.run(context.Background())
	assert.True(t, h.IsReady())
}

func TestReadyEndpoint(t *testing.T) {
	h := New()
	h.Register(Readiness, Check{Name: "postgres", Func: passing})
	h.Register(Readiness, Check{Name: "kafka", FailureThreshold: 1, Func: failing("no brokers")})

	w := serve(h.ReadyEndpoint)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "service is not ready", decode(t, w).checks["_readiness"])

	h.SetReady(true)
	assert.Equal(t, http.StatusOK, serve(h.ReadyEndpoint).Code)

	h.checks[Readiness][1].run(context.Background())
	w = serve(h.ReadyEndpoint)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode(t, w)
	assert.Equal(t, map[string]string{"kafka": "no brokers"}, body.checks)
}

func TestRun(t *testing.T) {
	var calls atomic.Int32
	h := New()
	h.Register(Readiness, Check{Name: "db", Func: func(context.Context) error {
		calls.Add(1)
		return nil
	}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx, 5*time.Millisecond) }()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestCheckers(t *testing.T) {
	ctx := context.Background()

	require.NoError(t, Ping(pingerFunc(passing))(ctx))
	require.EqualError(t, Ping(pingerFunc(failing("timeout")))(ctx), "timeout")

	require.NoError(t, GoroutineCount(1_000_000)(ctx))
	require.Error(t, GoroutineCount(0)(ctx))

	require.ErrorContains(t, KafkaBrokers(nil)(ctx), "no brokers")
}
