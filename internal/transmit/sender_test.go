package transmit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// flakyServer fails the first failures requests with 503, then succeeds.
func flakyServer(t *testing.T, failures int32) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n <= failures {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestSendSucceedsOnThirdAttempt(t *testing.T) {
	srv, calls := flakyServer(t, 2)
	s := NewSender(WithPolicy(NoDelay()))

	ok := s.Send(context.Background(), srv.URL, map[string]string{"a": "b"}, nil, 3)
	assert.True(t, ok)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSendExhaustsBudget(t *testing.T) {
	srv, calls := flakyServer(t, 2)
	s := NewSender(WithPolicy(NoDelay()))

	ok := s.Send(context.Background(), srv.URL, map[string]string{"a": "b"}, nil, 2)
	assert.False(t, ok)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSendMinimumOneAttempt(t *testing.T) {
	srv, calls := flakyServer(t, 0)
	s := NewSender(WithPolicy(NoDelay()))

	assert.True(t, s.Send(context.Background(), srv.URL, "x", nil, 0))
	assert.Equal(t, int32(1), calls.Load())
}

func TestSendHeadersAndBody(t *testing.T) {
	type payload struct {
		ReportID string `json:"report_id"`
	}
	var got payload
	var auth, contentType, extra string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		auth = r.Header.Get("Authorization")
		contentType = r.Header.Get("Content-Type")
		extra = r.Header.Get("X-Case")
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewSender(WithBearerToken("secret"), WithPolicy(NoDelay()))
	ok := s.Send(context.Background(), srv.URL, payload{ReportID: "r1"}, map[string]string{"X-Case": "nola"}, 1)

	require.True(t, ok)
	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, "nola", extra)
	assert.Equal(t, "r1", got.ReportID)
}

func TestSendConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	core, logs := observer.New(zap.WarnLevel)
	s := NewSender(WithPolicy(NoDelay()), WithLogger(zap.New(core)))

	assert.False(t, s.Send(context.Background(), url, "x", nil, 2))
	assert.Equal(t, 2, logs.FilterMessage("delivery attempt failed").Len())
	require.Equal(t, 1, logs.FilterMessage("delivery failed, attempts exhausted").Len())

	entry := logs.FilterMessage("delivery failed, attempts exhausted").All()[0]
	assert.Equal(t, url, entry.ContextMap()["endpoint"])
}

func TestSendTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	s := NewSender(WithPolicy(NoDelay()), WithTimeout(20*time.Millisecond))
	assert.False(t, s.Send(context.Background(), srv.URL, "x", nil, 2))
}

func TestSendStopsOnCancel(t *testing.T) {
	srv, calls := flakyServer(t, 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewSender(WithPolicy(Policy{InitialDelay: time.Hour}))
	assert.False(t, s.Send(ctx, srv.URL, "x", nil, 3))
	assert.LessOrEqual(t, calls.Load(), int32(1))
}

func TestSendToAllIsolatesFailures(t *testing.T) {
	good1, _ := flakyServer(t, 0)
	good2, _ := flakyServer(t, 1)
	bad, badCalls := flakyServer(t, 1000)

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	s := NewSender(WithPolicy(NoDelay()), WithMetrics(m))

	results := s.SendToAll(context.Background(), []string{good1.URL, bad.URL, good2.URL}, map[string]int{"n": 1}, nil)

	assert.Equal(t, map[string]bool{good1.URL: true, bad.URL: false, good2.URL: true}, results)
	assert.Equal(t, int32(DefaultMaxAttempts), badCalls.Load())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.deliveries.WithLabelValues("delivered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deliveries.WithLabelValues("exhausted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.attempts.WithLabelValues("success")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.attempts.WithLabelValues("failure")))
}

func TestSendToAllEmpty(t *testing.T) {
	s := NewSender()
	assert.Empty(t, s.SendToAll(context.Background(), nil, "x", nil))
}

func TestSendUnencodablePayload(t *testing.T) {
	srv, calls := flakyServer(t, 0)
	s := NewSender(WithPolicy(NoDelay()))

	assert.False(t, s.Send(context.Background(), srv.URL, make(chan int), nil, 3))
	assert.Equal(t, int32(0), calls.Load())
}

func TestTimeoutDoesNotMutateSharedClient(t *testing.T) {
	shared := &http.Client{Timeout: time.Minute}

	before := NewSender(WithTimeout(time.Second), WithHTTPClient(shared))
	after := NewSender(WithHTTPClient(shared), WithTimeout(time.Second))

	assert.Equal(t, time.Minute, shared.Timeout)
	assert.Equal(t, time.Second, before.client.Timeout)
	assert.Equal(t, time.Second, after.client.Timeout)
}

func TestSendToAllDeliversDuplicateEndpointOnce(t *testing.T) {
	srv, calls := flakyServer(t, 0)
	s := NewSender(WithPolicy(NoDelay()))

	results := s.SendToAll(context.Background(), []string{srv.URL, srv.URL}, "x", nil)
	assert.Equal(t, map[string]bool{srv.URL: true}, results)
	assert.Equal(t, int32(1), calls.Load())
}
