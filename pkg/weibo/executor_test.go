package weibo

import (
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weibocrawl/pkg/config"
	"weibocrawl/pkg/errors"
	"weibocrawl/pkg/logger"
	"weibocrawl/pkg/proxy"
)

func testRequestConfig() config.RequestConfig {
	return config.RequestConfig{
		Timeout:          5 * time.Second,
		MaxRetries:       3,
		RateLimitBackoff: config.Window{Min: 4 * time.Second, Max: 7 * time.Second},
		TransportBackoff: config.Window{Min: 2 * time.Second, Max: 5 * time.Second},
	}
}

// newTestExecutor wires an executor with a deterministic rng and a sleep
// recorder so tests observe backoff without waiting.
func newTestExecutor(cfg config.RequestConfig, pool *proxy.Pool) (*Executor, *[]time.Duration) {
	e := NewExecutor(cfg, pool, logger.NewTestLogger())
	e.rng = rand.New(rand.NewSource(1))
	slept := &[]time.Duration{}
	e.sleep = func(d time.Duration) {
		*slept = append(*slept, d)
	}
	return e, slept
}

func TestExecuteSuccessFirstAttempt(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"ok": 1}`))
	}))
	defer server.Close()

	e, slept := newTestExecutor(testRequestConfig(), nil)

	payload, err := e.Execute(Request{URL: server.URL}, Options{})
	require.NoError(t, err)
	assert.Equal(t, `{"ok": 1}`, string(payload))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Empty(t, *slept, "success must not sleep")
}

func TestExecuteRetriesExhaustedOnRateLimit(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(StatusAntiCrawlerBlock)
	}))
	defer server.Close()

	cfg := testRequestConfig()
	e, slept := newTestExecutor(cfg, nil)

	_, err := e.Execute(Request{URL: server.URL}, Options{MaxRetries: cfg.MaxRetries})
	require.Error(t, err)

	// maxRetries of 3 means 4 total attempts, and no sleep after the
	// final failed attempt.
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
	assert.Len(t, *slept, 3)

	var werr *errors.Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, errors.ErrorTypeRateLimit, werr.Type)
	assert.Equal(t, StatusAntiCrawlerBlock, werr.Code)
	assert.Equal(t, 4, werr.Attempts)

	for _, d := range *slept {
		assert.GreaterOrEqual(t, d, 4*time.Second)
		assert.LessOrEqual(t, d, 7*time.Second)
	}
}

func TestExecuteRecoversAfterServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("recovered"))
	}))
	defer server.Close()

	e, slept := newTestExecutor(testRequestConfig(), nil)

	payload, err := e.Execute(Request{URL: server.URL}, Options{MaxRetries: 3})
	require.NoError(t, err)
	assert.Equal(t, "recovered", string(payload))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	// One backoff, drawn from the transport window.
	require.Len(t, *slept, 1)
	assert.GreaterOrEqual(t, (*slept)[0], 2*time.Second)
	assert.LessOrEqual(t, (*slept)[0], 5*time.Second)
}

func TestExecuteTooManyRequestsUsesRateLimitWindow(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	e, slept := newTestExecutor(testRequestConfig(), nil)

	_, err := e.Execute(Request{URL: server.URL}, Options{MaxRetries: 1})
	require.NoError(t, err)
	require.Len(t, *slept, 1)
	assert.GreaterOrEqual(t, (*slept)[0], 4*time.Second)
}

func TestExecuteTransportErrorClassifiedAsNetwork(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	e, _ := newTestExecutor(testRequestConfig(), nil)

	_, err := e.Execute(Request{URL: server.URL}, Options{MaxRetries: 1})
	require.Error(t, err)

	var werr *errors.Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, errors.ErrorTypeNetwork, werr.Type)
	assert.Equal(t, 2, werr.Attempts)
}

func TestExecuteZeroRetriesMeansSingleAttempt(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	e, slept := newTestExecutor(testRequestConfig(), nil)

	_, err := e.Execute(Request{URL: server.URL}, Options{MaxRetries: 0})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Empty(t, *slept)

	var werr *errors.Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, errors.ErrorTypeServerError, werr.Type)
	assert.Equal(t, 1, werr.Attempts)
}

func TestExecuteAppendsParams(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	e, _ := newTestExecutor(testRequestConfig(), nil)

	req := ProfileRequest(server.URL, "12345")
	_, err := e.Execute(req, Options{})
	require.NoError(t, err)
	assert.Contains(t, gotQuery, "containerid=10050512345")
}

func TestExecuteSendsHeaders(t *testing.T) {
	var gotUA, gotCookie string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotCookie = r.Header.Get("Cookie")
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	e, _ := newTestExecutor(testRequestConfig(), nil)
	e.SetHeaders(map[string]string{"User-Agent": "test-agent"})
	e.SetHeader("Cookie", "SUB=abc")

	_, err := e.Execute(Request{URL: server.URL}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "test-agent", gotUA)
	assert.Equal(t, "SUB=abc", gotCookie)
}

func TestExecuteWithEmptyPoolProceedsDirect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("direct"))
	}))
	defer server.Close()

	log := logger.NewTestLogger()
	pool := proxy.New(proxy.Config{PoolSize: 3}, log)
	e := NewExecutor(testRequestConfig(), pool, log)
	e.sleep = func(time.Duration) {}

	payload, err := e.Execute(Request{URL: server.URL}, Options{UseProxy: true})
	require.NoError(t, err)
	assert.Equal(t, "direct", string(payload))
}

func TestExecuteJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok": 1, "data": {"value": 42}}`))
	}))
	defer server.Close()

	e, _ := newTestExecutor(testRequestConfig(), nil)

	var target struct {
		OK   int `json:"ok"`
		Data struct {
			Value int `json:"value"`
		} `json:"data"`
	}
	require.NoError(t, e.ExecuteJSON(Request{URL: server.URL}, Options{}, &target))
	assert.Equal(t, 1, target.OK)
	assert.Equal(t, 42, target.Data.Value)
}

func TestExecuteJSONParseError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	}))
	defer server.Close()

	e, _ := newTestExecutor(testRequestConfig(), nil)

	var target map[string]interface{}
	err := e.ExecuteJSON(Request{URL: server.URL}, Options{}, &target)
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeParsing, errors.TypeOf(err))
}

func TestRandomDelayWithinWindow(t *testing.T) {
	e, _ := newTestExecutor(testRequestConfig(), nil)

	w := config.Window{Min: 2 * time.Second, Max: 5 * time.Second}
	for i := 0; i < 100; i++ {
		d := e.randomDelay(w)
		assert.GreaterOrEqual(t, d, 2*time.Second)
		assert.LessOrEqual(t, d, 5*time.Second)
	}

	assert.Equal(t, time.Duration(0), e.randomDelay(config.Window{}))
	assert.Equal(t, time.Second, e.randomDelay(config.Window{Min: time.Second, Max: time.Second}))
}

func TestDefaultOptions(t *testing.T) {
	e, _ := newTestExecutor(testRequestConfig(), nil)

	opts := e.DefaultOptions()
	assert.True(t, opts.UseProxy)
	assert.Equal(t, 3, opts.MaxRetries)
	assert.Equal(t, 5*time.Second, opts.Timeout)
}
