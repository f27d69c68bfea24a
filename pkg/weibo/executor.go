package weibo

import (
	goerrors "errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"weibocrawl/pkg/config"
	"weibocrawl/pkg/errors"
	"weibocrawl/pkg/logger"
	"weibocrawl/pkg/proxy"
)

// Request describes one logical outbound API call.
type Request struct {
	URL    string
	Params url.Values
}

// Options control a single Execute call.
type Options struct {
	// UseProxy asks the pool for an egress address. An empty pool
	// degrades to a direct call, it never fails the request.
	UseProxy bool
	// MaxRetries bounds retries; total attempts = MaxRetries + 1.
	// Negative values fall back to the configured default.
	MaxRetries int
	// Timeout overrides the configured per-attempt timeout when > 0.
	Timeout time.Duration
}

// DefaultOptions returns the options every endpoint method starts from.
func (e *Executor) DefaultOptions() Options {
	return Options{
		UseProxy:   true,
		MaxRetries: e.cfg.MaxRetries,
		Timeout:    e.cfg.Timeout,
	}
}

// Executor performs one logical outbound operation with pacing, proxying,
// and resilience to transient and rate-limit failures. It is synchronous:
// a call occupies its goroutine through the round-trip and any backoff
// sleeps. Callers needing throughput run Execute on separate goroutines.
type Executor struct {
	client  *http.Client
	headers map[string]string
	pool    *proxy.Pool
	cfg     config.RequestConfig
	logger  logger.Logger

	mu    sync.Mutex
	rng   *rand.Rand
	sleep func(time.Duration)
}

// NewExecutor creates a request executor. The pool may be nil, in which
// case every call goes out directly.
func NewExecutor(cfg config.RequestConfig, pool *proxy.Pool, log logger.Logger) *Executor {
	if log == nil {
		log = logger.GetLogger()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 3
	}

	return &Executor{
		client:  &http.Client{Timeout: cfg.Timeout},
		headers: make(map[string]string),
		pool:    pool,
		cfg:     cfg,
		logger:  log,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:   time.Sleep,
	}
}

// SetHeader sets a header applied to every outbound request.
func (e *Executor) SetHeader(key, value string) {
	e.headers[key] = value
}

// SetHeaders sets multiple headers at once.
func (e *Executor) SetHeaders(headers map[string]string) {
	for key, value := range headers {
		e.headers[key] = value
	}
}

// Pool returns the proxy pool the executor selects addresses from.
func (e *Executor) Pool() *proxy.Pool {
	return e.pool
}

// Execute performs the request with bounded retries and randomized
// backoff. Retryable failures are absorbed; only the final retry-exhausted
// failure surfaces, annotated with the failure kind and attempt count.
func (e *Executor) Execute(req Request, opts Options) ([]byte, error) {
	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = e.cfg.MaxRetries
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = e.cfg.Timeout
	}

	client := e.clientFor(e.acquireProxy(opts), timeout)

	requestURL := req.URL
	if len(req.Params) > 0 {
		requestURL = fmt.Sprintf("%s?%s", req.URL, req.Params.Encode())
	}

	var lastErr *errors.Error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		payload, err := e.attempt(client, requestURL)
		if err == nil {
			if attempt > 0 {
				e.logger.DebugWithFields("request succeeded after retry", map[string]interface{}{
					"url":     req.URL,
					"attempt": attempt + 1,
				})
			}
			return payload, nil
		}

		if !goerrors.As(err, &lastErr) {
			lastErr = errors.Wrap(errors.ErrorTypeUnknown, 0, err, err.Error())
		}

		if attempt == maxRetries {
			break
		}

		window := e.cfg.TransportBackoff
		if lastErr.Type == errors.ErrorTypeRateLimit {
			window = e.cfg.RateLimitBackoff
		}
		delay := e.randomDelay(window)

		e.logger.WarnWithFields("request failed, backing off before retry", map[string]interface{}{
			"url":      req.URL,
			"attempt":  attempt + 1,
			"kind":     string(lastErr.Type),
			"delay_ms": delay.Milliseconds(),
			"error":    lastErr.Message,
		})
		e.sleep(delay)
	}

	lastErr.Attempts = maxRetries + 1
	e.logger.ErrorWithFields("request failed after exhausting retries", map[string]interface{}{
		"url":      req.URL,
		"attempts": lastErr.Attempts,
		"kind":     string(lastErr.Type),
		"error":    lastErr.Message,
	})
	return nil, lastErr
}

// ExecuteJSON performs the request and decodes the payload into target.
func (e *Executor) ExecuteJSON(req Request, opts Options, target interface{}) error {
	payload, err := e.Execute(req, opts)
	if err != nil {
		return err
	}
	if err := decodeJSON(payload, target); err != nil {
		e.logger.ErrorWithFields("failed to parse response payload", map[string]interface{}{
			"url":   req.URL,
			"error": err.Error(),
		})
		return err
	}
	return nil
}

// acquireProxy selects an egress address when requested. A depleted pool
// is a degraded-mode signal, not an error.
func (e *Executor) acquireProxy(opts Options) *url.URL {
	if !opts.UseProxy || e.pool == nil || !e.pool.Enabled() {
		return nil
	}

	address, err := e.pool.Acquire()
	if err != nil {
		if goerrors.Is(err, proxy.ErrNoProxyAvailable) {
			e.logger.Warn("proxy pool empty, proceeding without proxy")
		} else {
			e.logger.WithError(err).Warn("proxy acquisition failed, proceeding without proxy")
		}
		return nil
	}

	proxyURL, err := url.Parse(address)
	if err != nil {
		e.logger.WarnWithFields("unparseable proxy address, proceeding without proxy", map[string]interface{}{
			"address": address,
			"error":   err.Error(),
		})
		return nil
	}

	e.logger.DebugWithFields("using proxy", map[string]interface{}{
		"address": address,
	})
	return proxyURL
}

// clientFor returns the base client, or a per-call client routed through
// the acquired proxy.
func (e *Executor) clientFor(proxyURL *url.URL, timeout time.Duration) *http.Client {
	if proxyURL == nil && timeout == e.cfg.Timeout {
		return e.client
	}
	client := &http.Client{Timeout: timeout}
	if proxyURL != nil {
		client.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}
	return client
}

// attempt issues one outbound call and classifies the outcome.
func (e *Executor) attempt(client *http.Client, requestURL string) ([]byte, error) {
	httpReq, err := http.NewRequest(http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeUnknown, 0, err, fmt.Sprintf("failed to create request: %v", err))
	}
	for key, value := range e.headers {
		httpReq.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeNetwork, 0, err, fmt.Sprintf("request failed: %v", err))
	}
	defer resp.Body.Close()

	e.logger.DebugWithFields("request completed", map[string]interface{}{
		"url":      requestURL,
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
	})

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, errors.Wrap(errors.ErrorTypeNetwork, resp.StatusCode, err, "failed to read response body")
		}
		return body, nil
	case resp.StatusCode == StatusAntiCrawlerBlock || resp.StatusCode == http.StatusTooManyRequests:
		return nil, errors.New(errors.ErrorTypeRateLimit, resp.StatusCode,
			fmt.Sprintf("anti-crawler block (status %d)", resp.StatusCode))
	case resp.StatusCode >= 500:
		return nil, errors.New(errors.ErrorTypeServerError, resp.StatusCode,
			fmt.Sprintf("server returned status %d", resp.StatusCode))
	default:
		return nil, errors.New(errors.ErrorTypeNetwork, resp.StatusCode,
			fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}
}

// randomDelay draws a duration uniformly from the window.
func (e *Executor) randomDelay(w config.Window) time.Duration {
	if w.IsZero() {
		return 0
	}
	span := w.Max - w.Min
	if span <= 0 {
		return w.Min
	}
	e.mu.Lock()
	offset := time.Duration(e.rng.Int63n(int64(span) + 1))
	e.mu.Unlock()
	return w.Min + offset
}

// sleepWindow pauses for a random duration in the window. Used by the
// client for pre-request pacing.
func (e *Executor) sleepWindow(w config.Window) {
	if delay := e.randomDelay(w); delay > 0 {
		e.sleep(delay)
	}
}

// Pace pauses for a random duration in the window. Callers driving their
// own page loops use this to keep the inter-page rhythm.
func (e *Executor) Pace(w config.Window) {
	e.sleepWindow(w)
}
