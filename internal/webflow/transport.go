package webflow

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// Limit is a request rate with a burst capacity.
type Limit struct {
	RPS   float64
	Burst int
}

// DefaultLimit matches the Data API's 60 requests per minute tier with a
// little headroom for bursts.
var DefaultLimit = Limit{RPS: 2, Burst: 4}

// TransportOptions configures the retrying, rate-limited transport.
type TransportOptions struct {
	RetryMax    int
	BackoffBase time.Duration
	BackoffCap  time.Duration
	JitterFn    func(base time.Duration, attempt int) time.Duration
	Clock       Clock
	Metrics     *Metrics

	// Per-host limits keyed by req.URL.Host. DefaultLimit applies otherwise.
	HostLimits map[string]Limit
}

// DefaultTransportOptionsFromEnv returns defaults for the Webflow Data API,
// tuned through WF_RPS, WF_BURST, WF_RETRY_MAX, WF_RETRY_BASE_MS and
// WF_RETRY_CAP_MS.
func DefaultTransportOptionsFromEnv() TransportOptions {
	lim := DefaultLimit
	if v := strings.TrimSpace(os.Getenv("WF_RPS")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			lim.RPS = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("WF_BURST")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			lim.Burst = n
		}
	}

	retryMax := 4
	if v := strings.TrimSpace(os.Getenv("WF_RETRY_MAX")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			retryMax = n
		}
	}
	backoffBase := 500 * time.Millisecond
	if v := strings.TrimSpace(os.Getenv("WF_RETRY_BASE_MS")); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
			backoffBase = time.Duration(ms) * time.Millisecond
		}
	}
	backoffCap := 30 * time.Second
	if v := strings.TrimSpace(os.Getenv("WF_RETRY_CAP_MS")); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			backoffCap = time.Duration(ms) * time.Millisecond
		}
	}

	return TransportOptions{
		RetryMax:    retryMax,
		BackoffBase: backoffBase,
		BackoffCap:  backoffCap,
		Clock:       realClock{},
		JitterFn: func(base time.Duration, _ int) time.Duration {
			if base <= 0 {
				return 0
			}
			return time.Duration(rand.Int63n(base.Nanoseconds()))
		},
		Metrics: NewMetrics(),
		HostLimits: map[string]Limit{
			"api.webflow.com": lim,
		},
	}
}

// RetryingLimiterTransport wraps a base RoundTripper with per-host rate
// limiting and retries on 429 and transient 5xx responses.
type RetryingLimiterTransport struct {
	Base     http.RoundTripper
	Opts     TransportOptions
	limMu    sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewRetryingLimiterTransport(opts TransportOptions) *RetryingLimiterTransport {
	return &RetryingLimiterTransport{Opts: opts, limiters: make(map[string]*rate.Limiter)}
}

func (t *RetryingLimiterTransport) limitFor(host string) Limit {
	if lim, ok := t.Opts.HostLimits[host]; ok && lim.RPS > 0 {
		return lim
	}
	return DefaultLimit
}

func (t *RetryingLimiterTransport) getLimiter(host string) *rate.Limiter {
	t.limMu.Lock()
	defer t.limMu.Unlock()
	if l, ok := t.limiters[host]; ok {
		return l
	}
	lim := t.limitFor(host)
	l := rate.NewLimiter(rate.Limit(lim.RPS), max(1, lim.Burst))
	t.limiters[host] = l
	return l
}

// wait reserves a token at the transport clock's time and sleeps for the
// reservation delay, so fake clocks drive the limiter too.
func (t *RetryingLimiterTransport) wait(ctx context.Context, l *rate.Limiter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := t.clock().Now()
	r := l.ReserveN(now, 1)
	if !r.OK() {
		return errors.New("rate limiter cannot grant a token")
	}
	if d := r.DelayFrom(now); d > 0 {
		t.clock().Sleep(d)
	}
	return ctx.Err()
}

// adjustRPS nudges the limiter rate within [floor, ceiling].
func (t *RetryingLimiterTransport) adjustRPS(l *rate.Limiter, host string, delta float64) {
	ceiling := t.limitFor(host).RPS
	floor := math.Min(0.5, ceiling)
	next := math.Max(floor, math.Min(ceiling, float64(l.Limit())+delta))
	l.SetLimitAt(t.clock().Now(), rate.Limit(next))
}

func (t *RetryingLimiterTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *RetryingLimiterTransport) clock() Clock {
	if t.Opts.Clock != nil {
		return t.Opts.Clock
	}
	return realClock{}
}

func (t *RetryingLimiterTransport) jitter(base time.Duration, attempt int) time.Duration {
	if t.Opts.JitterFn != nil {
		return t.Opts.JitterFn(base, attempt)
	}
	return 0
}

// ensureGetBody makes a write request body replayable across retries.
func ensureGetBody(req *http.Request) error {
	if req.Body == nil || req.GetBody != nil {
		return nil
	}
	if req.Method != http.MethodPost && req.Method != http.MethodPut && req.Method != http.MethodPatch {
		return nil
	}
	buf, err := io.ReadAll(req.Body)
	if err != nil {
		return err
	}
	req.Body.Close()
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(buf)), nil
	}
	req.Body = io.NopCloser(bytes.NewReader(buf))
	return nil
}

func (t *RetryingLimiterTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := ensureGetBody(req); err != nil {
		return nil, err
	}

	host := req.URL.Host
	lim := t.getLimiter(host)
	if t.Opts.Metrics != nil {
		t.Opts.Metrics.IncRequest(host, req.Method)
	}

	attempts := max(1, t.Opts.RetryMax+1)
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := t.wait(req.Context(), lim); err != nil {
			return nil, err
		}

		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			req.Body = body
		}

		resp, err := t.base().RoundTrip(req)
		if err != nil {
			if isTransientNetErr(err) && attempt < attempts-1 {
				lastErr = err
				if rc := getRetryCounters(req.Context()); rc != nil {
					rc.Total++
					rc.Net++
				}
				t.sleepBackoff(attempt)
				t.adjustRPS(lim, host, -0.1)
				continue
			}
			return nil, err
		}

		if t.Opts.Metrics != nil {
			t.Opts.Metrics.IncStatus(resp.StatusCode)
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			t.adjustRPS(lim, host, +0.02)
		}

		if shouldRetryStatus(resp.StatusCode) && attempt < attempts-1 {
			resp.Body.Close()
			if rc := getRetryCounters(req.Context()); rc != nil {
				rc.Total++
				if resp.StatusCode == http.StatusTooManyRequests {
					rc.Status429++
				} else {
					rc.Status5xx++
				}
			}
			if t.Opts.Metrics != nil {
				t.Opts.Metrics.IncRetry()
			}
			if ra := parseRetryAfter(resp.Header.Get("Retry-After"), t.clock().Now()); ra > 0 {
				wait := minDur(ra, t.backoffCap())
				if t.Opts.Metrics != nil {
					t.Opts.Metrics.AddBackoff(wait)
				}
				t.adjustRPS(lim, host, -0.3)
				t.clock().Sleep(wait)
				continue
			}
			t.sleepBackoff(attempt)
			t.adjustRPS(lim, host, -0.2)
			continue
		}

		return resp, nil
	}
	if lastErr == nil {
		lastErr = errors.New("max retries exceeded")
	}
	return nil, lastErr
}

func (t *RetryingLimiterTransport) backoffCap() time.Duration {
	if t.Opts.BackoffCap > 0 {
		return t.Opts.BackoffCap
	}
	return 30 * time.Second
}

func (t *RetryingLimiterTransport) sleepBackoff(attempt int) {
	base := t.Opts.BackoffBase
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	ceiling := t.backoffCap()
	delay := minDur(time.Duration(float64(base)*math.Pow(2, float64(attempt))), ceiling)
	d := minDur(delay+t.jitter(delay, attempt), ceiling)
	t.clock().Sleep(d)
	if t.Opts.Metrics != nil {
		t.Opts.Metrics.AddBackoff(d)
	}
}

func isTransientNetErr(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "temporary") ||
		strings.Contains(msg, "connection reset")
}

func shouldRetryStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable || code == http.StatusGatewayTimeout
}

func parseRetryAfter(h string, now time.Time) time.Duration {
	h = strings.TrimSpace(h)
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(h); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if when, err := http.ParseTime(h); err == nil {
		if d := when.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func minDur(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
