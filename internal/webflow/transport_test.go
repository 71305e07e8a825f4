package webflow

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// fakeClock allows deterministic control of time passage.
type fakeClock struct {
	now   time.Time
	slept time.Duration
}

func newFakeClock() *fakeClock              { return &fakeClock{now: time.Unix(0, 0)} }
func (fc *fakeClock) Now() time.Time        { return fc.now }
func (fc *fakeClock) Sleep(d time.Duration) { fc.now = fc.now.Add(d); fc.slept += d }

// fakeRT returns a queued series of responses or errors.
type fakeRT struct {
	calls  atomic.Int64
	queue  []any // *http.Response or error
	bodies []string
}

func (frt *fakeRT) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		frt.bodies = append(frt.bodies, string(b))
	}
	idx := frt.calls.Add(1) - 1
	if int(idx) >= len(frt.queue) {
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
	}
	switch item := frt.queue[idx].(type) {
	case *http.Response:
		if item.Body == nil {
			item.Body = http.NoBody
		}
		return item, nil
	case error:
		return nil, item
	}
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
}

const apiHost = "api.webflow.com"

func testOptions(fc *fakeClock, retryMax int) TransportOptions {
	return TransportOptions{
		RetryMax:    retryMax,
		BackoffBase: 250 * time.Millisecond,
		BackoffCap:  5 * time.Second,
		Clock:       fc,
		JitterFn:    func(time.Duration, int) time.Duration { return 0 },
		Metrics:     NewMetrics(),
		HostLimits:  map[string]Limit{apiHost: {RPS: 1000, Burst: 1000}},
	}
}

func newReq(ctx context.Context) *http.Request {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "https://"+apiHost+"/v2/x", nil)
	return req
}

func TestRetryAfterSeconds(t *testing.T) {
	fc := newFakeClock()
	opt := testOptions(fc, 2)
	frt := &fakeRT{queue: []any{
		&http.Response{StatusCode: 429, Header: http.Header{"Retry-After": []string{"2"}}, Body: http.NoBody},
		&http.Response{StatusCode: 200, Body: http.NoBody},
	}}
	tr := NewRetryingLimiterTransport(opt)
	tr.Base = frt

	rc := &RetryCounters{}
	resp, err := tr.RoundTrip(newReq(WithRetryCounters(context.Background(), rc)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
	if got := fc.slept; got < 2*time.Second || got > 2100*time.Millisecond {
		t.Fatalf("expected ~2s sleep, got %v", got)
	}
	if opt.Metrics.TotalRetries.Load() != 1 {
		t.Fatalf("expected 1 retry, got %d", opt.Metrics.TotalRetries.Load())
	}
	if rc.Total != 1 || rc.Status429 != 1 {
		t.Fatalf("retry counters = %+v", rc)
	}
}

func TestRetryAfterCappedByBackoffCap(t *testing.T) {
	fc := newFakeClock()
	tr := NewRetryingLimiterTransport(testOptions(fc, 1))
	tr.Base = &fakeRT{queue: []any{
		&http.Response{StatusCode: 429, Header: http.Header{"Retry-After": []string{"60"}}},
	}}

	if _, err := tr.RoundTrip(newReq(context.Background())); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fc.slept != 5*time.Second {
		t.Fatalf("expected capped 5s sleep, got %v", fc.slept)
	}
}

func TestBackoffOn503(t *testing.T) {
	fc := newFakeClock()
	tr := NewRetryingLimiterTransport(testOptions(fc, 2))
	tr.Base = &fakeRT{queue: []any{
		&http.Response{StatusCode: 503},
		&http.Response{StatusCode: 503},
		&http.Response{StatusCode: 200},
	}}

	resp, err := tr.RoundTrip(newReq(context.Background()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
	// 250ms then 500ms
	if fc.slept != 750*time.Millisecond {
		t.Fatalf("expected 750ms of backoff, got %v", fc.slept)
	}
}

func TestRetriesExhaustedReturnsLastResponse(t *testing.T) {
	fc := newFakeClock()
	tr := NewRetryingLimiterTransport(testOptions(fc, 1))
	frt := &fakeRT{queue: []any{
		&http.Response{StatusCode: 502},
		&http.Response{StatusCode: 502},
	}}
	tr.Base = frt

	resp, err := tr.RoundTrip(newReq(context.Background()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != 502 || frt.calls.Load() != 2 {
		t.Fatalf("status=%d calls=%d", resp.StatusCode, frt.calls.Load())
	}
}

func TestNoRetryOn4xx(t *testing.T) {
	fc := newFakeClock()
	tr := NewRetryingLimiterTransport(testOptions(fc, 3))
	frt := &fakeRT{queue: []any{&http.Response{StatusCode: 404}}}
	tr.Base = frt

	resp, err := tr.RoundTrip(newReq(context.Background()))
	if err != nil || resp.StatusCode != 404 || frt.calls.Load() != 1 {
		t.Fatalf("resp=%v err=%v calls=%d", resp, err, frt.calls.Load())
	}
}

func TestLimiterPacing(t *testing.T) {
	fc := newFakeClock()
	opt := testOptions(fc, 0)
	opt.HostLimits = map[string]Limit{apiHost: {RPS: 2, Burst: 1}}
	tr := NewRetryingLimiterTransport(opt)
	tr.Base = &fakeRT{}

	// Burst 1 at 2 rps: the second and third requests wait ~0.5s each.
	for i := 0; i < 3; i++ {
		if _, err := tr.RoundTrip(newReq(context.Background())); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	if fc.slept < 900*time.Millisecond || fc.slept > 1100*time.Millisecond {
		t.Fatalf("expected ~1s of limiter sleep, got %v", fc.slept)
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestRetryOnNetworkTimeout(t *testing.T) {
	fc := newFakeClock()
	tr := NewRetryingLimiterTransport(testOptions(fc, 1))
	tr.Base = &fakeRT{queue: []any{timeoutErr{}, &http.Response{StatusCode: 200}}}

	rc := &RetryCounters{}
	resp, err := tr.RoundTrip(newReq(WithRetryCounters(context.Background(), rc)))
	if err != nil || resp.StatusCode != 200 {
		t.Fatalf("resp=%v err=%v", resp, err)
	}
	if rc.Net != 1 {
		t.Fatalf("expected one network retry, got %+v", rc)
	}
}

func TestPostBodyReplayedOnRetry(t *testing.T) {
	fc := newFakeClock()
	tr := NewRetryingLimiterTransport(testOptions(fc, 1))
	frt := &fakeRT{queue: []any{&http.Response{StatusCode: 503}, &http.Response{StatusCode: 200}}}
	tr.Base = frt

	req, _ := http.NewRequest(http.MethodPost, "https://"+apiHost+"/v2/pages/p/dom", io.NopCloser(strings.NewReader(`{"nodes":[]}`)))
	if _, err := tr.RoundTrip(req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frt.bodies) != 2 || frt.bodies[0] != frt.bodies[1] || frt.bodies[1] != `{"nodes":[]}` {
		t.Fatalf("bodies = %q", frt.bodies)
	}
}

func TestCancelledContext(t *testing.T) {
	fc := newFakeClock()
	tr := NewRetryingLimiterTransport(testOptions(fc, 1))
	frt := &fakeRT{}
	tr.Base = frt

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := tr.RoundTrip(newReq(ctx)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if frt.calls.Load() != 0 {
		t.Fatal("cancelled request must not reach the network")
	}
}

func TestParseRetryAfterDate(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	h := now.Add(3 * time.Second).Format(http.TimeFormat)
	if d := parseRetryAfter(h, now); d != 3*time.Second {
		t.Fatalf("got %v", d)
	}
	if d := parseRetryAfter("garbage", now); d != 0 {
		t.Fatalf("got %v", d)
	}
}

func TestDefaultTransportOptionsFromEnv(t *testing.T) {
	t.Setenv("WF_RPS", "5")
	t.Setenv("WF_BURST", "7")
	t.Setenv("WF_RETRY_MAX", "0")
	t.Setenv("WF_RETRY_BASE_MS", "100")
	t.Setenv("WF_RETRY_CAP_MS", "bogus")

	opt := DefaultTransportOptionsFromEnv()
	if lim := opt.HostLimits[apiHost]; lim.RPS != 5 || lim.Burst != 7 {
		t.Fatalf("limit = %+v", lim)
	}
	if opt.RetryMax != 0 || opt.BackoffBase != 100*time.Millisecond || opt.BackoffCap != 30*time.Second {
		t.Fatalf("opts = %+v", opt)
	}
}
