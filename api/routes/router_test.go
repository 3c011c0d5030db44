package routes

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/trailpack-backend/internal/orders"
	"github.com/angelmondragon/trailpack-backend/internal/payments"
	"github.com/angelmondragon/trailpack-backend/pkg/auth/session"
	"github.com/angelmondragon/trailpack-backend/pkg/config"
	"github.com/angelmondragon/trailpack-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/trailpack-backend/pkg/errors"
	"github.com/angelmondragon/trailpack-backend/pkg/metrics"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type fakeRedis struct {
	data   map[string]string
	counts map[string]int64
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, counts: map[string]int64{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = fmt.Sprint(value)
	return true, nil
}

func (f *fakeRedis) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeRedis) HitWindow(_ context.Context, key string, _ time.Duration) (int64, error) {
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeRedis) RateLimitKey(policy, scope, subject string) string {
	return "rl:" + policy + ":" + scope + ":" + subject
}

func (f *fakeRedis) Ping(context.Context) error {
	return nil
}

type fakeSessions struct {
	records map[string]session.Identity
}

func (f *fakeSessions) Load(_ context.Context, id string) (session.Identity, error) {
	identity, ok := f.records[id]
	if !ok {
		return session.Identity{}, session.ErrSessionNotFound
	}
	return identity, nil
}

func (f *fakeSessions) Save(_ context.Context, id string, identity session.Identity) error {
	f.records[id] = identity
	return nil
}

func (f *fakeSessions) Destroy(_ context.Context, id string) error {
	delete(f.records, id)
	return nil
}

func (f *fakeSessions) TTL() time.Duration { return time.Hour }

type countingPayments struct {
	calls int
}

func (c *countingPayments) Settle(_ context.Context, identity session.Identity, input payments.SettleInput) (*orders.OrderSummary, error) {
	c.calls++
	return &orders.OrderSummary{ID: 1, Status: enums.OrderStatusPaid}, nil
}

// rejectingOrders answers every claim as an unknown guest token.
type rejectingOrders struct {
	orders.Service
	claims int
}

func (r *rejectingOrders) Claim(context.Context, int64, string) (*orders.OrderSummary, error) {
	r.claims++
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func testConfig() *config.Config {
	return &config.Config{
		App:         config.AppConfig{Env: "dev"},
		Session:     config.SessionConfig{CookieName: "tp.sid", TTL: time.Hour},
		CORS:        config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		Idempotency: config.IdempotencyConfig{TTL: time.Hour},
		RateLimit: config.RateLimitConfig{
			LoginWindow:       time.Minute,
			LoginIPLimit:      1,
			ClaimWindow:       15 * time.Minute,
			ClaimSessionLimit: 2,
			ClaimUserLimit:    5,
		},
	}
}

func newTestRouter(t *testing.T, sessions *fakeSessions, pay *countingPayments) (http.Handler, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewRouter(Dependencies{
		Config:         testConfig(),
		DB:             stubPinger{},
		Redis:          newFakeRedis(),
		Sessions:       sessions,
		HTTPMetrics:    metrics.NewHTTPMetrics(reg),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Payments:       pay,
		Orders:         &rejectingOrders{},
	}), reg
}

func TestHealthRoutes(t *testing.T) {
	router, _ := newTestRouter(t, &fakeSessions{records: map[string]session.Identity{}}, &countingPayments{})

	for _, path := range []string{"/health/live", "/health/ready"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
		if resp.Header().Get("X-Request-Id") == "" {
			t.Fatalf("%s: expected request id header", path)
		}
	}
}

func TestOrdersRequireAuthentication(t *testing.T) {
	router, _ := newTestRouter(t, &fakeSessions{records: map[string]session.Identity{}}, &countingPayments{})

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/orders"},
		{http.MethodGet, "/orders/1"},
		{http.MethodPatch, "/orders/1/status"},
		{http.MethodPost, "/orders/claim"},
		{http.MethodGet, "/auth/me"},
	} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(tc.method, tc.path, strings.NewReader(`{}`)))
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401 got %d", tc.method, tc.path, resp.Code)
		}
	}
}

func TestMockPaymentReplaysIdempotentRequest(t *testing.T) {
	sessions := &fakeSessions{records: map[string]session.Identity{"sid": session.Identity{}.WithGuestToken("tok")}}
	pay := &countingPayments{}
	router, _ := newTestRouter(t, sessions, pay)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/payments/mock", strings.NewReader(`{"guest_token":"tok"}`))
		req.Header.Set("Idempotency-Key", "pay-1")
		req.AddCookie(&http.Cookie{Name: "tp.sid", Value: "sid"})
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200 got %d: %s", i, resp.Code, resp.Body.String())
		}
	}
	if pay.calls != 1 {
		t.Fatalf("expected settlement to run once, ran %d times", pay.calls)
	}
}

func TestLoginRateLimited(t *testing.T) {
	router, _ := newTestRouter(t, &fakeSessions{records: map[string]session.Identity{}}, &countingPayments{})

	var last int
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"a@b.co"}`))
		req.RemoteAddr = "9.9.9.9:1000"
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		last = resp.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on second attempt got %d", last)
	}
}

func TestClaimRateLimitedPerSession(t *testing.T) {
	sessions := &fakeSessions{records: map[string]session.Identity{
		"sid-1": session.Identity{}.WithUser(42),
		"sid-2": session.Identity{}.WithUser(42),
	}}
	router, _ := newTestRouter(t, sessions, &countingPayments{})

	claim := func(sid string) int {
		req := httptest.NewRequest(http.MethodPost, "/orders/claim", strings.NewReader(`{"guest_token":"guess"}`))
		req.AddCookie(&http.Cookie{Name: "tp.sid", Value: sid})
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		return resp.Code
	}

	got := []int{claim("sid-1"), claim("sid-1"), claim("sid-1")}
	want := []int{http.StatusNotFound, http.StatusNotFound, http.StatusTooManyRequests}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("claim %d: expected %d got %d", i, want[i], got[i])
		}
	}

	if code := claim("sid-2"); code != http.StatusNotFound {
		t.Fatalf("fresh session: expected 404 got %d", code)
	}
}

func TestMetricsEndpointExposesRouteLabels(t *testing.T) {
	router, _ := newTestRouter(t, &fakeSessions{records: map[string]session.Identity{}}, &countingPayments{})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `route="/health/live"`) {
		t.Fatalf("expected route label in metrics output:\n%s", resp.Body.String())
	}
}
