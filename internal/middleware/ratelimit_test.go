package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func newTestRateLimiter(generalBurst, confirmBurst int) *RateLimiter {
	return NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(0.001), // テスト中に補充されない低レート
		GeneralBurst:    generalBurst,
		ConfirmRate:     rate.Limit(0.001),
		ConfirmBurst:    confirmBurst,
		CleanupInterval: time.Hour,
	})
}

func doAuthedRequest(handler http.Handler, username string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/checkout", nil)
	req = req.WithContext(ContextWithUsername(req.Context(), username))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiter_GeneralAllowsWithinBurst(t *testing.T) {
	rl := newTestRateLimiter(3, 1)
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		if rec := doAuthedRequest(handler, "alice"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}

	rec := doAuthedRequest(handler, "alice")
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 after burst exhausted, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header on 429")
	}
}

func TestRateLimiter_IsolatesUsers(t *testing.T) {
	rl := newTestRateLimiter(1, 1)
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	if rec := doAuthedRequest(handler, "alice"); rec.Code != http.StatusOK {
		t.Fatalf("alice first request: expected 200, got %d", rec.Code)
	}
	if rec := doAuthedRequest(handler, "alice"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("alice second request: expected 429, got %d", rec.Code)
	}
	// 別ユーザーには影響しない
	if rec := doAuthedRequest(handler, "bob"); rec.Code != http.StatusOK {
		t.Errorf("bob first request: expected 200, got %d", rec.Code)
	}
}

func TestRateLimiter_ConfirmIndependentOfGeneral(t *testing.T) {
	rl := newTestRateLimiter(1, 2)
	defer rl.Stop()

	general := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	confirm := rl.ConfirmMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// 全般の枠を使い切る
	doAuthedRequest(general, "alice")
	if rec := doAuthedRequest(general, "alice"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected general limit exhausted, got %d", rec.Code)
	}

	// 確定の枠は独立している
	if rec := doAuthedRequest(confirm, "alice"); rec.Code != http.StatusOK {
		t.Errorf("expected confirm limiter independent, got %d", rec.Code)
	}
}

func TestRateLimiter_RequiresAuthentication(t *testing.T) {
	rl := newTestRateLimiter(1, 1)
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called without a username in context")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestRateLimiter_CleanupRemovesStaleEntries(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(1),
		GeneralBurst:    1,
		ConfirmRate:     rate.Limit(1),
		ConfirmBurst:    1,
		CleanupInterval: time.Nanosecond,
	})
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	doAuthedRequest(handler, "alice")

	if rl.GeneralLimiterCount() != 1 {
		t.Fatalf("expected 1 limiter entry, got %d", rl.GeneralLimiterCount())
	}

	// TTL（CleanupInterval*2）をゼロ近くに設定しているため即座に期限切れになる
	time.Sleep(10 * time.Millisecond)
	rl.cleanup()

	if rl.GeneralLimiterCount() != 0 {
		t.Errorf("expected stale entry removed, got %d", rl.GeneralLimiterCount())
	}
}
