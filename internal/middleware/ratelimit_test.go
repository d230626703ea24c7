package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func testRateLimiterConfig(generalBurst, settlementBurst int) RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(0.001), // テスト中の補充を事実上無効化
		GeneralBurst:    generalBurst,
		SettlementRate:  rate.Limit(0.001),
		SettlementBurst: settlementBurst,
		CleanupInterval: time.Hour,
	}
}

func doRequest(t *testing.T, handler http.Handler, userID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/disbursements", nil)
	req = req.WithContext(ContextWithUserID(req.Context(), userID))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiter_GeneralBurstExhaustion(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(3, 1))
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 3; i++ {
		if w := doRequest(t, handler, "user-1"); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i+1, w.Code, http.StatusOK)
		}
	}

	w := doRequest(t, handler, "user-1")
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header is missing")
	}
}

// ユーザーごとに独立したリミッターが割り当てられる。
func TestRateLimiter_PerUserIsolation(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(1, 1))
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	if w := doRequest(t, handler, "user-1"); w.Code != http.StatusOK {
		t.Fatalf("user-1 first request: status = %d", w.Code)
	}
	if w := doRequest(t, handler, "user-1"); w.Code != http.StatusTooManyRequests {
		t.Errorf("user-1 second request: status = %d, want 429", w.Code)
	}

	// user-2は影響を受けない
	if w := doRequest(t, handler, "user-2"); w.Code != http.StatusOK {
		t.Errorf("user-2 request: status = %d, want 200", w.Code)
	}

	if count := rl.GeneralLimiterCount(); count != 2 {
		t.Errorf("GeneralLimiterCount = %d, want 2", count)
	}
}

// 精算作成のレート制限はAPI全般とは独立に動作する。
func TestRateLimiter_SettlementIndependentFromGeneral(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(10, 1))
	defer rl.Stop()

	general := rl.GeneralMiddleware()(okHandler())
	settlementCreate := rl.SettlementMiddleware()(okHandler())

	if w := doRequest(t, settlementCreate, "user-1"); w.Code != http.StatusOK {
		t.Fatalf("settlement first request: status = %d", w.Code)
	}
	if w := doRequest(t, settlementCreate, "user-1"); w.Code != http.StatusTooManyRequests {
		t.Errorf("settlement second request: status = %d, want 429", w.Code)
	}

	// 精算側が枯渇してもAPI全般は通る
	if w := doRequest(t, general, "user-1"); w.Code != http.StatusOK {
		t.Errorf("general request: status = %d, want 200", w.Code)
	}
}

func TestRateLimiter_RequiresUserContext(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(1, 1))
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/disbursements", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
