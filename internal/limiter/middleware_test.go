package limiter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/JinhuaXu/flowhub/internal/resp"
)

type stubLimiter struct {
	result *LimitResult
	err    error
}

func (s *stubLimiter) Allow(ctx context.Context, key string) (*LimitResult, error) {
	return s.result, s.err
}

func (s *stubLimiter) Reset(ctx context.Context, key string) error { return nil }

func serveLimited(t *testing.T, l Limiter) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	var passed bool
	h := Middleware(l, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		passed = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	req.RemoteAddr = "203.0.113.9:51234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, passed
}

func TestMiddleware_Allowed(t *testing.T) {
	rec, passed := serveLimited(t, &stubLimiter{result: &LimitResult{Allowed: true, Remaining: 4}})
	if !passed || rec.Code != http.StatusOK {
		t.Errorf("passed=%v status=%d, want request forwarded", passed, rec.Code)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "4" {
		t.Errorf("remaining header = %q, want 4", got)
	}
}

func TestMiddleware_Denied(t *testing.T) {
	rec, passed := serveLimited(t, &stubLimiter{result: &LimitResult{
		Allowed:       false,
		Remaining:     0,
		RetryAfter:    30 * time.Second,
		TotalRequests: 6,
	}})
	if passed {
		t.Fatal("denied request must not reach handler")
	}
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "30" {
		t.Errorf("retry-after = %q, want 30", got)
	}

	var body resp.Response
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Code != resp.CodeTooManyRequests {
		t.Errorf("code = %d, want %d", body.Code, resp.CodeTooManyRequests)
	}
}

func TestMiddleware_FailsOpen(t *testing.T) {
	// 限流器不可用时放行请求
	rec, passed := serveLimited(t, &stubLimiter{err: errors.New("redis down")})
	if !passed || rec.Code != http.StatusOK {
		t.Errorf("passed=%v status=%d, want fail-open", passed, rec.Code)
	}
}
