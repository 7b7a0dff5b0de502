package httpx

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(okHandler(), mark("a"), mark("b"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("expected [a b], got %v", order)
	}
}

func TestWithRequestID(t *testing.T) {
	var seen string
	h := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if seen != "req-1" || rw.Header().Get(RequestIDHeader) != "req-1" {
		t.Fatalf("expected propagated request id, got ctx=%q header=%q", seen, rw.Header().Get(RequestIDHeader))
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "has space")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if len(seen) != 32 {
		t.Fatalf("expected invalid id to be replaced, got %q", seen)
	}

	if ValidRequestID(strings.Repeat("a", maxRequestIDLen+1)) {
		t.Fatal("expected overlong id to be rejected")
	}
}

func TestWithRecover(t *testing.T) {
	h := WithRecover(discardLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/", nil))
	if rw.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rw.Code)
	}
}

func TestMemoryRateStore(t *testing.T) {
	store := NewMemoryRateStore(2, time.Minute)
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	h := RateLimit(store, nil, false)(okHandler())

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rw := httptest.NewRecorder()
		h.ServeHTTP(rw, req)
		return rw
	}

	for i, want := range []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests} {
		if rw := send(); rw.Code != want {
			t.Fatalf("request %d: expected %d, got %d", i, want, rw.Code)
		}
	}

	now = now.Add(30 * time.Second)
	rw := send()
	if rw.Header().Get("Retry-After") != "30" {
		t.Fatalf("expected Retry-After 30, got %q", rw.Header().Get("Retry-After"))
	}
	if rw.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("expected no remaining budget, got %q", rw.Header().Get("X-RateLimit-Remaining"))
	}

	now = now.Add(time.Minute)
	if rw := send(); rw.Code != http.StatusOK || rw.Header().Get("X-RateLimit-Remaining") != "1" {
		t.Fatalf("expected window reset, got %d remaining=%q", rw.Code, rw.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRedisRateStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store := NewRedisRateStore(rdb, 1, time.Minute, "test:")
	h := RateLimit(store, nil, false)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected first request allowed, got %d", rw.Code)
	}
	rw = httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rw.Code)
	}
	if rw.Header().Get("Retry-After") != "60" {
		t.Fatalf("expected Retry-After 60, got %q", rw.Header().Get("Retry-After"))
	}
	if !mr.Exists("test:203.0.113.7") {
		t.Fatal("expected counter key keyed by forwarded client ip")
	}
	if err := store.ReadyCheck(context.Background()); err != nil {
		t.Fatalf("ReadyCheck: %v", err)
	}
}

func TestRateLimitStoreFailure(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	store := NewRedisRateStore(rdb, 1, time.Minute, "test")
	rw := httptest.NewRecorder()
	RateLimit(store, discardLogger(), true)(okHandler()).ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/", nil))
	if rw.Code != http.StatusOK {
		t.Fatalf("expected fail-open to pass request, got %d", rw.Code)
	}

	rw = httptest.NewRecorder()
	RateLimit(store, discardLogger(), false)(okHandler()).ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/", nil))
	if rw.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when closed, got %d", rw.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := WithCORS(CORSPolicy{
		AllowedOrigins: []string{"https://book.example.com"},
		AllowedHeaders: []string{"Content-Type", "Idempotency-Key"},
		ExposedHeaders: []string{"Idempotent-Replayed"},
	})(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/public/slots", nil)
	req.Header.Set("Origin", "https://Book.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", rw.Code)
	}
	if rw.Header().Get("Access-Control-Allow-Origin") != "https://Book.example.com" {
		t.Fatalf("unexpected allow origin %q", rw.Header().Get("Access-Control-Allow-Origin"))
	}
	if rw.Header().Get("Access-Control-Allow-Methods") != "GET, POST, OPTIONS" {
		t.Fatalf("unexpected methods %q", rw.Header().Get("Access-Control-Allow-Methods"))
	}
	if rw.Header().Get("Access-Control-Expose-Headers") != "Idempotent-Replayed" {
		t.Fatalf("unexpected exposed headers %q", rw.Header().Get("Access-Control-Expose-Headers"))
	}
}

func TestCORSUnknownOrigin(t *testing.T) {
	h := WithCORS(CORSPolicy{AllowedOrigins: []string{"https://book.example.com"}})(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK || rw.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("expected request served without CORS headers, got %d %q", rw.Code, rw.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestAccessLogLevels(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	h := WithAccessLog(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
		}
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if buf.Len() != 0 {
		t.Fatalf("expected probe to be logged below info, got %s", buf.String())
	}
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
	if !strings.Contains(buf.String(), `"level":"WARN"`) || !strings.Contains(buf.String(), `"status":404`) {
		t.Fatalf("expected warn line for 404, got %s", buf.String())
	}
}
