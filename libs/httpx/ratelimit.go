package httpx

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateDecision is the outcome of counting one request against a key's window.
type RateDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetIn   time.Duration
}

// RateStore counts requests per key in fixed windows.
type RateStore interface {
	Take(ctx context.Context, key string) (RateDecision, error)
}

// RateLimit rejects callers over their budget with 429. When the store fails
// the request passes if failOpen is set and gets 503 otherwise.
func RateLimit(store RateStore, logger *slog.Logger, failOpen bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := store.Take(r.Context(), ClientKey(r))
			if err != nil {
				if logger != nil {
					logger.Warn("rate limiter unavailable", "err", err, "fail_open", failOpen)
				}
				if failOpen {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "rate limiter unavailable", http.StatusServiceUnavailable)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			if !d.Allowed {
				h.Set("Retry-After", retryAfter(d.ResetIn))
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MemoryRateStore keeps windows in process memory. Each replica has its own budget.
type MemoryRateStore struct {
	limit   int
	window  time.Duration
	now     func() time.Time
	mu      sync.Mutex
	windows map[string]*fixedWindow
}

type fixedWindow struct {
	count int
	ends  time.Time
}

func NewMemoryRateStore(limit int, window time.Duration) *MemoryRateStore {
	limit, window = rateDefaults(limit, window)
	return &MemoryRateStore{
		limit:   limit,
		window:  window,
		now:     time.Now,
		windows: map[string]*fixedWindow{},
	}
}

func (s *MemoryRateStore) Take(_ context.Context, key string) (RateDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	fw := s.windows[key]
	if fw == nil || !now.Before(fw.ends) {
		s.evict(now)
		fw = &fixedWindow{ends: now.Add(s.window)}
		s.windows[key] = fw
	}
	fw.count++
	return decide(fw.count, s.limit, fw.ends.Sub(now)), nil
}

// evict drops finished windows; callers hold s.mu.
func (s *MemoryRateStore) evict(now time.Time) {
	for k, fw := range s.windows {
		if !now.Before(fw.ends) {
			delete(s.windows, k)
		}
	}
}

func decide(count, limit int, resetIn time.Duration) RateDecision {
	return RateDecision{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: max(limit-count, 0),
		ResetIn:   resetIn,
	}
}

func rateDefaults(limit int, window time.Duration) (int, time.Duration) {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return limit, window
}

// ClientKey identifies the caller by the first X-Forwarded-For hop or the remote address.
func ClientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func retryAfter(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
