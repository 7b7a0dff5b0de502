package runtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestReadyz(t *testing.T) {
	mux := NewBaseMuxWithReady(
		ReadyCheck{Name: "db", Check: func(context.Context) error { return nil }},
		ReadyCheck{Name: "kafka", Optional: true, Check: func(context.Context) error { return errors.New("down") }},
	)
	rw := httptest.NewRecorder()
	mux.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200 with optional failure, got %d", rw.Code)
	}
	if !strings.Contains(rw.Body.String(), "kafka: down") {
		t.Fatalf("expected degraded note, got %q", rw.Body.String())
	}

	mux = NewBaseMuxWithReady(ReadyCheck{Name: "db", Check: func(context.Context) error { return errors.New("refused") }})
	rw = httptest.NewRecorder()
	mux.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rw.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rw.Code)
	}
}
