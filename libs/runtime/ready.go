package runtime

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// ReadyCheck is a named dependency check for /readyz.
type ReadyCheck struct {
	Name string
	// Optional checks report failures in the body but do not fail readiness.
	Optional bool
	Check    func(context.Context) error
}

func NewBaseMuxWithReady(checks ...ReadyCheck) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		var failures, degraded []string
		for _, check := range checks {
			if check.Check == nil {
				continue
			}
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			err := check.Check(ctx)
			cancel()
			if err == nil {
				continue
			}
			name := check.Name
			if name == "" {
				name = "dependency"
			}
			if check.Optional {
				degraded = append(degraded, name+": "+err.Error())
				continue
			}
			failures = append(failures, name+": "+err.Error())
		}
		if len(failures) > 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(strings.Join(append(failures, degraded...), "; ")))
			return
		}

		w.WriteHeader(http.StatusOK)
		if len(degraded) > 0 {
			_, _ = w.Write([]byte("degraded: " + strings.Join(degraded, "; ")))
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
