package runtime

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"
)

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// ShutdownStep is one component to stop during graceful shutdown.
type ShutdownStep struct {
	Name string
	Stop func(context.Context) error
}

// Shutdown stops steps in order, giving each its own timeout. Failures are
// logged and do not prevent later steps from running.
func Shutdown(logger *slog.Logger, timeout time.Duration, steps ...ShutdownStep) {
	for _, s := range steps {
		if s.Stop == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		err := s.Stop(ctx)
		cancel()
		if err != nil {
			logger.Error("shutdown failed", "component", s.Name, "err", err)
			continue
		}
		logger.Info("stopped", "component", s.Name)
	}
}
