package runtime

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"
)

func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// Stopper is anything with a graceful shutdown hook (http.Server, grpc wrapper, pools).
type Stopper struct {
	Name string
	Stop func(context.Context) error
}

// GracefulStop runs the stoppers in order, sharing one deadline.
func GracefulStop(logger *slog.Logger, timeout time.Duration, stoppers ...Stopper) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for _, s := range stoppers {
		if s.Stop == nil {
			continue
		}
		if err := s.Stop(ctx); err != nil {
			logger.Error("shutdown error", "component", s.Name, "err", err)
			continue
		}
		logger.Info("stopped", "component", s.Name)
	}
}
