package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"steward/internal/config"
	"steward/pkg/logging"
)

const shutdownTimeout = 5 * time.Second

// runServe runs the state synchronisation daemon until ctx is cancelled or
// one of its parts fails.
func runServe(ctx context.Context, cfg *Config, services *Services) error {
	if err := services.Bus.ServeSnapshots(); err != nil {
		return fmt.Errorf("failed to serve state snapshots: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return services.Resources.Watch(ctx)
	})

	g.Go(func() error {
		logStateChanges(ctx, services)
		return nil
	})

	g.Go(func() error {
		logHistoryEvents(ctx, services)
		return nil
	})

	if mc := cfg.StewardConfig.Metrics; mc.Enabled {
		g.Go(func() error {
			return serveMetrics(ctx, mc, services)
		})
	}

	logging.Info("Bootstrap", "steward is serving. Press Ctrl+C to stop.")
	err := g.Wait()
	logging.Info("Bootstrap", "Shutting down")
	return err
}

func logStateChanges(ctx context.Context, services *Services) {
	changes, cancel := services.Bus.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case cs, ok := <-changes:
			if !ok {
				return
			}
			logging.Info("StateBus", "%s is now %s (actor %s)", cs.Ref, cs.State, cs.Actor)
		}
	}
}

// logHistoryEvents logs the notifications other steward processes
// broadcast, such as service installs and file copies.
func logHistoryEvents(ctx context.Context, services *Services) {
	events, cancel := services.Notifications.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			logging.Info("History", "%s: %s (actor %s)", ev.ServerLabel, ev.Text, ev.Actor)
		}
	}
}

func serveMetrics(ctx context.Context, mc config.MetricsConfig, services *Services) error {
	mux := http.NewServeMux()
	mux.Handle(mc.Path, services.Metrics.Handler())

	listener, err := net.Listen("tcp", mc.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", mc.Address, err)
	}

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("Metrics", "Serving metrics on http://%s%s", listener.Addr(), mc.Path)
		errCh <- server.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logging.Warn("Metrics", "Metrics server shutdown: %v", err)
		}
		return nil
	}
}
