package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/NikitaDmitryuk/telegram-music-bot/internal/logutils"
)

// Service is anything that must be stopped before the process exits.
type Service interface {
	Shutdown(ctx context.Context) error
	Name() string
}

// Manager stops registered services in registration order. Downloads are registered
// before the journal so cancelled requests can still record their outcome.
type Manager struct {
	services []Service
	timeout  time.Duration
	mu       sync.RWMutex
}

func NewManager(timeout time.Duration) *Manager {
	return &Manager{
		services: make([]Service, 0),
		timeout:  timeout,
	}
}

func (m *Manager) Register(service Service) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.services = append(m.services, service)
	logutils.Log.WithField("service", service.Name()).Info("Service registered for graceful shutdown")
}

// WaitForShutdown blocks until SIGINT or SIGTERM arrives or ctx is done, then shuts down.
func (m *Manager) WaitForShutdown(ctx context.Context) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		logutils.Log.WithField("signal", sig.String()).Info("Received shutdown signal")
	case <-ctx.Done():
		logutils.Log.Info("Context finished, shutting down")
	}

	return m.Shutdown()
}

func (m *Manager) Shutdown() error {
	logutils.Log.Info("Starting graceful shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	m.mu.RLock()
	services := make([]Service, len(m.services))
	copy(services, m.services)
	m.mu.RUnlock()

	var errs []error
	for _, svc := range services {
		if ctx.Err() != nil {
			logutils.Log.WithField("service", svc.Name()).Warn("Shutdown timeout exceeded, skipping service")
			errs = append(errs, fmt.Errorf("service %s skipped: %w", svc.Name(), ctx.Err()))
			continue
		}

		logutils.Log.WithField("service", svc.Name()).Info("Shutting down service")
		if err := svc.Shutdown(ctx); err != nil {
			logutils.Log.WithError(err).WithField("service", svc.Name()).Error("Error during service shutdown")
			errs = append(errs, fmt.Errorf("service %s shutdown failed: %w", svc.Name(), err))
			continue
		}
		logutils.Log.WithField("service", svc.Name()).Info("Service shutdown completed")
	}

	if len(errs) > 0 {
		logutils.Log.WithField("error_count", len(errs)).Error("Some services failed to shutdown gracefully")
		return errors.Join(errs...)
	}

	logutils.Log.Info("Graceful shutdown completed successfully")
	return nil
}

// HTTPServer is the part of *http.Server the manager needs.
type HTTPServer interface {
	Shutdown(ctx context.Context) error
}

type HTTPServerShutdown struct {
	server HTTPServer
}

func NewHTTPServerShutdown(server HTTPServer) *HTTPServerShutdown {
	return &HTTPServerShutdown{server: server}
}

func (h *HTTPServerShutdown) Shutdown(ctx context.Context) error {
	logutils.Log.Info("Shutting down HTTP server")
	return h.server.Shutdown(ctx)
}

func (*HTTPServerShutdown) Name() string {
	return "http_server"
}

// Func adapts a plain function, such as stopping the update poller.
type Func struct {
	ServiceName string
	Fn          func(ctx context.Context) error
}

func (f Func) Shutdown(ctx context.Context) error { return f.Fn(ctx) }

func (f Func) Name() string { return f.ServiceName }
