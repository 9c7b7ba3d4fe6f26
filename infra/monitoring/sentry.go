package monitoring

import (
	"errors"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/kilianp07/twinplan/config"
	"github.com/kilianp07/twinplan/core/model"
	coremon "github.com/kilianp07/twinplan/core/monitoring"
)

// NewSentryMonitor initializes Sentry using the provided configuration and
// returns a Monitor implementation. An empty DSN yields a NopMonitor.
func NewSentryMonitor(cfg config.SentryConfig) (coremon.Monitor, error) {
	if cfg.DSN == "" {
		return coremon.NopMonitor{}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		TracesSampleRate: cfg.TracesSampleRate,
		Release:          cfg.Release,
	})
	if err != nil {
		return nil, err
	}
	return &sentryMonitor{hub: sentry.CurrentHub()}, nil
}

type sentryMonitor struct {
	hub *sentry.Hub
}

func (s *sentryMonitor) CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	s.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		scope.SetTag("error_kind", errorKind(err))
		s.hub.CaptureException(err)
	})
}

func (s *sentryMonitor) CapturePanic(v any, tags map[string]string) {
	s.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		scope.SetLevel(sentry.LevelFatal)
		s.hub.Recover(v)
	})
}

func (s *sentryMonitor) Flush(timeout time.Duration) bool { return s.hub.Flush(timeout) }

// errorKind groups planner failures so that invariant violations can be
// alerted on separately from bad input.
func errorKind(err error) string {
	switch {
	case errors.Is(err, model.ErrInvariant):
		return "invariant"
	case errors.Is(err, model.ErrIncompleteData):
		return "incomplete_data"
	case errors.Is(err, model.ErrInvalidTwinWorld),
		errors.Is(err, model.ErrInvalidAppliance),
		errors.Is(err, model.ErrMalformedWindow),
		errors.Is(err, model.ErrMissingWindow),
		errors.Is(err, model.ErrInvalidCostModel),
		errors.Is(err, model.ErrInvalidRequest):
		return "validation"
	default:
		return "internal"
	}
}
