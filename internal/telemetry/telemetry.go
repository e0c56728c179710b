// SPDX-License-Identifier: EPL-2.0

// Package telemetry forwards high priority errors to Sentry. It plugs into
// internal/errors as the global reporter, so only errors built with the
// errors builder are seen.
package telemetry

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/ik5/audplay/internal/errors"
	"github.com/ik5/audplay/internal/logger"
)

// Config configures the Sentry client.
type Config struct {
	DSN         string
	Environment string
	Release     string
	SampleRate  float64
	// Transport replaces the HTTP transport, for tests.
	Transport sentry.Transport
}

// Reporter implements errors.Reporter on a private Sentry hub.
type Reporter struct {
	hub *sentry.Hub
	log logger.Logger
}

// New creates a Reporter. It does not install it; see Install.
func New(cfg Config, log logger.Logger) (*Reporter, error) {
	if log == nil {
		log = logger.NewDiscard()
	}

	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       cfg.SampleRate,
		Transport:        cfg.Transport,
		AttachStacktrace: false,
		// Host names are not useful for a desktop player.
		ServerName: "",
	})
	if err != nil {
		return nil, fmt.Errorf("sentry initialization failed: %w", err)
	}

	return &Reporter{
		hub: sentry.NewHub(client, sentry.NewScope()),
		log: log.Module("telemetry"),
	}, nil
}

// Install makes r the reporter for every built error and returns a function
// that flushes pending events and uninstalls it.
func (r *Reporter) Install() func() {
	errors.SetReporter(r)
	return func() {
		errors.SetReporter(nil)
		r.Flush(2 * time.Second)
	}
}

func (r *Reporter) IsEnabled() bool { return r.hub.Client() != nil }

// ReportError sends errors of high or critical priority.
func (r *Reporter) ReportError(ee *errors.EnhancedError) {
	if ee.Priority != errors.PriorityHigh && ee.Priority != errors.PriorityCritical {
		return
	}

	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", ee.Component)
		scope.SetTag("category", string(ee.Category))
		scope.SetTag("priority", ee.Priority)
		scope.SetContext("error", ee.GetContext())
		scope.SetFingerprint([]string{ee.Component, string(ee.Category)})

		level := sentry.LevelError
		if ee.Priority == errors.PriorityCritical {
			level = sentry.LevelFatal
		}
		scope.SetLevel(level)

		r.hub.CaptureException(ee.Err)
	})

	r.log.Debug("error reported",
		logger.String("component", ee.Component),
		logger.String("category", string(ee.Category)))
}

// Flush waits up to timeout for queued events.
func (r *Reporter) Flush(timeout time.Duration) bool {
	return r.hub.Flush(timeout)
}
