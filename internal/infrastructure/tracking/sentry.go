// Package tracking reports unexpected server errors to Sentry.
package tracking

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

const flushTimeout = 2 * time.Second

// Config holds the Sentry client options.
type Config struct {
	DSN              string
	Environment      string
	Release          string
	TracesSampleRate float64
}

// SentryReporter implements ports.ErrorReporter on a dedicated Sentry hub.
type SentryReporter struct {
	hub *sentry.Hub
}

func NewSentryReporter(cfg Config) (*SentryReporter, error) {
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		TracesSampleRate: cfg.TracesSampleRate,
		AttachStacktrace: true,
	})
	if err != nil {
		return nil, fmt.Errorf("sentry client: %w", err)
	}
	return &SentryReporter{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

func (r *SentryReporter) Report(_ context.Context, err error, tags map[string]string) {
	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		r.hub.CaptureException(err)
	})
}

func (r *SentryReporter) Flush() {
	r.hub.Flush(flushTimeout)
}

// Nop discards every report. It is used when no DSN is configured.
type Nop struct{}

func (Nop) Report(context.Context, error, map[string]string) {}
func (Nop) Flush()                                           {}
