package tracking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
)

type recordingTransport struct {
	events []*sentry.Event
}

func (t *recordingTransport) Configure(sentry.ClientOptions)        {}
func (t *recordingTransport) SendEvent(e *sentry.Event)             { t.events = append(t.events, e) }
func (t *recordingTransport) Flush(_ time.Duration) bool            { return true }
func (t *recordingTransport) FlushWithContext(context.Context) bool { return true }
func (t *recordingTransport) Close()                                {}

func TestSentryReporter_Report(t *testing.T) {
	transport := &recordingTransport{}
	client, err := sentry.NewClient(sentry.ClientOptions{Dsn: "", Transport: transport})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	r := &SentryReporter{hub: sentry.NewHub(client, sentry.NewScope())}

	r.Report(context.Background(), errors.New("db exploded"), map[string]string{"path": "/ask"})
	r.Flush()

	if len(transport.events) != 1 {
		t.Fatalf("expected one event, got %d", len(transport.events))
	}
	ev := transport.events[0]
	if ev.Tags["path"] != "/ask" {
		t.Fatalf("expected path tag, got %v", ev.Tags)
	}
	if len(ev.Exception) == 0 || ev.Exception[0].Value != "db exploded" {
		t.Fatalf("unexpected exception payload %+v", ev.Exception)
	}
}

func TestNewSentryReporter_InvalidDSN(t *testing.T) {
	if _, err := NewSentryReporter(Config{DSN: "not a dsn"}); err == nil {
		t.Fatalf("expected error for malformed DSN")
	}
}
