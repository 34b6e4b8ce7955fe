// Package metrics defines the custom Prometheus metrics of the butler API.
// It is the single source of truth for metric names, labels and help strings.
//
// Build one Metrics per registry with New; a nil *Metrics records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "butler"

// Ask modes and outcomes.
const (
	ModeRAG       = "rag"
	ModeAnonymous = "anonymous"

	OutcomeOK       = "ok"
	OutcomeUpstream = "upstream_error"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

type Metrics struct {
	// AsksTotal counts answered and failed questions.
	// Labels:
	//   - mode: "rag" (authenticated) or "anonymous"
	//   - outcome: "ok", "upstream_error", "invalid" or "error"
	AsksTotal *prometheus.CounterVec

	// AskDuration measures the full answering flow including retrieval and persistence.
	AskDuration *prometheus.HistogramVec

	// LoginsTotal counts login attempts by result ("success" or "failure").
	LoginsTotal *prometheus.CounterVec

	// UsersRegisteredTotal counts created accounts by path ("public" or "admin").
	UsersRegisteredTotal *prometheus.CounterVec

	// RateLimitedTotal counts rejected requests per limiter scope.
	RateLimitedTotal *prometheus.CounterVec
}

// New registers every metric with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		AsksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asks_total",
			Help:      "Total number of questions handled, by mode and outcome.",
		}, []string{"mode", "outcome"}),
		AskDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ask_duration_seconds",
			Help:      "Duration of the answering flow from request to stored conversation.",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30},
		}, []string{"mode"}),
		LoginsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Total number of login attempts, by result.",
		}, []string{"result"}),
		UsersRegisteredTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "users_registered_total",
			Help:      "Total number of accounts created, by path.",
		}, []string{"path"}),
		RateLimitedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by a rate limiter.",
		}, []string{"scope"}),
	}
}

func (m *Metrics) ObserveAsk(mode, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.AsksTotal.WithLabelValues(mode, outcome).Inc()
	m.AskDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
}

func (m *Metrics) Login(success bool) {
	if m == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	m.LoginsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) UserRegistered(path string) {
	if m == nil {
		return
	}
	m.UsersRegisteredTotal.WithLabelValues(path).Inc()
}

func (m *Metrics) RateLimited(scope string) {
	if m == nil {
		return
	}
	m.RateLimitedTotal.WithLabelValues(scope).Inc()
}
