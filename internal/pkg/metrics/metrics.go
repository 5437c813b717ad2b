package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds the session lifecycle counters. Each instance owns its registry so tests can
// build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	SessionsIssued      *prometheus.CounterVec
	SessionsInvalidated *prometheus.CounterVec
	RefreshReuse        prometheus.Counter
	SessionsReaped      prometheus.Counter
	AvatarFailures      prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		SessionsIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sessionauth",
			Name:      "sessions_issued_total",
			Help:      "Sessions created, by the operation that created them.",
		}, []string{"op"}),
		SessionsInvalidated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sessionauth",
			Name:      "sessions_invalidated_total",
			Help:      "Sessions flipped to invalid, by reason.",
		}, []string{"reason"}),
		RefreshReuse: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sessionauth",
			Name:      "refresh_reuse_detected_total",
			Help:      "Refresh attempts with a signed token whose session was already rotated or revoked.",
		}),
		SessionsReaped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sessionauth",
			Name:      "sessions_reaped_total",
			Help:      "Dead session rows deleted by the sweeper.",
		}),
		AvatarFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sessionauth",
			Name:      "avatar_upload_failures_total",
			Help:      "Background avatar uploads that failed.",
		}),
	}

	m.Registry.MustRegister(
		m.SessionsIssued,
		m.SessionsInvalidated,
		m.RefreshReuse,
		m.SessionsReaped,
		m.AvatarFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// CounterValue reads the current value of a counter.
func CounterValue(c prometheus.Counter) float64 {
	var out dto.Metric
	if err := c.Write(&out); err != nil {
		return 0
	}
	return out.GetCounter().GetValue()
}
