// Package metrics exposes editor activity as Prometheus series.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"quiz-editor/internal/domain"
)

// Metrics implements app.Recorder and counts gateway sessions.
type Metrics struct {
	registry *prometheus.Registry

	commits  *prometheus.CounterVec
	deletes  *prometheus.CounterVec
	saves    *prometheus.CounterVec
	created  prometheus.Counter
	sessions prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_editor_field_commits_total",
			Help: "Field commits sent to the quiz store",
		}, []string{"entity", "outcome"}),
		deletes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_editor_deletes_total",
			Help: "Remote deletes issued by the editor",
		}, []string{"entity", "outcome"}),
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_editor_saves_total",
			Help: "Save attempts",
		}, []string{"outcome"}),
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quiz_editor_questions_created_total",
			Help: "Questions created remotely during saves",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quiz_editor_sessions_connected",
			Help: "Currently connected editor sessions",
		}),
	}
	m.registry.MustRegister(
		m.commits, m.deletes, m.saves, m.created, m.sessions,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Commit(entity string, err error) {
	m.commits.WithLabelValues(entity, outcome(err)).Inc()
}

func (m *Metrics) Delete(entity string, err error) {
	m.deletes.WithLabelValues(entity, outcome(err)).Inc()
}

// Save counts questions created even when the save failed part way.
func (m *Metrics) Save(created int, err error) {
	m.saves.WithLabelValues(outcome(err)).Inc()
	m.created.Add(float64(created))
}

func (m *Metrics) SessionOpened() { m.sessions.Inc() }

func (m *Metrics) SessionClosed() { m.sessions.Dec() }

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrStaleReference):
		return "stale"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrTransport):
		return "transport"
	default:
		return "error"
	}
}
