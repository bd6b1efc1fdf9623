package auth

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "auth"

// Metrics holds the collectors updated by the service and the task queue.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	signups       prometheus.Counter
	signins       *prometheus.CounterVec
	sessionChecks *prometheus.CounterVec
	logouts       prometheus.Counter
	refreshes     *prometheus.CounterVec
	tasksQueued   prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg when reg is
// not nil
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		signups: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "signups_total",
			Help:      "Accounts created.",
		}),
		signins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "signins_total",
			Help:      "Sign-in attempts by result.",
		}, []string{"result"}),
		sessionChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "session_checks_total",
			Help:      "Session verifications by result.",
		}, []string{"result"}),
		logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "logouts_total",
			Help:      "Completed logouts.",
		}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "refreshes_total",
			Help:      "Access token renewals by result.",
		}, []string{"result"}),
		tasksQueued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "tasks_queued",
			Help:      "Background tasks waiting for a worker.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.signups,
			m.signins,
			m.sessionChecks,
			m.logouts,
			m.refreshes,
			m.tasksQueued,
		)
	}

	return m
}

// Metric result labels
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

func resultLabel(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}

func (m *Metrics) signUp() {
	if m == nil {
		return
	}
	m.signups.Inc()
}

func (m *Metrics) signIn(err error) {
	if m == nil {
		return
	}
	m.signins.WithLabelValues(resultLabel(err)).Inc()
}

func (m *Metrics) sessionCheck(err error) {
	if m == nil {
		return
	}
	m.sessionChecks.WithLabelValues(resultLabel(err)).Inc()
}

func (m *Metrics) logout() {
	if m == nil {
		return
	}
	m.logouts.Inc()
}

func (m *Metrics) refresh(err error) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(resultLabel(err)).Inc()
}

func (m *Metrics) taskQueued() {
	if m == nil {
		return
	}
	m.tasksQueued.Inc()
}

func (m *Metrics) taskDequeued() {
	if m == nil {
		return
	}
	m.tasksQueued.Dec()
}
