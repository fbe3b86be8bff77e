package telemetry

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arklim/petclub-iam/internal/core/port"
)

// Outcome labels shared by the auth counters.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeReuse   = "reuse_detected"
	ReasonSignOut  = "signout"
	ReasonRefresh  = "refresh"
)

const defaultNamespace = "iam"

// AuthMetrics is the Prometheus implementation of port.AuthMetrics.
type AuthMetrics struct {
	SignIns     *prometheus.CounterVec
	Refreshes   *prometheus.CounterVec
	Revocations *prometheus.CounterVec
}

// NewAuthMetrics registers the auth counters on reg. Collectors already
// registered under the same name are reused.
func NewAuthMetrics(reg prometheus.Registerer, namespace string) (*AuthMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = defaultNamespace
	}

	signIns, err := RegisterCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "signin_total",
		Help:      "Sign-in attempts partitioned by outcome.",
	}, "outcome")
	if err != nil {
		return nil, err
	}

	refreshes, err := RegisterCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "refresh_total",
		Help:      "Token refresh attempts partitioned by outcome.",
	}, "outcome")
	if err != nil {
		return nil, err
	}

	revocations, err := RegisterCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "revocations_total",
		Help:      "Access tokens blacklisted partitioned by reason.",
	}, "reason")
	if err != nil {
		return nil, err
	}

	return &AuthMetrics{SignIns: signIns, Refreshes: refreshes, Revocations: revocations}, nil
}

func (m *AuthMetrics) ObserveSignIn(outcome string) {
	if m == nil {
		return
	}
	m.SignIns.WithLabelValues(outcome).Inc()
}

func (m *AuthMetrics) ObserveRefresh(outcome string) {
	if m == nil {
		return
	}
	m.Refreshes.WithLabelValues(outcome).Inc()
}

func (m *AuthMetrics) ObserveRevocation(reason string) {
	if m == nil {
		return
	}
	m.Revocations.WithLabelValues(reason).Inc()
}

// RegisterCounterVec registers a counter vector, returning the existing one on re-registration.
func RegisterCounterVec(reg prometheus.Registerer, opts prometheus.CounterOpts, labels ...string) (*prometheus.CounterVec, error) {
	vec := prometheus.NewCounterVec(opts, labels)
	if err := reg.Register(vec); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("existing %s collector has unexpected type %T", opts.Name, already.ExistingCollector)
		}
		return nil, fmt.Errorf("register %s collector: %w", opts.Name, err)
	}
	return vec, nil
}

var _ port.AuthMetrics = (*AuthMetrics)(nil)
