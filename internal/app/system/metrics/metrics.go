// Package metrics exposes Prometheus counters for request routing and the
// invitation lifecycle.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dalemusser/tenantgate/internal/app/system/routing"
	"github.com/dalemusser/tenantgate/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Invitation events.
const (
	InvitationCreated         = "created"
	InvitationAccepted        = "accepted"
	InvitationAlreadyAccepted = "already_accepted"
	InvitationNotFound        = "not_found"
	InvitationLicenseInvalid  = "license_invalid"
	InvitationFailed          = "failed"
	InvitationDeleted         = "deleted"
)

// Metrics owns a registry and the collectors registered on it. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry    *prometheus.Registry
	resolutions *prometheus.CounterVec
	invitations *prometheus.CounterVec
	requests    *prometheus.HistogramVec
}

// New builds a Metrics with its own registry, including the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tenantgate",
				Name:      "routing_resolutions_total",
				Help:      "Requests resolved, by routing mode.",
			},
			[]string{"mode"},
		),
		invitations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tenantgate",
				Name:      "invitation_events_total",
				Help:      "Invitation lifecycle events, by outcome.",
			},
			[]string{"event"},
		),
		requests: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "tenantgate",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency, by route pattern, method and status.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
			},
			[]string{"route", "method", "status"},
		),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.resolutions,
		m.invitations,
		m.requests,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveResolution counts one resolved request.
func (m *Metrics) ObserveResolution(mode routing.Mode) {
	if m == nil || mode == "" {
		return
	}
	m.resolutions.WithLabelValues(string(mode)).Inc()
}

// ObserveInvitation counts one invitation event.
func (m *Metrics) ObserveInvitation(event string) {
	if m == nil {
		return
	}
	m.invitations.WithLabelValues(event).Inc()
}

// AcceptOutcome maps the result of an invitation accept to its event label.
func AcceptOutcome(err error) string {
	switch {
	case err == nil:
		return InvitationAccepted
	case errors.Is(err, models.ErrInvitationAlreadyAccepted):
		return InvitationAlreadyAccepted
	case errors.Is(err, models.ErrInvitationNotFound):
		return InvitationNotFound
	case errors.Is(err, models.ErrInvalidLicense):
		return InvitationLicenseInvalid
	default:
		return InvitationFailed
	}
}

// Middleware records request latency and, when routing.Middleware ran
// earlier in the chain, the routing mode.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		if rr := routing.FromRequest(r); rr != nil {
			m.ObserveResolution(rr.Mode)
		}
		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}
