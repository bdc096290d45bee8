// Package metrics exposes Prometheus collectors for the booking and
// assignment flows. A nil *Metrics is valid and records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups every collector the service records into.
type Metrics struct {
	bookings      *prometheus.CounterVec
	accepts       *prometheus.CounterVec
	availability  *prometheus.CounterVec
	dispatch      *prometheus.CounterVec
	httpLatency   *prometheus.HistogramVec
	subscriptions prometheus.Gauge
}

// New registers metrics on the default Prometheus registerer.
func New() (*Metrics, error) {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers metrics on reg. A nil registerer defaults to the
// global one. Collectors already registered are reused.
func NewWithRegistry(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tripmatch_bookings_total",
			Help: "Booking requests by outcome",
		}, []string{"platform", "outcome"}),
		accepts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tripmatch_accepts_total",
			Help: "Trip accept attempts by outcome",
		}, []string{"outcome"}),
		availability: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tripmatch_availability_checks_total",
			Help: "Availability checks by vehicle class and verdict",
		}, []string{"vehicle_class", "available"}),
		dispatch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tripmatch_dispatch_updates_total",
			Help: "External dispatch updates by resulting trip status",
		}, []string{"status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tripmatch_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tripmatch_change_subscriptions",
			Help: "Open change-notification subscriptions",
		}),
	}

	var err error
	if m.bookings, err = registerCounterVec(reg, m.bookings); err != nil {
		return nil, err
	}
	if m.accepts, err = registerCounterVec(reg, m.accepts); err != nil {
		return nil, err
	}
	if m.availability, err = registerCounterVec(reg, m.availability); err != nil {
		return nil, err
	}
	if m.dispatch, err = registerCounterVec(reg, m.dispatch); err != nil {
		return nil, err
	}
	if err := reg.Register(m.httpLatency); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		m.httpLatency = are.ExistingCollector.(*prometheus.HistogramVec)
	}
	if err := reg.Register(m.subscriptions); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		m.subscriptions = are.ExistingCollector.(prometheus.Gauge)
	}
	return m, nil
}

func registerCounterVec(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(*prometheus.CounterVec), nil
		}
		return nil, err
	}
	return c, nil
}

// RecordBooking counts one booking request.
func (m *Metrics) RecordBooking(platform, outcome string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(platform, outcome).Inc()
}

// RecordAccept counts one accept attempt.
func (m *Metrics) RecordAccept(outcome string) {
	if m == nil {
		return
	}
	m.accepts.WithLabelValues(outcome).Inc()
}

// RecordAvailability counts one availability verdict.
func (m *Metrics) RecordAvailability(class string, available bool) {
	if m == nil {
		return
	}
	m.availability.WithLabelValues(class, strconv.FormatBool(available)).Inc()
}

// RecordDispatch counts one applied dispatch update.
func (m *Metrics) RecordDispatch(status string) {
	if m == nil {
		return
	}
	m.dispatch.WithLabelValues(status).Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpLatency.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// SubscriptionOpened and SubscriptionClosed track live change streams.
func (m *Metrics) SubscriptionOpened() {
	if m != nil {
		m.subscriptions.Inc()
	}
}

func (m *Metrics) SubscriptionClosed() {
	if m != nil {
		m.subscriptions.Dec()
	}
}
