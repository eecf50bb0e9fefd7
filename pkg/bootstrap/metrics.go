package bootstrap

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/gregLibert/sim-bootstrap/pkg/csim"
)

// Read results used as the "result" label.
const (
	ResultOK        = "ok"
	ResultNotFound  = "not_found"
	ResultInvalid   = "invalid"
	ResultTransport = "transport"
)

// Metrics counts bootstrap reads by result.
type Metrics struct {
	reads       *prometheus.CounterVec
	duration    prometheus.Histogram
	lastSuccess prometheus.Gauge
}

// NewMetrics registers the read metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		reads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bootstrap_reads_total",
			Help: "Total number of bootstrap reads",
		}, []string{"result"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name: "bootstrap_read_duration_seconds",
			Help: "Duration of a bootstrap read, channel open to close",
		}),
		lastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Name: "bootstrap_last_success_timestamp_seconds",
			Help: "Unix time of the last successful bootstrap read",
		}),
	}
}

// Result classifies the outcome of a read.
func Result(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, ErrNotFound):
		return ResultNotFound
	case errors.Is(err, csim.ErrInvalid):
		return ResultInvalid
	default:
		return ResultTransport
	}
}

func (m *Metrics) observe(err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.reads.WithLabelValues(Result(err)).Inc()
	m.duration.Observe(elapsed.Seconds())
	if err == nil {
		m.lastSuccess.SetToCurrentTime()
	}
}
