package csim

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Exchange outcomes used as the "outcome" label.
const (
	OutcomeOK        = "ok"
	OutcomeStatus    = "status"
	OutcomeProtocol  = "protocol"
	OutcomeTransport = "transport"
	OutcomeFormat    = "format"
)

// Metrics counts AT+CSIM exchanges by instruction and outcome and observes
// the modem round trip.
type Metrics struct {
	exchanges *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewMetrics registers the exchange metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		exchanges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "csim_exchanges_total",
			Help: "Total number of AT+CSIM exchanges",
		}, []string{"ins", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "csim_exchange_duration_seconds",
			Help:    "Duration of the modem round trip of an AT+CSIM exchange",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"ins"}),
	}
}

func (m *Metrics) observe(ins, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.exchanges.WithLabelValues(ins, outcome).Inc()
	if outcome != OutcomeFormat {
		m.duration.WithLabelValues(ins).Observe(elapsed.Seconds())
	}
}
