package monitoring

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	admissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seat_admissions_total",
			Help: "Checkout admission attempts by outcome",
		},
		[]string{"event_id", "outcome"},
	)

	confirmations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_confirmations_total",
			Help: "Payment confirmation attempts by result",
		},
		[]string{"result"},
	)

	reapedHolds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reaped_holds_total",
			Help: "Expired holds released by the reaper",
		},
	)
)

func RecordAdmission(eventID uint, outcome string) {
	admissions.WithLabelValues(strconv.FormatUint(uint64(eventID), 10), outcome).Inc()
}

func RecordConfirmation(result string) {
	confirmations.WithLabelValues(result).Inc()
}

func RecordReaped(n int) {
	reapedHolds.Add(float64(n))
}
