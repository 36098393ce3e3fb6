// Package metrics exposes Prometheus counters for the attendance pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsRecorded counts ledger writes by check type.
	EventsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "facetrack_events_recorded_total",
		Help: "Attendance events written to the ledger.",
	}, []string{"check_type"})

	// DuplicatesRejected counts check-ins suppressed by the cooldown guard.
	DuplicatesRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "facetrack_duplicates_rejected_total",
		Help: "Check-ins rejected as duplicates within the cooldown window.",
	})

	// OrphanCheckOuts counts check-outs recorded without an open session.
	OrphanCheckOuts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "facetrack_orphan_checkouts_total",
		Help: "Check-outs recorded with no matching open check-in.",
	})
)
