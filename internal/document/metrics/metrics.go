package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var durationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300}

// Metrics provides observability for the document engine: sweep and reminder
// cycles, renewals and status transitions. A nil *Metrics records nothing.
type Metrics struct {
	SweepRuns         *prometheus.CounterVec
	SweepDuration     prometheus.Histogram
	SweepDocuments    *prometheus.CounterVec
	StatusTransitions *prometheus.CounterVec

	ReminderRuns     *prometheus.CounterVec
	ReminderDuration prometheus.Histogram
	RemindersSent    *prometheus.CounterVec
	ReminderSkips    *prometheus.CounterVec

	RenewalsCompleted prometheus.Counter
	RenewalConflicts  prometheus.Counter
	OrphanedFiles     prometheus.Counter
	BulkItems         *prometheus.CounterVec
}

// New registers every document metric with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SweepRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetdocs_sweep_runs_total",
			Help: "Status sweep cycles by outcome",
		}, []string{"outcome"}),
		SweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fleetdocs_sweep_duration_seconds",
			Help:    "Duration of a full status sweep",
			Buckets: durationBuckets,
		}),
		SweepDocuments: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetdocs_sweep_documents_total",
			Help: "Documents visited by the sweep by result",
		}, []string{"result"}),
		StatusTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetdocs_status_transitions_total",
			Help: "Persisted status changes by source and target status",
		}, []string{"from", "to"}),
		ReminderRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetdocs_reminder_runs_total",
			Help: "Reminder dispatch cycles by outcome",
		}, []string{"outcome"}),
		ReminderDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fleetdocs_reminder_duration_seconds",
			Help:    "Duration of a full reminder dispatch cycle",
			Buckets: durationBuckets,
		}),
		RemindersSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetdocs_reminders_sent_total",
			Help: "Reminders accepted by the notification provider, by kind",
		}, []string{"kind"}),
		ReminderSkips: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetdocs_reminder_skips_total",
			Help: "Due reminders not sent this cycle, by reason",
		}, []string{"reason"}),
		RenewalsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "fleetdocs_renewals_completed_total",
			Help: "Renewals committed",
		}),
		RenewalConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "fleetdocs_renewal_conflicts_total",
			Help: "Renewals refused because another renewal held the document",
		}),
		OrphanedFiles: factory.NewCounter(prometheus.CounterOpts{
			Name: "fleetdocs_orphaned_files_total",
			Help: "Uploaded files that could not be removed after a failed renewal",
		}),
		BulkItems: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetdocs_bulk_status_items_total",
			Help: "Bulk status update items by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) ObserveSweep(start time.Time, err error) {
	if m == nil {
		return
	}
	m.SweepRuns.WithLabelValues(outcome(err)).Inc()
	m.SweepDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncSweepDocument(result string) {
	if m == nil {
		return
	}
	m.SweepDocuments.WithLabelValues(result).Inc()
}

func (m *Metrics) IncTransition(from, to string) {
	if m == nil {
		return
	}
	m.StatusTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) ObserveReminderRun(start time.Time, err error) {
	if m == nil {
		return
	}
	m.ReminderRuns.WithLabelValues(outcome(err)).Inc()
	m.ReminderDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncReminderSent(kind string) {
	if m == nil {
		return
	}
	m.RemindersSent.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncReminderSkip(reason string) {
	if m == nil {
		return
	}
	m.ReminderSkips.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncRenewalCompleted() {
	if m == nil {
		return
	}
	m.RenewalsCompleted.Inc()
}

func (m *Metrics) IncRenewalConflict() {
	if m == nil {
		return
	}
	m.RenewalConflicts.Inc()
}

func (m *Metrics) IncOrphanedFile() {
	if m == nil {
		return
	}
	m.OrphanedFiles.Inc()
}

func (m *Metrics) IncBulkItem(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.BulkItems.WithLabelValues("ok").Inc()
		return
	}
	m.BulkItems.WithLabelValues("failed").Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
