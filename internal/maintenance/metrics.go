package maintenance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type runnerMetrics struct {
	records     *prometheus.GaugeVec
	overdue     prometheus.Gauge
	runs        *prometheus.CounterVec
	lastSuccess prometheus.Gauge
}

// newRunnerMetrics registers with reg; a nil reg leaves the collectors unregistered.
func newRunnerMetrics(reg prometheus.Registerer) *runnerMetrics {
	f := promauto.With(reg)
	return &runnerMetrics{
		records: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "todos_records",
			Help: "Todo records by status as of the last maintenance run",
		}, []string{"status"}),
		overdue: f.NewGauge(prometheus.GaugeOpts{
			Name: "todos_overdue",
			Help: "Incomplete todos past their due date as of the last maintenance run",
		}),
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "todos_maintenance_runs_total",
			Help: "Maintenance runs by result",
		}, []string{"result"}),
		lastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Name: "todos_maintenance_last_success_timestamp_seconds",
			Help: "Unix time of the last successful maintenance run",
		}),
	}
}

func (m *runnerMetrics) observe(rep Report) {
	m.records.WithLabelValues("total").Set(float64(rep.Stats.Total))
	m.records.WithLabelValues("active").Set(float64(rep.Stats.Active))
	m.records.WithLabelValues("completed").Set(float64(rep.Stats.Completed))
	m.overdue.Set(float64(len(rep.Overdue)))
	m.runs.WithLabelValues("success").Inc()
	m.lastSuccess.Set(float64(rep.FinishedAt.Unix()))
}
