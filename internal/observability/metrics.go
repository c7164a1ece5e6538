package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lake_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// telemetry workflow.
type Metrics struct {
	FlowRuns     *prometheus.CounterVec   // labels: flow={hindcast,forecast}, outcome={success,error}
	FlowDuration *prometheus.HistogramVec // labels: flow={hindcast,forecast}
	RowsStored   *prometheus.CounterVec   // labels: flow={hindcast,forecast}
	RowsTrimmed  *prometheus.CounterVec   // labels: flow={hindcast,forecast}

	// Upstream fetch metrics.
	RecordsFetched *prometheus.CounterVec   // labels: source={buoy,shore,gridpoint}
	FetchDuration  *prometheus.HistogramVec // labels: source={buoy,shore,gridpoint}

	// Cleaning metrics.
	ValuesRepaired *prometheus.CounterVec // labels: stage={clip,sigma,stuck}

	MessagesPublished prometheus.Counter
	UploadedFiles     prometheus.Counter
	WorkflowRunning   prometheus.Gauge
}

// NewMetrics creates all workflow metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(
		m.FlowRuns,
		m.FlowDuration,
		m.RowsStored,
		m.RowsTrimmed,
		m.RecordsFetched,
		m.FetchDuration,
		m.ValuesRepaired,
		m.MessagesPublished,
		m.UploadedFiles,
		m.WorkflowRunning,
	)
	return m
}

// NewMetricsForTesting creates Metrics left unregistered, so parallel tests
// never race on a shared registry.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FlowRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_runs_total",
			Help:      "Completed flow executions by flow and outcome.",
		}, []string{"flow", "outcome"}),
		FlowDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flow_duration_seconds",
			Help:      "Duration of one complete fetch-fuse-clean-store cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"flow"}),
		RowsStored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_stored_total",
			Help:      "Rows written to the archive by flow.",
		}, []string{"flow"}),
		RowsTrimmed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_trimmed_total",
			Help:      "Fused rows dropped for carrying absent cells, by flow.",
		}, []string{"flow"}),
		RecordsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_fetched_total",
			Help:      "Raw records retrieved from upstream feeds by source.",
		}, []string{"source"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Upstream feed request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		ValuesRepaired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "values_repaired_total",
			Help:      "Cells altered by the cleaning pipeline by stage.",
		}, []string{"stage"}),
		MessagesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_published_total",
			Help:      "Fused rows published to the sink topic.",
		}),
		UploadedFiles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploaded_files_total",
			Help:      "Model output files uploaded to object storage.",
		}),
		WorkflowRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workflow_running",
			Help:      "1 while a workflow run is in progress, 0 when idle.",
		}),
	}
}
