package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the driver's prometheus collectors on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	Frames      *prometheus.CounterVec // labels: direction=sent|received
	FrameErrors *prometheus.CounterVec // labels: kind=length|checksum|io
	Snapshots   *prometheus.CounterVec // labels: kind=blocks|arrows, result=ok|error
	Detections  *prometheus.CounterVec // labels: kind=blocks|arrows
	LastCount   *prometheus.GaugeVec   // labels: kind=blocks|arrows
}

// NewMetrics registers and returns the driver metrics along with the Go
// runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		Registry: reg,
		Frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "huskylens_frames_total",
			Help: "Frames exchanged with the device.",
		}, []string{"direction"}),
		FrameErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "huskylens_frame_errors_total",
			Help: "Frames that failed to arrive or validate.",
		}, []string{"kind"}),
		Snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "huskylens_snapshots_total",
			Help: "Record-list polls made by the recorder.",
		}, []string{"kind", "result"}),
		Detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "huskylens_detections_total",
			Help: "Blocks or arrows recorded.",
		}, []string{"kind"}),
		LastCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "huskylens_last_snapshot_records",
			Help: "Number of records in the most recent snapshot.",
		}, []string{"kind"}),
	}
	reg.MustRegister(m.Frames, m.FrameErrors, m.Snapshots, m.Detections, m.LastCount)
	return m
}

// Handler returns the prometheus exposition handler for the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// ObserveSnapshot records the outcome of one recorder poll.
func (m *Metrics) ObserveSnapshot(kind string, records int, err error) {
	if err != nil {
		m.Snapshots.WithLabelValues(kind, "error").Inc()
		return
	}
	m.Snapshots.WithLabelValues(kind, "ok").Inc()
	m.Detections.WithLabelValues(kind).Add(float64(records))
	m.LastCount.WithLabelValues(kind).Set(float64(records))
}
