// Package metrics records share-link builds in a Prometheus registry that
// can be scraped or dumped to a node_exporter textfile.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "singbox_share"

// ShareMetrics implements share.Observer.
type ShareMetrics struct {
	registry     *prometheus.Registry
	builds       *prometheus.CounterVec
	payloadBytes prometheus.Histogram
	qrChunks     prometheus.Histogram
}

// NewShareMetrics creates the collectors on a private registry. When
// withRuntime is set the Go and process collectors are registered too.
func NewShareMetrics(withRuntime bool) *ShareMetrics {
	m := &ShareMetrics{
		registry: prometheus.NewRegistry(),
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "builds_total",
			Help:      "Share link builds by result",
		}, []string{"result"}),
		payloadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "payload_bytes",
			Help:      "Size of the compressed share payload",
			Buckets:   prometheus.ExponentialBuckets(256, 2, 10),
		}),
		qrChunks: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "qr_chunks",
			Help:      "Number of QR frames per share",
			Buckets:   []float64{1, 2, 3, 4, 6, 8, 16, 32, 64, 255},
		}),
	}
	m.registry.MustRegister(m.builds, m.payloadBytes, m.qrChunks)
	if withRuntime {
		m.registry.MustRegister(collectors.NewGoCollector())
		m.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	return m
}

// ObserveBuild records one pipeline run.
func (m *ShareMetrics) ObserveBuild(err error, payloadBytes, chunks int) {
	if err != nil {
		m.builds.WithLabelValues("error").Inc()
		return
	}
	m.builds.WithLabelValues("ok").Inc()
	m.payloadBytes.Observe(float64(payloadBytes))
	m.qrChunks.Observe(float64(chunks))
}

// Registry exposes the underlying registry.
func (m *ShareMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the current values in the text exposition format,
// atomically replacing path.
func (m *ShareMetrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
