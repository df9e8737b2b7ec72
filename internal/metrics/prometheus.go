package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "whisper_stream"

// Metrics contains the Prometheus collectors for model acquisition and
// audio capture. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Acquisition
	Downloads     *prometheus.CounterVec
	DownloadBytes prometheus.Counter
	CacheHits     prometheus.Counter

	// Archive expansion
	EntriesSkipped prometheus.Counter
	Rollbacks      prometheus.Counter

	// Recording
	SamplesRecorded  prometheus.Counter
	NonFiniteSamples prometheus.Counter
}

// New creates all collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Downloads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Total number of artifact downloads by result",
		}, []string{"result"}),
		DownloadBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_bytes_total",
			Help:      "Total number of bytes written by artifact downloads",
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of ensure calls satisfied from the local cache",
		}),
		EntriesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_entries_skipped_total",
			Help:      "Total number of archive entries skipped because they escape the destination",
		}),
		Rollbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_rollbacks_total",
			Help:      "Total number of failed archive expansions that triggered cleanup",
		}),
		SamplesRecorded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_recorded_total",
			Help:      "Total number of samples written to recordings",
		}),
		NonFiniteSamples: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nonfinite_samples_total",
			Help:      "Total number of NaN or infinite samples replaced with silence",
		}),
	}
}

// ObserveDownload records one finished download attempt.
func (m *Metrics) ObserveDownload(ok bool, bytes int64) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.Downloads.WithLabelValues(result).Inc()
	if bytes > 0 {
		m.DownloadBytes.Add(float64(bytes))
	}
}

// ObserveCacheHit records an ensure call that needed no network I/O.
func (m *Metrics) ObserveCacheHit() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}

// ObserveSkippedEntry records an archive entry rejected by the path guard.
func (m *Metrics) ObserveSkippedEntry() {
	if m == nil {
		return
	}
	m.EntriesSkipped.Inc()
}

// ObserveRollback records a cleanup after failed expansion.
func (m *Metrics) ObserveRollback() {
	if m == nil {
		return
	}
	m.Rollbacks.Inc()
}

// ObserveSamples records samples appended to a recording.
func (m *Metrics) ObserveSamples(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SamplesRecorded.Add(float64(n))
}

// ObserveNonFinite records one sample replaced with silence.
func (m *Metrics) ObserveNonFinite() {
	if m == nil {
		return
	}
	m.NonFiniteSamples.Inc()
}

// WriteTextfile dumps the gathered metrics in text exposition format, for
// the node exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
