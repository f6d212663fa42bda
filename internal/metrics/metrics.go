// Package metrics exposes conversion counters in the Prometheus format.
//
// Metrics live in a private registry and are written once per run to a text
// file for the node_exporter textfile collector.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/xbst-tools/xbst/internal/audio"
)

// Result label values.
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)

// Metrics holds all conversion metrics.
type Metrics struct {
	Registry *prometheus.Registry

	// Scan metrics
	SoundtracksScanned prometheus.Gauge
	SongsScanned       prometheus.Gauge
	SongGroupsScanned  prometheus.Gauge
	CapacityWarnings   prometheus.Counter

	// Probe metrics
	ProbesTotal          *prometheus.CounterVec
	ProbeDurationSeconds prometheus.Histogram

	// Transcode metrics
	TranscodesTotal          *prometheus.CounterVec
	TranscodeDurationSeconds prometheus.Histogram

	// Database metrics
	DatabaseBytes prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered on its own registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		SoundtracksScanned: factory.NewGauge(prometheus.GaugeOpts{
			Name: "xbst_soundtracks_scanned",
			Help: "Number of soundtrack folders found by the last scan",
		}),
		SongsScanned: factory.NewGauge(prometheus.GaugeOpts{
			Name: "xbst_songs_scanned",
			Help: "Number of songs found by the last scan",
		}),
		SongGroupsScanned: factory.NewGauge(prometheus.GaugeOpts{
			Name: "xbst_song_groups_scanned",
			Help: "Number of song group records built by the last scan",
		}),
		CapacityWarnings: factory.NewCounter(prometheus.CounterOpts{
			Name: "xbst_capacity_warnings_total",
			Help: "Soundtracks that overflowed a fixed field of their record",
		}),

		ProbesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "xbst_probes_total",
			Help: "Duration probes by result",
		}, []string{"result"}),
		ProbeDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "xbst_probe_duration_seconds",
			Help:    "Time spent probing one file",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),

		TranscodesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "xbst_transcodes_total",
			Help: "Transcoded songs by result",
		}, []string{"result"}),
		TranscodeDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "xbst_transcode_duration_seconds",
			Help:    "Time spent transcoding one song",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),

		DatabaseBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "xbst_database_bytes",
			Help: "Size of the written ST.DB",
		}),
	}
}

// WriteToTextfile writes every metric to path in the text exposition format.
func (m *Metrics) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}

func result(err error) string {
	if err != nil {
		return ResultFailed
	}
	return ResultOK
}

type instrumentedProber struct {
	next    audio.DurationProber
	metrics *Metrics
}

// InstrumentProber counts and times every probe made through p.
func (m *Metrics) InstrumentProber(p audio.DurationProber) audio.DurationProber {
	return &instrumentedProber{next: p, metrics: m}
}

func (p *instrumentedProber) Probe(ctx context.Context, path string) (int32, error) {
	start := time.Now()
	ms, err := p.next.Probe(ctx, path)
	p.metrics.ProbeDurationSeconds.Observe(time.Since(start).Seconds())
	p.metrics.ProbesTotal.WithLabelValues(result(err)).Inc()
	return ms, err
}

type instrumentedTranscoder struct {
	next    audio.Transcoder
	metrics *Metrics
}

// InstrumentTranscoder counts and times every transcode made through t.
func (m *Metrics) InstrumentTranscoder(t audio.Transcoder) audio.Transcoder {
	return &instrumentedTranscoder{next: t, metrics: m}
}

func (t *instrumentedTranscoder) Transcode(ctx context.Context, inputPath, outputDir string, soundtrackIndex, songIndex uint32, bitrateKbps int) error {
	start := time.Now()
	err := t.next.Transcode(ctx, inputPath, outputDir, soundtrackIndex, songIndex, bitrateKbps)
	t.metrics.TranscodeDurationSeconds.Observe(time.Since(start).Seconds())
	t.metrics.TranscodesTotal.WithLabelValues(result(err)).Inc()
	return err
}
