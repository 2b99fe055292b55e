// Copyright 2025 LiveKit, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package stats

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	statusSuccess = "success"
	statusFailure = "failure"
)

// Monitor exports capture, mux and upload metrics. A nil Monitor is a no-op.
type Monitor struct {
	framesCaptured prometheus.Counter
	framesSkipped  prometheus.Counter
	frameLag       prometheus.Histogram
	audioChunks    prometheus.Counter
	audioOverflows prometheus.Counter
	audioErrors    prometheus.Counter
	recording      prometheus.Gauge

	muxCounter          *prometheus.CounterVec
	muxResponseTime     *prometheus.HistogramVec
	uploadsCounter      *prometheus.CounterVec
	uploadsResponseTime *prometheus.HistogramVec
	backupWrites        *prometheus.CounterVec
}

func NewMonitor(nodeID string, reg prometheus.Registerer) *Monitor {
	m := &Monitor{}
	constantLabels := prometheus.Labels{"node_id": nodeID}

	m.framesCaptured = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   "livekit",
		Subsystem:   "recorder",
		Name:        "frames_captured",
		Help:        "Number of screen frames written to the video sink",
		ConstLabels: constantLabels,
	})
	m.framesSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   "livekit",
		Subsystem:   "recorder",
		Name:        "frames_skipped",
		Help:        "Number of screen grabs that failed and were skipped",
		ConstLabels: constantLabels,
	})
	m.frameLag = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   "livekit",
		Subsystem:   "recorder",
		Name:        "frame_lag_ms",
		Help:        "Time by which a capture iteration exceeded the frame interval",
		Buckets:     []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		ConstLabels: constantLabels,
	})
	m.audioChunks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   "livekit",
		Subsystem:   "recorder",
		Name:        "audio_chunks",
		Help:        "Number of audio buffers appended to the audio sink",
		ConstLabels: constantLabels,
	})
	m.audioOverflows = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   "livekit",
		Subsystem:   "recorder",
		Name:        "audio_overflows",
		Help:        "Number of input overflows reported by the audio device",
		ConstLabels: constantLabels,
	})
	m.audioErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   "livekit",
		Subsystem:   "recorder",
		Name:        "audio_read_errors",
		Help:        "Number of failed audio device reads",
		ConstLabels: constantLabels,
	})
	m.recording = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "livekit",
		Subsystem:   "recorder",
		Name:        "recording",
		Help:        "1 while a session is recording",
		ConstLabels: constantLabels,
	})

	m.muxCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   "livekit",
		Subsystem:   "recorder",
		Name:        "mux",
		Help:        "Number of mux attempts with status labels",
		ConstLabels: constantLabels,
	}, []string{"status"})
	m.muxResponseTime = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   "livekit",
		Subsystem:   "recorder",
		Name:        "mux_time_ms",
		Help:        "A histogram of mux durations in milliseconds.",
		Buckets:     []float64{50, 100, 200, 500, 1000, 2000, 5000, 10000, 30000, 60000},
		ConstLabels: constantLabels,
	}, []string{"status"})

	m.uploadsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   "livekit",
		Subsystem:   "recorder",
		Name:        "uploads",
		Help:        "Number of uploads with type and status labels",
		ConstLabels: constantLabels,
	}, []string{"type", "status"})
	m.uploadsResponseTime = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   "livekit",
		Subsystem:   "recorder",
		Name:        "upload_response_time_ms",
		Help:        "A histogram of latencies for upload requests in milliseconds.",
		Buckets:     []float64{10, 20, 50, 100, 200, 500, 1000, 2000, 5000, 10000, 15000, 20000, 30000},
		ConstLabels: constantLabels,
	}, []string{"type", "status"})
	m.backupWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   "livekit",
		Subsystem:   "recorder",
		Name:        "backup_storage_writes",
		Help:        "Number of uploads written to backup storage",
		ConstLabels: constantLabels,
	}, []string{"type"})

	reg.MustRegister(
		m.framesCaptured, m.framesSkipped, m.frameLag,
		m.audioChunks, m.audioOverflows, m.audioErrors, m.recording,
		m.muxCounter, m.muxResponseTime,
		m.uploadsCounter, m.uploadsResponseTime, m.backupWrites,
	)

	return m
}

func (m *Monitor) IncFramesCaptured() {
	if m != nil {
		m.framesCaptured.Inc()
	}
}

func (m *Monitor) IncFramesSkipped() {
	if m != nil {
		m.framesSkipped.Inc()
	}
}

func (m *Monitor) ObserveFrameLag(lag time.Duration) {
	if m != nil {
		m.frameLag.Observe(float64(lag.Milliseconds()))
	}
}

func (m *Monitor) IncAudioChunks() {
	if m != nil {
		m.audioChunks.Inc()
	}
}

func (m *Monitor) IncAudioOverflows() {
	if m != nil {
		m.audioOverflows.Inc()
	}
}

func (m *Monitor) IncAudioErrors() {
	if m != nil {
		m.audioErrors.Inc()
	}
}

func (m *Monitor) SetRecording(recording bool) {
	if m == nil {
		return
	}
	if recording {
		m.recording.Set(1)
	} else {
		m.recording.Set(0)
	}
}

func (m *Monitor) ObserveMux(success bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{"status": status(success)}
	m.muxCounter.With(labels).Inc()
	m.muxResponseTime.With(labels).Observe(float64(elapsed.Milliseconds()))
}

func (m *Monitor) IncUploadCountSuccess(uploadType string, elapsed float64) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{"type": uploadType, "status": statusSuccess}
	m.uploadsCounter.With(labels).Add(1)
	m.uploadsResponseTime.With(labels).Observe(elapsed)
}

func (m *Monitor) IncUploadCountFailure(uploadType string, elapsed float64) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{"type": uploadType, "status": statusFailure}
	m.uploadsCounter.With(labels).Add(1)
	m.uploadsResponseTime.With(labels).Observe(elapsed)
}

func (m *Monitor) IncBackupStorageWrites(uploadType string) {
	if m != nil {
		m.backupWrites.With(prometheus.Labels{"type": uploadType}).Inc()
	}
}

func status(success bool) string {
	if success {
		return statusSuccess
	}
	return statusFailure
}
