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
	"runtime"
	"time"

	"github.com/frostbyte73/core"
	"github.com/mackerelio/go-osstat/cpu"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"

	"github.com/livekit/protocol/logger"
)

// below this idle fraction, capture loops are likely to miss their frame interval
const minIdlePercent = 0.1

// CPUMonitor samples system cpu usage once per second while a recording runs.
type CPUMonitor struct {
	numCPUs  float64
	idleCPUs atomic.Float64
	warning  rate.Sometimes

	promCPULoad prometheus.Gauge

	done   core.Fuse
	closed core.Fuse
}

func NewCPUMonitor(nodeID string, reg prometheus.Registerer) *CPUMonitor {
	m := &CPUMonitor{
		numCPUs: float64(runtime.NumCPU()),
		warning: rate.Sometimes{Interval: time.Minute},
		promCPULoad: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "livekit",
			Subsystem:   "node",
			Name:        "cpu_load",
			ConstLabels: prometheus.Labels{"node_id": nodeID, "node_type": "RECORDER"},
		}),
	}
	m.idleCPUs.Store(m.numCPUs)
	reg.MustRegister(m.promCPULoad)
	return m
}

func (m *CPUMonitor) Start() {
	go m.monitorCPULoad()
}

func (m *CPUMonitor) monitorCPULoad() {
	defer m.closed.Break()

	prev, err := cpu.Get()
	if err != nil {
		logger.Warnw("cpu stats unavailable", err)
		return
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-m.done.Watch():
			return
		case <-ticker.C:
			next, err := cpu.Get()
			if err != nil {
				continue
			}
			if next.Total == prev.Total {
				continue
			}

			idlePercent := float64(next.Idle-prev.Idle) / float64(next.Total-prev.Total)
			m.idleCPUs.Store(m.numCPUs * idlePercent)
			m.promCPULoad.Set(m.numCPUs - (m.numCPUs * idlePercent))

			if idlePercent < minIdlePercent {
				m.warning.Do(func() {
					logger.Warnw("high cpu load, effective frame rate may drop", nil, "load", m.Load())
				})
			}

			prev = next
		}
	}
}

// Load returns cpu usage as a percentage.
func (m *CPUMonitor) Load() float64 {
	return (m.numCPUs - m.idleCPUs.Load()) / m.numCPUs * 100
}

func (m *CPUMonitor) Stop() {
	m.done.Break()
	<-m.closed.Watch()
}
