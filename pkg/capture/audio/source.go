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

package audio

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/frostbyte73/core"
	"github.com/linkdata/deadlock"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"

	"github.com/livekit/desktop-recorder/pkg/config"
	"github.com/livekit/desktop-recorder/pkg/errors"
	"github.com/livekit/desktop-recorder/pkg/stats"
	"github.com/livekit/protocol/logger"
)

const readErrorBackoff = 10 * time.Millisecond

// Source reads fixed-size chunks from a Device and appends them to a ChunkWriter.
type Source struct {
	conf    *config.CaptureConfig
	device  Device
	writer  ChunkWriter
	clock   clock.Clock
	monitor *stats.Monitor
	logger  logger.Logger

	mu  deadlock.Mutex
	err error

	started core.Fuse
	stop    core.Fuse
	done    core.Fuse
	closed  core.Fuse

	chunks     atomic.Uint64
	overflows  atomic.Uint64
	readErrors atomic.Uint64
	bytes      atomic.Uint64
	warning    rate.Sometimes
}

type Stats struct {
	Chunks     uint64
	Overflows  uint64
	ReadErrors uint64
	Bytes      uint64
}

type Option func(*Source)

func WithClock(c clock.Clock) Option {
	return func(s *Source) {
		s.clock = c
	}
}

func WithMonitor(m *stats.Monitor) Option {
	return func(s *Source) {
		s.monitor = m
	}
}

func NewSource(conf *config.CaptureConfig, device Device, writer ChunkWriter, opts ...Option) *Source {
	s := &Source{
		conf:    conf,
		device:  device,
		writer:  writer,
		clock:   clock.New(),
		logger:  logger.GetLogger().WithValues("source", "audio"),
		warning: rate.Sometimes{Interval: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the device and launches the read loop. Open failures are returned here.
func (s *Source) Start() error {
	if s.started.IsBroken() {
		return errors.ErrInvalidTransition
	}

	if err := s.device.Open(s.conf); err != nil {
		return errors.ErrDeviceOpen(s.device.Name(), err)
	}
	s.started.Break()

	go s.run()
	return nil
}

func (s *Source) run() {
	defer s.done.Break()

	s.logger.Debugw("audio capture started",
		"device", s.device.Name(),
		"sampleRate", s.conf.AudioSampleRate,
		"channels", s.conf.AudioChannels,
		"bitDepth", s.conf.AudioBitDepth,
	)

	size := s.conf.ChunkBytes()
	for !s.stop.IsBroken() {
		buf := make([]byte, size)
		ts := s.clock.Now()

		err := s.device.Read(buf)
		switch {
		case err == nil:
		case errors.Is(err, errors.ErrInputOverflow):
			// samples before this buffer were lost, the buffer itself is valid
			s.overflows.Inc()
			s.monitor.IncAudioOverflows()
		default:
			s.readErrors.Inc()
			s.monitor.IncAudioErrors()
			s.warning.Do(func() {
				s.logger.Warnw("audio read failed", err, "errors", s.readErrors.Load())
			})
			s.clock.Sleep(readErrorBackoff)
			continue
		}

		if err = s.writer.Append(&Chunk{Data: buf, Timestamp: ts}); err != nil {
			s.logger.Errorw("failed to append audio", err)
			s.mu.Lock()
			s.err = errors.Fatal(err)
			s.mu.Unlock()
			return
		}
		s.chunks.Inc()
		s.bytes.Add(uint64(len(buf)))
		s.monitor.IncAudioChunks()
	}

	s.logger.Debugw("audio capture stopped",
		"chunks", s.chunks.Load(),
		"overflows", s.overflows.Load(),
		"errors", s.readErrors.Load(),
	)
}

// Stop signals the loop to exit after the current read.
func (s *Source) Stop() {
	s.stop.Break()
}

// Wait blocks until the loop has exited and closes the device.
func (s *Source) Wait() error {
	if !s.started.IsBroken() {
		return nil
	}
	<-s.done.Watch()

	s.closed.Once(func() {
		if err := s.device.Close(); err != nil {
			s.logger.Warnw("failed to close audio device", err)
		}
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed when the read loop exits.
func (s *Source) Done() <-chan struct{} {
	return s.done.Watch()
}

func (s *Source) Stats() Stats {
	return Stats{
		Chunks:     s.chunks.Load(),
		Overflows:  s.overflows.Load(),
		ReadErrors: s.readErrors.Load(),
		Bytes:      s.bytes.Load(),
	}
}
