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

package video

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

// Source grabs frames at the target rate and hands them to a FrameWriter.
// When a grab takes longer than the frame interval the effective rate drops;
// missed frames are not made up.
type Source struct {
	conf       *config.CaptureConfig
	grabber    Grabber
	writer     FrameWriter
	transforms []Transform
	clock      clock.Clock
	monitor    *stats.Monitor
	logger     logger.Logger

	mu     deadlock.Mutex
	latest *Frame
	err    error

	started core.Fuse
	stop    core.Fuse
	done    core.Fuse
	closed  core.Fuse

	captured atomic.Uint64
	skipped  atomic.Uint64
	lag      atomic.Duration
	warning  rate.Sometimes
}

type Stats struct {
	Captured uint64
	Skipped  uint64
	Lag      time.Duration // total time by which iterations overran the interval
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

func WithTransform(t Transform) Option {
	return func(s *Source) {
		if t != nil {
			s.transforms = append(s.transforms, t)
		}
	}
}

func NewSource(conf *config.CaptureConfig, grabber Grabber, writer FrameWriter, opts ...Option) *Source {
	s := &Source{
		conf:    conf,
		grabber: grabber,
		writer:  writer,
		clock:   clock.New(),
		logger:  logger.GetLogger().WithValues("source", "video"),
		warning: rate.Sometimes{Interval: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the capture loop. It returns once the loop is running.
func (s *Source) Start() error {
	if s.started.IsBroken() {
		return errors.ErrInvalidTransition
	}
	s.started.Break()

	go s.run()
	return nil
}

func (s *Source) run() {
	defer s.done.Break()

	interval := s.conf.FrameInterval()
	var first time.Time
	var seq uint64

	s.logger.Debugw("video capture started", "resolution", s.conf.Resolution(), "fps", s.conf.TargetFPS)
	for !s.stop.IsBroken() {
		iterStart := s.clock.Now()

		img, err := s.grabber.Grab()
		if err != nil {
			s.skipped.Inc()
			s.monitor.IncFramesSkipped()
			s.warning.Do(func() {
				s.logger.Warnw("screen grab failed, skipping frame", err, "skipped", s.skipped.Load())
			})
		} else {
			img = fit(img, s.conf.FrameWidth, s.conf.FrameHeight)
			for _, t := range s.transforms {
				t.Apply(img)
			}

			if seq == 0 {
				first = iterStart
			}
			f := &Frame{
				Image:     img,
				Timestamp: iterStart,
				PTS:       iterStart.Sub(first),
				Seq:       seq,
			}
			seq++

			if err = s.writer.Write(f); err != nil {
				s.logger.Errorw("failed to write frame", err, "seq", f.Seq)
				s.mu.Lock()
				s.err = errors.Fatal(err)
				s.mu.Unlock()
				return
			}

			s.mu.Lock()
			s.latest = f
			s.mu.Unlock()
			s.captured.Inc()
			s.monitor.IncFramesCaptured()
		}

		elapsed := s.clock.Since(iterStart)
		if wait := interval - elapsed; wait > 0 {
			s.clock.Sleep(wait)
		} else {
			s.lag.Add(-wait)
			s.monitor.ObserveFrameLag(-wait)
		}
	}
	s.logger.Debugw("video capture stopped", "captured", s.captured.Load(), "skipped", s.skipped.Load())
}

// PollFrame returns the most recently captured frame. The frame is shared and must not be modified.
func (s *Source) PollFrame() (*Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.latest != nil
}

// Stop signals the loop to exit after the current iteration.
func (s *Source) Stop() {
	s.stop.Break()
}

// Wait blocks until the loop has exited and releases the grabber.
func (s *Source) Wait() error {
	if s.started.IsBroken() {
		<-s.done.Watch()
	}

	s.closed.Once(func() {
		if err := s.grabber.Close(); err != nil {
			s.logger.Warnw("failed to close grabber", err)
		}
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed when the capture loop exits.
func (s *Source) Done() <-chan struct{} {
	return s.done.Watch()
}

func (s *Source) Stats() Stats {
	return Stats{
		Captured: s.captured.Load(),
		Skipped:  s.skipped.Load(),
		Lag:      s.lag.Load(),
	}
}
