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

package session

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/frostbyte73/core"
	"github.com/linkdata/deadlock"
	"golang.org/x/sync/errgroup"

	"github.com/livekit/desktop-recorder/pkg/capture/audio"
	"github.com/livekit/desktop-recorder/pkg/capture/video"
	"github.com/livekit/desktop-recorder/pkg/errors"
	"github.com/livekit/desktop-recorder/pkg/logging"
	"github.com/livekit/desktop-recorder/pkg/sink"
	"github.com/livekit/desktop-recorder/pkg/stats"
	"github.com/livekit/desktop-recorder/pkg/types"
	"github.com/livekit/protocol/logger"
)

const statsInterval = time.Second

// AudioOutput receives audio chunks and writes them to a file once capture ends.
type AudioOutput interface {
	audio.ChunkWriter
	Finalize(ctx context.Context, filename string) error
}

// Session runs one screen and one microphone capture in parallel.
type Session struct {
	videoSrc  *video.Source
	audioSrc  *audio.Source
	videoSink sink.VideoSink
	audioSink AudioOutput
	audioPath string

	clock       clock.Clock
	monitor     *stats.Monitor
	statsLogger *logging.CSVLogger[logging.CaptureStats]
	logger      logger.Logger

	mu        deadlock.Mutex
	state     types.SessionState
	startedAt time.Time
	endedAt   time.Time
	err       error

	failed core.Fuse
	closed core.Fuse
}

type Stats struct {
	State          types.SessionState
	FramesCaptured uint64
	FramesSkipped  uint64
	FrameLag       time.Duration
	AudioChunks    uint64
	AudioOverflows uint64
	AudioBytes     uint64
	Duration       time.Duration
}

type Option func(*Session)

func WithClock(c clock.Clock) Option {
	return func(s *Session) {
		s.clock = c
	}
}

func WithMonitor(m *stats.Monitor) Option {
	return func(s *Session) {
		s.monitor = m
	}
}

// WithStatsLogger writes a row of capture counters every second while recording.
func WithStatsLogger(l *logging.CSVLogger[logging.CaptureStats]) Option {
	return func(s *Session) {
		s.statsLogger = l
	}
}

// New creates an idle session. The sources must write to the given sinks.
func New(
	videoSrc *video.Source,
	audioSrc *audio.Source,
	videoSink sink.VideoSink,
	audioSink AudioOutput,
	audioPath string,
	opts ...Option,
) *Session {
	s := &Session{
		videoSrc:  videoSrc,
		audioSrc:  audioSrc,
		videoSink: videoSink,
		audioSink: audioSink,
		audioPath: audioPath,
		clock:     clock.New(),
		logger:    logger.GetLogger().WithValues("video", videoSink.Path(), "audio", audioPath),
		state:     types.SessionIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// transition moves to next, or returns ErrInvalidTransition. Must hold mu.
func (s *Session) transition(next types.SessionState) error {
	if !s.state.CanTransition(next) {
		return errors.ErrInvalidTransition
	}
	s.logger.Debugw("session state", "from", s.state.String(), "to", next.String())
	s.state = next
	return nil
}

// Start starts both captures and returns once both are running.
// If either fails to start, everything is released and the session is closed.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != types.SessionIdle {
		return errors.ErrInvalidTransition
	}

	g, _ := errgroup.WithContext(ctx)
	g.Go(s.videoSrc.Start)
	g.Go(s.audioSrc.Start)
	if err := g.Wait(); err != nil {
		s.logger.Errorw("failed to start capture", err)
		s.releaseLocked()
		if s.statsLogger != nil {
			// nothing was captured
			s.statsLogger.Discard()
		}
		_ = s.transition(types.SessionClosed)
		s.err = err
		s.closed.Break()
		return err
	}

	_ = s.transition(types.SessionRecording)
	s.startedAt = s.clock.Now()
	s.monitor.SetRecording(true)
	go s.watch()

	s.logger.Infow("recording started")
	return nil
}

// releaseLocked stops and joins whichever source started and closes the video sink.
func (s *Session) releaseLocked() {
	s.videoSrc.Stop()
	s.audioSrc.Stop()
	_ = s.videoSrc.Wait()
	_ = s.audioSrc.Wait()
	if err := s.videoSink.Close(); err != nil {
		s.logger.Warnw("failed to close video sink", err)
	}
}

// watch reports sources that exit before Stop and writes periodic stats until the session closes.
func (s *Session) watch() {
	var tick <-chan time.Time
	if s.statsLogger != nil {
		ticker := s.clock.Ticker(statsInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	videoDone := s.videoSrc.Done()
	audioDone := s.audioSrc.Done()
	for {
		select {
		case <-s.closed.Watch():
			return
		case <-tick:
			s.writeStats()
		case <-videoDone:
			videoDone = nil
			s.sourceExited("video")
		case <-audioDone:
			audioDone = nil
			s.sourceExited("audio")
		}
	}
}

func (s *Session) sourceExited(kind string) {
	s.mu.Lock()
	recording := s.state == types.SessionRecording
	s.mu.Unlock()

	if recording {
		s.logger.Errorw("capture stopped unexpectedly", nil, "source", kind)
		s.failed.Break()
	}
}

func (s *Session) writeStats() {
	st := s.Stats()
	s.statsLogger.Write(&logging.CaptureStats{
		Timestamp:      s.clock.Now().Format(time.RFC3339),
		FramesCaptured: st.FramesCaptured,
		FramesSkipped:  st.FramesSkipped,
		FrameLag:       st.FrameLag,
		AudioChunks:    st.AudioChunks,
		AudioOverflows: st.AudioOverflows,
		AudioBytes:     st.AudioBytes,
	})
}

// Failed is closed if a capture loop exits on its own while recording.
func (s *Session) Failed() <-chan struct{} {
	return s.failed.Watch()
}

// Stop ends capture, closes the video file and finalizes the audio file, in that order.
// Every step runs even if an earlier one fails.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	if err := s.transition(types.SessionFinalizing); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.videoSrc.Stop()
	s.audioSrc.Stop()

	var errArray errors.ErrArray
	errArray.Check(s.videoSrc.Wait())
	errArray.Check(s.audioSrc.Wait())
	errArray.Check(s.videoSink.Close())
	errArray.Check(s.audioSink.Finalize(ctx, s.audioPath))

	s.mu.Lock()
	s.endedAt = s.clock.Now()
	_ = s.transition(types.SessionClosed)
	if errArray.Len() > 0 {
		s.err = errArray.ToError()
	}
	err := s.err
	s.mu.Unlock()

	s.closed.Break()
	s.monitor.SetRecording(false)
	if s.statsLogger != nil {
		s.writeStats()
		s.statsLogger.Close()
	}

	if err != nil {
		s.logger.Warnw("recording stopped with errors", err)
		return err
	}
	s.logger.Infow("recording stopped", "duration", s.endedAt.Sub(s.startedAt))
	return nil
}

func (s *Session) State() types.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Stats() Stats {
	s.mu.Lock()
	st := Stats{State: s.state}
	switch {
	case s.startedAt.IsZero():
	case s.endedAt.IsZero():
		st.Duration = s.clock.Since(s.startedAt)
	default:
		st.Duration = s.endedAt.Sub(s.startedAt)
	}
	s.mu.Unlock()

	vs := s.videoSrc.Stats()
	as := s.audioSrc.Stats()
	st.FramesCaptured = vs.Captured
	st.FramesSkipped = vs.Skipped
	st.FrameLag = vs.Lag
	st.AudioChunks = as.Chunks
	st.AudioOverflows = as.Overflows
	st.AudioBytes = as.Bytes
	return st
}
