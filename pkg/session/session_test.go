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
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/livekit/desktop-recorder/pkg/capture/audio"
	"github.com/livekit/desktop-recorder/pkg/capture/video"
	"github.com/livekit/desktop-recorder/pkg/config"
	lkerrors "github.com/livekit/desktop-recorder/pkg/errors"
	"github.com/livekit/desktop-recorder/pkg/logging"
	"github.com/livekit/desktop-recorder/pkg/types"
)

type stepClock struct {
	*clock.Mock
}

func (c *stepClock) Sleep(d time.Duration) {
	c.Add(d)
}

type fakeVideoSink struct {
	mu       sync.Mutex
	frames   uint64
	closed   bool
	writeErr error
	events   *[]string
}

func (s *fakeVideoSink) Write(_ *video.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return lkerrors.ErrSinkClosed
	}
	if s.writeErr != nil {
		return s.writeErr
	}
	s.frames++
	return nil
}

func (s *fakeVideoSink) Path() string { return "output_test.mp4" }

func (s *fakeVideoSink) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

func (s *fakeVideoSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	*s.events = append(*s.events, "video closed")
	return nil
}

func (s *fakeVideoSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeAudioSink struct {
	mu          sync.Mutex
	chunks      int
	finalized   string
	finalizeErr error
	events      *[]string
}

func (s *fakeAudioSink) Append(_ *audio.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks++
	return nil
}

func (s *fakeAudioSink) Finalize(_ context.Context, filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalized = filename
	*s.events = append(*s.events, "audio finalized")
	return s.finalizeErr
}

type brokenDevice struct {
	audio.Device
}

func (brokenDevice) Open(_ *config.CaptureConfig) error {
	return errors.New("device unplugged")
}

func (brokenDevice) Name() string { return "broken (Index 3)" }

func (brokenDevice) Close() error { return nil }

type testSession struct {
	*Session
	clock     *stepClock
	videoSink *fakeVideoSink
	audioSink *fakeAudioSink
	events    []string
}

func newTestSession(t *testing.T, device audio.Device, opts ...Option) *testSession {
	conf := &config.CaptureConfig{
		FrameWidth:        64,
		FrameHeight:       36,
		TargetFPS:         20,
		AudioSampleRate:   44100,
		AudioChannels:     2,
		AudioBitDepth:     16,
		AudioBufferFrames: 1024,
		InputDeviceID:     config.DefaultDevice,
	}

	ts := &testSession{clock: &stepClock{Mock: clock.NewMock()}}
	ts.videoSink = &fakeVideoSink{events: &ts.events}
	ts.audioSink = &fakeAudioSink{events: &ts.events}

	if device == nil {
		device = audio.NewToneDevice(440).WithClock(ts.clock)
	}
	videoSrc := video.NewSource(conf, video.NewPatternGrabber(64, 36), ts.videoSink, video.WithClock(ts.clock))
	audioSrc := audio.NewSource(conf, device, ts.audioSink, audio.WithClock(ts.clock))

	opts = append([]Option{WithClock(ts.clock)}, opts...)
	ts.Session = New(videoSrc, audioSrc, ts.videoSink, ts.audioSink, "output_test.mp3", opts...)
	return ts
}

func TestStartStop(t *testing.T) {
	s := newTestSession(t, nil)
	require.Equal(t, types.SessionIdle, s.State())

	require.NoError(t, s.Start(context.Background()))
	require.Equal(t, types.SessionRecording, s.State())
	require.ErrorIs(t, s.Start(context.Background()), lkerrors.ErrInvalidTransition)

	require.Eventually(t, func() bool {
		return s.videoSink.Frames() >= 3
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Stop(context.Background()))
	require.Equal(t, types.SessionClosed, s.State())
	require.Equal(t, []string{"video closed", "audio finalized"}, s.events)
	require.Equal(t, "output_test.mp3", s.audioSink.finalized)

	st := s.Stats()
	require.Equal(t, types.SessionClosed, st.State)
	require.Equal(t, s.videoSink.Frames(), st.FramesCaptured)
	require.Equal(t, uint64(s.audioSink.chunks), st.AudioChunks)
	require.Positive(t, st.Duration)

	// no way back
	require.ErrorIs(t, s.Stop(context.Background()), lkerrors.ErrInvalidTransition)
	require.ErrorIs(t, s.Start(context.Background()), lkerrors.ErrInvalidTransition)

	select {
	case <-s.Failed():
		t.Fatal("session should not report failure")
	default:
	}
}

func TestStopBeforeStart(t *testing.T) {
	s := newTestSession(t, nil)
	require.ErrorIs(t, s.Stop(context.Background()), lkerrors.ErrInvalidTransition)
	require.Equal(t, types.SessionIdle, s.State())
}

func TestStartFailure(t *testing.T) {
	s := newTestSession(t, brokenDevice{})

	err := s.Start(context.Background())
	var devErr *lkerrors.DeviceError
	require.ErrorAs(t, err, &devErr)
	require.Equal(t, types.SessionClosed, s.State())

	// video was stopped and its file closed, audio never finalized
	require.True(t, s.videoSink.isClosed())
	require.Empty(t, s.audioSink.finalized)
	require.ErrorIs(t, s.Stop(context.Background()), lkerrors.ErrInvalidTransition)
}

func TestStartFailureDiscardsStats(t *testing.T) {
	statsLogger, err := logging.NewCSVLogger[logging.CaptureStats](t.TempDir(), "capture_stats")
	require.NoError(t, err)
	require.FileExists(t, statsLogger.Name())

	s := newTestSession(t, brokenDevice{}, WithStatsLogger(statsLogger))
	require.Error(t, s.Start(context.Background()))

	_, err = os.Stat(statsLogger.Name())
	require.True(t, os.IsNotExist(err))
}

func TestAudioFailureStillClosesVideo(t *testing.T) {
	s := newTestSession(t, nil)
	s.audioSink.finalizeErr = errors.New("disk full")

	require.NoError(t, s.Start(context.Background()))
	err := s.Stop(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "disk full")

	require.True(t, s.videoSink.isClosed())
	require.Equal(t, []string{"video closed", "audio finalized"}, s.events)
	require.Equal(t, types.SessionClosed, s.State())
}

func TestCaptureFailure(t *testing.T) {
	s := newTestSession(t, nil)
	s.videoSink.writeErr = errors.New("encoder gone")

	require.NoError(t, s.Start(context.Background()))
	select {
	case <-s.Failed():
	case <-time.After(5 * time.Second):
		t.Fatal("expected failure")
	}

	err := s.Stop(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "encoder gone")
	require.Equal(t, types.SessionClosed, s.State())
}

func TestStatsContinueAfterCaptureFailure(t *testing.T) {
	statsLogger, err := logging.NewCSVLogger[logging.CaptureStats](t.TempDir(), "capture_stats")
	require.NoError(t, err)

	s := newTestSession(t, nil, WithStatsLogger(statsLogger))
	s.videoSink.writeErr = errors.New("encoder gone")

	rows := func() int {
		b, err := os.ReadFile(statsLogger.Name())
		require.NoError(t, err)
		return len(strings.Split(strings.TrimSpace(string(b)), "\n"))
	}

	require.NoError(t, s.Start(context.Background()))
	select {
	case <-s.Failed():
	case <-time.After(5 * time.Second):
		t.Fatal("expected failure")
	}

	// the tone device keeps advancing the clock, so rows keep coming
	after := rows()
	require.Eventually(t, func() bool {
		return rows() > after+2
	}, 5*time.Second, 10*time.Millisecond)

	require.Error(t, s.Stop(context.Background()))
}

func TestStatsLogger(t *testing.T) {
	dir := t.TempDir()
	statsLogger, err := logging.NewCSVLogger[logging.CaptureStats](dir, "capture_stats")
	require.NoError(t, err)

	s := newTestSession(t, nil, WithStatsLogger(statsLogger))
	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool {
		return s.videoSink.Frames() >= 3
	}, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))

	b, err := os.ReadFile(statsLogger.Name())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.GreaterOrEqual(t, len(lines), 2)
	require.Equal(t, "Timestamp,FramesCaptured,FramesSkipped,FrameLag,AudioChunks,AudioOverflows,AudioBytes", lines[0])
}
