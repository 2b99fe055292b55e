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

package sink

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/linkdata/deadlock"

	"github.com/livekit/desktop-recorder/pkg/capture/video"
	"github.com/livekit/desktop-recorder/pkg/config"
	"github.com/livekit/desktop-recorder/pkg/errors"
	"github.com/livekit/desktop-recorder/pkg/ffmpeg"
	"github.com/livekit/protocol/logger"
)

// FFmpegVideoSink pipes raw RGBA frames into an ffmpeg encoder.
type FFmpegVideoSink struct {
	conf   *config.CaptureConfig
	path   string
	logger logger.Logger

	mu     deadlock.Mutex
	proc   *ffmpeg.Process
	stdin  io.WriteCloser
	frames uint64
	closed bool
}

func NewFFmpegVideoSink(
	ctx context.Context,
	runner *ffmpeg.Runner,
	conf *config.CaptureConfig,
	vc *config.VideoConfig,
	path string,
) (*FFmpegVideoSink, error) {
	proc := runner.Command(ctx, "video-encoder", encoderArgs(conf, vc, path)...)
	stdin, err := proc.StdinPipe()
	if err != nil {
		return nil, err
	}
	if err = proc.Start(); err != nil {
		return nil, err
	}

	s := &FFmpegVideoSink{
		conf:   conf,
		path:   path,
		logger: logger.GetLogger().WithValues("sink", "video", "path", path),
		proc:   proc,
		stdin:  stdin,
	}
	s.logger.Debugw("video encoder started", "resolution", conf.Resolution(), "codec", vc.Codec)
	return s, nil
}

func encoderArgs(conf *config.CaptureConfig, vc *config.VideoConfig, path string) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-n",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", conf.FrameWidth, conf.FrameHeight),
	}
	if vc.VariableFrameRate {
		args = append(args, "-use_wallclock_as_timestamps", "1")
	} else {
		args = append(args, "-framerate", strconv.FormatFloat(conf.TargetFPS, 'f', -1, 64))
	}
	args = append(args,
		"-i", "pipe:0",
		"-c:v", vc.Codec,
	)
	if vc.Preset != "" {
		args = append(args, "-preset", vc.Preset)
	}
	args = append(args, "-pix_fmt", "yuv420p")
	if vc.VariableFrameRate {
		args = append(args, "-fps_mode", "passthrough")
	}
	return append(args, "-f", "mp4", path)
}

func (s *FFmpegVideoSink) Write(f *video.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.ErrSinkClosed
	}
	if err := checkFrame(s.conf, f); err != nil {
		return err
	}

	if _, err := s.stdin.Write(rawFrame(f)); err != nil {
		return fmt.Errorf("video encoder: %w", err)
	}
	s.frames++
	return nil
}

func (s *FFmpegVideoSink) Path() string {
	return s.path
}

func (s *FFmpegVideoSink) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Close ends the input stream and waits for the encoder to finish the file.
func (s *FFmpegVideoSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	closeErr := s.stdin.Close()
	if err := s.proc.Wait(); err != nil {
		s.logger.Warnw("video encoder failed", err, "frames", s.frames, "stderr", s.proc.Tail())
		return err
	}

	s.logger.Debugw("video file closed", "frames", s.frames)
	return closeErr
}
