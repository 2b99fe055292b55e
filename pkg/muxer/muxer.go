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

package muxer

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/livekit/desktop-recorder/pkg/config"
	"github.com/livekit/desktop-recorder/pkg/errors"
	"github.com/livekit/desktop-recorder/pkg/ffmpeg"
	"github.com/livekit/desktop-recorder/pkg/stats"
	"github.com/livekit/desktop-recorder/pkg/types"
	"github.com/livekit/protocol/logger"
	"github.com/livekit/protocol/tracer"
)

const partialSuffix = ".partial"

// Muxer combines a video file and an audio file into one container.
type Muxer interface {
	Mux(ctx context.Context, videoPath, audioPath, outputPath string) error
}

// FFmpegMuxer copies the video stream and encodes the audio to AAC in an mp4.
// The output only appears at outputPath once it has been written and verified.
type FFmpegMuxer struct {
	runner  *ffmpeg.Runner
	conf    *config.FFmpegConfig
	monitor *stats.Monitor
}

func NewFFmpegMuxer(runner *ffmpeg.Runner, conf *config.FFmpegConfig, monitor *stats.Monitor) *FFmpegMuxer {
	return &FFmpegMuxer{
		runner:  runner,
		conf:    conf,
		monitor: monitor,
	}
}

func (m *FFmpegMuxer) Mux(ctx context.Context, videoPath, audioPath, outputPath string) error {
	ctx, span := tracer.Start(ctx, "FFmpegMuxer.Mux")
	defer span.End()

	start := time.Now()
	err := m.mux(ctx, videoPath, audioPath, outputPath)
	m.monitor.ObserveMux(err == nil, time.Since(start))
	return err
}

func (m *FFmpegMuxer) mux(ctx context.Context, videoPath, audioPath, outputPath string) error {
	if _, err := os.Stat(outputPath); err == nil {
		return fmt.Errorf("%w: %s", errors.ErrOutputExists, outputPath)
	}
	for _, input := range []string{videoPath, audioPath} {
		if _, err := os.Stat(input); err != nil {
			return err
		}
	}

	partial := outputPath + partialSuffix
	_ = os.Remove(partial)

	l := logger.GetLogger().WithValues("output", outputPath)
	l.Infow("muxing", "video", videoPath, "audio", audioPath)

	proc := m.runner.Command(ctx, "muxer", m.args(videoPath, audioPath, partial)...)
	if err := proc.Run(); err != nil {
		_ = os.Remove(partial)

		var exitErr *ffmpeg.ExitError
		if errors.As(err, &exitErr) {
			l.Warnw("mux failed", err, "exitCode", exitErr.Code)
			return &errors.MuxFailure{
				ExitCode:    exitErr.Code,
				Diagnostics: exitErr.Stderr,
				Err:         err,
			}
		}
		return err
	}

	if !m.conf.SkipVerify {
		if err := m.verify(ctx, partial); err != nil {
			_ = os.Remove(partial)
			l.Warnw("mux verification failed", err)
			return &errors.MuxFailure{
				Diagnostics: proc.Tail(),
				Err:         err,
			}
		}
	}

	if err := os.Rename(partial, outputPath); err != nil {
		_ = os.Remove(partial)
		return err
	}

	l.Infow("mux complete")
	return nil
}

func (m *FFmpegMuxer) args(videoPath, audioPath, output string) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-nostdin",
		"-n",
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", "aac",
		"-movflags", "+faststart",
	}
	args = append(args, strings.Fields(m.conf.MuxExtraArgs)...)
	return append(args, "-f", "mp4", output)
}

// verify checks the combined file has a video and an audio stream an mp4 can carry.
func (m *FFmpegMuxer) verify(ctx context.Context, filename string) error {
	info, err := m.runner.Probe(ctx, filename)
	if err != nil {
		return err
	}

	for _, kind := range []string{"video", "audio"} {
		stream, ok := info.Stream(kind)
		if !ok {
			return errors.ErrMissing(kind)
		}
		if !types.IsCompatible(types.OutputTypeMP4, stream.CodecName) {
			return fmt.Errorf("%w: unsupported %s codec %s", errors.ErrMissingStream, kind, stream.CodecName)
		}
	}
	return nil
}
