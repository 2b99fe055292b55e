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
	"os"
	"os/exec"
	"path"
	"runtime"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/livekit/desktop-recorder/pkg/config"
	"github.com/livekit/desktop-recorder/pkg/errors"
	"github.com/livekit/desktop-recorder/pkg/ffmpeg"
	"github.com/livekit/desktop-recorder/pkg/stats"
)

const (
	bothStreams = `{"streams": [{"codec_name": "h264", "codec_type": "video"}, {"codec_name": "aac", "codec_type": "audio"}], "format": {}}`
	videoOnly   = `{"streams": [{"codec_name": "h264", "codec_type": "video"}], "format": {}}`
)

type fixture struct {
	dir    string
	video  string
	audio  string
	output string
	marker string
}

func newFixture(t *testing.T) *fixture {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	dir := t.TempDir()
	f := &fixture{
		dir:    dir,
		video:  path.Join(dir, "output_20250102_150405.mp4"),
		audio:  path.Join(dir, "output_20250102_150405.mp3"),
		output: path.Join(dir, "combined_20250102_150405.mp4"),
		marker: path.Join(dir, "ran"),
	}
	require.NoError(t, os.WriteFile(f.video, []byte("video"), 0644))
	require.NoError(t, os.WriteFile(f.audio, []byte("audio"), 0644))
	return f
}

func (f *fixture) script(t *testing.T, name, body string) string {
	filename := path.Join(f.dir, name)
	require.NoError(t, os.WriteFile(filename, []byte("#!/bin/sh\ntouch "+f.marker+"\n"+body+"\n"), 0755))
	return filename
}

func (f *fixture) muxer(t *testing.T, ffmpegBody, probeOutput string) (*FFmpegMuxer, *prometheus.Registry) {
	conf := &config.FFmpegConfig{
		Path:       f.script(t, "ffmpeg", ffmpegBody),
		ProbePath:  f.script(t, "ffprobe", "echo '"+probeOutput+"'"),
		StderrTail: 5,
	}
	reg := prometheus.NewRegistry()
	return NewFFmpegMuxer(ffmpeg.NewRunner(conf), conf, stats.NewMonitor("test", reg)), reg
}

func requireMissing(t *testing.T, filename string) {
	_, err := os.Stat(filename)
	require.True(t, os.IsNotExist(err), filename)
}

func TestMuxFailureKeepsInputs(t *testing.T) {
	f := newFixture(t)
	m, _ := f.muxer(t, `
for last; do :; done
echo "partial" > "$last"
echo "Could not find tag for codec" >&2
exit 3`, bothStreams)

	err := m.Mux(context.Background(), f.video, f.audio, f.output)
	muxErr, ok := errors.IsMuxFailure(err)
	require.True(t, ok)
	require.Equal(t, 3, muxErr.ExitCode)
	require.Contains(t, muxErr.Diagnostics, "Could not find tag for codec")

	require.FileExists(t, f.video)
	require.FileExists(t, f.audio)
	requireMissing(t, f.output)
	requireMissing(t, f.output+partialSuffix)
}

func TestMuxSuccess(t *testing.T) {
	f := newFixture(t)
	m, reg := f.muxer(t, `for last; do :; done; echo "combined" > "$last"`, bothStreams)

	require.NoError(t, m.Mux(context.Background(), f.video, f.audio, f.output))

	b, err := os.ReadFile(f.output)
	require.NoError(t, err)
	require.Equal(t, "combined\n", string(b))
	requireMissing(t, f.output+partialSuffix)

	// inputs are left for the caller to clean up
	require.FileExists(t, f.video)
	require.FileExists(t, f.audio)

	count, err := testutil.GatherAndCount(reg, "livekit_recorder_mux")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestMuxMissingStream(t *testing.T) {
	f := newFixture(t)
	m, _ := f.muxer(t, `for last; do :; done; echo "combined" > "$last"`, videoOnly)

	err := m.Mux(context.Background(), f.video, f.audio, f.output)
	_, ok := errors.IsMuxFailure(err)
	require.True(t, ok)
	require.ErrorIs(t, err, errors.ErrMissingStream)
	requireMissing(t, f.output)
	requireMissing(t, f.output+partialSuffix)
}

func TestMuxRefusesExistingOutput(t *testing.T) {
	f := newFixture(t)
	m, _ := f.muxer(t, "exit 0", bothStreams)
	require.NoError(t, os.WriteFile(f.output, []byte("earlier"), 0644))

	err := m.Mux(context.Background(), f.video, f.audio, f.output)
	require.ErrorIs(t, err, errors.ErrOutputExists)
	requireMissing(t, f.marker)

	b, err := os.ReadFile(f.output)
	require.NoError(t, err)
	require.Equal(t, "earlier", string(b))
}

func TestMuxMissingInput(t *testing.T) {
	f := newFixture(t)
	m, _ := f.muxer(t, "exit 0", bothStreams)
	require.NoError(t, os.Remove(f.audio))

	err := m.Mux(context.Background(), f.video, f.audio, f.output)
	require.True(t, os.IsNotExist(err))
	requireMissing(t, f.marker)
}

func TestMuxArgs(t *testing.T) {
	m := &FFmpegMuxer{conf: &config.FFmpegConfig{MuxExtraArgs: "-metadata title=demo"}}
	require.Equal(t, []string{
		"-hide_banner", "-loglevel", "warning", "-nostdin", "-n",
		"-i", "v.mp4", "-i", "a.mp3",
		"-map", "0:v:0", "-map", "1:a:0",
		"-c:v", "copy", "-c:a", "aac", "-movflags", "+faststart",
		"-metadata", "title=demo",
		"-f", "mp4", "out.mp4.partial",
	}, m.args("v.mp4", "a.mp3", "out.mp4.partial"))
}

func TestMuxFFmpeg(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not installed")
	}

	dir := t.TempDir()
	video := path.Join(dir, "output.mp4")
	audio := path.Join(dir, "output.mp3")
	output := path.Join(dir, "combined.mp4")

	require.NoError(t, exec.Command("ffmpeg", "-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", "testsrc=size=320x240:rate=20:duration=1",
		"-c:v", "libx264", "-pix_fmt", "yuv420p", video,
	).Run())
	require.NoError(t, exec.Command("ffmpeg", "-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", "sine=frequency=440:duration=1",
		"-c:a", "libmp3lame", audio,
	).Run())

	conf := &config.FFmpegConfig{Path: "ffmpeg", ProbePath: "ffprobe", StderrTail: 20}
	runner := ffmpeg.NewRunner(conf)
	m := NewFFmpegMuxer(runner, conf, nil)
	require.NoError(t, m.Mux(context.Background(), video, audio, output))

	info, err := runner.Probe(context.Background(), output)
	require.NoError(t, err)
	v, ok := info.Stream("video")
	require.True(t, ok)
	require.Equal(t, "h264", v.CodecName)
	a, ok := info.Stream("audio")
	require.True(t, ok)
	require.Equal(t, "aac", a.CodecName)
}
