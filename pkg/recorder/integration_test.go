//go:build integration

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

package recorder

import (
	"context"
	"os"
	"os/exec"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/livekit/desktop-recorder/pkg/config"
	"github.com/livekit/desktop-recorder/pkg/ffmpeg"
	"github.com/livekit/desktop-recorder/pkg/types"
)

func TestRecordEndToEnd(t *testing.T) {
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not installed", bin)
		}
	}

	conf := &config.RecorderConfig{
		OutputDir: t.TempDir(),
		Video: config.VideoConfig{
			Resolution: "1280x720",
			FPS:        20,
			Source:     types.GrabberPattern,
		},
		Audio: config.AudioConfig{
			Device:     config.DefaultDevice,
			Source:     types.DeviceTone,
			SampleRate: 44100,
			Channels:   2,
		},
	}
	conf.ApplyDefaults()

	c, err := NewController(conf)
	require.NoError(t, err)
	defer func() {
		_ = c.Close(context.Background())
	}()

	capture, err := conf.CaptureConfig()
	require.NoError(t, err)

	h, err := c.StartRecording(capture)
	require.NoError(t, err)
	time.Sleep(2 * time.Second)

	res, err := c.StopRecording(context.Background(), h)
	require.NoError(t, err)
	require.Equal(t, types.StatusComplete, res.Status)

	_, err = os.Stat(h.VideoPath)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(h.AudioPath)
	require.True(t, os.IsNotExist(err))

	info, err := ffmpeg.NewRunner(&conf.FFmpeg).Probe(context.Background(), h.CombinedPath)
	require.NoError(t, err)

	v, ok := info.Stream("video")
	require.True(t, ok)
	require.Equal(t, "h264", v.CodecName)
	require.Equal(t, 1280, v.Width)
	require.Equal(t, 720, v.Height)

	a, ok := info.Stream("audio")
	require.True(t, ok)
	require.Equal(t, "aac", a.CodecName)
	require.Equal(t, 2, a.Channels)
	require.Equal(t, strconv.Itoa(44100), a.SampleRate)

	duration, err := info.Duration()
	require.NoError(t, err)
	require.InDelta(t, 2, duration.Seconds(), 0.75)

	// frame count within one frame of fps x duration, allowing for a slow host
	frames := res.Stats.FramesCaptured
	expected := capture.TargetFPS * res.Stats.Duration.Seconds()
	require.LessOrEqual(t, float64(frames), expected+1)
}
