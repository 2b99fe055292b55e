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
	"encoding/json"
	"fmt"
	"os"
	"path"
	"runtime"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/livekit/desktop-recorder/pkg/config"
	"github.com/livekit/desktop-recorder/pkg/errors"
	"github.com/livekit/desktop-recorder/pkg/types"
)

const (
	muxOK     = `echo "combined" > "$last"; exit 0`
	muxBroken = `echo "Invalid data found when processing input" >&2; exit 1`
	probeBoth = `{"streams": [{"codec_name": "h264", "codec_type": "video"}, {"codec_name": "aac", "codec_type": "audio"}], "format": {}}`
)

// stand-in ffmpeg: the mux call runs muxAction, every other call stores stdin at the output path
const ffmpegScript = `#!/bin/sh
for last; do :; done
case "$*" in
*"-map 0:v:0"*) %s ;;
esac
cat > "$last"
`

type testController struct {
	*Controller
	dir   string
	clock *clock.Mock
}

func newTestController(t *testing.T, muxAction string, mutate ...func(*config.RecorderConfig)) *testController {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}

	bin := t.TempDir()
	ffmpegPath := path.Join(bin, "ffmpeg")
	probePath := path.Join(bin, "ffprobe")
	require.NoError(t, os.WriteFile(ffmpegPath, []byte(fmt.Sprintf(ffmpegScript, muxAction)), 0755))
	require.NoError(t, os.WriteFile(probePath, []byte("#!/bin/sh\necho '"+probeBoth+"'\n"), 0755))

	dir := t.TempDir()
	conf := &config.RecorderConfig{
		OutputDir: dir,
		Video: config.VideoConfig{
			Resolution: "64x36",
			FPS:        20,
			Source:     types.GrabberPattern,
		},
		Audio: config.AudioConfig{
			Device: config.DefaultDevice,
			Source: types.DeviceTone,
		},
		FFmpeg: config.FFmpegConfig{
			Path:      ffmpegPath,
			ProbePath: probePath,
		},
	}
	for _, m := range mutate {
		m(conf)
	}
	conf.ApplyDefaults()

	mock := clock.NewMock()
	mock.Set(time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC))

	c, err := NewController(conf, WithClock(mock))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = c.Close(context.Background())
	})

	return &testController{Controller: c, dir: dir, clock: mock}
}

func (c *testController) captureConfig(t *testing.T) *config.CaptureConfig {
	conf, err := c.conf.CaptureConfig()
	require.NoError(t, err)
	return conf
}

func (c *testController) file(name string) string {
	return path.Join(c.dir, name)
}

func waitForFrames(t *testing.T, h *Handle) {
	require.Eventually(t, func() bool {
		return h.Stats().FramesCaptured >= 3
	}, 5*time.Second, 10*time.Millisecond)
}

func requireMissing(t *testing.T, filename string) {
	_, err := os.Stat(filename)
	require.True(t, os.IsNotExist(err), filename)
}

func TestStopWithoutRecording(t *testing.T) {
	c := newTestController(t, muxOK)

	res, err := c.StopRecording(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, types.StatusNoop, res.Status)
	require.Empty(t, res.Artifacts)
}

func TestStartStop(t *testing.T) {
	c := newTestController(t, muxOK)

	h, err := c.StartRecording(c.captureConfig(t))
	require.NoError(t, err)
	require.Equal(t, c.file("output_20250102_150405.mp4"), h.VideoPath)
	require.Equal(t, c.file("output_20250102_150405.mp3"), h.AudioPath)
	require.Equal(t, c.file("combined_20250102_150405.mp4"), h.CombinedPath)
	require.Equal(t, h, c.Active())

	waitForFrames(t, h)

	res, err := c.StopRecording(context.Background(), h)
	require.NoError(t, err)
	require.Equal(t, types.StatusComplete, res.Status)
	require.Equal(t, h.ID, res.ID)
	require.Equal(t, []types.Artifact{{Path: h.CombinedPath, Kind: types.ArtifactCombined}}, res.Artifacts)
	require.GreaterOrEqual(t, res.Stats.FramesCaptured, uint64(3))
	require.Positive(t, res.Stats.AudioChunks)

	combined, ok := res.Combined()
	require.True(t, ok)
	b, err := os.ReadFile(combined.Path)
	require.NoError(t, err)
	require.Equal(t, "combined\n", string(b))

	requireMissing(t, h.VideoPath)
	requireMissing(t, h.AudioPath)
	require.Nil(t, c.Active())

	// a second stop is a noop
	res, err = c.StopRecording(context.Background(), h)
	require.NoError(t, err)
	require.Equal(t, types.StatusNoop, res.Status)
}

func TestDoubleStart(t *testing.T) {
	c := newTestController(t, muxOK)

	h, err := c.StartRecording(c.captureConfig(t))
	require.NoError(t, err)

	_, err = c.StartRecording(c.captureConfig(t))
	require.ErrorIs(t, err, errors.ErrAlreadyRecording)
	require.True(t, errors.IsNoop(err))
	require.Equal(t, h, c.Active())

	_, err = c.StopRecording(context.Background(), h)
	require.NoError(t, err)
}

func TestInvalidConfig(t *testing.T) {
	c := newTestController(t, muxOK)

	for name, mutate := range map[string]func(*config.CaptureConfig){
		"fps":         func(conf *config.CaptureConfig) { conf.TargetFPS = 0 },
		"odd width":   func(conf *config.CaptureConfig) { conf.FrameWidth = 63 },
		"sample rate": func(conf *config.CaptureConfig) { conf.AudioSampleRate = 44000 },
		"bit depth":   func(conf *config.CaptureConfig) { conf.AudioBitDepth = 24 },
		"device":      func(conf *config.CaptureConfig) { conf.InputDeviceID = 7 },
	} {
		t.Run(name, func(t *testing.T) {
			conf := c.captureConfig(t)
			mutate(conf)

			_, err := c.StartRecording(conf)
			require.True(t, errors.IsConfigError(err), err)
			require.Nil(t, c.Active())

			entries, err := os.ReadDir(c.dir)
			require.NoError(t, err)
			require.Empty(t, entries)
		})
	}
}

func TestExistingOutputIsNotReused(t *testing.T) {
	c := newTestController(t, muxOK)
	require.NoError(t, os.WriteFile(c.file("combined_20250102_150405.mp4"), []byte("earlier"), 0644))

	h, err := c.StartRecording(c.captureConfig(t))
	require.NoError(t, err)
	require.Equal(t, c.file("output_20250102_150405_1.mp4"), h.VideoPath)
	require.Equal(t, c.file("output_20250102_150405_1.mp3"), h.AudioPath)
	require.Equal(t, c.file("combined_20250102_150405_1.mp4"), h.CombinedPath)

	_, err = c.StopRecording(context.Background(), h)
	require.NoError(t, err)

	b, err := os.ReadFile(c.file("combined_20250102_150405.mp4"))
	require.NoError(t, err)
	require.Equal(t, "earlier", string(b))

	// a second later the plain names are free
	c.clock.Add(time.Second)
	h, err = c.StartRecording(c.captureConfig(t))
	require.NoError(t, err)
	require.Equal(t, c.file("combined_20250102_150406.mp4"), h.CombinedPath)

	_, err = c.StopRecording(context.Background(), h)
	require.NoError(t, err)
}

func TestRestartWithinSameSecond(t *testing.T) {
	c := newTestController(t, muxOK)

	first, err := c.StartRecording(c.captureConfig(t))
	require.NoError(t, err)
	waitForFrames(t, first)
	_, err = c.StopRecording(context.Background(), first)
	require.NoError(t, err)
	require.FileExists(t, first.CombinedPath)

	second, err := c.StartRecording(c.captureConfig(t))
	require.NoError(t, err)
	require.Equal(t, c.file("combined_20250102_150405_1.mp4"), second.CombinedPath)
	waitForFrames(t, second)
	_, err = c.StopRecording(context.Background(), second)
	require.NoError(t, err)
	require.FileExists(t, second.CombinedPath)
}

func TestAllNamesTaken(t *testing.T) {
	c := newTestController(t, muxOK)
	require.NoError(t, os.WriteFile(c.file("output_20250102_150405.mp4"), nil, 0644))
	for i := 1; i <= maxNameSuffix; i++ {
		require.NoError(t, os.WriteFile(c.file(fmt.Sprintf("output_20250102_150405_%d.mp3", i)), nil, 0644))
	}

	_, err := c.StartRecording(c.captureConfig(t))
	require.ErrorIs(t, err, errors.ErrOutputExists)
	require.Nil(t, c.Active())
}

func TestMuxFailureKeepsIntermediates(t *testing.T) {
	c := newTestController(t, muxBroken)

	h, err := c.StartRecording(c.captureConfig(t))
	require.NoError(t, err)
	waitForFrames(t, h)

	res, err := c.StopRecording(context.Background(), h)
	muxErr, ok := errors.IsMuxFailure(err)
	require.True(t, ok, err)
	require.Equal(t, 1, muxErr.ExitCode)
	require.Contains(t, muxErr.Diagnostics, "Invalid data found")

	require.Equal(t, types.StatusFailed, res.Status)
	require.ElementsMatch(t, []types.Artifact{
		{Path: h.VideoPath, Kind: types.ArtifactVideo},
		{Path: h.AudioPath, Kind: types.ArtifactAudio},
	}, res.Artifacts)
	require.FileExists(t, h.VideoPath)
	require.FileExists(t, h.AudioPath)
	requireMissing(t, h.CombinedPath)
	require.Nil(t, c.Active())
}

func TestKeepIntermediates(t *testing.T) {
	c := newTestController(t, muxOK, func(conf *config.RecorderConfig) {
		conf.KeepIntermediates = true
	})

	h, err := c.StartRecording(c.captureConfig(t))
	require.NoError(t, err)
	waitForFrames(t, h)

	res, err := c.StopRecording(context.Background(), h)
	require.NoError(t, err)
	require.Len(t, res.Artifacts, 3)
	require.FileExists(t, h.VideoPath)
	require.FileExists(t, h.AudioPath)
	require.FileExists(t, h.CombinedPath)
}

func TestUploadCombined(t *testing.T) {
	storageDir := t.TempDir()
	c := newTestController(t, muxOK, func(conf *config.RecorderConfig) {
		conf.StorageConfig = &config.StorageConfig{
			Prefix:            storageDir,
			DeleteAfterUpload: true,
		}
	})

	h, err := c.StartRecording(c.captureConfig(t))
	require.NoError(t, err)
	waitForFrames(t, h)

	res, err := c.StopRecording(context.Background(), h)
	require.NoError(t, err)
	require.Equal(t, types.StatusComplete, res.Status)
	require.Equal(t, path.Join(storageDir, "combined_20250102_150405.mp4"), res.Location)
	require.Equal(t, int64(len("combined\n")), res.Size)
	require.Empty(t, res.Artifacts)
	requireMissing(t, h.CombinedPath)
}

func TestCloseStopsRecording(t *testing.T) {
	c := newTestController(t, muxOK)

	h, err := c.StartRecording(c.captureConfig(t))
	require.NoError(t, err)
	waitForFrames(t, h)

	require.NoError(t, c.Close(context.Background()))
	require.Nil(t, c.Active())
	require.FileExists(t, h.CombinedPath)
}

func TestFFmpegMissing(t *testing.T) {
	conf := &config.RecorderConfig{
		OutputDir: t.TempDir(),
		FFmpeg:    config.FFmpegConfig{Path: path.Join(t.TempDir(), "ffmpeg")},
	}
	conf.ApplyDefaults()

	_, err := NewController(conf)
	require.ErrorIs(t, err, errors.ErrFFmpegNotFound)
}

func TestManifest(t *testing.T) {
	c := newTestController(t, muxBroken, func(conf *config.RecorderConfig) {
		conf.WriteManifest = true
	})

	h, err := c.StartRecording(c.captureConfig(t))
	require.NoError(t, err)
	waitForFrames(t, h)

	res, err := c.StopRecording(context.Background(), h)
	require.Error(t, err)
	require.FileExists(t, h.ManifestPath)
	require.Contains(t, res.Artifacts, types.Artifact{Path: h.ManifestPath, Kind: types.ArtifactManifest})

	b, err := os.ReadFile(h.ManifestPath)
	require.NoError(t, err)
	m := &Manifest{}
	require.NoError(t, json.Unmarshal(b, m))

	require.Equal(t, h.ID, m.RecordingID)
	require.Equal(t, types.StatusFailed, m.Status)
	require.Contains(t, m.Error, "mux failed")
	require.Equal(t, "64x36", m.Resolution)
	require.Equal(t, 44100, m.SampleRate)
	require.Equal(t, config.DefaultDevice, m.Device)
	require.GreaterOrEqual(t, m.FramesCaptured, uint64(3))
	require.Len(t, m.Files, 2)
	for _, f := range m.Files {
		require.Contains(t, []types.ArtifactKind{types.ArtifactVideo, types.ArtifactAudio}, f.Kind)
		require.Equal(t, path.Join(c.dir, f.Filename), f.Location)
	}
}
