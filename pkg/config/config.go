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

package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/livekit/desktop-recorder/pkg/errors"
	"github.com/livekit/desktop-recorder/pkg/types"
	"github.com/livekit/protocol/logger"
	"github.com/livekit/protocol/utils"
)

const (
	DefaultResolution   = "1920x1080"
	DefaultFPS          = 20
	DefaultSampleRate   = 44100
	DefaultChannels     = 2
	DefaultBitDepth     = 16
	DefaultBufferFrames = 1024
	DefaultAudioBitrate = "192k"
	DefaultVideoCodec   = "libx264"
	DefaultVideoPreset  = "ultrafast"
	DefaultDevice       = -1

	defaultOverlayWidth  = 160
	defaultOverlayHeight = 120
	defaultOverlayMargin = 10
	defaultLogMaxSize    = 10 // megabytes
)

type RecorderConfig struct {
	NodeID string `yaml:"-"` // generated per process

	Logging           *logger.Config `yaml:"logging"`            // logging config
	OutputDir         string         `yaml:"output_dir"`         // defaults to the working directory
	KeepIntermediates bool           `yaml:"keep_intermediates"` // keep output_<ts>.mp4 and output_<ts>.mp3 after a successful mux
	WriteManifest     bool           `yaml:"write_manifest"`     // write combined_<ts>.json describing each recording
	MaxDuration       time.Duration  `yaml:"max_duration"`       // stop automatically after this long, 0 to disable
	PrometheusPort    int            `yaml:"prometheus_port"`    // prometheus handler port, 0 to disable

	Video  VideoConfig  `yaml:"video"`
	Audio  AudioConfig  `yaml:"audio"`
	FFmpeg FFmpegConfig `yaml:"ffmpeg"`

	StorageConfig *StorageConfig `yaml:"storage,omitempty"` // upload the combined file after muxing
	BackupConfig  *StorageConfig `yaml:"backup,omitempty"`  // backup config, for storage failures

	Debug DebugConfig `yaml:"debug"`
}

type VideoConfig struct {
	Resolution        string             `yaml:"resolution"`          // <w>x<h> or a preset name
	FPS               float64            `yaml:"fps"`                 // target frame rate
	Display           int                `yaml:"display"`             // display index for screen capture
	Source            types.GrabberType  `yaml:"source"`              // screen or pattern
	Backend           types.VideoBackend `yaml:"backend"`             // ffmpeg or gstreamer
	Codec             string             `yaml:"codec"`               // ffmpeg video encoder
	Preset            string             `yaml:"preset"`              // encoder preset
	VariableFrameRate bool               `yaml:"variable_frame_rate"` // stamp frames with wall clock time instead of a constant rate
	Overlay           *OverlayConfig     `yaml:"overlay,omitempty"`   // picture-in-picture overlay
}

type OverlayConfig struct {
	ImagePath string `yaml:"image_path"`
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	Margin    int    `yaml:"margin"`
}

type AudioConfig struct {
	Device       int              `yaml:"device"`        // input device index, -1 for the system default
	Source       types.DeviceType `yaml:"source"`        // portaudio or tone
	SampleRate   int              `yaml:"sample_rate"`   // samples per second
	Channels     int              `yaml:"channels"`      // 1 or 2
	BitDepth     int              `yaml:"bit_depth"`     // 16 or 32
	BufferFrames int              `yaml:"buffer_frames"` // frames per read
	Bitrate      string           `yaml:"bitrate"`       // mp3 bitrate
}

type FFmpegConfig struct {
	Path         string `yaml:"path"`          // defaults to ffmpeg on PATH
	ProbePath    string `yaml:"probe_path"`    // defaults to ffprobe on PATH
	LogFile      string `yaml:"log_file"`      // also write ffmpeg output to this rotated file
	LogMaxSize   int    `yaml:"log_max_size"`  // megabytes before rotation
	SkipVerify   bool   `yaml:"skip_verify"`   // skip the ffprobe check of the combined file
	StderrTail   int    `yaml:"stderr_tail"`   // lines of stderr kept for diagnostics
	MuxExtraArgs string `yaml:"mux_extra_args"` // appended before the output path
}

type DebugConfig struct {
	CaptureStats bool   `yaml:"capture_stats"` // write per-second capture stats as csv
	StatsDir     string `yaml:"stats_dir"`     // defaults to the system temp dir

	EnableProfiling bool `yaml:"enable_profiling"` // serve /debug/pprof on the prometheus port
}

func NewRecorderConfig(confString string) (*RecorderConfig, error) {
	conf := &RecorderConfig{
		Logging: &logger.Config{
			Level: "info",
		},
		Video: VideoConfig{
			Resolution: DefaultResolution,
			FPS:        DefaultFPS,
			Source:     types.GrabberScreen,
			Backend:    types.BackendFFmpeg,
			Codec:      DefaultVideoCodec,
			Preset:     DefaultVideoPreset,
		},
		Audio: AudioConfig{
			Device:       DefaultDevice,
			Source:       types.DevicePortAudio,
			SampleRate:   DefaultSampleRate,
			Channels:     DefaultChannels,
			BitDepth:     DefaultBitDepth,
			BufferFrames: DefaultBufferFrames,
			Bitrate:      DefaultAudioBitrate,
		},
	}
	if confString != "" {
		if err := yaml.Unmarshal([]byte(confString), conf); err != nil {
			return nil, errors.ErrCouldNotParseConfig(err)
		}
	}

	conf.NodeID = utils.NewGuid("DR_")
	conf.ApplyDefaults()

	if err := conf.initLogger("nodeID", conf.NodeID); err != nil {
		return nil, err
	}

	return conf, nil
}

// ApplyDefaults fills zero values, for configs built in code rather than parsed.
func (c *RecorderConfig) ApplyDefaults() {
	if c.Logging == nil {
		c.Logging = &logger.Config{Level: "info"}
	}
	if c.OutputDir == "" {
		if wd, err := os.Getwd(); err == nil {
			c.OutputDir = wd
		} else {
			c.OutputDir = "."
		}
	}
	if c.Video.Resolution == "" {
		c.Video.Resolution = DefaultResolution
	}
	if !(c.Video.FPS > 0) {
		c.Video.FPS = DefaultFPS
	}
	if c.Video.Source == "" {
		c.Video.Source = types.GrabberScreen
	}
	if c.Video.Backend == "" {
		c.Video.Backend = types.BackendFFmpeg
	}
	if c.Video.Codec == "" {
		c.Video.Codec = DefaultVideoCodec
	}
	if c.Video.Preset == "" {
		c.Video.Preset = DefaultVideoPreset
	}
	if o := c.Video.Overlay; o != nil {
		if o.Width <= 0 {
			o.Width = defaultOverlayWidth
		}
		if o.Height <= 0 {
			o.Height = defaultOverlayHeight
		}
		if o.Margin <= 0 {
			o.Margin = defaultOverlayMargin
		}
	}
	if c.Audio.Source == "" {
		c.Audio.Source = types.DevicePortAudio
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = DefaultSampleRate
	}
	if c.Audio.Channels == 0 {
		c.Audio.Channels = DefaultChannels
	}
	if c.Audio.BitDepth == 0 {
		c.Audio.BitDepth = DefaultBitDepth
	}
	if c.Audio.BufferFrames == 0 {
		c.Audio.BufferFrames = DefaultBufferFrames
	}
	if c.Audio.Bitrate == "" {
		c.Audio.Bitrate = DefaultAudioBitrate
	}
	if c.FFmpeg.Path == "" {
		c.FFmpeg.Path = "ffmpeg"
	}
	if c.FFmpeg.ProbePath == "" {
		c.FFmpeg.ProbePath = "ffprobe"
	}
	if c.FFmpeg.LogMaxSize <= 0 {
		c.FFmpeg.LogMaxSize = defaultLogMaxSize
	}
	if c.FFmpeg.StderrTail <= 0 {
		c.FFmpeg.StderrTail = 20
	}
	if c.Debug.StatsDir == "" {
		c.Debug.StatsDir = os.TempDir()
	}

	c.StorageConfig.UpdateStorageConfig()
	c.BackupConfig.UpdateStorageConfig()
}

func (c *RecorderConfig) initLogger(values ...interface{}) error {
	zl, err := logger.NewZapLogger(c.Logging)
	if err != nil {
		return err
	}

	l := zl.WithValues(values...)
	logger.SetLogger(l, "desktop-recorder")
	return nil
}

// CaptureConfig builds the immutable per-session capture settings.
func (c *RecorderConfig) CaptureConfig() (*CaptureConfig, error) {
	w, h, err := ParseResolution(c.Video.Resolution)
	if err != nil {
		return nil, err
	}

	return &CaptureConfig{
		FrameWidth:        w,
		FrameHeight:       h,
		TargetFPS:         c.Video.FPS,
		AudioSampleRate:   c.Audio.SampleRate,
		AudioChannels:     c.Audio.Channels,
		AudioBitDepth:     c.Audio.BitDepth,
		AudioBufferFrames: c.Audio.BufferFrames,
		InputDeviceID:     c.Audio.Device,
	}, nil
}
