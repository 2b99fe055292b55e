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
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/livekit/desktop-recorder/pkg/errors"
)

// MaxFPS is the highest accepted capture rate.
const MaxFPS = 240

var (
	// rates libmp3lame can encode
	SupportedSampleRates = []int{8000, 11025, 12000, 16000, 22050, 24000, 32000, 44100, 48000}
	SupportedBitDepths   = []int{16, 32}

	ResolutionPresets = map[string][2]int{
		"1080p": {1920, 1080},
		"720p":  {1280, 720},
		"480p":  {640, 480},
	}
)

// CaptureConfig is fixed for the lifetime of a session.
type CaptureConfig struct {
	FrameWidth        int
	FrameHeight       int
	TargetFPS         float64
	AudioSampleRate   int
	AudioChannels     int
	AudioBitDepth     int
	AudioBufferFrames int
	InputDeviceID     int
}

// Validate checks every field. deviceIDs lists the input devices currently present.
func (c *CaptureConfig) Validate(deviceIDs []int) error {
	switch {
	case c.FrameWidth <= 0 || c.FrameHeight <= 0:
		return errors.ErrInvalidConfig("resolution", "%dx%d must be positive", c.FrameWidth, c.FrameHeight)
	case c.FrameWidth%2 != 0 || c.FrameHeight%2 != 0:
		return errors.ErrInvalidConfig("resolution", "%dx%d must be even", c.FrameWidth, c.FrameHeight)
	case !(c.TargetFPS > 0):
		return errors.ErrInvalidConfig("fps", "%v must be positive", c.TargetFPS)
	case c.TargetFPS > MaxFPS:
		return errors.ErrInvalidConfig("fps", "%v is above %d", c.TargetFPS, MaxFPS)
	case !slices.Contains(SupportedSampleRates, c.AudioSampleRate):
		return errors.ErrInvalidConfig("sample_rate", "%d is not supported", c.AudioSampleRate)
	case c.AudioChannels != 1 && c.AudioChannels != 2:
		return errors.ErrInvalidConfig("channels", "%d is not supported", c.AudioChannels)
	case !slices.Contains(SupportedBitDepths, c.AudioBitDepth):
		return errors.ErrInvalidConfig("bit_depth", "%d is not supported", c.AudioBitDepth)
	case c.AudioBufferFrames <= 0:
		return errors.ErrInvalidConfig("buffer_frames", "%d must be positive", c.AudioBufferFrames)
	case c.InputDeviceID != DefaultDevice && !slices.Contains(deviceIDs, c.InputDeviceID):
		return errors.ErrInvalidConfig("device", "no input device with index %d", c.InputDeviceID)
	}
	return nil
}

func (c *CaptureConfig) FrameInterval() time.Duration {
	return time.Duration(float64(time.Second) / c.TargetFPS)
}

func (c *CaptureConfig) BytesPerSample() int {
	return c.AudioBitDepth / 8
}

// ChunkBytes is the size of one device read.
func (c *CaptureConfig) ChunkBytes() int {
	return c.AudioBufferFrames * c.AudioChannels * c.BytesPerSample()
}

func (c *CaptureConfig) Resolution() string {
	return fmt.Sprintf("%dx%d", c.FrameWidth, c.FrameHeight)
}

// ParseResolution accepts <w>x<h> or a preset name.
func ParseResolution(s string) (int, int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if preset, ok := ResolutionPresets[s]; ok {
		return preset[0], preset[1], nil
	}

	ws, hs, ok := strings.Cut(s, "x")
	if !ok {
		return 0, 0, errors.ErrInvalidConfig("resolution", "%q is not <width>x<height>", s)
	}
	w, err := strconv.Atoi(strings.TrimSpace(ws))
	if err != nil {
		return 0, 0, errors.ErrInvalidConfig("resolution", "invalid width %q", ws)
	}
	h, err := strconv.Atoi(strings.TrimSpace(hs))
	if err != nil {
		return 0, 0, errors.ErrInvalidConfig("resolution", "invalid height %q", hs)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, errors.ErrInvalidConfig("resolution", "%dx%d must be positive", w, h)
	}

	return w, h, nil
}
