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

package audio

import (
	"fmt"
	"time"

	"github.com/livekit/desktop-recorder/pkg/config"
	"github.com/livekit/desktop-recorder/pkg/errors"
	"github.com/livekit/desktop-recorder/pkg/types"
)

// Chunk is one device read of interleaved little-endian PCM.
type Chunk struct {
	Data      []byte
	Timestamp time.Time
}

// ChunkWriter receives chunks in capture order.
type ChunkWriter interface {
	Append(c *Chunk) error
}

// Device is an open-able audio input.
type Device interface {
	Name() string
	Open(conf *config.CaptureConfig) error
	// Read fills buf. ErrInputOverflow means buf holds fresh samples but older ones were dropped.
	Read(buf []byte) error
	Close() error
}

type DeviceInfo struct {
	Index             int
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64
	IsDefault         bool
}

func (d DeviceInfo) String() string {
	return fmt.Sprintf("%s (Index %d)", d.Name, d.Index)
}

// ListDevices enumerates input devices. Each call returns a fresh snapshot.
func ListDevices(deviceType types.DeviceType) ([]DeviceInfo, error) {
	switch deviceType {
	case types.DeviceTone:
		return []DeviceInfo{toneDeviceInfo}, nil
	case types.DevicePortAudio, "":
		return listPortAudioDevices()
	default:
		return nil, errors.ErrInvalidConfig("audio source", "unknown source %q", deviceType)
	}
}

// DeviceIDs returns the indexes of devices, for CaptureConfig.Validate.
func DeviceIDs(devices []DeviceInfo) []int {
	ids := make([]int, 0, len(devices))
	for _, d := range devices {
		ids = append(ids, d.Index)
	}
	return ids
}

// NewDevice returns an unopened device. id is an index from ListDevices, or -1 for the default input.
func NewDevice(deviceType types.DeviceType, id int) (Device, error) {
	switch deviceType {
	case types.DeviceTone:
		return NewToneDevice(440), nil
	case types.DevicePortAudio, "":
		return newPortAudioDevice(id), nil
	default:
		return nil, errors.ErrInvalidConfig("audio source", "unknown source %q", deviceType)
	}
}
