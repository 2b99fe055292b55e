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
	"encoding/binary"
	"math"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/livekit/desktop-recorder/pkg/config"
	"github.com/livekit/desktop-recorder/pkg/errors"
)

var toneDeviceInfo = DeviceInfo{
	Index:             0,
	Name:              "Test Tone",
	MaxInputChannels:  8,
	DefaultSampleRate: config.DefaultSampleRate,
	IsDefault:         true,
}

// ToneDevice produces a sine wave in real time. Used for headless runs and tests.
type ToneDevice struct {
	freq  float64
	clock clock.Clock

	conf  *config.CaptureConfig
	phase float64
	next  time.Time
}

func NewToneDevice(freq float64) *ToneDevice {
	return &ToneDevice{
		freq:  freq,
		clock: clock.New(),
	}
}

func (d *ToneDevice) WithClock(c clock.Clock) *ToneDevice {
	d.clock = c
	return d
}

func (d *ToneDevice) Name() string {
	return toneDeviceInfo.String()
}

func (d *ToneDevice) Open(conf *config.CaptureConfig) error {
	if conf.AudioBitDepth != 16 && conf.AudioBitDepth != 32 {
		return errors.ErrInvalidConfig("bit_depth", "%d is not supported", conf.AudioBitDepth)
	}
	d.conf = conf
	d.phase = 0
	d.next = d.clock.Now()
	return nil
}

func (d *ToneDevice) Read(buf []byte) error {
	if d.conf == nil {
		return errors.New("device not open")
	}

	frames := len(buf) / (d.conf.AudioChannels * d.conf.BytesPerSample())
	step := 2 * math.Pi * d.freq / float64(d.conf.AudioSampleRate)
	offset := 0
	for i := 0; i < frames; i++ {
		v := 0.5 * math.Sin(d.phase)
		d.phase += step
		if d.phase > 2*math.Pi {
			d.phase -= 2 * math.Pi
		}
		for c := 0; c < d.conf.AudioChannels; c++ {
			switch d.conf.AudioBitDepth {
			case 16:
				binary.LittleEndian.PutUint16(buf[offset:], uint16(int16(v*math.MaxInt16)))
				offset += 2
			case 32:
				binary.LittleEndian.PutUint32(buf[offset:], uint32(int32(v*math.MaxInt32)))
				offset += 4
			}
		}
	}

	// block like a hardware buffer would
	d.next = d.next.Add(time.Duration(frames) * time.Second / time.Duration(d.conf.AudioSampleRate))
	if wait := d.next.Sub(d.clock.Now()); wait > 0 {
		d.clock.Sleep(wait)
	}
	return nil
}

func (d *ToneDevice) Close() error {
	d.conf = nil
	return nil
}
