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

//go:build portaudio

package audio

import (
	"encoding/binary"
	"fmt"

	"github.com/gordonklaus/portaudio"

	"github.com/livekit/desktop-recorder/pkg/config"
	"github.com/livekit/desktop-recorder/pkg/errors"
)

func listPortAudioDevices() ([]DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}

	var defaultIndex = -1
	if d, err := portaudio.DefaultInputDevice(); err == nil && d != nil {
		defaultIndex = d.Index
	}

	infos := make([]DeviceInfo, 0, len(devices))
	for _, d := range devices {
		if d.MaxInputChannels <= 0 {
			continue
		}
		infos = append(infos, DeviceInfo{
			Index:             d.Index,
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			IsDefault:         d.Index == defaultIndex,
		})
	}
	return infos, nil
}

// portAudioDevice reads from a PortAudio input stream.
type portAudioDevice struct {
	id     int
	name   string
	stream *portaudio.Stream

	bitDepth int
	buf16    []int16
	buf32    []int32
}

func newPortAudioDevice(id int) Device {
	return &portAudioDevice{
		id:   id,
		name: fmt.Sprintf("portaudio device %d", id),
	}
}

func (d *portAudioDevice) Name() string {
	return d.name
}

func (d *portAudioDevice) Open(conf *config.CaptureConfig) error {
	if err := portaudio.Initialize(); err != nil {
		return err
	}

	info, err := d.deviceInfo()
	if err != nil {
		_ = portaudio.Terminate()
		return err
	}
	d.name = fmt.Sprintf("%s (Index %d)", info.Name, info.Index)
	if info.MaxInputChannels < conf.AudioChannels {
		_ = portaudio.Terminate()
		return fmt.Errorf("device supports %d input channels, %d requested", info.MaxInputChannels, conf.AudioChannels)
	}

	params := portaudio.HighLatencyParameters(info, nil)
	params.Input.Channels = conf.AudioChannels
	params.SampleRate = float64(conf.AudioSampleRate)
	params.FramesPerBuffer = conf.AudioBufferFrames

	d.bitDepth = conf.AudioBitDepth
	samples := conf.AudioBufferFrames * conf.AudioChannels
	var stream *portaudio.Stream
	switch conf.AudioBitDepth {
	case 16:
		d.buf16 = make([]int16, samples)
		stream, err = portaudio.OpenStream(params, d.buf16)
	case 32:
		d.buf32 = make([]int32, samples)
		stream, err = portaudio.OpenStream(params, d.buf32)
	default:
		err = errors.ErrInvalidConfig("bit_depth", "%d is not supported", conf.AudioBitDepth)
	}
	if err != nil {
		_ = portaudio.Terminate()
		return err
	}

	if err = stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return err
	}

	d.stream = stream
	return nil
}

func (d *portAudioDevice) deviceInfo() (*portaudio.DeviceInfo, error) {
	if d.id == config.DefaultDevice {
		return portaudio.DefaultInputDevice()
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	for _, info := range devices {
		if info.Index == d.id {
			return info, nil
		}
	}
	return nil, fmt.Errorf("no device with index %d", d.id)
}

func (d *portAudioDevice) Read(buf []byte) error {
	readErr := d.stream.Read()
	if readErr != nil && readErr != portaudio.InputOverflowed {
		return readErr
	}

	switch d.bitDepth {
	case 16:
		for i, s := range d.buf16 {
			binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
		}
	case 32:
		for i, s := range d.buf32 {
			binary.LittleEndian.PutUint32(buf[i*4:], uint32(s))
		}
	}

	if readErr == portaudio.InputOverflowed {
		return errors.ErrInputOverflow
	}
	return nil
}

func (d *portAudioDevice) Close() error {
	if d.stream == nil {
		return nil
	}

	var errArray errors.ErrArray
	errArray.Check(d.stream.Stop())
	errArray.Check(d.stream.Close())
	errArray.Check(portaudio.Terminate())
	d.stream = nil

	if errArray.Len() > 0 {
		return errArray.ToError()
	}
	return nil
}
