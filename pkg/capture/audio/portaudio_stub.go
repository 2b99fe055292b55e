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

//go:build !portaudio

package audio

import (
	"github.com/livekit/desktop-recorder/pkg/config"
	"github.com/livekit/desktop-recorder/pkg/errors"
)

var errNoPortAudio = errors.New("built without portaudio, rebuild with -tags portaudio or use the tone source")

func listPortAudioDevices() ([]DeviceInfo, error) {
	return nil, errNoPortAudio
}

type portAudioDevice struct{}

func newPortAudioDevice(_ int) Device {
	return &portAudioDevice{}
}

func (d *portAudioDevice) Name() string {
	return "portaudio"
}

func (d *portAudioDevice) Open(_ *config.CaptureConfig) error {
	return errNoPortAudio
}

func (d *portAudioDevice) Read(_ []byte) error {
	return errNoPortAudio
}

func (d *portAudioDevice) Close() error {
	return nil
}
