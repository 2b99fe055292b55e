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

package sink

import (
	"context"

	"github.com/livekit/desktop-recorder/pkg/ffmpeg"
)

// Transcoder converts the intermediate WAV into the final audio file.
type Transcoder interface {
	Transcode(ctx context.Context, wavPath, outputPath string) error
}

// MP3Transcoder encodes with ffmpeg's libmp3lame.
type MP3Transcoder struct {
	runner  *ffmpeg.Runner
	bitrate string
}

func NewMP3Transcoder(runner *ffmpeg.Runner, bitrate string) *MP3Transcoder {
	return &MP3Transcoder{
		runner:  runner,
		bitrate: bitrate,
	}
}

func (t *MP3Transcoder) Transcode(ctx context.Context, wavPath, outputPath string) error {
	args := []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-nostdin",
		"-n",
		"-i", wavPath,
		"-c:a", "libmp3lame",
	}
	if t.bitrate != "" {
		args = append(args, "-b:a", t.bitrate)
	}
	args = append(args, "-f", "mp3", outputPath)

	return t.runner.Command(ctx, "audio-transcoder", args...).Run()
}
