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

	"github.com/livekit/desktop-recorder/pkg/capture/video"
	"github.com/livekit/desktop-recorder/pkg/config"
	"github.com/livekit/desktop-recorder/pkg/errors"
	"github.com/livekit/desktop-recorder/pkg/ffmpeg"
	"github.com/livekit/desktop-recorder/pkg/types"
)

// VideoSink encodes frames into a video file, in call order.
type VideoSink interface {
	video.FrameWriter
	Path() string
	Frames() uint64
	Close() error
}

// NewVideoSink starts the configured encoder writing to path.
func NewVideoSink(
	ctx context.Context,
	runner *ffmpeg.Runner,
	conf *config.CaptureConfig,
	vc *config.VideoConfig,
	path string,
) (VideoSink, error) {
	switch vc.Backend {
	case types.BackendFFmpeg, "":
		return NewFFmpegVideoSink(ctx, runner, conf, vc, path)
	case types.BackendGStreamer:
		return newGstVideoSink(conf, vc, path)
	default:
		return nil, errors.ErrInvalidConfig("video backend", "unknown backend %q", vc.Backend)
	}
}

// checkFrame rejects frames that do not match the configured size.
func checkFrame(conf *config.CaptureConfig, f *video.Frame) error {
	if f.Width() != conf.FrameWidth || f.Height() != conf.FrameHeight {
		return errors.ErrFrameSize(f.Width(), f.Height(), conf.FrameWidth, conf.FrameHeight)
	}
	return nil
}

// rawFrame returns tightly packed RGBA rows.
func rawFrame(f *video.Frame) []byte {
	img := f.Image
	rowBytes := img.Rect.Dx() * 4
	if img.Stride == rowBytes && img.Rect.Min.X == 0 && img.Rect.Min.Y == 0 {
		return img.Pix[:rowBytes*img.Rect.Dy()]
	}

	out := make([]byte, 0, rowBytes*img.Rect.Dy())
	for y := img.Rect.Min.Y; y < img.Rect.Max.Y; y++ {
		start := img.PixOffset(img.Rect.Min.X, y)
		out = append(out, img.Pix[start:start+rowBytes]...)
	}
	return out
}
